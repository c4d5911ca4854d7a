// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store provides per-plugin key-value storage.
//
// Every backend partitions keys by namespace; the runtime uses the plugin
// id as the namespace and hands each plugin a Namespace bound to it.
package store

import (
	"context"
	"strings"

	"github.com/samber/oops"
)

// KVStore is a namespaced key-value store. Get returns a nil value and no
// error for a missing key.
type KVStore interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Set(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	// Keys lists the keys of a namespace in ascending order.
	Keys(ctx context.Context, namespace string) ([]string, error)
	Close() error
}

// Namespace is a KVStore handle bound to one namespace.
type Namespace struct {
	kv   KVStore
	name string
}

// NewNamespace binds kv to name.
func NewNamespace(kv KVStore, name string) *Namespace {
	return &Namespace{kv: kv, name: name}
}

// Name returns the namespace.
func (n *Namespace) Name() string {
	return n.name
}

// Get returns the value for key, or nil if it is not set.
func (n *Namespace) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(n.name, key); err != nil {
		return nil, err
	}
	return n.kv.Get(ctx, n.name, key)
}

// Set stores value under key.
func (n *Namespace) Set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(n.name, key); err != nil {
		return err
	}
	return n.kv.Set(ctx, n.name, key, value)
}

// Delete removes key. Deleting a missing key is not an error.
func (n *Namespace) Delete(ctx context.Context, key string) error {
	if err := validateKey(n.name, key); err != nil {
		return err
	}
	return n.kv.Delete(ctx, n.name, key)
}

// Keys lists the namespace's keys.
func (n *Namespace) Keys(ctx context.Context) ([]string, error) {
	return n.kv.Keys(ctx, n.name)
}

// MaxKeyLength bounds key size across backends.
const MaxKeyLength = 256

func validateKey(namespace, key string) error {
	if key == "" || len(key) > MaxKeyLength || strings.ContainsRune(key, 0) {
		return oops.Code("INVALID_KEY").
			With("namespace", namespace).
			With("key", key).
			Errorf("keys must be 1-%d bytes without NUL", MaxKeyLength)
	}
	return nil
}
