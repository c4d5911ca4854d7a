// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryKVStore keeps values in process memory.
type MemoryKVStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

var _ KVStore = (*MemoryKVStore)(nil)

// NewMemoryKVStore creates an empty store.
func NewMemoryKVStore() *MemoryKVStore {
	return &MemoryKVStore{data: make(map[string]map[string][]byte)}
}

// Get implements KVStore.
func (s *MemoryKVStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), v...), nil
}

// Set implements KVStore.
func (s *MemoryKVStore) Set(_ context.Context, namespace, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ns := s.data[namespace]
	if ns == nil {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

// Delete implements KVStore.
func (s *MemoryKVStore) Delete(_ context.Context, namespace, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[namespace], key)
	return nil
}

// Keys implements KVStore.
func (s *MemoryKVStore) Keys(_ context.Context, namespace string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.data[namespace]))
	for k := range s.data[namespace] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements KVStore.
func (s *MemoryKVStore) Close() error {
	return nil
}
