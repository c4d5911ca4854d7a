// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/df-mc/goleveldb/leveldb/opt"
	"github.com/df-mc/goleveldb/leveldb/storage"
	"github.com/df-mc/goleveldb/leveldb/util"
	"github.com/samber/oops"
)

// LevelDBKVStore stores values in an embedded LevelDB database. Keys are
// stored as namespace, a NUL separator, then the key.
type LevelDBKVStore struct {
	db *leveldb.DB
}

var _ KVStore = (*LevelDBKVStore)(nil)

// OpenLevelDB opens or creates a database directory.
func OpenLevelDB(path string) (*LevelDBKVStore, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{Compression: opt.SnappyCompression})
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	return &LevelDBKVStore{db: db}, nil
}

// OpenLevelDBMemory opens a database held entirely in memory.
func OpenLevelDBMemory() (*LevelDBKVStore, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("path", ":memory:").Wrap(err)
	}
	return &LevelDBKVStore{db: db}, nil
}

func levelKey(namespace, key string) []byte {
	b := make([]byte, 0, len(namespace)+1+len(key))
	b = append(b, namespace...)
	b = append(b, 0)
	return append(b, key...)
}

// Get implements KVStore.
func (s *LevelDBKVStore) Get(_ context.Context, namespace, key string) ([]byte, error) {
	v, err := s.db.Get(levelKey(namespace, key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, oops.With("operation", "get").With("namespace", namespace).With("key", key).Wrap(err)
	}
	return v, nil
}

// Set implements KVStore.
func (s *LevelDBKVStore) Set(_ context.Context, namespace, key string, value []byte) error {
	if err := s.db.Put(levelKey(namespace, key), value, nil); err != nil {
		return oops.With("operation", "set").With("namespace", namespace).With("key", key).Wrap(err)
	}
	return nil
}

// Delete implements KVStore.
func (s *LevelDBKVStore) Delete(_ context.Context, namespace, key string) error {
	if err := s.db.Delete(levelKey(namespace, key), nil); err != nil {
		return oops.With("operation", "delete").With("namespace", namespace).With("key", key).Wrap(err)
	}
	return nil
}

// Keys implements KVStore.
func (s *LevelDBKVStore) Keys(_ context.Context, namespace string) ([]string, error) {
	prefix := levelKey(namespace, "")
	iter := s.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	keys := []string{}
	for iter.Next() {
		keys = append(keys, string(iter.Key()[len(prefix):]))
	}
	if err := iter.Error(); err != nil {
		return nil, oops.With("operation", "keys").With("namespace", namespace).Wrap(err)
	}
	return keys, nil
}

// Close implements KVStore.
func (s *LevelDBKVStore) Close() error {
	if err := s.db.Close(); err != nil {
		return oops.With("operation", "close leveldb").Wrap(err)
	}
	return nil
}
