// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
)

// poolIface is the subset of *pgxpool.Pool the store uses; pgxmock satisfies it.
type poolIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresKVStore stores plugin data in the plugin_data table.
type PostgresKVStore struct {
	pool  poolIface
	close func()
}

var _ KVStore = (*PostgresKVStore)(nil)

// OpenPostgres connects a pool to dsn. The schema must already be migrated.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresKVStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, oops.Code("STORE_OPEN_FAILED").With("backend", "postgres").Wrap(err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, oops.Code("STORE_OPEN_FAILED").With("backend", "postgres").Wrap(err)
	}
	return &PostgresKVStore{pool: pool, close: pool.Close}, nil
}

// NewPostgresKVStore wraps an existing pool. The caller keeps ownership.
func NewPostgresKVStore(pool poolIface) *PostgresKVStore {
	return &PostgresKVStore{pool: pool}
}

// Get implements KVStore.
func (s *PostgresKVStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM plugin_data WHERE namespace = $1 AND key = $2`,
		namespace, key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, pgError(err, "get", namespace, key)
	}
	return value, nil
}

// Set implements KVStore.
func (s *PostgresKVStore) Set(ctx context.Context, namespace, key string, value []byte) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO plugin_data (namespace, key, value) VALUES ($1, $2, $3)
		 ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		namespace, key, value)
	if err != nil {
		return pgError(err, "set", namespace, key)
	}
	return nil
}

// Delete implements KVStore.
func (s *PostgresKVStore) Delete(ctx context.Context, namespace, key string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM plugin_data WHERE namespace = $1 AND key = $2`,
		namespace, key)
	if err != nil {
		return pgError(err, "delete", namespace, key)
	}
	return nil
}

// Keys implements KVStore.
func (s *PostgresKVStore) Keys(ctx context.Context, namespace string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT key FROM plugin_data WHERE namespace = $1 ORDER BY key`,
		namespace)
	if err != nil {
		return nil, pgError(err, "keys", namespace, "")
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, pgError(err, "keys", namespace, "")
	}
	return keys, nil
}

// Close implements KVStore. Stores built with NewPostgresKVStore leave the
// pool open.
func (s *PostgresKVStore) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}

func pgError(err error, op, namespace, key string) error {
	b := oops.With("operation", op).With("namespace", namespace)
	if key != "" {
		b = b.With("key", key)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable {
		return b.Code("SCHEMA_MISSING").Hint("run `pluginhost migrate up`").Wrap(err)
	}
	return b.Wrap(err)
}
