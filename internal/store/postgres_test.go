// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/pkg/errutil"
)

func TestPostgresKVStore_Get(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock pgxmock.PgxPoolIface)
		want      []byte
		wantCode  string
		wantErr   bool
	}{
		{
			name: "value present",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT value FROM plugin_data`).
					WithArgs("welcome", "greeting").
					WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte("hi")))
			},
			want: []byte("hi"),
		},
		{
			name: "missing key",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT value FROM plugin_data`).
					WithArgs("welcome", "greeting").
					WillReturnError(pgx.ErrNoRows)
			},
			want: nil,
		},
		{
			name: "table missing",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT value FROM plugin_data`).
					WithArgs("welcome", "greeting").
					WillReturnError(&pgconn.PgError{Code: pgerrcode.UndefinedTable})
			},
			wantErr:  true,
			wantCode: "SCHEMA_MISSING",
		},
		{
			name: "connection error",
			setupMock: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT value FROM plugin_data`).
					WithArgs("welcome", "greeting").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err, "failed to create mock")
			defer mock.Close()
			tt.setupMock(mock)

			got, err := NewPostgresKVStore(mock).Get(context.Background(), "welcome", "greeting")
			if tt.wantErr {
				require.Error(t, err)
				errutil.AssertErrorContext(t, err, "operation", "get")
				if tt.wantCode != "" {
					errutil.AssertErrorCode(t, err, tt.wantCode)
				}
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresKVStore_SetDelete(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO plugin_data`).
		WithArgs("echo", "last", []byte("hello")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM plugin_data`).
		WithArgs("echo", "last").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM plugin_data`).
		WithArgs("echo", "last").
		WillReturnError(errors.New("connection reset"))

	kv := NewPostgresKVStore(mock)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, "echo", "last", []byte("hello")))
	require.NoError(t, kv.Delete(ctx, "echo", "last"))

	err = kv.Delete(ctx, "echo", "last")
	require.Error(t, err)
	errutil.AssertErrorContext(t, err, "key", "last")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKVStore_Keys(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT key FROM plugin_data`).
		WithArgs("echo").
		WillReturnRows(pgxmock.NewRows([]string{"key"}).AddRow("a").AddRow("b"))

	keys, err := NewPostgresKVStore(mock).Keys(context.Background(), "echo")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresKVStore_CloseLeavesBorrowedPool(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	require.NoError(t, NewPostgresKVStore(mock).Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}
