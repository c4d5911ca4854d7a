// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package native

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/pkg/errutil"
)

func TestNewArgs_PacksTypedValues(t *testing.T) {
	args, err := NewArgs("hello", 42, 1.5, true, map[string]any{"x": int32(3)})
	require.NoError(t, err)
	require.Equal(t, 5, args.Len())

	v, kind := args.At(1)
	assert.Equal(t, int64(42), v)
	assert.Equal(t, KindInt, kind)

	_, kind = args.At(4)
	assert.Equal(t, KindTable, kind)

	assert.Equal(t, "hello", args.String(0))
	assert.Equal(t, int64(42), args.Int(1))
	assert.InDelta(t, 1.5, args.Double(2), 0.0001)
	assert.InDelta(t, 42.0, args.Double(1), 0.0001)
}

func TestNewArgs_RejectsMoreThanTen(t *testing.T) {
	values := make([]any, MaxArgs+1)
	for i := range values {
		values[i] = i
	}

	_, err := NewArgs(values...)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "TOO_MANY_ARGS")
	errutil.AssertErrorContext(t, err, "count", MaxArgs+1)
}

func TestNewArgs_AcceptsExactlyTen(t *testing.T) {
	values := make([]any, MaxArgs)
	for i := range values {
		values[i] = "v"
	}

	args, err := NewArgs(values...)
	require.NoError(t, err)
	assert.Equal(t, MaxArgs, args.Len())
}

func TestNewArgs_RejectsUnsupportedTypes(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"slice", []string{"a"}},
		{"struct", struct{}{}},
		{"nested table", map[string]any{"bad": []int{1}}},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewArgs("ok", tt.value)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, "UNSUPPORTED_VALUE")
			errutil.AssertErrorContext(t, err, "index", 1)
		})
	}
}

func TestArgs_ValuesReturnsCopy(t *testing.T) {
	args := MustArgs("a", "b")
	values := args.Values()
	values[0] = "changed"
	assert.Equal(t, "a", args.String(0))
}

func TestArgs_OutOfRangeAccessorsReturnZero(t *testing.T) {
	args := MustArgs("a")
	assert.Empty(t, args.String(3))
	assert.Zero(t, args.Int(3))
	assert.Zero(t, args.Double(3))
}
