// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package native

import (
	"fmt"

	"github.com/samber/oops"
)

// MaxArgs is the maximum number of positional values in one call.
const MaxArgs = 10

// Kind is the type tag of a cross-boundary value.
type Kind int

// Value kinds accepted by Args.
const (
	KindString Kind = iota
	KindInt
	KindDouble
	KindBool
	KindTable
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindTable:
		return "table"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Args is an ordered, immutable list of typed values passed across a
// process or engine boundary.
type Args struct {
	values []any
	kinds  []Kind
}

// NewArgs validates values and packs them. Go integer types are widened to
// int64 and float32 to float64. More than MaxArgs values, or a value of an
// unsupported type, is a caller error.
func NewArgs(values ...any) (Args, error) {
	if len(values) > MaxArgs {
		return Args{}, oops.Code(CodeTooManyArgs).
			With("count", len(values)).
			With("max", MaxArgs).
			Errorf("call takes at most %d arguments, got %d", MaxArgs, len(values))
	}

	a := Args{
		values: make([]any, len(values)),
		kinds:  make([]Kind, len(values)),
	}
	for i, v := range values {
		nv, kind, err := normalize(v)
		if err != nil {
			return Args{}, oops.Code(CodeUnsupportedValue).
				With("index", i).
				With("type", fmt.Sprintf("%T", v)).
				Wrap(err)
		}
		a.values[i] = nv
		a.kinds[i] = kind
	}
	return a, nil
}

// MustArgs is NewArgs for literal argument lists. It panics on error.
func MustArgs(values ...any) Args {
	a, err := NewArgs(values...)
	if err != nil {
		panic(err)
	}
	return a
}

// Len returns the number of values.
func (a Args) Len() int {
	return len(a.values)
}

// At returns the value and its kind at position i.
func (a Args) At(i int) (any, Kind) {
	return a.values[i], a.kinds[i]
}

// Values returns a copy of the packed values.
func (a Args) Values() []any {
	out := make([]any, len(a.values))
	copy(out, a.values)
	return out
}

// String returns the string at position i, or "" if it is not a string.
func (a Args) String(i int) string {
	if i >= len(a.values) {
		return ""
	}
	s, _ := a.values[i].(string)
	return s
}

// Int returns the int at position i, or 0 if it is not an int.
func (a Args) Int(i int) int64 {
	if i >= len(a.values) {
		return 0
	}
	n, _ := a.values[i].(int64)
	return n
}

// Double returns the double at position i. Ints are widened.
func (a Args) Double(i int) float64 {
	if i >= len(a.values) {
		return 0
	}
	switch v := a.values[i].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func normalize(v any) (any, Kind, error) {
	switch t := v.(type) {
	case string:
		return t, KindString, nil
	case bool:
		return t, KindBool, nil
	case int:
		return int64(t), KindInt, nil
	case int8:
		return int64(t), KindInt, nil
	case int16:
		return int64(t), KindInt, nil
	case int32:
		return int64(t), KindInt, nil
	case int64:
		return t, KindInt, nil
	case uint8:
		return int64(t), KindInt, nil
	case uint16:
		return int64(t), KindInt, nil
	case uint32:
		return int64(t), KindInt, nil
	case float32:
		return float64(t), KindDouble, nil
	case float64:
		return t, KindDouble, nil
	case map[string]any:
		table := make(map[string]any, len(t))
		for k, inner := range t {
			nv, _, err := normalize(inner)
			if err != nil {
				return nil, 0, fmt.Errorf("table key %q: %w", k, err)
			}
			table[k] = nv
		}
		return table, KindTable, nil
	default:
		return nil, 0, fmt.Errorf("unsupported value type %T", v)
	}
}
