// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"reflect"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/samber/oops"
)

// Converter turns a token into a value of a parameter type.
type Converter interface {
	// Match reports whether the converter handles t.
	Match(t reflect.Type) bool
	// Convert parses token as a t.
	Convert(token string, t reflect.Type) (any, error)
}

type funcConverter struct {
	match   func(reflect.Type) bool
	convert func(string, reflect.Type) (any, error)
}

func (c funcConverter) Match(t reflect.Type) bool { return c.match(t) }

func (c funcConverter) Convert(token string, t reflect.Type) (any, error) {
	return c.convert(token, t)
}

// ConverterFunc builds a Converter from a predicate and a parse function.
func ConverterFunc(match func(reflect.Type) bool, convert func(string, reflect.Type) (any, error)) Converter {
	return funcConverter{match: match, convert: convert}
}

// For builds a Converter for exactly the type T.
func For[T any](parse func(token string) (T, error)) Converter {
	target := reflect.TypeFor[T]()
	return funcConverter{
		match: func(t reflect.Type) bool { return t == target },
		convert: func(token string, _ reflect.Type) (any, error) {
			return parse(token)
		},
	}
}

// Chain is an ordered list of converters. Registered converters are
// consulted in registration order, ahead of the built-in fallbacks; the
// first match wins.
type Chain struct {
	mu       sync.RWMutex
	custom   []Converter
	fallback []Converter
}

// NewChain creates a chain with the built-in fallbacks: enums by name,
// actors by id or name, primitives, then raw strings. resolver may be nil,
// in which case actor parameters cannot be converted.
func NewChain(resolver ActorResolver) *Chain {
	return &Chain{
		fallback: []Converter{
			enumConverter{},
			actorConverter{resolver: resolver},
			primitiveConverter{},
			passthroughConverter{},
		},
	}
}

// Register appends a converter ahead of the fallbacks.
func (c *Chain) Register(conv Converter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.custom = append(c.custom, conv)
}

// Handle converts token to t using the first matching converter.
func (c *Chain) Handle(token string, t reflect.Type) (any, error) {
	conv := c.find(t)
	if conv == nil {
		return nil, conversionError(token, t, "no converter for type")
	}
	v, err := conv.Convert(token, t)
	if err != nil {
		return nil, oops.Code(CodeConversionFailed).
			With("token", token).
			With("type", t.String()).
			Wrap(err)
	}
	return v, nil
}

func (c *Chain) find(t reflect.Type) Converter {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, conv := range c.custom {
		if conv.Match(t) {
			return conv
		}
	}
	for _, conv := range c.fallback {
		if conv.Match(t) {
			return conv
		}
	}
	return nil
}

func conversionError(token string, t reflect.Type, msg string) error {
	return oops.Code(CodeConversionFailed).
		With("token", token).
		With("type", t.String()).
		Errorf("%s", msg)
}

type enumConverter struct{}

func (enumConverter) Match(t reflect.Type) bool {
	if !t.Implements(enumType) {
		return false
	}
	switch t.Kind() {
	case reflect.String, reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func (enumConverter) Convert(token string, t reflect.Type) (any, error) {
	zero, _ := reflect.Zero(t).Interface().(Enum)
	options := zero.Options()
	for i, opt := range options {
		if !strings.EqualFold(opt, token) {
			continue
		}
		if t.Kind() == reflect.String {
			return reflect.ValueOf(opt).Convert(t).Interface(), nil
		}
		return reflect.ValueOf(i).Convert(t).Interface(), nil
	}
	return nil, oops.With("options", options).Errorf("expected one of %s", strings.Join(options, ", "))
}

type actorConverter struct {
	resolver ActorResolver
}

func (c actorConverter) Match(t reflect.Type) bool {
	return c.resolver != nil && IsActorType(t)
}

func (c actorConverter) Convert(token string, t reflect.Type) (any, error) {
	var (
		actor Actor
		found bool
	)
	if id, err := strconv.Atoi(token); err == nil {
		actor, found = c.resolver.ActorByID(id)
	}
	if !found {
		actor, found = c.resolver.ActorByName(token)
	}
	if !found {
		return nil, oops.Errorf("no player matches %q", token)
	}
	if !reflect.TypeOf(actor).AssignableTo(t) {
		return nil, oops.Errorf("%q is not a %s", token, t)
	}
	return actor, nil
}

type primitiveConverter struct{}

func (primitiveConverter) Match(t reflect.Type) bool {
	if t == charType {
		return true
	}
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func (primitiveConverter) Convert(token string, t reflect.Type) (any, error) {
	if t == charType {
		if utf8.RuneCountInString(token) != 1 {
			return nil, oops.Errorf("expected a single character")
		}
		r, _ := utf8.DecodeRuneInString(token)
		return Char(r), nil
	}

	v := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		b, err := parseBool(token)
		if err != nil {
			return nil, err
		}
		v.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(token, 10, t.Bits())
		if err != nil {
			return nil, oops.Wrap(err)
		}
		v.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(token, 10, t.Bits())
		if err != nil {
			return nil, oops.Wrap(err)
		}
		v.SetUint(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(token, t.Bits())
		if err != nil {
			return nil, oops.Wrap(err)
		}
		v.SetFloat(f)
	}
	return v.Interface(), nil
}

func parseBool(token string) (bool, error) {
	switch strings.ToLower(token) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	}
	return false, oops.Errorf("expected true or false")
}

type passthroughConverter struct{}

func (passthroughConverter) Match(t reflect.Type) bool {
	return t.Kind() == reflect.String || stringType.AssignableTo(t)
}

func (passthroughConverter) Convert(token string, t reflect.Type) (any, error) {
	if t.Kind() == reflect.String {
		return reflect.ValueOf(token).Convert(t).Interface(), nil
	}
	return token, nil
}
