// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"reflect"
	"strings"

	"github.com/samber/oops"
)

// OwnerCore owns commands registered by the host itself.
const OwnerCore = "core"

// Handler runs a command. args holds one converted value per declared
// parameter. A bool false result cancels; any other result continues.
type Handler func(ctx context.Context, actor Actor, args []any) (any, error)

// Param describes one typed argument.
type Param struct {
	Name        string
	Type        reflect.Type
	Optional    bool
	Default     any
	Description string
	// Greedy collects every remaining token into the last string
	// parameter.
	Greedy bool
}

// Declaration binds a command name to a handler.
type Declaration struct {
	Name        string
	Aliases     []string
	Description string
	// Permission is checked before dispatch. Empty means anyone may run it.
	Permission string
	// Owner is the plugin id that registered the command.
	Owner  string
	Params []Param
	// ActorType restricts which actors may invoke the command. Nil
	// accepts any actor.
	ActorType reflect.Type
	Handler   Handler
}

// Provider exposes a table of commands for registration.
type Provider interface {
	Commands() []Declaration
}

// Required returns the number of non-optional parameters.
func (d *Declaration) Required() int {
	n := 0
	for _, p := range d.Params {
		if !p.Optional {
			n++
		}
	}
	return n
}

// Usage renders a one-line usage string, e.g. "give <player> <amount> [note]".
func (d *Declaration) Usage() string {
	var b strings.Builder
	b.WriteString(d.Name)
	for _, p := range d.Params {
		name := p.Name
		if p.Greedy {
			name += "..."
		}
		if p.Optional {
			b.WriteString(" [" + name + "]")
		} else {
			b.WriteString(" <" + name + ">")
		}
	}
	return b.String()
}

// Validate checks the declaration is well formed.
func (d *Declaration) Validate() error {
	if err := ValidateCommandName(d.Name); err != nil {
		return err
	}
	for _, alias := range d.Aliases {
		if err := ValidateAliasName(alias); err != nil {
			return err
		}
	}
	if d.Handler == nil {
		return invalidDeclaration(d.Name, "handler is required")
	}

	optionalSeen := false
	for i, p := range d.Params {
		if p.Type == nil {
			return invalidDeclaration(d.Name, "parameter %d has no type", i)
		}
		if p.Optional {
			optionalSeen = true
		} else if optionalSeen {
			return invalidDeclaration(d.Name, "required parameter %q follows an optional one", p.Name)
		}
		if p.Greedy && (i != len(d.Params)-1 || p.Type.Kind() != reflect.String) {
			return invalidDeclaration(d.Name, "only the last string parameter may be greedy")
		}
		if p.Default != nil && !defaultFits(reflect.TypeOf(p.Default), p.Type) {
			return invalidDeclaration(d.Name, "default for %q is not a %s", p.Name, p.Type)
		}
	}
	return nil
}

// defaultFits reports whether a default of type from can stand in for a
// parameter of type to. Numbers convert between numeric kinds only, so an
// int never becomes a one-rune string.
func defaultFits(from, to reflect.Type) bool {
	if from.AssignableTo(to) {
		return true
	}
	if !from.ConvertibleTo(to) {
		return false
	}
	switch {
	case isNumeric(from.Kind()) && isNumeric(to.Kind()):
		return true
	case from.Kind() == reflect.String && to.Kind() == reflect.String:
		return true
	case from.Kind() == reflect.Bool && to.Kind() == reflect.Bool:
		return true
	}
	return false
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// defaultFor returns the value used when an optional parameter is omitted.
func (p Param) defaultFor() any {
	if p.Default != nil {
		return p.Default
	}
	return reflect.Zero(p.Type).Interface()
}

func invalidDeclaration(name, format string, args ...any) error {
	return oops.Code(CodeInvalidDeclaration).
		With("command", name).
		Errorf(format, args...)
}
