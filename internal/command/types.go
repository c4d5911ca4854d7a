// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package command turns text lines into typed handler invocations.
//
// A line is tokenized, its command resolved case-insensitively in a
// Registry, its arguments converted through a Chain, and the bound handler
// invoked by a Dispatcher. Failures are reported to listeners as Failure
// events and never escape as panics.
package command

import (
	"context"
	"reflect"
)

// Actor is the party invoking a command.
type Actor interface {
	Name() string
	SendMessage(text string)
}

// Enum is implemented by parameter types whose values are chosen by name.
// Options is called on the zero value. String-kinded enums convert to the
// matching option; integer-kinded enums convert to its index.
type Enum interface {
	Options() []string
}

// Char is a single-character parameter.
type Char rune

// Outcome is the result of a dispatch.
type Outcome int

// Dispatch outcomes.
const (
	// OutcomeContinue means the handler ran and did not cancel.
	OutcomeContinue Outcome = iota
	// OutcomeCancel means the handler returned false.
	OutcomeCancel
	// OutcomeVetoed means a pre-dispatch hook stopped the handler.
	OutcomeVetoed
	// OutcomeFailed means the dispatch aborted; see the returned error.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeCancel:
		return "cancel"
	case OutcomeVetoed:
		return "vetoed"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// FailureKind classifies a failed dispatch.
type FailureKind int

// Failure kinds.
const (
	NoCommand FailureKind = iota
	TooFewArgs
	NoPermissions
	BadArgument
	WrongActor
	RateLimited
	HandlerError
)

func (k FailureKind) String() string {
	switch k {
	case NoCommand:
		return "no_command"
	case TooFewArgs:
		return "too_few_args"
	case NoPermissions:
		return "no_permissions"
	case BadArgument:
		return "bad_argument"
	case WrongActor:
		return "wrong_actor"
	case RateLimited:
		return "rate_limited"
	case HandlerError:
		return "handler_error"
	default:
		return "unknown"
	}
}

// Failure describes a dispatch that did not complete.
type Failure struct {
	Kind    FailureKind
	Command string
	Line    string
	Actor   Actor
	Err     error
}

// FailureListener receives failure events.
type FailureListener func(ctx context.Context, f Failure)

// Invocation is what a pre-dispatch hook sees.
type Invocation struct {
	Declaration *Declaration
	Actor       Actor
	Line        string
	Args        []any
}

// Hook runs after arguments are converted and before the handler.
// Returning false vetoes the invocation.
type Hook func(ctx context.Context, inv *Invocation) bool

// Authorizer decides whether an actor holds a permission.
type Authorizer interface {
	Allowed(actor Actor, permission string) bool
}

// ActorResolver finds actors for actor-typed parameters.
type ActorResolver interface {
	ActorByID(id int) (Actor, bool)
	ActorByName(name string) (Actor, bool)
}

var (
	actorType   = reflect.TypeFor[Actor]()
	enumType    = reflect.TypeFor[Enum]()
	charType    = reflect.TypeFor[Char]()
	stringType  = reflect.TypeFor[string]()
	errorType   = reflect.TypeFor[error]()
	contextType = reflect.TypeFor[context.Context]()
)

// IsActorType reports whether t can hold an Actor.
func IsActorType(t reflect.Type) bool {
	return t == actorType || t.Implements(actorType)
}

// TypeByName maps the parameter type names used by script and remote
// plugins to Go types.
func TypeByName(name string) (reflect.Type, bool) {
	switch name {
	case "", "string", "text":
		return stringType, true
	case "int", "integer":
		return reflect.TypeFor[int64](), true
	case "number", "double", "float":
		return reflect.TypeFor[float64](), true
	case "bool", "boolean":
		return reflect.TypeFor[bool](), true
	case "char":
		return charType, true
	case "actor", "player":
		return actorType, true
	default:
		return nil, false
	}
}
