// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"fmt"
	"reflect"

	"github.com/samber/oops"
)

// BindOption customizes a declaration built by Bind.
type BindOption func(*Declaration)

// Describe sets the description.
func Describe(text string) BindOption {
	return func(d *Declaration) { d.Description = text }
}

// Permission sets the required permission.
func Permission(perm string) BindOption {
	return func(d *Declaration) { d.Permission = perm }
}

// AliasNames adds alternative names.
func AliasNames(names ...string) BindOption {
	return func(d *Declaration) { d.Aliases = append(d.Aliases, names...) }
}

// Owner sets the owning plugin id.
func Owner(id string) BindOption {
	return func(d *Declaration) { d.Owner = id }
}

// ParamNames names the typed parameters in order.
func ParamNames(names ...string) BindOption {
	return func(d *Declaration) {
		for i := range d.Params {
			if i < len(names) {
				d.Params[i].Name = names[i]
			}
		}
	}
}

// Defaults marks the trailing len(values) parameters optional with the
// given defaults. A nil value selects the zero value.
func Defaults(values ...any) BindOption {
	return func(d *Declaration) {
		start := len(d.Params) - len(values)
		for i, v := range values {
			if start+i < 0 {
				continue
			}
			d.Params[start+i].Optional = true
			d.Params[start+i].Default = v
		}
	}
}

// Greedy makes the last parameter swallow the rest of the line.
func Greedy() BindOption {
	return func(d *Declaration) {
		if n := len(d.Params); n > 0 {
			d.Params[n-1].Greedy = true
		}
	}
}

// Bind builds a declaration from a function.
//
// fn may take a leading context.Context, then an actor (Actor or a type
// implementing it), then typed arguments. It may return nothing, a bool,
// an error, or a value and an error. A function without an actor parameter
// accepts any actor.
func Bind(name string, fn any, opts ...BindOption) (Declaration, error) {
	fv := reflect.ValueOf(fn)
	if fv.Kind() != reflect.Func {
		return Declaration{}, invalidDeclaration(name, "handler must be a function, got %T", fn)
	}
	ft := fv.Type()
	if ft.IsVariadic() {
		return Declaration{}, invalidDeclaration(name, "variadic handlers are not supported")
	}

	in := 0
	wantCtx := in < ft.NumIn() && ft.In(in) == contextType
	if wantCtx {
		in++
	}
	var actorParam reflect.Type
	if in < ft.NumIn() && IsActorType(ft.In(in)) {
		actorParam = ft.In(in)
		in++
	}

	decl := Declaration{Name: name, Owner: OwnerCore}
	if actorParam != nil && actorParam != actorType {
		decl.ActorType = actorParam
	}
	for i := in; i < ft.NumIn(); i++ {
		decl.Params = append(decl.Params, Param{
			Name: fmt.Sprintf("arg%d", i-in+1),
			Type: ft.In(i),
		})
	}

	result, err := resultShape(ft)
	if err != nil {
		return Declaration{}, invalidDeclaration(name, "%s", err.Error())
	}

	first := in
	decl.Handler = func(ctx context.Context, actor Actor, args []any) (any, error) {
		call := make([]reflect.Value, 0, ft.NumIn())
		if wantCtx {
			call = append(call, reflect.ValueOf(ctx))
		}
		if actorParam != nil {
			call = append(call, valueFor(actor, actorParam))
		}
		for i, a := range args {
			call = append(call, valueFor(a, ft.In(first+i)))
		}
		return result(fv.Call(call))
	}

	for _, opt := range opts {
		opt(&decl)
	}
	if err := decl.Validate(); err != nil {
		return Declaration{}, err
	}
	return decl, nil
}

// MustBind is Bind for static command tables. It panics on error.
func MustBind(name string, fn any, opts ...BindOption) Declaration {
	d, err := Bind(name, fn, opts...)
	if err != nil {
		panic(err)
	}
	return d
}

func valueFor(v any, t reflect.Type) reflect.Value {
	if v == nil {
		return reflect.Zero(t)
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv
	}
	return rv.Convert(t)
}

type resultFunc func([]reflect.Value) (any, error)

func resultShape(ft reflect.Type) (resultFunc, error) {
	asErr := func(v reflect.Value) error {
		if v.IsNil() {
			return nil
		}
		return v.Interface().(error) //nolint:errcheck,forcetypeassert // checked by resultShape
	}

	switch ft.NumOut() {
	case 0:
		return func([]reflect.Value) (any, error) { return nil, nil }, nil
	case 1:
		if ft.Out(0) == errorType {
			return func(out []reflect.Value) (any, error) { return nil, asErr(out[0]) }, nil
		}
		return func(out []reflect.Value) (any, error) { return out[0].Interface(), nil }, nil
	case 2:
		if ft.Out(1) != errorType {
			return nil, oops.Errorf("second return value must be error")
		}
		return func(out []reflect.Value) (any, error) {
			return out[0].Interface(), asErr(out[1])
		}, nil
	default:
		return nil, oops.Errorf("handlers return at most two values")
	}
}
