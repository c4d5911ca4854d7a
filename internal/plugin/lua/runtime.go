// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/native"
	"github.com/holomush/pluginhost/internal/plugin"
)

// runtime is the plugin object of one Lua state. The state is not safe
// for concurrent use, so every call holds mu.
type runtime struct {
	mu      sync.Mutex
	L       *lua.LState
	chunk   *lua.LFunction
	id      string
	timeout time.Duration
	env     *plugin.Env
	logger  *slog.Logger
	closed  bool
}

var _ plugin.Plugin = (*runtime)(nil)

// Attach installs the host table and runs the script body.
func (r *runtime) Attach(env *plugin.Env) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.errClosed()
	}
	r.env = env
	r.logger = env.Logger
	if r.logger == nil {
		r.logger = slog.Default().With("plugin", r.id)
	}
	r.L.SetGlobal("host", r.hostTable())
	return r.callLocked(context.Background(), "main", r.chunk, 0)
}

// OnStart calls the global on_start function when the script defines one.
func (r *runtime) OnStart(ctx context.Context) error {
	return r.callGlobal(ctx, "on_start")
}

// OnStop calls the global on_stop function when the script defines one.
func (r *runtime) OnStop(ctx context.Context) error {
	return r.callGlobal(ctx, "on_stop")
}

func (r *runtime) callGlobal(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return r.errClosed()
	}
	fn, ok := r.L.GetGlobal(name).(*lua.LFunction)
	if !ok {
		return nil
	}
	return r.callLocked(ctx, name, fn, 0)
}

// call runs fn with Go arguments and returns its first result as a Go
// value.
func (r *runtime) call(ctx context.Context, what string, fn *lua.LFunction, args ...any) (any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, r.errClosed()
	}
	values := make([]lua.LValue, len(args))
	for i, a := range args {
		values[i] = toLua(r.L, a)
	}
	if err := r.callLocked(ctx, what, fn, 1, values...); err != nil {
		return nil, err
	}
	ret := r.L.Get(-1)
	r.L.Pop(1)
	return fromLua(ret), nil
}

func (r *runtime) callLocked(ctx context.Context, what string, fn *lua.LFunction, nret int, args ...lua.LValue) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	r.L.SetContext(ctx)
	defer r.L.RemoveContext()

	if err := r.L.CallByParam(lua.P{Fn: fn, NRet: nret, Protect: true}, args...); err != nil {
		return oops.In("lua").With("plugin", r.id).With("function", what).Wrap(err)
	}
	return nil
}

func (r *runtime) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	r.env = nil
	r.L.Close()
}

func (r *runtime) errClosed() error {
	return oops.In("lua").With("plugin", r.id).Errorf("lua state of %s is closed", r.id)
}

// handler adapts a Lua function to a command handler. The function
// receives the invoking actor followed by the converted arguments.
func (r *runtime) handler(name string, fn *lua.LFunction) command.Handler {
	return func(ctx context.Context, actor command.Actor, args []any) (any, error) {
		packed, err := packArgs(args)
		if err != nil {
			return nil, err
		}
		return r.call(ctx, "command "+name, fn, append([]any{actor}, packed...)...)
	}
}

// packArgs validates handler arguments as boundary values. Actors cross
// as their names for validation and are restored afterwards.
func packArgs(args []any) ([]any, error) {
	plain := make([]any, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case nil:
			plain[i] = ""
		case command.Actor:
			plain[i] = v.Name()
		case command.Char:
			plain[i] = string(v)
		default:
			plain[i] = v
		}
	}
	packed, err := native.NewArgs(plain...)
	if err != nil {
		return nil, err
	}
	out := packed.Values()
	for i, a := range args {
		switch v := a.(type) {
		case nil:
			out[i] = nil
		case command.Actor:
			out[i] = v
		}
	}
	return out, nil
}
