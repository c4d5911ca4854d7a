// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//nolint:gocritic // captLocal: L is the idiomatic name for lua.LState
package lua

import (
	"context"
	"reflect"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/pkg/errutil"
)

// hostTable builds the "host" global. Functions that can fail return
// (value, err) or err, with err nil on success.
func (r *runtime) hostTable() *lua.LTable {
	L := r.L
	mod := L.NewTable()
	fns := map[string]lua.LGFunction{
		"log":            r.hostLog,
		"new_request_id": hostNewRequestID,
		"kv_get":         r.hostKVGet,
		"kv_set":         r.hostKVSet,
		"kv_delete":      r.hostKVDelete,
		"kv_keys":        r.hostKVKeys,
		"command":        r.hostCommand,
		"on_command":     r.hostOnCommand,
		"send":           r.hostSend,
		"broadcast":      r.hostBroadcast,
		"players":        r.hostPlayers,
		"schedule":       r.hostSchedule,
		"after":          r.hostAfter,
		"every":          r.hostEvery,
		"cancel":         r.hostCancel,
	}
	for name, fn := range fns {
		L.SetField(mod, name, L.NewFunction(fn))
	}
	L.SetField(mod, "id", lua.LString(r.id))
	return mod
}

func pushError(L *lua.LState, msg string) int {
	L.Push(lua.LNil)
	L.Push(lua.LString(msg))
	return 2
}

func pushSuccess(L *lua.LState, value lua.LValue) int {
	L.Push(value)
	L.Push(lua.LNil)
	return 2
}

func callContext(L *lua.LState) context.Context {
	if ctx := L.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (r *runtime) hostLog(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)
	ctx := callContext(L)
	switch level {
	case "debug":
		r.logger.DebugContext(ctx, message)
	case "warn":
		r.logger.WarnContext(ctx, message)
	case "error":
		r.logger.ErrorContext(ctx, message)
	default:
		r.logger.InfoContext(ctx, message)
	}
	return 0
}

func hostNewRequestID(L *lua.LState) int {
	L.Push(lua.LString(ulid.Make().String()))
	return 1
}

func (r *runtime) hostKVGet(L *lua.LState) int {
	key := L.CheckString(1)
	if r.env.Storage == nil {
		return pushError(L, "storage not available")
	}
	value, err := r.env.Storage.Get(callContext(L), key)
	if err != nil {
		return pushError(L, err.Error())
	}
	if value == nil {
		return pushSuccess(L, lua.LNil)
	}
	return pushSuccess(L, lua.LString(value))
}

func (r *runtime) hostKVSet(L *lua.LState) int {
	key := L.CheckString(1)
	value := L.CheckString(2)
	if r.env.Storage == nil {
		L.Push(lua.LString("storage not available"))
		return 1
	}
	if err := r.env.Storage.Set(callContext(L), key, []byte(value)); err != nil {
		L.Push(lua.LString(err.Error()))
		return 1
	}
	return 0
}

func (r *runtime) hostKVDelete(L *lua.LState) int {
	key := L.CheckString(1)
	if r.env.Storage == nil {
		L.Push(lua.LString("storage not available"))
		return 1
	}
	if err := r.env.Storage.Delete(callContext(L), key); err != nil {
		L.Push(lua.LString(err.Error()))
		return 1
	}
	return 0
}

func (r *runtime) hostKVKeys(L *lua.LState) int {
	if r.env.Storage == nil {
		return pushError(L, "storage not available")
	}
	keys, err := r.env.Storage.Keys(callContext(L))
	if err != nil {
		return pushError(L, err.Error())
	}
	return pushSuccess(L, toLua(L, keys))
}

// hostCommand declares a command from a table:
//
//	host.command{
//	  name = "greet", description = "...", permission = "...",
//	  aliases = {"hi"},
//	  params = {"target", {name = "times", type = "int", default = 1}},
//	  handler = function(actor, target, times) ... end,
//	}
//
// Invalid declarations raise a Lua error.
func (r *runtime) hostCommand(L *lua.LState) int {
	decl, err := r.declaration(L.CheckTable(1))
	if err != nil {
		L.RaiseError("%s", err.Error())
		return 0
	}
	if err := r.env.Commands.Register(decl); err != nil {
		L.RaiseError("%s", err.Error())
	}
	return 0
}

func (r *runtime) declaration(spec *lua.LTable) (command.Declaration, error) {
	name := lua.LVAsString(spec.RawGetString("name"))
	errb := oops.In("lua").With("plugin", r.id).With("command", name)

	fn, ok := spec.RawGetString("handler").(*lua.LFunction)
	if !ok {
		return command.Declaration{}, errb.Errorf("command %q needs a handler function", name)
	}
	decl := command.Declaration{
		Name:        name,
		Description: lua.LVAsString(spec.RawGetString("description")),
		Permission:  lua.LVAsString(spec.RawGetString("permission")),
		Aliases:     stringList(spec.RawGetString("aliases")),
		Handler:     r.handler(name, fn),
	}

	if params, ok := spec.RawGetString("params").(*lua.LTable); ok {
		for i := 1; i <= params.Len(); i++ {
			p, err := param(params.RawGetInt(i))
			if err != nil {
				return command.Declaration{}, errb.With("param", i).Wrap(err)
			}
			decl.Params = append(decl.Params, p)
		}
	}
	return decl, nil
}

// param reads a parameter given as a bare name or as a table with name,
// type, optional, default, greedy and description fields.
func param(v lua.LValue) (command.Param, error) {
	if s, ok := v.(lua.LString); ok {
		return command.Param{Name: string(s), Type: reflect.TypeFor[string]()}, nil
	}
	t, ok := v.(*lua.LTable)
	if !ok {
		return command.Param{}, oops.Errorf("parameter must be a name or a table, got %s", v.Type())
	}
	typeName := lua.LVAsString(t.RawGetString("type"))
	typ, ok := command.TypeByName(typeName)
	if !ok {
		return command.Param{}, oops.With("type", typeName).Errorf("unknown parameter type %q", typeName)
	}
	p := command.Param{
		Name:        lua.LVAsString(t.RawGetString("name")),
		Type:        typ,
		Optional:    lua.LVAsBool(t.RawGetString("optional")),
		Greedy:      lua.LVAsBool(t.RawGetString("greedy")),
		Description: lua.LVAsString(t.RawGetString("description")),
	}
	if def := t.RawGetString("default"); def != lua.LNil {
		p.Optional = true
		p.Default = coerce(fromLua(def), typ)
	}
	return p, nil
}

// coerce converts a Lua default to the parameter type where Go allows it.
func coerce(v any, typ reflect.Type) any {
	if s, ok := v.(string); ok && typ == reflect.TypeFor[command.Char]() {
		for _, c := range s {
			return command.Char(c)
		}
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || rv.Type() == typ {
		return v
	}
	if rv.Kind() != reflect.String && rv.Type().ConvertibleTo(typ) {
		return rv.Convert(typ).Interface()
	}
	return v
}

// hostOnCommand installs a pre-dispatch hook. The function receives the
// actor, the command name and the converted arguments; returning false
// vetoes the command.
func (r *runtime) hostOnCommand(L *lua.LState) int {
	fn := L.CheckFunction(1)
	if r.env.Server == nil {
		L.RaiseError("server not available")
		return 0
	}
	r.env.Server.OnCommand(func(ctx context.Context, inv *command.Invocation) bool {
		packed, err := packArgs(inv.Args)
		if err != nil {
			errutil.LogError(r.logger, "command hook arguments rejected", err)
			return true
		}
		args := append([]any{inv.Actor, inv.Declaration.Name}, packed...)
		ret, err := r.call(ctx, "hook", fn, args...)
		if err != nil {
			errutil.LogError(r.logger, "command hook failed", err)
			return true
		}
		allow, isBool := ret.(bool)
		return !isBool || allow
	})
	return 0
}

func (r *runtime) hostSend(L *lua.LState) int {
	name := L.CheckString(1)
	text := L.CheckString(2)
	if r.env.Server == nil {
		return pushError(L, "server not available")
	}
	p, ok := r.env.Server.PlayerByName(name)
	if !ok {
		return pushError(L, "player "+name+" not found")
	}
	p.SendMessage(text)
	return pushSuccess(L, lua.LTrue)
}

func (r *runtime) hostBroadcast(L *lua.LState) int {
	text := L.CheckString(1)
	if r.env.Server != nil {
		r.env.Server.Broadcast(text)
	}
	return 0
}

func (r *runtime) hostPlayers(L *lua.LState) int {
	names := []string{}
	if r.env.Server != nil {
		for _, p := range r.env.Server.Players() {
			names = append(names, p.Name())
		}
	}
	L.Push(toLua(L, names))
	return 1
}

// task wraps a Lua function for the tick goroutine. Errors are logged.
func (r *runtime) task(what string, fn *lua.LFunction) func(context.Context) {
	return func(ctx context.Context) {
		if _, err := r.call(ctx, what, fn); err != nil {
			errutil.LogError(r.logger, "lua "+what+" failed", err)
		}
	}
}

func (r *runtime) hostSchedule(L *lua.LState) int {
	fn := L.CheckFunction(1)
	if r.env.Server == nil {
		L.RaiseError("server not available")
		return 0
	}
	r.env.Server.Schedule(r.task("task", fn))
	return 0
}

func (r *runtime) hostAfter(L *lua.LState) int {
	ms := L.CheckInt64(1)
	fn := L.CheckFunction(2)
	if r.env.Server == nil {
		return pushError(L, "server not available")
	}
	id := r.env.Server.After(time.Duration(ms)*time.Millisecond, r.task("timer", fn))
	return pushSuccess(L, lua.LString(id.String()))
}

func (r *runtime) hostEvery(L *lua.LState) int {
	ms := L.CheckInt64(1)
	fn := L.CheckFunction(2)
	if r.env.Server == nil {
		return pushError(L, "server not available")
	}
	id, err := r.env.Server.Every(time.Duration(ms)*time.Millisecond, r.task("timer", fn))
	if err != nil {
		return pushError(L, err.Error())
	}
	return pushSuccess(L, lua.LString(id.String()))
}

func (r *runtime) hostCancel(L *lua.LState) int {
	id, err := ulid.Parse(L.CheckString(1))
	if err != nil || r.env.Server == nil {
		L.Push(lua.LFalse)
		return 1
	}
	L.Push(lua.LBool(r.env.Server.Cancel(id)))
	return 1
}
