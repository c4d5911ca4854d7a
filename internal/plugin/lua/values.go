// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"fmt"
	"math"

	lua "github.com/yuin/gopher-lua"

	"github.com/holomush/pluginhost/internal/command"
)

// maxExactInt is the largest integer a Lua number holds exactly.
const maxExactInt = 1 << 53

func toLua(L *lua.LState, v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case command.Actor:
		return actorTable(L, val)
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int64:
		return lua.LNumber(val)
	case int:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case map[string]any:
		t := L.NewTable()
		for k, inner := range val {
			t.RawSetString(k, toLua(L, inner))
		}
		return t
	case []string:
		t := L.NewTable()
		for _, s := range val {
			t.Append(lua.LString(s))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

// fromLua converts a Lua value to Go. Integral numbers become int64.
// Tables become map[string]any keyed by the string form of each key.
func fromLua(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LBool:
		return bool(val)
	case lua.LString:
		return string(val)
	case lua.LNumber:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < maxExactInt {
			return int64(f)
		}
		return f
	case *lua.LTable:
		out := make(map[string]any)
		val.ForEach(func(k, inner lua.LValue) {
			out[k.String()] = fromLua(inner)
		})
		return out
	default:
		return nil
	}
}

// actorTable exposes an actor to Lua as {name = ..., send = fn}. send
// accepts both actor.send(text) and actor:send(text).
func actorTable(L *lua.LState, actor command.Actor) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("name", lua.LString(actor.Name()))
	t.RawSetString("send", L.NewFunction(func(L *lua.LState) int {
		actor.SendMessage(L.CheckString(L.GetTop()))
		return 0
	}))
	return t
}

func stringList(v lua.LValue) []string {
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	out := make([]string, 0, t.Len())
	for i := 1; i <= t.Len(); i++ {
		out = append(out, lua.LVAsString(t.RawGetInt(i)))
	}
	return out
}
