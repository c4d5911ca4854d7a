// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package lua isolates plugins written in Lua. Every plugin runs in its own
// sandboxed gopher-lua state; unloading closes the state.
package lua

import (
	"github.com/samber/oops"
	lua "github.com/yuin/gopher-lua"
)

// DefaultCallStackSize bounds Lua call depth in a plugin state.
const DefaultCallStackSize = 256

type library struct {
	name string
	open lua.LGFunction
}

// sandboxLibraries are opened in every plugin state. os, io, debug,
// package, channel and coroutine are not.
var sandboxLibraries = []library{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

// blockedGlobals read files or compile chunks at run time.
var blockedGlobals = []string{"dofile", "loadfile", "loadstring", "load", "require"}

// Sandbox builds plugin states with a restricted library set.
type Sandbox struct {
	libraries     []library
	callStackSize int
}

// NewSandbox creates a sandbox whose states allow callStackSize nested
// calls. Non-positive sizes use DefaultCallStackSize.
func NewSandbox(callStackSize int) *Sandbox {
	if callStackSize <= 0 {
		callStackSize = DefaultCallStackSize
	}
	return &Sandbox{libraries: sandboxLibraries, callStackSize: callStackSize}
}

// NewState opens a fresh state. The caller owns it and must Close it.
func (s *Sandbox) NewState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: s.callStackSize,
	})
	for _, lib := range s.libraries {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		if err := L.PCall(1, 0, nil); err != nil {
			L.Close()
			return nil, oops.In("lua").With("library", lib.name).Wrapf(err, "open library")
		}
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L, nil
}
