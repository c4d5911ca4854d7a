// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"strings"
)

// StaticPrefix marks load paths that name compiled-in plugins.
const StaticPrefix = "static:"

// Isolator loads plugin code into its own isolation context.
type Isolator interface {
	// Load opens the plugin at path. Errors describe a malformed module
	// or a missing descriptor.
	Load(ctx context.Context, path string) (Module, error)
}

// Module is one loaded isolation context.
type Module interface {
	Exposed() Exposed
	// Unload releases every resource the context holds.
	Unload(ctx context.Context) error
}

// Exposed is what a module offers the manager.
type Exposed struct {
	Descriptor *Descriptor
	// Main constructs the plugin object.
	Main func() (Plugin, error)
	// Entries construct auxiliary entry points, attached after Main.
	Entries []func() (EntryPoint, error)
}

// EntryPoint receives the plugin environment when its module is loaded.
type EntryPoint interface {
	Attach(env *Env) error
}

// Plugin is the main entry point of a plugin.
type Plugin interface {
	EntryPoint
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
}

// StaticPath returns the load path of a compiled-in plugin.
func StaticPath(id string) string {
	return StaticPrefix + id
}

// IsStaticPath reports whether path names a compiled-in plugin.
func IsStaticPath(path string) bool {
	return strings.HasPrefix(path, StaticPrefix)
}
