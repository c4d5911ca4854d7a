// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package static loads plugins compiled into the host binary.
//
// Code cannot be unloaded from a running Go process, so unloading a static
// plugin only drops the objects it created. A fresh load constructs new
// ones from the registered constructors.
package static

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/plugin"
)

// Registration describes one compiled-in plugin.
type Registration struct {
	Descriptor plugin.Descriptor
	Main       func() (plugin.Plugin, error)
	Entries    []func() (plugin.EntryPoint, error)
}

// Registry holds registrations keyed by plugin id and loads them as an
// isolator for StaticPath ids.
type Registry struct {
	mu   sync.RWMutex
	regs map[string]Registration
}

var _ plugin.Isolator = (*Registry)(nil)

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{regs: make(map[string]Registration)}
}

// Add registers a compiled-in plugin. The descriptor type is forced to
// static.
func (r *Registry) Add(reg Registration) error {
	reg.Descriptor.Type = plugin.TypeStatic
	if err := reg.Descriptor.Validate(); err != nil {
		return err
	}
	if reg.Main == nil {
		return oops.In("static").With("plugin", reg.Descriptor.ID).Errorf("registration has no constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.regs[reg.Descriptor.ID]; dup {
		return oops.In("static").With("plugin", reg.Descriptor.ID).Errorf("plugin %s is already registered", reg.Descriptor.ID)
	}
	r.regs[reg.Descriptor.ID] = reg
	return nil
}

// MustAdd is Add that panics on error, for package-level registration.
func (r *Registry) MustAdd(reg Registration) {
	if err := r.Add(reg); err != nil {
		panic(err)
	}
}

// IDs lists registered plugin ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.regs))
	for id := range r.regs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Paths returns StaticPath for every registered plugin.
func (r *Registry) Paths() []string {
	ids := r.IDs()
	for i, id := range ids {
		ids[i] = plugin.StaticPath(id)
	}
	return ids
}

// Load implements plugin.Isolator.
func (r *Registry) Load(_ context.Context, path string) (plugin.Module, error) {
	id := strings.TrimPrefix(path, plugin.StaticPrefix)
	r.mu.RLock()
	reg, ok := r.regs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, oops.In("static").With("plugin", id).Errorf("no compiled-in plugin %q", id)
	}
	desc := reg.Descriptor
	return &module{exposed: plugin.Exposed{
		Descriptor: &desc,
		Main:       reg.Main,
		Entries:    append([]func() (plugin.EntryPoint, error)(nil), reg.Entries...),
	}}, nil
}

type module struct {
	mu      sync.Mutex
	exposed plugin.Exposed
}

func (m *module) Exposed() plugin.Exposed {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.exposed
}

func (m *module) Unload(context.Context) error {
	m.mu.Lock()
	m.exposed = plugin.Exposed{}
	m.mu.Unlock()
	return nil
}
