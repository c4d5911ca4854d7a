// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/plugin"
)

// DefaultCallTimeout bounds a single call into a plugin state.
const DefaultCallTimeout = 5 * time.Second

// Isolator loads Lua plugins from directories holding a descriptor of
// type lua.
type Isolator struct {
	sandbox   *Sandbox
	stackSize int
	timeout   time.Duration
}

var _ plugin.Isolator = (*Isolator)(nil)

// Option configures an Isolator.
type Option func(*Isolator)

// WithCallTimeout sets how long one call into Lua may run before its
// context is cancelled.
func WithCallTimeout(d time.Duration) Option {
	return func(i *Isolator) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithCallStackSize bounds call depth inside plugin states.
func WithCallStackSize(n int) Option {
	return func(i *Isolator) { i.stackSize = n }
}

// NewIsolator creates a Lua isolator.
func NewIsolator(opts ...Option) *Isolator {
	i := &Isolator{timeout: DefaultCallTimeout}
	for _, opt := range opts {
		opt(i)
	}
	i.sandbox = NewSandbox(i.stackSize)
	return i
}

// Load reads the descriptor and entry script from dir and compiles the
// script in a fresh state. The script body runs when the plugin is
// attached, after the host table is installed.
func (i *Isolator) Load(_ context.Context, dir string) (plugin.Module, error) {
	errb := oops.In("lua").With("path", dir)

	desc, err := plugin.ReadDescriptor(dir)
	if err != nil {
		return nil, err
	}
	if desc.Type != plugin.TypeLua {
		return nil, errb.With("plugin", desc.ID).Errorf("plugin %s has type %s, not lua", desc.ID, desc.Type)
	}

	entry, err := entryPath(dir, desc.Lua.Entry)
	if err != nil {
		return nil, errb.With("plugin", desc.ID).Wrap(err)
	}
	code, err := os.ReadFile(entry) //nolint:gosec // entry is confined to the plugin directory
	if err != nil {
		return nil, errb.With("plugin", desc.ID).With("entry", desc.Lua.Entry).Hint("failed to read entry file").Wrap(err)
	}

	L, err := i.sandbox.NewState()
	if err != nil {
		return nil, errb.With("plugin", desc.ID).Wrap(err)
	}
	chunk, err := L.LoadString(string(code))
	if err != nil {
		L.Close()
		return nil, errb.With("plugin", desc.ID).With("entry", desc.Lua.Entry).Hint("syntax error").Wrap(err)
	}

	return &module{
		desc: desc,
		rt:   &runtime{L: L, chunk: chunk, id: desc.ID, timeout: i.timeout},
	}, nil
}

func entryPath(dir, entry string) (string, error) {
	if filepath.IsAbs(entry) {
		return "", oops.With("entry", entry).Errorf("entry must be relative to the plugin directory")
	}
	path := filepath.Join(dir, entry)
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", oops.With("entry", entry).Errorf("entry escapes the plugin directory")
	}
	return path, nil
}

type module struct {
	desc *plugin.Descriptor
	rt   *runtime
}

func (m *module) Exposed() plugin.Exposed {
	return plugin.Exposed{
		Descriptor: m.desc,
		Main:       func() (plugin.Plugin, error) { return m.rt, nil },
	}
}

func (m *module) Unload(context.Context) error {
	m.rt.close()
	return nil
}
