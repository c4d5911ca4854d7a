// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/holomush/pluginhost/internal/api"
	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/static"
)

// recorder collects lifecycle calls across plugins in call order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fakePlugin struct {
	id       string
	rec      *recorder
	commands []string
	startErr error
	stopErr  error
	panicky  bool
	env      *plugin.Env
	onAttach func(env *plugin.Env) error
	onStart  func(env *plugin.Env) error
}

func (p *fakePlugin) Attach(env *plugin.Env) error {
	p.env = env
	for _, name := range p.commands {
		if err := env.Commands.Bind(name, func() {}); err != nil {
			return err
		}
	}
	if p.onAttach != nil {
		return p.onAttach(env)
	}
	return nil
}

func (p *fakePlugin) OnStart(context.Context) error {
	if p.panicky {
		panic("start exploded")
	}
	p.rec.add("start:" + p.id)
	if p.onStart != nil {
		if err := p.onStart(p.env); err != nil {
			return err
		}
	}
	return p.startErr
}

func (p *fakePlugin) OnStop(context.Context) error {
	p.rec.add("stop:" + p.id)
	return p.stopErr
}

// fixture wires a manager to a static registry and a command registry.
type fixture struct {
	rec      *recorder
	statics  *static.Registry
	commands *command.Registry
	cleaned  []string
	manager  *plugin.Manager
	plugins  map[string]*fakePlugin
}

func newFixture(opts ...plugin.ManagerOption) *fixture {
	f := &fixture{
		rec:      &recorder{},
		statics:  static.NewRegistry(),
		commands: command.NewRegistry(),
		plugins:  make(map[string]*fakePlugin),
	}
	base := []plugin.ManagerOption{
		plugin.WithIsolator(plugin.TypeStatic, f.statics),
		plugin.WithCommandSink(f.commands),
		plugin.WithCleanup(func(owner string) { f.cleaned = append(f.cleaned, owner) }),
	}
	f.manager = plugin.NewManager(append(base, opts...)...)
	return f
}

// add registers a static plugin whose constructor returns the plugin
// built by configure each time it is called.
func (f *fixture) add(id string, deps []string, configure func(p *fakePlugin)) {
	f.statics.MustAdd(static.Registration{
		Descriptor: plugin.Descriptor{ID: id, Version: "1.0.0", Dependencies: deps},
		Main: func() (plugin.Plugin, error) {
			p := &fakePlugin{id: id, rec: f.rec}
			if configure != nil {
				configure(p)
			}
			f.plugins[id] = p
			return p, nil
		},
	})
}

var errBoom = errors.New("boom")

// isolatorFunc adapts a function to plugin.Isolator.
type isolatorFunc func(ctx context.Context, path string) (plugin.Module, error)

func (f isolatorFunc) Load(ctx context.Context, path string) (plugin.Module, error) {
	return f(ctx, path)
}

// stagingServer counts effects the way a staged server handle holds them.
type stagingServer struct {
	api.Server
	pending   int
	committed int
	calls     []string
}

func (s *stagingServer) Mark() int { return s.pending }

func (s *stagingServer) Rollback(mark int) {
	s.calls = append(s.calls, fmt.Sprintf("rollback:%d", mark))
	s.pending = mark
}

func (s *stagingServer) Commit() {
	s.calls = append(s.calls, "commit")
	s.committed += s.pending
	s.pending = 0
}

type stubModule struct {
	exposed  plugin.Exposed
	unloaded bool
}

func (m *stubModule) Exposed() plugin.Exposed { return m.exposed }

func (m *stubModule) Unload(context.Context) error {
	m.unloaded = true
	return nil
}

func staticReg(id string, main func() (plugin.Plugin, error)) static.Registration {
	return static.Registration{
		Descriptor: plugin.Descriptor{ID: id, Version: "1.0.0"},
		Main:       main,
	}
}
