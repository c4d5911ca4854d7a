// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"log/slog"
	"sync"

	"github.com/holomush/pluginhost/internal/api"
	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/store"
)

// Env is handed to every entry point of a plugin.
type Env struct {
	Descriptor *Descriptor
	Logger     *slog.Logger
	Storage    *store.Namespace
	Commands   *Commands
	Server     api.Server
	Plugins    Directory
}

// Directory gives plugins read access to their peers.
type Directory interface {
	GetPlugin(id string) (*Instance, bool)
	Plugins() []*Instance
}

// CommandSink receives a plugin's commands on start and drops them on stop.
// command.Registry implements it.
type CommandSink interface {
	Register(decls ...command.Declaration) error
	Unregister(owner string) int
}

// Stager is implemented by server handles that hold what a plugin asks
// for until it starts. Mark and Rollback bracket OnStart so that a failed
// start can be retried with only the Attach-time effects staged.
type Stager interface {
	Mark() int
	Rollback(mark int)
	Commit()
}

// Commands collects the declarations of one plugin. They reach the
// command sink once OnStart succeeds; declarations added after that go
// straight to the sink.
type Commands struct {
	owner string
	mu    sync.Mutex
	decls []command.Declaration
	sink  CommandSink
	live  bool
}

// NewCommands creates a collector owned by the plugin id owner.
func NewCommands(owner string) *Commands {
	return &Commands{owner: owner}
}

// Register validates and records declarations. Owner is forced to the
// plugin id.
func (c *Commands) Register(decls ...command.Declaration) error {
	decls = append([]command.Declaration(nil), decls...)
	for i := range decls {
		decls[i].Owner = c.owner
		if err := decls[i].Validate(); err != nil {
			return err
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live && c.sink != nil {
		if err := c.sink.Register(decls...); err != nil {
			return err
		}
	}
	c.decls = append(c.decls, decls...)
	return nil
}

// Bind builds a declaration with command.Bind and records it.
func (c *Commands) Bind(name string, fn any, opts ...command.BindOption) error {
	decl, err := command.Bind(name, fn, opts...)
	if err != nil {
		return err
	}
	return c.Register(decl)
}

// Declarations returns the recorded declarations.
func (c *Commands) Declarations() []command.Declaration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]command.Declaration(nil), c.decls...)
}

func (c *Commands) mark() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.decls)
}

func (c *Commands) rollback(mark int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if mark < len(c.decls) {
		c.decls = c.decls[:mark]
	}
}

// commit registers every recorded declaration with sink, which may be
// nil, and passes later ones through.
func (c *Commands) commit(sink CommandSink) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sink != nil {
		if err := sink.Register(c.decls...); err != nil {
			return err
		}
	}
	c.sink = sink
	c.live = true
	return nil
}
