// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package server

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/static"
)

// AdminID is the id of the built-in administration plugin.
const AdminID = "admin"

// PermissionManagePlugins allows starting, stopping and restarting plugins.
const PermissionManagePlugins = "pluginhost.plugins.manage"

// PluginAdmin is the part of plugin.Manager the admin commands drive.
type PluginAdmin interface {
	Plugins() []*plugin.Instance
	GetPlugin(id string) (*plugin.Instance, bool)
	Failures() []plugin.Failure
	Load(ctx context.Context, path string) (*plugin.Instance, error)
	Start(ctx context.Context, id string) error
	Stop(ctx context.Context, id string, force bool) error
	Restart(ctx context.Context, id string) error
}

type pluginAction string

const (
	actionStart   pluginAction = "start"
	actionStop    pluginAction = "stop"
	actionRestart pluginAction = "restart"
)

func (pluginAction) Options() []string {
	return []string{string(actionStart), string(actionStop), string(actionRestart)}
}

// stopMode is "graceful" or "force"; it converts to its option index.
type stopMode int

const (
	stopGraceful stopMode = iota
	stopForce
)

func (stopMode) Options() []string {
	return []string{"graceful", "force"}
}

// AdminPlugin returns the registration of the built-in plugin providing
// plugins, plugin, help and alias.
func (s *Server) AdminPlugin(mgr PluginAdmin) static.Registration {
	return static.Registration{
		Descriptor: plugin.Descriptor{
			ID:      AdminID,
			Name:    "Administration",
			Version: "1.0.0",
			Author:  "HoloMUSH Contributors",
		},
		Main: func() (plugin.Plugin, error) {
			return &admin{s: s, mgr: mgr}, nil
		},
	}
}

type admin struct {
	s   *Server
	mgr PluginAdmin
}

func (a *admin) Attach(env *plugin.Env) error {
	cmds := env.Commands
	if err := cmds.Bind("plugins", a.list,
		command.Describe("List plugins and their state"),
		command.AliasNames("pl"),
	); err != nil {
		return err
	}
	if err := cmds.Bind("plugin", a.control,
		command.Describe("Start, stop or restart a plugin"),
		command.Permission(PermissionManagePlugins),
		command.ParamNames("action", "id", "mode"),
		command.Defaults(stopGraceful),
	); err != nil {
		return err
	}
	if err := cmds.Bind("help", a.help,
		command.Describe("List commands or show the usage of one"),
		command.ParamNames("command"),
		command.Defaults(""),
	); err != nil {
		return err
	}
	return cmds.Bind("alias", a.alias,
		command.Describe("List, set or remove your command aliases"),
		command.ParamNames("name", "expansion"),
		command.Defaults("", ""),
		command.Greedy(),
	)
}

func (a *admin) OnStart(context.Context) error { return nil }

func (a *admin) OnStop(context.Context) error { return nil }

func (a *admin) list(actor command.Actor) {
	instances := a.mgr.Plugins()
	if len(instances) == 0 {
		actor.SendMessage("No plugins.")
		return
	}
	actor.SendMessage(fmt.Sprintf("Plugins (%d):", len(instances)))
	for _, inst := range instances {
		d := inst.Descriptor()
		line := fmt.Sprintf("  %s %s [%s]", d.ID, d.Version, inst.State())
		if inst.State() == plugin.StateFailed && inst.Err() != nil {
			line += ": " + inst.Err().Error()
		}
		actor.SendMessage(line)
	}
	for _, f := range a.mgr.Failures() {
		if f.ID == "" {
			actor.SendMessage(fmt.Sprintf("  %s: %v", f.Path, f.Err))
		}
	}
}

func (a *admin) control(ctx context.Context, actor command.Actor, action pluginAction, id string, mode stopMode) error {
	var err error
	switch action {
	case actionStart:
		err = a.start(ctx, id)
	case actionStop:
		err = a.mgr.Stop(ctx, id, mode == stopForce)
	case actionRestart:
		err = a.mgr.Restart(ctx, id)
	}
	if err != nil {
		return command.UserError(fmt.Sprintf("Could not %s %s: %v", action, id, err))
	}
	actor.SendMessage(fmt.Sprintf("Plugin %s: %s done.", id, action))
	return nil
}

// start loads a stopped or failed plugin again before starting it.
func (a *admin) start(ctx context.Context, id string) error {
	inst, ok := a.mgr.GetPlugin(id)
	if !ok {
		return plugin.ErrNotFound(id)
	}
	if state := inst.State(); state == plugin.StateStopped || state == plugin.StateFailed {
		if _, err := a.mgr.Load(ctx, inst.Path()); err != nil {
			return err
		}
	}
	return a.mgr.Start(ctx, id)
}

func (a *admin) help(actor command.Actor, name string) error {
	if name != "" {
		decl, ok := a.s.registry.Get(strings.TrimPrefix(name, a.s.prefix))
		if !ok {
			return command.UserError("No such command: " + name)
		}
		actor.SendMessage("Usage: " + a.s.prefix + decl.Usage())
		if decl.Description != "" {
			actor.SendMessage("  " + decl.Description)
		}
		if len(decl.Aliases) > 0 {
			actor.SendMessage("  Aliases: " + strings.Join(decl.Aliases, ", "))
		}
		return nil
	}

	actor.SendMessage("Commands:")
	for _, decl := range a.s.registry.All() {
		if decl.Permission != "" && !a.s.auth.Allowed(actor, decl.Permission) {
			continue
		}
		line := "  " + a.s.prefix + decl.Name
		if decl.Description != "" {
			line += " - " + decl.Description
		}
		actor.SendMessage(line)
	}
	return nil
}

func (a *admin) alias(actor command.Actor, name, expansion string) error {
	aliases := a.s.aliases
	switch {
	case name == "":
		visible := aliases.For(actor.Name())
		if len(visible) == 0 {
			actor.SendMessage("No aliases.")
			return nil
		}
		keys := make([]string, 0, len(visible))
		for k := range visible {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			actor.SendMessage(fmt.Sprintf("  %s = %s", k, visible[k]))
		}
	case expansion == "":
		if !aliases.Remove(actor.Name(), name) {
			return command.UserError("No alias named " + name)
		}
		actor.SendMessage("Alias " + name + " removed.")
	default:
		if err := aliases.Set(actor.Name(), name, strings.TrimPrefix(expansion, a.s.prefix)); err != nil {
			return command.UserError(fmt.Sprintf("Could not set alias %s: %v", name, err))
		}
		actor.SendMessage(fmt.Sprintf("Alias %s = %s", name, expansion))
	}
	return nil
}
