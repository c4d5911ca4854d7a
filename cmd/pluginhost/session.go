// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/native"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/plugin/static"
	"github.com/holomush/pluginhost/internal/server"
)

// SessionID is the id of the compiled-in plugin that simulates player
// sessions against the in-memory engine.
const SessionID = "session"

// Permissions checked by the session commands.
const (
	PermissionSessions = "pluginhost.sessions"
	PermissionShutdown = "pluginhost.shutdown"
)

// sessionPlugin lets the console connect players, speak as them and stop
// the server.
func sessionPlugin(srv *server.Server, engine native.Engine, shutdown func()) static.Registration {
	return static.Registration{
		Descriptor: plugin.Descriptor{
			ID:      SessionID,
			Name:    "Sessions",
			Version: "1.0.0",
			Author:  "HoloMUSH Contributors",
		},
		Main: func() (plugin.Plugin, error) {
			return &session{srv: srv, engine: engine, shutdown: shutdown}, nil
		},
	}
}

type session struct {
	srv      *server.Server
	engine   native.Engine
	shutdown func()
}

func (s *session) Attach(env *plugin.Env) error {
	cmds := env.Commands
	if err := cmds.Bind("join", s.join,
		command.Describe("Connect a simulated player"),
		command.Permission(PermissionSessions),
		command.ParamNames("name"),
	); err != nil {
		return err
	}
	if err := cmds.Bind("leave", s.leave,
		command.Describe("Disconnect a simulated player"),
		command.Permission(PermissionSessions),
		command.ParamNames("name"),
	); err != nil {
		return err
	}
	if err := cmds.Bind("as", s.as,
		command.Describe("Send a chat line as a player"),
		command.Permission(PermissionSessions),
		command.ParamNames("player", "line"),
		command.Greedy(),
	); err != nil {
		return err
	}
	if err := cmds.Bind("who", s.who,
		command.Describe("List connected players"),
	); err != nil {
		return err
	}
	return cmds.Bind("shutdown", s.stop,
		command.Describe("Stop the server"),
		command.Permission(PermissionShutdown),
	)
}

func (s *session) OnStart(context.Context) error { return nil }

func (s *session) OnStop(context.Context) error { return nil }

func (s *session) join(ctx context.Context, actor command.Actor, name string) error {
	if _, ok := s.srv.PlayerByName(name); ok {
		return command.UserError(name + " is already connected.")
	}
	args, err := native.NewArgs(name)
	if err != nil {
		return err
	}
	id, err := s.engine.CreateEntity(native.CategoryPlayer, args)
	if err != nil {
		return err
	}
	p, err := s.srv.PlayerConnected(ctx, id)
	if err != nil {
		return err
	}
	actor.SendMessage(fmt.Sprintf("%s joined as player %d.", p.Name(), id))
	return nil
}

func (s *session) leave(ctx context.Context, actor command.Actor, name string) error {
	p, ok := s.srv.PlayerByName(name)
	if !ok {
		return command.UserError("No player named " + name + ".")
	}
	s.srv.PlayerDisconnected(ctx, p.ID())
	if err := s.engine.DestroyEntity(native.CategoryPlayer, p.ID()); err != nil {
		return err
	}
	actor.SendMessage(name + " left.")
	return nil
}

// as feeds line to the server as chat from the player. Lines that are not
// commands are broadcast.
func (s *session) as(ctx context.Context, _ command.Actor, name, line string) error {
	p, ok := s.srv.PlayerByName(name)
	if !ok {
		return command.UserError("No player named " + name + ".")
	}
	if !s.srv.HandleChat(ctx, p.ID(), line) {
		s.srv.Broadcast(fmt.Sprintf("<%s> %s", p.Name(), line))
	}
	return nil
}

func (s *session) who(actor command.Actor) {
	players := s.srv.Players()
	if len(players) == 0 {
		actor.SendMessage("Nobody is connected.")
		return
	}
	names := make([]string, len(players))
	for i, p := range players {
		names[i] = p.Name()
	}
	actor.SendMessage(fmt.Sprintf("Connected (%d): %s", len(names), strings.Join(names, ", ")))
}

func (s *session) stop(actor command.Actor) {
	actor.SendMessage("Shutting down.")
	s.shutdown()
}
