// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package server

import (
	"strings"

	"github.com/holomush/pluginhost/internal/command"
)

// ConsoleName is the name of the console actor.
const ConsoleName = "console"

// ConsoleActor is the operator at the server console. It holds every
// permission.
type ConsoleActor struct {
	out func(text string)
}

var _ command.Actor = (*ConsoleActor)(nil)

// NewConsoleActor creates a console actor writing to out.
func NewConsoleActor(out func(text string)) *ConsoleActor {
	return &ConsoleActor{out: out}
}

// Name implements command.Actor.
func (c *ConsoleActor) Name() string { return ConsoleName }

// SendMessage implements command.Actor.
func (c *ConsoleActor) SendMessage(text string) {
	if c.out != nil {
		c.out(text)
	}
}

// authorizer grants the console everything and defers to next for
// players. Without next every permission is granted.
type authorizer struct {
	next command.Authorizer
}

func (a authorizer) Allowed(actor command.Actor, permission string) bool {
	if _, ok := actor.(*ConsoleActor); ok {
		return true
	}
	if a.next == nil {
		return true
	}
	return actor != nil && a.next.Allowed(actor, permission)
}

// ActorByID implements command.ActorResolver.
func (s *Server) ActorByID(id int) (command.Actor, bool) {
	p, ok := s.Player(id)
	if !ok {
		return nil, false
	}
	return p, true
}

// ActorByName implements command.ActorResolver. Names match case
// insensitively.
func (s *Server) ActorByName(name string) (command.Actor, bool) {
	if strings.EqualFold(name, ConsoleName) {
		return s.console, true
	}
	p, ok := s.PlayerByName(name)
	if !ok {
		return nil, false
	}
	return p, true
}
