// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package entity

import (
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/holomush/pluginhost/internal/native"
)

// playerNamespace seeds the name-derived account ids.
var playerNamespace = uuid.MustParse("6f1c7d6e-52b3-4d0a-9a3e-3a1f0c8d2b11")

// Player wraps a connected player. It satisfies the command actor
// interface.
type Player struct {
	base
}

var _ Positionable = (*Player)(nil)

// NewPlayer builds a player wrapper. Use a Pool rather than calling this
// directly so that one id maps to one wrapper.
func NewPlayer(engine native.Engine, id int) *Player {
	return &Player{base{engine: engine, handle: Handle{Category: native.CategoryPlayer, ID: id}}}
}

// Name returns the player's name, or a placeholder if the player is gone.
func (p *Player) Name() string {
	v, err := p.property("name")
	if err != nil {
		return fmt.Sprintf("player#%d", p.handle.ID)
	}
	s, _ := v.(string)
	return s
}

// AccountID derives a stable account id from the player's name.
func (p *Player) AccountID() uuid.UUID {
	return uuid.NewSHA1(playerNamespace, []byte(p.Name()))
}

// SendMessage delivers text to the player. Delivery to a disconnected
// player is logged and dropped.
func (p *Player) SendMessage(text string) {
	if err := p.engine.SendMessage(p.handle.ID, text); err != nil {
		slog.Debug("message dropped", "player", p.handle.ID, "error", err)
	}
}

// String implements fmt.Stringer.
func (p *Player) String() string {
	return fmt.Sprintf("%s(%d)", p.Name(), p.handle.ID)
}
