// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package api defines the server surface visible to plugins.
//
// Every plugin receives a Server scoped to its own id: timers, queued
// tasks and command hooks created through it are released when the
// plugin stops.
package api

import (
	"context"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"

	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/entity"
	"github.com/holomush/pluginhost/internal/schedule"
)

// Server is the facade plugins call into.
type Server interface {
	Player(id int) (*entity.Player, bool)
	PlayerByName(name string) (*entity.Player, bool)
	Players() []*entity.Player

	Vehicle(id int) (*entity.Vehicle, bool)
	CreateVehicle(ctx context.Context, model int64, pos mgl64.Vec3) (*entity.Vehicle, error)
	Object(id int) (*entity.Object, bool)
	CreateObject(ctx context.Context, model int64, pos mgl64.Vec3) (*entity.Object, error)

	// Broadcast sends text to every connected player.
	Broadcast(text string)
	// Execute dispatches a command line as actor.
	Execute(ctx context.Context, line string, actor command.Actor) (command.Outcome, error)

	// Schedule runs task on the tick goroutine at the next tick.
	Schedule(task schedule.Task)
	After(delay time.Duration, task schedule.Task) ulid.ULID
	Every(interval time.Duration, task schedule.Task) (ulid.ULID, error)
	Cancel(id ulid.ULID) bool

	// OnCommand installs a pre-dispatch hook. Returning false vetoes.
	OnCommand(hook command.Hook)
}
