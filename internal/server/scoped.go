// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package server

import (
	"context"
	"sync"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/oklog/ulid/v2"

	"github.com/holomush/pluginhost/internal/api"
	"github.com/holomush/pluginhost/internal/command"
	"github.com/holomush/pluginhost/internal/entity"
	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/internal/schedule"
)

// scoped is the api.Server handed to one plugin. Everything it schedules
// or hooks is tagged with owner so release can drop it.
//
// A handle made for the plugin manager starts out staged: hooks, tasks
// and timers are held until Commit, so a plugin that is loaded but not
// started has no effect on the server.
type scoped struct {
	s     *Server
	owner string

	mu      sync.Mutex
	live    bool
	pending []staged
}

// staged is a held side effect. timer is set for timers so Cancel can
// find them.
type staged struct {
	timer     ulid.ULID
	apply     func()
	cancelled bool
}

var (
	_ api.Server    = (*scoped)(nil)
	_ plugin.Stager = (*scoped)(nil)
)

// do applies fn now on a live handle and holds it otherwise.
func (h *scoped) do(timer ulid.ULID, fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.live {
		h.pending = append(h.pending, staged{timer: timer, apply: fn})
		return
	}
	fn()
}

// Mark returns the number of held effects.
func (h *scoped) Mark() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// Rollback drops effects held after mark.
func (h *scoped) Rollback(mark int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if mark >= 0 && mark < len(h.pending) {
		h.pending = h.pending[:mark]
	}
}

// Commit applies the held effects in order and makes the handle live.
func (h *scoped) Commit() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, p := range h.pending {
		if !p.cancelled {
			p.apply()
		}
	}
	h.pending = nil
	h.live = true
}

func (h *scoped) Player(id int) (*entity.Player, bool) { return h.s.Player(id) }

func (h *scoped) PlayerByName(name string) (*entity.Player, bool) { return h.s.PlayerByName(name) }

func (h *scoped) Players() []*entity.Player { return h.s.Players() }

func (h *scoped) Vehicle(id int) (*entity.Vehicle, bool) { return h.s.Vehicle(id) }

func (h *scoped) CreateVehicle(ctx context.Context, model int64, pos mgl64.Vec3) (*entity.Vehicle, error) {
	return h.s.CreateVehicle(ctx, model, pos)
}

func (h *scoped) Object(id int) (*entity.Object, bool) { return h.s.Object(id) }

func (h *scoped) CreateObject(ctx context.Context, model int64, pos mgl64.Vec3) (*entity.Object, error) {
	return h.s.CreateObject(ctx, model, pos)
}

func (h *scoped) Broadcast(text string) { h.s.Broadcast(text) }

func (h *scoped) Execute(ctx context.Context, line string, actor command.Actor) (command.Outcome, error) {
	return h.s.Execute(ctx, line, actor)
}

func (h *scoped) Schedule(task schedule.Task) {
	h.do(ulid.ULID{}, func() { h.s.queue.Enqueue(h.owner, task) })
}

func (h *scoped) After(delay time.Duration, task schedule.Task) ulid.ULID {
	id := schedule.NewID()
	h.do(id, func() { h.s.timers.Add(id, h.owner, delay, 0, task) })
	return id
}

func (h *scoped) Every(interval time.Duration, task schedule.Task) (ulid.ULID, error) {
	if err := schedule.CheckInterval(h.owner, interval); err != nil {
		return ulid.ULID{}, err
	}
	id := schedule.NewID()
	h.do(id, func() { h.s.timers.Add(id, h.owner, interval, interval, task) })
	return id, nil
}

func (h *scoped) Cancel(id ulid.ULID) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.live {
		return h.s.timers.Cancel(id)
	}
	for i := range h.pending {
		if p := &h.pending[i]; p.timer == id && !p.cancelled {
			p.cancelled = true
			return true
		}
	}
	return false
}

func (h *scoped) OnCommand(hook command.Hook) {
	if hook != nil {
		h.do(ulid.ULID{}, func() { h.s.dispatcher.AddHook(h.owner, hook) })
	}
}
