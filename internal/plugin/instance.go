// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"sync"
	"time"
)

// Instance is the runtime record of one plugin id.
type Instance struct {
	mu        sync.RWMutex
	desc      *Descriptor
	path      string
	state     State
	module    Module
	main      Plugin
	entries   []EntryPoint
	env       *Env
	err       error
	changedAt time.Time
}

// ID returns the plugin id.
func (i *Instance) ID() string {
	return i.Descriptor().ID
}

// Descriptor returns the descriptor of the most recent load.
func (i *Instance) Descriptor() *Descriptor {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.desc
}

// Path returns the path the plugin was loaded from.
func (i *Instance) Path() string {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.path
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Err returns the error that last failed the plugin, if any.
func (i *Instance) Err() error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.err
}

// Since returns when the state last changed.
func (i *Instance) Since() time.Time {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.changedAt
}

// Entries returns the loaded entry points, main plugin first.
func (i *Instance) Entries() []EntryPoint {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.main == nil {
		return nil
	}
	out := make([]EntryPoint, 0, 1+len(i.entries))
	out = append(out, i.main)
	return append(out, i.entries...)
}

func (i *Instance) transition(to State, err error, now time.Time) (State, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	from := i.state
	if !CanTransition(from, to) {
		return from, ErrInvalidState(i.desc.ID, from, to)
	}
	i.state = to
	i.err = err
	i.changedAt = now
	return from, nil
}

// release drops every reference into the unloaded module.
func (i *Instance) release() Module {
	i.mu.Lock()
	defer i.mu.Unlock()
	mod := i.module
	i.module = nil
	i.main = nil
	i.entries = nil
	i.env = nil
	return mod
}
