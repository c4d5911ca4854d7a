// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

// State is the lifecycle state of a plugin instance.
type State int

// Lifecycle states.
const (
	StateUnknown State = iota
	StateLoaded
	StateStarted
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateLoaded:
		return "loaded"
	case StateStarted:
		return "started"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "invalid"
	}
}

// transitions lists the allowed moves. Any state may move to Failed.
// Failed may be reloaded only by an explicit restart.
var transitions = map[State][]State{
	StateUnknown: {StateLoaded},
	StateLoaded:  {StateStarted, StateStopped},
	StateStarted: {StateStopped},
	StateStopped: {StateLoaded},
	StateFailed:  {StateLoaded},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to State) bool {
	if to == StateFailed {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Active reports whether the instance holds a loaded module.
func (s State) Active() bool {
	return s == StateLoaded || s == StateStarted
}
