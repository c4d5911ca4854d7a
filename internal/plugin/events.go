// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"log/slog"
	"sync"
	"time"
)

// Event records one lifecycle transition.
type Event struct {
	Plugin string
	From   State
	To     State
	Err    error
	At     time.Time
}

const eventBuffer = 64

// broadcaster fans lifecycle events out to subscribers without blocking
// the manager.
type broadcaster struct {
	mu   sync.RWMutex
	subs []chan Event
}

func (b *broadcaster) subscribe() (<-chan Event, func()) {
	ch := make(chan Event, eventBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { b.unsubscribe(ch) })
	}
}

func (b *broadcaster) unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *broadcaster) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			slog.Warn("lifecycle event dropped: subscriber buffer full",
				"plugin", e.Plugin,
				"state", e.To.String())
		}
	}
}
