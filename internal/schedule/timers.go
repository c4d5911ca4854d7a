// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package schedule

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/holomush/pluginhost/pkg/errutil"
)

// CodeInvalidInterval marks a repeating timer with a non-positive interval.
const CodeInvalidInterval = "INVALID_INTERVAL"

type timer struct {
	id       ulid.ULID
	owner    string
	due      time.Time
	interval time.Duration
	task     Task
}

// Timers holds one-shot and repeating timers fired from the tick goroutine.
type Timers struct {
	mu     sync.Mutex
	timers map[ulid.ULID]*timer
	now    func() time.Time
	logger *slog.Logger
}

// TimersOption configures Timers.
type TimersOption func(*Timers)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) TimersOption {
	return func(t *Timers) { t.now = now }
}

// WithTimerLogger sets the logger used for panicking timers.
func WithTimerLogger(l *slog.Logger) TimersOption {
	return func(t *Timers) { t.logger = l }
}

// NewTimers creates an empty timer set.
func NewTimers(opts ...TimersOption) *Timers {
	t := &Timers{
		timers: make(map[ulid.ULID]*timer),
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// After runs task once, on the first Fire at or after delay from now.
func (t *Timers) After(owner string, delay time.Duration, task Task) ulid.ULID {
	return t.add(owner, delay, 0, task)
}

// Every runs task every interval until cancelled. interval must be positive.
func (t *Timers) Every(owner string, interval time.Duration, task Task) (ulid.ULID, error) {
	if err := CheckInterval(owner, interval); err != nil {
		return ulid.ULID{}, err
	}
	return t.add(owner, interval, interval, task), nil
}

// Add registers a timer under an id obtained earlier from NewID. It first
// fires delay from now; a positive interval makes it repeat.
func (t *Timers) Add(id ulid.ULID, owner string, delay, interval time.Duration, task Task) {
	tm := &timer{
		id:       id,
		owner:    owner,
		interval: interval,
		task:     task,
	}
	t.mu.Lock()
	tm.due = t.now().Add(delay)
	t.timers[tm.id] = tm
	t.mu.Unlock()
}

func (t *Timers) add(owner string, delay, interval time.Duration, task Task) ulid.ULID {
	id := NewID()
	t.Add(id, owner, delay, interval, task)
	return id
}

// CheckInterval rejects repeat intervals that are not positive.
func CheckInterval(owner string, interval time.Duration) error {
	if interval <= 0 {
		return oops.Code(CodeInvalidInterval).
			With("owner", owner).
			With("interval", interval.String()).
			Errorf("interval must be positive")
	}
	return nil
}

// Cancel removes a timer. It reports whether the timer existed.
func (t *Timers) Cancel(id ulid.ULID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.timers[id]
	delete(t.timers, id)
	return ok
}

// CancelOwner removes every timer created by owner.
func (t *Timers) CancelOwner(owner string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for id, tm := range t.timers {
		if tm.owner == owner {
			delete(t.timers, id)
			n++
		}
	}
	return n
}

// Len reports the number of pending timers.
func (t *Timers) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.timers)
}

// Fire runs every timer that is due, earliest first, and returns how many
// ran. A repeating timer fires at most once per call.
func (t *Timers) Fire(ctx context.Context) int {
	t.mu.Lock()
	now := t.now()
	var due []*timer
	for id, tm := range t.timers {
		if tm.due.After(now) {
			continue
		}
		due = append(due, tm)
		if tm.interval > 0 {
			next := *tm
			next.due = now.Add(tm.interval)
			t.timers[id] = &next
		} else {
			delete(t.timers, id)
		}
	}
	t.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if !due[i].due.Equal(due[j].due) {
			return due[i].due.Before(due[j].due)
		}
		return due[i].id.Compare(due[j].id) < 0
	})
	for _, tm := range due {
		t.run(ctx, tm)
	}
	return len(due)
}

func (t *Timers) run(ctx context.Context, tm *timer) {
	defer func() {
		if r := recover(); r != nil {
			err := oops.Code("TASK_PANIC").
				With("owner", tm.owner).
				With("timer", tm.id.String()).
				Errorf("%v", r)
			errutil.LogErrorContext(ctx, t.logger, "timer panicked", err)
		}
	}()
	tm.task(ctx)
}
