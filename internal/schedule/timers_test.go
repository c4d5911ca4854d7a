// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/pkg/errutil"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTimers() (*Timers, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return NewTimers(WithClock(clock.Now)), clock
}

func TestTimers_AfterFiresOnce(t *testing.T) {
	timers, clock := newTestTimers()
	ctx := context.Background()
	calls := 0
	timers.After("welcome", time.Second, func(context.Context) { calls++ })

	assert.Zero(t, timers.Fire(ctx))
	clock.Advance(time.Second)
	assert.Equal(t, 1, timers.Fire(ctx))
	clock.Advance(time.Second)
	assert.Zero(t, timers.Fire(ctx))
	assert.Equal(t, 1, calls)
	assert.Zero(t, timers.Len())
}

func TestTimers_EveryRepeatsUntilCancelled(t *testing.T) {
	timers, clock := newTestTimers()
	ctx := context.Background()
	calls := 0
	id, err := timers.Every("welcome", time.Second, func(context.Context) { calls++ })
	require.NoError(t, err)

	for range 3 {
		clock.Advance(time.Second)
		timers.Fire(ctx)
	}
	assert.Equal(t, 3, calls)

	clock.Advance(10 * time.Second)
	timers.Fire(ctx)
	assert.Equal(t, 4, calls, "a late repeating timer fires once per Fire")

	assert.True(t, timers.Cancel(id))
	assert.False(t, timers.Cancel(id))
	clock.Advance(time.Second)
	assert.Zero(t, timers.Fire(ctx))
}

func TestTimers_EveryRejectsNonPositiveInterval(t *testing.T) {
	timers, _ := newTestTimers()
	_, err := timers.Every("welcome", 0, func(context.Context) {})
	errutil.AssertErrorCode(t, err, CodeInvalidInterval)
}

func TestTimers_FireOrder(t *testing.T) {
	timers, clock := newTestTimers()
	var got []string
	timers.After("a", 3*time.Second, func(context.Context) { got = append(got, "late") })
	timers.After("a", time.Second, func(context.Context) { got = append(got, "early-1") })
	timers.After("a", time.Second, func(context.Context) { got = append(got, "early-2") })

	clock.Advance(5 * time.Second)
	timers.Fire(context.Background())
	assert.Equal(t, []string{"early-1", "early-2", "late"}, got)
}

func TestTimers_CancelOwner(t *testing.T) {
	timers, clock := newTestTimers()
	ran := map[string]bool{}
	timers.After("echo", 0, func(context.Context) { ran["echo"] = true })
	_, err := timers.Every("echo", time.Second, func(context.Context) { ran["echo"] = true })
	require.NoError(t, err)
	timers.After("core", 0, func(context.Context) { ran["core"] = true })

	assert.Equal(t, 2, timers.CancelOwner("echo"))
	clock.Advance(time.Second)
	timers.Fire(context.Background())
	assert.Equal(t, map[string]bool{"core": true}, ran)
}

func TestTimers_PanicIsRecovered(t *testing.T) {
	timers, _ := newTestTimers()
	ran := false
	timers.After("bad", 0, func(context.Context) { panic("boom") })
	timers.After("good", 0, func(context.Context) { ran = true })

	assert.Equal(t, 2, timers.Fire(context.Background()))
	assert.True(t, ran)
}

func TestIDs(t *testing.T) {
	a, b := NewID(), NewID()
	assert.Negative(t, a.Compare(b))

	parsed, err := ParseID(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)

	_, err = ParseID("not-a-ulid")
	errutil.AssertErrorCode(t, err, "INVALID_TIMER_ID")
}

func TestTimers_AddKeepsID(t *testing.T) {
	timers, clock := newTestTimers()
	ctx := context.Background()
	calls := 0
	id := NewID()
	timers.Add(id, "welcome", 2*time.Second, time.Second, func(context.Context) { calls++ })

	clock.Advance(time.Second)
	assert.Zero(t, timers.Fire(ctx))
	clock.Advance(time.Second)
	assert.Equal(t, 1, timers.Fire(ctx))
	clock.Advance(time.Second)
	assert.Equal(t, 1, timers.Fire(ctx))
	assert.Equal(t, 2, calls)
	assert.True(t, timers.Cancel(id))
}
