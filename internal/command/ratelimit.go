// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Default rate limiting values.
const (
	// DefaultBurstCapacity is the number of commands an actor may run in a
	// burst before being throttled.
	DefaultBurstCapacity = 10
	// DefaultSustainedRate is the token refill rate in commands per second.
	DefaultSustainedRate = 2.0
	// MinSustainedRate is the lowest accepted refill rate.
	MinSustainedRate = 0.1
	// PermissionRateLimitBypass exempts an actor from rate limiting.
	PermissionRateLimitBypass = "pluginhost.ratelimit.bypass"
	// DefaultIdleTTL is how long an idle actor's bucket is kept.
	DefaultIdleTTL = time.Hour
)

// RateLimiterConfig configures the rate limiter.
type RateLimiterConfig struct {
	// BurstCapacity defaults to DefaultBurstCapacity if zero or negative.
	BurstCapacity int
	// SustainedRate defaults to DefaultSustainedRate if zero or negative.
	SustainedRate float64
	// IdleTTL defaults to DefaultIdleTTL if zero.
	IdleTTL time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// RateLimiter is a per-actor token bucket. Buckets idle for longer than
// IdleTTL are pruned lazily on access, so no background goroutine is
// needed. It is safe for concurrent use.
type RateLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*bucket
	capacity float64
	rate     float64
	idleTTL  time.Duration
	now      func() time.Time
	lastGC   time.Time
	gauge    prometheus.Gauge
}

// NewRateLimiter creates a rate limiter. reg may be nil.
func NewRateLimiter(cfg RateLimiterConfig, reg prometheus.Registerer) *RateLimiter {
	capacity := cfg.BurstCapacity
	if capacity <= 0 {
		capacity = DefaultBurstCapacity
	}
	rate := cfg.SustainedRate
	if rate <= 0 {
		rate = DefaultSustainedRate
	}
	if rate < MinSustainedRate {
		rate = MinSustainedRate
	}
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = DefaultIdleTTL
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	rl := &RateLimiter{
		buckets:  make(map[string]*bucket),
		capacity: float64(capacity),
		rate:     rate,
		idleTTL:  ttl,
		now:      now,
		lastGC:   now(),
	}
	if reg != nil {
		rl.gauge = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pluginhost_ratelimiter_actors",
			Help: "Current number of tracked rate limiter buckets",
		})
		reg.MustRegister(rl.gauge)
	}
	return rl
}

// Allow consumes a token for key. When none is available it returns false
// and the milliseconds until the next token.
func (rl *RateLimiter) Allow(key string) (allowed bool, cooldownMs int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{tokens: rl.capacity, lastCheck: now}
		rl.buckets[key] = b
	}

	b.tokens += now.Sub(b.lastCheck).Seconds() * rl.rate
	if b.tokens > rl.capacity {
		b.tokens = rl.capacity
	}
	b.lastCheck = now

	if b.tokens >= 1.0 {
		b.tokens--
		return true, 0
	}
	return false, int64((1.0 - b.tokens) / rl.rate * 1000)
}

// Len returns the number of tracked buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.buckets)
}

func (rl *RateLimiter) prune(now time.Time) {
	if now.Sub(rl.lastGC) < rl.idleTTL {
		return
	}
	rl.lastGC = now
	threshold := now.Add(-rl.idleTTL)
	for key, b := range rl.buckets {
		if b.lastCheck.Before(threshold) {
			delete(rl.buckets, key)
		}
	}
	if rl.gauge != nil {
		rl.gauge.Set(float64(len(rl.buckets)))
	}
}
