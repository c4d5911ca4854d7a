// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package server

import "github.com/prometheus/client_golang/prometheus"

// TicksTotal counts completed ticks.
var TicksTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pluginhost_ticks_total",
	Help: "Total number of server ticks",
})

// TickDuration observes how long each tick took.
var TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
	Name:    "pluginhost_tick_duration_seconds",
	Help:    "Server tick duration in seconds",
	Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25},
})

// TasksRun counts queued tasks run by the tick loop.
var TasksRun = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pluginhost_tasks_run_total",
	Help: "Total number of queued tasks run",
})

// TimersFired counts timer firings.
var TimersFired = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "pluginhost_timers_fired_total",
	Help: "Total number of timer firings",
})

// PlayersOnline is the number of cached player wrappers.
var PlayersOnline = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "pluginhost_players_online",
	Help: "Number of connected players",
})

// RegisterMetrics registers server package metrics with reg.
// Panics if registration fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(TicksTotal, TickDuration, TasksRun, TimersFired, PlayersOnline)
}
