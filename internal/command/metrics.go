// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status labels for command execution metrics.
const (
	StatusContinue   = "continue"
	StatusCancel     = "cancel"
	StatusVetoed     = "vetoed"
	StatusNotFound   = "not_found"
	StatusDenied     = "permission_denied"
	StatusBadArgs    = "bad_args"
	StatusError      = "error"
	StatusThrottled  = "rate_limited"
	StatusWrongActor = "wrong_actor"
)

// CommandExecutions is the counter for command executions.
// Use RegisterMetrics to register this with a Prometheus registry.
var CommandExecutions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pluginhost_command_executions_total",
		Help: "Total number of command executions",
	},
	[]string{"command", "owner", "status"},
)

// CommandDuration is the histogram for command execution duration.
var CommandDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pluginhost_command_duration_seconds",
		Help:    "Command execution duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"command", "owner"},
)

// RegisterMetrics registers command package metrics with the given
// Prometheus registry. Panics if registration fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(CommandExecutions)
	reg.MustRegister(CommandDuration)
}

// metricsRecorder tracks metrics for a single dispatch.
type metricsRecorder struct {
	start   time.Time
	command string
	owner   string
	status  string
}

func newMetricsRecorder() *metricsRecorder {
	return &metricsRecorder{start: time.Now(), status: StatusError}
}

// record writes the collected metrics. Unresolved commands are counted
// under a single label to keep cardinality bounded.
func (m *metricsRecorder) record() {
	command := m.command
	if command == "" {
		command = "_unknown"
	}
	CommandExecutions.WithLabelValues(command, m.owner, m.status).Inc()
	if m.owner != "" {
		CommandDuration.WithLabelValues(command, m.owner).Observe(time.Since(m.start).Seconds())
	}
}
