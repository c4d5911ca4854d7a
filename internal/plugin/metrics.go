// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import "github.com/prometheus/client_golang/prometheus"

// Transitions counts lifecycle transitions by target state.
var Transitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pluginhost_plugin_transitions_total",
		Help: "Total number of plugin lifecycle transitions",
	},
	[]string{"state"},
)

// ActivePlugins is the number of started plugins.
var ActivePlugins = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "pluginhost_plugins_active",
	Help: "Number of started plugins",
})

// RegisterMetrics registers plugin package metrics with reg.
// Panics if registration fails.
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Transitions)
	reg.MustRegister(ActivePlugins)
}
