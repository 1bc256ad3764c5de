// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Status constants for transition metrics.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Transitions counts lifecycle transitions by kind and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Transitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugkit_plugin_transitions_total",
		Help: "Total number of plugin lifecycle transitions",
	},
	[]string{"transition", "status"},
)

// TransitionDuration observes how long transitions take, hooks included.
var TransitionDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "plugkit_plugin_transition_duration_seconds",
		Help:    "Plugin lifecycle transition duration in seconds",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"transition"},
)

// ActivePlugins tracks the number of active plugin instances.
var ActivePlugins = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "plugkit_plugin_active",
		Help: "Number of currently active plugins",
	},
)

// RegisterMetrics registers plugin package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Transitions)
	reg.MustRegister(TransitionDuration)
	reg.MustRegister(ActivePlugins)
}

func recordTransition(t Transition, err error, duration time.Duration) {
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	Transitions.WithLabelValues(string(t), status).Inc()
	TransitionDuration.WithLabelValues(string(t)).Observe(duration.Seconds())
}
