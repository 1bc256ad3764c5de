// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package signal

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Status values for the sends counter.
const (
	StatusSuccess = "success"
	StatusUnknown = "unknown_signal"
	StatusFailed  = "receiver_failed"
)

// Sends counts Send calls by signal and outcome.
// Use RegisterMetrics to register this with a Prometheus registry.
var Sends = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugkit_signal_sends_total",
		Help: "Total number of signal sends by signal and status",
	},
	[]string{"signal", "status"},
)

// ReceiverFailures counts receivers that returned an error or panicked.
var ReceiverFailures = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "plugkit_signal_receiver_failures_total",
		Help: "Total number of receiver failures by signal",
	},
	[]string{"signal"},
)

// FanoutReceivers observes how many receivers a Send snapshotted.
var FanoutReceivers = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "plugkit_signal_fanout_receivers",
		Help:    "Number of receivers snapshotted per signal send",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	},
)

// RegisteredSignals tracks the number of registered signals.
var RegisteredSignals = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "plugkit_signal_registered_signals",
		Help: "Number of currently registered signals",
	},
)

// ConnectedReceivers tracks the number of connected receivers.
var ConnectedReceivers = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "plugkit_signal_connected_receivers",
		Help: "Number of currently connected receivers",
	},
)

// RegisterMetrics registers signal package metrics with the given Prometheus registry.
// Panics if registration fails (following prometheus convention).
func RegisterMetrics(reg prometheus.Registerer) {
	reg.MustRegister(Sends)
	reg.MustRegister(ReceiverFailures)
	reg.MustRegister(FanoutReceivers)
	reg.MustRegister(RegisteredSignals)
	reg.MustRegister(ConnectedReceivers)
}

func recordSend(name, status string) {
	Sends.WithLabelValues(name, status).Inc()
}
