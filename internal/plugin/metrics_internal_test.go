// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/plugkit/internal/signal"
)

type metricsPlugin struct{}

func (*metricsPlugin) Name() string { return "metrics" }

type metricsOwner struct{}

func (*metricsOwner) RegistrantName() string { return "app" }

func TestRegisterMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NotPanics(t, func() { RegisterMetrics(reg) })
	assert.Panics(t, func() { RegisterMetrics(reg) }, "double registration panics")
}

func TestMetrics_Transitions(t *testing.T) {
	dir := NewDirectory(signal.NewRegistry())
	inst, err := dir.Load(&metricsPlugin{})
	require.NoError(t, err)

	okBefore := testutil.ToFloat64(Transitions.WithLabelValues(string(TransitionActivate), StatusSuccess))
	errBefore := testutil.ToFloat64(Transitions.WithLabelValues(string(TransitionActivate), StatusError))
	activeBefore := testutil.ToFloat64(ActivePlugins)

	// Lifecycle signals are not registered here, so the pre-hook fails.
	require.Error(t, inst.Activate(context.Background()))
	assert.InDelta(t, errBefore+1, testutil.ToFloat64(Transitions.WithLabelValues(string(TransitionActivate), StatusError)), 0)

	require.NoError(t, RegisterLifecycleSignals(dir.Signals(), &metricsOwner{}))
	require.NoError(t, inst.Activate(context.Background()))

	assert.InDelta(t, okBefore+1, testutil.ToFloat64(Transitions.WithLabelValues(string(TransitionActivate), StatusSuccess)), 0)
	assert.InDelta(t, activeBefore+1, testutil.ToFloat64(ActivePlugins), 0)

	require.NoError(t, inst.Deactivate(context.Background()))
	assert.InDelta(t, activeBefore, testutil.ToFloat64(ActivePlugins), 0)
}
