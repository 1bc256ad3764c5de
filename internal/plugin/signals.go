// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"github.com/holomush/plugkit/internal/signal"
)

// Built-in lifecycle signals. Each is sent with the instance as sender and
// Payload{"plugin": *Instance}.
const (
	SignalActivatePre    = "plugin_activate_pre"
	SignalActivatePost   = "plugin_activate_post"
	SignalDeactivatePre  = "plugin_deactivate_pre"
	SignalDeactivatePost = "plugin_deactivate_post"
)

// PayloadPlugin is the payload key carrying the *Instance in lifecycle signals.
const PayloadPlugin = "plugin"

var lifecycleSignals = []struct {
	name        string
	description string
}{
	{SignalActivatePre, "Sent right before the activation routine of a plugin is executed"},
	{SignalActivatePost, "Sent right after the activation routine of a plugin was executed"},
	{SignalDeactivatePre, "Sent right before the deactivation routine of a plugin is executed"},
	{SignalDeactivatePost, "Sent right after the deactivation routine of a plugin was executed"},
}

// RegisterLifecycleSignals registers the four built-in lifecycle signals with
// owner as registrant. The application calls this once at bootstrap.
func RegisterLifecycleSignals(reg *signal.Registry, owner signal.Registrant) error {
	for _, s := range lifecycleSignals {
		if _, err := reg.Register(s.name, owner, s.description); err != nil {
			return err
		}
	}
	return nil
}

// InstanceFrom extracts the plugin instance from a lifecycle signal event.
func InstanceFrom(ev signal.Event) (*Instance, bool) {
	inst, ok := ev.Payload[PayloadPlugin].(*Instance)
	return inst, ok
}
