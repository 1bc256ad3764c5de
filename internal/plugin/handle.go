// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
	"slices"

	"github.com/holomush/plugkit/internal/signal"
)

// Handle scopes signal registry calls to one plugin instance. Signals and
// receivers created through it are owned by the instance and swept when the
// instance deactivates.
type Handle struct {
	owner   *Instance
	signals *signal.Registry
}

// Register registers a signal owned by this plugin.
func (h *Handle) Register(name, description string) (signal.Signal, error) {
	return h.signals.Register(name, h.owner, description)
}

// Unregister removes a signal by name.
func (h *Handle) Unregister(name string) error {
	return h.signals.Unregister(name)
}

// Connect connects a receiver owned by this plugin to a registered signal.
func (h *Handle) Connect(receiver, signalName string, fn signal.ReceiverFunc, description string) (signal.Receiver, error) {
	return h.signals.Connect(receiver, signalName, fn, h.owner, description)
}

// Disconnect removes a receiver by name.
func (h *Handle) Disconnect(receiver string) error {
	return h.signals.Disconnect(receiver)
}

// Send sends a signal with this plugin as sender.
func (h *Handle) Send(ctx context.Context, name string, payload signal.Payload) ([]signal.Result, error) {
	return h.signals.Send(ctx, name, h.owner, payload)
}

// Signals returns the signals registered by this plugin.
func (h *Handle) Signals() []signal.Signal {
	return h.signals.Signals(h.owner)
}

// Signal returns a signal by name if this plugin owns it.
func (h *Handle) Signal(name string) (signal.Signal, bool) {
	s, ok := h.signals.Signal(name)
	if !ok || s.Owner != signal.Registrant(h.owner) {
		return signal.Signal{}, false
	}
	return s, true
}

// Receivers returns the receivers connected by this plugin, keyed by name.
func (h *Handle) Receivers() map[string]signal.Receiver {
	return h.signals.Receivers(h.owner)
}

// Receiver returns a receiver by name if this plugin owns it.
func (h *Handle) Receiver(name string) (signal.Receiver, bool) {
	r, ok := h.signals.Receiver(name)
	if !ok || r.Owner != signal.Registrant(h.owner) {
		return signal.Receiver{}, false
	}
	return r, true
}

// Sweep disconnects every receiver and then unregisters every signal owned by
// this plugin. Items that disappeared in the meantime count as swept, so
// Sweep is idempotent. Other failures are joined and returned after all
// items were attempted.
func (h *Handle) Sweep() error {
	var errs []error

	receivers := h.Receivers()
	names := make([]string, 0, len(receivers))
	for name := range receivers {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		if err := h.signals.Disconnect(name); err != nil && !errors.Is(err, signal.ErrUnknownReceiver) {
			errs = append(errs, err)
		}
	}

	for _, s := range h.Signals() {
		if err := h.signals.Unregister(s.Name); err != nil && !errors.Is(err, signal.ErrUnknownSignal) {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errSweep(h.owner.name, errors.Join(errs...))
	}
	if len(names) > 0 {
		h.owner.log.Debug("plugin signals swept", "receivers", len(names))
	}
	return nil
}
