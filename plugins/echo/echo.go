// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package echo implements a plugin that answers the echo signal with the
// message it was sent.
//
// Other plugins ask for an echo with:
//
//	results, err := h.Send(ctx, echo.Signal, signal.Payload{"message": "hi"})
//	// results[0].Value == "echo: hi"
package echo

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/internal/signal"
)

// Name is the plugin name.
const Name = "echo"

// Signal and receiver names registered by the plugin.
const (
	Signal        = "echo"
	ReplyReceiver = "echo_reply"
	WatchReceiver = "echo_watch_activations"
)

// Plugin is the echo plugin.
type Plugin struct {
	log *slog.Logger

	mu   sync.Mutex
	seen []string
}

// New returns an echo plugin logging to log, or slog.Default if nil.
func New(log *slog.Logger) *Plugin {
	if log == nil {
		log = slog.Default()
	}
	return &Plugin{log: log.With("plugin", Name)}
}

// Class is the echo plugin class, for plugin.Directory.RegisterClass.
func Class() *plugin.Class {
	return plugin.NewClass(func() *Plugin { return New(nil) }, "Answers the echo signal")
}

// Name implements plugin.Plugin.
func (p *Plugin) Name() string {
	return Name
}

// Activate registers the echo signal and its reply receiver, and watches
// other plugins' activations.
func (p *Plugin) Activate(_ context.Context, h *plugin.Handle) error {
	if _, err := h.Register(Signal, "Replies with the payload's message"); err != nil {
		return err
	}
	if _, err := h.Connect(ReplyReceiver, Signal, p.reply, "Returns \"echo: \" + message"); err != nil {
		return err
	}
	if _, err := h.Connect(WatchReceiver, plugin.SignalActivatePost, p.watch, "Logs plugin activations"); err != nil {
		return err
	}
	return nil
}

// Seen returns the plugins whose activation this plugin observed, in order.
func (p *Plugin) Seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.seen...)
}

func (p *Plugin) reply(_ context.Context, ev signal.Event) (any, error) {
	msg, ok := ev.Payload["message"]
	if !ok {
		return nil, oops.In("echo").With("signal", ev.Signal).Errorf("payload has no message")
	}
	return fmt.Sprintf("echo: %v", msg), nil
}

func (p *Plugin) watch(ctx context.Context, ev signal.Event) (any, error) {
	inst, ok := plugin.InstanceFrom(ev)
	if !ok {
		return nil, nil
	}

	p.mu.Lock()
	p.seen = append(p.seen, inst.Name())
	p.mu.Unlock()

	p.log.DebugContext(ctx, "plugin activation observed", "activated", inst.Name())
	return nil, nil
}
