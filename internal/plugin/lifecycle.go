// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/plugkit/internal/signal"
)

var tracer = otel.Tracer("github.com/holomush/plugkit/internal/plugin")

// Instance wraps one plugin value with its lifecycle. Callers activate and
// deactivate the Instance, never the plugin directly, so the pre/post hooks
// run exactly once per call.
//
// Instance implements signal.Registrant: it owns everything registered
// through its Handle.
type Instance struct {
	plugin Plugin
	name   string
	dir    *Directory
	handle *Handle
	log    *slog.Logger

	mu        sync.Mutex
	state     State
	activated uint64 // directory activation sequence, 0 when inactive
}

func newInstance(d *Directory, p Plugin, name string) *Instance {
	inst := &Instance{
		plugin: p,
		name:   name,
		dir:    d,
		log:    d.log.With("plugin", name),
		state:  StateRegistered,
	}
	inst.handle = &Handle{owner: inst, signals: d.signals}
	return inst
}

// RegistrantName implements signal.Registrant.
func (i *Instance) RegistrantName() string {
	return i.name
}

// Name returns the plugin's declared name.
func (i *Instance) Name() string {
	return i.name
}

// Plugin returns the wrapped plugin value.
func (i *Instance) Plugin() Plugin {
	return i.plugin
}

// Handle returns the instance's signal handle.
func (i *Instance) Handle() *Handle {
	return i.handle
}

// Class returns the plugin's class if the directory knows it.
func (i *Instance) Class() (*Class, bool) {
	return i.dir.ClassOf(i.plugin)
}

// State returns the current lifecycle state.
func (i *Instance) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Active reports whether the plugin is active.
func (i *Instance) Active() bool {
	return i.State() == StateActive
}

// Activate runs the activation transition:
//
//  1. pre-hook: ensure the plugin's class is known to the directory, send
//     plugin_activate_pre
//  2. the plugin's Activate body, if any
//  3. post-hook: mark active, send plugin_activate_post
//
// If the pre-hook or the body fails, the post-hook is skipped and the state
// is left unchanged.
func (i *Instance) Activate(ctx context.Context) (err error) {
	ctx, span := i.startSpan(ctx, TransitionActivate)
	start := time.Now()
	defer func() { i.finish(span, TransitionActivate, start, err) }()

	if class, inserted := i.dir.EnsureClass(i.plugin); inserted {
		i.log.Info("plugin class registered late", "class", class.Name)
	}
	if err := i.emit(ctx, SignalActivatePre); err != nil {
		return errHook(i.name, TransitionActivate, SignalActivatePre, err)
	}

	if err := i.runBody(ctx, TransitionActivate); err != nil {
		return err
	}

	i.setState(StateActive)
	if err := i.emit(ctx, SignalActivatePost); err != nil {
		return errHook(i.name, TransitionActivate, SignalActivatePost, err)
	}

	i.log.InfoContext(ctx, "plugin activated")
	return nil
}

// Deactivate runs the deactivation transition:
//
//  1. pre-hook: send plugin_deactivate_pre
//  2. the plugin's Deactivate body, if any
//  3. post-hook: mark inactive, send plugin_deactivate_post, then sweep the
//     plugin's receivers and signals
//
// The sweep runs after plugin_deactivate_post reached every receiver, so the
// plugin's own receivers still see it. It runs even if that send fails. If
// the pre-hook or the body fails, the post-hook is skipped.
func (i *Instance) Deactivate(ctx context.Context) (err error) {
	ctx, span := i.startSpan(ctx, TransitionDeactivate)
	start := time.Now()
	defer func() { i.finish(span, TransitionDeactivate, start, err) }()

	if err := i.emit(ctx, SignalDeactivatePre); err != nil {
		return errHook(i.name, TransitionDeactivate, SignalDeactivatePre, err)
	}

	if err := i.runBody(ctx, TransitionDeactivate); err != nil {
		return err
	}

	i.setState(StateInactive)
	var errs []error
	if err := i.emit(ctx, SignalDeactivatePost); err != nil {
		errs = append(errs, errHook(i.name, TransitionDeactivate, SignalDeactivatePost, err))
	}
	if err := i.handle.Sweep(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	i.log.InfoContext(ctx, "plugin deactivated")
	return nil
}

func (i *Instance) emit(ctx context.Context, name string) error {
	_, err := i.handle.Send(ctx, name, signal.Payload{PayloadPlugin: i})
	return err
}

// runBody invokes the plugin's body for t, recovering panics.
func (i *Instance) runBody(ctx context.Context, t Transition) (err error) {
	var body func(context.Context, *Handle) error
	switch t {
	case TransitionActivate:
		if a, ok := i.plugin.(Activator); ok {
			body = a.Activate
		}
	case TransitionDeactivate:
		if d, ok := i.plugin.(Deactivator); ok {
			body = d.Deactivate
		}
	}
	if body == nil {
		i.log.WarnContext(ctx, "no "+string(t)+" routine defined in plugin")
		return nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = errBody(i.name, t, oops.Errorf("panic: %v", p))
		}
	}()
	if err := body(ctx, i.handle); err != nil {
		return errBody(i.name, t, err)
	}
	return nil
}

func (i *Instance) setState(s State) {
	i.mu.Lock()
	prev := i.state
	i.state = s
	switch {
	case s == StateActive && prev != StateActive:
		i.activated = i.dir.nextActivation()
		ActivePlugins.Inc()
	case s != StateActive && prev == StateActive:
		i.activated = 0
		ActivePlugins.Dec()
	}
	i.mu.Unlock()
}

func (i *Instance) activatedAt() uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.activated
}

func (i *Instance) startSpan(ctx context.Context, t Transition) (context.Context, trace.Span) {
	return tracer.Start(ctx, "plugin."+string(t), trace.WithAttributes(
		attribute.String("plugin.name", i.name),
		attribute.String("plugin.type", typeName(i.plugin)),
	))
}

func (i *Instance) finish(span trace.Span, t Transition, start time.Time, err error) {
	recordTransition(t, err, time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		i.log.Warn("plugin "+string(t)+" failed", "error", err)
	}
	span.End()
}
