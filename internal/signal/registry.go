// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package signal

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/samber/oops"
)

// owned is the secondary index entry for one registrant.
type owned struct {
	signals   map[string]struct{}
	receivers map[string]struct{}
}

func (o *owned) empty() bool {
	return len(o.signals) == 0 && len(o.receivers) == 0
}

// Registry owns all signals and receiver connections of one application.
// It is safe for concurrent use. The lock is never held while a receiver
// runs, so receivers may register, connect and disconnect re-entrantly.
type Registry struct {
	mu        sync.RWMutex
	signals   map[string]*Signal
	receivers map[string]*Receiver
	bySignal  map[string][]*Receiver // connect order
	byOwner   map[Registrant]*owned
	seq       uint64
	log       *slog.Logger
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the logger used for registry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// NewRegistry creates an empty signal registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		signals:   make(map[string]*Signal),
		receivers: make(map[string]*Receiver),
		bySignal:  make(map[string][]*Receiver),
		byOwner:   make(map[Registrant]*owned),
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With("component", "signals")
	return r
}

// Register adds a signal owned by owner.
// Returns an error wrapping ErrDuplicateSignal if the name is taken.
func (r *Registry) Register(name string, owner Registrant, description string) (Signal, error) {
	if name == "" {
		return Signal{}, errInvalid("signal name", "must not be empty")
	}
	if owner == nil {
		return Signal{}, errInvalid("signal owner", "must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.signals[name]; ok {
		return Signal{}, errDuplicateSignal(name, existing.Owner)
	}

	r.seq++
	s := &Signal{Name: name, Owner: owner, Description: description, seq: r.seq}
	r.signals[name] = s
	r.index(owner).signals[name] = struct{}{}
	RegisteredSignals.Inc()

	r.log.Debug("signal registered", "signal", name, "owner", owner.RegistrantName())
	return *s, nil
}

// Unregister removes a signal. Receivers still connected to it are left in
// place; sending the name fails until it is registered again.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.signals[name]
	if !ok {
		return errUnknownSignal(name, "unregister")
	}

	delete(r.signals, name)
	if o := r.byOwner[s.Owner]; o != nil {
		delete(o.signals, name)
		r.prune(s.Owner, o)
	}
	RegisteredSignals.Dec()

	if n := len(r.bySignal[name]); n > 0 {
		r.log.Warn("signal unregistered with receivers still connected",
			"signal", name,
			"receivers", n)
	} else {
		r.log.Debug("signal unregistered", "signal", name)
	}
	return nil
}

// Connect subscribes a named receiver to a registered signal.
func (r *Registry) Connect(receiver, signalName string, fn ReceiverFunc, owner Registrant, description string) (Receiver, error) {
	if receiver == "" {
		return Receiver{}, errInvalid("receiver name", "must not be empty")
	}
	if fn == nil {
		return Receiver{}, errInvalid("receiver function", "must not be nil")
	}
	if owner == nil {
		return Receiver{}, errInvalid("receiver owner", "must not be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.signals[signalName]; !ok {
		return Receiver{}, errUnknownSignal(signalName, "connect")
	}
	if existing, ok := r.receivers[receiver]; ok {
		return Receiver{}, errDuplicateReceiver(receiver, existing.Signal)
	}

	r.seq++
	rcv := &Receiver{
		Name:        receiver,
		Signal:      signalName,
		Owner:       owner,
		Description: description,
		Fn:          fn,
		seq:         r.seq,
	}
	r.receivers[receiver] = rcv
	r.bySignal[signalName] = append(r.bySignal[signalName], rcv)
	r.index(owner).receivers[receiver] = struct{}{}
	ConnectedReceivers.Inc()

	r.log.Debug("receiver connected",
		"receiver", receiver,
		"signal", signalName,
		"owner", owner.RegistrantName())
	return *rcv, nil
}

// Disconnect removes a receiver by name.
func (r *Registry) Disconnect(receiver string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rcv, ok := r.receivers[receiver]
	if !ok {
		return errUnknownReceiver(receiver)
	}

	delete(r.receivers, receiver)

	// A fresh slice keeps snapshots taken by in-flight sends intact.
	subs := r.bySignal[rcv.Signal]
	kept := make([]*Receiver, 0, len(subs))
	for _, s := range subs {
		if s != rcv {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		delete(r.bySignal, rcv.Signal)
	} else {
		r.bySignal[rcv.Signal] = kept
	}

	if o := r.byOwner[rcv.Owner]; o != nil {
		delete(o.receivers, receiver)
		r.prune(rcv.Owner, o)
	}
	ConnectedReceivers.Dec()

	r.log.Debug("receiver disconnected", "receiver", receiver, "signal", rcv.Signal)
	return nil
}

// Send invokes every receiver connected to the signal, in connect order, and
// collects their return values.
//
// The receiver list is snapshotted before the fan-out starts. Dispatch is
// fail-fast: the first receiver error (or panic) stops the fan-out and is
// returned wrapped in a *ReceiverError, together with the results so far.
func (r *Registry) Send(ctx context.Context, name string, sender Registrant, payload Payload) ([]Result, error) {
	r.mu.RLock()
	_, ok := r.signals[name]
	var snapshot []*Receiver
	if ok {
		snapshot = slices.Clone(r.bySignal[name])
	}
	r.mu.RUnlock()

	if !ok {
		recordSend(name, StatusUnknown)
		return nil, errUnknownSignal(name, "send")
	}

	if payload == nil {
		payload = Payload{}
	}
	ev := Event{ID: newSendID(), Signal: name, Sender: sender, Payload: payload}
	FanoutReceivers.Observe(float64(len(snapshot)))

	results := make([]Result, 0, len(snapshot))
	for _, rcv := range snapshot {
		value, err := invoke(ctx, rcv.Fn, ev)
		if err != nil {
			ReceiverFailures.WithLabelValues(name).Inc()
			recordSend(name, StatusFailed)
			r.log.Warn("receiver failed, aborting fan-out",
				"signal", name,
				"receiver", rcv.Name,
				"send_id", ev.ID.String(),
				"error", err)
			return results, errReceiverFailed(ev, rcv.Name, err)
		}
		results = append(results, Result{Receiver: rcv.Name, Value: value})
	}

	recordSend(name, StatusSuccess)
	return results, nil
}

// Signal returns a registered signal by name.
func (r *Registry) Signal(name string) (Signal, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.signals[name]
	if !ok {
		return Signal{}, false
	}
	return *s, true
}

// Receiver returns a connected receiver by name.
func (r *Registry) Receiver(name string) (Receiver, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rcv, ok := r.receivers[name]
	if !ok {
		return Receiver{}, false
	}
	return *rcv, true
}

// Signals returns registered signals in registration order.
// A nil owner returns all signals; otherwise only those owned by owner.
func (r *Registry) Signals(owner Registrant) []Signal {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Signal
	if owner == nil {
		out = make([]Signal, 0, len(r.signals))
		for _, s := range r.signals {
			out = append(out, *s)
		}
	} else if o := r.byOwner[owner]; o != nil {
		out = make([]Signal, 0, len(o.signals))
		for name := range o.signals {
			out = append(out, *r.signals[name])
		}
	}

	slices.SortFunc(out, func(a, b Signal) int { return cmp.Compare(a.seq, b.seq) })
	return out
}

// Receivers returns connected receivers keyed by name.
// A nil owner returns all receivers; otherwise only those owned by owner.
func (r *Registry) Receivers(owner Registrant) map[string]Receiver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]Receiver)
	if owner == nil {
		for name, rcv := range r.receivers {
			out[name] = *rcv
		}
		return out
	}
	if o := r.byOwner[owner]; o != nil {
		for name := range o.receivers {
			out[name] = *r.receivers[name]
		}
	}
	return out
}

// ReceiversOf returns the receivers connected to a signal name in connect
// order. Receivers left behind by Unregister are included.
func (r *Registry) ReceiversOf(signalName string) []Receiver {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.bySignal[signalName]
	out := make([]Receiver, len(subs))
	for i, rcv := range subs {
		out[i] = *rcv
	}
	return out
}

// index returns the secondary index entry for owner, creating it.
// Caller must hold the write lock.
func (r *Registry) index(owner Registrant) *owned {
	o, ok := r.byOwner[owner]
	if !ok {
		o = &owned{
			signals:   make(map[string]struct{}),
			receivers: make(map[string]struct{}),
		}
		r.byOwner[owner] = o
	}
	return o
}

// prune drops an owner's index entry once it owns nothing.
// Caller must hold the write lock.
func (r *Registry) prune(owner Registrant, o *owned) {
	if o.empty() {
		delete(r.byOwner, owner)
	}
}

func invoke(ctx context.Context, fn ReceiverFunc, ev Event) (value any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = oops.Errorf("receiver panicked: %v", p)
		}
	}()
	return fn(ctx, ev)
}
