// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package signal provides the application-scoped signal registry: named
// signals owned by a registrant, receivers connected to them, and synchronous
// dispatch.
package signal

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Registrant owns signals and receivers.
// Identity is interface equality, so implementations must be comparable.
type Registrant interface {
	RegistrantName() string
}

// Payload is the keyword data sent with a signal.
type Payload map[string]any

// Event is what a receiver is invoked with.
type Event struct {
	ID      ulid.ULID // one per Send call
	Signal  string
	Sender  Registrant
	Payload Payload
}

// ReceiverFunc handles a signal. The returned value is collected by Send.
type ReceiverFunc func(ctx context.Context, ev Event) (any, error)

// Signal is a registered event channel.
type Signal struct {
	Name        string
	Owner       Registrant
	Description string

	seq uint64
}

// Receiver is a named callable connected to exactly one signal.
type Receiver struct {
	Name        string
	Signal      string
	Owner       Registrant
	Description string
	Fn          ReceiverFunc

	seq uint64
}

// Result is one receiver's return value from a Send.
type Result struct {
	Receiver string
	Value    any
}

func ownerName(r Registrant) string {
	if r == nil {
		return ""
	}
	return r.RegistrantName()
}
