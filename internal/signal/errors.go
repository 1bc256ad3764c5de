// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package signal

import (
	"errors"
	"fmt"

	"github.com/samber/oops"
)

// Error codes for registry failures.
const (
	CodeInvalidName       = "INVALID_NAME"
	CodeDuplicateSignal   = "DUPLICATE_SIGNAL"
	CodeDuplicateReceiver = "DUPLICATE_RECEIVER"
	CodeUnknownSignal     = "UNKNOWN_SIGNAL"
	CodeUnknownReceiver   = "UNKNOWN_RECEIVER"
	CodeReceiverFailed    = "RECEIVER_FAILED"
)

var (
	// ErrInvalidName indicates an empty name, nil owner or nil callable.
	ErrInvalidName = errors.New("invalid registration")
	// ErrDuplicateSignal indicates the signal name is already registered.
	ErrDuplicateSignal = errors.New("signal already registered")
	// ErrDuplicateReceiver indicates the receiver name is already connected.
	ErrDuplicateReceiver = errors.New("receiver already connected")
	// ErrUnknownSignal indicates no signal is registered under the name.
	ErrUnknownSignal = errors.New("signal not registered")
	// ErrUnknownReceiver indicates no receiver is connected under the name.
	ErrUnknownReceiver = errors.New("receiver not connected")
)

// ReceiverError wraps a failure raised by a receiver during Send.
type ReceiverError struct {
	Signal   string
	Receiver string
	Err      error
}

func (e *ReceiverError) Error() string {
	return fmt.Sprintf("receiver %q failed on signal %q: %v", e.Receiver, e.Signal, e.Err)
}

// Unwrap returns the receiver's error.
func (e *ReceiverError) Unwrap() error {
	return e.Err
}

func errInvalid(field, reason string) error {
	return oops.Code(CodeInvalidName).
		In("signal").
		With("field", field).
		Wrapf(ErrInvalidName, "%s %s", field, reason)
}

func errDuplicateSignal(name string, owner Registrant) error {
	return oops.Code(CodeDuplicateSignal).
		In("signal").
		With("signal", name).
		With("owner", ownerName(owner)).
		Wrapf(ErrDuplicateSignal, "register %q", name)
}

func errDuplicateReceiver(name, connectedTo string) error {
	return oops.Code(CodeDuplicateReceiver).
		In("signal").
		With("receiver", name).
		With("signal", connectedTo).
		Wrapf(ErrDuplicateReceiver, "connect %q", name)
}

func errUnknownSignal(name, operation string) error {
	return oops.Code(CodeUnknownSignal).
		In("signal").
		With("signal", name).
		With("operation", operation).
		Wrapf(ErrUnknownSignal, "%s %q", operation, name)
}

func errUnknownReceiver(name string) error {
	return oops.Code(CodeUnknownReceiver).
		In("signal").
		With("receiver", name).
		Wrapf(ErrUnknownReceiver, "disconnect %q", name)
}

func errReceiverFailed(ev Event, receiver string, cause error) error {
	return oops.Code(CodeReceiverFailed).
		In("signal").
		With("signal", ev.Signal).
		With("receiver", receiver).
		With("send_id", ev.ID.String()).
		Wrap(&ReceiverError{Signal: ev.Signal, Receiver: receiver, Err: cause})
}
