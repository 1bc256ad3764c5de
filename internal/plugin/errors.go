// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for plugin lifecycle and directory failures.
const (
	CodeMissingName     = "MISSING_NAME"
	CodeDuplicatePlugin = "DUPLICATE_PLUGIN"
	CodeDuplicateClass  = "DUPLICATE_CLASS"
	CodeInvalidClass    = "INVALID_CLASS"
	CodeUnknownClass    = "UNKNOWN_CLASS"
	CodeNoFactory       = "NO_FACTORY"
	CodeInvalidPattern  = "INVALID_PATTERN"
	CodeHookFailed      = "HOOK_FAILED"
	CodeBodyFailed      = "BODY_FAILED"
	CodeSweepFailed     = "SWEEP_FAILED"
	CodeManifestInvalid = "MANIFEST_INVALID"
)

var (
	// ErrMissingName indicates a plugin declared no name.
	ErrMissingName = errors.New("plugin name not set")
	// ErrDuplicatePlugin indicates another live instance uses the same name.
	ErrDuplicatePlugin = errors.New("plugin already loaded")
	// ErrDuplicateClass indicates the class is already registered.
	ErrDuplicateClass = errors.New("plugin class already registered")
	// ErrInvalidClass indicates a class that cannot identify plugin values.
	ErrInvalidClass = errors.New("invalid plugin class")
	// ErrUnknownClass indicates no class is registered under the name.
	ErrUnknownClass = errors.New("plugin class not registered")
	// ErrNoFactory indicates a late-bound class that cannot construct plugins.
	ErrNoFactory = errors.New("plugin class has no factory")
)

func errMissingName(p Plugin) error {
	return oops.Code(CodeMissingName).
		In("plugin").
		With("type", typeName(p)).
		Hint("implement Name() returning a non-empty string").
		Wrapf(ErrMissingName, "plugin initialisation stops here")
}

func errDuplicatePlugin(name string) error {
	return oops.Code(CodeDuplicatePlugin).
		In("plugin").
		With("plugin", name).
		Wrapf(ErrDuplicatePlugin, "load %q", name)
}

func errDuplicateClass(name string) error {
	return oops.Code(CodeDuplicateClass).
		In("plugin").
		With("class", name).
		Wrapf(ErrDuplicateClass, "register class %q", name)
}

func errInvalidClass(reason string) error {
	return oops.Code(CodeInvalidClass).
		In("plugin").
		Wrapf(ErrInvalidClass, "%s", reason)
}

func errUnknownClass(name string) error {
	return oops.Code(CodeUnknownClass).
		In("plugin").
		With("class", name).
		Wrapf(ErrUnknownClass, "instantiate %q", name)
}

func errNoFactory(name string) error {
	return oops.Code(CodeNoFactory).
		In("plugin").
		With("class", name).
		Wrapf(ErrNoFactory, "instantiate %q", name)
}

func errHook(name string, t Transition, sig string, cause error) error {
	return oops.Code(CodeHookFailed).
		In("plugin").
		With("plugin", name).
		With("transition", string(t)).
		With("signal", sig).
		Wrap(cause)
}

func errBody(name string, t Transition, cause error) error {
	return oops.Code(CodeBodyFailed).
		In("plugin").
		With("plugin", name).
		With("transition", string(t)).
		Wrapf(cause, "%s body of plugin %q", t, name)
}

func errSweep(name string, cause error) error {
	return oops.Code(CodeSweepFailed).
		In("plugin").
		With("plugin", name).
		Wrapf(cause, "sweep signals of plugin %q", name)
}
