// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package plugin provides plugin management and lifecycle control.
//
// A plugin is any value implementing Plugin. The Directory wraps it in an
// Instance, which owns the lifecycle: Activate and Deactivate run the
// mandatory pre/post hooks around the plugin's optional bodies, and
// deactivation sweeps every signal and receiver the plugin registered
// through its Handle.
package plugin

import (
	"context"
)

// Plugin is implemented by every plugin. Name must be non-empty and unique
// within a Directory.
type Plugin interface {
	Name() string
}

// Activator is implemented by plugins with an activation body.
type Activator interface {
	Activate(ctx context.Context, h *Handle) error
}

// Deactivator is implemented by plugins with a deactivation body.
type Deactivator interface {
	Deactivate(ctx context.Context, h *Handle) error
}
