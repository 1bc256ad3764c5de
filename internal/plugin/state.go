// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

// State represents the lifecycle state of a plugin instance.
type State int

// Plugin states.
const (
	// StateRegistered - constructed, never activated or deactivated.
	StateRegistered State = iota

	// StateActive - the last Activate completed its post-hook.
	StateActive

	// StateInactive - the last Deactivate completed its post-hook.
	StateInactive
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateRegistered:
		return "registered"
	case StateActive:
		return "active"
	case StateInactive:
		return "inactive"
	default:
		return "unknown"
	}
}

// Transition names a lifecycle transition.
type Transition string

// Lifecycle transitions.
const (
	TransitionActivate   Transition = "activate"
	TransitionDeactivate Transition = "deactivate"
)
