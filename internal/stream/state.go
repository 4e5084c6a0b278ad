// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

// State is the driver lifecycle: Idle -> Resolving -> Preparing -> Playing,
// back to Preparing per item, and Idle when the run ends.
type State int

const (
	StateIdle State = iota
	StateResolving
	StatePreparing
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StatePreparing:
		return "preparing"
	case StatePlaying:
		return "playing"
	default:
		return "unknown"
	}
}
