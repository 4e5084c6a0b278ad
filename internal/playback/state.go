// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

type State int

const (
	StateIdle State = iota
	StatePlaying
	StatePaused
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Outcome is how a session run ended.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	// OutcomeTimedOut counts as completion: the safety timeout fired.
	OutcomeTimedOut
	OutcomeSkipped
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeTimedOut:
		return "timed_out"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Continue reports whether the driver should move on to the next item.
func (o Outcome) Continue() bool {
	return o != OutcomeStopped
}
