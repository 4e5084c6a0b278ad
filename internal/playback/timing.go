// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import "time"

// Timing derives elapsed playback time from wall-clock marks. It is not
// safe for concurrent use; Session guards it.
//
// Elapsed excludes every paused interval. totalPaused only grows.
type Timing struct {
	playStart     time.Time
	lastPause     time.Time
	totalPaused   time.Duration
	pausePosition time.Duration
	paused        bool
}

// Start resets all marks.
func (t *Timing) Start(now time.Time) {
	*t = Timing{playStart: now}
}

// Pause records the pause instant. handlePos is the backend's own position
// when ok; otherwise the derived elapsed time is used.
func (t *Timing) Pause(now time.Time, handlePos time.Duration, ok bool) {
	if t.paused {
		return
	}
	elapsed := t.Elapsed(now)
	t.lastPause = now
	t.paused = true
	if ok && handlePos >= 0 {
		t.pausePosition = handlePos
	} else {
		t.pausePosition = elapsed
	}
}

// Resume accounts the paused interval. When the backend could not seek
// back to the pause position, playback restarted from an unknown offset and
// playStart is re-anchored so Elapsed continues from pausePosition.
func (t *Timing) Resume(now time.Time, seekOK bool) {
	if !t.paused {
		return
	}
	if d := now.Sub(t.lastPause); d > 0 {
		t.totalPaused += d
	}
	t.paused = false
	if !seekOK {
		t.playStart = now.Add(-(t.pausePosition + t.totalPaused))
	}
}

// Elapsed returns playback time excluding pauses, frozen while paused.
func (t *Timing) Elapsed(now time.Time) time.Duration {
	ref := now
	if t.paused {
		ref = t.lastPause
	}
	d := ref.Sub(t.playStart) - t.totalPaused
	if d < 0 {
		return 0
	}
	return d
}

// PausedFor returns the total paused time including an ongoing pause.
func (t *Timing) PausedFor(now time.Time) time.Duration {
	if t.paused {
		return t.totalPaused + now.Sub(t.lastPause)
	}
	return t.totalPaused
}

func (t *Timing) PausePosition() time.Duration { return t.pausePosition }
func (t *Timing) Paused() bool                 { return t.paused }
func (t *Timing) TotalPaused() time.Duration   { return t.totalPaused }
