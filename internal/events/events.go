// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package events carries fire-and-forget notifications from the drivers to
// whatever renders them. Producers never wait for consumers.
package events

import (
	"time"

	"github.com/ManuGH/tunepipe/internal/media"
)

// Event is implemented by every notification type.
type Event interface {
	Kind() string
}

// Publisher accepts events. Implementations must not block.
type Publisher interface {
	Publish(Event)
}

type BatchProgressShown struct{}

type BatchProgressHidden struct {
	Succeeded int
	Failed    int
}

// BatchItem announces that item Index (1-based) of Total is being processed.
type BatchItem struct {
	Index int
	Total int
	Name  string
}

type StreamProgressShown struct {
	Percent float64
	Status  string
}

type StreamProgressHidden struct{}

// QueueChanged carries a snapshot of the stream queue. Current is -1 when
// nothing is selected.
type QueueChanged struct {
	Entries []media.Entry
	Current int
}

type TrackChanged struct {
	Entry media.Entry
	Path  string
}

type PlaybackProgress struct {
	Percent    float64
	Elapsed    time.Duration
	Total      time.Duration
	TotalKnown bool
}

type PlaybackStateChanged struct {
	State string
}

func (BatchProgressShown) Kind() string   { return "batch_progress_shown" }
func (BatchProgressHidden) Kind() string  { return "batch_progress_hidden" }
func (BatchItem) Kind() string            { return "batch_item" }
func (StreamProgressShown) Kind() string  { return "stream_progress_shown" }
func (StreamProgressHidden) Kind() string { return "stream_progress_hidden" }
func (QueueChanged) Kind() string         { return "queue_changed" }
func (TrackChanged) Kind() string         { return "track_changed" }
func (PlaybackProgress) Kind() string     { return "playback_progress" }
func (PlaybackStateChanged) Kind() string { return "playback_state_changed" }

// Nop discards everything.
type Nop struct{}

func (Nop) Publish(Event) {}
