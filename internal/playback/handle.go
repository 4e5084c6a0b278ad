// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playback drives one audio file at a time: load, play, pause,
// resume, skip, stop, and periodic progress with a drift-free elapsed clock.
package playback

import (
	"errors"
	"time"
)

var (
	// ErrSeekUnsupported is returned by handles that cannot reposition.
	ErrSeekUnsupported = errors.New("seek unsupported")
	// ErrInvalidState is returned by Pause/Resume outside their valid state.
	ErrInvalidState = errors.New("invalid playback state")
	// ErrAudioUnavailable is returned by loaders in builds without audio output.
	ErrAudioUnavailable = errors.New("audio output unavailable in this build")
	// ErrUnsupportedFormat is returned when no decoder accepts the file.
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Handle is a loaded, playable file.
type Handle interface {
	// Play starts or continues output.
	Play() error
	// Stop halts output. The handle stays loaded.
	Stop()
	// Playing is false once output ended or was stopped.
	Playing() bool
	// Position reports the current offset if the backend knows it.
	Position() (time.Duration, bool)
	Seek(time.Duration) error
	Duration() (time.Duration, bool)
	// Close releases the handle. It is safe to call more than once.
	Close() error
}

// Loader opens handles.
type Loader interface {
	Load(path string) (Handle, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(path string) (Handle, error)

func (f LoaderFunc) Load(path string) (Handle, error) { return f(path) }
