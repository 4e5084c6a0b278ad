// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package media holds the value types shared by the acquisition and playback
// pipeline: resolved entries, acquisition results, the target-format signature
// check and the error taxonomy.
package media

import (
	"strings"
	"time"
)

const (
	// TargetExt is the extension given to files that passed normalization.
	TargetExt = ".mp3"

	UnknownArtist = "Unknown Artist"
	DefaultAlbum  = "Downloaded"
)

// Entry is one item of resolved remote media. It is populated once at resolution
// time and passed by value afterwards.
type Entry struct {
	ID               string
	Title            string
	Uploader         string
	Album            string
	ThumbnailURL     string
	SourceURL        string
	DeclaredDuration time.Duration // zero when the source did not declare one
}

// Artist returns the uploader or UnknownArtist.
func (e Entry) Artist() string {
	if s := strings.TrimSpace(e.Uploader); s != "" {
		return s
	}
	return UnknownArtist
}

// AlbumOrDefault returns the album or DefaultAlbum.
func (e Entry) AlbumOrDefault() string {
	if s := strings.TrimSpace(e.Album); s != "" {
		return s
	}
	return DefaultAlbum
}

// DisplayName is "uploader - title", degrading to whichever part is present.
func (e Entry) DisplayName() string {
	title := strings.TrimSpace(e.Title)
	uploader := strings.TrimSpace(e.Uploader)
	switch {
	case title != "" && uploader != "":
		return uploader + " - " + title
	case title != "":
		return title
	case uploader != "":
		return uploader + " - " + e.ID
	case e.ID != "":
		return e.ID
	default:
		return "untitled"
	}
}

// AcquisitionResult is the finalized local file produced by an acquisition job.
// Ownership passes to the driver that ran the job.
type AcquisitionResult struct {
	LocalPath      string
	IsTargetFormat bool
	SizeBytes      int64
	Entry          Entry
}
