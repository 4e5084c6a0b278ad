// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package library lists finished tracks in the library directory and keeps
// its M3U playlist current.
package library

import (
	"fmt"
	"time"

	"github.com/ManuGH/tunepipe/internal/duration"
)

// Status summarizes a scan.
type Status string

const (
	StatusOK       Status = "ok"       // every file read cleanly
	StatusDegraded Status = "degraded" // some files could not be read
	StatusFailed   Status = "failed"   // the root itself was unusable
)

func (s Status) String() string {
	return string(s)
}

// DefaultExtensions are the audio containers a scan includes.
var DefaultExtensions = []string{".mp3", ".m4a", ".webm", ".opus", ".ogg", ".wav", ".flac", ".aac"}

// Track is one finished file in the library.
type Track struct {
	Path     string // absolute
	RelPath  string // relative to the library root, slash separated
	Title    string
	Artist   string
	Album    string
	HasCover bool
	Tagged   bool // carries an ID3 tag

	SizeBytes      int64
	ModTime        time.Time
	Duration       time.Duration
	DurationSource duration.Source
}

// DurationKnown reports whether any source produced a length.
func (t Track) DurationKnown() bool {
	return t.Duration > 0 && t.DurationSource != duration.SourceUnknown
}

// ScanResult is the outcome of one library scan.
type ScanResult struct {
	Root       string
	Started    time.Time
	Finished   time.Time
	Tracks     []Track
	TotalBytes int64
	Skipped    int // partial files, wrong extension, too deep
	ErrorCount int
	Status     Status
	LastError  string
}

// Error returns a summary if the scan had issues.
func (s *ScanResult) Error() string {
	if s.ErrorCount == 0 && s.Status == StatusOK {
		return ""
	}
	return fmt.Sprintf("scan completed with %d errors, status=%s", s.ErrorCount, s.Status)
}
