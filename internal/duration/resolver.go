// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package duration resolves a best-effort playable length for a media file
// from a ranked chain of sources. The last source is an estimate from file
// size; consumers must tolerate a total that is approximate or later revised.
package duration

import (
	"context"
	"os"
	"time"

	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/metrics"
)

// DefaultAssumedBitrateKbps is the bitrate the size estimate assumes.
const DefaultAssumedBitrateKbps = 128

// Source encodes where the selected duration came from.
type Source string

const (
	SourceMetadata  Source = "source_metadata"
	SourceContainer Source = "container"
	SourceHandle    Source = "playback_handle"
	SourceEstimate  Source = "estimate"
	SourceUnknown   Source = "unknown"
)

// Result is a resolved duration. Value is zero when Source is SourceUnknown.
type Result struct {
	Value  time.Duration
	Source Source
}

// Known reports whether any source produced a positive duration.
func (r Result) Known() bool {
	return r.Value > 0 && r.Source != SourceUnknown
}

// Approximate reports whether the value came from the size estimate.
func (r Result) Approximate() bool {
	return r.Source == SourceEstimate
}

// Seconds returns the duration in seconds.
func (r Result) Seconds() float64 {
	return r.Value.Seconds()
}

// Prober reads the duration embedded in a file's container metadata.
type Prober interface {
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// HandleDuration is the part of a playable handle the resolver consults.
type HandleDuration interface {
	Duration() (time.Duration, bool)
}

// Input is what every strategy sees.
type Input struct {
	Path   string
	Info   os.FileInfo
	Entry  *media.Entry
	Handle HandleDuration
}

// Strategy is one ranked source. ok=false or a non-positive value moves on.
type Strategy struct {
	Source Source
	Lookup func(ctx context.Context, in Input) (time.Duration, bool)
}

// Resolver runs the ranked strategy chain. It never returns an error.
type Resolver struct {
	strategies []Strategy
}

// NewResolver builds the default chain: entry metadata, container probe,
// playback handle, size estimate. prober may be nil to skip the probe.
func NewResolver(prober Prober, assumedBitrateKbps int) *Resolver {
	if assumedBitrateKbps <= 0 {
		assumedBitrateKbps = DefaultAssumedBitrateKbps
	}
	chain := []Strategy{{Source: SourceMetadata, Lookup: fromMetadata}}
	if prober != nil {
		chain = append(chain, Strategy{Source: SourceContainer, Lookup: fromProber(prober)})
	}
	chain = append(chain,
		Strategy{Source: SourceHandle, Lookup: fromHandle},
		Strategy{Source: SourceEstimate, Lookup: fromSize(assumedBitrateKbps)},
	)
	return &Resolver{strategies: chain}
}

// NewChain builds a resolver from an explicit strategy list.
func NewChain(strategies ...Strategy) *Resolver {
	return &Resolver{strategies: strategies}
}

// Resolve returns the first positive duration in rank order. It returns
// SourceUnknown only if the file is inaccessible or empty, or if every
// strategy declines. entry and handle may be nil.
func (r *Resolver) Resolve(ctx context.Context, path string, entry *media.Entry, handle HandleDuration) Result {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() || info.Size() == 0 {
		return Result{Source: SourceUnknown}
	}

	in := Input{Path: path, Info: info, Entry: entry, Handle: handle}
	for _, s := range r.strategies {
		if v, ok := s.Lookup(ctx, in); ok && v > 0 {
			metrics.IncDurationResolved(string(s.Source))
			return Result{Value: v, Source: s.Source}
		}
	}
	return Result{Source: SourceUnknown}
}

// Estimate converts a byte size into a duration at the given bitrate:
// size*8 / (kbps*1000) seconds. 1,000,000 bytes at 128 kbps is 62.5s.
func Estimate(sizeBytes int64, kbps int) time.Duration {
	if sizeBytes <= 0 || kbps <= 0 {
		return 0
	}
	seconds := float64(sizeBytes) * 8 / (float64(kbps) * 1000)
	return time.Duration(seconds * float64(time.Second))
}

func fromMetadata(_ context.Context, in Input) (time.Duration, bool) {
	if in.Entry == nil {
		return 0, false
	}
	return in.Entry.DeclaredDuration, in.Entry.DeclaredDuration > 0
}

func fromProber(p Prober) func(context.Context, Input) (time.Duration, bool) {
	return func(ctx context.Context, in Input) (time.Duration, bool) {
		d, err := p.ProbeDuration(ctx, in.Path)
		if err != nil {
			l := log.WithComponentFromContext(ctx, "duration")
			l.Debug().
				Err(err).
				Str(log.FieldFile, in.Info.Name()).
				Msg("container duration unavailable")
			return 0, false
		}
		return d, d > 0
	}
}

func fromHandle(_ context.Context, in Input) (time.Duration, bool) {
	if in.Handle == nil {
		return 0, false
	}
	return in.Handle.Duration()
}

func fromSize(kbps int) func(context.Context, Input) (time.Duration, bool) {
	return func(_ context.Context, in Input) (time.Duration, bool) {
		d := Estimate(in.Info.Size(), kbps)
		return d, d > 0
	}
}
