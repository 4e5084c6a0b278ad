// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package acquire turns one resolved entry into a playable local file:
// fetch, locate the written file, and normalize it when it is not MP3.
package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/metrics"
	"github.com/ManuGH/tunepipe/internal/source"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultSettleDelay gives the fetcher time to finish renaming its output.
const DefaultSettleDelay = 500 * time.Millisecond

// Fetcher downloads an entry into a directory.
type Fetcher interface {
	Fetch(ctx context.Context, entry media.Entry, dir string, progress source.ProgressFunc) error
}

// Normalizer converts a file into the target format.
type Normalizer interface {
	Normalize(ctx context.Context, src, dst string) error
}

type Config struct {
	SettleDelay time.Duration
}

// Job runs acquisitions. It holds no per-entry state and is safe for
// concurrent use as long as concurrent calls use different directories or
// entries with distinct IDs.
type Job struct {
	fetcher    Fetcher
	normalizer Normalizer
	cfg        Config
	logger     zerolog.Logger
	now        func() time.Time
}

func New(fetcher Fetcher, normalizer Normalizer, cfg Config) *Job {
	if cfg.SettleDelay < 0 {
		cfg.SettleDelay = 0
	}
	return &Job{
		fetcher:    fetcher,
		normalizer: normalizer,
		cfg:        cfg,
		logger:     log.WithComponent("acquire"),
		now:        time.Now,
	}
}

// Acquire fetches entry into tempDir and returns the local file to use.
//
// The directory is the source of truth: a fetch error followed by a usable
// file still succeeds. Errors match media.ErrFetchFailed or media.ErrEmptyFile.
func (j *Job) Acquire(ctx context.Context, entry media.Entry, tempDir string, progress source.ProgressFunc) (*media.AcquisitionResult, error) {
	ctx = log.ContextWithJobID(ctx, uuid.NewString())
	ctx = log.ContextWithEntryID(ctx, entry.ID)
	logger := log.WithContext(ctx, j.logger).With().
		Str(log.FieldTitle, entry.Title).
		Logger()

	start := j.now()
	fetchErr := j.fetcher.Fetch(ctx, entry, tempDir, progress)
	if fetchErr != nil {
		logger.Warn().Err(fetchErr).Str(log.FieldOp, "fetch").Msg("fetch reported an error, checking for output anyway")
	}

	if j.cfg.SettleDelay > 0 {
		t := time.NewTimer(j.cfg.SettleDelay)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
		}
	}

	scan, err := scanCandidates(tempDir, entry.ID, start)
	if err != nil {
		metrics.IncAcquisition("fetch_failed", time.Since(start))
		return nil, media.NewError("acquire", media.ErrFetchFailed, "", errors.Join(fetchErr, err))
	}
	if scan.best == nil {
		kind := media.ErrFetchFailed
		if scan.emptyCount > 0 {
			kind = media.ErrEmptyFile
		}
		metrics.IncAcquisition(media.KindOf(kind), time.Since(start))
		logger.Error().
			Err(fetchErr).
			Str(log.FieldOp, "scan").
			Str(log.FieldErrorKind, media.KindOf(kind)).
			Int("empty_files", scan.emptyCount).
			Msg("no usable file after fetch")
		return nil, media.NewError("acquire", kind, "", fetchErr)
	}

	path := scan.best.path
	logger.Info().
		Str(log.FieldOp, "scan").
		Str(log.FieldFile, filepath.Base(path)).
		Int64(log.FieldSizeBytes, scan.best.size).
		Msg("fetched file located")

	if media.IsTargetFormat(path) {
		metrics.IncAcquisition("target", time.Since(start))
		return &media.AcquisitionResult{LocalPath: path, IsTargetFormat: true, SizeBytes: scan.best.size, Entry: entry}, nil
	}

	dst := normalizedPath(path)
	if err := j.normalizer.Normalize(ctx, path, dst); err != nil {
		metrics.IncAcquisition("original", time.Since(start))
		logger.Warn().
			Err(err).
			Str(log.FieldOp, "normalize").
			Str(log.FieldFile, filepath.Base(path)).
			Msg("keeping original format")
		return &media.AcquisitionResult{LocalPath: path, IsTargetFormat: false, SizeBytes: scan.best.size, Entry: entry}, nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str(log.FieldFile, filepath.Base(path)).Msg("failed to remove original after normalization")
	}

	var size int64
	if info, err := os.Stat(dst); err == nil {
		size = info.Size()
	}
	metrics.IncAcquisition("normalized", time.Since(start))
	logger.Info().
		Str(log.FieldOp, "normalize").
		Str(log.FieldFile, filepath.Base(dst)).
		Int64(log.FieldSizeBytes, size).
		Msg("normalized to target format")
	return &media.AcquisitionResult{LocalPath: dst, IsTargetFormat: true, SizeBytes: size, Entry: entry}, nil
}
