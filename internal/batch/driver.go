// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package batch downloads every entry behind a URL into the library
// directory, one after another.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/metrics"
	"github.com/ManuGH/tunepipe/internal/source"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type Resolver interface {
	Resolve(ctx context.Context, url string) ([]media.Entry, error)
}

type Acquirer interface {
	Acquire(ctx context.Context, entry media.Entry, dir string, progress source.ProgressFunc) (*media.AcquisitionResult, error)
}

// Tagger embeds metadata into target-format files.
type Tagger interface {
	Embed(ctx context.Context, path string, entry media.Entry) error
}

// PlaylistWriter regenerates the library playlist after a run.
type PlaylistWriter interface {
	WritePlaylist(ctx context.Context) error
}

type Config struct {
	TempRoot   string
	LibraryDir string
}

// Summary reports a finished run. Err is set only when the run could not
// start (resolution or setup failure); per-item failures are counted.
type Summary struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Files     []string
	Bytes     int64
	Stopped   bool
	Err       error
}

type Driver struct {
	resolver Resolver
	acquirer Acquirer
	tagger   Tagger
	playlist PlaylistWriter
	pub      events.Publisher
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Driver)

// WithTagger enables tag embedding for target-format files.
func WithTagger(t Tagger) Option {
	return func(d *Driver) { d.tagger = t }
}

// WithPlaylist regenerates the library playlist at the end of each run.
func WithPlaylist(p PlaylistWriter) Option {
	return func(d *Driver) { d.playlist = p }
}

func NewDriver(resolver Resolver, acquirer Acquirer, pub events.Publisher, cfg Config, opts ...Option) *Driver {
	if pub == nil {
		pub = events.Nop{}
	}
	d := &Driver{
		resolver: resolver,
		acquirer: acquirer,
		pub:      pub,
		cfg:      cfg,
		logger:   log.WithComponent("batch"),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run resolves url and downloads each entry sequentially. Cancellation is
// honoured between entries; an item in progress always finishes.
func (d *Driver) Run(ctx context.Context, url string, token *cancel.Token) Summary {
	runID := uuid.NewString()
	ctx = log.ContextWithRunID(ctx, runID)
	logger := log.WithContext(ctx, d.logger).With().Str(log.FieldSourceURL, url).Logger()
	sum := Summary{RunID: runID}

	d.pub.Publish(events.BatchProgressShown{})
	defer func() {
		d.pub.Publish(events.BatchProgressHidden{Succeeded: sum.Succeeded, Failed: sum.Failed})
	}()

	if err := os.MkdirAll(d.cfg.LibraryDir, 0o755); err != nil {
		sum.Err = fmt.Errorf("create library dir: %w", err)
		return sum
	}
	dir, err := os.MkdirTemp(d.cfg.TempRoot, "batch-*")
	if err != nil {
		sum.Err = fmt.Errorf("create batch temp dir: %w", err)
		return sum
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warn().Err(err).Str(log.FieldTempDir, dir).Msg("failed to remove batch temp dir")
		}
	}()

	entries, err := d.resolver.Resolve(context.WithoutCancel(ctx), url)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldErrorKind, media.KindOf(err)).Msg("batch resolution failed")
		sum.Err = err
		return sum
	}
	sum.Total = len(entries)
	logger.Info().Int(log.FieldTotal, sum.Total).Msg("batch started")

	for i, entry := range entries {
		if token.IsCancelled() {
			sum.Stopped = true
			logger.Info().Int(log.FieldIndex, i+1).Msg("batch stopped")
			break
		}

		name := media.SanitizeFilename(entry.DisplayName())
		d.pub.Publish(events.BatchItem{Index: i + 1, Total: sum.Total, Name: name})

		path, size, err := d.item(ctx, entry, i, sum.Total, dir, name)
		if err != nil {
			sum.Failed++
			metrics.IncBatchItem(media.KindOf(err))
			continue
		}
		sum.Succeeded++
		sum.Files = append(sum.Files, path)
		sum.Bytes += size
		metrics.IncBatchItem("ok")
	}

	if d.playlist != nil && sum.Succeeded > 0 {
		if err := d.playlist.WritePlaylist(ctx); err != nil {
			logger.Warn().Err(err).Msg("failed to refresh library playlist")
		}
	}

	logger.Info().
		Int("succeeded", sum.Succeeded).
		Int("failed", sum.Failed).
		Str("bytes", humanize.Bytes(uint64(sum.Bytes))).
		Bool("stopped", sum.Stopped).
		Msg("batch finished")
	return sum
}

// item acquires and relocates one entry. Panics are contained to the item.
func (d *Driver) item(ctx context.Context, entry media.Entry, i, total int, dir, name string) (path string, size int64, err error) {
	ctx = log.ContextWithEntryID(ctx, entry.ID)
	logger := log.WithContext(ctx, d.logger).With().
		Int(log.FieldIndex, i+1).
		Int(log.FieldTotal, total).
		Str(log.FieldTitle, entry.Title).
		Logger()

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error().
				Str("panic", fmt.Sprint(rec)).
				Str("stack", string(debug.Stack())).
				Msg("batch item panicked, moving on")
			err = fmt.Errorf("batch item panic: %v", rec)
		}
	}()

	// Stop is honoured between items; an acquisition in flight runs to the end.
	res, err := d.acquirer.Acquire(context.WithoutCancel(ctx), entry, dir, nil)
	if err != nil {
		logger.Warn().
			Err(err).
			Str(log.FieldOp, "acquire").
			Str(log.FieldErrorKind, media.KindOf(err)).
			Msg("item failed, skipping")
		return "", 0, err
	}

	dst := destination(d.cfg.LibraryDir, name, res.LocalPath, res.IsTargetFormat, d.now())
	if err := relocate(res.LocalPath, dst); err != nil {
		logger.Error().
			Err(err).
			Str(log.FieldOp, "relocate").
			Str(log.FieldFile, filepath.Base(res.LocalPath)).
			Str(log.FieldErrorKind, media.KindOf(err)).
			Msg("could not move file into library, skipping")
		return "", 0, err
	}

	if res.IsTargetFormat && d.tagger != nil {
		if err := d.tagger.Embed(ctx, dst, entry); err != nil {
			logger.Warn().Err(err).Str(log.FieldOp, "tag").Str(log.FieldFile, filepath.Base(dst)).Msg("tagging failed, file kept untagged")
		}
	}

	size = res.SizeBytes
	if info, err := os.Stat(dst); err == nil {
		size = info.Size()
	}
	logger.Info().
		Str(log.FieldOp, "relocate").
		Str(log.FieldFinalPath, dst).
		Bool("target_format", res.IsTargetFormat).
		Int64(log.FieldSizeBytes, size).
		Msg("saved to library")
	return dst, size, nil
}
