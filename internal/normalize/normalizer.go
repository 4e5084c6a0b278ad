// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package normalize converts downloaded containers to the target format (MP3)
// with an external ffmpeg process. It is best-effort: every failure leaves no
// target file behind and callers fall back to the original file.
package normalize

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultBitrateKbps = 192
	DefaultSampleRate  = 44100
	DefaultTimeout     = 120 * time.Second
)

// ErrTranscoderUnavailable is returned when ffmpeg cannot be executed.
var ErrTranscoderUnavailable = errors.New("transcoder unavailable")

// Runner executes the transcoder. The context carries the time budget.
type Runner interface {
	Run(ctx context.Context, bin string, args []string) error
}

// Config configures a Normalizer.
type Config struct {
	Bin         string // ffmpeg binary, "ffmpeg" when empty
	BitrateKbps int
	SampleRate  int
	Timeout     time.Duration
}

// Normalizer transcodes to MP3 at a fixed bitrate and sample rate.
type Normalizer struct {
	cfg    Config
	runner Runner
	logger zerolog.Logger

	availOnce sync.Once
	available bool
}

// New returns a Normalizer that supervises a real ffmpeg process.
func New(cfg Config) *Normalizer {
	logger := log.WithComponent("normalize")
	return NewWithRunner(cfg, &ProcessRunner{Logger: logger})
}

// NewWithRunner returns a Normalizer with a custom runner (tests).
func NewWithRunner(cfg Config, runner Runner) *Normalizer {
	if cfg.Bin == "" {
		cfg.Bin = "ffmpeg"
	}
	if cfg.BitrateKbps <= 0 {
		cfg.BitrateKbps = DefaultBitrateKbps
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultSampleRate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Normalizer{cfg: cfg, runner: runner, logger: log.WithComponent("normalize")}
}

// Available reports whether `ffmpeg -version` runs. The probe happens once.
func (n *Normalizer) Available(ctx context.Context) bool {
	n.availOnce.Do(func() {
		probeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		err := n.runner.Run(probeCtx, n.cfg.Bin, []string{"-version"})
		n.available = err == nil
		if err != nil {
			n.logger.Warn().Err(err).Str("bin", n.cfg.Bin).Msg("ffmpeg not available, normalization disabled")
		}
	})
	return n.available
}

// Args returns the transcoder arguments for src -> dst.
func (n *Normalizer) Args(src, dst string) []string {
	return []string{
		"-y",
		"-i", src,
		"-vn",
		"-ab", strconv.Itoa(n.cfg.BitrateKbps) + "k",
		"-ar", strconv.Itoa(n.cfg.SampleRate),
		"-f", "mp3",
		dst,
	}
}

// Normalize transcodes src into dst. On any failure dst is removed and the
// returned error matches media.ErrNormalizeFailed.
//
// The time budget is detached from ctx cancellation: a started transcoder runs
// until it exits or its own timeout expires, even if the run is stopped.
func (n *Normalizer) Normalize(ctx context.Context, src, dst string) error {
	logger := log.WithContext(ctx, n.logger).With().
		Str(log.FieldOp, "normalize").
		Str(log.FieldFile, filepath.Base(src)).
		Logger()

	info, err := os.Stat(src)
	if err != nil {
		metrics.IncNormalizeRun("bad_input")
		return media.NewError("normalize", media.ErrNormalizeFailed, filepath.Base(src), err)
	}
	if info.Size() == 0 {
		metrics.IncNormalizeRun("bad_input")
		return media.Errorf("normalize", media.ErrNormalizeFailed, filepath.Base(src), "source is empty")
	}

	if !n.Available(ctx) {
		metrics.IncNormalizeRun("unavailable")
		removeTarget(logger, dst)
		return media.NewError("normalize", media.ErrNormalizeFailed, filepath.Base(src), ErrTranscoderUnavailable)
	}

	budget, cancel := context.WithTimeout(context.WithoutCancel(ctx), n.cfg.Timeout)
	defer cancel()

	start := time.Now()
	logger.Info().
		Int("bitrate_kbps", n.cfg.BitrateKbps).
		Int("sample_rate", n.cfg.SampleRate).
		Dur("budget", n.cfg.Timeout).
		Msg("transcoding to target format")

	err = n.runner.Run(budget, n.cfg.Bin, n.Args(src, dst))
	metrics.ObserveNormalizeDuration(time.Since(start))
	if err != nil {
		result := "exit_nonzero"
		if errors.Is(budget.Err(), context.DeadlineExceeded) {
			result = "timeout"
			err = fmt.Errorf("transcoder exceeded %s: %w", n.cfg.Timeout, err)
		}
		metrics.IncNormalizeRun(result)
		removeTarget(logger, dst)
		logger.Warn().Err(err).Str(log.FieldOutcome, result).Msg("transcode failed, keeping original format")
		return media.NewError("normalize", media.ErrNormalizeFailed, filepath.Base(src), err)
	}

	out, err := os.Stat(dst)
	if err != nil || out.Size() == 0 {
		metrics.IncNormalizeRun("empty_output")
		removeTarget(logger, dst)
		if err == nil {
			err = errors.New("transcoder produced an empty file")
		}
		logger.Warn().Err(err).Msg("transcode produced no usable output")
		return media.NewError("normalize", media.ErrNormalizeFailed, filepath.Base(src), err)
	}

	metrics.IncNormalizeRun("ok")
	logger.Info().
		Int64(log.FieldSizeBytes, out.Size()).
		Dur("took", time.Since(start)).
		Msg("transcode complete")
	return nil
}

func removeTarget(logger zerolog.Logger, dst string) {
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Str(log.FieldPath, dst).Msg("failed to remove partial target")
	}
}
