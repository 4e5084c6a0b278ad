// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	xnet "github.com/ManuGH/tunepipe/internal/platform/net"
	"github.com/rs/zerolog"
)

// Validate checks the effective configuration and reports every problem at once.
func Validate(cfg AppConfig) error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if strings.TrimSpace(cfg.LibraryDir) == "" {
		add("libraryDir must not be empty")
	}
	if strings.TrimSpace(cfg.TempRoot) == "" {
		add("tempRoot must not be empty")
	}
	if cfg.LibraryDir != "" && cfg.TempRoot != "" && filepath.Clean(cfg.LibraryDir) == filepath.Clean(cfg.TempRoot) {
		// Run cleanup purges its temp dir; it must never be the library.
		add("tempRoot must differ from libraryDir")
	}
	if cfg.LogLevel != "" {
		if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
			add("logLevel %q: %v", cfg.LogLevel, err)
		}
	}

	if cfg.FFmpeg.Bin == "" {
		add("ffmpeg.bin must not be empty")
	}
	if cfg.FFmpeg.BitrateKbps < 32 || cfg.FFmpeg.BitrateKbps > 320 {
		add("ffmpeg.bitrateKbps %d out of range [32,320]", cfg.FFmpeg.BitrateKbps)
	}
	switch cfg.FFmpeg.SampleRate {
	case 22050, 32000, 44100, 48000:
	default:
		add("ffmpeg.sampleRate %d unsupported", cfg.FFmpeg.SampleRate)
	}
	positive(&errs, "ffmpeg.timeout", cfg.FFmpeg.Timeout)

	if cfg.YtDlp.Bin == "" {
		add("ytdlp.bin must not be empty")
	}
	if cfg.YtDlp.Proxy != "" {
		if err := xnet.ValidateProxyURL(cfg.YtDlp.Proxy); err != nil {
			add("ytdlp.proxy: %v", err)
		}
	}
	if cfg.YtDlp.Retries < 0 {
		add("ytdlp.retries must be >= 0")
	}

	if cfg.Acquire.SettleDelay < 0 {
		add("acquire.settleDelay must be >= 0")
	}
	positive(&errs, "playback.pollInterval", cfg.Playback.PollInterval)
	positive(&errs, "playback.tickInterval", cfg.Playback.TickInterval)
	positive(&errs, "playback.unknownDuration", cfg.Playback.UnknownDuration)
	if cfg.Playback.AssumedBitrateKbps <= 0 {
		add("playback.assumedBitrateKbps must be > 0")
	}
	positive(&errs, "cover.timeout", cfg.Cover.Timeout)

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func positive(errs *[]error, name string, d time.Duration) {
	if d <= 0 {
		*errs = append(*errs, fmt.Errorf("%s must be > 0", name))
	}
}
