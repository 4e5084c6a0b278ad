// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package config loads tunepipe's runtime configuration.
//
// Precedence: environment (TUNEPIPE_*) > YAML file > defaults. The YAML file is
// parsed strictly: unknown keys and trailing documents are errors.
package config

import "time"

// AppConfig is the effective, validated configuration.
type AppConfig struct {
	Version string

	DataDir     string // config file, activity log
	LibraryDir  string // permanent home of finalized files
	TempRoot    string // parent of the per-run temp directories
	LogLevel    string
	ActivityLog string

	FFmpeg   FFmpegConfig
	YtDlp    YtDlpConfig
	Acquire  AcquireConfig
	Playback PlaybackConfig
	Cover    CoverConfig
	Library  LibraryConfig
	Metrics  MetricsConfig
}

// FFmpegConfig configures the transcoder and the prober.
type FFmpegConfig struct {
	Bin         string
	FFprobeBin  string
	BitrateKbps int
	SampleRate  int
	Timeout     time.Duration
}

// YtDlpConfig configures the resolver and fetch capability.
type YtDlpConfig struct {
	Bin     string
	Proxy   string
	Retries int
	Format  string
}

// AcquireConfig tunes the acquisition job.
type AcquireConfig struct {
	SettleDelay time.Duration // wait before scanning the temp dir
}

// PlaybackConfig tunes the playback session loop.
type PlaybackConfig struct {
	PollInterval       time.Duration
	TickInterval       time.Duration
	AssumedBitrateKbps int
	UnknownDuration    time.Duration // assumed when no duration source succeeds
}

// CoverConfig configures thumbnail downloads for tagging.
type CoverConfig struct {
	Timeout   time.Duration
	UserAgent string
}

// LibraryConfig configures the library listing.
type LibraryConfig struct {
	Playlist string // M3U written after batch runs; empty disables
}

// MetricsConfig configures the optional prometheus listener.
type MetricsConfig struct {
	Listen string // empty disables
}

// FileConfig mirrors config.yaml. Zero values mean "not set".
type FileConfig struct {
	DataDir     string `yaml:"dataDir,omitempty"`
	LibraryDir  string `yaml:"libraryDir,omitempty"`
	TempRoot    string `yaml:"tempRoot,omitempty"`
	LogLevel    string `yaml:"logLevel,omitempty"`
	ActivityLog string `yaml:"activityLog,omitempty"`

	FFmpeg struct {
		Bin         string        `yaml:"bin,omitempty"`
		FFprobeBin  string        `yaml:"ffprobeBin,omitempty"`
		BitrateKbps int           `yaml:"bitrateKbps,omitempty"`
		SampleRate  int           `yaml:"sampleRate,omitempty"`
		Timeout     time.Duration `yaml:"timeout,omitempty"`
	} `yaml:"ffmpeg,omitempty"`

	YtDlp struct {
		Bin     string `yaml:"bin,omitempty"`
		Proxy   string `yaml:"proxy,omitempty"`
		Retries int    `yaml:"retries,omitempty"`
		Format  string `yaml:"format,omitempty"`
	} `yaml:"ytdlp,omitempty"`

	Acquire struct {
		SettleDelay time.Duration `yaml:"settleDelay,omitempty"`
	} `yaml:"acquire,omitempty"`

	Playback struct {
		PollInterval       time.Duration `yaml:"pollInterval,omitempty"`
		TickInterval       time.Duration `yaml:"tickInterval,omitempty"`
		AssumedBitrateKbps int           `yaml:"assumedBitrateKbps,omitempty"`
		UnknownDuration    time.Duration `yaml:"unknownDuration,omitempty"`
	} `yaml:"playback,omitempty"`

	Cover struct {
		Timeout   time.Duration `yaml:"timeout,omitempty"`
		UserAgent string        `yaml:"userAgent,omitempty"`
	} `yaml:"cover,omitempty"`

	Library struct {
		Playlist string `yaml:"playlist,omitempty"`
	} `yaml:"library,omitempty"`

	Metrics struct {
		Listen string `yaml:"listen,omitempty"`
	} `yaml:"metrics,omitempty"`
}
