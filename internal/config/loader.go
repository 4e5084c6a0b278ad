// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Env keys read by the loader.
const (
	EnvDataDir        = "TUNEPIPE_DATA_DIR"
	EnvLibraryDir     = "TUNEPIPE_LIBRARY_DIR"
	EnvTempRoot       = "TUNEPIPE_TEMP_DIR"
	EnvLogLevel       = "TUNEPIPE_LOG_LEVEL"
	EnvActivityLog    = "TUNEPIPE_ACTIVITY_LOG"
	EnvFFmpegBin      = "TUNEPIPE_FFMPEG_BIN"
	EnvFFprobeBin     = "TUNEPIPE_FFPROBE_BIN"
	EnvFFmpegBitrate  = "TUNEPIPE_FFMPEG_BITRATE_KBPS"
	EnvFFmpegRate     = "TUNEPIPE_FFMPEG_SAMPLE_RATE"
	EnvFFmpegTimeout  = "TUNEPIPE_FFMPEG_TIMEOUT"
	EnvYtDlpBin       = "TUNEPIPE_YTDLP_BIN"
	EnvYtDlpProxy     = "TUNEPIPE_YTDLP_PROXY"
	EnvYtDlpRetries   = "TUNEPIPE_YTDLP_RETRIES"
	EnvYtDlpFormat    = "TUNEPIPE_YTDLP_FORMAT"
	EnvSettleDelay    = "TUNEPIPE_SETTLE_DELAY"
	EnvPollInterval   = "TUNEPIPE_POLL_INTERVAL"
	EnvTickInterval   = "TUNEPIPE_TICK_INTERVAL"
	EnvAssumedBitrate = "TUNEPIPE_ASSUMED_BITRATE_KBPS"
	EnvUnknownDur     = "TUNEPIPE_UNKNOWN_DURATION"
	EnvCoverTimeout   = "TUNEPIPE_COVER_TIMEOUT"
	EnvPlaylist       = "TUNEPIPE_PLAYLIST"
	EnvMetricsListen  = "TUNEPIPE_METRICS_LISTEN"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{} // keys the loader looked at
}

// NewLoader creates a new configuration loader. configPath may be empty.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envDuration(key string, defaultVal time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then resolves derived paths and validates.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		fileCfg, err := l.loadFile(l.configPath)
		if err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
		mergeFileConfig(&cfg, fileCfg)
	}

	l.mergeEnvConfig(&cfg)

	cfg.FFmpeg.FFprobeBin = ResolveFFprobeBin(cfg.FFmpeg.FFprobeBin, cfg.FFmpeg.Bin)
	if err := resolvePaths(&cfg); err != nil {
		return cfg, err
	}
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	dataDir := ".tunepipe"
	if dir, err := os.UserConfigDir(); err == nil {
		dataDir = filepath.Join(dir, "tunepipe")
	}
	libraryDir := "library"
	if home, err := os.UserHomeDir(); err == nil {
		libraryDir = filepath.Join(home, "Music", "tunepipe")
	}

	return AppConfig{
		DataDir:    dataDir,
		LibraryDir: libraryDir,
		TempRoot:   os.TempDir(),
		LogLevel:   "info",
		FFmpeg: FFmpegConfig{
			Bin:         "ffmpeg",
			BitrateKbps: 192,
			SampleRate:  44100,
			Timeout:     120 * time.Second,
		},
		YtDlp: YtDlpConfig{
			Bin:     "yt-dlp",
			Retries: 3,
			Format:  "bestaudio/best",
		},
		Acquire: AcquireConfig{
			SettleDelay: 500 * time.Millisecond,
		},
		Playback: PlaybackConfig{
			PollInterval:       300 * time.Millisecond,
			TickInterval:       500 * time.Millisecond,
			AssumedBitrateKbps: 128,
			UnknownDuration:    300 * time.Second,
		},
		Cover: CoverConfig{
			Timeout:   15 * time.Second,
			UserAgent: "Mozilla/5.0",
		},
	}
}

// loadFile loads configuration from a YAML file with STRICT parsing.
// Unknown fields will cause a fatal error to prevent misconfiguration.
func (l *Loader) loadFile(path string) (*FileConfig, error) {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("unsupported config format: %s (only YAML supported)", ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	var fileCfg FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(&fileCfg); err != nil {
		if errors.Is(err, io.EOF) {
			return &FileConfig{}, nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return nil, fmt.Errorf("strict config parse error: %w: %w", ErrUnknownConfigField, err)
		}
		return nil, fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config file contains multiple documents or trailing content")
	}

	return &fileCfg, nil
}

func mergeFileConfig(cfg *AppConfig, f *FileConfig) {
	setString(&cfg.DataDir, f.DataDir)
	setString(&cfg.LibraryDir, f.LibraryDir)
	setString(&cfg.TempRoot, f.TempRoot)
	setString(&cfg.LogLevel, f.LogLevel)
	setString(&cfg.ActivityLog, f.ActivityLog)

	setString(&cfg.FFmpeg.Bin, f.FFmpeg.Bin)
	setString(&cfg.FFmpeg.FFprobeBin, f.FFmpeg.FFprobeBin)
	setInt(&cfg.FFmpeg.BitrateKbps, f.FFmpeg.BitrateKbps)
	setInt(&cfg.FFmpeg.SampleRate, f.FFmpeg.SampleRate)
	setDuration(&cfg.FFmpeg.Timeout, f.FFmpeg.Timeout)

	setString(&cfg.YtDlp.Bin, f.YtDlp.Bin)
	setString(&cfg.YtDlp.Proxy, f.YtDlp.Proxy)
	setInt(&cfg.YtDlp.Retries, f.YtDlp.Retries)
	setString(&cfg.YtDlp.Format, f.YtDlp.Format)

	setDuration(&cfg.Acquire.SettleDelay, f.Acquire.SettleDelay)

	setDuration(&cfg.Playback.PollInterval, f.Playback.PollInterval)
	setDuration(&cfg.Playback.TickInterval, f.Playback.TickInterval)
	setInt(&cfg.Playback.AssumedBitrateKbps, f.Playback.AssumedBitrateKbps)
	setDuration(&cfg.Playback.UnknownDuration, f.Playback.UnknownDuration)

	setDuration(&cfg.Cover.Timeout, f.Cover.Timeout)
	setString(&cfg.Cover.UserAgent, f.Cover.UserAgent)

	setString(&cfg.Library.Playlist, f.Library.Playlist)
	setString(&cfg.Metrics.Listen, f.Metrics.Listen)
}

func (l *Loader) mergeEnvConfig(cfg *AppConfig) {
	cfg.DataDir = l.envString(EnvDataDir, cfg.DataDir)
	cfg.LibraryDir = l.envString(EnvLibraryDir, cfg.LibraryDir)
	cfg.TempRoot = l.envString(EnvTempRoot, cfg.TempRoot)
	cfg.LogLevel = l.envString(EnvLogLevel, cfg.LogLevel)
	cfg.ActivityLog = l.envString(EnvActivityLog, cfg.ActivityLog)

	cfg.FFmpeg.Bin = l.envString(EnvFFmpegBin, cfg.FFmpeg.Bin)
	cfg.FFmpeg.FFprobeBin = l.envString(EnvFFprobeBin, cfg.FFmpeg.FFprobeBin)
	cfg.FFmpeg.BitrateKbps = l.envInt(EnvFFmpegBitrate, cfg.FFmpeg.BitrateKbps)
	cfg.FFmpeg.SampleRate = l.envInt(EnvFFmpegRate, cfg.FFmpeg.SampleRate)
	cfg.FFmpeg.Timeout = l.envDuration(EnvFFmpegTimeout, cfg.FFmpeg.Timeout)

	cfg.YtDlp.Bin = l.envString(EnvYtDlpBin, cfg.YtDlp.Bin)
	cfg.YtDlp.Proxy = l.envString(EnvYtDlpProxy, cfg.YtDlp.Proxy)
	cfg.YtDlp.Retries = l.envInt(EnvYtDlpRetries, cfg.YtDlp.Retries)
	cfg.YtDlp.Format = l.envString(EnvYtDlpFormat, cfg.YtDlp.Format)

	cfg.Acquire.SettleDelay = l.envDuration(EnvSettleDelay, cfg.Acquire.SettleDelay)

	cfg.Playback.PollInterval = l.envDuration(EnvPollInterval, cfg.Playback.PollInterval)
	cfg.Playback.TickInterval = l.envDuration(EnvTickInterval, cfg.Playback.TickInterval)
	cfg.Playback.AssumedBitrateKbps = l.envInt(EnvAssumedBitrate, cfg.Playback.AssumedBitrateKbps)
	cfg.Playback.UnknownDuration = l.envDuration(EnvUnknownDur, cfg.Playback.UnknownDuration)

	cfg.Cover.Timeout = l.envDuration(EnvCoverTimeout, cfg.Cover.Timeout)

	cfg.Library.Playlist = l.envString(EnvPlaylist, cfg.Library.Playlist)
	cfg.Metrics.Listen = l.envString(EnvMetricsListen, cfg.Metrics.Listen)
}

// resolvePaths expands and absolutizes directories and fills derived paths.
func resolvePaths(cfg *AppConfig) error {
	for _, p := range []*string{&cfg.DataDir, &cfg.LibraryDir, &cfg.TempRoot} {
		*p = expandPath(*p)
		abs, err := filepath.Abs(*p)
		if err != nil {
			return fmt.Errorf("resolve path %q: %w", *p, err)
		}
		*p = abs
	}
	if cfg.ActivityLog == "" {
		cfg.ActivityLog = filepath.Join(cfg.DataDir, "activity.log")
	} else {
		cfg.ActivityLog = expandPath(cfg.ActivityLog)
	}
	if cfg.Library.Playlist != "" {
		cfg.Library.Playlist = expandPath(cfg.Library.Playlist)
		if !filepath.IsAbs(cfg.Library.Playlist) {
			cfg.Library.Playlist = filepath.Join(cfg.LibraryDir, cfg.Library.Playlist)
		}
	}
	return nil
}

// DefaultConfigPath is the config file auto-loaded when --config is not given.
func DefaultConfigPath(dataDir string) string {
	return filepath.Join(expandPath(dataDir), "config.yaml")
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if v != 0 {
		*dst = v
	}
}
