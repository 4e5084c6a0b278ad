// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package source resolves URLs into entries and fetches their audio with yt-dlp.
package source

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	xnet "github.com/ManuGH/tunepipe/internal/platform/net"
	"github.com/ManuGH/tunepipe/internal/procgroup"
	"github.com/lrstanley/go-ytdlp"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// TempPrefix marks files written by Fetch. The acquisition scan only
	// considers files carrying it.
	TempPrefix   = "dl_"
	TempTemplate = TempPrefix + "%(id)s.%(ext)s"

	DefaultFormat  = "bestaudio/best"
	DefaultRetries = 3

	fieldSep = "\t"

	// yt-dlp alternatives syntax: the first non-empty field wins.
	printTemplate = "%(id)s\t%(title)s\t%(uploader,channel,artist)s\t%(album)s\t" +
		"%(thumbnail,thumbnails.-1.url)s\t%(webpage_url,url)s\t%(duration)s"

	progressMarker   = "[tunepipe]"
	progressTemplate = "download:" + progressMarker +
		"%(progress.status)s|%(progress.downloaded_bytes)s|%(progress.total_bytes,progress.total_bytes_estimate)s"

	progressInterval = 250 * time.Millisecond
)

// ProgressFunc receives fetch progress. percent is in [0,100].
type ProgressFunc func(percent float64, status string)

// Config configures the yt-dlp client.
type Config struct {
	Bin     string // executable, "yt-dlp" when empty
	Proxy   string
	Retries int
	Format  string
}

// YtDlp implements entry resolution and audio fetching.
type YtDlp struct {
	cfg    Config
	logger zerolog.Logger
}

func New(cfg Config) *YtDlp {
	if cfg.Bin == "" {
		cfg.Bin = "yt-dlp"
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	logger := log.WithComponent("source")
	if cfg.Proxy != "" {
		logger.Debug().Str("proxy", xnet.SanitizeURL(cfg.Proxy)).Msg("downloads go through proxy")
	}
	return &YtDlp{cfg: cfg, logger: logger}
}

func (y *YtDlp) command() *ytdlp.Command {
	cmd := ytdlp.New().
		SetExecutable(y.cfg.Bin).
		IgnoreConfig().
		NoWarnings()
	if y.cfg.Proxy != "" {
		cmd.Proxy(y.cfg.Proxy)
	}
	return cmd
}

// Resolve lists the entries behind url without downloading anything. A single
// video yields one entry; a playlist yields its items in order.
func (y *YtDlp) Resolve(ctx context.Context, url string) ([]media.Entry, error) {
	logger := log.WithContext(ctx, y.logger).With().
		Str(log.FieldOp, "resolve").
		Str(log.FieldSourceURL, xnet.SanitizeURL(url)).
		Logger()

	start := time.Now()
	res, err := y.command().
		FlatPlaylist().
		Print(printTemplate).
		Run(ctx, url)

	var stdout string
	if res != nil {
		stdout = res.Stdout
	}
	entries := parseEntries(stdout)

	if len(entries) == 0 {
		if err == nil {
			err = errors.New("no entries")
		}
		logger.Error().Err(err).Str(log.FieldErrorKind, "resolution_failed").Msg("resolution failed")
		return nil, media.NewError("resolve", media.ErrResolutionFailed, "", err)
	}
	if err != nil {
		// Unavailable items make yt-dlp exit non-zero after printing the rest.
		logger.Warn().Err(err).Int(log.FieldTotal, len(entries)).Msg("resolution partially failed")
	}

	logger.Info().
		Int(log.FieldTotal, len(entries)).
		Dur("took", time.Since(start)).
		Msg("resolved entries")
	return entries, nil
}

// Fetch downloads the best audio stream of entry into dir as
// dl_<id>.<ext>. Retries are delegated to yt-dlp. The returned error is
// advisory: the caller inspects dir to decide whether the fetch produced a file.
func (y *YtDlp) Fetch(ctx context.Context, entry media.Entry, dir string, progress ProgressFunc) error {
	logger := log.WithContext(ctx, y.logger).With().
		Str(log.FieldOp, "fetch").
		Str(log.FieldTitle, entry.Title).
		Logger()

	url := entry.SourceURL
	if url == "" {
		return media.Errorf("fetch", media.ErrFetchFailed, "", "entry %q has no source url", entry.ID)
	}

	args, err := y.fetchArgs(entry, dir)
	if err != nil {
		return media.NewError("fetch", media.ErrFetchFailed, "", err)
	}
	cmd := exec.CommandContext(ctx, y.cfg.Bin, args...)

	procgroup.Set(cmd)
	cmd.Cancel = func() error { return procgroup.Kill(cmd, syscall.SIGKILL) }
	cmd.WaitDelay = procgroup.DefaultGrace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return media.NewError("fetch", media.ErrFetchFailed, "", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	logger.Debug().Str(log.FieldTempDir, dir).Msg("starting fetch")
	if err := cmd.Start(); err != nil {
		logger.Error().Err(err).Msg("yt-dlp could not be started")
		return media.NewError("fetch", media.ErrFetchFailed, "", err)
	}

	readProgress(stdout, progress)

	if err := cmd.Wait(); err != nil {
		msg := tail(stderrBuf.String(), 512)
		logger.Warn().Err(err).Str("stderr", msg).Msg("yt-dlp exited with error")
		if ctx.Err() != nil {
			return media.NewError("fetch", media.ErrFetchFailed, "", ctx.Err())
		}
		return media.NewError("fetch", media.ErrFetchFailed, "", fmt.Errorf("%w: %s", err, msg))
	}
	return nil
}

// fetchArgs renders the fetch flags through the yt-dlp builder. The process
// is started here rather than by the builder so it gets its own group and a
// streamed stdout.
func (y *YtDlp) fetchArgs(entry media.Entry, dir string) ([]string, error) {
	retries := strconv.Itoa(y.cfg.Retries)
	flags := y.command().
		Format(y.cfg.Format).
		Output(filepath.Join(dir, TempTemplate)).
		NoPlaylist().
		Newline().
		ProgressTemplate(progressTemplate).
		Retries(retries).
		FragmentRetries(retries).
		ForceOverwrites().
		NoMtime().
		GetFlagConfig()
	if err := flags.Validate(); err != nil {
		return nil, fmt.Errorf("yt-dlp flags: %w", err)
	}

	var args []string
	for _, f := range flags.ToFlags() {
		args = append(args, f.Raw()...)
	}
	return append(args, entry.SourceURL), nil
}

// readProgress forwards template lines to progress. Intermediate updates are
// throttled; the finished line always goes through.
func readProgress(rd io.Reader, progress ProgressFunc) {
	throttle := rate.Sometimes{First: 1, Interval: progressInterval}
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		percent, status, ok := parseProgressLine(scanner.Text())
		if !ok || progress == nil {
			continue
		}
		if status == "finished" {
			progress(percent, status)
			continue
		}
		throttle.Do(func() { progress(percent, status) })
	}
	_, _ = io.Copy(io.Discard, rd)
}

func parseProgressLine(line string) (float64, string, bool) {
	idx := strings.Index(line, progressMarker)
	if idx < 0 {
		return 0, "", false
	}
	parts := strings.Split(strings.TrimSpace(line[idx+len(progressMarker):]), "|")
	if len(parts) != 3 {
		return 0, "", false
	}

	status := parts[0]
	downloaded, errD := strconv.ParseFloat(parts[1], 64)
	total, errT := strconv.ParseFloat(parts[2], 64)

	var percent float64
	switch {
	case status == "finished":
		percent = 100
	case errD == nil && errT == nil && total > 0:
		percent = downloaded / total * 100
	}
	return clampPercent(percent), status, true
}

func parseEntries(stdout string) []media.Entry {
	var entries []media.Entry
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		fields := strings.Split(strings.TrimRight(line, "\r"), fieldSep)
		if len(fields) < 7 {
			continue
		}
		for i := range fields {
			fields[i] = cleanField(fields[i])
		}
		e := media.Entry{
			ID:           fields[0],
			Title:        fields[1],
			Uploader:     fields[2],
			Album:        fields[3],
			ThumbnailURL: fields[4],
			SourceURL:    fields[5],
		}
		if e.ID == "" && e.SourceURL == "" {
			continue
		}
		if secs, err := strconv.ParseFloat(fields[6], 64); err == nil && secs > 0 {
			e.DeclaredDuration = time.Duration(secs * float64(time.Second))
		}
		entries = append(entries, e)
	}
	return entries
}

// cleanField maps yt-dlp's placeholder for missing values to empty.
func cleanField(s string) string {
	s = strings.TrimSpace(s)
	if s == "NA" || s == "None" {
		return ""
	}
	return s
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
