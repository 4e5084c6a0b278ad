// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/playlist"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
)

// Service scans one library directory and maintains its playlist.
type Service struct {
	root     string
	playlist string
	scanner  *Scanner
	logger   zerolog.Logger
}

// NewService returns a service for root. playlistPath may be empty, in
// which case WritePlaylist is a no-op.
func NewService(root, playlistPath string, durations DurationResolver) *Service {
	return &Service{
		root:     root,
		playlist: playlistPath,
		scanner:  NewScanner(durations),
		logger:   log.WithComponent("library"),
	}
}

// Scan lists the library.
func (s *Service) Scan(ctx context.Context) (*ScanResult, error) {
	cfg := ScanConfig{Root: s.root}
	if s.playlist != "" {
		cfg.Exclude = []string{s.playlist}
	}
	return s.scanner.Scan(ctx, cfg)
}

// WritePlaylist rescans the library and atomically replaces the playlist.
func (s *Service) WritePlaylist(ctx context.Context) error {
	if s.playlist == "" {
		return nil
	}
	res, err := s.Scan(ctx)
	if err != nil {
		return err
	}
	items := Items(res.Tracks, filepath.Dir(s.playlist))
	if err := writeM3U(ctx, s.playlist, items); err != nil {
		return err
	}
	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str("path", s.playlist).
		Int("tracks", len(items)).
		Msg("library playlist written")
	return nil
}

// Items converts tracks into playlist lines with paths relative to base
// where possible.
func Items(tracks []Track, base string) []playlist.Item {
	items := make([]playlist.Item, 0, len(tracks))
	for _, t := range tracks {
		secs := -1
		if t.DurationKnown() {
			secs = int(t.Duration.Seconds() + 0.5)
		}
		p := t.Path
		if rel, err := filepath.Rel(base, t.Path); err == nil && !strings.HasPrefix(rel, "..") {
			p = filepath.ToSlash(rel)
		}
		items = append(items, playlist.Item{Title: displayTitle(t), Seconds: secs, Path: p})
	}
	return items
}

func displayTitle(t Track) string {
	if t.Artist != "" {
		return t.Artist + " - " + t.Title
	}
	return t.Title
}

func writeM3U(ctx context.Context, path string, items []playlist.Item) error {
	logger := log.FromContext(ctx)

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create playlist dir: %w", err)
	}
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending M3U file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger.Debug().Err(err).Msg("cleanup pending M3U file")
		}
	}()

	if err := playlist.WriteM3U(pendingFile, items); err != nil {
		return fmt.Errorf("write M3U data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace M3U file: %w", err)
	}
	return nil
}
