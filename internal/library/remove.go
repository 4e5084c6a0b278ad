// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ManuGH/tunepipe/internal/coverart"
	"github.com/ManuGH/tunepipe/internal/log"
)

var (
	ErrOutsideLibrary = errors.New("path is outside the library")
	ErrNotTrack       = errors.New("not a library track")
)

// Remove deletes the track at name and any cover image extracted next to it,
// then refreshes the playlist. A relative name is taken against the library
// root. It returns the paths actually removed.
func (s *Service) Remove(ctx context.Context, name string) ([]string, error) {
	path, err := s.confine(name)
	if err != nil {
		return nil, err
	}

	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	if info.IsDir() || !isAllowedExtension(ext, DefaultExtensions) {
		return nil, fmt.Errorf("%w: %s", ErrNotTrack, filepath.Base(path))
	}

	if err := os.Remove(path); err != nil {
		return nil, err
	}
	removed := []string{path}

	base := strings.TrimSuffix(path, ext)
	for _, coverExt := range coverart.Extensions {
		p := base + coverExt
		switch err := os.Remove(p); {
		case err == nil:
			removed = append(removed, p)
		case !os.IsNotExist(err):
			s.logger.Warn().Err(err).Str(log.FieldFile, filepath.Base(p)).Msg("failed to remove cover")
		}
	}

	logger := log.WithContext(ctx, s.logger)
	logger.Info().
		Str(log.FieldFile, filepath.Base(path)).
		Int("removed", len(removed)).
		Msg("track removed")

	if err := s.WritePlaylist(ctx); err != nil {
		return removed, fmt.Errorf("refresh playlist: %w", err)
	}
	return removed, nil
}

// confine maps name to a path directly inside the resolved library root.
// The directory is resolved, not the file, so a symlinked track removes the
// link and never its target.
func (s *Service) confine(name string) (string, error) {
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.root, path)
	}
	path = filepath.Clean(path)

	rootResolved, err := filepath.EvalSymlinks(s.root)
	if err != nil {
		return "", fmt.Errorf("resolve library root: %w", err)
	}
	dirResolved, err := filepath.EvalSymlinks(filepath.Dir(path))
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(filepath.Clean(rootResolved), filepath.Join(dirResolved, filepath.Base(path)))
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideLibrary, name)
	}
	return path, nil
}

// ReadTrack describes a single audio file the way Scan would, without
// resolving its duration.
func ReadTrack(path string) (Track, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Track{}, err
	}
	if info.IsDir() {
		return Track{}, fmt.Errorf("%w: %s is a directory", ErrNotTrack, filepath.Base(path))
	}
	t := Track{
		Path:      path,
		RelPath:   filepath.Base(path),
		SizeBytes: info.Size(),
		ModTime:   info.ModTime(),
	}
	readTags(path, &t)
	return t, nil
}
