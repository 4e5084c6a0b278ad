// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/tunepipe/internal/acquire"
	"github.com/ManuGH/tunepipe/internal/duration"
	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/bogem/id3v2/v2"
)

// DurationResolver is the subset of duration.Resolver a scan uses.
type DurationResolver interface {
	Resolve(ctx context.Context, path string, entry *media.Entry, handle duration.HandleDuration) duration.Result
}

// ScanConfig bounds a scan.
type ScanConfig struct {
	Root       string
	MaxDepth   int      // 0 means unlimited
	IncludeExt []string // defaults to DefaultExtensions
	Exclude    []string // absolute paths never listed (the playlist itself)
}

// Scanner walks the library directory.
type Scanner struct {
	durations DurationResolver
}

// NewScanner returns a scanner. durations may be nil to skip lengths.
func NewScanner(durations DurationResolver) *Scanner {
	return &Scanner{durations: durations}
}

// Scan lists finished tracks under cfg.Root, sorted by relative path.
// Symlinks resolving outside the root are skipped.
func (sc *Scanner) Scan(ctx context.Context, cfg ScanConfig) (*ScanResult, error) {
	result := &ScanResult{
		Root:    cfg.Root,
		Started: time.Now(),
		Status:  StatusOK,
	}
	include := cfg.IncludeExt
	if len(include) == 0 {
		include = DefaultExtensions
	}
	excluded := make(map[string]bool, len(cfg.Exclude))
	for _, p := range cfg.Exclude {
		excluded[filepath.Clean(p)] = true
	}

	rootResolved, err := filepath.EvalSymlinks(cfg.Root)
	if err != nil {
		result.Finished = time.Now()
		result.Status = StatusFailed
		result.LastError = fmt.Sprintf("root path unresolvable: %v", err)
		return result, fmt.Errorf("resolve library root: %w", err)
	}
	rootResolved = filepath.Clean(rootResolved)

	err = filepath.WalkDir(cfg.Root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			result.ErrorCount++
			logScanError("walk", walkErr, path)
			if d != nil && d.IsDir() && path != cfg.Root {
				return fs.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(cfg.Root, path)
		if err != nil {
			result.ErrorCount++
			return nil
		}

		if d.IsDir() {
			if path == cfg.Root {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			depth := strings.Count(rel, string(os.PathSeparator)) + 1
			if cfg.MaxDepth > 0 && depth >= cfg.MaxDepth {
				return fs.SkipDir
			}
			return nil
		}

		if acquire.IsPartial(d.Name()) || excluded[filepath.Clean(path)] {
			result.Skipped++
			return nil
		}
		if !isAllowedExtension(filepath.Ext(d.Name()), include) {
			result.Skipped++
			return nil
		}

		fileResolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			result.Skipped++
			logScanError("symlink", err, path)
			return nil
		}
		if r, err := filepath.Rel(rootResolved, fileResolved); err != nil || strings.HasPrefix(r, "..") {
			result.ErrorCount++
			logScanError("confinement", fmt.Errorf("path escape: %s", r), path)
			return nil
		}

		info, err := os.Stat(fileResolved)
		if err != nil {
			result.ErrorCount++
			logScanError("stat", err, path)
			return nil
		}
		if info.Size() == 0 {
			result.Skipped++
			return nil
		}

		track := Track{
			Path:      path,
			RelPath:   filepath.ToSlash(rel),
			SizeBytes: info.Size(),
			ModTime:   info.ModTime(),
		}
		readTags(path, &track)
		if sc.durations != nil {
			res := sc.durations.Resolve(ctx, path, nil, nil)
			track.Duration, track.DurationSource = res.Value, res.Source
		}

		result.Tracks = append(result.Tracks, track)
		result.TotalBytes += track.SizeBytes
		return nil
	})

	result.Finished = time.Now()
	if err != nil {
		result.Status = StatusFailed
		result.LastError = err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return result, err
		}
		return result, fmt.Errorf("walk library: %w", err)
	}
	if result.ErrorCount > 0 {
		result.Status = StatusDegraded
	}

	sort.Slice(result.Tracks, func(i, j int) bool {
		return result.Tracks[i].RelPath < result.Tracks[j].RelPath
	})
	return result, nil
}

// readTags fills title, artist and album from an ID3 tag when the file has
// one, and falls back to the file name otherwise.
func readTags(path string, t *Track) {
	base := filepath.Base(path)
	t.Title = strings.TrimSuffix(base, filepath.Ext(base))

	if !media.IsTargetFormat(path) {
		return
	}
	tag, err := id3v2.Open(path, id3v2.Options{
		Parse:       true,
		ParseFrames: []string{"Title", "Artist", "Album/Movie/Show title", "Attached picture"},
	})
	if err != nil {
		logScanError("tag", err, path)
		return
	}
	defer func() { _ = tag.Close() }()

	if !tag.HasFrames() {
		return
	}
	t.Tagged = true
	if s := strings.TrimSpace(tag.Title()); s != "" {
		t.Title = s
	}
	t.Artist = strings.TrimSpace(tag.Artist())
	t.Album = strings.TrimSpace(tag.Album())
	t.HasCover = len(tag.GetFrames(tag.CommonID("Attached picture"))) > 0
}

func isAllowedExtension(ext string, allowed []string) bool {
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

// logScanError logs with a hashed path; library paths can carry personal names.
func logScanError(event string, err error, path string) {
	hash := sha256.Sum256([]byte(path))
	log.L().Warn().
		Str("component", "library").
		Str("event", event).
		Str("path_hash", fmt.Sprintf("%x", hash[:5])).
		Err(err).
		Msg("library scan error")
}
