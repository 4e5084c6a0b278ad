// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquire

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ManuGH/tunepipe/internal/source"
)

var partialSuffixes = []string{".part", ".ytdl", ".partial", ".tmp", ".lock", ".temp"}

// IsPartial reports whether name carries a known in-progress download suffix.
func IsPartial(name string) bool {
	lower := strings.ToLower(name)
	for _, suffix := range partialSuffixes {
		if strings.HasSuffix(lower, suffix) {
			return true
		}
	}
	return false
}

type candidate struct {
	path    string
	size    int64
	modTime time.Time
	ownID   bool
}

// scanResult separates usable files from empty ones so the caller can tell
// "nothing was written" from "only empty files were written".
type scanResult struct {
	best       *candidate
	emptyCount int
}

// scanCandidates finds the file a fetch produced in dir. Files named after
// entryID win over other fresh dl_ files; among equals the newest mtime wins.
// Another writer in the same directory can still race this scan.
func scanCandidates(dir, entryID string, since time.Time) (scanResult, error) {
	var res scanResult

	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return res, err
	}

	// Second granularity filesystems truncate mtimes.
	cutoff := since.Truncate(time.Second)
	ownPrefix := source.TempPrefix + entryID + "."

	var usable []candidate
	for _, de := range dirEntries {
		name := de.Name()
		if !de.Type().IsRegular() || !strings.HasPrefix(name, source.TempPrefix) || IsPartial(name) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			continue
		}
		if info.Size() == 0 {
			res.emptyCount++
			continue
		}
		usable = append(usable, candidate{
			path:    filepath.Join(dir, name),
			size:    info.Size(),
			modTime: info.ModTime(),
			ownID:   entryID != "" && strings.HasPrefix(name, ownPrefix),
		})
	}

	sort.SliceStable(usable, func(i, j int) bool {
		if usable[i].ownID != usable[j].ownID {
			return usable[i].ownID
		}
		return usable[i].modTime.After(usable[j].modTime)
	})
	if len(usable) > 0 {
		res.best = &usable[0]
	}
	return res, nil
}

// normalizedPath returns the transcoder target for src.
func normalizedPath(src string) string {
	ext := filepath.Ext(src)
	base := strings.TrimSuffix(src, ext)
	if strings.EqualFold(ext, ".mp3") {
		return base + ".norm.mp3"
	}
	return base + ".mp3"
}
