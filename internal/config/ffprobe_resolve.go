// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"strings"
)

const defaultFFprobeBin = "ffprobe"

// ResolveFFprobeBin returns an effective ffprobe binary path based on configured values.
//
// Resolution order:
// 1) Explicit ffprobeBin (ffmpeg.ffprobeBin or TUNEPIPE_FFPROBE_BIN)
// 2) Derive from ffmpegBin (.../ffmpeg -> .../ffprobe) if the derived binary exists
// 3) "ffprobe", resolved through PATH at invocation time
func ResolveFFprobeBin(ffprobeBin, ffmpegBin string) string {
	return resolveFFprobeBinWithStat(ffprobeBin, ffmpegBin, os.Stat)
}

func resolveFFprobeBinWithStat(ffprobeBin, ffmpegBin string, stat func(string) (os.FileInfo, error)) string {
	if ffprobeBin = strings.TrimSpace(ffprobeBin); ffprobeBin != "" {
		return ffprobeBin
	}

	ffmpegBin = strings.TrimSpace(ffmpegBin)
	// Only derive from a concrete path; a bare "ffmpeg" is a PATH lookup.
	if !strings.ContainsRune(ffmpegBin, filepath.Separator) {
		return defaultFFprobeBin
	}

	name := filepath.Base(ffmpegBin)
	var probeName string
	switch name {
	case "ffmpeg":
		probeName = "ffprobe"
	case "ffmpeg.exe":
		probeName = "ffprobe.exe"
	default:
		return defaultFFprobeBin
	}

	candidate := filepath.Join(filepath.Dir(ffmpegBin), probeName)
	if fi, err := stat(candidate); err == nil && fi != nil && !fi.IsDir() {
		return candidate
	}
	return defaultFFprobeBin
}
