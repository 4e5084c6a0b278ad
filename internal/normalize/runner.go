// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package normalize

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"

	"github.com/ManuGH/tunepipe/internal/procgroup"
	"github.com/rs/zerolog"
)

// Progress is one `-progress` block reported by ffmpeg.
type Progress struct {
	OutTimeUs int64
	TotalSize int64
	Speed     string
	Done      bool
}

// ProcessRunner runs ffmpeg in its own process group with progress reporting
// on stdout. When the context expires the group is terminated (SIGTERM, then
// SIGKILL after procgroup.DefaultGrace).
type ProcessRunner struct {
	Logger     zerolog.Logger
	OnProgress func(Progress)
}

// Run implements Runner. `-version` probes run without the progress flags.
func (r *ProcessRunner) Run(ctx context.Context, bin string, args []string) error {
	fullArgs := args
	if len(args) != 1 || args[0] != "-version" {
		fullArgs = append([]string{"-nostdin", "-progress", "pipe:1"}, args...)
	}

	// #nosec G204 -- binary comes from config; arguments are built by Normalizer
	cmd := exec.Command(bin, fullArgs...)
	procgroup.Set(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}
	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", bin, err)
	}

	parsed := make(chan struct{})
	go func() {
		defer close(parsed)
		parseProgress(stdout, func(p Progress) {
			r.Logger.Debug().
				Int64("out_time_us", p.OutTimeUs).
				Int64("total_size", p.TotalSize).
				Str("speed", p.Speed).
				Msg("transcode progress")
			if r.OnProgress != nil {
				r.OnProgress(p)
			}
		})
	}()

	// The pipe must be drained before Wait closes it.
	waitCh := make(chan error, 1)
	go func() {
		<-parsed
		waitCh <- cmd.Wait()
	}()

	select {
	case err := <-waitCh:
		if err != nil {
			return fmt.Errorf("%w: %s", err, tail(stderrBuf.String(), 1024))
		}
		return nil
	case <-ctx.Done():
		termErr := procgroup.Terminate(cmd, waitCh, procgroup.DefaultGrace)
		r.Logger.Warn().Err(termErr).Msg("transcoder budget expired, process group terminated")
		return errors.Join(ctx.Err(), termErr)
	}
}

// parseProgress reads key=value lines and emits a Progress per "progress=" line.
func parseProgress(rd io.Reader, emit func(Progress)) {
	scanner := bufio.NewScanner(rd)
	var current Progress

	for scanner.Scan() {
		key, val, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key, val = strings.TrimSpace(key), strings.TrimSpace(val)

		switch key {
		case "out_time_us":
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				current.OutTimeUs = v
			}
		case "total_size":
			if v, err := strconv.ParseInt(val, 10, 64); err == nil {
				current.TotalSize = v
			}
		case "speed":
			current.Speed = val
		case "progress":
			current.Done = val == "end"
			emit(current)
		}
	}
	// Drain anything left so ffmpeg never blocks on a full pipe.
	_, _ = io.Copy(io.Discard, rd)
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
