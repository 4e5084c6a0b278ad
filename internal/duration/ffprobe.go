// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package duration

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/tunepipe/internal/procgroup"
	"golang.org/x/sync/singleflight"
)

const defaultProbeTimeout = 10 * time.Second

var errNoDuration = errors.New("ffprobe reported no duration")

// FFprobe reads format.duration with ffprobe. Results are cached per
// (path, size, mtime), so a file that is scanned by the library and later
// played is probed once. Concurrent probes of one file share an invocation.
type FFprobe struct {
	Bin     string
	Timeout time.Duration

	run   func(ctx context.Context, bin string, args ...string) ([]byte, error)
	group singleflight.Group

	mu    sync.Mutex
	cache map[probeKey]probeEntry
}

type probeKey struct {
	path  string
	size  int64
	mtime int64
}

type probeEntry struct {
	d   time.Duration
	err error
}

// NewFFprobe returns a prober using bin ("ffprobe" when empty).
func NewFFprobe(bin string) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{
		Bin:     bin,
		Timeout: defaultProbeTimeout,
		run:     runProbe,
		cache:   make(map[probeKey]probeEntry),
	}
}

type probeData struct {
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
	} `json:"format"`
}

// ProbeDuration implements Prober.
func (p *FFprobe) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	key := probeKey{path: path, size: info.Size(), mtime: info.ModTime().UnixNano()}

	p.mu.Lock()
	if e, ok := p.cache[key]; ok {
		p.mu.Unlock()
		return e.d, e.err
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do(path, func() (any, error) {
		d, perr := p.probe(ctx, path)
		// Context errors are transient; everything else is a property of the file.
		if !errors.Is(perr, context.Canceled) && !errors.Is(perr, context.DeadlineExceeded) {
			p.mu.Lock()
			p.cache[key] = probeEntry{d: d, err: perr}
			p.mu.Unlock()
		}
		return d, perr
	})
	if err != nil {
		return 0, err
	}
	return v.(time.Duration), nil
}

func (p *FFprobe) probe(ctx context.Context, path string) (time.Duration, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := p.run(ctx, p.Bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		path,
	)
	if err != nil {
		return 0, err
	}
	return parseProbeOutput(out)
}

func parseProbeOutput(out []byte) (time.Duration, error) {
	var data probeData
	if err := json.Unmarshal(out, &data); err != nil {
		return 0, fmt.Errorf("decode ffprobe output: %w", err)
	}
	raw := strings.TrimSpace(data.Format.Duration)
	if raw == "" || raw == "N/A" {
		return 0, errNoDuration
	}
	secs, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", raw, err)
	}
	if secs <= 0 {
		return 0, errNoDuration
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func runProbe(ctx context.Context, bin string, args ...string) ([]byte, error) {
	// #nosec G204 -- binary comes from config; args are fixed and the path is opaque
	cmd := exec.CommandContext(ctx, bin, args...)
	procgroup.Set(cmd)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 512 {
			msg = msg[:512] + "..."
		}
		return nil, fmt.Errorf("ffprobe: %w: %s", err, msg)
	}
	return out, nil
}
