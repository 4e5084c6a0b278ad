// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"sync"
	"time"

	"github.com/ManuGH/tunepipe/internal/duration"
	"github.com/ManuGH/tunepipe/internal/media"
)

// manualClock only moves when Advance is called.
type manualClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*manualTicker
}

func newManualClock() *manualClock {
	return &manualClock{now: t0}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time, 1), period: d, next: c.now.Add(d)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward and fires every ticker that came due. Each due
// ticker delivers at most one pending tick, like time.Ticker.
func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now
	tickers := append([]*manualTicker(nil), c.tickers...)
	c.mu.Unlock()

	for _, t := range tickers {
		t.fire(now)
	}
}

// activeTickers counts tickers that have not been stopped.
func (c *manualClock) activeTickers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.tickers {
		if !t.isStopped() {
			n++
		}
	}
	return n
}

type manualTicker struct {
	mu      sync.Mutex
	ch      chan time.Time
	period  time.Duration
	next    time.Time
	stopped bool
}

func (t *manualTicker) C() <-chan time.Time { return t.ch }

func (t *manualTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *manualTicker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *manualTicker) fire(now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped || now.Before(t.next) {
		return
	}
	for !now.Before(t.next) {
		t.next = t.next.Add(t.period)
	}
	select {
	case t.ch <- now:
	default:
	}
}

type fakeHandle struct {
	mu       sync.Mutex
	playing  bool
	closed   bool
	pos      time.Duration
	posOK    bool
	seekErr  error
	dur      time.Duration
	plays    int
	seeks    []time.Duration
	closeCnt int
}

func (h *fakeHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.plays++
	h.playing = true
	return nil
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()
}

func (h *fakeHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

func (h *fakeHandle) Position() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.pos, h.posOK
}

func (h *fakeHandle) Seek(d time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seeks = append(h.seeks, d)
	return h.seekErr
}

func (h *fakeHandle) Duration() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dur, h.dur > 0
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	h.closeCnt++
	return nil
}

// finish simulates the end of the audio stream.
func (h *fakeHandle) finish() {
	h.Stop()
}

func (h *fakeHandle) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

type fixedResolver struct{ res duration.Result }

func (r fixedResolver) Resolve(context.Context, string, *media.Entry, duration.HandleDuration) duration.Result {
	return r.res
}
