// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package stream plays a resolved URL item by item, preparing the next item
// in the background while the current one plays.
package stream

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/playback"
	"github.com/ManuGH/tunepipe/internal/source"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrBusy is returned when Run is called while another run is active.
var ErrBusy = errors.New("stream driver already running")

type Resolver interface {
	Resolve(ctx context.Context, url string) ([]media.Entry, error)
}

type Acquirer interface {
	Acquire(ctx context.Context, entry media.Entry, dir string, progress source.ProgressFunc) (*media.AcquisitionResult, error)
}

type Config struct {
	TempRoot string
	Playback playback.Config
}

// Snapshot is the queue as shown to the user. Current is -1 before the
// first item is selected.
type Snapshot struct {
	Entries []media.Entry
	Current int
}

type Driver struct {
	resolver  Resolver
	acquirer  Acquirer
	loader    playback.Loader
	durations playback.DurationResolver
	pub       events.Publisher
	cfg       Config
	opts      []playback.Option
	logger    zerolog.Logger

	mu      sync.Mutex
	state   State
	queue   []media.Entry
	current int
	session *playback.Session
	token   *cancel.Token
}

// NewDriver wires the driver. pub may be nil. opts are applied to every
// playback session the driver creates.
func NewDriver(resolver Resolver, acquirer Acquirer, loader playback.Loader, durations playback.DurationResolver,
	pub events.Publisher, cfg Config, opts ...playback.Option) *Driver {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Driver{
		resolver:  resolver,
		acquirer:  acquirer,
		loader:    loader,
		durations: durations,
		pub:       pub,
		cfg:       cfg,
		opts:      opts,
		logger:    log.WithComponent("stream"),
		current:   -1,
	}
}

// Run resolves url and plays its entries in order until the queue is
// exhausted or token is cancelled. Per-item failures are logged and skipped;
// only resolution and setup failures are returned.
func (d *Driver) Run(ctx context.Context, url string, token *cancel.Token) error {
	d.mu.Lock()
	if d.state != StateIdle {
		d.mu.Unlock()
		return ErrBusy
	}
	d.state = StateResolving
	d.token = token
	d.mu.Unlock()

	ctx = log.ContextWithRunID(ctx, uuid.NewString())
	logger := log.WithContext(ctx, d.logger).With().Str(log.FieldSourceURL, url).Logger()
	logger.Debug().
		Str(log.FieldOldState, StateIdle.String()).
		Str(log.FieldNewState, StateResolving.String()).
		Msg("stream state changed")

	defer func() {
		d.mu.Lock()
		d.token = nil
		d.session = nil
		d.mu.Unlock()
		d.setState(logger, StateIdle)
	}()

	dir, err := os.MkdirTemp(d.cfg.TempRoot, "stream-*")
	if err != nil {
		return fmt.Errorf("create stream cache dir: %w", err)
	}
	d.setQueue(nil, -1)

	entries, err := d.resolver.Resolve(context.WithoutCancel(ctx), url)
	if err != nil {
		_ = os.RemoveAll(dir)
		logger.Error().Err(err).Str(log.FieldErrorKind, media.KindOf(err)).Msg("stream resolution failed")
		return err
	}
	d.setQueue(entries, -1)
	logger.Info().Int(log.FieldTotal, len(entries)).Str(log.FieldTempDir, dir).Msg("stream queue ready")

	session := playback.NewSession(d.loader, d.durations, d.pub, token, d.cfg.Playback, d.opts...)
	d.mu.Lock()
	d.session = session
	d.mu.Unlock()

	r := &run{d: d, ctx: ctx, token: token, session: session, dir: dir, entries: entries, logger: logger}
	r.loop()
	r.shutdown()
	return nil
}

// Queue returns a snapshot of the current queue.
func (d *Driver) Queue() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{Entries: append([]media.Entry(nil), d.queue...), Current: d.current}
}

func (d *Driver) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Pause pauses the active item.
func (d *Driver) Pause() error {
	s := d.activeSession()
	if s == nil {
		return playback.ErrInvalidState
	}
	return s.Pause()
}

// Resume resumes the active item.
func (d *Driver) Resume() error {
	s := d.activeSession()
	if s == nil {
		return playback.ErrInvalidState
	}
	return s.Resume()
}

// Skip ends the playing item. It is ignored while an item is being prepared.
func (d *Driver) Skip() {
	d.mu.Lock()
	s, playing := d.session, d.state == StatePlaying
	d.mu.Unlock()
	if s != nil && playing {
		s.Skip()
	}
}

// Stop ends the run after the current step.
func (d *Driver) Stop() {
	d.mu.Lock()
	s, token := d.session, d.token
	d.mu.Unlock()
	if s != nil {
		s.Stop()
		return
	}
	if token != nil {
		token.Cancel()
	}
}

func (d *Driver) activeSession() *playback.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.session
}

func (d *Driver) setState(logger zerolog.Logger, next State) {
	d.mu.Lock()
	prev := d.state
	d.state = next
	d.mu.Unlock()
	if prev != next {
		logger.Debug().
			Str(log.FieldOldState, prev.String()).
			Str(log.FieldNewState, next.String()).
			Msg("stream state changed")
	}
}

func (d *Driver) setQueue(entries []media.Entry, current int) {
	d.mu.Lock()
	d.queue = append([]media.Entry(nil), entries...)
	d.current = current
	snap := append([]media.Entry(nil), d.queue...)
	d.mu.Unlock()
	d.pub.Publish(events.QueueChanged{Entries: snap, Current: current})
}

func (d *Driver) setCurrent(i int) {
	d.mu.Lock()
	d.current = i
	snap := append([]media.Entry(nil), d.queue...)
	d.mu.Unlock()
	d.pub.Publish(events.QueueChanged{Entries: snap, Current: i})
}

// within reports whether path is inside dir.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
