// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/duration"
	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/metrics"
	"github.com/rs/zerolog"
)

const (
	DefaultPollInterval    = 300 * time.Millisecond
	DefaultTickInterval    = 500 * time.Millisecond
	DefaultUnknownDuration = 300 * time.Second

	minSafetyTimeout = 10 * time.Second
	safetySlack      = 30 * time.Second
)

// DurationResolver resolves the total length shown in progress events.
type DurationResolver interface {
	Resolve(ctx context.Context, path string, entry *media.Entry, handle duration.HandleDuration) duration.Result
}

type Config struct {
	PollInterval    time.Duration
	TickInterval    time.Duration
	UnknownDuration time.Duration // assumed length for the safety timeout
}

// Session owns at most one loaded handle. Control methods may be called from
// any goroutine while Run blocks in another.
type Session struct {
	loader   Loader
	resolver DurationResolver
	pub      events.Publisher
	token    *cancel.Token
	clock    Clock
	cfg      Config
	logger   zerolog.Logger

	mu       sync.Mutex
	state    State
	handle   Handle
	path     string
	entry    media.Entry
	total    duration.Result
	timing   Timing
	tickStop chan struct{}
	tickDone chan struct{}
}

type Option func(*Session)

// WithClock replaces the wall clock (tests).
func WithClock(c Clock) Option {
	return func(s *Session) { s.clock = c }
}

// NewSession binds a session to a run's token. pub may be nil.
func NewSession(loader Loader, resolver DurationResolver, pub events.Publisher, token *cancel.Token, cfg Config, opts ...Option) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.UnknownDuration <= 0 {
		cfg.UnknownDuration = DefaultUnknownDuration
	}
	if pub == nil {
		pub = events.Nop{}
	}
	s := &Session{
		loader:   loader,
		resolver: resolver,
		pub:      pub,
		token:    token,
		clock:    RealClock{},
		cfg:      cfg,
		logger:   log.WithComponent("playback"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start releases any previous handle, loads path and begins output.
// Load or play failures match media.ErrHandleLoadFailed.
func (s *Session) Start(ctx context.Context, path string, entry media.Entry) error {
	logger := log.WithContext(ctx, s.logger).With().
		Str(log.FieldFile, filepath.Base(path)).
		Str(log.FieldTitle, entry.Title).
		Logger()

	s.mu.Lock()
	wait := s.releaseLocked()
	s.mu.Unlock()
	wait()

	h, err := s.loader.Load(path)
	if err != nil {
		logger.Error().Err(err).Str(log.FieldOp, "load").Msg("failed to load audio")
		return media.NewError("playback", media.ErrHandleLoadFailed, filepath.Base(path), err)
	}

	var total duration.Result
	if s.resolver != nil {
		total = s.resolver.Resolve(ctx, path, &entry, h)
	}

	if err := h.Play(); err != nil {
		_ = h.Close()
		logger.Error().Err(err).Str(log.FieldOp, "play").Msg("failed to start output")
		return media.NewError("playback", media.ErrHandleLoadFailed, filepath.Base(path), err)
	}

	s.mu.Lock()
	s.handle = h
	s.path = path
	s.entry = entry
	s.total = total
	s.timing.Start(s.clock.Now())
	s.state = StatePlaying
	s.startTickLocked()
	s.mu.Unlock()

	logger.Info().
		Str(log.FieldOp, "start").
		Dur(log.FieldDuration, total.Value).
		Str(log.FieldDurSource, string(total.Source)).
		Msg("playback started")
	s.pub.Publish(events.PlaybackStateChanged{State: StatePlaying.String()})
	return nil
}

// Run blocks until the current item ends naturally, is skipped, the run is
// stopped, or the safety timeout passes. The handle is released on return.
func (s *Session) Run(ctx context.Context) Outcome {
	logger := log.WithContext(ctx, s.logger)

	s.mu.Lock()
	limit := safetyTimeout(s.total, s.cfg.UnknownDuration)
	started := s.clock.Now()
	s.mu.Unlock()

	poll := s.clock.NewTicker(s.cfg.PollInterval)
	defer poll.Stop()

	outcome := s.await(ctx, poll, started, limit)

	s.mu.Lock()
	file := filepath.Base(s.path)
	wait := s.releaseLocked()
	if s.state != StateStopped {
		s.state = StateIdle
	}
	state := s.state
	s.mu.Unlock()
	wait()

	metrics.IncPlaybackSession(outcome.String())
	ev := logger.Info()
	if outcome == OutcomeTimedOut {
		ev = logger.Warn().Dur("limit", limit)
	}
	ev.Str(log.FieldOp, "end").
		Str(log.FieldFile, file).
		Str(log.FieldOutcome, outcome.String()).
		Msg("playback ended")
	s.pub.Publish(events.PlaybackStateChanged{State: state.String()})
	return outcome
}

func (s *Session) await(ctx context.Context, poll Ticker, started time.Time, limit time.Duration) Outcome {
	for {
		select {
		case <-ctx.Done():
			return OutcomeStopped
		case <-s.token.Done():
			return OutcomeStopped
		case <-s.token.SkipC():
		case <-poll.C():
		}

		if s.token.IsCancelled() {
			return OutcomeStopped
		}
		if s.token.ConsumeSkip() {
			return OutcomeSkipped
		}

		s.mu.Lock()
		now := s.clock.Now()
		ended := s.state == StatePlaying && (s.handle == nil || !s.handle.Playing())
		stopped := s.state == StateStopped
		active := now.Sub(started) - s.timing.PausedFor(now)
		s.mu.Unlock()

		switch {
		case stopped:
			return OutcomeStopped
		case ended:
			return OutcomeCompleted
		case active > limit:
			return OutcomeTimedOut
		}
	}
}

// Pause is valid only while playing.
func (s *Session) Pause() error {
	s.mu.Lock()
	if s.state != StatePlaying || s.handle == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	pos, ok := s.handle.Position()
	s.handle.Stop()
	s.timing.Pause(s.clock.Now(), pos, ok)
	s.state = StatePaused
	s.mu.Unlock()

	s.pub.Publish(events.PlaybackStateChanged{State: StatePaused.String()})
	return nil
}

// Resume is valid only while paused. Output restarts at the pause position
// when the handle can seek.
func (s *Session) Resume() error {
	s.mu.Lock()
	if s.state != StatePaused || s.handle == nil {
		s.mu.Unlock()
		return ErrInvalidState
	}
	if err := s.handle.Play(); err != nil {
		s.mu.Unlock()
		return err
	}
	seekErr := s.handle.Seek(s.timing.PausePosition())
	s.timing.Resume(s.clock.Now(), seekErr == nil)
	s.state = StatePlaying
	s.mu.Unlock()

	if seekErr != nil {
		s.logger.Debug().Err(seekErr).Msg("resume without seek, re-anchoring elapsed time")
	}
	s.pub.Publish(events.PlaybackStateChanged{State: StatePlaying.String()})
	return nil
}

// Skip asks Run to end the current item. The skip flag clears once consumed.
func (s *Session) Skip() {
	s.token.Skip()
	s.mu.Lock()
	if s.handle != nil {
		s.handle.Stop()
	}
	s.mu.Unlock()
}

// Stop cancels the run and releases the handle.
func (s *Session) Stop() {
	s.token.Cancel()
	s.mu.Lock()
	wait := s.releaseLocked()
	s.state = StateStopped
	s.mu.Unlock()
	wait()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Path returns the file under the active handle, or "".
func (s *Session) Path() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handle == nil {
		return ""
	}
	return s.path
}

// Progress computes the current progress snapshot.
func (s *Session) Progress() events.PlaybackProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressLocked(s.clock.Now())
}

func (s *Session) progressLocked(now time.Time) events.PlaybackProgress {
	p := events.PlaybackProgress{
		Elapsed:    s.timing.Elapsed(now),
		Total:      s.total.Value,
		TotalKnown: s.total.Known(),
	}
	if p.TotalKnown {
		p.Percent = clamp(float64(p.Elapsed)/float64(p.Total)*100, 0, 100)
	}
	return p
}

func (s *Session) startTickLocked() {
	stop := make(chan struct{})
	done := make(chan struct{})
	s.tickStop, s.tickDone = stop, done
	ticker := s.clock.NewTicker(s.cfg.TickInterval)

	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C():
				s.mu.Lock()
				if s.tickStop != stop {
					s.mu.Unlock()
					return
				}
				p := s.progressLocked(s.clock.Now())
				s.mu.Unlock()
				s.pub.Publish(p)
			}
		}
	}()
}

// releaseLocked stops the tick and closes the handle. The returned func
// waits for the tick goroutine and must be called without s.mu held.
func (s *Session) releaseLocked() func() {
	done := s.tickDone
	if s.tickStop != nil {
		close(s.tickStop)
		s.tickStop, s.tickDone = nil, nil
	}
	if s.handle != nil {
		s.handle.Stop()
		if err := s.handle.Close(); err != nil {
			s.logger.Warn().Err(err).Str(log.FieldFile, filepath.Base(s.path)).Msg("failed to release audio handle")
		}
		s.handle = nil
	}
	return func() {
		if done != nil {
			<-done
		}
	}
}

func safetyTimeout(total duration.Result, unknown time.Duration) time.Duration {
	d := unknown
	if total.Known() {
		d = total.Value
	}
	if limit := d + safetySlack; limit > minSafetyTimeout {
		return limit
	}
	return minSafetyTimeout
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
