// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package stream

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/metrics"
	"github.com/ManuGH/tunepipe/internal/playback"
	"github.com/rs/zerolog"
)

// prefetch is the single background acquisition for the next index.
type prefetch struct {
	index int
	done  chan struct{}
	res   *media.AcquisitionResult
	err   error
}

// run holds the state of one Driver.Run call. Stop and skip are observed
// through token at step boundaries; acquisitions never see them.
type run struct {
	d       *Driver
	ctx     context.Context
	token   *cancel.Token
	session *playback.Session
	dir     string
	entries []media.Entry
	logger  zerolog.Logger

	pf *prefetch
}

func (r *run) loop() {
	for i := range r.entries {
		if r.token.IsCancelled() {
			r.logger.Info().Int(log.FieldIndex, i).Msg("stream stopped")
			return
		}
		r.d.setCurrent(i)
		if !r.step(i) {
			return
		}
	}
	r.d.setCurrent(len(r.entries))
	r.logger.Info().Int(log.FieldTotal, len(r.entries)).Msg("stream queue exhausted")
}

// step prepares and plays entry i. It returns false when the run must end.
func (r *run) step(i int) (cont bool) {
	entry := r.entries[i]
	ctx := log.ContextWithEntryID(r.ctx, entry.ID)
	logger := log.WithContext(ctx, r.d.logger).With().
		Int(log.FieldIndex, i+1).
		Int(log.FieldTotal, len(r.entries)).
		Str(log.FieldTitle, entry.Title).
		Logger()

	defer func() {
		if rec := recover(); rec != nil {
			metrics.IncStreamItem("panic")
			logger.Error().
				Str("panic", fmt.Sprint(rec)).
				Str("stack", string(debug.Stack())).
				Msg("stream item panicked, moving on")
			cont = !r.token.IsCancelled()
		}
	}()

	r.d.setState(r.logger, StatePreparing)
	res, err := r.prepare(ctx, i)
	if err != nil {
		if r.token.IsCancelled() {
			return false
		}
		metrics.IncStreamItem("prepare_failed")
		logger.Warn().
			Err(err).
			Str(log.FieldOp, "prepare").
			Str(log.FieldErrorKind, media.KindOf(err)).
			Msg("item could not be prepared, skipping")
		return true
	}
	if r.token.IsCancelled() {
		r.discard(res.LocalPath)
		return false
	}

	if i+1 < len(r.entries) {
		r.startPrefetch(i + 1)
	}

	r.d.pub.Publish(events.TrackChanged{Entry: entry, Path: res.LocalPath})
	r.token.ClearSkip()

	if err := r.session.Start(ctx, res.LocalPath, entry); err != nil {
		metrics.IncStreamItem("load_failed")
		logger.Warn().Err(err).Str(log.FieldFile, filepath.Base(res.LocalPath)).Msg("item could not be played, skipping")
		r.discard(res.LocalPath)
		return !r.token.IsCancelled()
	}
	r.d.setState(r.logger, StatePlaying)

	outcome := r.session.Run(ctx)
	metrics.IncStreamItem(outcome.String())
	r.discard(res.LocalPath)
	return outcome.Continue()
}

// prepare takes the prefetched result for i if one exists, else acquires in
// the foreground with visible progress.
func (r *run) prepare(ctx context.Context, i int) (*media.AcquisitionResult, error) {
	if pf := r.pf; pf != nil && pf.index == i {
		select {
		case <-pf.done:
		case <-r.token.Done():
			return nil, r.token.Context().Err()
		}
		r.pf = nil
		metrics.IncPrefetch("used")
		return pf.res, pf.err
	}

	r.d.pub.Publish(events.StreamProgressShown{Percent: 0, Status: "preparing"})
	defer r.d.pub.Publish(events.StreamProgressHidden{})

	return r.d.acquirer.Acquire(context.WithoutCancel(ctx), r.entries[i], r.dir, func(percent float64, status string) {
		r.d.pub.Publish(events.StreamProgressShown{Percent: percent, Status: status})
	})
}

func (r *run) startPrefetch(i int) {
	if r.pf != nil {
		// At most one in flight; the loop consumes before starting another.
		return
	}
	pf := &prefetch{index: i, done: make(chan struct{})}
	r.pf = pf
	entry := r.entries[i]
	ctx := context.WithoutCancel(log.ContextWithEntryID(r.ctx, entry.ID))
	metrics.IncPrefetch("started")

	go func() {
		defer close(pf.done)
		defer func() {
			if rec := recover(); rec != nil {
				pf.err = fmt.Errorf("prefetch panic: %v", rec)
			}
		}()
		pf.res, pf.err = r.d.acquirer.Acquire(ctx, entry, r.dir, nil)
	}()
}

// discard deletes a played file if it lives in the run's cache dir.
func (r *run) discard(path string) {
	if path == "" || !within(r.dir, path) {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn().Err(err).Str(log.FieldFile, filepath.Base(path)).Msg("failed to remove played file")
	}
}

// shutdown waits for the in-flight prefetch, clears the queue and purges the
// cache dir. Session.Run has released its handle by now, so nothing in the
// dir is still being played.
func (r *run) shutdown() {
	if pf := r.pf; pf != nil {
		<-pf.done
		r.pf = nil
		metrics.IncPrefetch("discarded")
	}
	r.d.setQueue(nil, -1)

	if err := os.RemoveAll(r.dir); err != nil {
		r.logger.Warn().Err(err).Str(log.FieldTempDir, r.dir).Msg("failed to remove stream cache dir")
	}
}
