// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package cancel provides the per-run cooperative cancellation token.
//
// Cancellation is checked at defined points (loop boundaries, the end of a
// polling sleep); it never preempts in-flight work. A token carries two
// signals: stop (sticky, ends the whole run) and skip (consumed once by the
// playback loop, ends only the current item).
package cancel

import (
	"context"
	"sync"
	"sync/atomic"
)

// Token is owned by exactly one batch or stream run. The owner must call
// Cancel once the run is over to release the parent watcher.
type Token struct {
	once   sync.Once
	done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc

	stopped atomic.Bool
	skip    atomic.Bool
	skipCh  chan struct{}
}

// New returns a token whose Context derives from parent.
func New(parent context.Context) *Token {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	t := &Token{
		done:   make(chan struct{}),
		ctx:    ctx,
		cancel: cancel,
		skipCh: make(chan struct{}, 1),
	}
	// A cancelled parent (SIGINT) stops the run too.
	go func() {
		select {
		case <-ctx.Done():
			t.Cancel()
		case <-t.done:
		}
	}()
	return t
}

// Cancel sets the stop signal. Idempotent.
func (t *Token) Cancel() {
	t.once.Do(func() {
		t.stopped.Store(true)
		close(t.done)
		t.cancel()
	})
}

// IsCancelled reports whether stop was requested.
func (t *Token) IsCancelled() bool {
	return t.stopped.Load()
}

// Done is closed when stop is requested.
func (t *Token) Done() <-chan struct{} {
	return t.done
}

// Context is cancelled together with the token. Use it for blocking I/O that
// is allowed to abort (network resolution); the transcoder deliberately does not.
func (t *Token) Context() context.Context {
	return t.ctx
}

// Skip asks the current item to end. It is consumed by ConsumeSkip.
func (t *Token) Skip() {
	t.skip.Store(true)
	select {
	case t.skipCh <- struct{}{}:
	default:
	}
}

// SkipRequested reports a pending skip without consuming it.
func (t *Token) SkipRequested() bool {
	return t.skip.Load()
}

// SkipC delivers a wake-up when Skip is called. Pair it with ConsumeSkip.
func (t *Token) SkipC() <-chan struct{} {
	return t.skipCh
}

// ConsumeSkip clears a pending skip and reports whether one was set.
func (t *Token) ConsumeSkip() bool {
	if !t.skip.Swap(false) {
		return false
	}
	select {
	case <-t.skipCh:
	default:
	}
	return true
}

// ClearSkip drops a skip that arrived between items.
func (t *Token) ClearSkip() {
	t.ConsumeSkip()
}
