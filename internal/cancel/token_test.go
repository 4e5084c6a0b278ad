// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cancel

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestToken_CancelIsStickyAndIdempotent(t *testing.T) {
	tok := New(context.Background())
	assert.False(t, tok.IsCancelled())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok.Cancel()
		}()
	}
	wg.Wait()

	assert.True(t, tok.IsCancelled())
	select {
	case <-tok.Done():
	default:
		t.Fatal("Done not closed")
	}
	assert.ErrorIs(t, tok.Context().Err(), context.Canceled)
}

func TestToken_ParentCancellationStopsRun(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	tok := New(parent)
	cancel()

	select {
	case <-tok.Done():
	case <-time.After(time.Second):
		t.Fatal("token did not follow parent cancellation")
	}
	assert.True(t, tok.IsCancelled())
}

func TestToken_SkipAutoClears(t *testing.T) {
	tok := New(context.Background())
	defer tok.Cancel()

	assert.False(t, tok.ConsumeSkip())

	tok.Skip()
	tok.Skip() // coalesces
	assert.True(t, tok.SkipRequested())

	select {
	case <-tok.SkipC():
	default:
		t.Fatal("skip wake-up not delivered")
	}
	assert.True(t, tok.ConsumeSkip())
	assert.False(t, tok.SkipRequested())
	assert.False(t, tok.ConsumeSkip())
	assert.False(t, tok.IsCancelled(), "skip never implies stop")
}

func TestToken_ClearSkipDrainsWakeup(t *testing.T) {
	tok := New(nil) //nolint:staticcheck // nil parent defaults to Background
	defer tok.Cancel()

	tok.Skip()
	tok.ClearSkip()
	select {
	case <-tok.SkipC():
		t.Fatal("stale skip wake-up left behind")
	default:
	}
}
