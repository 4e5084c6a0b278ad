// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package events

import (
	"sync"
	"sync/atomic"

	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/metrics"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

const dropLogEvery = 100

// Bus is an in-memory fan-out. A subscriber whose buffer is full loses the
// event; the drop is counted and the producer carries on.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	kind := ev.Kind()
	metrics.IncEventPublished(kind)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			metrics.IncEventDrop(kind)
			count := b.dropped.Add(1)
			if count%dropLogEvery == 1 {
				log.L().Warn().
					Str(log.FieldEvent, kind).
					Uint64("dropped", count).
					Msg("event subscriber too slow, dropping events")
			}
		}
	}
}

// Subscribe registers a new subscriber. buffer <= 0 means DefaultBuffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	sub := &Subscription{b: b, ch: make(chan Event, buffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Dropped returns the number of events lost to full subscriber buffers.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

type Subscription struct {
	b    *Bus
	ch   chan Event
	once sync.Once
}

// C is closed once the subscription is closed.
func (s *Subscription) C() <-chan Event {
	return s.ch
}

func (s *Subscription) Close() error {
	s.once.Do(func() {
		s.b.mu.Lock()
		delete(s.b.subs, s)
		s.b.mu.Unlock()
		close(s.ch)
	})
	return nil
}

var _ Publisher = (*Bus)(nil)
