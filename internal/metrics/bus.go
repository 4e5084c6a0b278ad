// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_events_published_total",
		Help: "Total number of UI events published on the in-memory bus",
	}, []string{"kind"})

	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_events_dropped_total",
		Help: "Total number of UI events dropped by kind and reason",
	}, []string{"kind", "reason"})
)

// IncEventPublished records a published UI event.
func IncEventPublished(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	EventsPublishedTotal.WithLabelValues(kind).Inc()
}

// IncEventDrop records a dropped UI event for a slow subscriber.
func IncEventDrop(kind string) {
	IncEventDropReason(kind, "full")
}

// IncEventDropReason records a dropped UI event with a concrete reason.
func IncEventDropReason(kind, reason string) {
	if kind == "" {
		kind = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	EventsDroppedTotal.WithLabelValues(kind, reason).Inc()
}
