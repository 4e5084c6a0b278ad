// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AcquisitionsTotal counts acquisition jobs by outcome
	// (target, fallback, fetch_failed, empty_file, cancelled).
	AcquisitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_acquisitions_total",
		Help: "Total acquisition jobs by outcome",
	}, []string{"outcome"})

	AcquisitionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tunepipe_acquisition_duration_seconds",
		Help:    "Wall time of acquisition jobs (fetch + normalize + verify)",
		Buckets: prometheus.ExponentialBuckets(0.5, 2.0, 10), // 0.5s to ~4m
	}, []string{"outcome"})

	// NormalizeRunsTotal counts transcoder runs by result
	// (ok, exit_nonzero, timeout, unavailable, empty_output).
	NormalizeRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_normalize_runs_total",
		Help: "Total format normalization attempts by result",
	}, []string{"result"})

	NormalizeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tunepipe_normalize_duration_seconds",
		Help:    "Duration of transcoder invocations",
		Buckets: prometheus.ExponentialBuckets(0.25, 2.0, 10),
	})

	BatchItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_batch_items_total",
		Help: "Total batch items by result",
	}, []string{"result"})

	StreamItemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_stream_items_total",
		Help: "Total stream queue items by result",
	}, []string{"result"})

	PlaybackSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_playback_sessions_total",
		Help: "Total playback sessions by outcome (completed, skipped, stopped, timeout, load_failed)",
	}, []string{"outcome"})

	DurationResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_duration_resolved_total",
		Help: "Duration resolutions by winning source",
	}, []string{"source"})

	PrefetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_prefetch_total",
		Help: "Lookahead prefetch tasks by result (used, failed, discarded)",
	}, []string{"result"})

	// TagWritesTotal counts metadata embeds by result (ok, with_cover, skipped, failed).
	TagWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tunepipe_tag_writes_total",
		Help: "Total ID3 tag writes by result",
	}, []string{"result"})
)

// IncAcquisition records the outcome of one acquisition job.
func IncAcquisition(outcome string, took time.Duration) {
	AcquisitionsTotal.WithLabelValues(outcome).Inc()
	AcquisitionDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

// IncNormalizeRun records a transcoder attempt.
func IncNormalizeRun(result string) {
	NormalizeRunsTotal.WithLabelValues(result).Inc()
}

// ObserveNormalizeDuration records how long the transcoder ran.
func ObserveNormalizeDuration(d time.Duration) {
	NormalizeDuration.Observe(d.Seconds())
}

// IncBatchItem records the result of one batch entry.
func IncBatchItem(result string) {
	BatchItemsTotal.WithLabelValues(result).Inc()
}

// IncStreamItem records the result of one stream queue entry.
func IncStreamItem(result string) {
	StreamItemsTotal.WithLabelValues(result).Inc()
}

// IncPlaybackSession records how a playback session ended.
func IncPlaybackSession(outcome string) {
	PlaybackSessionsTotal.WithLabelValues(outcome).Inc()
}

// IncDurationResolved records which strategy produced a duration.
func IncDurationResolved(source string) {
	DurationResolvedTotal.WithLabelValues(source).Inc()
}

// IncPrefetch records the fate of a lookahead prefetch.
func IncPrefetch(result string) {
	PrefetchTotal.WithLabelValues(result).Inc()
}

func IncTagWrite(result string) {
	TagWritesTotal.WithLabelValues(result).Inc()
}
