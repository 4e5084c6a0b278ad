// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/ManuGH/tunepipe/internal/acquire"
	"github.com/ManuGH/tunepipe/internal/config"
	"github.com/ManuGH/tunepipe/internal/duration"
	"github.com/ManuGH/tunepipe/internal/events"
	xglog "github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/normalize"
	"github.com/ManuGH/tunepipe/internal/playback"
	"github.com/ManuGH/tunepipe/internal/source"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// pipeline is the component graph shared by the download and stream commands.
type pipeline struct {
	bus       *events.Bus
	source    *source.YtDlp
	durations *duration.Resolver
	acquirer  *acquire.Job
}

func newPipeline(cfg config.AppConfig) *pipeline {
	src := source.New(source.Config{
		Bin:     cfg.YtDlp.Bin,
		Proxy:   cfg.YtDlp.Proxy,
		Retries: cfg.YtDlp.Retries,
		Format:  cfg.YtDlp.Format,
	})
	norm := normalize.New(normalize.Config{
		Bin:         cfg.FFmpeg.Bin,
		BitrateKbps: cfg.FFmpeg.BitrateKbps,
		SampleRate:  cfg.FFmpeg.SampleRate,
		Timeout:     cfg.FFmpeg.Timeout,
	})
	return &pipeline{
		bus:       events.NewBus(),
		source:    src,
		durations: newDurations(cfg),
		acquirer:  acquire.New(src, norm, acquire.Config{SettleDelay: cfg.Acquire.SettleDelay}),
	}
}

func newDurations(cfg config.AppConfig) *duration.Resolver {
	return duration.NewResolver(duration.NewFFprobe(cfg.FFmpeg.FFprobeBin), cfg.Playback.AssumedBitrateKbps)
}

func playbackConfig(cfg config.AppConfig) playback.Config {
	return playback.Config{
		PollInterval:    cfg.Playback.PollInterval,
		TickInterval:    cfg.Playback.TickInterval,
		UnknownDuration: cfg.Playback.UnknownDuration,
	}
}

// serveMetrics exposes /metrics until ctx is done. An empty addr disables it.
func serveMetrics(ctx context.Context, addr string) (func(), error) {
	if addr == "" {
		return func() {}, nil
	}
	logger := xglog.WithComponent("metrics")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	logger.Info().Str("addr", ln.Addr().String()).Msg("metrics listener started")

	stop := func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		<-done
	}
	return stop, nil
}
