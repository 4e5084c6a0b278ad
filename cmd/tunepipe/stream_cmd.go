// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/playback"
	"github.com/ManuGH/tunepipe/internal/stream"
	"github.com/spf13/cobra"
)

type control int

const (
	ctlNone control = iota
	ctlToggle
	ctlResume
	ctlSkip
	ctlQueue
	ctlQuit
)

func parseControl(line string) control {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "p", "pause", " ":
		return ctlToggle
	case "r", "resume":
		return ctlResume
	case "s", "n", "skip", "next":
		return ctlSkip
	case "l", "list", "queue":
		return ctlQueue
	case "q", "quit", "stop":
		return ctlQuit
	default:
		return ctlNone
	}
}

// player is what the keyboard drives: a stream.Driver or a single
// playback.Session.
type player interface {
	Pause() error
	Resume() error
	Skip()
	Stop()
}

type queuer interface {
	Queue() stream.Snapshot
}

// readControls applies commands from in until it is exhausted or quit is
// read. The queue command is ignored for players without a queue.
func readControls(in io.Reader, out io.Writer, d player) {
	sc := bufio.NewScanner(in)
	for sc.Scan() {
		switch parseControl(sc.Text()) {
		case ctlToggle:
			if err := d.Pause(); err != nil {
				_ = d.Resume()
			}
		case ctlResume:
			_ = d.Resume()
		case ctlSkip:
			d.Skip()
		case ctlQueue:
			if q, ok := d.(queuer); ok {
				printQueue(out, q.Queue())
			}
		case ctlQuit:
			d.Stop()
			return
		}
	}
}

func printQueue(out io.Writer, snap stream.Snapshot) {
	for i, e := range snap.Entries {
		marker := "  "
		if i == snap.Current {
			marker = "> "
		}
		fmt.Fprintf(out, "%s%2d. %s\n", marker, i+1, e.DisplayName())
	}
}

func newStreamCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stream <url>",
		Short: "Play every entry behind a URL, prefetching the next one",
		Long: `Plays entries in order through the default audio device.

Controls (type and press enter):
  p  pause / resume
  s  skip to the next entry
  l  show the queue
  q  stop`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.cfg

			stopMetrics, err := serveMetrics(ctx, cfg.Metrics.Listen)
			if err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			defer stopMetrics()

			p := newPipeline(cfg)
			driver := stream.NewDriver(p.source, p.acquirer, playback.NewLoader(), p.durations, p.bus, stream.Config{
				TempRoot: cfg.TempRoot,
				Playback: playbackConfig(cfg),
			})

			sub := p.bus.Subscribe(0)
			v := newView(cmd.ErrOrStderr())
			rendered := make(chan struct{})
			go func() {
				defer close(rendered)
				v.consume(sub)
			}()

			// The reader stays blocked on stdin after the run ends; the
			// process exits right after.
			go readControls(cmd.InOrStdin(), cmd.OutOrStdout(), driver)

			token := cancel.New(ctx)
			runErr := driver.Run(ctx, args[0], token)
			token.Cancel()
			_ = sub.Close()
			<-rendered
			return runErr
		},
	}
}
