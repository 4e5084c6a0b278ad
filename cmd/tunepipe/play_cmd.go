// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/library"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/playback"
	"github.com/spf13/cobra"
)

func newPlayCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "play <file>",
		Short: "Play a local audio file",
		Long: `Plays one file through the default audio device.

Controls (type and press enter):
  p  pause / resume
  q  stop`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := playFile(cmd.Context(), args[0], localPlayer{
				loader:    playback.NewLoader(),
				durations: newDurations(c.cfg),
				cfg:       playbackConfig(c.cfg),
				in:        cmd.InOrStdin(),
				out:       cmd.OutOrStdout(),
				errOut:    cmd.ErrOrStderr(),
			})
			return err
		},
	}
}

type localPlayer struct {
	loader    playback.Loader
	durations playback.DurationResolver
	cfg       playback.Config
	in        io.Reader
	out       io.Writer
	errOut    io.Writer
}

// playFile plays path until it ends or is stopped from the keyboard. The
// session gets its own token; ctx cancellation (SIGINT) stops it too.
func playFile(ctx context.Context, path string, p localPlayer) (playback.Outcome, error) {
	track, err := library.ReadTrack(path)
	if err != nil {
		return playback.OutcomeStopped, err
	}
	entry := media.Entry{
		ID:       track.RelPath,
		Title:    track.Title,
		Uploader: track.Artist,
		Album:    track.Album,
	}

	bus := events.NewBus()
	sub := bus.Subscribe(0)
	v := newView(p.errOut)
	rendered := make(chan struct{})
	go func() {
		defer close(rendered)
		v.consume(sub)
	}()
	defer func() {
		_ = sub.Close()
		<-rendered
	}()

	token := cancel.New(ctx)
	defer token.Cancel()
	session := playback.NewSession(p.loader, p.durations, bus, token, p.cfg)

	bus.Publish(events.TrackChanged{Entry: entry, Path: path})
	if err := session.Start(ctx, path, entry); err != nil {
		return playback.OutcomeStopped, err
	}

	go readControls(p.in, p.out, session)

	outcome := session.Run(ctx)
	if outcome == playback.OutcomeTimedOut {
		fmt.Fprintln(p.errOut, "playback did not report its end, moving on")
	}
	return outcome, nil
}
