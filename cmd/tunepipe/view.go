// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/playback"
	"github.com/schollz/progressbar/v3"
)

// view renders pipeline events on a terminal. It is driven from a single
// goroutine and holds no locks.
type view struct {
	out       io.Writer
	batchBar  *progressbar.ProgressBar
	streamBar *progressbar.ProgressBar
	track     string
	lastLine  int
}

func newView(out io.Writer) *view {
	return &view{out: out}
}

// consume renders events until the subscription is closed.
func (v *view) consume(sub *events.Subscription) {
	for ev := range sub.C() {
		v.handle(ev)
	}
	v.finish()
}

func (v *view) handle(ev events.Event) {
	switch e := ev.(type) {
	case events.BatchProgressShown:
		v.batchBar = progressbar.NewOptions(1,
			progressbar.OptionSetWriter(v.out),
			progressbar.OptionSetDescription("resolving"),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	case events.BatchItem:
		if v.batchBar == nil {
			return
		}
		v.batchBar.ChangeMax(e.Total)
		v.batchBar.Describe(e.Name)
		_ = v.batchBar.Set(e.Index - 1)
	case events.BatchProgressHidden:
		if v.batchBar != nil {
			_ = v.batchBar.Finish()
			v.batchBar = nil
		}
		fmt.Fprintf(v.out, "done: %d succeeded, %d failed\n", e.Succeeded, e.Failed)

	case events.StreamProgressShown:
		if v.streamBar == nil {
			v.clearLine()
			v.streamBar = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(v.out),
				progressbar.OptionSetWidth(30),
				progressbar.OptionClearOnFinish(),
			)
		}
		v.streamBar.Describe(e.Status)
		_ = v.streamBar.Set(int(e.Percent))
	case events.StreamProgressHidden:
		if v.streamBar != nil {
			_ = v.streamBar.Finish()
			v.streamBar = nil
		}

	case events.QueueChanged:
		if e.Current < 0 {
			v.clearLine()
			fmt.Fprintf(v.out, "queue: %d items\n", len(e.Entries))
		}
	case events.TrackChanged:
		v.clearLine()
		v.track = e.Entry.DisplayName()
		fmt.Fprintf(v.out, "> %s\n", v.track)
	case events.PlaybackProgress:
		v.progressLine(e)
	case events.PlaybackStateChanged:
		if e.State == playback.StatePaused.String() {
			v.clearLine()
			fmt.Fprintln(v.out, "|| paused")
		}
	}
}

func (v *view) progressLine(p events.PlaybackProgress) {
	total := "--:--"
	if p.TotalKnown {
		total = clock(p.Total)
	}
	line := fmt.Sprintf("  %s / %s  %3.0f%%", clock(p.Elapsed), total, p.Percent)
	pad := v.lastLine - len(line)
	if pad < 0 {
		pad = 0
	}
	fmt.Fprintf(v.out, "\r%s%*s", line, pad, "")
	v.lastLine = len(line)
}

func (v *view) clearLine() {
	if v.lastLine > 0 {
		fmt.Fprint(v.out, "\n")
		v.lastLine = 0
	}
}

func (v *view) finish() {
	if v.batchBar != nil {
		_ = v.batchBar.Finish()
	}
	if v.streamBar != nil {
		_ = v.streamBar.Finish()
	}
	v.clearLine()
}

// clock formats d as m:ss, or h:mm:ss past an hour.
func clock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d.Round(time.Second).Seconds())
	h, m, sec := s/3600, (s/60)%60, s%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
