// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"

	"github.com/ManuGH/tunepipe/internal/batch"
	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/coverart"
	"github.com/ManuGH/tunepipe/internal/library"
	"github.com/ManuGH/tunepipe/internal/tags"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newDownloadCmd(c *cli) *cobra.Command {
	var noTags bool
	cmd := &cobra.Command{
		Use:   "download <url>",
		Short: "Download every entry behind a URL into the library",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := c.cfg

			stopMetrics, err := serveMetrics(ctx, cfg.Metrics.Listen)
			if err != nil {
				return fmt.Errorf("metrics listener: %w", err)
			}
			defer stopMetrics()

			p := newPipeline(cfg)
			opts := []batch.Option{
				batch.WithPlaylist(library.NewService(cfg.LibraryDir, cfg.Library.Playlist, p.durations)),
			}
			if !noTags {
				covers := coverart.New(cfg.Cover.Timeout, cfg.Cover.UserAgent)
				opts = append(opts, batch.WithTagger(tags.New(covers)))
			}
			driver := batch.NewDriver(p.source, p.acquirer, p.bus, batch.Config{
				TempRoot:   cfg.TempRoot,
				LibraryDir: cfg.LibraryDir,
			}, opts...)

			sub := p.bus.Subscribe(0)
			v := newView(cmd.ErrOrStderr())
			rendered := make(chan struct{})
			go func() {
				defer close(rendered)
				v.consume(sub)
			}()

			token := cancel.New(ctx)
			sum := driver.Run(ctx, args[0], token)
			token.Cancel()
			_ = sub.Close()
			<-rendered

			out := cmd.OutOrStdout()
			if sum.Err != nil {
				return sum.Err
			}
			for _, f := range sum.Files {
				fmt.Fprintln(out, f)
			}
			fmt.Fprintf(out, "%d/%d downloaded (%s) into %s\n",
				sum.Succeeded, sum.Total, humanize.Bytes(uint64(sum.Bytes)), cfg.LibraryDir)
			if sum.Stopped {
				fmt.Fprintln(out, "stopped before the end of the list")
			}
			if sum.Failed > 0 {
				printProblems(cmd.ErrOrStderr(), recentProblems(sum.RunID, 5))
				return errSilent
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noTags, "no-tags", false, "skip ID3 tagging and cover art")
	return cmd
}
