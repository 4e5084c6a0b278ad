// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/ManuGH/tunepipe/internal/config"
	"github.com/ManuGH/tunepipe/internal/duration"
	"github.com/ManuGH/tunepipe/internal/library"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newLibraryCmd(c *cli) *cobra.Command {
	var writePlaylist bool
	cmd := &cobra.Command{
		Use:   "library",
		Short: "List the tracks in the library directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg := c.cfg
			svc := library.NewService(cfg.LibraryDir, cfg.Library.Playlist, newDurations(cfg))

			res, err := svc.Scan(ctx)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, t := range res.Tracks {
				length := "?"
				if t.DurationKnown() {
					length = clock(t.Duration)
					if t.DurationSource == duration.SourceEstimate {
						length = "~" + length
					}
				}
				artist := t.Artist
				if artist == "" {
					artist = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					t.RelPath, artist, t.Title, length, humanize.Bytes(uint64(t.SizeBytes)))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "%d tracks, %s in %s\n",
				len(res.Tracks), humanize.Bytes(uint64(res.TotalBytes)), res.Root)
			if msg := res.Error(); msg != "" {
				fmt.Fprintln(cmd.ErrOrStderr(), msg)
			}

			if writePlaylist {
				if cfg.Library.Playlist == "" {
					return fmt.Errorf("no playlist path configured (library.playlist or %s)", config.EnvPlaylist)
				}
				if err := svc.WritePlaylist(ctx); err != nil {
					return err
				}
				fmt.Fprintf(out, "playlist written to %s\n", cfg.Library.Playlist)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&writePlaylist, "m3u", false, "rewrite the library playlist")
	cmd.AddCommand(newLibraryRmCmd(c))
	return cmd
}

func newLibraryRmCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <file>...",
		Short: "Delete tracks and their extracted covers from the library",
		Long: `Deletes each track and any cover image saved next to it by "cover",
then refreshes the library playlist. Relative names are taken against
the library directory, as shown by "library".`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := library.NewService(c.cfg.LibraryDir, c.cfg.Library.Playlist, nil)
			var failed int
			for _, name := range args {
				removed, err := svc.Remove(cmd.Context(), name)
				for _, p := range removed {
					fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", p)
				}
				if err != nil {
					failed++
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", name, err)
				}
			}
			if failed > 0 {
				return errSilent
			}
			return nil
		},
	}
}
