// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"os/exec"

	"github.com/spf13/cobra"
)

// newCheckCmd reports the effective configuration and whether the external
// tools can be found. Loading already validated the configuration.
func newCheckCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and look up external tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := c.cfg
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "library:  %s\n", cfg.LibraryDir)
			fmt.Fprintf(out, "temp:     %s\n", cfg.TempRoot)
			if cfg.Library.Playlist != "" {
				fmt.Fprintf(out, "playlist: %s\n", cfg.Library.Playlist)
			}

			missing := 0
			for _, bin := range []struct {
				name, path string
				required   bool
			}{
				{"yt-dlp", cfg.YtDlp.Bin, true},
				{"ffmpeg", cfg.FFmpeg.Bin, false},
				{"ffprobe", cfg.FFmpeg.FFprobeBin, false},
			} {
				resolved, err := exec.LookPath(bin.path)
				if err != nil {
					if bin.required {
						missing++
						fmt.Fprintf(out, "✗ %-8s %s not found\n", bin.name, bin.path)
					} else {
						fmt.Fprintf(out, "- %-8s %s not found (optional)\n", bin.name, bin.path)
					}
					continue
				}
				fmt.Fprintf(out, "✓ %-8s %s\n", bin.name, resolved)
			}
			if missing > 0 {
				return errSilent
			}
			return nil
		},
	}
}
