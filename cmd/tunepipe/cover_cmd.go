// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ManuGH/tunepipe/internal/coverart"
	"github.com/dustin/go-humanize"
	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"
)

func newCoverCmd(_ *cli) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "cover <file>",
		Short: "Extract the embedded cover image from a tagged file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, mime, err := coverart.FromFile(args[0])
			if err != nil {
				return err
			}
			dst := output
			if dst == "" {
				base := strings.TrimSuffix(args[0], filepath.Ext(args[0]))
				dst = base + coverart.ExtForMime(mime)
			}
			if err := renameio.WriteFile(dst, data, 0o644); err != nil {
				return fmt.Errorf("write cover: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s)\n", dst, mime, humanize.Bytes(uint64(len(data))))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default: next to the input)")
	return cmd
}
