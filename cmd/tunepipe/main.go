// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// tunepipe resolves remote audio, downloads it into a local library or
// streams it through the speaker.
//
// Usage:
//
//	tunepipe download <url>
//	tunepipe stream <url>
//	tunepipe play <file>
//	tunepipe library [--m3u]
//	tunepipe library rm <file>...
//	tunepipe cover <file.mp3> [-o out.jpg]
//	tunepipe check
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	xglog "github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/version"
)

// errSilent marks a failure that was already reported to the user.
var errSilent = errors.New("silent")

func main() {
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "tunepipe",
		Version: version.Version,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root := newRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errSilent) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
