// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package procgroup starts external tools (ffmpeg, ffprobe) in their own
// process group so a timed-out invocation can be reaped with its children.
package procgroup

import "time"

// DefaultGrace is how long Terminate waits between SIGTERM and SIGKILL.
const DefaultGrace = 2 * time.Second
