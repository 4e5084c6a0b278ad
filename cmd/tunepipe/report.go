// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"fmt"
	"io"

	xglog "github.com/ManuGH/tunepipe/internal/log"
)

// recentProblems returns the last max warn/error lines logged for runID,
// oldest first.
func recentProblems(runID string, max int) []xglog.LogEntry {
	var out []xglog.LogEntry
	for _, e := range xglog.GetRecentLogs() {
		if e.Level != "warn" && e.Level != "error" {
			continue
		}
		if id, _ := e.Fields[xglog.FieldRunID].(string); id != runID {
			continue
		}
		out = append(out, e)
	}
	if len(out) > max {
		out = out[len(out)-max:]
	}
	return out
}

func printProblems(w io.Writer, entries []xglog.LogEntry) {
	if len(entries) == 0 {
		return
	}
	fmt.Fprintln(w, "recent problems:")
	for _, e := range entries {
		title, _ := e.Fields[xglog.FieldTitle].(string)
		errMsg, _ := e.Fields["error"].(string)
		switch {
		case title != "" && errMsg != "":
			fmt.Fprintf(w, "  %s: %s (%s)\n", title, e.Message, errMsg)
		case errMsg != "":
			fmt.Fprintf(w, "  %s (%s)\n", e.Message, errMsg)
		default:
			fmt.Fprintf(w, "  %s\n", e.Message)
		}
	}
}
