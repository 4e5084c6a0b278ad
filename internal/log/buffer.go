// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"bytes"
	"encoding/json"
	"sync"
	"time"
)

const (
	maxRecentLogs   = 500
	maxLineBytes    = 16 * 1024
	maxPartialBytes = 64 * 1024
)

// LogEntry is one parsed line kept for the live activity feed.
type LogEntry struct {
	Time      time.Time      `json:"time"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// BufferMetrics counts lines the feed refused.
type BufferMetrics struct {
	DroppedPartialOverflow uint64
	DroppedTooLargeLines   uint64
	DroppedIrrelevant      uint64
	DroppedMalformed       uint64
}

var (
	recentMu      sync.Mutex
	recentLogs    []LogEntry
	bufferMetrics BufferMetrics
)

// structuredBufferWriter tees zerolog JSON lines into the in-memory feed.
// Writes may split or batch lines; framing is done on '\n'.
type structuredBufferWriter struct {
	mu      sync.Mutex
	partial bytes.Buffer
}

func (w *structuredBufferWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	for len(data) > 0 {
		idx := bytes.IndexByte(data, '\n')
		if idx < 0 {
			if w.partial.Len()+len(data) > maxPartialBytes {
				w.partial.Reset()
				recentMu.Lock()
				bufferMetrics.DroppedPartialOverflow++
				recentMu.Unlock()
				return len(p), nil
			}
			w.partial.Write(data)
			break
		}

		var line []byte
		if w.partial.Len() > 0 {
			w.partial.Write(data[:idx])
			line = append([]byte(nil), w.partial.Bytes()...)
			w.partial.Reset()
		} else {
			line = data[:idx]
		}
		data = data[idx+1:]
		ingestLine(line)
	}
	return len(p), nil
}

func ingestLine(line []byte) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return
	}
	if len(line) > maxLineBytes {
		recentMu.Lock()
		bufferMetrics.DroppedTooLargeLines++
		recentMu.Unlock()
		return
	}

	var fields map[string]any
	if err := json.Unmarshal(line, &fields); err != nil {
		recentMu.Lock()
		bufferMetrics.DroppedMalformed++
		recentMu.Unlock()
		return
	}

	level, _ := fields["level"].(string)
	if !isRelevantLevel(level) {
		recentMu.Lock()
		bufferMetrics.DroppedIrrelevant++
		recentMu.Unlock()
		return
	}

	entry := LogEntry{Level: level, Fields: fields}
	if msg, ok := fields["message"].(string); ok {
		entry.Message = msg
	}
	if comp, ok := fields[FieldComponent].(string); ok {
		entry.Component = comp
	}
	if ts, ok := fields["time"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			entry.Time = parsed
		}
	}
	delete(fields, "level")
	delete(fields, "message")
	delete(fields, "time")

	recentMu.Lock()
	recentLogs = append(recentLogs, entry)
	if over := len(recentLogs) - maxRecentLogs; over > 0 {
		recentLogs = append([]LogEntry(nil), recentLogs[over:]...)
	}
	recentMu.Unlock()
}

// Debug and trace chatter (ffmpeg progress, env lookups) stays out of the feed.
func isRelevantLevel(level string) bool {
	switch level {
	case "info", "warn", "error", "fatal", "panic":
		return true
	default:
		return false
	}
}

// GetRecentLogs returns a copy of the buffered feed, oldest first.
func GetRecentLogs() []LogEntry {
	recentMu.Lock()
	defer recentMu.Unlock()
	out := make([]LogEntry, len(recentLogs))
	copy(out, recentLogs)
	return out
}

// ClearRecentLogs empties the feed and resets its counters.
func ClearRecentLogs() {
	recentMu.Lock()
	defer recentMu.Unlock()
	recentLogs = nil
	bufferMetrics = BufferMetrics{}
}

// GetBufferMetrics returns a snapshot of the feed counters.
func GetBufferMetrics() BufferMetrics {
	recentMu.Lock()
	defer recentMu.Unlock()
	return bufferMetrics
}
