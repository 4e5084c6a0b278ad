// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStructuredBufferWriter_Framing(t *testing.T) {
	ClearRecentLogs()
	w := &structuredBufferWriter{}

	// 1. Split write: half line + rest\n
	line1Part1 := `{"time":"2026-01-01T00:00:00Z","level":"info","component":"batch","event":"test.split","message":"part1`
	line1Part2 := `_part2"}` + "\n"

	_, _ = w.Write([]byte(line1Part1))
	assert.Empty(t, GetRecentLogs(), "partial write must not be published")

	_, _ = w.Write([]byte(line1Part2))
	logs := GetRecentLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, "test.split", logs[0].Fields["event"])
	assert.Equal(t, "part1_part2", logs[0].Message)
	assert.Equal(t, "batch", logs[0].Component)

	// 2. Multi-line burst
	line2 := `{"time":"2026-01-01T00:00:01Z","level":"info","component":"stream","message":"msg1"}` + "\n"
	line3 := `{"time":"2026-01-01T00:00:02Z","level":"warn","message":"msg2"}` + "\n"

	_, _ = w.Write([]byte(line2 + line3))
	assert.Len(t, GetRecentLogs(), 3)
}

func TestStructuredBufferWriter_Bounds(t *testing.T) {
	ClearRecentLogs()
	w := &structuredBufferWriter{}

	giantChunk := strings.Repeat("A", maxPartialBytes+1)
	_, _ = w.Write([]byte(giantChunk))
	assert.Equal(t, 0, w.partial.Len(), "partial buffer should have been reset after overflow")
	assert.NotZero(t, GetBufferMetrics().DroppedPartialOverflow)

	ClearRecentLogs()
	giantLine := `{"level":"info","message":"` + strings.Repeat("B", maxLineBytes) + `"}` + "\n"
	_, _ = w.Write([]byte(giantLine))
	assert.Empty(t, GetRecentLogs(), "giant line should have been dropped")
	assert.NotZero(t, GetBufferMetrics().DroppedTooLargeLines)
}

func TestStructuredBufferWriter_RelevanceFilter(t *testing.T) {
	ClearRecentLogs()
	w := &structuredBufferWriter{}

	_, _ = w.Write([]byte(`{"level":"info","component":"acquire","message":"candidate selected"}` + "\n"))
	_, _ = w.Write([]byte(`{"level":"error","component":"normalize","message":"transcode failed"}` + "\n"))
	_, _ = w.Write([]byte(`{"level":"debug","component":"normalize","message":"out_time_us=1000"}` + "\n"))
	_, _ = w.Write([]byte("not json\n"))

	assert.Len(t, GetRecentLogs(), 2)
	m := GetBufferMetrics()
	assert.NotZero(t, m.DroppedIrrelevant)
	assert.NotZero(t, m.DroppedMalformed)
}

func TestStructuredBufferWriter_RingIsBounded(t *testing.T) {
	ClearRecentLogs()
	w := &structuredBufferWriter{}
	for i := 0; i < maxRecentLogs+25; i++ {
		_, _ = w.Write([]byte(`{"level":"info","message":"tick"}` + "\n"))
	}
	assert.Len(t, GetRecentLogs(), maxRecentLogs)
}

func TestReconfigure_TeesActivityLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "activity.log")
	f, err := OpenActivityLog(path)
	require.NoError(t, err)
	defer f.Close()

	var out bytes.Buffer
	Reconfigure(Config{Level: "info", Output: &out, Service: "tunepipe-test", Activity: f})
	t.Cleanup(func() { Reconfigure(Config{}) })

	l := WithComponent("batch")
	l.Info().Str(FieldOp, "relocate").Msg("file relocated")

	assert.Contains(t, out.String(), `"component":"batch"`)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"op":"relocate"`)
	assert.Contains(t, string(data), `"service":"tunepipe-test"`)
}

func TestOpenActivityLog_Appends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activity.log")
	for _, line := range []string{"one\n", "two\n"} {
		f, err := OpenActivityLog(path)
		require.NoError(t, err)
		_, err = f.WriteString(line)
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))

	_, err = OpenActivityLog("")
	assert.Error(t, err)
}
