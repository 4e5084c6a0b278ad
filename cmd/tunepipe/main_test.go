// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/tunepipe/internal/config"
	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/playback"
	"github.com/ManuGH/tunepipe/internal/stream"
	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frameSync = []byte{0xFF, 0xFB, 0x90, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

func TestParseControl(t *testing.T) {
	cases := map[string]control{
		"p":       ctlToggle,
		"  P ":    ctlToggle,
		"r":       ctlResume,
		"s":       ctlSkip,
		"next":    ctlSkip,
		"l":       ctlQueue,
		"q":       ctlQuit,
		"stop":    ctlQuit,
		"":        ctlNone,
		"garbage": ctlNone,
	}
	for in, want := range cases {
		assert.Equal(t, want, parseControl(in), "input %q", in)
	}
}

type fakeController struct {
	paused  bool
	calls   []string
	current stream.Snapshot
}

func (f *fakeController) Pause() error {
	f.calls = append(f.calls, "pause")
	if f.paused {
		return playback.ErrInvalidState
	}
	f.paused = true
	return nil
}

func (f *fakeController) Resume() error {
	f.calls = append(f.calls, "resume")
	if !f.paused {
		return playback.ErrInvalidState
	}
	f.paused = false
	return nil
}

func (f *fakeController) Skip()                  { f.calls = append(f.calls, "skip") }
func (f *fakeController) Stop()                  { f.calls = append(f.calls, "stop") }
func (f *fakeController) Queue() stream.Snapshot { return f.current }

func TestReadControls(t *testing.T) {
	ctl := &fakeController{current: stream.Snapshot{
		Entries: []media.Entry{{ID: "1", Title: "One"}, {ID: "2", Title: "Two"}},
		Current: 1,
	}}
	var out bytes.Buffer

	readControls(strings.NewReader("p\np\ns\nl\nq\ns\n"), &out, ctl)

	// Second "p" fails to pause and falls back to resume; input after quit is ignored.
	assert.Equal(t, []string{"pause", "pause", "resume", "skip", "stop"}, ctl.calls)
	assert.Contains(t, out.String(), "   1. One")
	assert.Contains(t, out.String(), ">  2. Two")
}

func TestView_RendersPlaybackAndBatch(t *testing.T) {
	var out bytes.Buffer
	v := newView(&out)

	v.handle(events.QueueChanged{Entries: make([]media.Entry, 3), Current: -1})
	v.handle(events.TrackChanged{Entry: media.Entry{Title: "Song", Uploader: "Band"}})
	v.handle(events.PlaybackProgress{Elapsed: 65 * time.Second, Total: 200 * time.Second, TotalKnown: true, Percent: 32.5})
	v.handle(events.PlaybackProgress{Elapsed: 3 * time.Second})
	v.handle(events.PlaybackStateChanged{State: playback.StatePaused.String()})

	v.handle(events.BatchProgressShown{})
	v.handle(events.BatchItem{Index: 1, Total: 2, Name: "Band - Song"})
	v.handle(events.BatchProgressHidden{Succeeded: 1, Failed: 1})
	v.finish()

	s := out.String()
	assert.Contains(t, s, "queue: 3 items")
	assert.Contains(t, s, "> Band - Song")
	assert.Contains(t, s, "1:05 / 3:20")
	assert.Contains(t, s, "0:03 / --:--")
	assert.Contains(t, s, "|| paused")
	assert.Contains(t, s, "done: 1 succeeded, 1 failed")
}

func TestView_ConsumeReturnsOnClose(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe(4)
	var out bytes.Buffer
	v := newView(&out)

	done := make(chan struct{})
	go func() {
		defer close(done)
		v.consume(sub)
	}()
	bus.Publish(events.TrackChanged{Entry: media.Entry{Title: "x"}})
	require.NoError(t, sub.Close())

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consume did not return after Close")
	}
}

func TestClock(t *testing.T) {
	assert.Equal(t, "0:00", clock(-time.Second))
	assert.Equal(t, "0:59", clock(59*time.Second))
	assert.Equal(t, "3:20", clock(200*time.Second))
	assert.Equal(t, "1:01:01", clock(time.Hour+61*time.Second))
}

// isolate points every configurable directory at a temp dir.
func isolate(t *testing.T) (libDir string) {
	t.Helper()
	base := t.TempDir()
	libDir = filepath.Join(base, "lib")
	require.NoError(t, os.MkdirAll(libDir, 0o750))
	t.Setenv(config.EnvDataDir, filepath.Join(base, "data"))
	t.Setenv(config.EnvLibraryDir, libDir)
	t.Setenv(config.EnvTempRoot, filepath.Join(base, "tmp"))
	t.Setenv(config.EnvFFprobeBin, filepath.Join(base, "no-ffprobe"))
	return libDir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestLibraryCommand_ListsAndWritesPlaylist(t *testing.T) {
	libDir := isolate(t)
	t.Setenv(config.EnvPlaylist, "all.m3u")

	path := filepath.Join(libDir, "song.mp3")
	require.NoError(t, os.WriteFile(path, frameSync, 0o600))
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetTitle("Song")
	tag.SetArtist("Band")
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())

	out, err := runCLI(t, "library", "--m3u")
	require.NoError(t, err)
	assert.Contains(t, out, "song.mp3")
	assert.Contains(t, out, "Band")
	assert.Contains(t, out, "1 tracks")
	assert.Contains(t, out, "playlist written")

	m3u, err := os.ReadFile(filepath.Join(libDir, "all.m3u"))
	require.NoError(t, err)
	assert.Contains(t, string(m3u), "Band - Song")
}

func TestCoverCommand(t *testing.T) {
	libDir := isolate(t)
	path := filepath.Join(libDir, "song.mp3")
	require.NoError(t, os.WriteFile(path, frameSync, 0o600))

	_, err := runCLI(t, "cover", path)
	require.Error(t, err)

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetVersion(3)
	tag.AddAttachedPicture(id3v2.PictureFrame{
		Encoding:    id3v2.EncodingISO,
		MimeType:    "image/jpeg",
		PictureType: id3v2.PTFrontCover,
		Description: "Cover",
		Picture:     []byte("\xFF\xD8\xFFjpeg"),
	})
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())

	out, err := runCLI(t, "cover", path)
	require.NoError(t, err)
	assert.Contains(t, out, "song.jpg")

	data, err := os.ReadFile(filepath.Join(libDir, "song.jpg"))
	require.NoError(t, err)
	assert.Equal(t, []byte("\xFF\xD8\xFFjpeg"), data)
}

func TestCheckCommand_MissingDownloader(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvYtDlpBin, filepath.Join(t.TempDir(), "no-yt-dlp"))

	out, err := runCLI(t, "check")
	assert.ErrorIs(t, err, errSilent)
	assert.Contains(t, out, "✗ yt-dlp")
}

func TestInvalidConfigIsReported(t *testing.T) {
	isolate(t)
	t.Setenv(config.EnvLogLevel, "loud")

	_, err := runCLI(t, "check")
	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

type cliHandle struct {
	mu      sync.Mutex
	endless bool
	playing bool
}

func (h *cliHandle) Play() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = true
	return nil
}

func (h *cliHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.playing = false
}

func (h *cliHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.endless && h.playing
}

func (h *cliHandle) Position() (time.Duration, bool) { return 0, false }
func (h *cliHandle) Seek(time.Duration) error        { return playback.ErrSeekUnsupported }
func (h *cliHandle) Duration() (time.Duration, bool) { return 0, false }
func (h *cliHandle) Close() error                    { return nil }

func testPlayer(in string, endless bool, errOut *bytes.Buffer) localPlayer {
	return localPlayer{
		loader: playback.LoaderFunc(func(string) (playback.Handle, error) {
			return &cliHandle{endless: endless}, nil
		}),
		cfg:    playback.Config{PollInterval: 2 * time.Millisecond, TickInterval: 5 * time.Millisecond},
		in:     strings.NewReader(in),
		out:    io.Discard,
		errOut: errOut,
	}
}

func TestPlayFile_PlaysToTheEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "song.mp3")
	require.NoError(t, os.WriteFile(path, frameSync, 0o600))
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetTitle("Song")
	tag.SetArtist("Band")
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())

	var errOut bytes.Buffer
	outcome, err := playFile(context.Background(), path, testPlayer("", false, &errOut))
	require.NoError(t, err)
	assert.Equal(t, playback.OutcomeCompleted, outcome)
	assert.Contains(t, errOut.String(), "> Band - Song")
}

func TestPlayFile_StopFromKeyboard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain.mp3")
	require.NoError(t, os.WriteFile(path, frameSync, 0o600))

	var errOut bytes.Buffer
	done := make(chan playback.Outcome, 1)
	go func() {
		outcome, err := playFile(context.Background(), path, testPlayer("p\nq\n", true, &errOut))
		assert.NoError(t, err)
		done <- outcome
	}()

	select {
	case outcome := <-done:
		assert.Equal(t, playback.OutcomeStopped, outcome)
	case <-time.After(5 * time.Second):
		t.Fatal("play did not stop")
	}
}

func TestPlayFile_MissingFile(t *testing.T) {
	var errOut bytes.Buffer
	_, err := playFile(context.Background(), filepath.Join(t.TempDir(), "nope.mp3"), testPlayer("", false, &errOut))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLibraryRmCommand(t *testing.T) {
	libDir := isolate(t)
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "a.mp3"), frameSync, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(libDir, "a.jpg"), []byte("\xFF\xD8\xFF"), 0o600))

	out, err := runCLI(t, "library", "rm", "a.mp3")
	require.NoError(t, err)
	assert.Contains(t, out, "removed "+filepath.Join(libDir, "a.mp3"))
	assert.Contains(t, out, "removed "+filepath.Join(libDir, "a.jpg"))
	assert.NoFileExists(t, filepath.Join(libDir, "a.mp3"))

	_, err = runCLI(t, "library", "rm", "../escape.mp3")
	assert.ErrorIs(t, err, errSilent)
}
