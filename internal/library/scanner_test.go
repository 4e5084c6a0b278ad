// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package library

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ManuGH/tunepipe/internal/duration"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frameSync = []byte{0xFF, 0xFB, 0x90, 0x00, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}

type fixedDurations map[string]time.Duration

func (f fixedDurations) Resolve(_ context.Context, path string, _ *media.Entry, _ duration.HandleDuration) duration.Result {
	if d, ok := f[filepath.Base(path)]; ok {
		return duration.Result{Value: d, Source: duration.SourceContainer}
	}
	return duration.Result{Source: duration.SourceUnknown}
}

func write(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func writeTagged(t *testing.T, path, title, artist string) {
	t.Helper()
	write(t, path, frameSync)
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.SetVersion(3)
	tag.SetTitle(title)
	tag.SetArtist(artist)
	tag.SetAlbum("Downloaded")
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())
}

func TestScan_ListsFinishedTracksSorted(t *testing.T) {
	root := t.TempDir()
	writeTagged(t, filepath.Join(root, "b.mp3"), "Bee", "Band")
	write(t, filepath.Join(root, "a.webm"), []byte{0x1A, 0x45, 0xDF, 0xA3})
	write(t, filepath.Join(root, "sub", "c.mp3"), frameSync)
	write(t, filepath.Join(root, "dl_x.webm.part"), []byte("partial"))
	write(t, filepath.Join(root, "notes.txt"), []byte("text"))
	write(t, filepath.Join(root, "empty.mp3"), nil)
	write(t, filepath.Join(root, ".hidden", "h.mp3"), frameSync)

	sc := NewScanner(fixedDurations{"b.mp3": 90 * time.Second})
	res, err := sc.Scan(context.Background(), ScanConfig{Root: root})
	require.NoError(t, err)

	assert.Equal(t, StatusOK, res.Status)
	assert.Empty(t, res.Error())
	require.Len(t, res.Tracks, 3)
	assert.Equal(t, "a.webm", res.Tracks[0].RelPath)
	assert.Equal(t, "b.mp3", res.Tracks[1].RelPath)
	assert.Equal(t, "sub/c.mp3", res.Tracks[2].RelPath)
	assert.Equal(t, 3, res.Skipped)

	b := res.Tracks[1]
	assert.True(t, b.Tagged)
	assert.Equal(t, "Bee", b.Title)
	assert.Equal(t, "Band", b.Artist)
	assert.Equal(t, 90*time.Second, b.Duration)
	assert.True(t, b.DurationKnown())

	assert.Equal(t, "a", res.Tracks[0].Title)
	assert.False(t, res.Tracks[0].DurationKnown())
	assert.False(t, res.Tracks[2].Tagged)
}

func TestScan_MaxDepthAndExclude(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "top.mp3"), frameSync)
	write(t, filepath.Join(root, "deep", "nested.mp3"), frameSync)
	write(t, filepath.Join(root, "skip.mp3"), frameSync)

	res, err := NewScanner(nil).Scan(context.Background(), ScanConfig{
		Root:     root,
		MaxDepth: 1,
		Exclude:  []string{filepath.Join(root, "skip.mp3")},
	})
	require.NoError(t, err)
	require.Len(t, res.Tracks, 1)
	assert.Equal(t, "top.mp3", res.Tracks[0].RelPath)
}

func TestScan_SymlinkEscapeIsRejected(t *testing.T) {
	root := t.TempDir()
	outside := filepath.Join(t.TempDir(), "secret.mp3")
	write(t, outside, frameSync)
	if err := os.Symlink(outside, filepath.Join(root, "link.mp3")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	res, err := NewScanner(nil).Scan(context.Background(), ScanConfig{Root: root})
	require.NoError(t, err)
	assert.Empty(t, res.Tracks)
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, 1, res.ErrorCount)
}

func TestScan_MissingRoot(t *testing.T) {
	res, err := NewScanner(nil).Scan(context.Background(), ScanConfig{Root: filepath.Join(t.TempDir(), "nope")})
	require.Error(t, err)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestScan_Cancelled(t *testing.T) {
	root := t.TempDir()
	write(t, filepath.Join(root, "a.mp3"), frameSync)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := NewScanner(nil).Scan(ctx, ScanConfig{Root: root})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StatusFailed, res.Status)
}

func TestService_WritePlaylist(t *testing.T) {
	root := t.TempDir()
	writeTagged(t, filepath.Join(root, "one.mp3"), "One", "Band")
	write(t, filepath.Join(root, "two.webm"), []byte{0x1A, 0x45, 0xDF, 0xA3})
	playlistPath := filepath.Join(root, "library.m3u")

	svc := NewService(root, playlistPath, fixedDurations{"one.mp3": 61400 * time.Millisecond})
	require.NoError(t, svc.WritePlaylist(context.Background()))

	got, err := os.ReadFile(playlistPath)
	require.NoError(t, err)
	want := "#EXTM3U\n" +
		"#EXTINF:61,Band - One\none.mp3\n" +
		"#EXTINF:-1,two\ntwo.webm\n"
	assert.Equal(t, want, string(got))

	info, err := os.Stat(playlistPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	// Rewriting must not list the playlist itself.
	require.NoError(t, svc.WritePlaylist(context.Background()))
	again, err := os.ReadFile(playlistPath)
	require.NoError(t, err)
	assert.False(t, bytes.Contains(again, []byte("library.m3u")))
}

func TestService_NoPlaylistConfigured(t *testing.T) {
	root := t.TempDir()
	svc := NewService(root, "", nil)
	require.NoError(t, svc.WritePlaylist(context.Background()))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestItems_AbsolutePathOutsideBase(t *testing.T) {
	tracks := []Track{{Path: "/music/a.mp3", Title: "a"}}
	items := Items(tracks, "/playlists")
	require.Len(t, items, 1)
	assert.Equal(t, "/music/a.mp3", items[0].Path)
	assert.Equal(t, -1, items[0].Seconds)
}
