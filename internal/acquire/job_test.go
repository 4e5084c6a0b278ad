// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package acquire

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	mp3Bytes  = []byte("ID3\x03\x00\x00\x00\x00\x00\x00audio")
	webmBytes = []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01, 0x02}
)

// fileFetcher writes the given files into the target directory.
type fileFetcher struct {
	files map[string][]byte
	err   error
}

func (f *fileFetcher) Fetch(_ context.Context, _ media.Entry, dir string, progress source.ProgressFunc) error {
	for name, data := range f.files {
		if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
			return err
		}
	}
	if progress != nil {
		progress(100, "finished")
	}
	return f.err
}

type fakeNormalizer struct {
	calls atomic.Int32
	fail  bool
}

func (n *fakeNormalizer) Normalize(_ context.Context, src, dst string) error {
	n.calls.Add(1)
	if n.fail {
		return media.Errorf("normalize", media.ErrNormalizeFailed, filepath.Base(src), "exit status 1")
	}
	return os.WriteFile(dst, mp3Bytes, 0o600)
}

func newJob(f Fetcher, n Normalizer) *Job {
	return New(f, n, Config{SettleDelay: 0})
}

func TestAcquire_TargetSignatureSkipsTranscoder(t *testing.T) {
	dir := t.TempDir()
	norm := &fakeNormalizer{}
	// Extension says webm, bytes say MP3.
	job := newJob(&fileFetcher{files: map[string][]byte{"dl_a1.webm": mp3Bytes}}, norm)

	res, err := job.Acquire(context.Background(), media.Entry{ID: "a1"}, dir, nil)
	require.NoError(t, err)
	assert.True(t, res.IsTargetFormat)
	assert.Equal(t, filepath.Join(dir, "dl_a1.webm"), res.LocalPath)
	assert.Equal(t, int32(0), norm.calls.Load(), "transcoder must not run")
	assert.Equal(t, int64(len(mp3Bytes)), res.SizeBytes)
}

func TestAcquire_NormalizesAndRemovesOriginal(t *testing.T) {
	dir := t.TempDir()
	norm := &fakeNormalizer{}
	job := newJob(&fileFetcher{files: map[string][]byte{"dl_a1.webm": webmBytes}}, norm)

	res, err := job.Acquire(context.Background(), media.Entry{ID: "a1"}, dir, nil)
	require.NoError(t, err)
	assert.True(t, res.IsTargetFormat)
	assert.Equal(t, filepath.Join(dir, "dl_a1.mp3"), res.LocalPath)
	assert.NoFileExists(t, filepath.Join(dir, "dl_a1.webm"))
	assert.Equal(t, int32(1), norm.calls.Load())
}

func TestAcquire_NormalizeFailureKeepsOriginal(t *testing.T) {
	dir := t.TempDir()
	job := newJob(&fileFetcher{files: map[string][]byte{"dl_a1.m4a": webmBytes}}, &fakeNormalizer{fail: true})

	res, err := job.Acquire(context.Background(), media.Entry{ID: "a1"}, dir, nil)
	require.NoError(t, err)
	assert.False(t, res.IsTargetFormat)
	assert.Equal(t, filepath.Join(dir, "dl_a1.m4a"), res.LocalPath)
	assert.FileExists(t, res.LocalPath)
}

func TestAcquire_FetchErrorWithUsableFileSucceeds(t *testing.T) {
	dir := t.TempDir()
	f := &fileFetcher{files: map[string][]byte{"dl_a1.mp3": mp3Bytes}, err: errors.New("postprocessing: exit status 1")}
	job := newJob(f, &fakeNormalizer{})

	res, err := job.Acquire(context.Background(), media.Entry{ID: "a1"}, dir, nil)
	require.NoError(t, err)
	assert.True(t, res.IsTargetFormat)
}

func TestAcquire_NoCandidateIsFetchFailed(t *testing.T) {
	dir := t.TempDir()
	f := &fileFetcher{files: map[string][]byte{"dl_a1.webm.part": webmBytes, "cover.jpg": {1}}, err: errors.New("network")}
	job := newJob(f, &fakeNormalizer{})

	res, err := job.Acquire(context.Background(), media.Entry{ID: "a1"}, dir, nil)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, media.ErrFetchFailed)
	assert.Equal(t, "fetch_failed", media.KindOf(err))
}

func TestAcquire_OnlyEmptyFilesIsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	job := newJob(&fileFetcher{files: map[string][]byte{"dl_a1.webm": nil}}, &fakeNormalizer{})

	_, err := job.Acquire(context.Background(), media.Entry{ID: "a1"}, dir, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrEmptyFile)
}

func TestAcquire_ForwardsProgress(t *testing.T) {
	dir := t.TempDir()
	job := newJob(&fileFetcher{files: map[string][]byte{"dl_a1.mp3": mp3Bytes}}, &fakeNormalizer{})

	var got float64
	_, err := job.Acquire(context.Background(), media.Entry{ID: "a1"}, dir, func(p float64, _ string) { got = p })
	require.NoError(t, err)
	assert.InDelta(t, 100, got, 0.001)
}

func TestScanCandidates_PrefersOwnEntryThenNewest(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	write := func(name string, data []byte, mtime time.Time) {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, data, 0o600))
		require.NoError(t, os.Chtimes(p, mtime, mtime))
	}
	write("dl_other.mp3", mp3Bytes, now.Add(2*time.Second))
	write("dl_a1.webm", webmBytes, now.Add(time.Second))
	write("dl_a1.webm.ytdl", webmBytes, now.Add(3*time.Second))
	write("dl_old.mp3", mp3Bytes, now.Add(-time.Hour))

	res, err := scanCandidates(dir, "a1", now)
	require.NoError(t, err)
	require.NotNil(t, res.best)
	assert.Equal(t, "dl_a1.webm", filepath.Base(res.best.path))

	res, err = scanCandidates(dir, "zz", now)
	require.NoError(t, err)
	require.NotNil(t, res.best)
	assert.Equal(t, "dl_other.mp3", filepath.Base(res.best.path), "newest fresh file when no id match")
}

func TestIsPartial(t *testing.T) {
	for _, name := range []string{"a.part", "a.YTDL", "a.partial", "a.tmp", "a.lock", "a.temp"} {
		assert.True(t, IsPartial(name), name)
	}
	for _, name := range []string{"a.mp3", "a.webm", "part.mp3"} {
		assert.False(t, IsPartial(name), name)
	}
}

func TestNormalizedPath(t *testing.T) {
	assert.Equal(t, "/t/dl_a.mp3", normalizedPath("/t/dl_a.webm"))
	assert.Equal(t, "/t/dl_a.norm.mp3", normalizedPath("/t/dl_a.mp3"))
}
