// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ManuGH/tunepipe/internal/cancel"
	"github.com/ManuGH/tunepipe/internal/events"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticResolver struct {
	entries []media.Entry
	err     error
}

func (r staticResolver) Resolve(context.Context, string) ([]media.Entry, error) {
	return r.entries, r.err
}

// cancellingResolver cancels token mid-resolution and keeps the context state.
type cancellingResolver struct {
	entries []media.Entry
	token   *cancel.Token
	ctxErr  *error
}

func (r cancellingResolver) Resolve(ctx context.Context, _ string) ([]media.Entry, error) {
	r.token.Cancel()
	*r.ctxErr = ctx.Err()
	return r.entries, nil
}

// scriptedAcquirer writes one file per entry; ext decides the format.
type scriptedAcquirer struct {
	ext    map[string]string
	fail   map[string]error
	panics map[string]bool
	after  func(id string)

	// during runs mid-acquisition; the context state right after it is kept.
	during  func(id string)
	ctxErrs []error
}

func (a *scriptedAcquirer) Acquire(ctx context.Context, entry media.Entry, dir string, _ source.ProgressFunc) (*media.AcquisitionResult, error) {
	if a.after != nil {
		defer a.after(entry.ID)
	}
	if a.during != nil {
		a.during(entry.ID)
		a.ctxErrs = append(a.ctxErrs, ctx.Err())
	}
	if a.panics[entry.ID] {
		panic("unexpected nil")
	}
	if err := a.fail[entry.ID]; err != nil {
		return nil, err
	}
	ext := a.ext[entry.ID]
	if ext == "" {
		ext = ".mp3"
	}
	data := []byte("ID3 audio")
	target := ext == ".mp3"
	if !target {
		data = []byte{0x1A, 0x45, 0xDF, 0xA3}
	}
	path := filepath.Join(dir, "dl_"+entry.ID+ext)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, err
	}
	return &media.AcquisitionResult{LocalPath: path, IsTargetFormat: target, SizeBytes: int64(len(data)), Entry: entry}, nil
}

type recordingTagger struct {
	mu    sync.Mutex
	paths []string
	err   error
}

func (t *recordingTagger) Embed(_ context.Context, path string, _ media.Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.paths = append(t.paths, filepath.Base(path))
	return t.err
}

type countingPlaylist struct{ calls int }

func (p *countingPlaylist) WritePlaylist(context.Context) error {
	p.calls++
	return nil
}

func entries() []media.Entry {
	return []media.Entry{
		{ID: "a", Title: "First", Uploader: "Band"},
		{ID: "b", Title: "Second", Uploader: "Band"},
		{ID: "c", Title: "Third: Live/Remix", Uploader: "Band"},
	}
}

func newTestDriver(t *testing.T, res Resolver, acq Acquirer, opts ...Option) (*Driver, *events.Recorder, string, string) {
	t.Helper()
	tempRoot, lib := t.TempDir(), filepath.Join(t.TempDir(), "library")
	rec := &events.Recorder{}
	d := NewDriver(res, acq, rec, Config{TempRoot: tempRoot, LibraryDir: lib}, opts...)
	d.now = func() time.Time { return time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC) }
	return d, rec, tempRoot, lib
}

func newToken(t *testing.T) *cancel.Token {
	token := cancel.New(context.Background())
	t.Cleanup(token.Cancel)
	return token
}

func TestRun_DownloadsAllAndTagsTargetFiles(t *testing.T) {
	tagger := &recordingTagger{}
	pl := &countingPlaylist{}
	acq := &scriptedAcquirer{ext: map[string]string{"b": ".webm"}}
	d, rec, tempRoot, lib := newTestDriver(t, staticResolver{entries: entries()}, acq, WithTagger(tagger), WithPlaylist(pl))

	sum := d.Run(context.Background(), "https://x/list", newToken(t))

	require.NoError(t, sum.Err)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 3, sum.Succeeded)
	assert.Zero(t, sum.Failed)
	assert.NotEmpty(t, sum.RunID)

	assert.FileExists(t, filepath.Join(lib, "Band - First.mp3"))
	assert.FileExists(t, filepath.Join(lib, "Band - Second.webm"))
	assert.FileExists(t, filepath.Join(lib, "Band - Third_ Live_Remix.mp3"))

	assert.Equal(t, []string{"Band - First.mp3", "Band - Third_ Live_Remix.mp3"}, tagger.paths, "only target-format files are tagged")
	assert.Equal(t, 1, pl.calls)

	left, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, left, "temp dir removed")

	kinds := rec.Kinds()
	assert.Equal(t, "batch_progress_shown", kinds[0])
	assert.Equal(t, "batch_progress_hidden", kinds[len(kinds)-1])
	items := events.Of[events.BatchItem](rec)
	require.Len(t, items, 3)
	assert.Equal(t, events.BatchItem{Index: 2, Total: 3, Name: "Band - Second"}, items[1])
}

func TestRun_FailedItemIsSkipped(t *testing.T) {
	acq := &scriptedAcquirer{
		fail:   map[string]error{"b": media.NewError("acquire", media.ErrFetchFailed, "", errors.New("403"))},
		panics: map[string]bool{"c": true},
	}
	d, rec, _, lib := newTestDriver(t, staticResolver{entries: entries()}, acq)

	sum := d.Run(context.Background(), "https://x/list", newToken(t))

	require.NoError(t, sum.Err)
	assert.Equal(t, 1, sum.Succeeded)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, []string{filepath.Join(lib, "Band - First.mp3")}, sum.Files)

	hidden := events.Of[events.BatchProgressHidden](rec)
	require.Len(t, hidden, 1)
	assert.Equal(t, events.BatchProgressHidden{Succeeded: 1, Failed: 2}, hidden[0])
}

func TestRun_ResolutionFailure(t *testing.T) {
	resolveErr := media.NewError("resolve", media.ErrResolutionFailed, "", errors.New("unsupported url"))
	d, rec, tempRoot, _ := newTestDriver(t, staticResolver{err: resolveErr}, &scriptedAcquirer{})

	sum := d.Run(context.Background(), "https://x/bad", newToken(t))

	require.Error(t, sum.Err)
	assert.ErrorIs(t, sum.Err, media.ErrResolutionFailed)
	assert.Zero(t, sum.Total)
	assert.Equal(t, []string{"batch_progress_shown", "batch_progress_hidden"}, rec.Kinds())

	left, err := os.ReadDir(tempRoot)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestRun_CancelBetweenEntries(t *testing.T) {
	token := newToken(t)
	acq := &scriptedAcquirer{after: func(id string) {
		if id == "a" {
			token.Cancel()
		}
	}}
	d, _, _, _ := newTestDriver(t, staticResolver{entries: entries()}, acq)

	sum := d.Run(context.Background(), "https://x/list", token)

	assert.Equal(t, 1, sum.Succeeded, "the item in progress completes")
	assert.True(t, sum.Stopped)
	assert.Zero(t, sum.Failed)
}

func TestRun_InterruptDoesNotCancelAcquisition(t *testing.T) {
	ctx, interrupt := context.WithCancel(context.Background())
	defer interrupt()
	token := cancel.New(ctx)
	t.Cleanup(token.Cancel)

	acq := &scriptedAcquirer{during: func(string) {
		interrupt()
		<-token.Done()
	}}
	d, _, _, _ := newTestDriver(t, staticResolver{entries: entries()}, acq)

	sum := d.Run(ctx, "https://x/list", token)

	assert.Equal(t, []error{nil}, acq.ctxErrs, "acquisition context must outlive the stop signal")
	assert.Equal(t, 1, sum.Succeeded)
	assert.True(t, sum.Stopped)
}

func TestRun_StopDuringResolutionLetsItFinish(t *testing.T) {
	token := newToken(t)
	var ctxErr error
	d, _, _, _ := newTestDriver(t, cancellingResolver{entries: entries(), token: token, ctxErr: &ctxErr}, &scriptedAcquirer{})

	sum := d.Run(context.Background(), "https://x/list", token)

	assert.NoError(t, ctxErr)
	assert.NoError(t, sum.Err)
	assert.True(t, sum.Stopped)
	assert.Zero(t, sum.Succeeded)
}

func TestRun_TaggingFailureIsNotFatal(t *testing.T) {
	tagger := &recordingTagger{err: errors.New("id3: bad frame")}
	d, _, _, _ := newTestDriver(t, staticResolver{entries: entries()[:1]}, &scriptedAcquirer{}, WithTagger(tagger))

	sum := d.Run(context.Background(), "https://x/one", newToken(t))
	assert.Equal(t, 1, sum.Succeeded)
}

func TestDestination(t *testing.T) {
	lib := t.TempDir()
	now := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.Equal(t, filepath.Join(lib, "Song.mp3"), destination(lib, "Song", "/t/dl_a.webm", true, now))
	assert.Equal(t, filepath.Join(lib, "Song.m4a"), destination(lib, "Song", "/t/dl_a.m4a", false, now))

	require.NoError(t, os.WriteFile(filepath.Join(lib, "Song.m4a"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(lib, "Song.mp3"), []byte("x"), 0o600))
	assert.Equal(t, filepath.Join(lib, "Song_20250304050607.m4a"), destination(lib, "Song", "/t/dl_a.m4a", false, now))
	assert.Equal(t, filepath.Join(lib, "Song.mp3"), destination(lib, "Song", "/t/dl_a.mp3", true, now), "target files replace")
}

func TestRelocate_ReplacesExistingTarget(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "dl_a.mp3")
	dst := filepath.Join(dir, "Song.mp3")
	require.NoError(t, os.WriteFile(src, []byte("new"), 0o600))
	require.NoError(t, os.WriteFile(dst, []byte("old"), 0o600))

	require.NoError(t, relocate(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
	assert.NoFileExists(t, src)
}

func TestRelocate_MissingSourceFails(t *testing.T) {
	dir := t.TempDir()
	err := relocate(filepath.Join(dir, "gone.mp3"), filepath.Join(dir, "Song.mp3"))
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrRelocateFailed)
}

func TestCopyReplace(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.webm")
	dst := filepath.Join(dir, "out", "dst.webm")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o755))
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	require.NoError(t, copyReplace(src, dst))
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
