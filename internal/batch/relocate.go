// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package batch

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/google/renameio/v2"
)

const collisionLayout = "20060102150405"

// destination computes where an acquired file goes in the library.
// Target-format files always get the fixed extension and replace an existing
// file of the same name. Other files keep their extension and get a
// timestamp suffix instead of overwriting.
func destination(libraryDir, name, src string, target bool, now time.Time) string {
	if target {
		return filepath.Join(libraryDir, name+media.TargetExt)
	}
	ext := filepath.Ext(src)
	dst := filepath.Join(libraryDir, name+ext)
	if _, err := os.Lstat(dst); err == nil {
		dst = filepath.Join(libraryDir, name+"_"+now.Format(collisionLayout)+ext)
	}
	return dst
}

// relocate moves src to dst. A failed rename (typically across filesystems)
// falls back to a durable copy that atomically replaces dst.
func relocate(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyReplace(src, dst); err != nil {
		return media.NewError("relocate", media.ErrRelocateFailed, filepath.Base(dst), err)
	}
	if err := os.Remove(src); err != nil && !os.IsNotExist(err) {
		return media.NewError("relocate", media.ErrRelocateFailed, filepath.Base(src), fmt.Errorf("remove source after copy: %w", err))
	}
	return nil
}

func copyReplace(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	pendingFile, err := renameio.NewPendingFile(dst, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending file: %w", err)
	}
	defer func() { _ = pendingFile.Cleanup() }()

	if _, err := io.Copy(pendingFile, in); err != nil {
		return fmt.Errorf("copy data: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace: %w", err)
	}
	return nil
}
