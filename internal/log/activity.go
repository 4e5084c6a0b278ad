// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

import (
	"fmt"
	"os"
	"path/filepath"
)

// OpenActivityLog opens (or creates) the persistent append-only activity log.
// The caller owns the returned file and closes it on shutdown.
func OpenActivityLog(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("activity log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create activity log dir: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("open activity log: %w", err)
	}
	return f, nil
}
