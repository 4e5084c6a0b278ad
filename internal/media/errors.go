// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every failure is caught at the narrowest scope and turned
// into a skip/continue decision; none of these is fatal to the process.
var (
	ErrResolutionFailed = errors.New("resolution failed")
	ErrFetchFailed      = errors.New("fetch failed")
	ErrEmptyFile        = errors.New("empty file")
	ErrNormalizeFailed  = errors.New("normalize failed")
	ErrRelocateFailed   = errors.New("relocate failed")
	ErrHandleLoadFailed = errors.New("handle load failed")
)

var kinds = []struct {
	err  error
	kind string
}{
	{ErrResolutionFailed, "resolution_failed"},
	{ErrFetchFailed, "fetch_failed"},
	{ErrEmptyFile, "empty_file"},
	{ErrNormalizeFailed, "normalize_failed"},
	{ErrRelocateFailed, "relocate_failed"},
	{ErrHandleLoadFailed, "handle_load_failed"},
}

// Error carries the operation, the taxonomy kind and the file involved.
type Error struct {
	Op   string // e.g. "acquire", "relocate"
	Kind error  // one of the Err* sentinels
	Path string // file name involved, if any
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if e.Path != "" {
		msg += " (" + e.Path + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the taxonomy sentinel so errors.Is(err, ErrFetchFailed) works.
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds a taxonomy error.
func NewError(op string, kind error, path string, cause error) *Error {
	return &Error{Op: op, Kind: kind, Path: path, Err: cause}
}

// Errorf is NewError with a formatted cause.
func Errorf(op string, kind error, path, format string, args ...any) *Error {
	return &Error{Op: op, Kind: kind, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the taxonomy label for logs and metrics, or "error".
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return "error"
}
