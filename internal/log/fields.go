// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRunID   = "run_id"
	FieldJobID   = "job_id"
	FieldEntryID = "entry_id"

	// Process / pipeline fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldOp        = "op"
	FieldErrorKind = "error_kind"
	FieldIndex     = "index"
	FieldTotal     = "total"

	// Media fields
	FieldTitle     = "title"
	FieldUploader  = "uploader"
	FieldSourceURL = "source_url"
	FieldDuration  = "duration"
	FieldDurSource = "duration_source"
	FieldSizeBytes = "size_bytes"
	FieldTarget    = "target_format"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldOutcome  = "outcome"

	// Path / URL fields
	FieldPath         = "path"
	FieldFile         = "file"
	FieldFinalPath    = "final_path"
	FieldTempDir      = "temp_dir"
	FieldPlaylistPath = "playlist_path"
)
