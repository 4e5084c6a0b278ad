// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"io"
	"os"
)

// HasTargetSignature reports whether header looks like MP3: an ID3v2 tag or an
// MPEG audio frame sync (11 set bits). The file extension is never consulted.
func HasTargetSignature(header []byte) bool {
	if len(header) >= 3 && header[0] == 'I' && header[1] == 'D' && header[2] == '3' {
		return true
	}
	if len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0 {
		// Layer bits 00 are reserved; ADTS AAC shares the sync word with layer 00.
		return header[1]&0x06 != 0
	}
	return false
}

// IsTargetFormat reads the first bytes of path and applies HasTargetSignature.
// Unreadable files are reported as non-conforming.
func IsTargetFormat(path string) bool {
	// #nosec G304 -- paths come from the pipeline's own temp and library dirs
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	header := make([]byte, 4)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF {
		return false
	}
	return HasTargetSignature(header[:n])
}
