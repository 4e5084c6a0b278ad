// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playback

import (
	"bytes"
	"strings"

	"github.com/ManuGH/tunepipe/internal/media"
)

type codec int

const (
	codecUnknown codec = iota
	codecMP3
	codecWAV
)

func (c codec) String() string {
	switch c {
	case codecMP3:
		return "mp3"
	case codecWAV:
		return "wav"
	default:
		return "unknown"
	}
}

// detectCodec picks a decoder from the header, falling back to the extension.
func detectCodec(header []byte, ext string) codec {
	switch {
	case media.HasTargetSignature(header):
		return codecMP3
	case len(header) >= 12 && bytes.Equal(header[0:4], []byte("RIFF")) && bytes.Equal(header[8:12], []byte("WAVE")):
		return codecWAV
	}
	switch strings.ToLower(ext) {
	case ".mp3":
		return codecMP3
	case ".wav":
		return codecWAV
	}
	return codecUnknown
}
