// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import (
	"strings"
	"unicode"
)

const maxFilenameRunes = 180

// SanitizeFilename converts a display name into a filesystem-safe base name.
// Letters, digits, space and "._-()" survive, everything else becomes '_'.
// Example: `AC/DC - Back: In Black?` → `AC_DC - Back_ In Black_`
func SanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case strings.ContainsRune(" ._-()", r):
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	s := strings.TrimSpace(b.String())
	// A leading dot would hide the file, and ".." must never survive as a name.
	s = strings.TrimLeft(s, ".")
	s = strings.TrimSpace(s)

	if runes := []rune(s); len(runes) > maxFilenameRunes {
		s = strings.TrimSpace(string(runes[:maxFilenameRunes]))
	}
	if s == "" {
		return "untitled"
	}
	return s
}
