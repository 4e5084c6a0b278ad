// SPDX-License-Identifier: MIT
package playlist

import (
	"bytes"
	"strings"
	"testing"
)

// FuzzWriteM3U checks that arbitrary titles and paths never break the
// two-lines-per-item layout.
func FuzzWriteM3U(f *testing.F) {
	f.Add("Some Band - Song", 215, "Some Band - Song.mp3")
	f.Add("Test & <Special>", 0, "a b.webm")
	f.Add("", -1, "")
	f.Add("Unicode Тест\r\nsecond", 42, "dir/файл.mp3")

	f.Fuzz(func(t *testing.T, title string, seconds int, path string) {
		var buf bytes.Buffer
		if err := WriteM3U(&buf, []Item{{Title: title, Seconds: seconds, Path: path}}); err != nil {
			t.Fatalf("WriteM3U failed: %v", err)
		}

		output := buf.String()
		if !strings.HasPrefix(output, "#EXTM3U\n") {
			t.Fatalf("output doesn't start with #EXTM3U: %q", output)
		}
		if got := strings.Count(output, "\n"); got != 3 {
			t.Fatalf("expected 3 lines, got %d: %q", got, output)
		}
		if !bytes.Contains(buf.Bytes(), []byte("#EXTINF:")) {
			t.Error("output missing #EXTINF")
		}
	})
}
