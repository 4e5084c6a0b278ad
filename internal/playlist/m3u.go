// SPDX-License-Identifier: MIT
package playlist

import (
	"bytes"
	"fmt"
	"io"
	"strings"
)

// Item is one playlist line. Seconds is -1 when the length is unknown.
type Item struct {
	Title   string
	Seconds int
	Path    string
}

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// WriteM3U writes an extended M3U playlist. Paths are written as given;
// callers pass paths relative to the playlist location when they want a
// portable file.
func WriteM3U(w io.Writer, items []Item) error {
	buf := &bytes.Buffer{}
	buf.WriteString("#EXTM3U\n")
	for _, it := range items {
		secs := it.Seconds
		if secs < 0 {
			secs = -1
		}
		buf.WriteString(fmt.Sprintf("#EXTINF:%d,%s\n", secs, lineBreaks.Replace(it.Title)))
		buf.WriteString(lineBreaks.Replace(it.Path) + "\n")
	}
	_, err := io.Copy(w, buf)
	return err
}
