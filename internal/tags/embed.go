// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package tags writes ID3v2.3 metadata into finished library files.
package tags

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ManuGH/tunepipe/internal/coverart"
	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/media"
	"github.com/ManuGH/tunepipe/internal/metrics"
	"github.com/bogem/id3v2/v2"
	"github.com/rs/zerolog"
)

// ErrNotTargetFormat is returned when the file does not carry the MP3
// signature. Such files are left untouched.
var ErrNotTargetFormat = errors.New("file is not in target format")

const coverDescription = "Cover"

// CoverSource fetches thumbnail bytes.
type CoverSource interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

type Embedder struct {
	covers CoverSource
	logger zerolog.Logger
}

// New returns an embedder. covers may be nil to skip artwork.
func New(covers CoverSource) *Embedder {
	return &Embedder{covers: covers, logger: log.WithComponent("tags")}
}

// Embed sets title, artist and album on path and, when the entry has a
// thumbnail that downloads, replaces the front cover. A failed cover
// download does not fail the embed.
func (e *Embedder) Embed(ctx context.Context, path string, entry media.Entry) error {
	logger := log.WithContext(ctx, e.logger).With().Str("path", path).Logger()

	if !media.IsTargetFormat(path) {
		metrics.IncTagWrite("skipped")
		return ErrNotTargetFormat
	}

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		metrics.IncTagWrite("failed")
		return fmt.Errorf("open tag %s: %w", path, err)
	}
	defer func() { _ = tag.Close() }()

	tag.SetVersion(3)
	tag.SetDefaultEncoding(id3v2.EncodingUTF16)

	tag.SetTitle(titleFor(path, entry))
	tag.SetArtist(entry.Artist())
	tag.SetAlbum(entry.AlbumOrDefault())

	withCover := false
	if e.covers != nil && entry.ThumbnailURL != "" {
		data, err := e.covers.Download(ctx, entry.ThumbnailURL)
		switch {
		case err != nil:
			logger.Warn().Err(err).Str("url", entry.ThumbnailURL).Msg("cover art unavailable, tagging without it")
		default:
			tag.DeleteFrames(tag.CommonID("Attached picture"))
			tag.AddAttachedPicture(id3v2.PictureFrame{
				Encoding:    id3v2.EncodingISO,
				MimeType:    coverart.DetectMime(data),
				PictureType: id3v2.PTFrontCover,
				Description: coverDescription,
				Picture:     data,
			})
			withCover = true
		}
	}

	if err := tag.Save(); err != nil {
		metrics.IncTagWrite("failed")
		return fmt.Errorf("save tag %s: %w", path, err)
	}

	if withCover {
		metrics.IncTagWrite("with_cover")
	} else {
		metrics.IncTagWrite("ok")
	}
	logger.Debug().Bool("cover", withCover).Msg("tags written")
	return nil
}

func titleFor(path string, entry media.Entry) string {
	if t := strings.TrimSpace(entry.Title); t != "" {
		return t
	}
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
