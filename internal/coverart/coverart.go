// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package coverart downloads thumbnails and extracts embedded covers.
package coverart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/tunepipe/internal/log"
	"github.com/ManuGH/tunepipe/internal/platform/httpx"
	xnet "github.com/ManuGH/tunepipe/internal/platform/net"
	"github.com/bogem/id3v2/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 15 * time.Second
	maxCoverBytes  = 10 << 20
)

var (
	// ErrNoCover is returned by FromFile when the file has no picture frame.
	ErrNoCover = errors.New("no embedded cover")
	// ErrTooLarge is returned for images above the size cap.
	ErrTooLarge = errors.New("cover image too large")
	// ErrInvalidURL rejects anything but plain http(s) thumbnail URLs.
	ErrInvalidURL = errors.New("invalid cover url")
)

// Client downloads cover images. Results are cached for the life of the
// client and concurrent requests for one URL share a single fetch.
type Client struct {
	http   *http.Client
	group  singleflight.Group
	logger zerolog.Logger

	mu    sync.RWMutex
	cache map[string][]byte
}

// New returns a client with the hardened outbound HTTP client.
func New(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return NewWithHTTPClient(httpx.NewClientWithAgent(timeout, userAgent))
}

func NewWithHTTPClient(c *http.Client) *Client {
	return &Client{
		http:   c,
		logger: log.WithComponent("coverart"),
		cache:  make(map[string][]byte),
	}
}

// Download returns the image bytes at url.
func (c *Client) Download(ctx context.Context, url string) ([]byte, error) {
	if _, ok := xnet.ParseDirectHTTPURL(url); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, xnet.SanitizeURL(url))
	}

	c.mu.RLock()
	data, ok := c.cache[url]
	c.mu.RUnlock()
	if ok {
		return data, nil
	}

	v, err, shared := c.group.Do(url, func() (any, error) {
		data, err := c.fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.cache[url] = data
		c.mu.Unlock()
		return data, nil
	})
	l := log.WithContext(ctx, c.logger)
	if err != nil {
		l.Debug().Err(err).Str("url", xnet.SanitizeURL(url)).Msg("cover download failed")
		return nil, err
	}
	if shared {
		l.Debug().Str("url", xnet.SanitizeURL(url)).Msg("cover download shared")
	}
	return v.([]byte), nil
}

func (c *Client) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build cover request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cover: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch cover: unexpected status %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	if len(data) > maxCoverBytes {
		return nil, ErrTooLarge
	}
	if len(data) == 0 {
		return nil, errors.New("fetch cover: empty body")
	}
	return data, nil
}

// FromFile returns the first attached picture in path's ID3 tag and its
// MIME type.
func FromFile(path string) ([]byte, string, error) {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true, ParseFrames: []string{"Attached picture"}})
	if err != nil {
		return nil, "", fmt.Errorf("open tag: %w", err)
	}
	defer func() { _ = tag.Close() }()

	for _, f := range tag.GetFrames(tag.CommonID("Attached picture")) {
		pic, ok := f.(id3v2.PictureFrame)
		if !ok || len(pic.Picture) == 0 {
			continue
		}
		mime := pic.MimeType
		if mime == "" {
			mime = DetectMime(pic.Picture)
		}
		return pic.Picture, mime, nil
	}
	return nil, "", ErrNoCover
}

// DetectMime sniffs an image type, defaulting to JPEG.
func DetectMime(data []byte) string {
	switch ct := http.DetectContentType(data); ct {
	case "image/png", "image/gif", "image/webp", "image/jpeg":
		return ct
	default:
		return "image/jpeg"
	}
}

// Extensions are the file extensions ExtForMime can return.
var Extensions = []string{".jpg", ".png", ".gif", ".webp"}

// ExtForMime returns the file extension for an image MIME type.
func ExtForMime(mime string) string {
	switch mime {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
