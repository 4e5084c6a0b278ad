// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package net holds URL checks shared by the downloader and the cover client.
package net

import (
	"fmt"
	"net/url"
	"strings"
)

// SanitizeURL removes user info and query parameters for safe logging.
func SanitizeURL(rawURL string) string {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return "invalid-url-redacted"
	}
	parsedURL.User = nil
	parsedURL.RawQuery = ""
	return parsedURL.String()
}

// ParseDirectHTTPURL validates if a string is a direct HTTP/HTTPS URL:
// http or https scheme, a host, no credentials and no fragment.
func ParseDirectHTTPURL(s string) (*url.URL, bool) {
	s = strings.TrimSpace(s)
	u, err := url.Parse(s)
	if err != nil {
		return nil, false
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, false
	}
	if u.Host == "" {
		return nil, false
	}
	if u.User != nil {
		return nil, false
	}
	if u.Fragment != "" {
		return nil, false
	}
	return u, true
}

var proxySchemes = map[string]bool{
	"http": true, "https": true,
	"socks4": true, "socks4a": true, "socks5": true, "socks5h": true,
}

// ValidateProxyURL checks a downloader proxy setting. Credentials are
// allowed; paths other than "/" and query strings are not.
func ValidateProxyURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("empty proxy url")
	}
	if !strings.Contains(s, "://") {
		return fmt.Errorf("proxy %q: missing scheme", SanitizeURL(s))
	}
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("proxy: %w", err)
	}
	if !proxySchemes[strings.ToLower(u.Scheme)] {
		return fmt.Errorf("proxy scheme %q not supported", u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("proxy %q: empty host", SanitizeURL(s))
	}
	if (u.Path != "" && u.Path != "/") || u.RawQuery != "" {
		return fmt.Errorf("proxy %q: unexpected path or query", SanitizeURL(s))
	}
	return nil
}
