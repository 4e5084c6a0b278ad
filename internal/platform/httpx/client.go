package httpx

import (
	"net"
	"net/http"
	"time"
)

const (
	defaultClientTimeout         = 15 * time.Second
	defaultDialTimeout           = 5 * time.Second
	defaultResponseHeaderTimeout = 10 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 8
	defaultMaxIdleConnsPerHost   = 2

	// DefaultUserAgent is sent when the caller does not set one. Image CDNs
	// reject requests without a browser-like agent.
	DefaultUserAgent = "Mozilla/5.0"
)

// NewClient returns a hardened HTTP client for outbound fetches (cover art).
func NewClient(timeout time.Duration) *http.Client {
	return NewClientWithAgent(timeout, DefaultUserAgent)
}

// NewClientWithAgent is NewClient with an explicit User-Agent header.
func NewClientWithAgent(timeout time.Duration, userAgent string) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	dialTimeout := timeout
	if dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}

	responseHeaderTimeout := timeout
	if responseHeaderTimeout > defaultResponseHeaderTimeout {
		responseHeaderTimeout = defaultResponseHeaderTimeout
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: responseHeaderTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: &agentTransport{base: transport, userAgent: userAgent},
	}
}

// agentTransport sets User-Agent on requests that do not carry one.
type agentTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *agentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") != "" {
		return t.base.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

// Base returns the underlying *http.Transport of a client built here.
func Base(c *http.Client) (*http.Transport, bool) {
	at, ok := c.Transport.(*agentTransport)
	if !ok {
		return nil, false
	}
	tr, ok := at.base.(*http.Transport)
	return tr, ok
}
