package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/oshokin/node-bin-gen/internal/logger"
)

// Client is an HTTP Fetcher with an optional conditional-request cache.
type Client struct {
	// httpClient performs the requests; it has no overall timeout so large
	// archives are limited only by the transport and the caller's context.
	httpClient *http.Client
	// userAgent is sent with every request.
	userAgent string
	// cache is nil when caching is disabled.
	cache *Cache
}

// Option configures a Client.
type Option func(*Client)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithCache enables the on-disk cache.
func WithCache(cache *Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

// NewClient builds a Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: new(http.Client),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	var cached *Entry

	if c.cache != nil {
		cached, err = c.cache.Load(url)

		switch {
		case err == nil:
			if cached.ETag != "" {
				req.Header.Set("If-None-Match", cached.ETag)
			}

			if cached.LastModified != "" {
				req.Header.Set("If-Modified-Since", cached.LastModified)
			}
		case errors.Is(err, ErrNotFound):
		default:
			logger.WarnKV(ctx, "Ignoring unreadable cache entry", "url", url, "error", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	result := &Response{
		URL:        url,
		StatusCode: resp.StatusCode,
		Body:       resp.Body,
	}

	if c.cache == nil {
		return result, nil
	}

	switch {
	case resp.StatusCode == http.StatusNotModified && cached != nil:
		body, openErr := c.cache.Open(url)
		if openErr != nil {
			_ = resp.Body.Close()

			return nil, fmt.Errorf("open cached body: %w", openErr)
		}

		_ = resp.Body.Close()

		logger.DebugKV(ctx, "Serving from cache", "url", url)

		result.Body = body
		result.FromCache = true
	case resp.StatusCode == http.StatusOK:
		entry := &Entry{
			URL:          url,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
		}

		if entry.ETag != "" || entry.LastModified != "" {
			result.Body = c.cache.Tee(ctx, entry, resp.Body)
		}
	}

	return result, nil
}
