package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// Response is the part of an HTTP response the packaging pipeline cares about.
type Response struct {
	// URL is the requested address.
	URL string
	// StatusCode is the upstream status, 304 when the body is served from cache.
	StatusCode int
	// Body streams the payload; callers must close it.
	Body io.ReadCloser
	// FromCache reports whether Body comes from the local cache.
	FromCache bool
}

// Fetcher issues GET requests.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

// ErrBadStatus is matched by every *StatusError.
var ErrBadStatus = errors.New("unexpected http status")

// StatusError reports a response whose status is neither 200 nor 304.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("not ok: fetching %q got status code %d", e.URL, e.StatusCode)
}

// Unwrap lets errors.Is match ErrBadStatus.
func (e *StatusError) Unwrap() error {
	return ErrBadStatus
}

// Open fetches url and returns its body when the status is 200 or 304.
func Open(ctx context.Context, f Fetcher, url string) (io.ReadCloser, error) {
	resp, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotModified {
		_ = resp.Body.Close()

		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	return resp.Body, nil
}
