package fetch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// newETagServer serves body with a fixed ETag and honours If-None-Match.
func newETagServer(t *testing.T, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)

		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		w.Header().Set("ETag", `"v1"`)
		_, _ = io.WriteString(w, body)
	}))
	t.Cleanup(ts.Close)

	return ts
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()

	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	return string(data)
}

// TestOpen_StatusPolicy accepts 200 and rejects everything but 304 with a *StatusError.
func TestOpen_StatusPolicy(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = io.WriteString(w, "ok")
		case "/not-modified":
			w.WriteHeader(http.StatusNotModified)
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	client := NewClient(WithUserAgent("node-bin-gen/test"))
	ctx := context.Background()

	body, err := Open(ctx, client, ts.URL+"/ok")
	require.NoError(t, err)
	require.Equal(t, "ok", readAll(t, body))

	body, err = Open(ctx, client, ts.URL+"/not-modified")
	require.NoError(t, err)
	require.NoError(t, body.Close())

	_, err = Open(ctx, client, ts.URL+"/missing")
	require.ErrorIs(t, err, ErrBadStatus)

	var statusErr *StatusError

	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusNotFound, statusErr.StatusCode)
	require.Equal(t, ts.URL+"/missing", statusErr.URL)
	require.Contains(t, err.Error(), "404")
}

// TestClient_ServesNotModifiedFromCache stores a body on first fetch and replays it on 304.
func TestClient_ServesNotModifiedFromCache(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	ts := newETagServer(t, "payload", &hits)
	client := NewClient(WithCache(NewCache(t.TempDir())))
	ctx := context.Background()

	first, err := client.Fetch(ctx, ts.URL+"/index.json")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, first.StatusCode)
	require.False(t, first.FromCache)
	require.Equal(t, "payload", readAll(t, first.Body))

	second, err := client.Fetch(ctx, ts.URL+"/index.json")
	require.NoError(t, err)
	require.Equal(t, http.StatusNotModified, second.StatusCode)
	require.True(t, second.FromCache)
	require.Equal(t, "payload", readAll(t, second.Body))
	require.EqualValues(t, 2, hits.Load())
}

// TestClient_PartialReadIsNotCached ensures a body closed before EOF leaves no entry behind.
func TestClient_PartialReadIsNotCached(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32

	ts := newETagServer(t, "a body that is never fully read", &hits)
	cache := NewCache(t.TempDir())
	client := NewClient(WithCache(cache))

	resp, err := client.Fetch(context.Background(), ts.URL+"/archive.tar.gz")
	require.NoError(t, err)

	buf := make([]byte, 4)
	_, err = resp.Body.Read(buf)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	_, err = cache.Load(ts.URL + "/archive.tar.gz")
	require.ErrorIs(t, err, ErrNotFound)
}

// TestClient_NoValidatorsNoCache skips caching when the server sends no validators.
func TestClient_NoValidatorsNoCache(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "fresh")
	}))
	defer ts.Close()

	cache := NewCache(t.TempDir())
	client := NewClient(WithCache(cache))

	resp, err := client.Fetch(context.Background(), ts.URL)
	require.NoError(t, err)
	require.Equal(t, "fresh", readAll(t, resp.Body))

	_, err = cache.Load(ts.URL)
	require.ErrorIs(t, err, ErrNotFound)
}
