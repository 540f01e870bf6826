package release

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/node-bin-gen/internal/fetch"
)

// TestChannelRouting checks that every version routes to exactly one channel.
func TestChannelRouting(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"v18.16.0":                   "https://nodejs.org/dist/",
		"v20.0.0-rc.1":               "https://nodejs.org/download/rc/",
		"v21.0.0-test20230901abcdef": "https://nodejs.org/download/test/",
		"v22.0.0-rc.2-test":          "https://nodejs.org/download/rc/",
	}

	for version, prefix := range cases {
		require.Equal(t, prefix+"index.json", IndexURL("https://nodejs.org/", version), version)
		require.Equal(
			t,
			prefix+version+"/node-"+version+"-linux-x64.tar.gz",
			ArchiveURL("https://nodejs.org", version, "linux", "x64", "tar.gz"),
		)
	}

	require.Equal(t, "https://nodejs.org/dist/v18.16.0/node-v18.16.0-win-x64.zip",
		ArchiveURL("https://nodejs.org", "v18.16.0", "win", "x64", "zip"))
	require.Equal(t, "rc", ChannelFor("v20.0.0-rc.1").String())
	require.Equal(t, "stable", Stable.String())
}

// TestFind uses exact string equality rather than semver comparison.
func TestFind(t *testing.T) {
	t.Parallel()

	index := []Entry{
		{Version: "v18.16.1", Files: []string{"linux-x64"}},
		{Version: "v18.16.0", Files: []string{"darwin-arm64"}},
		{Version: "v18.16.0", Files: []string{"ignored"}},
	}

	entry, err := Find(index, "v18.16.0")
	require.NoError(t, err)
	require.Equal(t, []string{"darwin-arm64"}, entry.Files)

	_, err = Find(index, "18.16.0")
	require.ErrorIs(t, err, ErrVersionNotFound)
}

func serveIndex(t *testing.T, path, body string) *httptest.Server {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != path {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)

	return ts
}

// TestResolver_Resolve fetches the channel index and returns the matching entry.
func TestResolver_Resolve(t *testing.T) {
	t.Parallel()

	ts := serveIndex(t, "/dist/index.json",
		`[{"version":"v18.16.0","date":"2023-04-12","files":["linux-x64","headers"]}]`)

	entry, err := NewResolver(fetch.NewClient(), ts.URL).Resolve(context.Background(), "v18.16.0")
	require.NoError(t, err)
	require.Equal(t, []string{"linux-x64", "headers"}, entry.Files)
	require.False(t, entry.Guessed)
}

// TestResolver_EmptyFilesFallsBack substitutes the eleven default tokens verbatim.
func TestResolver_EmptyFilesFallsBack(t *testing.T) {
	t.Parallel()

	ts := serveIndex(t, "/download/rc/index.json", `[{"version":"v20.0.0-rc.1","files":[]}]`)

	entry, err := NewResolver(fetch.NewClient(), ts.URL).Resolve(context.Background(), "v20.0.0-rc.1")
	require.NoError(t, err)
	require.Equal(t, DefaultFiles(), entry.Files)
	require.Len(t, entry.Files, 11)
	require.True(t, entry.Guessed)
}

// TestResolver_Errors covers a missing version and a failing index fetch.
func TestResolver_Errors(t *testing.T) {
	t.Parallel()

	ts := serveIndex(t, "/dist/index.json", `[{"version":"v18.16.0","files":["linux-x64"]}]`)
	resolver := NewResolver(fetch.NewClient(), ts.URL)

	_, err := resolver.Resolve(context.Background(), "v99.0.0")
	require.ErrorIs(t, err, ErrVersionNotFound)

	// The test channel index is not served at all.
	_, err = resolver.Resolve(context.Background(), "v21.0.0-test1")
	require.ErrorIs(t, err, fetch.ErrBadStatus)
}
