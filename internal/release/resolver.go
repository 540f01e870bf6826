package release

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oshokin/node-bin-gen/internal/fetch"
	"github.com/oshokin/node-bin-gen/internal/logger"
)

// Entry is one release in the upstream index.
type Entry struct {
	// Version is the release tag, "v"-prefixed.
	Version string `json:"version"`
	// Files lists platform tokens such as "linux-x64" or "win-x64-zip".
	Files []string `json:"files"`
	// Guessed is set when Files was empty upstream and DefaultFiles was substituted.
	Guessed bool `json:"-"`
}

// ErrVersionNotFound is returned when the index has no entry for the requested version.
var ErrVersionNotFound = errors.New("no such version")

// DefaultFiles is assumed when an index entry lists no files.
// Nothing guarantees these archives exist for a given release.
func DefaultFiles() []string {
	return []string{
		"darwin-x64",
		"linux-arm64",
		"linux-armv7l",
		"linux-ppc64",
		"linux-ppc64le",
		"linux-s390x",
		"linux-x64",
		"linux-x86",
		"sunos-x64",
		"win-x64",
		"win-x86",
	}
}

// Resolver looks versions up in the upstream release index.
type Resolver struct {
	fetcher fetch.Fetcher
	baseURL string
}

// NewResolver creates a Resolver reading indexes below baseURL.
func NewResolver(fetcher fetch.Fetcher, baseURL string) *Resolver {
	return &Resolver{
		fetcher: fetcher,
		baseURL: baseURL,
	}
}

// Resolve returns the index entry whose version equals version exactly.
func (r *Resolver) Resolve(ctx context.Context, version string) (*Entry, error) {
	url := IndexURL(r.baseURL, version)

	logger.DebugKV(ctx, "Fetching release index", "url", url, "channel", ChannelFor(version))

	body, err := fetch.Open(ctx, r.fetcher, url)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = body.Close()
	}()

	var index []Entry
	if err = json.NewDecoder(body).Decode(&index); err != nil {
		return nil, fmt.Errorf("decode release index %s: %w", url, err)
	}

	entry, err := Find(index, version)
	if err != nil {
		return nil, err
	}

	if len(entry.Files) == 0 {
		logger.WarnKV(ctx, "Release index lists no files, assuming the default set", "version", version)

		entry.Files = DefaultFiles()
		entry.Guessed = true
	}

	return entry, nil
}

// Find returns a copy of the first entry matching version.
func Find(index []Entry, version string) (*Entry, error) {
	for i := range index {
		if index[i].Version == version {
			entry := index[i]
			entry.Files = append([]string(nil), entry.Files...)

			return &entry, nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrVersionNotFound, version)
}
