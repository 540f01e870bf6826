package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oshokin/node-bin-gen/internal/logger"
)

// Entry describes a cached response body.
type Entry struct {
	// URL is the cached address.
	URL string `yaml:"url"`
	// ETag is replayed as If-None-Match.
	ETag string `yaml:"etag,omitempty"`
	// LastModified is replayed as If-Modified-Since.
	LastModified string `yaml:"last_modified,omitempty"`
	// StoredAt is when the body was written.
	StoredAt time.Time `yaml:"stored_at"`
}

// Cache persists response bodies and their validators under a directory.
// Each URL maps to a "<sha256>.yaml" metadata file and a "<sha256>.body" file.
type Cache struct {
	// dir is the cache root.
	dir string
	// mu serializes metadata writes and reads.
	mu sync.Mutex
}

// ErrNotFound is returned when a URL has no complete cache entry.
var ErrNotFound = errors.New("cache entry not found")

const (
	cacheDirPermissions  = 0o755
	cacheFilePermissions = 0o644
)

// NewCache creates a cache rooted at dir. The directory is created lazily.
func NewCache(dir string) *Cache {
	return &Cache{
		dir: filepath.Clean(dir),
	}
}

// Load returns the metadata stored for url.
func (c *Cache) Load(url string) (*Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	metaPath, bodyPath := c.paths(url)

	contents, err := os.ReadFile(metaPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read cache entry: %w", err)
	}

	if _, err = os.Stat(bodyPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("stat cached body: %w", err)
	}

	var entry Entry
	if err = yaml.Unmarshal(contents, &entry); err != nil {
		return nil, fmt.Errorf("decode cache entry: %w", err)
	}

	return &entry, nil
}

// Open returns the cached body for url.
func (c *Cache) Open(url string) (*os.File, error) {
	_, bodyPath := c.paths(url)

	return os.Open(bodyPath) //nolint:gosec // Path is derived from a hash.
}

// Tee returns a reader that copies body into the cache while it is consumed.
// The entry is committed only when body was read to EOF without write errors.
func (c *Cache) Tee(ctx context.Context, entry *Entry, body io.ReadCloser) io.ReadCloser {
	if err := os.MkdirAll(c.dir, cacheDirPermissions); err != nil {
		logger.WarnKV(ctx, "Cache directory unavailable", "dir", c.dir, "error", err)
		return body
	}

	tmp, err := os.CreateTemp(c.dir, "partial-*")
	if err != nil {
		logger.WarnKV(ctx, "Cache temp file unavailable", "dir", c.dir, "error", err)
		return body
	}

	return &teeBody{
		ctx:   ctx,
		cache: c,
		entry: entry,
		body:  body,
		tmp:   tmp,
	}
}

// commit moves a fully written temp body into place and stores the metadata.
func (c *Cache) commit(entry *Entry, tmpPath string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	metaPath, bodyPath := c.paths(entry.URL)

	entry.StoredAt = time.Now().UTC()

	data, err := yaml.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	if err = os.Rename(tmpPath, bodyPath); err != nil {
		return fmt.Errorf("store cached body: %w", err)
	}

	if err = os.WriteFile(metaPath, data, cacheFilePermissions); err != nil {
		return fmt.Errorf("write cache entry: %w", err)
	}

	return nil
}

func (c *Cache) paths(url string) (metaPath, bodyPath string) {
	sum := sha256.Sum256([]byte(url))
	key := hex.EncodeToString(sum[:])

	return filepath.Join(c.dir, key+".yaml"), filepath.Join(c.dir, key+".body")
}

// teeBody mirrors everything read from body into tmp.
type teeBody struct {
	ctx   context.Context //nolint:containedctx // Only used for logging on Close.
	cache *Cache
	entry *Entry
	body  io.ReadCloser
	tmp   *os.File
	// eof is set once body returned io.EOF.
	eof bool
	// broken is set after the first failed write to tmp.
	broken bool
}

func (t *teeBody) Read(p []byte) (int, error) {
	n, err := t.body.Read(p)
	if n > 0 && !t.broken {
		if _, writeErr := t.tmp.Write(p[:n]); writeErr != nil {
			t.broken = true
		}
	}

	if errors.Is(err, io.EOF) {
		t.eof = true
	}

	return n, err
}

func (t *teeBody) Close() error {
	err := t.body.Close()
	tmpPath := t.tmp.Name()

	if closeErr := t.tmp.Close(); closeErr != nil {
		t.broken = true
	}

	if !t.eof || t.broken {
		_ = os.Remove(tmpPath)
		return err
	}

	if commitErr := t.cache.commit(t.entry, tmpPath); commitErr != nil {
		_ = os.Remove(tmpPath)

		logger.WarnKV(t.ctx, "Unable to store cache entry", "url", t.entry.URL, "error", commitErr)
	}

	return err
}
