package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format is an upstream archive format; its value doubles as the file extension.
type Format string

const (
	// TarGz is a gzip-compressed tarball.
	TarGz Format = "tar.gz"
	// TarXz is an xz-compressed tarball.
	TarXz Format = "tar.xz"
	// Zip is a zip archive, used for Windows builds.
	Zip Format = "zip"
)

// Ext returns the file extension without the leading dot.
func (f Format) Ext() string {
	return string(f)
}

// Extractor unpacks an archive stream into a destination directory.
type Extractor interface {
	Extract(ctx context.Context, r io.Reader, dest string) error
}

var (
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
	// ErrEntryNotFound is returned when a requested entry is missing from the archive.
	ErrEntryNotFound = errors.New("archive entry not found")
	// ErrUnknownFormat is returned by ParseFormat for unsupported values.
	ErrUnknownFormat = errors.New("unknown archive format")
)

// Error wraps any failure that happens while unpacking.
type Error struct {
	Format Format
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s archive: %v", e.Format, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case TarGz, TarXz, Zip:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// secureJoin joins a slash-separated relative name onto root and refuses escapes.
func secureJoin(root, name string) (string, error) {
	if name == "" || strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	target := filepath.Join(root, filepath.FromSlash(name))
	if target != root && !strings.HasPrefix(target, root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %q", ErrUnsafePath, name)
	}

	return target, nil
}

// contextReader fails reads once ctx is done, so long copies stop on cancellation.
type contextReader struct {
	ctx context.Context //nolint:containedctx // Reader adapters have no other way to observe cancellation.
	r   io.Reader
}

func (c *contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}

	return c.r.Read(p)
}
