package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

const (
	dirPermissions = 0o755
	// ownerWrite keeps extracted entries writable so re-runs can delete them.
	ownerWrite = 0o200
)

// Tar streams a compressed tarball straight into the destination directory.
// The archive is never written to disk as a whole.
type Tar struct {
	format          Format
	stripComponents int
	decompress      func(io.Reader) (io.Reader, error)
}

// NewTarGz returns a gzip tarball extractor dropping the first strip path components.
func NewTarGz(strip int) *Tar {
	return &Tar{
		format:          TarGz,
		stripComponents: strip,
		decompress: func(r io.Reader) (io.Reader, error) {
			return gzip.NewReader(r)
		},
	}
}

// NewTarXz returns an xz tarball extractor dropping the first strip path components.
func NewTarXz(strip int) *Tar {
	return &Tar{
		format:          TarXz,
		stripComponents: strip,
		decompress: func(r io.Reader) (io.Reader, error) {
			return xz.NewReader(r)
		},
	}
}

// Extract implements Extractor.
func (t *Tar) Extract(ctx context.Context, r io.Reader, dest string) error {
	if err := t.extract(ctx, r, dest); err != nil {
		return &Error{Format: t.format, Err: err}
	}

	return nil
}

func (t *Tar) extract(ctx context.Context, r io.Reader, dest string) error {
	root, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("resolve destination: %w", err)
	}

	if err = os.MkdirAll(root, dirPermissions); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	decompressed, err := t.decompress(&contextReader{ctx: ctx, r: r})
	if err != nil {
		return fmt.Errorf("open decompressor: %w", err)
	}

	tr := tar.NewReader(decompressed)

	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return drain(decompressed, r)
		}

		if err != nil {
			return fmt.Errorf("read tar header: %w", err)
		}

		name, ok := stripComponents(hdr.Name, t.stripComponents)
		if !ok {
			continue
		}

		target, err := secureJoin(root, name)
		if err != nil {
			return err
		}

		if err = noSymlinkParents(root, target); err != nil {
			return err
		}

		if err = writeEntry(root, target, hdr, tr, t.stripComponents); err != nil {
			return fmt.Errorf("%s: %w", hdr.Name, err)
		}
	}
}

// drain consumes whatever follows the end-of-archive marker, leaving every reader at EOF.
func drain(readers ...io.Reader) error {
	for _, r := range readers {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return fmt.Errorf("drain archive: %w", err)
		}
	}

	return nil
}

func writeEntry(root, target string, hdr *tar.Header, r io.Reader, strip int) error {
	mode := hdr.FileInfo().Mode().Perm() | ownerWrite

	switch hdr.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0o100)
	case tar.TypeReg:
		return writeFile(target, r, mode)
	case tar.TypeSymlink:
		// Relative links must still resolve inside the destination.
		linked := path.Join(path.Dir(filepath.ToSlash(mustRel(root, target))), hdr.Linkname)
		if path.IsAbs(hdr.Linkname) || linked == ".." || strings.HasPrefix(linked, "../") {
			return fmt.Errorf("%w: symlink to %q", ErrUnsafePath, hdr.Linkname)
		}

		if err := replaceable(target); err != nil {
			return err
		}

		return os.Symlink(hdr.Linkname, target)
	case tar.TypeLink:
		name, ok := stripComponents(hdr.Linkname, strip)
		if !ok {
			return fmt.Errorf("%w: hard link to %q", ErrUnsafePath, hdr.Linkname)
		}

		source, err := secureJoin(root, name)
		if err != nil {
			return err
		}

		if err = noSymlinkParents(root, source); err != nil {
			return err
		}

		if err = replaceable(target); err != nil {
			return err
		}

		return os.Link(source, target)
	default:
		return nil
	}
}

// noSymlinkParents refuses targets whose path below root goes through a symlink
// created by an earlier entry.
func noSymlinkParents(root, target string) error {
	rel, err := filepath.Rel(root, filepath.Dir(target))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q", ErrUnsafePath, target)
	}

	if rel == "." {
		return nil
	}

	current := root

	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		current = filepath.Join(current, part)

		info, err := os.Lstat(current)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}

		if err != nil {
			return err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %q goes through symlink %q", ErrUnsafePath, mustRel(root, target), mustRel(root, current))
		}
	}

	return nil
}

func writeFile(target string, r io.Reader, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}

	// A symlink left at target by an earlier entry is replaced, never followed.
	if info, err := os.Lstat(target); err == nil && info.Mode()&os.ModeSymlink != 0 {
		if err = os.Remove(target); err != nil {
			return err
		}
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode) //nolint:gosec // Target passed secureJoin.
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, r); err != nil {
		_ = out.Close()
		return err
	}

	return out.Close()
}

// replaceable prepares target for a link: parent exists, old entry is gone.
func replaceable(target string) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return err
	}

	if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	return nil
}

// stripComponents drops the first n elements of a slash-separated tar name.
// It reports false when nothing is left.
func stripComponents(name string, n int) (string, bool) {
	name = strings.TrimPrefix(path.Clean("/"+name), "/")
	if name == "" {
		return "", false
	}

	parts := strings.Split(name, "/")
	if len(parts) <= n {
		return "", false
	}

	return strings.Join(parts[n:], "/"), true
}

func mustRel(root, target string) string {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return target
	}

	return rel
}
