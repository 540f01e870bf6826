package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
)

const executablePermissions = 0o755

// ZipEntry pulls a single entry out of a zip archive.
// Zip needs random access, so the stream is spooled to a temporary file first.
type ZipEntry struct {
	// entry is the slash-separated name inside the archive.
	entry string
	// into is the subdirectory of the destination receiving the flattened entry.
	into string
	// tempDir is where the archive is spooled; empty means os.TempDir.
	tempDir string
}

// NewZipEntry extracts entry into dest/into, dropping its directory components.
func NewZipEntry(entry, into string) *ZipEntry {
	return &ZipEntry{
		entry: entry,
		into:  into,
	}
}

// WithTempDir overrides the spool directory.
func (z *ZipEntry) WithTempDir(dir string) *ZipEntry {
	z.tempDir = dir
	return z
}

// Extract implements Extractor.
func (z *ZipEntry) Extract(ctx context.Context, r io.Reader, dest string) error {
	if err := z.extract(ctx, r, dest); err != nil {
		return &Error{Format: Zip, Err: err}
	}

	return nil
}

func (z *ZipEntry) extract(ctx context.Context, r io.Reader, dest string) error {
	spool, err := os.CreateTemp(z.tempDir, "node-bin-gen-*.zip")
	if err != nil {
		return fmt.Errorf("create spool file: %w", err)
	}

	spoolPath := spool.Name()

	defer func() {
		_ = os.Remove(spoolPath)
	}()

	_, err = io.Copy(spool, &contextReader{ctx: ctx, r: r})
	if closeErr := spool.Close(); err == nil {
		err = closeErr
	}

	if err != nil {
		return fmt.Errorf("spool archive: %w", err)
	}

	archive, err := zip.OpenReader(spoolPath)
	if err != nil {
		return fmt.Errorf("open zip: %w", err)
	}

	defer func() {
		_ = archive.Close()
	}()

	for _, file := range archive.File {
		if file.Name != z.entry {
			continue
		}

		return z.write(file, dest)
	}

	return fmt.Errorf("%w: %s", ErrEntryNotFound, z.entry)
}

func (z *ZipEntry) write(file *zip.File, dest string) error {
	target := filepath.Join(dest, z.into, path.Base(file.Name))

	in, err := file.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", file.Name, err)
	}

	defer func() {
		_ = in.Close()
	}()

	return writeFile(target, in, executablePermissions)
}
