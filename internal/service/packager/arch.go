package packager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/oshokin/node-bin-gen/internal/archive"
	"github.com/oshokin/node-bin-gen/internal/fetch"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/pkgjson"
	"github.com/oshokin/node-bin-gen/internal/platform"
	"github.com/oshokin/node-bin-gen/internal/release"
)

const (
	// DefaultDirMode is used for every package directory.
	DefaultDirMode os.FileMode = 0o755

	description = "node"
	license     = "MIT"
	access      = "public"
)

// ErrGuessedTarget marks fetch failures of targets the release index never listed.
var ErrGuessedTarget = errors.New("target was assumed, not listed in the release index")

// archDir is the output directory of target.
func (p *packager) archDir(target platform.Target) string {
	return filepath.Join(p.cfg.OutputDir, p.cfg.PackageName+"-"+target.Key())
}

// archManifest describes the package of one target.
func (p *packager) archManifest(target platform.Target) *pkgjson.ArchManifest {
	executable := platform.Executable(target.OS)

	return &pkgjson.ArchManifest{
		Name:          p.cfg.ScopePrefix() + p.cfg.PackageName + "-" + target.Key(),
		Version:       p.packageVersion,
		Description:   description,
		Bin:           pkgjson.Bin{Node: executable},
		Files:         []string{executable, "share", "include", "*.md", "LICENSE"},
		OS:            []string{platform.PackagePlatform(target.OS)},
		CPU:           []string{platform.PackageArch(target.OS, target.CPU)},
		PublishConfig: pkgjson.PublishConfig{Access: access},
		License:       license,
	}
}

// buildArch downloads and unpacks the archive of target into a fresh directory
// and writes its manifest.
func (p *packager) buildArch(ctx context.Context, target platform.Target) (*pkgjson.ArchManifest, error) {
	ctx = logger.WithKV(ctx, "target", target.Key())
	dir := p.archDir(target)
	manifest := p.archManifest(target)

	logger.DebugKV(ctx, "Recreating package directory", "dir", dir)

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("remove %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	url := release.ArchiveURL(p.cfg.DistURL, p.version, target.OS, target.CPU, target.Format.Ext())

	logger.InfoKV(ctx, "Fetching archive", "url", url)

	body, err := fetch.Open(ctx, p.fetcher, url)
	if err != nil {
		if target.Guessed {
			return nil, fmt.Errorf("%s: %w: %w", target.Key(), ErrGuessedTarget, err)
		}

		return nil, fmt.Errorf("%s: %w", target.Key(), err)
	}

	defer func() {
		_ = body.Close()
	}()

	logger.DebugKV(ctx, "Unpacking archive", "dir", dir, "format", target.Format)

	if err = p.extractor(target).Extract(ctx, body, dir); err != nil {
		return nil, fmt.Errorf("%s: %w", target.Key(), err)
	}

	if err = pkgjson.Write(dir, manifest); err != nil {
		return nil, fmt.Errorf("%s: %w", target.Key(), err)
	}

	p.warnUnmatchedFiles(ctx, dir, manifest.Files)

	logger.InfoKV(ctx, "Architecture package written", "name", manifest.Name, "dir", dir)

	return manifest, nil
}

// extractor picks the archive handler of target.
//
//nolint:ireturn // Callers only need the Extractor behaviour.
func (p *packager) extractor(target platform.Target) archive.Extractor {
	switch target.Format {
	case archive.Zip:
		entry := release.ArchiveName(p.version, target.OS, target.CPU) + "/node.exe"
		return archive.NewZipEntry(entry, "bin")
	case archive.TarXz:
		return archive.NewTarXz(1)
	default:
		return archive.NewTarGz(1)
	}
}

// warnUnmatchedFiles logs every "files" pattern that matches nothing in dir.
func (p *packager) warnUnmatchedFiles(ctx context.Context, dir string, patterns []string) {
	fsys := os.DirFS(dir)

	for _, pattern := range patterns {
		matches, err := doublestar.Glob(fsys, pattern)
		if err != nil || len(matches) == 0 {
			logger.WarnKV(ctx, "Packaged files pattern matches nothing", "pattern", pattern, "dir", dir)
		}
	}
}
