package packager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
	"golang.org/x/sync/errgroup"

	"github.com/oshokin/node-bin-gen/internal/archive"
	"github.com/oshokin/node-bin-gen/internal/config"
	"github.com/oshokin/node-bin-gen/internal/fetch"
	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/platform"
	"github.com/oshokin/node-bin-gen/internal/release"
	"github.com/oshokin/node-bin-gen/internal/version"
)

// Options contains inputs for the packager entry point.
type Options struct {
	// ConfigPath is an optional path to the settings file (defaults to node-bin-gen.yaml).
	ConfigPath string
	// Version is the release to package; a missing "v" prefix is added.
	Version string
	// Prerelease is appended to the published package versions as "-<prerelease>".
	Prerelease string
	// SkipBinaries skips the release index and builds no arch package unless Only is set.
	SkipBinaries bool
	// Only builds just this platform token, ignoring the index file list.
	Only string
	// Scope overrides the configured npm scope.
	Scope string
	// PackageName overrides the configured package name.
	PackageName string
	// OutputDir overrides the configured output directory.
	OutputDir string
}

// packager holds everything a single packaging run needs.
// Callers go through Run, which validates the options first.
type packager struct {
	// cfg holds the validated settings with command-line overrides applied.
	cfg *config.Config
	// opts are the caller's inputs.
	opts *Options
	// fetcher downloads the release index and archives.
	fetcher fetch.Fetcher
	// version is the "v"-prefixed upstream release tag.
	version string
	// packageVersion is the npm version shared by every package produced.
	packageVersion string
}

var (
	// errVersionRequired is returned when no version is provided.
	errVersionRequired = errors.New("version must be provided")
	// errInvalidVersion is returned when the package version is not valid semver.
	errInvalidVersion = errors.New("invalid package version")
)

// Run executes the packaging workflow.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "node-bin-gen")

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	p, err := newPackager(cfg, opts)
	if err != nil {
		return fmt.Errorf("initialize packager: %w", err)
	}

	if err = p.Run(ctx); err != nil {
		return fmt.Errorf("packager failed: %w", err)
	}

	logger.Info(ctx, "Packager completed successfully")

	return nil
}

// loadConfig reads the optional settings file and applies command-line overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.ConfigPath)
	if err != nil {
		return nil, err
	}

	if opts.Scope != "" {
		cfg.Scope = opts.Scope
	}

	if opts.PackageName != "" {
		cfg.PackageName = opts.PackageName
	}

	if opts.OutputDir != "" {
		cfg.OutputDir = opts.OutputDir
	}

	if err = config.Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newPackager validates the version inputs and wires the fetch layer.
func newPackager(cfg *config.Config, opts *Options) (*packager, error) {
	tag := NormalizeVersion(opts.Version)
	if tag == "" {
		return nil, errVersionRequired
	}

	packageVersion, err := PackageVersion(tag, opts.Prerelease)
	if err != nil {
		return nil, err
	}

	clientOptions := []fetch.Option{
		fetch.WithUserAgent(version.UserAgent(cfg.UserAgent)),
	}

	if cfg.CacheDir != config.CacheDisabled {
		clientOptions = append(clientOptions, fetch.WithCache(fetch.NewCache(cfg.CacheDir)))
	}

	return &packager{
		cfg:            cfg,
		opts:           opts,
		fetcher:        fetch.NewClient(clientOptions...),
		version:        tag,
		packageVersion: packageVersion,
	}, nil
}

// NormalizeVersion adds the "v" prefix used by upstream tags.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.HasPrefix(v, "v") {
		return v
	}

	return "v" + v
}

// PackageVersion turns an upstream tag and optional prerelease into an npm version.
func PackageVersion(tag, prerelease string) (string, error) {
	v := strings.TrimPrefix(tag, "v")
	if prerelease != "" {
		v += "-" + prerelease
	}

	if _, err := semver.StrictNewVersion(v); err != nil {
		return "", fmt.Errorf("%w %q: %w", errInvalidVersion, v, err)
	}

	return v, nil
}

// Run resolves the targets, builds every arch package and then the metapackage.
func (p *packager) Run(ctx context.Context) error {
	ctx = logger.WithKV(ctx, "version", p.version)

	files, guessed, err := p.resolveFiles(ctx)
	if err != nil {
		return err
	}

	plan, err := platform.NewPlan(files, p.opts.Only, archive.Format(p.cfg.TarballFormat), guessed)
	if err != nil {
		return err
	}

	if len(plan.Excluded) > 0 {
		logger.DebugKV(ctx, "Skipping non-runtime archives", "tokens", plan.Excluded)
	}

	if len(plan.Malformed) > 0 {
		logger.WarnKV(ctx, "Skipping malformed platform tokens", "tokens", plan.Malformed)
	}

	if err = p.buildArchPackages(ctx, plan.Targets); err != nil {
		return err
	}

	meta, err := p.buildMeta(ctx)
	if err != nil {
		return fmt.Errorf("build metapackage: %w", err)
	}

	logger.InfoKV(ctx, "Packages written",
		"metapackage", meta.Name,
		"package_version", meta.Version,
		"arch_packages", len(plan.Targets),
		"output_dir", p.cfg.OutputDir)

	return nil
}

// resolveFiles returns the platform tokens of the release and whether they were guessed.
func (p *packager) resolveFiles(ctx context.Context) ([]string, bool, error) {
	if p.opts.SkipBinaries {
		logger.Info(ctx, "Skipping the release index")
		return nil, false, nil
	}

	entry, err := release.NewResolver(p.fetcher, p.cfg.DistURL).Resolve(ctx, p.version)
	if err != nil {
		return nil, false, err
	}

	logger.DebugKV(ctx, "Resolved release", "files", entry.Files, "guessed", entry.Guessed)

	return entry.Files, entry.Guessed, nil
}

// buildArchPackages builds all targets concurrently.
// The first failure cancels the others; Wait returns once every build has stopped.
func (p *packager) buildArchPackages(ctx context.Context, targets []platform.Target) error {
	group, groupCtx := errgroup.WithContext(ctx)

	for _, target := range targets {
		group.Go(func() error {
			_, err := p.buildArch(groupCtx, target)
			return err
		})
	}

	return group.Wait()
}
