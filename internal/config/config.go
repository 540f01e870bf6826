package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/oshokin/node-bin-gen/internal/archive"
)

// Config holds settings shared by the packaging pipeline.
type Config struct {
	// DistURL is the base URL of the upstream distribution (channels live below it).
	DistURL string `yaml:"dist_url"`
	// OutputDir is where arch packages and the metapackage are written.
	OutputDir string `yaml:"output_dir"`
	// CacheDir is where the fetch layer keeps conditional-request cache entries.
	// An empty value after validation never happens; "off" disables the cache.
	CacheDir string `yaml:"cache_dir"`
	// TarballFormat is the archive format fetched for non-Windows targets.
	TarballFormat string `yaml:"tarball_format"`
	// UserAgent is sent with every upstream request.
	UserAgent string `yaml:"user_agent"`
	// Repository is copied into the metapackage manifest when set.
	Repository string `yaml:"repository"`
	// PackageName is the metapackage name and the arch package name prefix.
	PackageName string `yaml:"package_name"`
	// Scope is the optional npm scope, with or without the leading "@".
	Scope string `yaml:"scope"`
}

const (
	// DefaultConfigFilename is the default filename for packaging settings.
	DefaultConfigFilename = "node-bin-gen.yaml"

	// DefaultDistURL is the official Node.js distribution host.
	DefaultDistURL = "https://nodejs.org"

	// DefaultOutputDir is relative to the working directory.
	DefaultOutputDir = "packages"

	// DefaultCacheDir is expanded against the user's home directory.
	DefaultCacheDir = "~/.node-bin-gen-cache"

	// CacheDisabled turns the fetch cache off when used as CacheDir.
	CacheDisabled = "off"

	// DefaultTarballFormat matches what the upstream publishes for every release.
	DefaultTarballFormat = "tar.gz"

	// DefaultUserAgent identifies the tool to the upstream host.
	DefaultUserAgent = "node-bin-gen"

	// DefaultPackageName is the metapackage name used without --package-name.
	DefaultPackageName = "node"

	// DefaultFilePermissions is the default file permission for config files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errUnsupportedTarball is returned for tarball formats no extractor handles.
	errUnsupportedTarball = errors.New("unsupported tarball format")
	// errInvalidPackageName is returned when the package name can't be used as an npm name.
	errInvalidPackageName = errors.New("invalid package name")
)

// Default returns a configuration populated with defaults.
func Default() *Config {
	return &Config{
		DistURL:       DefaultDistURL,
		OutputDir:     DefaultOutputDir,
		CacheDir:      DefaultCacheDir,
		TarballFormat: DefaultTarballFormat,
		UserAgent:     DefaultUserAgent,
		PackageName:   DefaultPackageName,
	}
}

// Load reads configuration from the provided path and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err = yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err = Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadOrDefault behaves like Load but returns defaults when the default settings
// file does not exist. A missing file named explicitly is still an error.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) && (path == "" || path == DefaultConfigFilename) {
		return Default(), nil
	}

	return cfg, err
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	if err = os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the provided settings.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if cfg.DistURL == "" {
		cfg.DistURL = DefaultDistURL
	}

	cfg.DistURL = strings.TrimRight(cfg.DistURL, "/")
	if _, err := url.ParseRequestURI(cfg.DistURL); err != nil {
		return fmt.Errorf("invalid dist URL: %w", err)
	}

	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	if cfg.CacheDir == "" {
		cfg.CacheDir = DefaultCacheDir
	}

	if cfg.CacheDir != CacheDisabled {
		dir, err := homedir.Expand(cfg.CacheDir)
		if err != nil {
			return fmt.Errorf("expand cache dir: %w", err)
		}

		cfg.CacheDir = dir
	}

	if cfg.TarballFormat == "" {
		cfg.TarballFormat = DefaultTarballFormat
	}

	// Zip is only used for Windows archives.
	if format, err := archive.ParseFormat(cfg.TarballFormat); err != nil || format == archive.Zip {
		return fmt.Errorf("%w: %s", errUnsupportedTarball, cfg.TarballFormat)
	}

	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}

	if cfg.PackageName == "" {
		cfg.PackageName = DefaultPackageName
	}

	if strings.ContainsAny(cfg.PackageName, "/@ ") {
		return fmt.Errorf("%w: %q", errInvalidPackageName, cfg.PackageName)
	}

	return nil
}

// ScopePrefix returns "<scope>/" or an empty string when no scope is configured.
func (c *Config) ScopePrefix() string {
	if c.Scope == "" {
		return ""
	}

	scope := c.Scope
	if !strings.HasPrefix(scope, "@") {
		scope = "@" + scope
	}

	return scope + "/"
}
