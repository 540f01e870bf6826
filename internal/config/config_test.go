package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidate checks defaulting and format validations.
func TestValidate(t *testing.T) {
	t.Parallel()

	cfg := &Config{CacheDir: CacheDisabled}
	require.NoError(t, Validate(cfg))
	require.Equal(t, DefaultDistURL, cfg.DistURL)
	require.Equal(t, DefaultOutputDir, cfg.OutputDir)
	require.Equal(t, DefaultTarballFormat, cfg.TarballFormat)
	require.Equal(t, DefaultPackageName, cfg.PackageName)
	require.Equal(t, CacheDisabled, cfg.CacheDir)

	// Trailing slashes are trimmed so channel paths can be appended.
	cfg = &Config{DistURL: "https://mirror.local/node/", CacheDir: CacheDisabled}
	require.NoError(t, Validate(cfg))
	require.Equal(t, "https://mirror.local/node", cfg.DistURL)

	require.Error(t, Validate(&Config{DistURL: "not a url"}))
	require.ErrorIs(t, Validate(&Config{TarballFormat: "7z", CacheDir: CacheDisabled}), errUnsupportedTarball)
	require.ErrorIs(t, Validate(&Config{TarballFormat: "zip", CacheDir: CacheDisabled}), errUnsupportedTarball)
	require.Error(t, Validate(&Config{PackageName: "@scope/node"}))
	require.Error(t, Validate(nil))
}

// TestScopePrefix covers scopes given with and without the "@".
func TestScopePrefix(t *testing.T) {
	t.Parallel()

	require.Empty(t, (&Config{}).ScopePrefix())
	require.Equal(t, "@acme/", (&Config{Scope: "acme"}).ScopePrefix())
	require.Equal(t, "@acme/", (&Config{Scope: "@acme"}).ScopePrefix())
}

// TestSaveLoadRoundtrip ensures settings are persisted and loaded back correctly.
func TestSaveLoadRoundtrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")

	cfg := &Config{
		DistURL:       "https://mirror.local",
		CacheDir:      CacheDisabled,
		TarballFormat: "tar.xz",
		Repository:    "https://github.com/acme/node-bin",
		Scope:         "acme",
	}

	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

// TestLoadOrDefault returns defaults only when the default settings file is missing.
func TestLoadOrDefault(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	// The package directory holds no settings file.
	cfg, err := LoadOrDefault("")
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)

	_, err = LoadOrDefault(filepath.Join(dir, "typo.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("tarball_format: zip\n"), DefaultFilePermissions))

	_, err = LoadOrDefault(broken)
	require.ErrorIs(t, err, errUnsupportedTarball)
}

// TestDefault fills every field without touching the environment.
func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	require.Equal(t, DefaultDistURL, cfg.DistURL)
	require.Equal(t, DefaultCacheDir, cfg.CacheDir)
	require.Equal(t, DefaultTarballFormat, cfg.TarballFormat)
	require.Equal(t, DefaultUserAgent, cfg.UserAgent)
	require.Equal(t, DefaultPackageName, cfg.PackageName)
	require.NoError(t, Validate(cfg))
}
