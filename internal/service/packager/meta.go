package packager

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/oshokin/node-bin-gen/internal/logger"
	"github.com/oshokin/node-bin-gen/internal/pkgjson"
)

const (
	// ReadmeFilename is the metapackage README.
	ReadmeFilename = "README.md"
	// TriggerFilename is the install script npm runs for the metapackage.
	TriggerFilename = "installArchSpecificPackage.js"
	// LinkerFilename is the embedded install-time linker.
	LinkerFilename = "node-bin-setup.js"

	// readmeToken is replaced by the package name in the README template.
	readmeToken = "${packagename}"

	defaultFileMode os.FileMode = 0o644
)

var (
	//go:embed assets/README.md
	readmeTemplate string

	//go:embed assets/node-bin-setup.js
	linkerScript []byte
)

// metaManifest describes the metapackage.
func (p *packager) metaManifest() *pkgjson.MetaManifest {
	return &pkgjson.MetaManifest{
		Name:          p.cfg.ScopePrefix() + p.cfg.PackageName,
		Version:       p.packageVersion,
		Description:   description,
		Main:          "index.js",
		Keywords:      []string{"runtime"},
		Repository:    p.cfg.Repository,
		Scripts:       pkgjson.Scripts{Install: "node installArchSpecificPackage"},
		Bin:           pkgjson.Bin{Node: "bin/node"},
		License:       license,
		Author:        "",
		Engines:       pkgjson.Engines{NPM: ">=5.0.0"},
		PublishConfig: pkgjson.PublishConfig{Access: access},
	}
}

// buildMeta writes the metapackage: README, manifest, install trigger and linker.
func (p *packager) buildMeta(ctx context.Context) (*pkgjson.MetaManifest, error) {
	manifest := p.metaManifest()
	dir := filepath.Join(p.cfg.OutputDir, p.cfg.PackageName)

	logger.InfoKV(ctx, "Writing metapackage", "name", manifest.Name, "dir", dir)

	if err := os.MkdirAll(dir, DefaultDirMode); err != nil {
		return nil, fmt.Errorf("create %s: %w", dir, err)
	}

	trigger, err := installTrigger(p.cfg.ScopePrefix(), p.cfg.PackageName, p.packageVersion)
	if err != nil {
		return nil, err
	}

	readme := strings.ReplaceAll(readmeTemplate, readmeToken, manifest.Name)

	var group errgroup.Group

	group.Go(func() error {
		return writeFile(dir, ReadmeFilename, []byte(readme))
	})
	group.Go(func() error {
		return pkgjson.Write(dir, manifest)
	})
	group.Go(func() error {
		return writeFile(dir, TriggerFilename, trigger)
	})
	group.Go(func() error {
		return writeFile(dir, LinkerFilename, linkerScript)
	})

	if err = group.Wait(); err != nil {
		return nil, err
	}

	return manifest, nil
}

// installTrigger renders the script npm runs on install. Arguments are JSON
// literals, so the scope is null when unset.
func installTrigger(scopePrefix, packageName, packageVersion string) ([]byte, error) {
	var scope any
	if scopePrefix != "" {
		scope = strings.TrimSuffix(scopePrefix, "/")
	}

	args := make([]string, 0, 3)

	for _, arg := range []any{scope, packageName, packageVersion} {
		encoded, err := json.Marshal(arg)
		if err != nil {
			return nil, fmt.Errorf("encode install trigger: %w", err)
		}

		args = append(args, string(encoded))
	}

	script := fmt.Sprintf("require('./node-bin-setup')(%s, require);\n", strings.Join(args, ", "))

	return []byte(script), nil
}

func writeFile(dir, name string, data []byte) error {
	if err := os.WriteFile(filepath.Join(dir, name), data, defaultFileMode); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}

	return nil
}
