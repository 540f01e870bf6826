package pkgjson

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Filename is the npm manifest file name.
const Filename = "package.json"

// DefaultFileMode is used for every manifest written by this package.
const DefaultFileMode os.FileMode = 0o644

// Bin maps command names to package-relative executables.
type Bin struct {
	Node string `json:"node"`
}

// PublishConfig holds registry publishing options.
type PublishConfig struct {
	Access string `json:"access"`
}

// Scripts holds lifecycle scripts.
type Scripts struct {
	Install string `json:"install"`
}

// Engines constrains the installing tool versions.
type Engines struct {
	NPM string `json:"npm"`
}

// ArchManifest describes a package carrying the binary of one platform.
// Field order is the key order of the written JSON.
type ArchManifest struct {
	Name          string        `json:"name"`
	Version       string        `json:"version"`
	Description   string        `json:"description"`
	Bin           Bin           `json:"bin"`
	Files         []string      `json:"files"`
	OS            []string      `json:"os"`
	CPU           []string      `json:"cpu"`
	PublishConfig PublishConfig `json:"publishConfig"`
	License       string        `json:"license"`
}

// MetaManifest describes the platform-independent package whose install
// script fetches the right ArchManifest package.
type MetaManifest struct {
	Name          string        `json:"name"`
	Version       string        `json:"version"`
	Description   string        `json:"description"`
	Main          string        `json:"main"`
	Keywords      []string      `json:"keywords"`
	Repository    string        `json:"repository,omitempty"`
	Scripts       Scripts       `json:"scripts"`
	Bin           Bin           `json:"bin"`
	License       string        `json:"license"`
	Author        string        `json:"author"`
	Engines       Engines       `json:"engines"`
	PublishConfig PublishConfig `json:"publishConfig"`
}

// ErrNoNodeBin is returned when a manifest has no bin.node entry.
var ErrNoNodeBin = errors.New("manifest has no bin.node entry")

// Marshal renders a manifest with two-space indentation and a trailing newline.
func Marshal(manifest any) ([]byte, error) {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}

	return append(data, '\n'), nil
}

// Write stores manifest as dir/package.json.
func Write(dir string, manifest any) error {
	data, err := Marshal(manifest)
	if err != nil {
		return err
	}

	if err = os.WriteFile(filepath.Join(dir, Filename), data, DefaultFileMode); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}

	return nil
}

// ReadNodeBin returns the bin.node entry of the manifest at path.
func ReadNodeBin(path string) (string, error) {
	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return "", fmt.Errorf("read manifest: %w", err)
	}

	var manifest struct {
		Bin json.RawMessage `json:"bin"`
	}

	if err = json.Unmarshal(contents, &manifest); err != nil {
		return "", fmt.Errorf("decode manifest %s: %w", path, err)
	}

	var bin map[string]string
	if len(manifest.Bin) == 0 || json.Unmarshal(manifest.Bin, &bin) != nil || bin["node"] == "" {
		return "", fmt.Errorf("%s: %w", path, ErrNoNodeBin)
	}

	return bin["node"], nil
}
