package pkgjson

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestWrite_KeyOrder checks the arch manifest keys come out in declaration order.
func TestWrite_KeyOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	manifest := &ArchManifest{
		Name:          "@acme/node-linux-x64",
		Version:       "18.16.0",
		Description:   "node",
		Bin:           Bin{Node: "bin/node"},
		Files:         []string{"bin/node", "share", "include", "*.md", "LICENSE"},
		OS:            []string{"linux"},
		CPU:           []string{"x64"},
		PublishConfig: PublishConfig{Access: "public"},
		License:       "MIT",
	}

	require.NoError(t, Write(dir, manifest))

	data, err := os.ReadFile(filepath.Join(dir, Filename))
	require.NoError(t, err)

	text := string(data)
	require.True(t, strings.HasPrefix(text, "{\n  \"name\": \"@acme/node-linux-x64\",\n  \"version\""))

	last := -1
	for _, key := range []string{"name", "version", "description", "bin", "files", "os", "cpu", "publishConfig", "license"} {
		idx := strings.Index(text, "\""+key+"\":")
		require.Greater(t, idx, last, key)
		last = idx
	}

	bin, err := ReadNodeBin(filepath.Join(dir, Filename))
	require.NoError(t, err)
	require.Equal(t, "bin/node", bin)
}

// TestReadNodeBin_Missing rejects manifests without an object bin.node.
func TestReadNodeBin_Missing(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	for name, body := range map[string]string{
		"none.json":   `{"name":"x"}`,
		"string.json": `{"bin":"cli.js"}`,
		"other.json":  `{"bin":{"npm":"bin/npm"}}`,
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), DefaultFileMode))

		_, err := ReadNodeBin(path)
		require.ErrorIs(t, err, ErrNoNodeBin, name)
	}
}

// TestRewriteConsumerBinEntry rewrites only bin.node and keeps key order.
func TestRewriteConsumerBinEntry(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, Filename)
	original := `{
  "name": "node",
  "version": "18.16.0",
  "scripts": {"install": "node installArchSpecificPackage"},
  "bin": {"node": "bin/node", "extra": "bin/extra"},
  "license": "MIT"
}`
	require.NoError(t, os.WriteFile(path, []byte(original), DefaultFileMode))

	require.NoError(t, RewriteConsumerBinEntry(path, "bin/node.exe"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	require.Less(t, strings.Index(text, `"scripts"`), strings.Index(text, `"bin"`))
	require.Less(t, strings.Index(text, `"bin"`), strings.Index(text, `"license"`))
	require.Less(t, strings.Index(text, `"node": "bin/node.exe"`), strings.Index(text, `"extra"`))

	var decoded struct {
		Name string            `json:"name"`
		Bin  map[string]string `json:"bin"`
	}

	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Equal(t, "node", decoded.Name)
	require.Equal(t, map[string]string{"node": "bin/node.exe", "extra": "bin/extra"}, decoded.Bin)

	// No backup copy is left next to the manifest.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// TestRewriteConsumerBinEntry_AddsBin creates bin when the manifest lacks one.
func TestRewriteConsumerBinEntry_AddsBin(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), Filename)
	require.NoError(t, os.WriteFile(path, []byte(`{"name":"app"}`), DefaultFileMode))

	require.NoError(t, RewriteConsumerBinEntry(path, "bin/node.exe"))

	bin, err := ReadNodeBin(path)
	require.NoError(t, err)
	require.Equal(t, "bin/node.exe", bin)

	require.Error(t, RewriteConsumerBinEntry(filepath.Join(t.TempDir(), Filename), "bin/node.exe"))
}

// TestObject_RejectsNonObjects guards the ordered decoder.
func TestObject_RejectsNonObjects(t *testing.T) {
	t.Parallel()

	var o object

	require.Error(t, json.Unmarshal([]byte(`[1,2]`), &o))
	require.NoError(t, json.Unmarshal([]byte(`{"a":1,"b":{"c":[true]}}`), &o))

	data, err := json.Marshal(o)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1,"b":{"c":[true]}}`, string(data))
}
