// Package fetchtest serves a fake Node.js distribution for tests.
package fetchtest

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/ulikunitz/xz"
)

// Release is one entry of the served index.
type Release struct {
	Version string   `json:"version"`
	Files   []string `json:"files"`
}

// DistServer answers index and archive requests for a fixed set of releases.
// Archives are generated on the fly and contain a fake node binary whose
// content is BinaryContent of the archive name. Archives carry an ETag and
// honour If-None-Match.
type DistServer struct {
	*httptest.Server

	releases []Release

	mu          sync.Mutex
	missing     map[string]bool
	requests    []string
	notModified int
}

// NewDistServer starts a server closed on test cleanup.
func NewDistServer(t testing.TB, releases ...Release) *DistServer {
	t.Helper()

	d := &DistServer{
		releases: releases,
		missing:  make(map[string]bool),
	}
	d.Server = httptest.NewServer(http.HandlerFunc(d.serve))
	t.Cleanup(d.Close)

	return d
}

// Missing makes requests for the named archive file answer 404.
func (d *DistServer) Missing(filename string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.missing[filename] = true
}

// Requests returns the request paths seen so far.
func (d *DistServer) Requests() []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]string(nil), d.requests...)
}

// NotModified counts archive requests answered with 304.
func (d *DistServer) NotModified() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.notModified
}

// BinaryContent is the node binary stored in the archive named archiveName.
func BinaryContent(archiveName string) string {
	return "#!fake " + archiveName + "\n"
}

func (d *DistServer) serve(w http.ResponseWriter, r *http.Request) {
	d.mu.Lock()
	d.requests = append(d.requests, r.URL.Path)
	missing := d.missing[path.Base(r.URL.Path)]
	d.mu.Unlock()

	if path.Base(r.URL.Path) == "index.json" {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(d.releases)

		return
	}

	version, archiveName, ext, ok := splitArchivePath(r.URL.Path)
	if !ok || missing || !d.known(version) {
		http.NotFound(w, r)
		return
	}

	etag := `"` + archiveName + `"`
	if r.Header.Get("If-None-Match") == etag {
		d.mu.Lock()
		d.notModified++
		d.mu.Unlock()

		w.WriteHeader(http.StatusNotModified)

		return
	}

	var (
		body []byte
		err  error
	)

	switch ext {
	case "zip":
		body, err = buildZip(archiveName)
	case "tar.gz", "tar.xz":
		body, err = buildTarball(archiveName, ext)
	default:
		http.NotFound(w, r)
		return
	}

	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("ETag", etag)
	_, _ = w.Write(body)
}

func (d *DistServer) known(version string) bool {
	for _, release := range d.releases {
		if release.Version == version {
			return true
		}
	}

	return false
}

// splitArchivePath parses ".../<version>/node-<version>-<os>-<cpu>.<ext>".
func splitArchivePath(p string) (version, archiveName, ext string, ok bool) {
	version = path.Base(path.Dir(p))
	file := path.Base(p)

	for _, candidate := range []string{"tar.gz", "tar.xz", "zip"} {
		if name, found := strings.CutSuffix(file, "."+candidate); found {
			archiveName, ext = name, candidate
			break
		}
	}

	if ext == "" || !strings.HasPrefix(archiveName, "node-"+version+"-") {
		return "", "", "", false
	}

	return version, archiveName, ext, true
}

func buildZip(archiveName string) ([]byte, error) {
	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	files := map[string]string{
		archiveName + "/node.exe":   BinaryContent(archiveName),
		archiveName + "/README.md":  "# Node.js\n",
		archiveName + "/npm.cmd":    "@echo off\n",
		archiveName + "/LICENSE":    "MIT\n",
		archiveName + "/install.js": "// unused\n",
	}

	for name, content := range files {
		fw, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", name, err)
		}

		if _, err = fw.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}

	return buf.Bytes(), nil
}

func buildTarball(archiveName, ext string) ([]byte, error) {
	var tarball bytes.Buffer

	tw := tar.NewWriter(&tarball)

	entries := []struct {
		name string
		body string
		dir  bool
	}{
		{name: archiveName + "/", dir: true},
		{name: archiveName + "/bin/", dir: true},
		{name: archiveName + "/bin/node", body: BinaryContent(archiveName)},
		{name: archiveName + "/include/node/", dir: true},
		{name: archiveName + "/include/node/node.h", body: "#pragma once\n"},
		{name: archiveName + "/share/doc/node/", dir: true},
		{name: archiveName + "/share/doc/node/gdbinit", body: "# gdb\n"},
		{name: archiveName + "/README.md", body: "# Node.js\n"},
		{name: archiveName + "/CHANGELOG.md", body: "# Changelog\n"},
		{name: archiveName + "/LICENSE", body: "MIT\n"},
	}

	for _, entry := range entries {
		hdr := &tar.Header{Name: entry.name, Mode: 0o644, Typeflag: tar.TypeReg, Size: int64(len(entry.body))}
		if entry.dir {
			hdr.Mode, hdr.Typeflag, hdr.Size = 0o755, tar.TypeDir, 0
		}

		if strings.HasSuffix(entry.name, "/bin/node") {
			hdr.Mode = 0o755
		}

		if err := tw.WriteHeader(hdr); err != nil {
			return nil, fmt.Errorf("write tar header %s: %w", entry.name, err)
		}

		if _, err := tw.Write([]byte(entry.body)); err != nil {
			return nil, fmt.Errorf("write tar entry %s: %w", entry.name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close tar: %w", err)
	}

	return compress(tarball.Bytes(), ext)
}

func compress(data []byte, ext string) ([]byte, error) {
	var buf bytes.Buffer

	if ext == "tar.xz" {
		xw, err := xz.NewWriter(&buf)
		if err != nil {
			return nil, fmt.Errorf("create xz writer: %w", err)
		}

		if _, err = xw.Write(data); err != nil {
			return nil, fmt.Errorf("write xz: %w", err)
		}

		if err = xw.Close(); err != nil {
			return nil, fmt.Errorf("close xz: %w", err)
		}

		return buf.Bytes(), nil
	}

	gw := gzip.NewWriter(&buf)

	if _, err := gw.Write(data); err != nil {
		return nil, fmt.Errorf("write gzip: %w", err)
	}

	if err := gw.Close(); err != nil {
		return nil, fmt.Errorf("close gzip: %w", err)
	}

	return buf.Bytes(), nil
}
