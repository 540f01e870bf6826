package platform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oshokin/node-bin-gen/internal/archive"
)

// Windows is the upstream name of the Windows platform.
const Windows = "win"

// Target is one {os, cpu, format} combination to package.
type Target struct {
	// OS is the upstream platform name, "osx" already normalized to "darwin".
	OS string
	// CPU is the upstream architecture name, e.g. "x64" or "armv7l".
	CPU string
	// Variant is the optional third token segment, e.g. "zip" in "win-x64-zip".
	Variant string
	// Format is the archive format fetched for this target.
	Format archive.Format
	// Guessed marks targets taken from the default list rather than the release index.
	Guessed bool
}

// Key returns "<os>-<cpu>".
func (t Target) Key() string {
	return t.OS + "-" + t.CPU
}

// ErrMalformedToken is returned by Parse for tokens without an os and a cpu.
var ErrMalformedToken = errors.New("malformed platform token")

// Parse splits a token such as "osx-x64-tar" into a Target.
// Format is left for the caller to decide.
func Parse(token string) (Target, error) {
	parts := strings.Split(token, "-")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return Target{}, fmt.Errorf("%w: %q", ErrMalformedToken, token)
	}

	target := Target{
		OS:  parts[0],
		CPU: parts[1],
	}

	if target.OS == "osx" {
		target.OS = "darwin"
	}

	if len(parts) == 3 {
		target.Variant = parts[2]
	}

	return target, nil
}

// FormatFor returns zip for Windows and the tarball format otherwise.
func FormatFor(os string, tarball archive.Format) archive.Format {
	if os == Windows {
		return archive.Zip
	}

	return tarball
}

// PackagePlatform is the npm "os" value: "win32" for Windows, unchanged otherwise.
func PackagePlatform(os string) string {
	if os == Windows {
		return "win32"
	}

	return os
}

// PackageArch is the npm "cpu" value: "x86" for 32-bit Windows, unchanged otherwise.
func PackageArch(os, cpu string) string {
	if os == Windows && cpu == "ia32" {
		return "x86"
	}

	return cpu
}

// Executable is the package-relative path of the node binary.
func Executable(os string) string {
	if os == Windows {
		return "bin/node.exe"
	}

	return "bin/node"
}
