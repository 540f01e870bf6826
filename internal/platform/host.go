package platform

import "runtime"

// Host is the consumer machine in upstream naming.
type Host struct {
	// Platform is "win", "darwin", "linux", ...
	Platform string
	// Arch is the architecture, with 32-bit Windows reported as "x86".
	Arch string
}

// DetectHost describes the machine the process runs on.
func DetectHost() Host {
	return HostFor(runtime.GOOS, runtime.GOARCH)
}

// HostFor maps Go platform names to the names used by release archives.
func HostFor(goos, goarch string) Host {
	platform := goos

	switch goos {
	case "windows":
		platform = Windows
	case "solaris", "illumos":
		platform = "sunos"
	}

	arch := goarch

	switch goarch {
	case "amd64":
		arch = "x64"
	case "386":
		arch = "ia32"
	case "arm":
		arch = "armv7l"
	}

	return Host{
		Platform: platform,
		Arch:     PackageArch(platform, arch),
	}
}

// IsWindows reports whether the host runs Windows.
func (h Host) IsWindows() bool {
	return h.Platform == Windows
}

// Executable is the package-relative node binary path for this host.
func (h Host) Executable() string {
	return Executable(h.Platform)
}
