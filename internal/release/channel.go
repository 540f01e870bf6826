package release

import (
	"strings"
)

// Channel is one of the upstream distribution paths.
type Channel int

const (
	// Stable serves regular releases from /dist/.
	Stable Channel = iota
	// RC serves release candidates from /download/rc/.
	RC
	// Test serves test builds from /download/test/.
	Test
)

// ChannelFor picks the channel by looking for "rc", then "test", in the version.
func ChannelFor(version string) Channel {
	switch {
	case strings.Contains(version, "rc"):
		return RC
	case strings.Contains(version, "test"):
		return Test
	default:
		return Stable
	}
}

// Path is the channel directory below the distribution host, with both slashes.
func (c Channel) Path() string {
	switch c {
	case RC:
		return "/download/rc/"
	case Test:
		return "/download/test/"
	default:
		return "/dist/"
	}
}

func (c Channel) String() string {
	switch c {
	case RC:
		return "rc"
	case Test:
		return "test"
	default:
		return "stable"
	}
}

// IndexURL is the release index of the channel serving version.
func IndexURL(base, version string) string {
	return strings.TrimRight(base, "/") + ChannelFor(version).Path() + "index.json"
}

// ArchiveName is the upstream archive file name without extension.
func ArchiveName(version, os, cpu string) string {
	return "node-" + version + "-" + os + "-" + cpu
}

// ArchiveURL is the download address of one platform archive.
func ArchiveURL(base, version, os, cpu, ext string) string {
	return strings.TrimRight(base, "/") + ChannelFor(version).Path() +
		version + "/" + ArchiveName(version, os, cpu) + "." + ext
}
