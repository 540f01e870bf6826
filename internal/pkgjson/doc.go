// Package pkgjson reads and writes npm package manifests: the per-platform
// and meta manifests produced by the packager, the bin lookup done by the
// linker, and the narrow rewrite of a consuming project's bin.node entry.
package pkgjson
