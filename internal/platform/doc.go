// Package platform turns upstream file tokens into build targets and maps
// platform and architecture names between the release index, npm manifests
// and the Go runtime.
package platform
