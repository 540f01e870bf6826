// Package packager builds the npm packages wrapping a Node.js release.
//
// Run looks the version up in the upstream release index, downloads and
// unpacks one archive per platform into its own package directory (all
// platforms concurrently, failing fast), and finally writes the metapackage
// whose install script picks the right platform package on the consumer side.
package packager
