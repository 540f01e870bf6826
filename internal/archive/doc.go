// Package archive unpacks upstream release archives.
//
// Two families implement Extractor: Tar streams a gzip or xz tarball into
// a directory while stripping leading path components, and ZipEntry pulls a
// single flattened file out of a zip. Failures come back as *Error.
package archive
