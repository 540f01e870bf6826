// Package release knows the layout of the upstream Node.js distribution:
// which channel serves a version, where its index and archives live, and how
// to find a version's entry in the index.
package release
