// Package linker is the install-time half of a metapackage.
//
// Run installs the platform package matching the host with the detected
// package manager and hard-links its node binary into the metapackage's bin
// directory. On Windows it also leaves a placeholder at bin/node and points
// the consumer manifest's bin.node at bin/node.exe.
//
// Published metapackages run the embedded node-bin-setup.js script instead;
// this package backs the node-bin-setup CLI, a separate entry point that
// follows the same rules and adds process-tree detection of the package manager.
package linker
