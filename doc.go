// Package pvfsclient is the userspace client core of a parallel
// distributed filesystem: a long-lived daemon that bridges a kernel VFS
// character device to remote storage and metadata servers.
//
// The root package holds only the cross-cutting error type
// (errors.go); the daemon's actual behavior lives in internal/ (main
// loop, device boundary, RPC transport, bounded caches) and is driven
// by cmd/pvfs-client.
package pvfsclient
