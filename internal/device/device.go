// Package device implements the boundary spec.md §6 calls the "Device
// protocol": unexpected-receive, list-write, mapped-region acquisition,
// and the remount ioctl, all against a single character device path
// (spec.md §6 "device open path is a fixed filesystem path").
//
// Grounded on the teacher's character-device open/mmap sequence
// (internal/queue/runner.go's NewRunner/mmapQueues) and its control-path
// ioctl idiom (internal/ctrl/control.go's NewController/AddDevice),
// generalized from a block-I/O queue's FETCH_REQ/COMMIT_AND_FETCH_REQ
// protocol to this daemon's unexpected-receive/list-write/remount
// protocol.
package device

import (
	"context"

	"github.com/pvfsclient/pvfsclient/internal/iobuf"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// Upcall is one pending upcall read off the device: its fixed header
// plus, for trailer-carrying kinds, the undecoded trailer bytes (spec.md
// §6 "Upcall format").
type Upcall struct {
	Header  uapi.UpcallHeader
	Trailer []byte
}

// Device is the contract the main loop (internal/reqloop) needs from
// the character device. The real implementation is Linux-only
// (chardev_linux.go); Stub backs tests and non-Linux builds.
type Device interface {
	// ReadUnexpected blocks for the next pending upcall, returning
	// ctx.Err() if ctx is cancelled first.
	ReadUnexpected(ctx context.Context) (Upcall, error)

	// WriteDowncall writes a downcall as a {header, optional trailer}
	// scatter list under the tag of its originating upcall (spec.md
	// §4.8). A write failure is logged by the caller and the
	// descriptor is reposted regardless (spec.md §7 "Device errors").
	WriteDowncall(header uapi.DowncallHeader) error

	// MapPool acquires one of the two shared-memory regions spec.md §3
	// names (I/O, Readdir) and registers its base address with the
	// kernel module so the kernel can select slot indices in upcalls.
	MapPool(kind iobuf.Kind, slots, slotSize int) (*iobuf.Pool, error)

	// Remount performs the blocking ioctl that asks the kernel module
	// to replay prior mount state (spec.md §4.6). It is meant to be
	// called from the remount coordinator's helper goroutine, not the
	// main loop.
	Remount(ctx context.Context) error

	Close() error
}
