// Package rpc defines the non-blocking transport boundary between the
// request loop (internal/reqloop) and whatever actually carries an upcall
// to a remote server and returns its downcall. Every handler in
// internal/dispatch submits through this interface and later learns the
// result from TestAny; nothing in this module blocks on a single op.
package rpc

import (
	"context"
	"time"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// OpID names one outstanding submission. It is opaque to callers: the
// transport hands one back from Submit and reports it again in the
// matching Completion. It is unrelated to uapi.Tag, which is the kernel
// request's own id and may fan out into several OpIDs (see internal/iox).
type OpID uint64

// ErrQueueFull is returned by Submit when the transport cannot accept a
// new operation without blocking. internal/dispatch treats it as
// backpressure rather than a hard failure: the request is completed
// inline with -EAGAIN instead of -ENOMEM. Nothing in this module
// resubmits it.
var ErrQueueFull = transportError("rpc: submission queue full")

type transportError string

func (e transportError) Error() string { return string(e) }

// Completion reports the outcome of one OpID. Status is a negative errno
// on failure and zero on success, matching the kernel downcall
// convention (spec.md §4.1) rather than Go's (err error) idiom, since
// every caller ultimately needs to plumb this value into a downcall
// header.
type Completion struct {
	ID      OpID
	Tag     uapi.Tag
	Status  int32
	Payload []byte
}

// Transport is the non-blocking collaborator reqloop and dispatch submit
// work through. Submit never blocks: it either enqueues the operation and
// returns an OpID, or returns ErrQueueFull immediately. TestAny is the
// only blocking call, and only blocks up to timeout.
//
// Two implementations exist: internal/rpc/uringtp, a genuine io_uring
// backed multiplexer, and internal/rpc/rpctest, a deterministic
// in-memory fake every other package tests against.
type Transport interface {
	// Submit hands one upcall to the transport. kind and tag are carried
	// through unchanged so a Completion can be matched back to the
	// in-progress table entry that issued it. payload is the encoded
	// upcall body; the transport does not interpret it.
	Submit(ctx context.Context, kind uapi.Kind, tag uapi.Tag, payload []byte) (OpID, error)

	// Cancel best-effort cancels an outstanding op. It is only ever
	// called for kinds uapi.Kind.Cancellable reports true for
	// (FileIO, FileIOX); the transport may still deliver a completion
	// for id afterward, which dispatch must tolerate (spec.md §5,
	// ECANCEL → ETIMEDOUT rewrite).
	Cancel(id OpID) error

	// TestAny returns up to max completions that are ready, blocking no
	// longer than timeout if none are. A zero-length, nil-error result
	// means the timeout elapsed with nothing ready; reqloop treats that
	// as one empty iteration, not an error.
	TestAny(ctx context.Context, max int, timeout time.Duration) ([]Completion, error)

	// Close releases the transport's resources. Outstanding completions
	// are discarded.
	Close() error
}
