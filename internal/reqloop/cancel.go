package reqloop

import (
	"golang.org/x/sys/unix"

	"github.com/pvfsclient/pvfsclient/internal/iox"
	"github.com/pvfsclient/pvfsclient/internal/racache"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
	"github.com/pvfsclient/pvfsclient/internal/vfsreq"
)

// Cancel implements dispatch.Canceller (C10, spec.md §4.3
// "Cancellation", §5 "Cancellation semantics"): only FileIO/FileIOX are
// cancellable; any other kind, or a target that has already completed,
// is a no-op. Cancellation is idempotent — WasCancelled guards the
// single cleanup of cache state.
func (l *Loop) Cancel(targetTag uapi.Tag) bool {
	d, ok := l.inflight.Lookup(targetTag)
	if !ok {
		return false
	}
	if !d.Kind.Cancellable() || d.WasCancelled {
		return false
	}

	switch block := d.CacheBlock.(type) {
	case *racache.Block:
		l.cancelFileIORead(d, block)
	case *iox.Join:
		l.cancelFileIOX(block)
	default:
		_ = l.transport.Cancel(d.Ops.Primary)
	}

	d.WasCancelled = true
	l.completeAndFinish(d)
	return true
}

// cancelFileIORead implements spec.md §4.3 "Cancellation": if d is the
// block's primary reader, cancel the RPC, drop the block, and for every
// waiter repost (non-speculative) or free (speculative). If d is itself
// a waiter, it is simply removed from the block's waiter list.
func (l *Loop) cancelFileIORead(d *vfsreq.Descriptor, block *racache.Block) {
	if block.Primary != d {
		block.RemoveWaiter(d)
		return
	}

	_ = l.transport.Cancel(d.Ops.Primary)
	waiters := block.FailRead()
	l.racache.FreeBlock(block.FileHandle, block.FileOffset)

	for _, w := range waiters {
		if w.IsSpeculativeRead() {
			continue
		}
		wd, ok := w.(*vfsreq.Descriptor)
		if !ok {
			continue
		}
		wd.Downcall.Status = int32(-unix.ETIMEDOUT)
		l.completeAndFinish(wd)
	}
}

func (l *Loop) cancelFileIOX(join *iox.Join) {
	for _, g := range join.Groups {
		_ = l.transport.Cancel(g.OpID())
	}
}
