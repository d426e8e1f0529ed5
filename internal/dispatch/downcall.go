package dispatch

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/pvfsclient/pvfsclient"
	"github.com/pvfsclient/pvfsclient/internal/credcache"
	"github.com/pvfsclient/pvfsclient/internal/iox"
	"github.com/pvfsclient/pvfsclient/internal/racache"
	"github.com/pvfsclient/pvfsclient/internal/rpc"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
	"github.com/pvfsclient/pvfsclient/internal/vfsreq"
)

// purgeCreds purges d's credential on a permission-denied completion
// (spec.md §8 property 4) and logs a completion-class pvfsclient.Error
// alongside it, so the purge shows up in the log the same way a
// submission failure does (logSubmissionError in dispatch.go) instead
// of silently mutating the cache.
func (disp *Dispatcher) purgeCreds(d *vfsreq.Descriptor, status int32) {
	if credcache.IsPermissionError(status) {
		err := pvfsclient.NewRequestError("dispatch", d.Tag, d.Kind, pvfsclient.ErrCodeCompletion, "permission denied, credential purged")
		disp.deps.Logger.Warnf("%v", err)
	}
	disp.deps.Creds.PurgeOnStatus(d.Uid, d.Gid, status)
}

// CompletionResult reports what the main loop should do after Complete
// or CompletePhantom runs: write and repost the owning descriptor (and
// any Wake'd waiters), or leave it tracked for a further completion
// (the Create/EEXIST recovery lookup).
type CompletionResult struct {
	Done bool
	Wake []*vfsreq.Descriptor
}

// GetattrResult is the decoded body a Getattr downcall carries, with the
// symlink target already inlined (spec.md §4.7 "Getattr").
type GetattrResult struct {
	Attr       uapi.Attr
	LinkTarget string
}

// recoveryMarker tags a Create descriptor that is mid EEXIST-recovery.
type recoveryMarker struct{}

// rewriteStatus applies the downcall error-code rewrites spec.md §4.7
// names: today just I/O ECANCELED → ETIMEDOUT, since cancellation is
// modelled as a timeout above this layer (spec.md §7).
func rewriteStatus(kind uapi.Kind, status int32) int32 {
	if status == int32(-unix.ECANCELED) && kind.Cancellable() {
		return int32(-unix.ETIMEDOUT)
	}
	return status
}

// Complete assembles the downcall for a non-phantom descriptor's
// completion (spec.md §4.7, C7).
func (disp *Dispatcher) Complete(ctx context.Context, d *vfsreq.Descriptor, comp rpc.Completion) (CompletionResult, error) {
	if d.WasCancelled {
		return CompletionResult{Done: true}, nil
	}

	status := rewriteStatus(d.Kind, comp.Status)

	switch d.Kind {
	case uapi.KindFileIO:
		return disp.completeFileIO(ctx, d, comp, status)
	case uapi.KindFileIOX:
		return disp.completeFileIOX(d, comp, status)
	case uapi.KindCreate:
		return disp.completeCreate(ctx, d, comp, status)
	case uapi.KindGetattr:
		return disp.completeGetattr(d, comp, status), nil
	case uapi.KindStatfs:
		return disp.completeStatfs(d, comp, status), nil
	default:
		d.Downcall.Status = status
		d.Downcall.Body = comp.Payload
		disp.purgeCreds(d, status)
		return CompletionResult{Done: true}, nil
	}
}

func (disp *Dispatcher) completeFileIO(ctx context.Context, d *vfsreq.Descriptor, comp rpc.Completion, status int32) (CompletionResult, error) {
	block, cached := d.CacheBlock.(*racache.Block)
	if !cached {
		d.Downcall.Status = status
		d.Downcall.Body = comp.Payload
		disp.purgeCreds(d, status)
		return CompletionResult{Done: true}, nil
	}

	if status != 0 {
		disp.purgeCreds(d, status)
		waiters := block.FailRead()
		disp.deps.RACache.FreeBlock(block.FileHandle, block.FileOffset)
		d.Downcall.Status = status
		return CompletionResult{Done: true, Wake: disp.wakeFailedWaiters(waiters, status)}, nil
	}

	dataSz := completionDataSize(comp, block.BuffSz)
	req, _ := d.Upcall.(uapi.FileIORequest)
	waiters := block.CompleteRead(dataSz)
	disp.completeFromBlock(d, block, req)
	if !d.IsSpeculative {
		disp.scheduleSpeculation(ctx, block.FileHandle, block, req.ReadCount)
	}

	return CompletionResult{Done: true, Wake: disp.wakeNonSpeculative(waiters)}, nil
}

// CompletePhantom handles a speculative read's completion: it only
// populates the block and wakes any real waiters that joined it, and
// never produces a downcall of its own (spec.md §4.3).
func (disp *Dispatcher) CompletePhantom(phantom *vfsreq.Descriptor, comp rpc.Completion) []*vfsreq.Descriptor {
	block, ok := phantom.CacheBlock.(*racache.Block)
	if !ok {
		return nil
	}
	if comp.Status != 0 {
		waiters := block.FailRead()
		disp.deps.RACache.FreeBlock(block.FileHandle, block.FileOffset)
		return disp.wakeFailedWaiters(waiters, comp.Status)
	}
	waiters := block.CompleteRead(completionDataSize(comp, block.BuffSz))
	return disp.wakeNonSpeculative(waiters)
}

func (disp *Dispatcher) wakeNonSpeculative(waiters []racache.Waiter) []*vfsreq.Descriptor {
	var wake []*vfsreq.Descriptor
	for _, w := range waiters {
		if w.IsSpeculativeRead() {
			continue
		}
		wd, ok := w.(*vfsreq.Descriptor)
		if !ok {
			continue
		}
		block, _ := wd.CacheBlock.(*racache.Block)
		req, _ := wd.Upcall.(uapi.FileIORequest)
		if block != nil {
			disp.completeFromBlock(wd, block, req)
		}
		wake = append(wake, wd)
	}
	return wake
}

func (disp *Dispatcher) wakeFailedWaiters(waiters []racache.Waiter, status int32) []*vfsreq.Descriptor {
	var wake []*vfsreq.Descriptor
	for _, w := range waiters {
		if w.IsSpeculativeRead() {
			continue
		}
		wd, ok := w.(*vfsreq.Descriptor)
		if !ok {
			continue
		}
		wd.Downcall.Status = status
		wake = append(wake, wd)
	}
	return wake
}

func completionDataSize(comp rpc.Completion, buffSz int) int {
	if comp.Payload != nil && len(comp.Payload) < buffSz {
		return len(comp.Payload)
	}
	return buffSz
}

func (disp *Dispatcher) completeFileIOX(d *vfsreq.Descriptor, comp rpc.Completion, status int32) (CompletionResult, error) {
	join, ok := d.CacheBlock.(*iox.Join)
	if !ok {
		disp.purgeCreds(d, status)
		d.Downcall.Status = status
		return CompletionResult{Done: true}, nil
	}

	amt := uint32(len(comp.Payload))
	done := join.Complete(comp.ID, amt, comp.Status)
	if !done {
		return CompletionResult{Done: false}, nil
	}

	if failed := join.FailedStatus(); failed != 0 {
		d.Downcall.Status = rewriteStatus(d.Kind, failed)
	} else {
		d.Downcall.Status = 0
	}
	disp.purgeCreds(d, d.Downcall.Status)
	d.Downcall.Body = join.AmtComplete
	return CompletionResult{Done: true}, nil
}

// completeCreate implements the EEXIST recovery-lookup rule (spec.md
// §4.7): on EEXIST, a recovery lookup is chained under the same tag; a
// successful lookup rewrites the downcall to success with the looked-up
// handle, a failing one rewrites it to access-denied.
func (disp *Dispatcher) completeCreate(ctx context.Context, d *vfsreq.Descriptor, comp rpc.Completion, status int32) (CompletionResult, error) {
	if _, recovering := d.Continuation.(recoveryMarker); recovering {
		d.Continuation = nil
		if comp.Status == 0 {
			d.Downcall.Status = 0
			d.Downcall.Body = comp.Payload
		} else {
			d.Downcall.Status = int32(-unix.EACCES)
		}
		disp.purgeCreds(d, d.Downcall.Status)
		return CompletionResult{Done: true}, nil
	}

	if status == int32(-unix.EEXIST) {
		req, _ := d.Upcall.(uapi.CreateRequest)
		lookup := uapi.LookupRequest{Parent: req.Parent, Name: req.Name}
		id, err := disp.deps.Transport.Submit(ctx, uapi.KindLookup, d.Tag, encodeUpcall(lookup))
		if err != nil {
			d.Downcall.Status = int32(-unix.EACCES)
			disp.purgeCreds(d, d.Downcall.Status)
			return CompletionResult{Done: true}, nil
		}
		d.Ops.Primary = id
		d.Continuation = recoveryMarker{}
		return CompletionResult{Done: false}, nil
	}

	disp.purgeCreds(d, status)
	d.Downcall.Status = status
	d.Downcall.Body = comp.Payload
	return CompletionResult{Done: true}, nil
}

// completeGetattr inlines a symlink's link target into the downcall
// body instead of a separate kernel-side buffer (spec.md §4.7
// "Getattr").
func (disp *Dispatcher) completeGetattr(d *vfsreq.Descriptor, comp rpc.Completion, status int32) CompletionResult {
	disp.purgeCreds(d, status)
	if status != 0 {
		d.Downcall.Status = status
		return CompletionResult{Done: true}
	}
	if len(comp.Payload) < uapi.AttrSize {
		d.Downcall.Status = int32(-unix.EIO)
		return CompletionResult{Done: true}
	}
	attr, err := uapi.DecodeAttr(comp.Payload[:uapi.AttrSize])
	if err != nil {
		d.Downcall.Status = int32(-unix.EIO)
		return CompletionResult{Done: true}
	}

	var linkTarget string
	if rest := comp.Payload[uapi.AttrSize:]; attr.IsSymlink() && len(rest) > 0 {
		linkTarget = string(rest)
	}

	d.Downcall.Status = 0
	d.Downcall.Body = GetattrResult{Attr: attr, LinkTarget: linkTarget}
	return CompletionResult{Done: true}
}

// completeStatfs derives the reported block count from the I/O
// shared-buffer slot size so kernel-side size math agrees with the
// data-plane transfer unit (spec.md §4.7 "Statfs").
func (disp *Dispatcher) completeStatfs(d *vfsreq.Descriptor, comp rpc.Completion, status int32) CompletionResult {
	disp.purgeCreds(d, status)
	d.Downcall.Status = status
	if status == 0 {
		blockSize := uint64(disp.deps.RACache.BlockSize())
		d.Downcall.Body = StatfsResult{Payload: comp.Payload, BlockSize: blockSize}
	}
	return CompletionResult{Done: true}
}

// StatfsResult pairs the RPC-derived statfs payload with the
// daemon-local block size used to convert byte counts into block
// counts.
type StatfsResult struct {
	Payload   []byte
	BlockSize uint64
}
