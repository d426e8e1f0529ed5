package dispatch

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/pvfsclient/pvfsclient/internal/credcache"
	"github.com/pvfsclient/pvfsclient/internal/iox"
	"github.com/pvfsclient/pvfsclient/internal/racache"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
	"github.com/pvfsclient/pvfsclient/internal/vfsreq"
)

// eligibleForReadahead implements spec.md §4.3's eligibility predicate:
// cache enabled, a positive readcnt hint, a request no larger than half
// a block, and an advertised readahead size. Writes never reach this
// predicate (dispatchFileIO routes them to invalidation directly).
func eligibleForReadahead(req uapi.FileIORequest, blockSize int) bool {
	if blockSize <= 0 {
		return false
	}
	return req.ReadCount > 0 &&
		req.Size <= uint32(blockSize)/2 &&
		req.ReadaheadSize > 0
}

// dispatchFileIO is C5's entry point for FileIO upcalls, folding in the
// racache lookup for cache-eligible reads (spec.md §4.3).
func (disp *Dispatcher) dispatchFileIO(ctx context.Context, d *vfsreq.Descriptor, cred *credcache.Credential) error {
	req, _ := d.Upcall.(uapi.FileIORequest)

	if req.Write {
		disp.deps.RACache.Flush(req.Object)
		return disp.submitFileIO(ctx, d, req)
	}

	if disp.deps.RACache == nil || !eligibleForReadahead(req, disp.deps.RACache.BlockSize()) {
		return disp.submitFileIO(ctx, d, req)
	}

	state, block := disp.deps.RACache.Lookup(req.Object, req.Offset, req.Size)
	switch state {
	case racache.Hit:
		disp.completeFromBlock(d, block, req)
		if !d.IsSpeculative {
			disp.scheduleSpeculation(ctx, req.Object, block, req.ReadCount)
		}
		return nil
	case racache.Wait:
		block.AddWaiter(d)
		d.CacheBlock = block
		return nil
	case racache.Read:
		d.CacheBlock = block
		block.Primary = d
		full := req
		full.Offset = block.FileOffset
		full.Size = uint32(block.BuffSz)
		return disp.submitFileIO(ctx, d, full)
	default: // None
		return disp.submitFileIO(ctx, d, req)
	}
}

func (disp *Dispatcher) submitFileIO(ctx context.Context, d *vfsreq.Descriptor, req uapi.FileIORequest) error {
	id, err := disp.deps.Transport.Submit(ctx, uapi.KindFileIO, d.Tag, encodeUpcall(req))
	if err != nil {
		disp.failInline(d, submitErrStatus(err))
		return nil
	}
	d.Ops.Primary = id
	return nil
}

// completeFromBlock copies the requested slice out of a valid block into
// the waiter's downcall body and marks it ready for writing (spec.md
// §4.3 "Waiter awakening"). Speculative waiters are skipped by the
// caller before this is invoked.
func (disp *Dispatcher) completeFromBlock(d *vfsreq.Descriptor, block *racache.Block, req uapi.FileIORequest) {
	start := req.Offset - block.FileOffset
	end := start + int64(req.Size)
	if end > int64(block.DataSz) {
		end = int64(block.DataSz)
	}
	var data []byte
	if start < end {
		data = append([]byte(nil), block.Bytes[start:end]...)
	}
	d.Downcall.Status = 0
	d.Downcall.Body = data
	d.HandledInline = true
}

// scheduleSpeculation issues up to readCount-1 phantom reads for the
// blocks following block, per spec.md §4.3 "Speculation". Each phantom
// is tracked only in Dispatcher.phantoms, never in the in-progress
// table, and never produces a downcall.
func (disp *Dispatcher) scheduleSpeculation(ctx context.Context, object uapi.Handle, block *racache.Block, readCount uint32) {
	if readCount <= 1 {
		return
	}
	blockSize := disp.deps.RACache.BlockSize()
	next := block.FileOffset + int64(blockSize)
	offsets := disp.deps.RACache.AlignedOffsets(next, int(readCount-1))

	for _, off := range offsets {
		state, phantomBlock := disp.deps.RACache.Lookup(object, off, uint32(blockSize))
		switch state {
		case racache.Hit, racache.Wait:
			// Already present or already being filled: no work needed.
			continue
		case racache.Read:
			phantom := vfsreq.NewPhantom(uapi.KindFileIO, uapi.FileIORequest{
				Object: object,
				Offset: phantomBlock.FileOffset,
				Size:   uint32(phantomBlock.BuffSz),
			})
			phantom.CacheBlock = phantomBlock
			phantomBlock.Primary = phantom

			id, err := disp.deps.Transport.Submit(ctx, uapi.KindFileIO, 0, encodeUpcall(phantom.Upcall))
			if err != nil {
				disp.deps.RACache.FreeBlock(object, phantomBlock.FileOffset)
				continue
			}
			disp.deps.Logger.Debugf("speculative read corr=%s object=%v offset=%d", phantom.CorrelationID, object, phantomBlock.FileOffset)
			disp.phantoms[id] = phantom
		default: // None: no block available, speculation chain terminates here.
			return
		}
	}
}

// dispatchFileIOX handles vectored I/O (spec.md §4.4, C6): it delegates
// the actual split/submit/join bookkeeping to internal/iox and stores
// the resulting join on the descriptor's cache linkage slot (reusing
// CacheBlock as a generic "extra state" slot, since FileIOX never
// touches racache).
func (disp *Dispatcher) dispatchFileIOX(ctx context.Context, d *vfsreq.Descriptor, cred *credcache.Credential) error {
	req, _ := d.Upcall.(uapi.FileIOXRequest)

	if req.Write {
		disp.deps.RACache.Flush(req.Object)
	}

	join := iox.NewJoin(req.Object, req.Write, req.Segments)
	if err := join.SubmitAll(ctx, disp.deps.Transport, d.Tag); err != nil {
		disp.failInline(d, int32(-unix.EIO))
		return nil
	}
	d.CacheBlock = join
	return nil
}
