package dispatch

import (
	"context"

	"golang.org/x/sys/unix"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
	"github.com/pvfsclient/pvfsclient/internal/vfsreq"
)

// Canceller is the main loop's in-progress-table view, used only by the
// Cancel inline kind (spec.md §5 "Cancellation semantics"). The
// dispatcher cannot own this itself: cancelling a target descriptor
// means looking it up by kernel tag in internal/reqloop's in-progress
// table, which this package does not hold, and mutating its
// was_cancelled flag directly.
type Canceller interface {
	// Cancel looks up targetTag, cancels its outstanding RPC op (and
	// frees any racache block it holds), marks it was_cancelled, and
	// reports whether a matching in-progress descriptor was found.
	Cancel(targetTag uapi.Tag) (found bool)
}

// PerfSnapshotter produces the encoded response body for an inline
// PerfCount upcall. internal/perfcounter implements this.
type PerfSnapshotter interface {
	Snapshot() []byte
}

// dispatchInline completes the kinds that never touch the RPC layer
// (spec.md §4.2 "Inline-only kinds"): their downcall is written
// synchronously and the descriptor is reposted without ever entering
// the in-progress table.
func (disp *Dispatcher) dispatchInline(ctx context.Context, d *vfsreq.Descriptor) error {
	switch d.Kind {
	case uapi.KindUmount:
		disp.completeInline(d, 0, nil)
	case uapi.KindFeatures:
		disp.completeInline(d, 0, nil)
	case uapi.KindParam:
		disp.completeInline(d, 0, nil)
	case uapi.KindFsKey:
		disp.completeInline(d, 0, nil)
	case uapi.KindRACacheFlush:
		disp.dispatchRACacheFlushInline(d)
	case uapi.KindPerfCount:
		disp.dispatchPerfCountInline(d)
	case uapi.KindCancel:
		disp.dispatchCancelInline(d)
	default:
		disp.deps.Logger.Warnf("%v: kind=%v tag=%v", errUnknownKind, d.Kind, d.Tag)
		disp.completeInline(d, int32(-unix.ENOSYS), nil)
	}
	return nil
}

func (disp *Dispatcher) completeInline(d *vfsreq.Descriptor, status int32, body any) {
	d.HandledInline = true
	d.Downcall.Status = status
	d.Downcall.Body = body
}

func (disp *Dispatcher) dispatchRACacheFlushInline(d *vfsreq.Descriptor) {
	if obj, ok := objectOf(d.Upcall); ok && disp.deps.RACache != nil {
		disp.deps.RACache.Flush(obj)
	}
	disp.completeInline(d, 0, nil)
}

func (disp *Dispatcher) dispatchPerfCountInline(d *vfsreq.Descriptor) {
	if disp.deps.PerfCounters == nil {
		disp.completeInline(d, 0, nil)
		return
	}
	disp.completeInline(d, 0, disp.deps.PerfCounters.Snapshot())
}

// dispatchCancelInline implements spec.md §5: the target is cancelled
// via the Canceller, and Cancel's own downcall always carries EINTR
// regardless of whether a matching target was found (an already-
// completed target is not an error for the canceller).
func (disp *Dispatcher) dispatchCancelInline(d *vfsreq.Descriptor) {
	req, _ := d.Upcall.(uapi.CancelRequest)
	if disp.deps.Canceller != nil {
		disp.deps.Canceller.Cancel(req.TargetTag)
	}
	disp.completeInline(d, int32(-unix.EINTR), nil)
}
