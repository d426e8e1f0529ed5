// Package vfsreq defines the request descriptor (spec.md §3 "Request
// descriptor") and the fixed-size ring of descriptors the main loop
// cycles through unexpected-receive, dispatch, and repost. Grounded on
// the teacher's per-tag parallel arrays (tagStates/tagMutexes/ioCmds in
// internal/queue/runner.go), generalized from a flat int-indexed array
// of primitive fields to a richer struct per slot, since here a slot
// carries an arbitrary per-kind payload rather than one fixed ublk
// command shape.
package vfsreq

import (
	"time"

	"github.com/rs/xid"

	"github.com/pvfsclient/pvfsclient/internal/rpc"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// OpSet tracks the RPC operation(s) a descriptor has outstanding.
// Primary is the lone op for most kinds; Sub/Remaining are only
// populated for vectored I/O fan-out (internal/iox).
type OpSet struct {
	Primary   rpc.OpID
	Sub       []rpc.OpID
	Remaining int
}

// Downcall is the per-kind response under construction. handlers in
// internal/dispatch populate Status and Body; the fixed header fields
// live alongside it.
type Downcall struct {
	Status     int32
	Body       any
	TrailerBuf []byte // slice into the readdir or I/O shared-buffer pool
}

// Descriptor is one slot of the ring: a single upcall's lifetime from
// unexpected-receive through downcall write and repost (spec.md §3).
// Its identity (the pointer) is stable for the process lifetime; Reset
// wipes its contents for reuse (spec.md §8 property 7, repost
// idempotence).
type Descriptor struct {
	Tag  uapi.Tag
	Kind uapi.Kind

	// Uid/Gid/Pid come straight off the upcall header (uapi.UpcallHeader)
	// at classify time; handlers in internal/dispatch read them directly
	// rather than re-parsing the per-kind payload for credential lookup.
	Uid uint32
	Gid uint32
	Pid uint32

	Upcall   any // per-kind immutable input, set on classify
	Downcall Downcall

	// State flags (spec.md §3).
	Unexpected    bool
	WasCancelled  bool
	HandledInline bool

	// Continuation holds handler-private state for multi-step completion
	// flows (currently only the Create/EEXIST recovery lookup in
	// internal/dispatch), so a second RPC call can be chained under the
	// same tag without the in-progress table noticing anything unusual.
	Continuation any

	Ops OpSet

	// Cache linkage for readahead-eligible FileIO reads. CacheBlock is
	// opaque here (internal/racache owns the concrete type) to avoid an
	// import cycle between vfsreq and racache, which itself references
	// *Descriptor for its waiter lists.
	CacheBlock    any
	IsSpeculative bool

	Dispatched time.Time

	// CorrelationID is an internal-only id for log correlation of
	// speculative/phantom reads, which carry no kernel tag.
	CorrelationID xid.ID
}

// Reset wipes a descriptor back to its just-allocated state so it can be
// reposted as an unexpected receive with no references to prior
// operation state.
func (d *Descriptor) Reset() {
	d.Tag = 0
	d.Kind = 0
	d.Uid = 0
	d.Gid = 0
	d.Pid = 0
	d.Upcall = nil
	d.Downcall = Downcall{}
	d.Unexpected = true
	d.WasCancelled = false
	d.HandledInline = false
	d.Continuation = nil
	d.Ops = OpSet{}
	d.CacheBlock = nil
	d.IsSpeculative = false
	d.Dispatched = time.Time{}
	d.CorrelationID = xid.ID{}
}

// IsSpeculativeRead satisfies internal/racache.Waiter so a *Descriptor
// can sit directly on a Block's waiter list without racache needing to
// import this package (which would cycle, since Descriptor.CacheBlock
// already references a *racache.Block).
func (d *Descriptor) IsSpeculativeRead() bool { return d.IsSpeculative }

// NewPhantom builds a descriptor-shaped record for a speculative
// readahead fill: it carries no kernel tag, is never inserted into the
// in-progress table, and never produces a downcall (spec.md §4.3).
func NewPhantom(kind uapi.Kind, upcall any) *Descriptor {
	return &Descriptor{
		Kind:          kind,
		Upcall:        upcall,
		IsSpeculative: true,
		Dispatched:    time.Now(),
		CorrelationID: xid.New(),
	}
}
