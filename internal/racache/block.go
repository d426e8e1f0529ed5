// Package racache implements the readahead cache (spec.md §3, §4.3,
// C4): a bounded pool of fixed-size blocks keyed by (object,offset),
// with waiter coalescing, speculative prefetch, cancellation, and
// writer-triggered invalidation. It is the single most subtle
// subsystem in this daemon and is only ever touched from the main-loop
// goroutine (spec.md §5), so it needs no internal locking.
//
// Grounded on the teacher's per-tag state machine (TagState enum plus
// per-tag mutex in internal/queue/runner.go) for the block state shape,
// generalized from per-tag slots to content-addressed blocks, and on
// go-ublk's GetBuffer/PutBuffer pool idiom (internal/queue/pool.go) for
// block buffer reuse.
package racache

import "github.com/pvfsclient/pvfsclient/internal/uapi"

// LookupState is the result of probing the cache for (object,offset)
// (spec.md §4.3 "Lookup states").
type LookupState int

const (
	// None: no block could be allocated; caller falls through to an
	// uncached read.
	None LookupState = iota
	// Hit: a valid block fully covers the request.
	Hit
	// Wait: a block exists and is being filled by another reader.
	Wait
	// Read: a fresh block was allocated; the caller must post a
	// full-block read.
	Read
)

func (s LookupState) String() string {
	switch s {
	case Hit:
		return "hit"
	case Wait:
		return "wait"
	case Read:
		return "read"
	default:
		return "none"
	}
}

// Waiter is the minimal shape racache needs from a request descriptor:
// enough to track FIFO order and whether it is speculative, without
// importing internal/vfsreq's full Descriptor (which already references
// this package's Block type via its opaque CacheBlock field — importing
// vfsreq here would cycle).
type Waiter interface {
	IsSpeculativeRead() bool
}

// Block is a fixed-size buffer holding a contiguous file region
// (spec.md §3 "Racache block").
type Block struct {
	Bytes      []byte
	BuffID     int
	FileOffset int64
	FileHandle uapi.Handle
	BuffSz     int
	DataSz     int // actual bytes filled; < BuffSz indicates EOF
	Valid      bool
	ReadCnt    uint32
	Waiters    []Waiter
	Primary    Waiter
	BeingFreed bool
	Resizing   bool
}

// Covers reports whether the block, in its current state, can satisfy a
// read of length bytes starting at offset without touching the RPC
// layer.
func (b *Block) Covers(offset int64, length uint32) bool {
	if !b.Valid {
		return false
	}
	if offset < b.FileOffset {
		return false
	}
	end := offset - b.FileOffset + int64(length)
	return end <= int64(b.DataSz)
}

// Pinned reports whether eviction must skip this block (spec.md §4.3
// "Eviction": "a block with any waiter or in state Read is pinned").
func (b *Block) Pinned() bool {
	return !b.Valid || len(b.Waiters) > 0
}

// EOF reports whether the block's fill came up short of a full block,
// meaning the file ends within it.
func (b *Block) EOF() bool {
	return b.Valid && b.DataSz < b.BuffSz
}
