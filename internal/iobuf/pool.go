// Package iobuf implements the shared-memory buffer pools the kernel and
// daemon both address by slot index: the I/O pool (read/write payload
// staging) and the Readdir pool (serialized directory pages). The kernel
// picks which slot a given upcall uses; the daemon only ever resolves an
// index to a byte slice for the duration of that one operation and gives
// the slot back when the downcall completes (spec.md §4.5).
//
// Grounded on the teacher's mmapQueues (anonymous, page-rounded mmap for
// I/O buffers the kernel doesn't expose directly) generalized from a
// single flat region to slot-indexed access, since here slot selection
// is the kernel's to make rather than ours to assign round-robin.
package iobuf

import (
	"fmt"
	"os"
)

// Kind distinguishes the two pools spec.md §4.5 names.
type Kind int

const (
	KindIO Kind = iota
	KindReaddir
)

func (k Kind) String() string {
	if k == KindReaddir {
		return "readdir"
	}
	return "io"
}

// Pool is a fixed-size array of equally sized shared-memory slots backed
// by an anonymous mmap region. Index 0..Slots()-1 is stable for the
// pool's lifetime.
type Pool struct {
	kind     Kind
	slotSize int
	slots    int
	mem      []byte
	closer   func() error
}

// New allocates a pool of slots slots, each slotSize bytes, rounded up
// to the host page size as the teacher's mmapQueues does for its
// descriptor array.
func New(kind Kind, slots, slotSize int) (*Pool, error) {
	if slots <= 0 || slotSize <= 0 {
		return nil, fmt.Errorf("iobuf: invalid pool dimensions: slots=%d slotSize=%d", slots, slotSize)
	}

	total := slots * slotSize
	if rem := total % os.Getpagesize(); rem != 0 {
		total += os.Getpagesize() - rem
	}

	mem, closer, err := mmapAnonymous(total)
	if err != nil {
		return nil, fmt.Errorf("iobuf: mmap %s pool: %w", kind, err)
	}

	return &Pool{kind: kind, slotSize: slotSize, slots: slots, mem: mem, closer: closer}, nil
}

// Slots reports the number of addressable slots.
func (p *Pool) Slots() int { return p.slots }

// SlotSize reports the size in bytes of one slot.
func (p *Pool) SlotSize() int { return p.slotSize }

// Kind reports which of the two pools this is.
func (p *Pool) Kind() Kind { return p.kind }

// Slice returns the byte slice backing slot index. The returned slice
// aliases shared memory: callers must not retain it past the lifetime
// of the operation that owns index, since the kernel reclaims the slot
// the moment the matching downcall is written (spec.md §4.5).
func (p *Pool) Slice(index int) ([]byte, error) {
	if index < 0 || index >= p.slots {
		return nil, fmt.Errorf("iobuf: slot index %d out of range [0,%d)", index, p.slots)
	}
	off := index * p.slotSize
	return p.mem[off : off+p.slotSize : off+p.slotSize], nil
}

// Close unmaps the pool's backing memory. Safe to call once.
func (p *Pool) Close() error {
	if p.closer == nil {
		return nil
	}
	err := p.closer()
	p.closer = nil
	return err
}
