// Package inflight implements the in-progress table (spec.md §3, §4.1
// C2): a tag→descriptor map the main loop consults to classify
// completions and detect kernel retries. It is only ever touched from
// the single main-loop goroutine (spec.md §5 "not accessed
// concurrently"), so it needs no locking — generalized from the
// teacher's per-tag tagStates array (internal/queue/runner.go), which
// serves the same "is this tag already owned" question over a small
// dense integer range, to a map since kernel tags here are opaque
// 64-bit values.
package inflight

import (
	"errors"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
	"github.com/pvfsclient/pvfsclient/internal/vfsreq"
)

// ErrDuplicateTag is returned by Insert when tag is already present: the
// kernel has retried an upcall whose original is still outstanding
// (spec.md §7 "Duplicate-tag").
var ErrDuplicateTag = errors.New("inflight: duplicate tag")

// Table maps outstanding upcall tags to the descriptor servicing them.
type Table struct {
	m map[uapi.Tag]*vfsreq.Descriptor
}

// New returns an empty table.
func New() *Table {
	return &Table{m: make(map[uapi.Tag]*vfsreq.Descriptor)}
}

// Insert records tag as owned by d. It fails with ErrDuplicateTag if tag
// is already present; the caller discards the new upcall rather than
// overwriting the original (spec.md §7).
func (t *Table) Insert(tag uapi.Tag, d *vfsreq.Descriptor) error {
	if _, exists := t.m[tag]; exists {
		return ErrDuplicateTag
	}
	t.m[tag] = d
	return nil
}

// Lookup returns the descriptor owning tag, if any.
func (t *Table) Lookup(tag uapi.Tag) (*vfsreq.Descriptor, bool) {
	d, ok := t.m[tag]
	return d, ok
}

// Remove atomically removes tag from the table, returning the
// descriptor that owned it. It is the caller's responsibility to call
// this exactly once per tag, at downcall-write time (spec.md §8
// property 1).
func (t *Table) Remove(tag uapi.Tag) (*vfsreq.Descriptor, bool) {
	d, ok := t.m[tag]
	if ok {
		delete(t.m, tag)
	}
	return d, ok
}

// Len reports the number of outstanding tags, for metrics and tests.
func (t *Table) Len() int { return len(t.m) }
