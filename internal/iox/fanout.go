// Package iox implements the vectored-I/O fan-out/join described in
// spec.md §4.4 (C6): an iox upcall's (offset,length) trailer is split
// into groups of at most constants.IOXGroupMax pairs, each submitted as
// one RPC sub-operation; completions are joined back into a single
// num_ops/num_incomplete_ops/amt_complete accounting structure.
//
// Grounded on go-ublk's processRequests/handleCompletion batching model
// (internal/queue/runner.go): many outstanding operations funneling
// into one completion-accounting loop, generalized here from one op per
// tag to many sub-ops per tag.
package iox

import (
	"context"
	"fmt"

	"github.com/pvfsclient/pvfsclient/internal/constants"
	"github.com/pvfsclient/pvfsclient/internal/rpc"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// Group is one sub-operation: a contiguous memory request whose size is
// the sum of its segments' lengths, paired with an RPC op id once
// submitted.
type Group struct {
	Segments []uapi.IOXSegment

	submitted   bool
	opID        rpc.OpID
	done        bool
	amtComplete uint32
	status      int32
}

// OpID returns the RPC operation id this group was submitted under.
// Valid only after Join.SubmitAll succeeds.
func (g *Group) OpID() rpc.OpID { return g.opID }

// Join tracks one iox upcall's fan-out across its sub-operations
// (spec.md §4.4 "num_ops"/"num_incomplete_ops"/"amt_complete").
type Join struct {
	Object uapi.Handle
	Write  bool
	Groups []*Group

	NumOps        int
	NumIncomplete int
	AmtComplete   uint32
}

// split partitions segments into chunks of at most groupMax entries,
// preserving order.
func split(segments []uapi.IOXSegment, groupMax int) [][]uapi.IOXSegment {
	if groupMax <= 0 {
		groupMax = constants.IOXGroupMax
	}
	var groups [][]uapi.IOXSegment
	for len(segments) > 0 {
		n := groupMax
		if n > len(segments) {
			n = len(segments)
		}
		groups = append(groups, segments[:n])
		segments = segments[n:]
	}
	return groups
}

// NewJoin partitions segments into at most constants.IOXGroupMax-sized
// groups and returns the join structure ready for SubmitAll.
func NewJoin(object uapi.Handle, write bool, segments []uapi.IOXSegment) *Join {
	chunks := split(segments, constants.IOXGroupMax)
	groups := make([]*Group, len(chunks))
	for i, c := range chunks {
		groups[i] = &Group{Segments: c}
	}
	return &Join{
		Object:        object,
		Write:         write,
		Groups:        groups,
		NumOps:        len(groups),
		NumIncomplete: len(groups),
	}
}

// SubmitAll submits every group as one FileIOX RPC call. If any
// submission fails, groups already submitted are cancelled and the
// error is returned so the caller can fail the whole descriptor
// (spec.md §4.4 "If any sub-operation submission fails, already-
// submitted ones are cancelled and the entire descriptor fails.").
func (j *Join) SubmitAll(ctx context.Context, tp rpc.Transport, tag uapi.Tag) error {
	for i, g := range j.Groups {
		req := uapi.FileIOXRequest{Object: j.Object, Write: j.Write, Segments: g.Segments}
		id, err := tp.Submit(ctx, uapi.KindFileIOX, tag, encodeGroup(req))
		if err != nil {
			j.cancelSubmitted(tp, i)
			return fmt.Errorf("iox: submit group %d: %w", i, err)
		}
		g.opID = id
		g.submitted = true
	}
	return nil
}

func (j *Join) cancelSubmitted(tp rpc.Transport, upTo int) {
	for i := 0; i < upTo; i++ {
		if j.Groups[i].submitted {
			_ = tp.Cancel(j.Groups[i].opID)
		}
	}
}

// groupByOpID finds the group a completion belongs to.
func (j *Join) groupByOpID(id rpc.OpID) *Group {
	for _, g := range j.Groups {
		if g.submitted && g.opID == id {
			return g
		}
	}
	return nil
}

// Complete records one sub-operation's completion. It reports whether
// every sub-operation has now completed, at which point the caller
// proceeds to downcall assembly (spec.md §4.4 "A completion with no
// remaining incomplete sub-operations proceeds to downcall assembly.").
func (j *Join) Complete(id rpc.OpID, amt uint32, status int32) (allDone bool) {
	g := j.groupByOpID(id)
	if g == nil || g.done {
		return j.NumIncomplete == 0
	}
	g.done = true
	g.amtComplete = amt
	g.status = status
	j.AmtComplete += amt
	j.NumIncomplete--
	return j.NumIncomplete == 0
}

// FailedStatus returns the first non-zero status among completed
// groups, or 0 if every completed group succeeded so far.
func (j *Join) FailedStatus() int32 {
	for _, g := range j.Groups {
		if g.done && g.status != 0 {
			return g.status
		}
	}
	return 0
}

// encodeGroup is a placeholder wire encoding for a FileIOX sub-request;
// the concrete RPC wire format to the metadata/storage cluster is out
// of scope (spec.md §1).
func encodeGroup(req uapi.FileIOXRequest) []byte {
	return nil
}
