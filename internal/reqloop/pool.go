// Package reqloop implements the main request loop (C8), remount
// coordinator (C9), cancellation pathway (C10), cache-timeout reset
// (C11), and signal/shutdown handling (C12): the glue that turns a
// character device's upcall stream into dispatched operations and
// written-back downcalls.
//
// Grounded on go-ublk's Runner (internal/queue/runner.go): Prime/ioLoop's
// device-read/dispatch/completion-poll/write-back/repost cycle,
// generalized from a fixed-size block-I/O command ring tied to a single
// io_uring instance to a plain descriptor free list plus this daemon's
// non-blocking rpc.Transport, since the device protocol here (simple
// read/write syscalls against a character device) doesn't compose with
// an io_uring completion queue the way ublk's own FETCH_REQ/
// COMMIT_AND_FETCH_REQ commands do.
package reqloop

import "github.com/pvfsclient/pvfsclient/internal/vfsreq"

// descriptorPool is the fixed-size free list of preallocated request
// descriptors the main loop cycles through unexpected-receive, dispatch,
// and repost (spec.md §3 "Request descriptor", §4.1 "the ring of
// descriptors never grows"). Touched only from the main-loop goroutine,
// so it needs no locking (spec.md §5).
type descriptorPool struct {
	free []*vfsreq.Descriptor
}

func newDescriptorPool(count int) *descriptorPool {
	if count <= 0 {
		count = 1
	}
	p := &descriptorPool{free: make([]*vfsreq.Descriptor, 0, count)}
	for i := 0; i < count; i++ {
		p.free = append(p.free, &vfsreq.Descriptor{})
	}
	return p
}

// acquire pops one descriptor for a freshly classified upcall. It
// reports false if the pool is exhausted, which the caller treats as
// kernel-visible back-pressure (spec.md §4.1 "under pressure the kernel
// sees back-pressure via unserviced upcalls timing out").
func (p *descriptorPool) acquire() (*vfsreq.Descriptor, bool) {
	n := len(p.free)
	if n == 0 {
		return nil, false
	}
	d := p.free[n-1]
	p.free = p.free[:n-1]
	return d, true
}

// release wipes d and returns it to the pool, ready to serve the next
// unexpected receive (spec.md §4.8 "the descriptor is then wiped to zero
// and submitted again as an unexpected receive").
func (p *descriptorPool) release(d *vfsreq.Descriptor) {
	d.Reset()
	p.free = append(p.free, d)
}

func (p *descriptorPool) available() int { return len(p.free) }
