// Package rpctest provides a deterministic in-memory rpc.Transport for
// every other package's tests. It never touches io_uring or the network:
// submissions are queued in-process and resolved either automatically
// (via a Responder) or by the test explicitly calling Resolve.
package rpctest

import (
	"context"
	"sync"
	"time"

	"github.com/pvfsclient/pvfsclient/internal/rpc"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// Responder computes a Completion for a submitted op. Tests that don't
// need scripted responses can leave Fake.Responder nil and instead call
// Resolve directly.
type Responder func(kind uapi.Kind, tag uapi.Tag, payload []byte) (status int32, respPayload []byte)

// pending tracks one submitted, not-yet-completed op.
type pending struct {
	kind    uapi.Kind
	tag     uapi.Tag
	payload []byte
	cancel  bool
}

// Fake is a scriptable rpc.Transport. The zero value is ready to use.
type Fake struct {
	Responder Responder

	mu        sync.Mutex
	nextID    rpc.OpID
	pending   map[rpc.OpID]pending
	ready     []rpc.Completion
	closed    bool
	submitErr error // when set, Submit always returns this error

	SubmitCalls int
	CancelCalls int
}

// New constructs an empty Fake transport.
func New() *Fake {
	return &Fake{pending: make(map[rpc.OpID]pending)}
}

// SetSubmitError makes every subsequent Submit call fail with err. Pass
// nil to clear it. Used to exercise dispatch's submission-failure path.
func (f *Fake) SetSubmitError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitErr = err
}

func (f *Fake) Submit(ctx context.Context, kind uapi.Kind, tag uapi.Tag, payload []byte) (rpc.OpID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SubmitCalls++
	if f.submitErr != nil {
		return 0, f.submitErr
	}
	if f.closed {
		return 0, rpc.ErrQueueFull
	}

	f.nextID++
	id := f.nextID
	f.pending[id] = pending{kind: kind, tag: tag, payload: payload}

	if f.Responder != nil {
		status, resp := f.Responder(kind, tag, payload)
		delete(f.pending, id)
		f.ready = append(f.ready, rpc.Completion{ID: id, Tag: tag, Status: status, Payload: resp})
	}

	return id, nil
}

func (f *Fake) Cancel(id rpc.OpID) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.CancelCalls++
	p, ok := f.pending[id]
	if !ok {
		return nil
	}
	p.cancel = true
	f.pending[id] = p
	return nil
}

// Resolve completes a still-pending op with the given status/payload. It
// is the primary way a test drives the fake when no Responder is set.
func (f *Fake) Resolve(id rpc.OpID, status int32, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, ok := f.pending[id]
	if !ok {
		return
	}
	delete(f.pending, id)
	f.ready = append(f.ready, rpc.Completion{ID: id, Tag: p.tag, Status: status, Payload: payload})
}

// Pending reports whether id is still awaiting resolution, and if so
// whether Cancel has been called on it.
func (f *Fake) Pending(id rpc.OpID) (outstanding, cancelRequested bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.pending[id]
	return ok, ok && p.cancel
}

func (f *Fake) TestAny(ctx context.Context, max int, timeout time.Duration) ([]rpc.Completion, error) {
	f.mu.Lock()
	if len(f.ready) > 0 {
		n := max
		if n <= 0 || n > len(f.ready) {
			n = len(f.ready)
		}
		out := make([]rpc.Completion, n)
		copy(out, f.ready[:n])
		f.ready = f.ready[n:]
		f.mu.Unlock()
		return out, nil
	}
	f.mu.Unlock()

	if timeout <= 0 {
		return nil, nil
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.C:
		return nil, nil
	}
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

var _ rpc.Transport = (*Fake)(nil)
