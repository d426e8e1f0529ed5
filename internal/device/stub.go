package device

import (
	"context"
	"sync"

	"github.com/pvfsclient/pvfsclient/internal/iobuf"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// Stub is an in-memory Device double for tests and non-Linux
// development: upcalls are pushed by the test via Push, and downcalls
// written by the code under test are recorded for assertions.
type Stub struct {
	mu        sync.Mutex
	pending   []Upcall
	wake      chan struct{}
	Downcalls []uapi.DowncallHeader
	RemountErr error
	closed    bool
}

// NewStub constructs an empty Stub.
func NewStub() *Stub {
	return &Stub{wake: make(chan struct{}, 1)}
}

// Push enqueues an upcall as if the kernel had posted it.
func (s *Stub) Push(u Upcall) {
	s.mu.Lock()
	s.pending = append(s.pending, u)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Stub) ReadUnexpected(ctx context.Context) (Upcall, error) {
	for {
		s.mu.Lock()
		if len(s.pending) > 0 {
			u := s.pending[0]
			s.pending = s.pending[1:]
			s.mu.Unlock()
			return u, nil
		}
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return Upcall{}, ctx.Err()
		case <-s.wake:
		}
	}
}

func (s *Stub) WriteDowncall(header uapi.DowncallHeader) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Downcalls = append(s.Downcalls, header)
	return nil
}

func (s *Stub) MapPool(kind iobuf.Kind, slots, slotSize int) (*iobuf.Pool, error) {
	return iobuf.New(kind, slots, slotSize)
}

func (s *Stub) Remount(ctx context.Context) error {
	return s.RemountErr
}

func (s *Stub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Device = (*Stub)(nil)
