package reqloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pvfsclient/pvfsclient/internal/device"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// remountState is the shared tri-state spec.md §4.6 names: Not-Completed
// while the helper's ioctl is still outstanding, then Completed or
// Failed once it returns.
type remountState int32

const (
	remountNotCompleted remountState = iota
	remountCompleted
	remountFailed
)

// remountCoordinator implements C9: the cooperative handshake between
// the main loop and a secondary execution context performing the
// blocking remount ioctl (spec.md §4.6). Generalized from go-ublk's
// Start/ioLoop channel-based ready handshake (internal/queue/runner.go)
// to the mutex-based gate spec.md specifies: a mutex initially held by
// the main loop, released once its initial batch of unexpected receives
// is posted, at which point the helper's Lock succeeds and it may run
// the ioctl.
type remountCoordinator struct {
	gate  sync.Mutex
	state atomic.Int32
}

func newRemountCoordinator() *remountCoordinator {
	c := &remountCoordinator{}
	c.gate.Lock()
	return c
}

// releaseGate lets the helper's ioctl proceed, once the main loop has
// posted its initial batch of unexpected receives (spec.md §4.6 "the
// main loop unlocks it only after posting its initial batch").
func (c *remountCoordinator) releaseGate() {
	c.gate.Unlock()
}

// run is the helper context's entry point (spec.md §5 "one helper
// context for the blocking remount ioctl"): it blocks on the gate, then
// performs the blocking ioctl and records the outcome.
func (c *remountCoordinator) run(ctx context.Context, dev device.Device) {
	c.gate.Lock()
	defer c.gate.Unlock()

	if err := dev.Remount(ctx); err != nil {
		c.state.Store(int32(remountFailed))
		return
	}
	c.state.Store(int32(remountCompleted))
}

func (c *remountCoordinator) State() remountState {
	return remountState(c.state.Load())
}

// admitsDuringMount reports whether kind may proceed while the remount
// ioctl is still outstanding (spec.md §4.6 "the main loop discards any
// upcall other than Mount, Cancel, or Features with a retry signal").
func admitsDuringMount(kind uapi.Kind) bool {
	return kind == uapi.KindMount || kind == uapi.KindCancel || kind == uapi.KindFeatures
}
