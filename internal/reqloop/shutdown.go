package reqloop

import (
	"os"
	"os/signal"
	"syscall"
)

// shutdownSignals are the signals spec.md §6 "Signals" names as
// graceful-stop triggers. SEGV/ABRT are deliberately not included here:
// they are left to the Go runtime's own crash handler, which already
// prints a goroutine dump and aborts, matching spec.md's "backtrace
// handler then abort" for those two.
var shutdownSignals = []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGPIPE, syscall.SIGILL, syscall.SIGTERM}

// watchSignals installs a handler for the graceful-stop signal set
// (spec.md §6), grounded on cmd/ublk-mem/main.go's signal.Notify +
// cancel shape, generalized from "cancel a context" to "flip a stop flag
// the cooperative loop polls once per iteration" since a mid-RPC context
// cancellation here would orphan in-progress descriptors instead of
// letting them drain.
func (l *Loop) watchSignals() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, shutdownSignals...)
	go func() {
		sig := <-ch
		l.triggerShutdown(sig)
	}()
}

func (l *Loop) triggerShutdown(sig os.Signal) {
	if s, ok := sig.(syscall.Signal); ok {
		l.shutdownSignal.Store(int32(s))
	}
	l.stopping.Store(true)
	l.logger.Infof("received %v, draining", sig)
}

func (l *Loop) stoppingNow() bool { return l.stopping.Load() }

// reraise sends the triggering signal to the process group after the
// main loop finishes draining, so a supervisor observes the same
// termination signal the daemon received (spec.md §6 "Signals").
func (l *Loop) reraise() {
	sig := syscall.Signal(l.shutdownSignal.Load())
	if sig == 0 {
		return
	}
	signal.Reset(sig)
	_ = syscall.Kill(0, sig)
}
