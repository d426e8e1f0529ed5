package reqloop

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pvfsclient/pvfsclient/internal/credcache"
	"github.com/pvfsclient/pvfsclient/internal/device"
	"github.com/pvfsclient/pvfsclient/internal/logging"
	"github.com/pvfsclient/pvfsclient/internal/perfcounter"
	"github.com/pvfsclient/pvfsclient/internal/racache"
	"github.com/pvfsclient/pvfsclient/internal/rpc/rpctest"
	"github.com/pvfsclient/pvfsclient/internal/testsupport"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

func newTestLoop(t *testing.T) (*Loop, *device.Stub, *rpctest.Fake) {
	t.Helper()
	creds, err := credcache.New(testsupport.StubIssuer{}, time.Minute, time.Second, 16)
	require.NoError(t, err)
	logger, err := logging.NewLogger(&logging.Config{Output: io.Discard})
	require.NoError(t, err)

	stub := device.NewStub()
	tp := rpctest.New()
	cfg := DefaultConfig()
	cfg.DescCount = 4

	l := NewLoop(Deps{
		Device:    stub,
		Transport: tp,
		Creds:     creds,
		RACache:   racache.New(4096, 4),
		Logger:    logger,
		Config:    cfg,
	})
	return l, stub, tp
}

func TestLoopDispatchesLookupAndWritesDowncall(t *testing.T) {
	l, stub, tp := newTestLoop(t)
	tp.Responder = func(kind uapi.Kind, tag uapi.Tag, payload []byte) (int32, []byte) {
		return 0, []byte("ok")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	require.Eventually(t, func() bool {
		return l.remount.State() == remountCompleted
	}, time.Second, 2*time.Millisecond)

	stub.Push(device.Upcall{Header: uapi.UpcallHeader{Tag: 1, Kind: uapi.KindLookup}})

	require.Eventually(t, func() bool {
		return len(stub.Downcalls) >= 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	assert.Equal(t, 0, l.inflight.Len())
}

func TestLoopPoolExhaustionWritesRetry(t *testing.T) {
	l, stub, _ := newTestLoop(t)
	l.remount.state.Store(int32(remountCompleted))

	ctx := context.Background()
	for i := 0; i < l.pool.available()+2; i++ {
		tag := uapi.Tag(i + 1)
		l.handleUpcall(ctx, device.Upcall{Header: uapi.UpcallHeader{Tag: tag, Kind: uapi.KindGetattr}})
	}

	require.NotEmpty(t, stub.Downcalls)
	last := stub.Downcalls[len(stub.Downcalls)-1]
	assert.Equal(t, int32(-unix.EAGAIN), last.Status)
}

func TestLoopDuplicateTagDiscardedWithRetry(t *testing.T) {
	l, stub, _ := newTestLoop(t)
	l.remount.state.Store(int32(remountCompleted))
	ctx := context.Background()

	l.handleUpcall(ctx, device.Upcall{Header: uapi.UpcallHeader{Tag: 7, Kind: uapi.KindGetattr}})
	require.Equal(t, 1, l.inflight.Len())

	before := len(stub.Downcalls)
	l.handleUpcall(ctx, device.Upcall{Header: uapi.UpcallHeader{Tag: 7, Kind: uapi.KindGetattr}})

	assert.Equal(t, 1, l.inflight.Len())
	require.Len(t, stub.Downcalls, before+1)
	assert.Equal(t, int32(-unix.EAGAIN), stub.Downcalls[len(stub.Downcalls)-1].Status)
}

func TestLoopPendingMountGateDiscardsNonAdmittedKinds(t *testing.T) {
	l, stub, _ := newTestLoop(t)
	ctx := context.Background()

	l.handleUpcall(ctx, device.Upcall{Header: uapi.UpcallHeader{Tag: 1, Kind: uapi.KindGetattr}})

	assert.Equal(t, 0, l.inflight.Len())
	require.Len(t, stub.Downcalls, 1)
	assert.Equal(t, int32(-unix.EAGAIN), stub.Downcalls[0].Status)
}

func TestLoopPendingMountGateAdmitsMount(t *testing.T) {
	l, _, _ := newTestLoop(t)
	ctx := context.Background()

	l.handleUpcall(ctx, device.Upcall{Header: uapi.UpcallHeader{Tag: 1, Kind: uapi.KindMount}})

	assert.Equal(t, 1, l.inflight.Len())
}

// TestCompleteAndFinishRecordsPerfCounterObservation confirms perfCtr is
// genuinely exercised on the completion path, not merely accepted and
// ignored.
func TestCompleteAndFinishRecordsPerfCounterObservation(t *testing.T) {
	creds, err := credcache.New(testsupport.StubIssuer{}, time.Minute, time.Second, 16)
	require.NoError(t, err)
	logger, err := logging.NewLogger(&logging.Config{Output: io.Discard})
	require.NoError(t, err)

	perf := perfcounter.New(prometheus.NewRegistry(), 4)

	l := NewLoop(Deps{
		Device:    device.NewStub(),
		Transport: rpctest.New(),
		Creds:     creds,
		RACache:   racache.New(4096, 4),
		Logger:    logger,
		Config:    DefaultConfig(),
		PerfCtr:   perf,
	})

	d, ok := l.pool.acquire()
	require.True(t, ok)
	d.Tag = 9
	d.Kind = uapi.KindGetattr
	d.Dispatched = time.Now().Add(-time.Millisecond)
	require.NoError(t, l.inflight.Insert(d.Tag, d))

	l.completeAndFinish(d)

	perf.Sample(time.Now())
	hist := perf.History()
	require.NotEmpty(t, hist)
	last := hist[len(hist)-1]
	assert.Equal(t, uint64(1), last.Categories[perfcounter.CategoryMetadata].Ops)
}

func TestCompleteAndFinishReleasesDescriptorForReuse(t *testing.T) {
	l, _, _ := newTestLoop(t)
	before := l.pool.available()

	d, ok := l.pool.acquire()
	require.True(t, ok)
	assert.Equal(t, before-1, l.pool.available())

	d.Tag = 42
	require.NoError(t, l.inflight.Insert(d.Tag, d))

	l.completeAndFinish(d)

	assert.Equal(t, before, l.pool.available())
	_, stillThere := l.inflight.Lookup(42)
	assert.False(t, stillThere)
}
