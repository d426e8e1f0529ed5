package reqloop

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/pvfsclient/pvfsclient/internal/constants"
	"github.com/pvfsclient/pvfsclient/internal/credcache"
	"github.com/pvfsclient/pvfsclient/internal/device"
	"github.com/pvfsclient/pvfsclient/internal/iox"
	"github.com/pvfsclient/pvfsclient/internal/logging"
	"github.com/pvfsclient/pvfsclient/internal/racache"
	"github.com/pvfsclient/pvfsclient/internal/rpc/rpctest"
	"github.com/pvfsclient/pvfsclient/internal/testsupport"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
	"github.com/pvfsclient/pvfsclient/internal/vfsreq"
)

func newCancelTestLoop(t *testing.T) (*Loop, *rpctest.Fake) {
	t.Helper()
	creds, err := credcache.New(testsupport.StubIssuer{}, time.Minute, time.Second, 16)
	require.NoError(t, err)
	logger, err := logging.NewLogger(&logging.Config{Output: io.Discard})
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.DescCount = 8
	l := NewLoop(Deps{
		Device:    device.NewStub(),
		Transport: rpctest.New(),
		Creds:     creds,
		RACache:   racache.New(4096, 4),
		Logger:    logger,
		Config:    cfg,
	})
	return l, l.transport.(*rpctest.Fake)
}

func TestCancelUnknownTagReportsNotFound(t *testing.T) {
	l, _ := newCancelTestLoop(t)
	found := l.Cancel(999)
	assert.False(t, found)
}

func TestCancelNonCancellableKindIsNoop(t *testing.T) {
	l, _ := newCancelTestLoop(t)
	d := &vfsreq.Descriptor{Tag: 1, Kind: uapi.KindGetattr}
	require.NoError(t, l.inflight.Insert(d.Tag, d))

	found := l.Cancel(1)

	assert.False(t, found)
	_, stillThere := l.inflight.Lookup(1)
	assert.True(t, stillThere)
}

func TestCancelPrimaryReaderFreesBlockAndRepostsNonSpeculativeWaiters(t *testing.T) {
	l, tp := newCancelTestLoop(t)

	primary := &vfsreq.Descriptor{Tag: 1, Kind: uapi.KindFileIO}
	waiter := &vfsreq.Descriptor{Tag: 2, Kind: uapi.KindFileIO}
	spec := vfsreq.NewPhantom(uapi.KindFileIO, uapi.FileIORequest{})

	block := &racache.Block{FileHandle: 5, FileOffset: 0, BuffSz: 4096}
	block.Primary = primary
	block.AddWaiter(waiter)
	block.AddWaiter(spec)

	primary.CacheBlock = block
	primary.Ops.Primary, _ = tp.Submit(context.Background(), uapi.KindFileIO, 1, nil)

	require.NoError(t, l.inflight.Insert(primary.Tag, primary))
	require.NoError(t, l.inflight.Insert(waiter.Tag, waiter))

	found := l.Cancel(1)

	require.True(t, found)
	assert.True(t, primary.WasCancelled)
	assert.Equal(t, int32(-unix.ETIMEDOUT), waiter.Downcall.Status)

	_, primaryStillThere := l.inflight.Lookup(1)
	assert.False(t, primaryStillThere)
	_, waiterStillThere := l.inflight.Lookup(2)
	assert.False(t, waiterStillThere)

	_, cancelRequested := tp.Pending(primary.Ops.Primary)
	assert.True(t, cancelRequested)
}

func TestCancelWaiterOnlyRemovesFromWaiterListWithoutTouchingBlock(t *testing.T) {
	l, _ := newCancelTestLoop(t)

	primary := &vfsreq.Descriptor{Tag: 1, Kind: uapi.KindFileIO}
	waiter := &vfsreq.Descriptor{Tag: 2, Kind: uapi.KindFileIO}

	block := &racache.Block{FileHandle: 5, FileOffset: 0, BuffSz: 4096}
	block.Primary = primary
	block.AddWaiter(waiter)

	waiter.CacheBlock = block
	require.NoError(t, l.inflight.Insert(waiter.Tag, waiter))

	found := l.Cancel(2)

	require.True(t, found)
	assert.True(t, waiter.WasCancelled)
	assert.Empty(t, block.Waiters)
	assert.False(t, block.Valid)
}

func TestCancelFileIOXCancelsEveryGroup(t *testing.T) {
	l, tp := newCancelTestLoop(t)

	segs := make([]uapi.IOXSegment, constants.IOXGroupMax+1)
	for i := range segs {
		segs[i] = uapi.IOXSegment{Offset: int64(i) * 4096, Length: 4096}
	}
	join := iox.NewJoin(5, false, segs)
	require.Len(t, join.Groups, 2)
	require.NoError(t, join.SubmitAll(context.Background(), tp, 1))

	d := &vfsreq.Descriptor{Tag: 1, Kind: uapi.KindFileIOX, CacheBlock: join}
	require.NoError(t, l.inflight.Insert(d.Tag, d))

	found := l.Cancel(1)

	require.True(t, found)
	assert.Equal(t, 2, tp.CancelCalls)
}
