package iox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvfsclient/pvfsclient/internal/constants"
	"github.com/pvfsclient/pvfsclient/internal/rpc"
	"github.com/pvfsclient/pvfsclient/internal/rpc/rpctest"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

func segments(n int) []uapi.IOXSegment {
	out := make([]uapi.IOXSegment, n)
	for i := range out {
		out[i] = uapi.IOXSegment{Offset: int64(i * 4096), Length: 4096}
	}
	return out
}

func TestNewJoinSplitsIntoGroupMaxChunks(t *testing.T) {
	j := NewJoin(uapi.Handle(1), false, segments(constants.IOXGroupMax+1))

	require.Len(t, j.Groups, 2)
	assert.Len(t, j.Groups[0].Segments, constants.IOXGroupMax)
	assert.Len(t, j.Groups[1].Segments, 1)
	assert.Equal(t, 2, j.NumOps)
	assert.Equal(t, 2, j.NumIncomplete)
}

func TestSubmitAllThenCompleteReportsAllDone(t *testing.T) {
	tp := rpctest.New()
	j := NewJoin(uapi.Handle(1), false, segments(3))

	require.NoError(t, j.SubmitAll(context.Background(), tp, uapi.Tag(1)))
	require.Len(t, j.Groups, 1)
	require.Equal(t, 1, tp.SubmitCalls)

	done := j.Complete(j.Groups[0].OpID(), 3*4096, 0)
	assert.True(t, done)
	assert.Equal(t, uint32(3*4096), j.AmtComplete)
	assert.Equal(t, int32(0), j.FailedStatus())
}

func TestCompleteIsFalseUntilEveryGroupDone(t *testing.T) {
	tp := rpctest.New()
	j := NewJoin(uapi.Handle(1), false, segments(constants.IOXGroupMax+5))
	require.NoError(t, j.SubmitAll(context.Background(), tp, uapi.Tag(1)))
	require.Len(t, j.Groups, 2)

	assert.False(t, j.Complete(j.Groups[0].OpID(), 1024, 0))
	assert.True(t, j.Complete(j.Groups[1].OpID(), 2048, 0))
}

// failSecondSubmit wraps a real rpctest.Fake but fails the second Submit
// call, so SubmitAll's rollback path can be exercised deterministically.
type failSecondSubmit struct {
	inner *rpctest.Fake
	calls int
}

func (f *failSecondSubmit) Submit(ctx context.Context, kind uapi.Kind, tag uapi.Tag, payload []byte) (rpc.OpID, error) {
	f.calls++
	if f.calls == 2 {
		return 0, rpc.ErrQueueFull
	}
	return f.inner.Submit(ctx, kind, tag, payload)
}

func (f *failSecondSubmit) Cancel(id rpc.OpID) error {
	return f.inner.Cancel(id)
}

func (f *failSecondSubmit) TestAny(ctx context.Context, max int, timeout time.Duration) ([]rpc.Completion, error) {
	return f.inner.TestAny(ctx, max, timeout)
}

func (f *failSecondSubmit) Close() error { return f.inner.Close() }

func TestSubmitAllCancelsAlreadySubmittedGroupsOnFailure(t *testing.T) {
	shim := &failSecondSubmit{inner: rpctest.New()}
	j := NewJoin(uapi.Handle(1), false, segments(constants.IOXGroupMax+1))
	require.Len(t, j.Groups, 2)

	err := j.SubmitAll(context.Background(), shim, uapi.Tag(1))
	require.Error(t, err)
	assert.Equal(t, 1, shim.inner.CancelCalls, "the first group's submission must be cancelled when the second fails")
}
