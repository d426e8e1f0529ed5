package vfsreq

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvfsclient/pvfsclient/internal/rpc"
	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

func TestResetWipesAllPriorOperationState(t *testing.T) {
	d := &Descriptor{
		Tag:           uapi.Tag(42),
		Kind:          uapi.KindFileIO,
		Upcall:        uapi.FileIORequest{Object: uapi.Handle(1)},
		WasCancelled:  true,
		HandledInline: true,
		Ops:           OpSet{Primary: rpc.OpID(7), Sub: []rpc.OpID{1, 2}, Remaining: 2},
		CacheBlock:    struct{}{},
		Continuation:  struct{}{},
		IsSpeculative: true,
		Dispatched:    time.Now(),
	}

	d.Reset()

	assert.Equal(t, uapi.Tag(0), d.Tag)
	assert.Equal(t, uapi.Kind(0), d.Kind)
	assert.Nil(t, d.Upcall)
	assert.Equal(t, Downcall{}, d.Downcall)
	assert.True(t, d.Unexpected)
	assert.False(t, d.WasCancelled)
	assert.False(t, d.HandledInline)
	assert.Nil(t, d.Continuation)
	assert.Equal(t, OpSet{}, d.Ops)
	assert.Nil(t, d.CacheBlock)
	assert.False(t, d.IsSpeculative)
	assert.True(t, d.Dispatched.IsZero())
}

func TestNewPhantomCarriesNoTagAndIsSpeculative(t *testing.T) {
	p := NewPhantom(uapi.KindFileIO, uapi.FileIORequest{Object: uapi.Handle(9)})

	assert.Equal(t, uapi.Tag(0), p.Tag)
	assert.True(t, p.IsSpeculative)
	assert.NotZero(t, p.CorrelationID)
}

func TestRingPreallocatesUnexpectedDescriptors(t *testing.T) {
	r := NewRing(8)
	require.Equal(t, 8, r.Len())

	for i := 0; i < r.Len(); i++ {
		assert.True(t, r.At(i).Unexpected)
	}

	assert.Len(t, r.All(), 8)

	first := r.At(0)
	first.Tag = uapi.Tag(1)
	assert.Same(t, first, r.At(0), "descriptor identity must be stable across accesses")
}
