package racache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

type fakeWaiter struct {
	speculative bool
}

func (f *fakeWaiter) IsSpeculativeRead() bool { return f.speculative }

func TestColdReadAllocatesThenHitsOnNextLookup(t *testing.T) {
	c := New(4096, 4)
	obj := uapi.Handle(1)

	state, block := c.Lookup(obj, 0, 4096)
	require.Equal(t, Read, state)
	require.NotNil(t, block)

	waiters := block.CompleteRead(4096)
	assert.Empty(t, waiters)

	state, block = c.Lookup(obj, 0, 4096)
	assert.Equal(t, Hit, state)
	assert.Equal(t, 4096, block.DataSz)
}

func TestConcurrentReadersCoalesceIntoOneFetch(t *testing.T) {
	c := New(4096, 4)
	obj := uapi.Handle(1)

	state, block := c.Lookup(obj, 0, 4096)
	require.Equal(t, Read, state)

	a := &fakeWaiter{}
	b := &fakeWaiter{}
	block.AddWaiter(a)

	state2, block2 := c.Lookup(obj, 2048, 1024)
	require.Equal(t, Wait, state2)
	assert.Same(t, block, block2, "second reader within the same block must join the same fill")
	block2.AddWaiter(b)

	waiters := block.CompleteRead(4096)
	require.Len(t, waiters, 2)
	assert.True(t, waiters[0] == Waiter(a))
	assert.True(t, waiters[1] == Waiter(b))
}

func TestWriteInvalidationFlushesWholeObject(t *testing.T) {
	c := New(4096, 4)
	obj := uapi.Handle(1)

	_, block := c.Lookup(obj, 0, 4096)
	block.CompleteRead(4096)
	require.Equal(t, 1, c.Len())

	removed := c.Flush(obj)
	require.Len(t, removed, 1)
	assert.Equal(t, 0, c.Len())

	state, _ := c.Lookup(obj, 0, 4096)
	assert.Equal(t, Read, state, "a subsequent read after invalidation must miss the cache")
}

func TestCancellationFreesBlockAndPreservesWaiterList(t *testing.T) {
	c := New(4096, 4)
	obj := uapi.Handle(1)

	_, block := c.Lookup(obj, 0, 4096)
	waiter := &fakeWaiter{}
	block.AddWaiter(waiter)

	c.FreeBlock(obj, 0)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, []Waiter{waiter}, block.Waiters)

	state, newBlock := c.Lookup(obj, 0, 4096)
	assert.Equal(t, Read, state)
	assert.NotSame(t, block, newBlock)
}

func TestRemoveWaiterDoesNotTouchBlock(t *testing.T) {
	c := New(4096, 4)
	obj := uapi.Handle(1)

	_, block := c.Lookup(obj, 0, 4096)
	a := &fakeWaiter{}
	b := &fakeWaiter{}
	block.AddWaiter(a)
	block.AddWaiter(b)

	block.RemoveWaiter(a)
	require.Len(t, block.Waiters, 1)
	assert.True(t, block.Waiters[0] == Waiter(b))

	state, same := c.Lookup(obj, 0, 4096)
	assert.Equal(t, Wait, state)
	assert.Same(t, block, same)
}

func TestEvictionSkipsPinnedBlocksAndReturnsNoneWhenAllPinned(t *testing.T) {
	c := New(64, 2)
	obj := uapi.Handle(1)

	_, b1 := c.Lookup(obj, 0, 64) // Read state: pinned (not valid)
	require.NotNil(t, b1)
	_, b2 := c.Lookup(obj, 64, 64)
	require.NotNil(t, b2)

	// Both blocks are pinned (never completed), so a third distinct block
	// cannot be allocated.
	state, block := c.Lookup(obj, 128, 64)
	assert.Equal(t, None, state)
	assert.Nil(t, block)
}

func TestEvictionReclaimsUnpinnedLRUBlock(t *testing.T) {
	c := New(64, 2)
	obj := uapi.Handle(1)

	_, b1 := c.Lookup(obj, 0, 64)
	b1.CompleteRead(64) // valid, no waiters: evictable

	_, b2 := c.Lookup(obj, 64, 64)
	b2.CompleteRead(64)

	// Touch b2 so b1 is the true LRU entry.
	c.Lookup(obj, 64, 64)

	state, block := c.Lookup(obj, 128, 64)
	require.Equal(t, Read, state)
	require.NotNil(t, block)
	assert.Equal(t, int64(128), block.FileOffset)
	assert.Equal(t, 2, c.Len())
}

func TestBlockCoversRespectsEOFShortRead(t *testing.T) {
	c := New(4096, 1)
	obj := uapi.Handle(1)

	_, block := c.Lookup(obj, 0, 4096)
	block.CompleteRead(100) // short read: EOF within block

	assert.True(t, block.EOF())
	assert.True(t, block.Covers(0, 100))
	assert.False(t, block.Covers(0, 200))
}

func TestAlignedOffsetsNamesConsecutiveBlocks(t *testing.T) {
	c := New(4096, 8)
	offsets := c.AlignedOffsets(0, 3)
	assert.Equal(t, []int64{0, 4096, 8192}, offsets)
}
