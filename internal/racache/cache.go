package racache

import (
	"container/list"
	"sync"

	"github.com/pvfsclient/pvfsclient/internal/uapi"
)

// key identifies a block by the object it belongs to and its
// block-aligned file offset.
type key struct {
	object      uapi.Handle
	blockOffset int64
}

// Cache is the bounded readahead block pool. Eviction is plain LRU with
// pinned-block skipping (spec.md §4.3 "Eviction"), which rules out
// handing this straight to hashicorp/golang-lru: that package always
// evicts its actual least-recently-used entry on overflow with no way
// to skip one a caller has pinned. container/list gives the same O(1)
// move-to-front/remove primitives without that constraint, so the
// eviction order here is hand-rolled over stdlib rather than borrowed;
// see DESIGN.md.
type Cache struct {
	blockSize int
	capacity  int

	blocks map[key]*list.Element // Element.Value is *Block
	order  *list.List            // front = most recently used

	bufPool sync.Pool
}

// New returns a Cache of capacity blocks, each blockSize bytes.
func New(blockSize, capacity int) *Cache {
	c := &Cache{
		blockSize: blockSize,
		capacity:  capacity,
		blocks:    make(map[key]*list.Element, capacity),
		order:     list.New(),
	}
	c.bufPool.New = func() any {
		b := make([]byte, blockSize)
		return &b
	}
	return c
}

// BlockSize reports the fixed block size blocks are allocated at.
func (c *Cache) BlockSize() int { return c.blockSize }

func (c *Cache) align(offset int64) int64 {
	return offset - offset%int64(c.blockSize)
}

// AlignedOffsets returns count consecutive block-aligned offsets, in
// order, starting at the block that contains offset. Used by speculation
// to name the next readcnt-1 blocks following a just-filled one.
func (c *Cache) AlignedOffsets(offset int64, count int) []int64 {
	base := c.align(offset)
	out := make([]int64, count)
	for i := range out {
		out[i] = base + int64(i)*int64(c.blockSize)
	}
	return out
}

// Lookup probes the cache for (object,offset) at the requested length
// (spec.md §4.3 "Lookup states"). On Read, the returned block is
// already linked into the cache and marked not-valid; the caller is
// responsible for posting the underlying full-block RPC and later
// calling CompleteRead.
func (c *Cache) Lookup(object uapi.Handle, offset int64, length uint32) (LookupState, *Block) {
	k := key{object: object, blockOffset: c.align(offset)}

	if elem, ok := c.blocks[k]; ok {
		c.order.MoveToFront(elem)
		block := elem.Value.(*Block)
		if block.Valid {
			if block.Covers(offset, length) {
				return Hit, block
			}
			return None, nil
		}
		return Wait, block
	}

	block, ok := c.allocate(k)
	if !ok {
		return None, nil
	}
	return Read, block
}

func (c *Cache) allocate(k key) (*Block, bool) {
	if len(c.blocks) >= c.capacity {
		if !c.evictOne() {
			return nil, false
		}
	}

	buf := c.bufPool.Get().(*[]byte)
	block := &Block{
		Bytes:      (*buf)[:c.blockSize],
		FileOffset: k.blockOffset,
		FileHandle: k.object,
		BuffSz:     c.blockSize,
	}
	elem := c.order.PushFront(block)
	c.blocks[k] = elem
	return block, true
}

// evictOne removes the least-recently-used unpinned block, returning
// its buffer to the pool. It reports false if every block is pinned.
func (c *Cache) evictOne() bool {
	for elem := c.order.Back(); elem != nil; elem = elem.Prev() {
		block := elem.Value.(*Block)
		if block.Pinned() {
			continue
		}
		c.removeElement(elem, block)
		return true
	}
	return false
}

func (c *Cache) removeElement(elem *list.Element, block *Block) {
	k := key{object: block.FileHandle, blockOffset: block.FileOffset}
	delete(c.blocks, k)
	c.order.Remove(elem)
	buf := block.Bytes[:cap(block.Bytes)]
	c.bufPool.Put(&buf)
}

// AddWaiter enqueues w on block's FIFO waiter list (spec.md §4.3
// "Wait").
func (b *Block) AddWaiter(w Waiter) {
	b.Waiters = append(b.Waiters, w)
}

// RemoveWaiter removes w from block's waiter list without otherwise
// touching the block (spec.md §4.4 "If the request is a waiter, remove
// it from the block's waiter list without touching the block itself.").
func (b *Block) RemoveWaiter(w Waiter) {
	for i, cur := range b.Waiters {
		if cur == w {
			b.Waiters = append(b.Waiters[:i], b.Waiters[i+1:]...)
			return
		}
	}
}

// CompleteRead marks block valid with dataSz bytes filled and returns
// its waiters in FIFO arrival order, clearing the block's own waiter
// list (spec.md §4.3 "Waiter awakening").
func (b *Block) CompleteRead(dataSz int) []Waiter {
	b.DataSz = dataSz
	b.Valid = true
	waiters := b.Waiters
	b.Waiters = nil
	return waiters
}

// FailRead clears a block's waiter list without marking it valid,
// because the underlying fetch failed rather than completed. The
// caller must still free the block afterward.
func (b *Block) FailRead() []Waiter {
	waiters := b.Waiters
	b.Waiters = nil
	return waiters
}

// FreeBlock removes the block for (object,offset) from the cache
// unconditionally, bypassing the pinned check — used by cancellation
// and invalidation, which must tear a block down regardless of state
// (spec.md §4.3 "Cancellation", §4.3 "Invalidation").
func (c *Cache) FreeBlock(object uapi.Handle, offset int64) {
	k := key{object: object, blockOffset: c.align(offset)}
	elem, ok := c.blocks[k]
	if !ok {
		return
	}
	c.removeElement(elem, elem.Value.(*Block))
}

// Flush removes every block belonging to object regardless of state,
// returning them so the caller can cancel any outstanding primary reads
// and repost/free their waiters (spec.md §4.3 "Invalidation").
func (c *Cache) Flush(object uapi.Handle) []*Block {
	var removed []*Block
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		block := elem.Value.(*Block)
		if block.FileHandle == object {
			removed = append(removed, block)
			c.removeElement(elem, block)
		}
		elem = next
	}
	return removed
}

// Len reports the number of blocks currently cached, for metrics and
// tests.
func (c *Cache) Len() int { return len(c.blocks) }
