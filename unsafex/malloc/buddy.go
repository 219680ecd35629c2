package malloc

import (
	"fmt"
	"math/bits"
	"sort"

	"github.com/pkg/errors"

	"github.com/cloudwego/zmem/unsafex"
)

// Default block sizes of NewBuddyAllocator.
const (
	DefaultMinBlockSize = 8 << 10
	DefaultMaxBlockSize = 512 << 10
)

// BuddyAllocator is a buddy system allocator over a fixed slab.
//
// Unlike a header-per-block design, block bookkeeping lives out of band in
// orders, so every block starts on a minBlockSize boundary of the slab and
// the slab itself starts on a CacheLineSize boundary.
// It's not safe for concurrent use.
type BuddyAllocator struct {
	slab  []byte // aligned, whole max blocks only
	start uintptr

	// freeLists[o] are offsets of free blocks of minBlockSize<<o bytes
	freeLists [][]int

	// orders[off>>minBlockShift] is order+1 of the block allocated at off, or 0
	orders []int8

	needsCoalesce bool // set by FreeAligned below max order, cleared when merging finds nothing
	inUse         int

	minBlockSize  int
	minBlockShift int
	maxBlockSize  int
	maxBlockOrder int
}

var _ AlignedAllocator = (*BuddyAllocator)(nil)

// NewBuddyAllocator manages arena with DefaultMinBlockSize and DefaultMaxBlockSize.
func NewBuddyAllocator(arena []byte) (*BuddyAllocator, error) {
	return NewBuddyAllocatorWithBlockSize(arena, DefaultMinBlockSize, DefaultMaxBlockSize)
}

// NewBuddyAllocatorWithBlockSize creates a new buddy allocator with custom block sizes.
// Both minBlock and maxBlock must be powers of two with CacheLineSize <= minBlock <= maxBlock.
// After aligning its start, the arena must hold at least one maxBlock; any tail
// shorter than maxBlock is left unused.
func NewBuddyAllocatorWithBlockSize(arena []byte, minBlock, maxBlock int) (*BuddyAllocator, error) {
	if minBlock <= 0 || (minBlock&(minBlock-1)) != 0 {
		return nil, fmt.Errorf("minBlockSize must be a power of two, got %d", minBlock)
	}
	if maxBlock <= 0 || (maxBlock&(maxBlock-1)) != 0 {
		return nil, fmt.Errorf("maxBlockSize must be a power of two, got %d", maxBlock)
	}
	if minBlock > maxBlock {
		return nil, fmt.Errorf("minBlockSize (%d) must be <= maxBlockSize (%d)", minBlock, maxBlock)
	}
	if minBlock < CacheLineSize {
		return nil, fmt.Errorf("minBlockSize must be >= %d, got %d", CacheLineSize, minBlock)
	}

	slab := unsafex.AlignSlice(arena, CacheLineSize)
	numRootBlocks := len(slab) / maxBlock
	if numRootBlocks == 0 {
		return nil, fmt.Errorf("arena too small: need at least %d aligned bytes, got %d", maxBlock, len(slab))
	}
	slab = slab[: numRootBlocks*maxBlock : numRootBlocks*maxBlock]

	minShift := bits.TrailingZeros(uint(minBlock))
	maxShift := bits.TrailingZeros(uint(maxBlock))
	maxOrder := maxShift - minShift

	a := &BuddyAllocator{
		slab:          slab,
		start:         unsafex.Addr(slab),
		orders:        make([]int8, len(slab)>>minShift),
		freeLists:     make([][]int, maxOrder+1),
		minBlockSize:  minBlock,
		minBlockShift: minShift,
		maxBlockSize:  maxBlock,
		maxBlockOrder: maxOrder,
	}

	for o := 0; o < maxOrder; o++ {
		n := 64
		if d := maxOrder - o; d < 6 {
			n = 1 << d
		}
		a.freeLists[o] = make([]int, 0, n)
	}
	a.freeLists[maxOrder] = make([]int, 0, numRootBlocks)
	a.Reset()
	return a, nil
}

// AllocAligned returns the smallest free block holding size bytes,
// as a slice of len size and cap the block size.
// Requests above the max block size get ErrTooLarge, an exhausted slab ErrOutOfMemory.
func (a *BuddyAllocator) AllocAligned(size int) ([]byte, error) {
	if size <= 0 {
		return nil, errors.Wrapf(ErrInvalidSize, "size=%d", size)
	}
	if size > a.maxBlockSize {
		return nil, errors.Wrapf(ErrTooLarge, "size=%d, max block size=%d", size, a.maxBlockSize)
	}
	order := a.getOrderForSize(size)

	var off int
	if free := a.freeLists[order]; len(free) > 0 {
		off = free[len(free)-1]
		a.freeLists[order] = free[:len(free)-1]
	} else if off = a.allocSlow(order); off < 0 {
		return nil, errors.Wrapf(ErrOutOfMemory, "size=%d, free=%d", size, a.Available())
	}

	end := off + a.minBlockSize<<order
	a.orders[off>>a.minBlockShift] = int8(order + 1)
	a.inUse += end - off
	return a.slab[off : off+size : end], nil
}

// allocSlow carves a block of order out of the smallest larger free block,
// coalescing first if nothing is free. It returns the offset, or -1.
func (a *BuddyAllocator) allocSlow(order int) int {
	from := a.firstFree(order + 1)
	if from < 0 {
		if !a.needsCoalesce {
			return -1
		}
		if from = a.CoalesceUntil(order); from < 0 {
			a.needsCoalesce = false
			return -1
		}
	}

	free := a.freeLists[from]
	off := free[len(free)-1]
	a.freeLists[from] = free[:len(free)-1]

	// keep the left half, hand the right half of each split to the lower order
	for o := from - 1; o >= order; o-- {
		a.freeLists[o] = append(a.freeLists[o], off+(a.minBlockSize<<o))
	}
	return off
}

// FreeAligned puts block back on its free list. Buddies are merged lazily,
// on the next allocation that finds no free block.
// It panics on blocks of other allocators, double frees and resliced caps.
func (a *BuddyAllocator) FreeAligned(block []byte) {
	if cap(block) == 0 {
		return
	}
	p := unsafex.Addr(block)
	if p < a.start || p >= a.start+uintptr(len(a.slab)) {
		panic("buddy: block not in arena")
	}
	off := int(p - a.start)
	if off&(a.minBlockSize-1) != 0 {
		panic("buddy: misaligned block")
	}
	idx := off >> a.minBlockShift
	order := int(a.orders[idx]) - 1
	if order < 0 {
		panic("buddy: double free or invalid block")
	}
	if cap(block) != a.minBlockSize<<order {
		panic("buddy: block cap changed")
	}

	a.orders[idx] = 0
	a.inUse -= cap(block)
	a.freeLists[order] = append(a.freeLists[order], off)
	if order < a.maxBlockOrder {
		a.needsCoalesce = true
	}
}

// Available returns the bytes not held by allocated blocks.
func (a *BuddyAllocator) Available() int {
	return len(a.slab) - a.inUse
}

// InUse returns the bytes held by allocated blocks, rounded up to block sizes.
func (a *BuddyAllocator) InUse() int {
	return a.inUse
}

// Size returns the usable size of the slab.
func (a *BuddyAllocator) Size() int {
	return len(a.slab)
}

// CoalesceUntil merges free buddies order by order until some free block of
// targetOrder or above exists. It returns that order, or -1.
func (a *BuddyAllocator) CoalesceUntil(targetOrder int) int {
	if o := a.firstFree(targetOrder); o >= 0 {
		return o
	}
	for order := 0; order < targetOrder; order++ {
		a.mergeBuddies(order)
	}
	return a.firstFree(targetOrder)
}

// firstFree returns the lowest order >= from with a free block, or -1.
func (a *BuddyAllocator) firstFree(from int) int {
	for o := from; o <= a.maxBlockOrder; o++ {
		if len(a.freeLists[o]) > 0 {
			return o
		}
	}
	return -1
}

// mergeBuddies moves every pair of free buddies of order up one order.
func (a *BuddyAllocator) mergeBuddies(order int) {
	free := a.freeLists[order]
	if len(free) < 2 {
		return
	}
	sort.Ints(free)
	size := a.minBlockSize << order
	kept := free[:0]
	for i := 0; i < len(free); i++ {
		off := free[i]
		// a left buddy has the size bit clear, its right buddy follows it
		if off&size == 0 && i+1 < len(free) && free[i+1] == off+size {
			a.freeLists[order+1] = append(a.freeLists[order+1], off)
			i++
			continue
		}
		kept = append(kept, off)
	}
	a.freeLists[order] = kept
}

// Reset forgets every allocation, the whole slab is free again.
func (a *BuddyAllocator) Reset() {
	for o := range a.freeLists {
		a.freeLists[o] = a.freeLists[o][:0]
	}
	for off := 0; off < len(a.slab); off += a.maxBlockSize {
		a.freeLists[a.maxBlockOrder] = append(a.freeLists[a.maxBlockOrder], off)
	}
	clear(a.orders)
	a.inUse = 0
	a.needsCoalesce = false
}

// getOrderForSize returns the order of the smallest block holding size bytes.
func (a *BuddyAllocator) getOrderForSize(size int) int {
	if size <= a.minBlockSize {
		return 0
	}
	return bits.Len(uint(size-1)) - a.minBlockShift
}
