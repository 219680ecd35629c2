/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package arena implements a block based region allocator.
//
// An Arena bump-allocates from a current block. When the block is exhausted
// it is parked in a used list and the arena switches to the first parked
// block big enough for the request (first-fit), or acquires a new one from
// its malloc.AlignedAllocator. Reset makes every used block available again
// in O(1) without releasing memory, so an arena can serve many short-lived
// frames (requests, batches, ...) after warming up. Free releases all blocks.
//
// An Arena is owned by one goroutine, it has no locking.
package arena

import (
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"

	"github.com/cloudwego/zmem/internal/safecheck"
	"github.com/cloudwego/zmem/unsafex"
	"github.com/cloudwego/zmem/unsafex/malloc"
)

// Align is the alignment of every allocation, enough for any scalar type.
// Blocks are malloc.CacheLineSize aligned, and sizes are rounded up to Align.
const Align = 16

var (
	// ErrNegativeSize is returned by Alloc and AllocSlice for n < 0.
	ErrNegativeSize = errors.New("arena: negative size")

	// ErrTooLarge is returned when a request can't be rounded or sized without overflow.
	ErrTooLarge = errors.New("arena: size too large")
)

// Arena is a block based bump allocator. The zero value is ready to use
// with default options.
type Arena struct {
	blockSize int
	allocator malloc.AlignedAllocator
	logger    *slog.Logger

	cur []byte // current block
	pos int    // bump offset in cur, pos <= len(cur)

	table     blockTable
	used      blockList // blocks consumed since the last Reset
	available blockList // blocks ready for reuse

	retired  int // bytes bumped in used blocks
	acquired int // blocks acquired from allocator
	reused   int // blocks taken from available
	released bool
}

// New creates an arena. o can be nil to use DefaultOption().
func New(o *Option) *Arena {
	if o == nil {
		o = DefaultOption()
	}
	return &Arena{
		blockSize: o.BlockSize,
		allocator: o.Allocator,
		logger:    o.Logger,
	}
}

// NewWithBlockSize creates an arena using the default allocator.
// blockSize <= 0 means DefaultBlockSize.
func NewWithBlockSize(blockSize int) *Arena {
	return &Arena{blockSize: blockSize}
}

// BlockSize returns the minimum size of blocks acquired by the arena.
func (a *Arena) BlockSize() int {
	if a.blockSize <= 0 {
		return DefaultBlockSize
	}
	return a.blockSize
}

func (a *Arena) getAllocator() malloc.AlignedAllocator {
	if a.allocator == nil {
		return malloc.Default
	}
	return a.allocator
}

// Alloc returns n bytes from the arena, aligned to Align.
// The returned slice has len and cap of n, its content is undefined.
// It stays valid until the next Reset or Free.
//
// Alloc returns nil for n == 0. When a block can't be acquired, the error
// from the allocator is returned wrapped and the arena is left unchanged.
func (a *Arena) Alloc(n int) ([]byte, error) {
	safecheck.Assert(!a.released, "arena: use after Free")
	if n <= 0 {
		if n < 0 {
			return nil, errors.Wrapf(ErrNegativeSize, "n=%d", n)
		}
		return nil, nil
	}
	sz, ok := unsafex.AlignUp(n, Align)
	if !ok {
		return nil, errors.Wrapf(ErrTooLarge, "n=%d", n)
	}
	if sz > len(a.cur)-a.pos {
		if err := a.nextBlock(sz); err != nil {
			return nil, err
		}
	}
	p := a.pos
	a.pos += sz
	return a.cur[p : p+n : p+n], nil
}

// nextBlock switches the current block to one with at least sz bytes.
// It only retires the current block once a replacement is in hand.
func (a *Arena) nextBlock(sz int) error {
	if h := a.table.firstFit(&a.available, sz); h != nilHandle {
		buf := a.table.remove(&a.available, h)
		a.reused++
		a.debug("arena: reuse block", "size", len(buf), "request", sz)
		a.setCurrent(buf)
		return nil
	}

	size := a.BlockSize()
	if sz > size {
		size = sz
	}
	buf, err := a.getAllocator().AllocAligned(size)
	if err != nil {
		if a.logger != nil {
			a.logger.Warn("arena: acquire block failed", "size", size, "err", err)
		}
		return errors.Wrapf(err, "arena: acquire %d-byte block", size)
	}
	safecheck.Assertf(len(buf) >= size, "arena: allocator returned %d bytes, want %d", len(buf), size)
	safecheck.Assertf(unsafex.IsAligned(buf, malloc.CacheLineSize), "arena: allocator returned unaligned block")
	a.acquired++
	a.debug("arena: acquire block", "size", len(buf), "request", sz)
	a.setCurrent(buf)
	return nil
}

func (a *Arena) setCurrent(buf []byte) {
	if a.cur != nil {
		a.table.pushBack(&a.used, a.cur)
		a.retired += a.pos
	}
	a.cur = buf
	a.pos = 0
}

// Reset invalidates every slice returned by Alloc and makes all blocks
// reusable. Memory is kept, the current block restarts at offset 0.
func (a *Arena) Reset() {
	safecheck.Assert(!a.released, "arena: use after Free")
	a.debug("arena: reset", "used", a.used.n, "available", a.available.n, "inuse", a.retired+a.pos)
	a.table.splice(&a.available, &a.used)
	a.pos = 0
	a.retired = 0
}

// Free releases every block to the allocator. The arena must not be used afterwards.
// Calling Free more than once is a no-op.
func (a *Arena) Free() {
	if a.released {
		return
	}
	alloc := a.getAllocator()
	a.debug("arena: free", "blocks", a.numBlocks(), "capacity", a.capacity())
	if a.cur != nil {
		alloc.FreeAligned(a.cur)
	}
	a.table.each(&a.used, alloc.FreeAligned)
	a.table.each(&a.available, alloc.FreeAligned)
	a.table.release()
	a.used = blockList{}
	a.available = blockList{}
	a.cur = nil
	a.pos = 0
	a.retired = 0
	a.released = true
}

func (a *Arena) numBlocks() int {
	n := a.used.n + a.available.n
	if a.cur != nil {
		n++
	}
	return n
}

func (a *Arena) capacity() int {
	return len(a.cur) + a.used.size + a.available.size
}

func (a *Arena) debug(msg string, args ...interface{}) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}
