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

// Package malloc provides allocators that hand out cache-line aligned memory.
package malloc

import (
	"math/bits"

	"github.com/pkg/errors"

	"github.com/cloudwego/zmem/cache/mempool"
)

// CacheLineSize is the alignment guaranteed by every AlignedAllocator.
const CacheLineSize = 64

// MaxAllocSize is the largest request an allocator accepts.
// It's a bit below what the Go runtime can address on the platform.
const MaxAllocSize = 1<<(bits.UintSize/2+15) - 1

var (
	// ErrInvalidSize is returned for requests of zero or negative size.
	ErrInvalidSize = errors.New("malloc: invalid size")

	// ErrTooLarge is returned for requests above MaxAllocSize or the allocator's own limit.
	ErrTooLarge = errors.New("malloc: size too large")

	// ErrOutOfMemory is returned when the allocator has no memory left for the request.
	ErrOutOfMemory = errors.New("malloc: out of memory")

	// ErrUnsupported is returned by allocators not available on the platform.
	ErrUnsupported = errors.New("malloc: unsupported on this platform")
)

// AlignedAllocator acquires and releases CacheLineSize aligned buffers.
//
// AllocAligned returns a buffer with len >= size, or an error and nil.
// Callers may use the whole len.
// FreeAligned must be given the exact slice returned by AllocAligned,
// the buffer must not be used afterwards.
type AlignedAllocator interface {
	AllocAligned(size int) ([]byte, error)
	FreeAligned(buf []byte)
}

// Default is the allocator used when none is configured.
var Default AlignedAllocator = HeapAllocator{}

// HeapAllocator allocates from the Go heap through the aligned pools of
// cache/mempool. Buffers are not zeroed and span the whole usable part of
// their size class, so len can exceed the request. It's safe for concurrent use.
type HeapAllocator struct{}

var _ AlignedAllocator = HeapAllocator{}

// AllocAligned implements AlignedAllocator.
func (HeapAllocator) AllocAligned(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return mempool.Extend(mempool.Malloc(size)), nil
}

// FreeAligned implements AlignedAllocator.
func (HeapAllocator) FreeAligned(buf []byte) {
	mempool.Free(buf)
}

func checkSize(size int) error {
	if size <= 0 {
		return errors.Wrapf(ErrInvalidSize, "size=%d", size)
	}
	if size > MaxAllocSize {
		return errors.Wrapf(ErrTooLarge, "size=%d", size)
	}
	return nil
}
