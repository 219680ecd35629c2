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

// Package mempool pools cache-line aligned buffers in power-of-two size classes.
package mempool

import (
	"math/bits"
	"sync"
	"unsafe"

	"github.com/bytedance/gopkg/lang/dirtmake"

	"github.com/cloudwego/zmem/unsafex"
)

// Align is the alignment of every buffer returned by Malloc.
const Align = 64

type memPool struct {
	sync.Pool

	Size int
}

var pools []*memPool

const (
	minMemPoolSize = 4 << 10 // 4KB, `Malloc` returns buf with cap >= the number
	maxMemPoolSize = 1 << 30 // 1GB, larger bufs are allocated directly and never pooled
)

const (
	// footer is a [8]byte, it contains two parts: magic(58 bits) and index (6 bits):
	// * magic is for checking a []byte is created by this package
	// * index is for `pools`, the cap of a []byte is always equal to pools[i].Size
	// footer sits at the end of cap, so the aligned head stays usable.
	footerLen = 8

	footerMagicMask = uint64(0xFFFFFFFFFFFFFFC0) // 58 bits mask
	footerIndexMask = uint64(0x000000000000003F) // 6 bits mask
	footerMagic     = uint64(0xBADC0DEBADC0DEC0) // it ends with 6 zero bits which used by index
)

// bits2idx maps bits.Len to the index of `pools`
// for size < minMemPoolSize, bits2idx maps to `pools[0]` which is expected.
var bits2idx [64]int

func init() {
	i := 0
	for sz := minMemPoolSize; sz <= maxMemPoolSize; sz <<= 1 {
		p := &memPool{Size: sz}
		p.New = func() interface{} {
			b := alignedBytes(p.Size)
			return &b[0]
		}
		pools = append(pools, p)
		bits2idx[bits.Len(uint(p.Size))] = i
		i++
	}
}

// alignedBytes returns a non-zeroed buffer of len and cap sz starting on an Align boundary.
func alignedBytes(sz int) []byte {
	b := dirtmake.Bytes(sz, sz)
	if unsafex.IsAligned(b, Align) {
		return b
	}
	// power-of-two size classes are aligned by the runtime in practice,
	// this only triggers for odd sizes.
	b = dirtmake.Bytes(sz+Align, sz+Align)
	b = unsafex.AlignSlice(b, Align)
	return b[:sz:sz]
}

// poolIndex returns index of a pool which fits the given size `sz`
func poolIndex(sz int) int {
	if sz <= minMemPoolSize {
		return 0
	}
	i := bits2idx[bits.Len(uint(sz))]
	if uint(sz)&(uint(sz)-1) == 0 {
		// if power of two, it fits perfectly
		// like `8192` should be in pools[1], but `8193` in pools[2]
		return i
	}
	return i + 1
}

// Malloc returns a buf of len size, aligned to Align.
// Tips for usage:
// * buf returned by Malloc is NOT initialized with zeros.
// * call `Free` when buf is no longer used, DO NOT REUSE buf after calling `Free`.
// * DO NOT USE `cap` or `append` to resize, bytes at the end of cap store malloc info.
// * size > 1GB is served by a plain aligned allocation that `Free` ignores.
func Malloc(size int) []byte {
	if size <= 0 {
		return []byte{}
	}
	c := size + footerLen // reserve for footer
	if c > maxMemPoolSize || c < size {
		return alignedBytes(size)
	}
	i := poolIndex(c)
	pool := pools[i]
	p := pool.Get().(*byte)
	ret := unsafe.Slice(p, pool.Size)

	// it will be checked later by `Free`
	*(*uint64)(unsafe.Add(unsafe.Pointer(p), pool.Size-footerLen)) = footerMagic | uint64(i)
	return ret[:size]
}

// Cap returns the max len a buf can be resliced to.
// It panics if buf isn't from Malloc or its cap has been changed.
func Cap(buf []byte) int {
	if !pooled(buf) {
		panic("buf not malloc by this package or buf cap changed")
	}
	return cap(buf) - footerLen
}

// Extend returns buf resliced to Cap(buf), or buf itself if it isn't from the pools.
func Extend(buf []byte) []byte {
	if !pooled(buf) {
		return buf
	}
	return buf[:cap(buf)-footerLen]
}

// Free should be called when a buf is no longer used.
// It's safe to call with any []byte, unknown bufs are left to the GC.
func Free(buf []byte) {
	if !pooled(buf) {
		return
	}
	footer := getFooter(buf)
	i := int(footer & footerIndexMask)
	if i < len(pools) {
		if p := pools[i]; p.Size == cap(buf) {
			resetFooter(buf)
			p.Put(unsafe.SliceData(buf))
		}
	}
}

func pooled(buf []byte) bool {
	c := cap(buf)
	if c < minMemPoolSize || c > maxMemPoolSize {
		return false
	}
	if uint(c)&uint(c-1) != 0 { // not malloc by this package
		return false
	}
	if c-len(buf) < footerLen {
		return false
	}
	if !unsafex.IsAligned(buf, Align) {
		return false
	}
	return getFooter(buf)&footerMagicMask == footerMagic
}

func getFooter(buf []byte) uint64 {
	return *(*uint64)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(buf)), cap(buf)-footerLen))
}

// resetFooter clears the magic so a double Free is ignored.
func resetFooter(buf []byte) {
	*(*uint64)(unsafe.Add(unsafe.Pointer(unsafe.SliceData(buf)), cap(buf)-footerLen)) = 0
}
