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

package malloc

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cloudwego/zmem/cache/mempool"
	"github.com/cloudwego/zmem/unsafex"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testAlignedAllocator(t *testing.T, a AlignedAllocator) {
	t.Helper()
	for _, sz := range []int{1, 8, 63, 64, 100, 4096, 4097, 1 << 16, 256 << 10, 1<<20 + 3} {
		b, err := a.AllocAligned(sz)
		require.NoError(t, err, "size=%d", sz)
		require.GreaterOrEqual(t, len(b), sz)
		assert.True(t, unsafex.IsAligned(b, CacheLineSize), "size=%d", sz)
		b[0], b[sz-1], b[len(b)-1] = 1, 2, 3
		a.FreeAligned(b)
	}

	_, err := a.AllocAligned(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = a.AllocAligned(-5)
	assert.ErrorIs(t, err, ErrInvalidSize)
	_, err = a.AllocAligned(MaxAllocSize + 1)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestHeapAllocator(t *testing.T) {
	testAlignedAllocator(t, HeapAllocator{})
	assert.Equal(t, HeapAllocator{}, Default)

	// a power-of-two request keeps all of its class usable
	b, err := HeapAllocator{}.AllocAligned(256 << 10)
	require.NoError(t, err)
	assert.Equal(t, mempool.Cap(b), len(b))
	assert.Equal(t, cap(b)-8, len(b))
	HeapAllocator{}.FreeAligned(b)

	// unknown buffers are ignored
	assert.NotPanics(t, func() { HeapAllocator{}.FreeAligned(make([]byte, 10)) })
}

func TestMmapAllocator(t *testing.T) {
	if runtime.GOOS == "windows" || runtime.GOOS == "plan9" || runtime.GOOS == "js" || runtime.GOOS == "wasip1" {
		_, err := MmapAllocator{}.AllocAligned(4096)
		assert.ErrorIs(t, err, ErrUnsupported)
		return
	}
	testAlignedAllocator(t, MmapAllocator{})

	b, err := MmapAllocator{}.AllocAligned(8192)
	require.NoError(t, err)
	for _, c := range b {
		require.Equal(t, byte(0), c)
	}
	MmapAllocator{}.FreeAligned(b)
	assert.NotPanics(t, func() { MmapAllocator{}.FreeAligned(nil) })
}

func BenchmarkHeapAllocator(b *testing.B) {
	b.ReportAllocs()
	var a HeapAllocator
	for i := 0; i < b.N; i++ {
		buf, _ := a.AllocAligned(256 << 10)
		a.FreeAligned(buf)
	}
}
