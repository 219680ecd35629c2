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

package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listSizes(t *blockTable, l *blockList) []int {
	var ret []int
	t.each(l, func(buf []byte) { ret = append(ret, len(buf)) })
	return ret
}

func checkList(t *testing.T, tb *blockTable, l *blockList, want ...int) {
	t.Helper()
	got := listSizes(tb, l)
	assert.Equal(t, want, got)
	assert.Equal(t, len(want), l.n)
	sum := 0
	for _, n := range want {
		sum += n
	}
	assert.Equal(t, sum, l.size)

	// walk backwards too
	var back []int
	for h := l.last; h != nilHandle; h = tb.node(h).prev {
		back = append([]int{len(tb.node(h).buf)}, back...)
	}
	assert.Equal(t, want, back)
}

func TestBlockListPushRemove(t *testing.T) {
	var tb blockTable
	var l blockList
	checkList(t, &tb, &l)

	for _, n := range []int{1, 2, 3, 4} {
		tb.pushBack(&l, make([]byte, n))
	}
	checkList(t, &tb, &l, 1, 2, 3, 4)

	h := tb.firstFit(&l, 3)
	require.NotEqual(t, nilHandle, h)
	assert.Equal(t, 3, len(tb.remove(&l, h))) // middle
	checkList(t, &tb, &l, 1, 2, 4)

	assert.Equal(t, 1, len(tb.remove(&l, l.first))) // head
	checkList(t, &tb, &l, 2, 4)

	assert.Equal(t, 4, len(tb.remove(&l, l.last))) // tail
	checkList(t, &tb, &l, 2)

	assert.Equal(t, 2, len(tb.remove(&l, l.first))) // only
	checkList(t, &tb, &l)
	assert.Equal(t, nilHandle, l.first)
	assert.Equal(t, nilHandle, l.last)
}

func TestBlockListRecyclesHandles(t *testing.T) {
	var tb blockTable
	var l blockList
	for i := 0; i < 4; i++ {
		tb.pushBack(&l, make([]byte, 8))
	}
	require.Len(t, tb.nodes, 4)
	for l.first != nilHandle {
		tb.remove(&l, l.first)
	}
	assert.Len(t, tb.free, 4)

	for i := 0; i < 4; i++ {
		tb.pushBack(&l, make([]byte, 16))
	}
	assert.Len(t, tb.nodes, 4) // no new nodes
	assert.Len(t, tb.free, 0)
	checkList(t, &tb, &l, 16, 16, 16, 16)
}

func TestBlockListSplice(t *testing.T) {
	var tb blockTable
	var a, b blockList

	tb.splice(&a, &b) // both empty
	checkList(t, &tb, &a)

	tb.pushBack(&b, make([]byte, 1))
	tb.pushBack(&b, make([]byte, 2))
	tb.splice(&a, &b) // into empty
	checkList(t, &tb, &a, 1, 2)
	checkList(t, &tb, &b)

	tb.pushBack(&b, make([]byte, 3))
	tb.splice(&a, &b)
	checkList(t, &tb, &a, 1, 2, 3)
	checkList(t, &tb, &b)

	tb.splice(&a, &b) // src empty
	checkList(t, &tb, &a, 1, 2, 3)

	// lists keep working after splice
	tb.pushBack(&b, make([]byte, 4))
	tb.remove(&a, a.last)
	tb.splice(&a, &b)
	checkList(t, &tb, &a, 1, 2, 4)
}

func TestBlockListFirstFit(t *testing.T) {
	var tb blockTable
	var l blockList
	assert.Equal(t, nilHandle, tb.firstFit(&l, 1))

	for _, n := range []int{64, 4096, 128, 8192} {
		tb.pushBack(&l, make([]byte, n))
	}
	// first, not tightest
	h := tb.firstFit(&l, 100)
	assert.Equal(t, 4096, len(tb.node(h).buf))
	h = tb.firstFit(&l, 5000)
	assert.Equal(t, 8192, len(tb.node(h).buf))
	assert.Equal(t, nilHandle, tb.firstFit(&l, 10000))
}

func TestBlockTableRelease(t *testing.T) {
	var tb blockTable
	var l blockList
	tb.pushBack(&l, make([]byte, 1))
	tb.remove(&l, l.first)
	tb.release()
	assert.Nil(t, tb.nodes)
	assert.Nil(t, tb.free)
}
