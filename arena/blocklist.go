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

// handle refers to a node in a blockTable.
// The zero handle is nil, so zero value lists are empty lists.
type handle int32

const nilHandle handle = 0

type blockNode struct {
	buf        []byte
	prev, next handle
}

// blockTable owns the nodes of all block lists of an arena.
// Nodes are addressed by handle, released slots are recycled through free.
type blockTable struct {
	nodes []blockNode
	free  []handle
}

// blockList is a doubly linked list of blocks stored in a blockTable.
type blockList struct {
	first, last handle

	n    int // number of blocks
	size int // sum of block capacities in bytes
}

func (t *blockTable) node(h handle) *blockNode {
	return &t.nodes[h-1]
}

func (t *blockTable) newNode(buf []byte) handle {
	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		*t.node(h) = blockNode{buf: buf}
		return h
	}
	t.nodes = append(t.nodes, blockNode{buf: buf})
	return handle(len(t.nodes))
}

// pushBack appends buf to the tail of l.
func (t *blockTable) pushBack(l *blockList, buf []byte) {
	h := t.newNode(buf)
	if l.last == nilHandle {
		l.first = h
	} else {
		t.node(l.last).next = h
		t.node(h).prev = l.last
	}
	l.last = h
	l.n++
	l.size += len(buf)
}

// remove unlinks h from l, recycles the node and returns its block.
func (t *blockTable) remove(l *blockList, h handle) []byte {
	nd := t.node(h)
	if nd.prev != nilHandle {
		t.node(nd.prev).next = nd.next
	} else {
		l.first = nd.next
	}
	if nd.next != nilHandle {
		t.node(nd.next).prev = nd.prev
	} else {
		l.last = nd.prev
	}
	buf := nd.buf
	*nd = blockNode{}
	t.free = append(t.free, h)
	l.n--
	l.size -= len(buf)
	return buf
}

// splice moves every block of src to the tail of dst, src becomes empty.
func (t *blockTable) splice(dst, src *blockList) {
	if src.first == nilHandle {
		return
	}
	if dst.last == nilHandle {
		dst.first = src.first
	} else {
		t.node(dst.last).next = src.first
		t.node(src.first).prev = dst.last
	}
	dst.last = src.last
	dst.n += src.n
	dst.size += src.size
	*src = blockList{}
}

// firstFit returns the first block of l with at least n bytes, or nilHandle.
func (t *blockTable) firstFit(l *blockList, n int) handle {
	for h := l.first; h != nilHandle; h = t.node(h).next {
		if len(t.node(h).buf) >= n {
			return h
		}
	}
	return nilHandle
}

// each calls f with every block of l from first to last.
func (t *blockTable) each(l *blockList, f func(buf []byte)) {
	for h := l.first; h != nilHandle; h = t.node(h).next {
		f(t.node(h).buf)
	}
}

// release drops all nodes and their storage.
// Lists using t must be reset by the caller.
func (t *blockTable) release() {
	t.nodes = nil
	t.free = nil
}
