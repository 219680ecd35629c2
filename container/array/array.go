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

// Package array implements a growable array with an explicit growth policy
// and overflow checked capacity arithmetic.
package array

import (
	"github.com/pkg/errors"

	"github.com/cloudwego/zmem/internal/safecheck"
)

// MinCapacity is the smallest capacity set by Init.
const MinCapacity = 4

// ErrOverflow is returned when the requested capacity can't be represented
// or exceeds malloc.MaxAllocSize bytes. The array is left unchanged.
var ErrOverflow = errors.New("array: capacity overflow")

// Array is a growable array of T.
// The zero value is an empty array with no storage.
//
// It's not safe for concurrent use.
type Array[T any] struct {
	buf []T // len(buf) is the length, cap(buf) the capacity
}

// New returns an array with room for at least capacity elements.
func New[T any](capacity int) (*Array[T], error) {
	a := &Array[T]{}
	if err := a.Init(capacity); err != nil {
		return nil, err
	}
	return a, nil
}

// Init drops the content of a and allocates room for
// max(capacity, MinCapacity) elements.
func (a *Array[T]) Init(capacity int) error {
	if capacity < MinCapacity {
		capacity = MinCapacity
	}
	if !fits[T](capacity) {
		return errors.Wrapf(ErrOverflow, "capacity=%d", capacity)
	}
	a.buf = make([]T, 0, capacity)
	return nil
}

// Len returns the number of elements.
func (a *Array[T]) Len() int { return len(a.buf) }

// Cap returns the number of elements a can hold without growing.
func (a *Array[T]) Cap() int { return cap(a.buf) }

// Slice returns the elements as a slice sharing storage with a.
// It's valid until the next call that grows or shrinks a.
func (a *Array[T]) Slice() []T { return a.buf }

// At returns the element at i.
func (a *Array[T]) At(i int) T {
	safecheck.Index(i, len(a.buf))
	return a.buf[i]
}

// Ref returns a pointer to the element at i.
// It's valid until the next call that grows or shrinks a.
func (a *Array[T]) Ref(i int) *T {
	safecheck.Index(i, len(a.buf))
	return &a.buf[i]
}

// Set replaces the element at i.
func (a *Array[T]) Set(i int, v T) {
	safecheck.Index(i, len(a.buf))
	a.buf[i] = v
}

// Push appends v, growing by one element if a is full.
func (a *Array[T]) Push(v T) error {
	if len(a.buf) == cap(a.buf) {
		if err := a.grow(1); err != nil {
			return err
		}
	}
	a.buf = append(a.buf, v)
	return nil
}

// Pop removes and returns the last element. a must not be empty.
func (a *Array[T]) Pop() T {
	n := len(a.buf)
	safecheck.Assert(n > 0, "array: pop from empty array")
	v := a.buf[n-1]
	var zero T
	a.buf[n-1] = zero
	a.buf = a.buf[:n-1]
	return v
}

// Reserve makes sure a can take amount more elements without growing.
func (a *Array[T]) Reserve(amount int) error {
	avail := cap(a.buf) - len(a.buf)
	if amount <= avail {
		return nil
	}
	return a.grow(amount - avail)
}

// Erase removes the element at i, shifting the following elements left.
func (a *Array[T]) Erase(i int) {
	n := len(a.buf)
	safecheck.Assert(n > 0, "array: erase from empty array")
	safecheck.Index(i, n)
	copy(a.buf[i:], a.buf[i+1:])
	var zero T
	a.buf[n-1] = zero
	a.buf = a.buf[:n-1]
}

// Truncate drops all elements from index n on.
func (a *Array[T]) Truncate(n int) {
	safecheck.Bound(n, len(a.buf))
	clear(a.buf[n:])
	a.buf = a.buf[:n]
}

// Append appends src to a. src may alias the storage of a.
func (a *Array[T]) Append(src ...T) error {
	n := len(src)
	if n == 0 {
		return nil
	}
	// src keeps pointing to the old storage if Reserve moves a.
	if err := a.Reserve(n); err != nil {
		return err
	}
	l := len(a.buf)
	a.buf = a.buf[:l+n]
	copy(a.buf[l:], src)
	return nil
}

// Concat appends the elements of src to dst. dst and src may be the same array.
func Concat[T any](dst, src *Array[T]) error {
	return dst.Append(src.buf...)
}

// Copy makes dst an independent copy of src, with the same length and capacity.
// The previous storage of dst is dropped.
func Copy[T any](dst, src *Array[T]) {
	if dst == src {
		return
	}
	if src.buf == nil {
		dst.buf = nil
		return
	}
	buf := make([]T, len(src.buf), cap(src.buf))
	copy(buf, src.buf)
	dst.buf = buf
}

// Clone returns an independent copy of a.
func (a *Array[T]) Clone() *Array[T] {
	c := &Array[T]{}
	Copy(c, a)
	return c
}

// ShrinkToFit reduces the capacity to the length.
// An empty array releases its storage.
func (a *Array[T]) ShrinkToFit() {
	if len(a.buf) == cap(a.buf) {
		return
	}
	if len(a.buf) == 0 {
		a.buf = nil
		return
	}
	a.resize(len(a.buf))
}

// Free releases the storage. a is empty afterwards and can be reused.
func (a *Array[T]) Free() {
	a.buf = nil
}

func (a *Array[T]) resize(newcap int) {
	safecheck.Assertf(newcap >= len(a.buf), "array: resize to %d, len %d", newcap, len(a.buf))
	buf := make([]T, len(a.buf), newcap)
	copy(buf, a.buf)
	a.buf = buf
}

// grow adds at least extra elements of capacity.
func (a *Array[T]) grow(extra int) error {
	if extra <= 0 {
		return nil
	}
	newcap, ok := growCap(cap(a.buf), extra, elemSize[T]())
	if !ok || !fits[T](newcap) {
		// retry with exactly what is needed
		newcap, ok = addInt(cap(a.buf), extra)
		if !ok || !fits[T](newcap) {
			return errors.Wrapf(ErrOverflow, "cap=%d, extra=%d", cap(a.buf), extra)
		}
	}
	safecheck.Assertf(newcap-cap(a.buf) >= extra, "array: grew %d, want %d", newcap-cap(a.buf), extra)
	a.resize(newcap)
	return nil
}
