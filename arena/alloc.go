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
	"math/bits"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/cloudwego/zmem/internal/safecheck"
)

// Typed helpers.
//
// Arena memory is not scanned by the GC, T MUST NOT contain pointers,
// slices, strings, maps, channels, funcs or interfaces. Anything stored in
// arena memory that references the Go heap may be collected under it.

// Alloc returns a zeroed *T stored inside the arena.
func Alloc[T any](a *Arena) (*T, error) {
	var zero T
	size := int(unsafe.Sizeof(zero))
	safecheck.Assert(int(unsafe.Alignof(zero)) <= Align, "arena: alignment of T exceeds Align")
	if size == 0 {
		return new(T), nil
	}
	b, err := a.Alloc(size)
	if err != nil {
		return nil, err
	}
	clear(b)
	return (*T)(unsafe.Pointer(unsafe.SliceData(b))), nil
}

// AllocSlice returns a zeroed []T of len and cap n stored inside the arena.
// It returns nil for n == 0.
func AllocSlice[T any](a *Arena, n int) ([]T, error) {
	s, err := allocSlice[T](a, n)
	if err != nil {
		return nil, err
	}
	clear(s)
	return s, nil
}

// Copy returns a copy of src stored inside the arena.
func Copy[T any](a *Arena, src []T) ([]T, error) {
	s, err := allocSlice[T](a, len(src))
	if err != nil {
		return nil, err
	}
	copy(s, src)
	return s, nil
}

func allocSlice[T any](a *Arena, n int) ([]T, error) {
	if n < 0 {
		return nil, errors.Wrapf(ErrNegativeSize, "n=%d", n)
	}
	if n == 0 {
		return nil, nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	safecheck.Assert(int(unsafe.Alignof(zero)) <= Align, "arena: alignment of T exceeds Align")
	if size == 0 {
		return make([]T, n), nil
	}
	hi, total := bits.Mul(uint(n), uint(size))
	if hi != 0 || total > uint(maxInt) {
		return nil, errors.Wrapf(ErrTooLarge, "n=%d, elem size=%d", n, size)
	}
	b, err := a.Alloc(int(total))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}

const maxInt = int(^uint(0) >> 1)
