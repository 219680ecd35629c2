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

package unsafex

import "unsafe"

// Addr returns the address of the backing array of s.
// It's valid for zero-length slices with a non-nil backing array.
func Addr[T any](s []T) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(s)))
}

// IsAligned reports whether the backing array of b starts on an align boundary.
// align must be a power of two.
func IsAligned(b []byte, align int) bool {
	return Addr(b)&uintptr(align-1) == 0
}

// AlignUp rounds n up to a multiple of align, a power of two.
// ok is false if the result doesn't fit in an int.
func AlignUp(n, align int) (v int, ok bool) {
	mask := align - 1
	if n > maxInt-mask {
		return 0, false
	}
	return (n + mask) &^ mask, true
}

// AlignSlice returns the sub-slice of b whose first byte is align-aligned.
// It returns nil if b is too short to contain an aligned byte.
func AlignSlice(b []byte, align int) []byte {
	p := Addr(b)
	shift := int((uintptr(align) - p&uintptr(align-1)) & uintptr(align-1))
	if shift >= cap(b) {
		return nil
	}
	if shift > len(b) {
		return b[shift:shift]
	}
	return b[shift:]
}

// Overlaps reports whether the memory ranges covered by a and b share any element.
// Ranges are taken from len, not cap.
func Overlaps[T any](a, b []T) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	var zero T
	sz := unsafe.Sizeof(zero)
	if sz == 0 {
		return false
	}
	pa, pb := Addr(a), Addr(b)
	return pa < pb+uintptr(len(b))*sz && pb < pa+uintptr(len(a))*sz
}

const maxInt = int(^uint(0) >> 1)
