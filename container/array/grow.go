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

package array

import (
	"math/bits"
	"unsafe"

	"github.com/cloudwego/zmem/unsafex/malloc"
)

const (
	initialBytes = 64       // first allocation of an empty array
	doublingMax  = 64 << 10 // arrays below this size double
	extraMax     = 32 << 10 // unless the request alone is this big
	stepBytes    = 64 << 10 // minimum linear step past doublingMax
)

const maxInt = int(^uint(0) >> 1)

// elemSize returns the size of T, 1 for zero-size types.
func elemSize[T any]() int {
	var zero T
	if sz := int(unsafe.Sizeof(zero)); sz > 0 {
		return sz
	}
	return 1
}

// fits reports whether n elements of T stay within malloc.MaxAllocSize.
func fits[T any](n int) bool {
	if n < 0 {
		return false
	}
	hi, lo := bits.Mul(uint(n), uint(elemSize[T]()))
	return hi == 0 && lo <= malloc.MaxAllocSize
}

// growCap returns the new capacity for an array of capacity c
// that needs extra more elements of size es. ok is false on overflow.
//
//   - c == 0: max(extra, 64B worth of elements)
//   - small arrays and requests: double, or c+extra if that's more
//   - otherwise: c + max(64KB worth of elements, ceilPow2(extra))
func growCap(c, extra, es int) (newcap int, ok bool) {
	if c == 0 {
		n := initialBytes / es
		if extra > n {
			n = extra
		}
		return n, true
	}
	hi, extraBytes := bits.Mul(uint(extra), uint(es))
	if hi != 0 {
		return 0, false
	}
	if c*es < doublingMax && extraBytes < extraMax {
		if c >= extra {
			return c * 2, true
		}
		return c + extra, true
	}
	step := stepBytes / es
	p, pok := ceilPow2(extra)
	if !pok {
		return 0, false
	}
	if p > step {
		step = p
	}
	return addInt(c, step)
}

// ceilPow2 returns the smallest power of two >= n, n > 0.
func ceilPow2(n int) (int, bool) {
	if n <= 1 {
		return 1, true
	}
	shift := bits.Len(uint(n - 1))
	if shift >= bits.UintSize-1 {
		return 0, false
	}
	return 1 << shift, true
}

func addInt(a, b int) (int, bool) {
	if a > maxInt-b {
		return 0, false
	}
	return a + b, true
}
