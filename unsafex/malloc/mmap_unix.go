//go:build unix

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
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// MmapAllocator maps anonymous private pages for every buffer.
// Buffers are page aligned and zeroed by the kernel, and FreeAligned
// returns them to the OS right away. Sizes are rounded up to whole pages
// by the kernel, so it suits large blocks.
type MmapAllocator struct{}

var _ AlignedAllocator = MmapAllocator{}

// AllocAligned implements AlignedAllocator.
func (MmapAllocator) AllocAligned(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "mmap %d bytes: %v", size, err)
	}
	return b, nil
}

// FreeAligned implements AlignedAllocator.
// Buffers not created by AllocAligned are ignored.
func (MmapAllocator) FreeAligned(buf []byte) {
	if cap(buf) == 0 {
		return
	}
	_ = unix.Munmap(buf)
}
