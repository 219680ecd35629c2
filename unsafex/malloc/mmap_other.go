//go:build !unix

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

// MmapAllocator is only available on unix, AllocAligned always fails here.
type MmapAllocator struct{}

var _ AlignedAllocator = MmapAllocator{}

// AllocAligned implements AlignedAllocator.
func (MmapAllocator) AllocAligned(size int) ([]byte, error) {
	if err := checkSize(size); err != nil {
		return nil, err
	}
	return nil, ErrUnsupported
}

// FreeAligned implements AlignedAllocator.
func (MmapAllocator) FreeAligned(buf []byte) {}
