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

// Stats is a snapshot of arena statistics.
type Stats struct {
	BlockSize int // minimum size of acquired blocks

	Blocks          int // all blocks held, including the current one
	UsedBlocks      int // blocks consumed since the last Reset
	AvailableBlocks int // blocks ready for reuse

	Capacity int // bytes held in all blocks
	InUse    int // bytes handed out since the last Reset, rounded up to Align

	Acquired int // blocks acquired from the allocator so far
	Reused   int // times a block was taken from the available list

	Utilization float64 // InUse / Capacity, 0 if Capacity is 0
}

// Stats returns a snapshot of the arena statistics.
func (a *Arena) Stats() Stats {
	s := Stats{
		BlockSize:       a.BlockSize(),
		Blocks:          a.numBlocks(),
		UsedBlocks:      a.used.n,
		AvailableBlocks: a.available.n,
		Capacity:        a.capacity(),
		InUse:           a.retired + a.pos,
		Acquired:        a.acquired,
		Reused:          a.reused,
	}
	if s.Capacity > 0 {
		s.Utilization = float64(s.InUse) / float64(s.Capacity)
	}
	return s
}

// InUse returns the bytes handed out since the last Reset, rounded up to Align.
func (a *Arena) InUse() int {
	return a.retired + a.pos
}

// Capacity returns the bytes held in all blocks.
func (a *Arena) Capacity() int {
	return a.capacity()
}
