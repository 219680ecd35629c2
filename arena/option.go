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
	"golang.org/x/exp/slog"

	"github.com/cloudwego/zmem/unsafex/malloc"
)

// DefaultBlockSize is the default size of blocks acquired by an arena (256KB).
const DefaultBlockSize = 256 << 10

// Option ...
type Option struct {
	// BlockSize is the minimum size of a freshly acquired block.
	// Requests larger than BlockSize get a block of their own size.
	// Values <= 0 mean DefaultBlockSize.
	BlockSize int

	// Allocator provides the blocks. nil means malloc.Default.
	Allocator malloc.AlignedAllocator

	// Logger receives debug records about block management
	// and a warning when a block can't be acquired. nil disables logging.
	Logger *slog.Logger
}

// DefaultOption returns the default values of Option.
func DefaultOption() *Option {
	return &Option{
		BlockSize: DefaultBlockSize,
		Allocator: malloc.Default,
	}
}
