// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package iobuf

// registerBufferSize is the page size handed out by a RegisterBufferPool:
// large enough to amortize a disk seek for an external-memory spill
// stream, small enough that a heap spilling dozens of buckets at once
// doesn't need gigabytes of scratch RAM.
const registerBufferSize = 1 << 17 // 128 KiB

type (
	// RegisterBuffer is a fixed-size scratch page borrowed from a
	// RegisterBufferPool by a spill writer or reader.
	RegisterBuffer [registerBufferSize]byte

	// RegisterBufferPool is a bounded pool of RegisterBuffer pages shared
	// across many concurrently-open spill streams instead of each one
	// allocating its own buffer storage.
	RegisterBufferPool = BoundedPool[RegisterBuffer]
)

// NewBuffers creates a Buffers slice containing n byte slices, each of length size.
//
// Returns an empty Buffers if n < 1. Each inner slice is independently allocated.
func NewBuffers(n int, size int) Buffers {
	if n < 1 {
		return Buffers{}
	}
	ret := make(Buffers, n)
	for i := range n {
		if size > 0 {
			ret[i] = make([]byte, size)
		} else {
			ret[i] = []byte{}
		}
	}

	return ret
}

// NewRegisterBufferPool creates a RegisterBufferPool with the given
// capacity (rounded up to the next power of two), ready for Fill.
func NewRegisterBufferPool(capacity int) *RegisterBufferPool {
	return NewBoundedPool[RegisterBuffer](capacity)
}
