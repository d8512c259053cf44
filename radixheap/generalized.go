// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package radixheap

import (
	"unsafe"

	"code.hybscloud.com/emsort/cqueue"
)

// Generalized is the radix-base-larger-than-2 variant of RadixHeap: a
// vector of per-digit bit widths r_0, r_1, ... partitions the key's W
// bits, and the bucket id is the pair (digit index, digit value)
// identifying the highest-index digit where the current key differs
// from the current minimum. Redistribute and FIFO semantics are
// otherwise identical to the binary RadixHeap.
type Generalized[K Key, V any] struct {
	size   uint64
	minKey uint64

	digitWidths []uint
	digitOffset []uint // offset in bits from the LSB, per digit
	digitMask   []uint64
	bucketBase  []int // flat bucket index of (digit, value=1) per digit

	buckets []bucket[K, V]
}

// NewGeneralized returns an empty Generalized radix heap whose digit
// widths (from least to most significant) are digitWidths. The widths
// must sum to exactly the bit width of K (8, 16, 32 or 64).
func NewGeneralized[K Key, V any](digitWidths []uint) *Generalized[K, V] {
	var zero K
	width := uint(unsafe.Sizeof(zero)) * 8

	var sum uint
	for _, w := range digitWidths {
		if w == 0 {
			panic("radixheap: digit width must be positive")
		}
		sum += w
	}
	if sum != width {
		panic("radixheap: digit widths must sum to the key's bit width")
	}

	h := &Generalized[K, V]{
		digitWidths: append([]uint(nil), digitWidths...),
		digitOffset: make([]uint, len(digitWidths)),
		digitMask:   make([]uint64, len(digitWidths)),
		bucketBase:  make([]int, len(digitWidths)),
	}

	offset := uint(0)
	numBuckets := 1 // bucket 0
	for i, w := range digitWidths {
		h.digitOffset[i] = offset
		h.digitMask[i] = (uint64(1) << w) - 1
		h.bucketBase[i] = numBuckets
		numBuckets += int(uint64(1)<<w) - 1
		offset += w
	}

	h.buckets = make([]bucket[K, V], numBuckets)
	for i := range h.buckets {
		h.buckets[i] = bucket[K, V]{
			queue:   cqueue.New[entry[K, V]](),
			seenMin: ^uint64(0),
		}
	}
	return h
}

// bucketID returns the flat bucket index for key given the heap's
// current minimum.
func (h *Generalized[K, V]) bucketID(key uint64) int {
	if key == h.minKey {
		return 0
	}
	x := key ^ h.minKey
	for i := len(h.digitWidths) - 1; i >= 0; i-- {
		if (x>>h.digitOffset[i])&h.digitMask[i] != 0 {
			v := (key >> h.digitOffset[i]) & h.digitMask[i]
			return h.bucketBase[i] + int(v) - 1
		}
	}
	// Unreachable: x != 0 guarantees some digit is non-zero.
	panic("radixheap: key equals minimum but xor was non-zero")
}

// Push inserts (key, value). key must be >= the heap's current minimum,
// which Top and Pop raise to the smallest key present; a smaller key
// panics.
func (h *Generalized[K, V]) Push(key K, value V) {
	k := uint64(key)
	if k < h.minKey {
		panic("radixheap: pushed key below current minimum")
	}
	id := h.bucketID(k)
	b := &h.buckets[id]
	b.queue.Push(entry[K, V]{key: key, value: value})
	if k < b.seenMin {
		b.seenMin = k
	}
	h.size++
}

// Len returns the number of items currently held.
func (h *Generalized[K, V]) Len() uint64 { return h.size }

// Empty reports whether the heap holds no items.
func (h *Generalized[K, V]) Empty() bool { return h.size == 0 }

// Top returns the key and value of the smallest-keyed item without
// removing it.
func (h *Generalized[K, V]) Top() (key K, value V) {
	if h.buckets[0].queue.Empty() {
		h.redistribute()
	}
	e := h.buckets[0].queue.Front()
	return e.key, e.value
}

// Pop removes the smallest-keyed item.
func (h *Generalized[K, V]) Pop() {
	if h.buckets[0].queue.Empty() {
		h.redistribute()
	}
	h.buckets[0].queue.Pop()
	h.size--
}

func (h *Generalized[K, V]) redistribute() {
	id := 0
	for h.buckets[id].queue.Empty() {
		id++
	}
	h.minKey = h.buckets[id].seenMin

	b := &h.buckets[id]
	n := b.queue.Len()
	for range n {
		e := b.queue.Front()
		b.queue.Pop()
		newID := h.bucketID(uint64(e.key))
		nb := &h.buckets[newID]
		nb.queue.Push(e)
		if uint64(e.key) < nb.seenMin {
			nb.seenMin = uint64(e.key)
		}
	}
	b.seenMin = ^uint64(0)
}
