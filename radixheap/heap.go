// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package radixheap implements an internal-memory monotone radix heap:
// an integer-keyed priority queue with O(1) amortized push and
// O(log(max_key)) amortized extract, under the constraint that no
// pushed key may fall below the smallest key already extracted.
package radixheap

import (
	"math/bits"
	"unsafe"

	"code.hybscloud.com/emsort/cqueue"
)

// Key is the set of unsigned integer widths a RadixHeap can be keyed
// by: W in {8,16,32,64} bits.
type Key interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

type entry[K Key, V any] struct {
	key   K
	value V
}

type bucket[K Key, V any] struct {
	queue   *cqueue.CircularQueue[entry[K, V]]
	seenMin uint64
}

// RadixHeap is a single-threaded monotone-keyed priority queue keyed by
// an unsigned integer of width W in {8,16,32,64} bits, using W+1
// buckets, one per shared-high-bit class with bucket 0 reserved for
// keys equal to the current minimum.
//
// RadixHeap is not safe for concurrent use: all Push/Top/Pop calls must
// be serialized externally.
type RadixHeap[K Key, V any] struct {
	size    uint64
	minKey  uint64
	buckets []bucket[K, V]
}

// New returns an empty RadixHeap keyed by K.
func New[K Key, V any]() *RadixHeap[K, V] {
	var zero K
	width := int(unsafe.Sizeof(zero)) * 8
	buckets := make([]bucket[K, V], width+1)
	for i := range buckets {
		buckets[i] = bucket[K, V]{
			queue:   cqueue.New[entry[K, V]](),
			seenMin: ^uint64(0),
		}
	}
	return &RadixHeap[K, V]{buckets: buckets}
}

// bucketID returns the bucket index for key given the heap's current
// minimum: 0 if key equals the minimum, else the 1-based position of
// the highest bit where key differs from the minimum.
func bucketID(key, minKey uint64) int {
	if key == minKey {
		return 0
	}
	return 64 - bits.LeadingZeros64(key^minKey)
}

// Push inserts (key, value). key must be >= the heap's current minimum,
// which Top and Pop raise to the smallest key present (so it is at
// least the largest key yet extracted); violating this is a
// precondition violation and panics.
func (h *RadixHeap[K, V]) Push(key K, value V) {
	k := uint64(key)
	if k < h.minKey {
		panic("radixheap: pushed key below current minimum")
	}
	id := bucketID(k, h.minKey)
	b := &h.buckets[id]
	b.queue.Push(entry[K, V]{key: key, value: value})
	if k < b.seenMin {
		b.seenMin = k
	}
	h.size++
}

// Len returns the number of items currently held.
func (h *RadixHeap[K, V]) Len() uint64 {
	return h.size
}

// Empty reports whether the heap holds no items.
func (h *RadixHeap[K, V]) Empty() bool {
	return h.size == 0
}

// Top returns the key and value of the smallest-keyed item without
// removing it. Calling Top on an empty heap is undefined.
func (h *RadixHeap[K, V]) Top() (key K, value V) {
	if h.buckets[0].queue.Empty() {
		h.redistribute()
	}
	e := h.buckets[0].queue.Front()
	return e.key, e.value
}

// Pop removes the smallest-keyed item. Calling Pop on an empty heap is
// undefined.
func (h *RadixHeap[K, V]) Pop() {
	if h.buckets[0].queue.Empty() {
		h.redistribute()
	}
	h.buckets[0].queue.Pop()
	h.size--
}

// redistribute finds the smallest non-empty bucket, raises minKey to
// its seenMin, and pushes every entry in that bucket back through
// bucketID — at least one of which lands in bucket 0.
func (h *RadixHeap[K, V]) redistribute() {
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
		newID := bucketID(uint64(e.key), h.minKey)
		nb := &h.buckets[newID]
		nb.queue.Push(e)
		if uint64(e.key) < nb.seenMin {
			nb.seenMin = uint64(e.key)
		}
	}
	b.seenMin = ^uint64(0)
}
