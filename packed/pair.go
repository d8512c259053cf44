// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packed

// Pair stores two fields contiguously with no inter-field padding, for
// use as a key/value record in streams and radix heaps.
//
// Go guarantees zero padding between First and Second whenever both
// field types have byte alignment — true for Int24, Int40 and any
// other fixed-size byte-array type. Mixing in a naturally-aligned
// scalar (uint32, uint64, ...) may reintroduce padding in memory,
// exactly as it would in C without __attribute__((packed)); the
// Pair[K,V] records emradixheap spills are of that kind, and
// stream.PairCodec writes their two fields back to back on disk
// regardless of the in-memory layout.
type Pair[S any, T any] struct {
	First  S
	Second T
}

// NewPair constructs a Pair from its two fields.
func NewPair[S any, T any](first S, second T) Pair[S, T] {
	return Pair[S, T]{First: first, Second: second}
}
