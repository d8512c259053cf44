// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package emsort provides the I/O and priority-queue substrate for
// external-memory suffix-array construction: async block-buffered
// stream readers and writers (forward, backward, multi-part, and
// bit-level variants), internal and external radix heaps, packed
// integer and pair value types, and a dynamic circular queue.
//
// # Packages
//
//	iobuf/        BoundedPool, NewBuffers, RegisterBufferPool — the
//	              buffer-pool substrate stream and emradixheap borrow
//	              pages from.
//	packed/       Int24, Int40, Pair[S,T], the fixed-width
//	              record payloads the rest of the module moves around.
//	cqueue/       CircularQueue[T], the in-RAM ring every radix heap
//	              bucket keeps its resident head in.
//	stream/       AsyncStreamWriter/Reader, their multipart variants,
//	              and the backward (tail-to-head) word and bit readers.
//	radixheap/    RadixHeap[K,V], entirely in memory.
//	emradixheap/  EMRadixHeap[K,V], radixheap's external-memory
//	              counterpart: the same bucket algorithm with an
//	              unbounded on-disk tail per bucket.
//	ramtrack/     Tracker, the shared current/peak RAM accounting
//	              handle emradixheap reserves and releases against.
//
// This top-level package holds no algorithm of its own; it declares
// FatalError, the wrapper the stream constructors return, after logging,
// when opening or stat-ing a file fails. Read and write failures in the
// background I/O goroutines are logged fatally and never reach a caller.
package emsort
