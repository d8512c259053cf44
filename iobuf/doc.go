// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package iobuf provides the two pieces of buffer storage the rest of this
// module builds on: plain multi-buffer allocation for the stream package's
// double-buffered readers/writers, and a lock-free bounded pool of
// RegisterBuffer scratch pages shared across emradixheap's concurrently
// open spill streams.
//
// # Buffers
//
// NewBuffers allocates n independent byte slices of a given size — the
// storage behind every stream.AsyncStreamWriter/AsyncStreamReader that
// doesn't borrow pages from a shared pool.
//
// # Bounded Pool
//
// BoundedPool is a lock-free multi-producer multi-consumer (MPMC) pool
// based on the algorithm from "A Scalable, Portable, and Memory-Efficient
// Lock-Free FIFO Queue" (Ruslan Nikolaev, 2019). Key characteristics:
//
//   - Lock-free: uses atomic CAS operations, no mutexes
//   - Bounded: fixed capacity rounded to the next power of two
//   - Memory-efficient: single contiguous array, no per-element allocation
//   - Cache-optimized: remapped to reduce false sharing between adjacent slots
//
// RegisterBufferPool is BoundedPool[RegisterBuffer] — a pool of 128 KiB
// pages. The pool stores indices (int) rather than buffer values directly,
// so a borrower accesses its page through Pointer(idx), which aliases the
// pool's own backing array instead of copying it:
//
//	pool := NewRegisterBufferPool(64)
//	pool.Fill(func() RegisterBuffer { return RegisterBuffer{} })
//	idx, err := pool.Get()          // Acquire a page index
//	if err != nil {
//	    // Handle iox.ErrWouldBlock (pool empty, nonblocking mode)
//	}
//	page := pool.Pointer(idx)       // Alias the pool's own page, no copy
//	// Use page[:]...
//	pool.Put(idx)                   // Return the page to the pool
//
// # Architecture Requirements
//
// This package requires a 64-bit CPU architecture (amd64, arm64, riscv64,
// loong64, ppc64, ppc64le, s390x, mips64, mips64le). 32-bit architectures
// are not supported due to 64-bit atomic operations in BoundedPool.
//
// # Thread Safety
//
// All pool operations are safe for concurrent use. BoundedPool supports
// multiple concurrent producers and consumers without external
// synchronization.
//
// # Dependencies
//
// iobuf depends on:
//   - iox: ErrWouldBlock and the Backoff adaptive wait
//   - spin: Spinlock and spin-wait primitives for backpressure
package iobuf
