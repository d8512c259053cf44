// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package emradixheap implements the external-memory counterpart of
// radixheap: a monotone radix-bucketed priority queue whose buckets
// spill to disk once their in-RAM head exceeds a caller-set budget,
// spreading over one background I/O goroutine per currently-open spill
// file. Same bucket algorithm as radixheap, just with an unbounded
// per-bucket tail living on disk instead of entirely in memory.
package emradixheap

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"code.hybscloud.com/emsort/cqueue"
	"code.hybscloud.com/emsort/iobuf"
	"code.hybscloud.com/emsort/packed"
	"code.hybscloud.com/emsort/radixheap"
	"code.hybscloud.com/emsort/ramtrack"
	"code.hybscloud.com/emsort/stream"
)

// Key re-exports radixheap's key width constraint.
type Key = radixheap.Key

// maxPooledSpillBuckets bounds how many buckets' worth of scratch pages
// the shared RegisterBufferPool plans for concurrently, independent of
// how many buckets a wide digit width creates. See newHeap.
const maxPooledSpillBuckets = 64

type entry[K Key, V any] struct {
	key   K
	value V
}

// bucket 0 (entries equal to the current minimum) is kept entirely in
// RAM and never spills: it is the heap's actively-drained "front line",
// expected to stay small because the caller pops from it promptly, and
// keeping it memory-only sidesteps having to support peeking the head
// of a forward disk stream without consuming it. Every other bucket
// spills its oldest entry to tmp_dir whenever an insert pushes the
// heap's shared ramtrack.Tracker over its budget: in-memory holds the
// most recently pushed items, disk holds older ones.
type bucket[K Key, V any] struct {
	mem         *cqueue.CircularQueue[entry[K, V]]
	seenMin     uint64
	spillWriter *stream.AsyncStreamWriter[packed.Pair[K, V]]
	spillPath   string
	spillBufIdx []int // indices borrowed from EMRadixHeap.bufPool for spillWriter
}

// EMRadixHeap is the external-memory analogue of radixheap.RadixHeap:
// same bucket-function algorithm (binary or generalized, selected at
// construction), but each non-zero bucket keeps only a bounded number
// of its most recent items in RAM and spills the rest to tmp_dir.
//
// Not safe for concurrent use: all Push/Top/Pop calls must be
// serialized externally, exactly as for radixheap.
type EMRadixHeap[K Key, V any] struct {
	size   uint64
	minKey uint64

	digitWidths []uint
	digitOffset []uint
	digitMask   []uint64
	bucketBase  []int

	buckets []bucket[K, V]

	keyCodec  stream.Codec[K]
	valCodec  stream.Codec[V]
	pairCodec stream.Codec[packed.Pair[K, V]]

	tmpDir   string
	nBuffers int
	bufSize  int
	bufPool  *iobuf.RegisterBufferPool
	ram      *ramtrack.Tracker
	log      *zap.Logger

	ioVolume atomic.Uint64
}

// NewUniform returns an EMRadixHeap whose digit width is a single
// shared value digitWidth across every digit of K's bit width (the
// uniform variant; digitWidth=1 reduces to a plain binary radix
// heap). ramBudgetBytes bounds the combined in-RAM
// size of every non-zero bucket's head. Spill files are created under
// tmpDir, named with a random uuid per spill session.
func NewUniform[K Key, V any](digitWidth uint, tmpDir string, ramBudgetBytes int64, keyCodec stream.Codec[K], valCodec stream.Codec[V], spillBufBytes, spillNBuffers int, log *zap.Logger) *EMRadixHeap[K, V] {
	var zero K
	width := uint(unsafe.Sizeof(zero)) * 8
	if width%digitWidth != 0 {
		panic("emradixheap: digit width must divide the key's bit width")
	}
	widths := make([]uint, width/digitWidth)
	for i := range widths {
		widths[i] = digitWidth
	}
	return newHeap[K, V](widths, tmpDir, ramBudgetBytes, keyCodec, valCodec, spillBufBytes, spillNBuffers, log)
}

// NewNonUniform returns an EMRadixHeap whose digit widths (least to
// most significant) are digitWidths, which must sum to K's bit width
// (the non-uniform variant, allowing different digits to use different
// widths instead of one shared width).
func NewNonUniform[K Key, V any](digitWidths []uint, tmpDir string, ramBudgetBytes int64, keyCodec stream.Codec[K], valCodec stream.Codec[V], spillBufBytes, spillNBuffers int, log *zap.Logger) *EMRadixHeap[K, V] {
	return newHeap[K, V](digitWidths, tmpDir, ramBudgetBytes, keyCodec, valCodec, spillBufBytes, spillNBuffers, log)
}

// Log2Ceil returns the smallest w such that 1<<w >= x (0 for x <= 1).
func Log2Ceil(x uint64) uint {
	if x <= 1 {
		return 0
	}
	w := uint(0)
	pow2 := uint64(1)
	for pow2 < x {
		pow2 <<= 1
		w++
	}
	return w
}

// Log2Floor returns the largest w such that 1<<w <= x (0 for x == 0).
func Log2Floor(x uint64) uint {
	if x == 0 {
		return 0
	}
	w := uint(0)
	pow2 := uint64(1)
	for (pow2 << 1) <= x {
		pow2 <<= 1
		w++
	}
	return w
}

// NewNonUniformFromMaxBits picks a default non-uniform digit-width
// split from a caller-supplied maximum key bit width, for callers that
// know keys never exceed maxKeyBits significant bits but don't want to
// lay out every digit by hand. The default digit width is
// Log2Ceil(maxKeyBits) — the fewest bits that can still address
// maxKeyBits worth of bucket range along one digit — repeated to cover
// K's full bit width, with the final digit truncated to whatever
// remains. A maxKeyBits of 0 or greater than K's width is treated as
// K's full width.
func NewNonUniformFromMaxBits[K Key, V any](maxKeyBits uint, tmpDir string, ramBudgetBytes int64, keyCodec stream.Codec[K], valCodec stream.Codec[V], spillBufBytes, spillNBuffers int, log *zap.Logger) *EMRadixHeap[K, V] {
	var zero K
	width := uint(unsafe.Sizeof(zero)) * 8
	if maxKeyBits == 0 || maxKeyBits > width {
		maxKeyBits = width
	}
	digitWidth := Log2Ceil(uint64(maxKeyBits))
	if digitWidth == 0 {
		digitWidth = 1
	}

	var widths []uint
	for remaining := width; remaining > 0; {
		w := digitWidth
		if w > remaining {
			w = remaining
		}
		widths = append(widths, w)
		remaining -= w
	}
	return newHeap[K, V](widths, tmpDir, ramBudgetBytes, keyCodec, valCodec, spillBufBytes, spillNBuffers, log)
}

func newHeap[K Key, V any](digitWidths []uint, tmpDir string, ramBudgetBytes int64, keyCodec stream.Codec[K], valCodec stream.Codec[V], spillBufBytes, spillNBuffers int, log *zap.Logger) *EMRadixHeap[K, V] {
	if log == nil {
		log = zap.NewNop()
	}
	var zero K
	width := uint(unsafe.Sizeof(zero)) * 8

	var sum uint
	for _, w := range digitWidths {
		if w == 0 {
			panic("emradixheap: digit width must be positive")
		}
		sum += w
	}
	if sum != width {
		panic("emradixheap: digit widths must sum to the key's bit width")
	}

	h := &EMRadixHeap[K, V]{
		digitWidths: append([]uint(nil), digitWidths...),
		digitOffset: make([]uint, len(digitWidths)),
		digitMask:   make([]uint64, len(digitWidths)),
		bucketBase:  make([]int, len(digitWidths)),
		keyCodec:    keyCodec,
		valCodec:    valCodec,
		pairCodec:   stream.PairCodec(keyCodec, valCodec),
		tmpDir:      tmpDir,
		nBuffers:    spillNBuffers,
		log:         log,
	}

	offset := uint(0)
	numBuckets := 1
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
			mem:     cqueue.New[entry[K, V]](),
			seenMin: ^uint64(0),
		}
	}

	h.ram = ramtrack.NewTracker(ramBudgetBytes)
	h.bufSize = stream.RecordAlignedBufSize(spillBufBytes, spillNBuffers, h.pairCodec.Size)
	// Every non-zero bucket can have, at most, one spill stream open at
	// once, so sizing the pool for every bucket spilling concurrently
	// would rule out Get() ever blocking — but a wide digit width can
	// put tens of thousands of buckets in play, which would balloon the
	// pool to an unreasonable size for a workload that in practice never
	// has more than a handful of buckets spilling at a time between
	// Pop()s. Cap the fan-out the pool plans for instead: beyond that,
	// Get() blocks until a redistribute drains and releases some
	// bucket's pages, which is fine as long as the caller pops regularly
	// (always true for a heap actually being drained, as opposed to one
	// only ever pushed into).
	poolBuckets := min(numBuckets, maxPooledSpillBuckets)
	h.bufPool = iobuf.NewRegisterBufferPool(poolBuckets * spillNBuffers)
	h.bufPool.Fill(func() iobuf.RegisterBuffer { return iobuf.RegisterBuffer{} })

	return h
}

// acquireSpillBufs borrows nBuffers scratch pages from the shared
// RegisterBufferPool, returning both their pool indices (to give back
// via releaseSpillBufs once the spill stream using them closes) and an
// iobuf.Buffers view sized to bufSize, ready to hand to a
// stream.*FromBuffers constructor.
func (h *EMRadixHeap[K, V]) acquireSpillBufs() (indices []int, bufs iobuf.Buffers) {
	indices = make([]int, h.nBuffers)
	bufs = make(iobuf.Buffers, h.nBuffers)
	for i := range indices {
		idx, err := h.bufPool.Get()
		if err != nil {
			h.log.Fatal("emradixheap: scratch buffer pool exhausted", zap.Error(err))
		}
		indices[i] = idx
		page := h.bufPool.Pointer(idx) // alias the pool's own page, not a copy
		bufs[i] = page[:h.bufSize]
	}
	return indices, bufs
}

// releaseSpillBufs returns previously acquired pages to the shared pool.
func (h *EMRadixHeap[K, V]) releaseSpillBufs(indices []int) {
	for _, idx := range indices {
		if err := h.bufPool.Put(idx); err != nil {
			h.log.Fatal("emradixheap: scratch buffer pool release failed", zap.Error(err))
		}
	}
}

func (h *EMRadixHeap[K, V]) bucketID(key uint64) int {
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
	panic("emradixheap: key equals minimum but xor was non-zero")
}

// Push inserts (key, value). key must be >= the heap's current minimum,
// which Top and Pop raise to the smallest key present; a smaller key
// panics.
func (h *EMRadixHeap[K, V]) Push(key K, value V) {
	k := uint64(key)
	if k < h.minKey {
		panic("emradixheap: pushed key below current minimum")
	}
	h.insert(h.bucketID(k), entry[K, V]{key: key, value: value})
	h.size++
}

// insert places e into bucket id, then reserves its RAM footprint
// against the shared tracker; a non-zero bucket that pushes the
// tracker over budget spills its own oldest in-RAM item to disk to
// compensate. Does not touch size: callers that move existing items
// (redistribute) must not double-count.
func (h *EMRadixHeap[K, V]) insert(id int, e entry[K, V]) {
	b := &h.buckets[id]
	k := uint64(e.key)
	if k < b.seenMin {
		b.seenMin = k
	}
	b.mem.Push(e)
	if within := h.ram.Reserve(int64(h.pairCodec.Size)); id != 0 && !within {
		h.spillOldest(b, id)
	}
}

func (h *EMRadixHeap[K, V]) spillOldest(b *bucket[K, V], id int) {
	e := b.mem.Front()
	b.mem.Pop()
	h.ram.Release(int64(h.pairCodec.Size))
	if b.spillWriter == nil {
		path := filepath.Join(h.tmpDir, fmt.Sprintf("bucket%04d-%s.spill", id, uuid.New().String()))
		indices, bufs := h.acquireSpillBufs()
		w, err := stream.NewAsyncStreamWriterFromBuffers(path, bufs, h.pairCodec, h.log)
		if err != nil {
			h.log.Fatal("emradixheap: spill writer open failed", zap.String("path", path), zap.Error(err))
			return
		}
		b.spillWriter = w
		b.spillPath = path
		b.spillBufIdx = indices
	}
	b.spillWriter.Write(packed.NewPair(e.key, e.value))
}

// Len returns the number of items currently held.
func (h *EMRadixHeap[K, V]) Len() uint64 { return h.size }

// Empty reports whether the heap holds no items.
func (h *EMRadixHeap[K, V]) Empty() bool { return h.size == 0 }

// Top returns the key and value of the smallest-keyed item without
// removing it.
func (h *EMRadixHeap[K, V]) Top() (key K, value V) {
	if h.buckets[0].mem.Len() == 0 {
		h.redistribute()
	}
	e := h.buckets[0].mem.Front()
	return e.key, e.value
}

// Pop removes the smallest-keyed item.
func (h *EMRadixHeap[K, V]) Pop() {
	if h.buckets[0].mem.Len() == 0 {
		h.redistribute()
	}
	h.buckets[0].mem.Pop()
	h.ram.Release(int64(h.pairCodec.Size))
	h.size--
}

// redistribute finds the smallest non-empty bucket (on disk or in
// RAM), raises minKey to its seenMin, and reinserts every one of its
// entries — disk-resident (oldest) entries first, then the in-RAM
// (more recent) ones — through bucketID, preserving FIFO order.
func (h *EMRadixHeap[K, V]) redistribute() {
	id := 0
	for h.buckets[id].mem.Len() == 0 && h.buckets[id].spillWriter == nil {
		id++
	}
	h.minKey = h.buckets[id].seenMin

	h.drainBucket(id, func(e entry[K, V]) {
		h.insert(h.bucketID(uint64(e.key)), e)
	})
	h.buckets[id].seenMin = ^uint64(0)
}

// drainBucket removes every entry from bucket id, oldest first
// (disk tail, then RAM head), invoking visit for each and deleting the
// bucket's spill file once fully consumed.
func (h *EMRadixHeap[K, V]) drainBucket(id int, visit func(entry[K, V])) {
	b := &h.buckets[id]
	if b.spillWriter != nil {
		path := b.spillPath
		writerBufIdx := b.spillBufIdx
		if err := b.spillWriter.Close(); err != nil {
			h.log.Fatal("emradixheap: spill writer close failed", zap.Error(err))
		}
		h.ioVolume.Add(b.spillWriter.BytesWritten())
		h.releaseSpillBufs(writerBufIdx)
		b.spillWriter = nil
		b.spillPath = ""
		b.spillBufIdx = nil

		readerBufIdx, bufs := h.acquireSpillBufs()
		r, err := stream.NewAsyncStreamReaderFromBuffers(path, bufs, h.pairCodec, h.log)
		if err != nil {
			h.log.Fatal("emradixheap: spill reader open failed", zap.String("path", path), zap.Error(err))
		} else {
			for !r.Empty() {
				p := r.Read()
				// entries read back off disk were Released from the ram
				// tracker when they were spilled; visit (insert) Reserves
				// them again for whichever bucket they land in next.
				visit(entry[K, V]{key: p.First, value: p.Second})
			}
			h.ioVolume.Add(r.BytesRead())
			_ = r.Close()
		}
		h.releaseSpillBufs(readerBufIdx)
		_ = os.Remove(path)
	}

	n := b.mem.Len()
	for i := 0; i < n; i++ {
		e := b.mem.Front()
		b.mem.Pop()
		h.ram.Release(int64(h.pairCodec.Size))
		visit(e)
	}
}

// IoVolume reports total bytes read plus written across every spill
// file this heap has ever opened, including ones already drained and
// deleted.
func (h *EMRadixHeap[K, V]) IoVolume() uint64 {
	return h.ioVolume.Load()
}

// Close closes and deletes every bucket's currently-open spill file,
// concurrently. The temp directory itself is left for the caller to
// remove; only the files this heap created are unlinked.
func (h *EMRadixHeap[K, V]) Close() error {
	var g errgroup.Group
	for i := range h.buckets {
		b := &h.buckets[i]
		if b.spillWriter == nil {
			continue
		}
		w, path, bufIdx := b.spillWriter, b.spillPath, b.spillBufIdx
		b.spillWriter, b.spillPath, b.spillBufIdx = nil, "", nil
		g.Go(func() error {
			err := w.Close()
			h.ioVolume.Add(w.BytesWritten())
			h.releaseSpillBufs(bufIdx)
			_ = os.Remove(path)
			return err
		})
	}
	return g.Wait()
}
