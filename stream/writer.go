// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"os"
	"sync/atomic"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"code.hybscloud.com/emsort"
	"code.hybscloud.com/emsort/iobuf"
)

// AsyncStreamWriter appends fixed-width records of type T to one file.
// One background goroutine performs strictly sequential writes while
// the caller fills the active buffer; the two hand buffers to each
// other over bounded channels (free, ready). When
// the caller has flushed several buffers faster than the background
// goroutine gets scheduled, they are coalesced into a single
// unix.Writev call instead of one Write syscall per buffer.
//
// Not safe for concurrent use by multiple goroutines.
type AsyncStreamWriter[T any] struct {
	codec Codec[T]
	file  *os.File
	log   *zap.Logger

	bufs    iobuf.Buffers
	filled  []int // bytes filled in each buffer, set before handoff
	free    chan int
	ready   chan int
	workerG chan struct{} // closed when the worker goroutine returns

	active    int
	activeOff int

	bytesWritten atomic.Uint64
}

// NewAsyncStreamWriter creates (truncating) filename and returns a
// writer that buffers writes across nBuffers buffers totaling
// approximately totalBufBytes. log may be nil, in which case a no-op
// logger is used.
func NewAsyncStreamWriter[T any](filename string, totalBufBytes, nBuffers int, codec Codec[T], log *zap.Logger) (*AsyncStreamWriter[T], error) {
	if nBuffers < 2 {
		nBuffers = 2
	}
	bufSize := RecordAlignedBufSize(totalBufBytes, nBuffers, codec.Size)
	return NewAsyncStreamWriterFromBuffers(filename, iobuf.NewBuffers(nBuffers, bufSize), codec, log)
}

// NewAsyncStreamWriterFromBuffers is like NewAsyncStreamWriter but uses
// caller-supplied, already-allocated buffers instead of allocating its
// own via iobuf.NewBuffers — for callers (emradixheap) that share one
// pool of scratch pages across many concurrently-open streams rather
// than giving every stream its own private allocation.
func NewAsyncStreamWriterFromBuffers[T any](filename string, bufs iobuf.Buffers, codec Codec[T], log *zap.Logger) (*AsyncStreamWriter[T], error) {
	if log == nil {
		log = zap.NewNop()
	}
	nBuffers := len(bufs)

	f, err := os.Create(filename)
	if err != nil {
		log.Fatal("stream: open write failed", zap.String("file", filename), zap.Error(err))
		return nil, emsort.NewFatalError("stream: open write", err)
	}

	w := &AsyncStreamWriter[T]{
		codec:   codec,
		file:    f,
		log:     log,
		bufs:    bufs,
		filled:  make([]int, nBuffers),
		free:    make(chan int, nBuffers),
		ready:   make(chan int, nBuffers),
		workerG: make(chan struct{}),
	}
	for i := 1; i < nBuffers; i++ {
		w.free <- i
	}
	w.active = 0

	go w.run()
	return w, nil
}

// RecordAlignedBufSize divides totalBufBytes into nBuffers buffers,
// rounding each buffer's size down to a multiple of recordSize so a
// record never has to split across a buffer boundary. Exported so
// callers that hand their own iobuf.Buffers to *FromBuffers
// constructors (emradixheap's shared scratch-page pool) can size the
// slice they carve out of each borrowed page the same way.
func RecordAlignedBufSize(totalBufBytes, nBuffers, recordSize int) int {
	bufSize := totalBufBytes / nBuffers
	bufSize -= bufSize % recordSize
	if bufSize < recordSize {
		bufSize = recordSize
	}
	return bufSize
}

// run is the background sequential writer. It batches every buffer
// already sitting in ready at the moment it wakes (the caller may have
// flushed several in a row faster than this goroutine got scheduled)
// into one unix.Writev call instead of one Write syscall per buffer.
func (w *AsyncStreamWriter[T]) run() {
	defer close(w.workerG)
	fd := int(w.file.Fd())
	for idx := range w.ready {
		batch := []int{idx}
	drain:
		for {
			select {
			case more, ok := <-w.ready:
				if !ok {
					break drain
				}
				batch = append(batch, more)
			default:
				break drain
			}
		}

		iov := make([][]byte, 0, len(batch))
		attempted := 0
		for _, i := range batch {
			if n := w.filled[i]; n > 0 {
				iov = append(iov, w.bufs[i][:n])
				attempted += n
			}
		}
		if len(iov) > 0 {
			n, err := unix.Writev(fd, iov)
			if err != nil {
				w.log.Fatal("stream: vectored write failed",
					zap.String("attempted", humanize.Bytes(uint64(attempted))),
					zap.Error(err))
				return
			}
			w.bytesWritten.Add(uint64(n))
		}
		for _, i := range batch {
			w.free <- i
		}
	}
}

// Write appends one record.
func (w *AsyncStreamWriter[T]) Write(v T) {
	buf := w.bufs[w.active]
	if w.activeOff+w.codec.Size > len(buf) {
		w.flushActive()
	}
	w.codec.Encode(v, w.bufs[w.active][w.activeOff:w.activeOff+w.codec.Size])
	w.activeOff += w.codec.Size
}

// WriteSlice appends every record in vs, in order.
func (w *AsyncStreamWriter[T]) WriteSlice(vs []T) {
	for _, v := range vs {
		w.Write(v)
	}
}

// flushActive hands the active buffer to the background writer and
// waits for a free buffer to become the new active one.
func (w *AsyncStreamWriter[T]) flushActive() {
	w.filled[w.active] = w.activeOff
	w.ready <- w.active
	w.active = <-w.free
	w.activeOff = 0
}

// BytesWritten returns the total number of bytes flushed to disk so far.
func (w *AsyncStreamWriter[T]) BytesWritten() uint64 {
	return w.bytesWritten.Load()
}

// Close flushes any buffered records, waits for the background writer
// to drain, and closes the underlying file.
func (w *AsyncStreamWriter[T]) Close() error {
	if w.activeOff > 0 {
		w.filled[w.active] = w.activeOff
		w.ready <- w.active
		w.activeOff = 0
	}
	close(w.ready)
	<-w.workerG
	return w.file.Close()
}
