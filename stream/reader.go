// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"errors"
	"io"
	"os"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"code.hybscloud.com/emsort"
	"code.hybscloud.com/emsort/iobuf"
)

// AsyncStreamReader reads fixed-width records of type T from one file,
// prefetching ahead of the caller via a background goroutine. See
// AsyncStreamWriter for the buffer handoff scheme.
//
// Not safe for concurrent use by multiple goroutines.
type AsyncStreamReader[T any] struct {
	codec Codec[T]
	file  *os.File
	log   *zap.Logger

	bufs   iobuf.Buffers
	filled []int
	free   chan int
	ready  chan int
	stop   chan struct{}

	active    int
	activeOff int
	activeLen int
	haveAny   bool // whether an active buffer has ever been claimed
	eof       bool

	bytesRead uint64
}

// NewAsyncStreamReader opens filename for reading. See
// NewAsyncStreamWriter for the buffer sizing contract.
func NewAsyncStreamReader[T any](filename string, totalBufBytes, nBuffers int, codec Codec[T], log *zap.Logger) (*AsyncStreamReader[T], error) {
	if nBuffers < 2 {
		nBuffers = 2
	}
	bufSize := RecordAlignedBufSize(totalBufBytes, nBuffers, codec.Size)
	return NewAsyncStreamReaderFromBuffers(filename, iobuf.NewBuffers(nBuffers, bufSize), codec, log)
}

// NewAsyncStreamReaderFromBuffers is like NewAsyncStreamReader but uses
// caller-supplied, already-allocated buffers instead of allocating its
// own via iobuf.NewBuffers — see NewAsyncStreamWriterFromBuffers.
func NewAsyncStreamReaderFromBuffers[T any](filename string, bufs iobuf.Buffers, codec Codec[T], log *zap.Logger) (*AsyncStreamReader[T], error) {
	if log == nil {
		log = zap.NewNop()
	}
	nBuffers := len(bufs)

	f, err := os.Open(filename)
	if err != nil {
		log.Fatal("stream: open read failed", zap.String("file", filename), zap.Error(err))
		return nil, emsort.NewFatalError("stream: open read", err)
	}

	r := &AsyncStreamReader[T]{
		codec:  codec,
		file:   f,
		log:    log,
		bufs:   bufs,
		filled: make([]int, nBuffers),
		free:   make(chan int, nBuffers),
		ready:  make(chan int, nBuffers),
		stop:   make(chan struct{}),
	}
	for i := 0; i < nBuffers; i++ {
		r.free <- i
	}

	go r.run()
	return r, nil
}

func (r *AsyncStreamReader[T]) run() {
	pos := int64(0)
	for {
		var idx int
		select {
		case idx = <-r.free:
		case <-r.stop:
			return
		}
		buf := r.bufs[idx]
		n, err := r.file.ReadAt(buf, pos)
		if err != nil && !errors.Is(err, io.EOF) {
			r.log.Fatal("stream: sequential read failed",
				zap.String("requested", humanize.Bytes(uint64(len(buf)))),
				zap.String("got", humanize.Bytes(uint64(n))),
				zap.Error(err))
			return
		}
		r.filled[idx] = n
		pos += int64(n)
		select {
		case r.ready <- idx:
		case <-r.stop:
			return
		}
		if n == 0 {
			return
		}
	}
}

// ensureAvail makes the active buffer non-empty, or sets r.eof if the
// stream has been fully consumed. No-op if records remain available.
func (r *AsyncStreamReader[T]) ensureAvail() {
	for !r.eof && r.activeOff >= r.activeLen {
		if r.haveAny {
			r.free <- r.active
		}
		idx, ok := <-r.ready
		if !ok {
			r.eof = true
			return
		}
		r.haveAny = true
		r.active = idx
		r.activeOff = 0
		r.activeLen = r.filled[idx]
		if r.activeLen == 0 {
			r.eof = true
		}
	}
}

// Empty reports whether the stream has no more records to deliver.
func (r *AsyncStreamReader[T]) Empty() bool {
	r.ensureAvail()
	return r.eof
}

// Read returns the next record. Calling Read when Empty reports true
// is undefined.
func (r *AsyncStreamReader[T]) Read() T {
	r.ensureAvail()
	v := r.codec.Decode(r.bufs[r.active][r.activeOff : r.activeOff+r.codec.Size])
	r.activeOff += r.codec.Size
	r.bytesRead += uint64(r.codec.Size)
	return v
}

// ReadSlice reads exactly len(dst) records into dst.
func (r *AsyncStreamReader[T]) ReadSlice(dst []T) {
	for i := range dst {
		dst[i] = r.Read()
	}
}

// BytesRead returns the total number of record bytes consumed so far.
func (r *AsyncStreamReader[T]) BytesRead() uint64 {
	return r.bytesRead
}

// Close signals the background reader to exit and releases the
// underlying file, discarding any prefetched buffers beyond the last
// consumed record.
func (r *AsyncStreamReader[T]) Close() error {
	close(r.stop)
	return r.file.Close()
}
