// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"code.hybscloud.com/emsort"
	"code.hybscloud.com/emsort/iobuf"
)

// AsyncBackwardStreamReader delivers records of a file in reverse
// order: record N-1 first, record 0 last. It schedules reads of
// record ranges from the tail toward the head and, within a range,
// delivers records from the highest index down.
//
// Not safe for concurrent use by multiple goroutines.
type AsyncBackwardStreamReader[T any] struct {
	codec Codec[T]
	fd    int
	log   *zap.Logger

	recordsPerBuf int
	totalRecords  int64
	nextEnd       int64 // exclusive upper record bound of the next range to schedule

	bufs   iobuf.Buffers
	filled []int // records filled in each buffer
	free   chan int
	ready  chan int
	stop   chan struct{}

	active    int
	activeIdx int   // next record index to emit within the active buffer, counting down
	consumed  int64 // total records emitted so far
	eof       bool
	haveAny   bool
}

// NewAsyncBackwardStreamReader opens filename for reverse reading.
func NewAsyncBackwardStreamReader[T any](filename string, totalBufBytes, nBuffers int, codec Codec[T], log *zap.Logger) (*AsyncBackwardStreamReader[T], error) {
	if log == nil {
		log = zap.NewNop()
	}
	if nBuffers < 2 {
		nBuffers = 2
	}
	fd, err := unix.Open(filename, unix.O_RDONLY, 0)
	if err != nil {
		log.Fatal("stream: backward open failed", zap.String("file", filename), zap.Error(err))
		return nil, emsort.NewFatalError("stream: backward open", err)
	}
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		log.Fatal("stream: backward stat failed", zap.Error(err))
		return nil, emsort.NewFatalError("stream: backward stat", err)
	}

	recordsPerBuf := (totalBufBytes / nBuffers) / codec.Size
	if recordsPerBuf < 1 {
		recordsPerBuf = 1
	}
	totalRecords := st.Size / int64(codec.Size)

	r := &AsyncBackwardStreamReader[T]{
		codec:         codec,
		fd:            fd,
		log:           log,
		recordsPerBuf: recordsPerBuf,
		totalRecords:  totalRecords,
		nextEnd:       totalRecords,
		bufs:          iobuf.NewBuffers(nBuffers, recordsPerBuf*codec.Size),
		filled:        make([]int, nBuffers),
		free:          make(chan int, nBuffers),
		ready:         make(chan int, nBuffers),
		stop:          make(chan struct{}),
	}
	for i := 0; i < nBuffers; i++ {
		r.free <- i
	}
	go r.run()
	return r, nil
}

func (r *AsyncBackwardStreamReader[T]) run() {
	for {
		if r.nextEnd <= 0 {
			return
		}
		var idx int
		select {
		case idx = <-r.free:
		case <-r.stop:
			return
		}
		end := r.nextEnd
		start := end - int64(r.recordsPerBuf)
		if start < 0 {
			start = 0
		}
		n := int(end - start)
		buf := r.bufs[idx][:n*r.codec.Size]
		if _, err := unix.Pread(r.fd, buf, start*int64(r.codec.Size)); err != nil {
			r.log.Fatal("stream: backward read failed", zap.Error(err))
			return
		}
		r.filled[idx] = n
		r.nextEnd = start
		select {
		case r.ready <- idx:
		case <-r.stop:
			return
		}
	}
}

func (r *AsyncBackwardStreamReader[T]) ensureAvail() {
	for !r.eof && (!r.haveAny || r.activeIdx < 0) {
		if r.haveAny {
			r.free <- r.active
		}
		if r.consumed >= r.totalRecords {
			r.eof = true
			return
		}
		idx, ok := <-r.ready
		if !ok {
			r.eof = true
			return
		}
		r.haveAny = true
		r.active = idx
		r.activeIdx = r.filled[idx] - 1
	}
}

// Empty reports whether all totalRecords have been produced.
func (r *AsyncBackwardStreamReader[T]) Empty() bool {
	if r.totalRecords == 0 {
		return true
	}
	r.ensureAvail()
	return r.eof
}

// Read returns the next record in reverse file order. Calling Read
// when Empty reports true is undefined.
func (r *AsyncBackwardStreamReader[T]) Read() T {
	r.ensureAvail()
	off := r.activeIdx * r.codec.Size
	v := r.codec.Decode(r.bufs[r.active][off : off+r.codec.Size])
	r.activeIdx--
	r.consumed++
	return v
}

// BytesRead returns the total number of record bytes consumed so far.
func (r *AsyncBackwardStreamReader[T]) BytesRead() uint64 {
	return uint64(r.consumed) * uint64(r.codec.Size)
}

// Close signals the background reader to exit and releases the file
// descriptor.
func (r *AsyncBackwardStreamReader[T]) Close() error {
	close(r.stop)
	return unix.Close(r.fd)
}
