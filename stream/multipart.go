// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"fmt"
	"os"

	"go.uber.org/zap"
)

// partIndexWidth is the zero-padding width used for multi-part file
// names (base.NNNN). Wide enough for any realistic part count; readers
// only need existence of the next file, never the width itself.
const partIndexWidth = 4

func partName(base string, index int) string {
	return fmt.Sprintf("%s.%0*d", base, partIndexWidth, index)
}

// AsyncStreamWriterMultipart wraps AsyncStreamWriter with transparent
// part rotation: once the current part would exceed partSize bytes,
// it is closed and a new part is opened on base+".NNNN".
type AsyncStreamWriterMultipart[T any] struct {
	base          string
	partSize      int
	totalBufBytes int
	nBuffers      int
	codec         Codec[T]
	log           *zap.Logger

	partIndex    int
	partBytes    int
	inner        *AsyncStreamWriter[T]
	bytesWritten uint64
}

// NewAsyncStreamWriterMultipart creates the first part (base.0000).
func NewAsyncStreamWriterMultipart[T any](base string, partSize, totalBufBytes, nBuffers int, codec Codec[T], log *zap.Logger) (*AsyncStreamWriterMultipart[T], error) {
	w := &AsyncStreamWriterMultipart[T]{
		base:          base,
		partSize:      partSize,
		totalBufBytes: totalBufBytes,
		nBuffers:      nBuffers,
		codec:         codec,
		log:           log,
	}
	inner, err := NewAsyncStreamWriter(partName(base, 0), totalBufBytes, nBuffers, codec, log)
	if err != nil {
		return nil, err
	}
	w.inner = inner
	return w, nil
}

// Write appends one record, rotating to a new part first if this
// record would push the current part over partSize bytes.
func (w *AsyncStreamWriterMultipart[T]) Write(v T) {
	if w.partBytes+w.codec.Size > w.partSize {
		w.rotate()
	}
	w.inner.Write(v)
	w.partBytes += w.codec.Size
}

// WriteSlice appends every record in vs, in order.
func (w *AsyncStreamWriterMultipart[T]) WriteSlice(vs []T) {
	for _, v := range vs {
		w.Write(v)
	}
}

func (w *AsyncStreamWriterMultipart[T]) rotate() {
	if err := w.inner.Close(); err != nil {
		w.log.Fatal("stream: multipart close failed", zap.Error(err))
	}
	w.bytesWritten += w.inner.BytesWritten()
	w.partIndex++
	w.partBytes = 0
	inner, err := NewAsyncStreamWriter(partName(w.base, w.partIndex), w.totalBufBytes, w.nBuffers, w.codec, w.log)
	if err != nil {
		w.log.Fatal("stream: multipart rotate open failed", zap.Error(err))
	}
	w.inner = inner
}

// BytesWritten returns the total bytes flushed across all parts so far.
func (w *AsyncStreamWriterMultipart[T]) BytesWritten() uint64 {
	return w.bytesWritten + w.inner.BytesWritten()
}

// Close flushes and closes the current (final) part.
func (w *AsyncStreamWriterMultipart[T]) Close() error {
	return w.inner.Close()
}

// AsyncStreamReaderMultipart transparently spans a sequence of parts
// produced by AsyncStreamWriterMultipart.
type AsyncStreamReaderMultipart[T any] struct {
	base          string
	totalBufBytes int
	nBuffers      int
	codec         Codec[T]
	log           *zap.Logger

	partIndex int
	inner     *AsyncStreamReader[T]
	bytesRead uint64
	eof       bool
}

// NewAsyncStreamReaderMultipart opens base.0000 (which must exist).
func NewAsyncStreamReaderMultipart[T any](base string, totalBufBytes, nBuffers int, codec Codec[T], log *zap.Logger) (*AsyncStreamReaderMultipart[T], error) {
	r := &AsyncStreamReaderMultipart[T]{
		base:          base,
		totalBufBytes: totalBufBytes,
		nBuffers:      nBuffers,
		codec:         codec,
		log:           log,
	}
	inner, err := NewAsyncStreamReader(partName(base, 0), totalBufBytes, nBuffers, codec, log)
	if err != nil {
		return nil, err
	}
	r.inner = inner
	return r, nil
}

// advance closes the exhausted current part and opens the next one if
// it exists on disk; if no further part is present it sets r.eof and
// leaves the last part open for Close.
func (r *AsyncStreamReaderMultipart[T]) advance() {
	for !r.eof && r.inner.Empty() {
		next := partName(r.base, r.partIndex+1)
		if _, err := os.Stat(next); err != nil {
			r.eof = true
			return
		}
		r.bytesRead += r.inner.BytesRead()
		_ = r.inner.Close()
		r.partIndex++
		inner, err := NewAsyncStreamReader(next, r.totalBufBytes, r.nBuffers, r.codec, r.log)
		if err != nil {
			r.log.Fatal("stream: multipart reader advance failed", zap.Error(err))
			return
		}
		r.inner = inner
	}
}

// Empty reports whether every part has been fully consumed.
func (r *AsyncStreamReaderMultipart[T]) Empty() bool {
	r.advance()
	return r.eof
}

// Read returns the next record, transparently spanning part boundaries.
func (r *AsyncStreamReaderMultipart[T]) Read() T {
	r.advance()
	return r.inner.Read()
}

// ReadSlice reads exactly len(dst) records into dst, spanning parts.
func (r *AsyncStreamReaderMultipart[T]) ReadSlice(dst []T) {
	for i := range dst {
		dst[i] = r.Read()
	}
}

// BytesRead returns the total bytes consumed across all parts so far.
func (r *AsyncStreamReaderMultipart[T]) BytesRead() uint64 {
	return r.bytesRead + r.inner.BytesRead()
}

// Close closes the currently open part.
func (r *AsyncStreamReaderMultipart[T]) Close() error {
	return r.inner.Close()
}
