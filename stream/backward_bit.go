// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream

import (
	"go.uber.org/zap"
)

// AsyncBackwardBitStreamReader delivers the bits of a bit-packed word
// stream one at a time, MSB-first within each 64-bit word, oldest
// payload bit last. The file is a plain forward sequence of uint64
// words (each word's bits packed MSB-first) followed by one trailing
// uint64 holding total_bit_count; since this type reads the file
// backward, that trailer is the first word it ever sees: the first
// call to the wrapped backward reader yields total_bit_count.
type AsyncBackwardBitStreamReader struct {
	words *AsyncBackwardStreamReader[uint64]

	data     uint64
	pos      uint // bits of data not yet emitted; the next one is bit pos-1; 0 means data is exhausted
	isFilled bool
}

// NewAsyncBackwardBitStreamReader opens filename, a uint64 word stream
// ending in a total_bit_count trailer word.
func NewAsyncBackwardBitStreamReader(filename string, totalBufBytes, nBuffers int, log *zap.Logger) (*AsyncBackwardBitStreamReader, error) {
	words, err := NewAsyncBackwardStreamReader(filename, totalBufBytes, nBuffers, Uint64Codec, log)
	if err != nil {
		return nil, err
	}
	return &AsyncBackwardBitStreamReader{words: words}, nil
}

// Read returns the next bit (0 or 1). The caller must call Read at
// most total_bit_count times; there is no bounds check.
func (r *AsyncBackwardBitStreamReader) Read() uint8 {
	if !r.isFilled {
		bitCount := r.words.Read()
		r.pos = uint(bitCount % 64)
		if r.pos == 0 {
			r.pos = 64
		}
		r.data = r.words.Read()
		r.isFilled = true
	} else if r.pos == 0 {
		r.data = r.words.Read()
		r.pos = 64
	}
	r.pos--
	if (r.data & (uint64(1) << r.pos)) != 0 {
		return 1
	}
	return 0
}

// BytesRead returns the total bytes consumed from the underlying word
// stream so far, including the trailer word.
func (r *AsyncBackwardBitStreamReader) BytesRead() uint64 {
	return r.words.BytesRead()
}

// Close releases the underlying file.
func (r *AsyncBackwardBitStreamReader) Close() error {
	return r.words.Close()
}
