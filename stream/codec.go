// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package stream provides fixed-record-width disk streaming on top of
// buffers allocated with iobuf.NewBuffers (or supplied by the caller):
// a background goroutine performs strictly
// sequential I/O while the caller fills or drains buffers handed off
// through a pair of bounded channels.
package stream

import (
	"encoding/binary"

	"code.hybscloud.com/emsort/packed"
)

// Codec describes how to turn a fixed-width value of type T into Size
// bytes on disk and back. Every stream in this package is homogeneous:
// every record has the same encoded width.
type Codec[T any] struct {
	// Size is the fixed number of bytes one encoded record occupies.
	Size int
	// Encode writes v into dst, which is guaranteed to have length Size.
	Encode func(v T, dst []byte)
	// Decode reads one value out of src, which is guaranteed to have
	// length Size.
	Decode func(src []byte) T
}

// Uint8Codec encodes a single byte.
var Uint8Codec = Codec[uint8]{
	Size:   1,
	Encode: func(v uint8, dst []byte) { dst[0] = v },
	Decode: func(src []byte) uint8 { return src[0] },
}

// Uint16Codec encodes a little-endian uint16.
var Uint16Codec = Codec[uint16]{
	Size:   2,
	Encode: func(v uint16, dst []byte) { binary.LittleEndian.PutUint16(dst, v) },
	Decode: func(src []byte) uint16 { return binary.LittleEndian.Uint16(src) },
}

// Uint32Codec encodes a little-endian uint32.
var Uint32Codec = Codec[uint32]{
	Size:   4,
	Encode: func(v uint32, dst []byte) { binary.LittleEndian.PutUint32(dst, v) },
	Decode: func(src []byte) uint32 { return binary.LittleEndian.Uint32(src) },
}

// Uint64Codec encodes a little-endian uint64.
var Uint64Codec = Codec[uint64]{
	Size:   8,
	Encode: func(v uint64, dst []byte) { binary.LittleEndian.PutUint64(dst, v) },
	Decode: func(src []byte) uint64 { return binary.LittleEndian.Uint64(src) },
}

// Int24Codec encodes a packed.Int24 in its native 3-byte little-endian form.
var Int24Codec = Codec[packed.Int24]{
	Size:   3,
	Encode: func(v packed.Int24, dst []byte) { copy(dst, v[:]) },
	Decode: func(src []byte) packed.Int24 { return packed.Int24{src[0], src[1], src[2]} },
}

// Int40Codec encodes a packed.Int40 in its native 5-byte little-endian form.
var Int40Codec = Codec[packed.Int40]{
	Size: 5,
	Encode: func(v packed.Int40, dst []byte) {
		copy(dst, v[:])
	},
	Decode: func(src []byte) packed.Int40 {
		return packed.Int40{src[0], src[1], src[2], src[3], src[4]}
	},
}

// PairCodec builds a Codec for packed.Pair[S,T] out of codecs for its
// two fields, laid out first then second with no gap between them,
// mirroring packed.Pair's own no-padding guarantee.
func PairCodec[S, T any](first Codec[S], second Codec[T]) Codec[packed.Pair[S, T]] {
	return Codec[packed.Pair[S, T]]{
		Size: first.Size + second.Size,
		Encode: func(v packed.Pair[S, T], dst []byte) {
			first.Encode(v.First, dst[:first.Size])
			second.Encode(v.Second, dst[first.Size:])
		},
		Decode: func(src []byte) packed.Pair[S, T] {
			return packed.Pair[S, T]{
				First:  first.Decode(src[:first.Size]),
				Second: second.Decode(src[first.Size:]),
			}
		},
	}
}
