// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package stream_test

import (
	"math/rand/v2"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"code.hybscloud.com/emsort/stream"
)

func TestAsyncBackwardStream_ReverseOrder(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records")

	const n = 50000
	values := make([]uint32, n)
	for i := range values {
		values[i] = rand.Uint32()
	}

	w, err := stream.NewAsyncStreamWriter(path, 4096, 3, stream.Uint32Codec, nil)
	require.NoError(t, err)
	w.WriteSlice(values)
	require.NoError(t, w.Close())

	r, err := stream.NewAsyncBackwardStreamReader(path, 1024, 3, stream.Uint32Codec, nil)
	require.NoError(t, err)
	for i := n - 1; i >= 0; i-- {
		require.False(t, r.Empty(), "premature EOF reading record %d backward", i)
		require.Equal(t, values[i], r.Read(), "record %d", i)
	}
	require.True(t, r.Empty())
	require.NoError(t, r.Close())
}

func TestAsyncBackwardStream_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records")

	w, err := stream.NewAsyncStreamWriter(path, 4096, 2, stream.Uint64Codec, nil)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := stream.NewAsyncBackwardStreamReader(path, 4096, 2, stream.Uint64Codec, nil)
	require.NoError(t, err)
	require.True(t, r.Empty())
	require.NoError(t, r.Close())
}

// wantBackwardBits mirrors AsyncBackwardBitStreamReader's own
// extraction order: words are visited from the last-written payload
// word to the first, the last-written word contributes only its low
// w=((totalBits-1) mod 64)+1 bits (MSB of that window first), and
// every other word contributes all 64 bits MSB-first.
func wantBackwardBits(words []uint64, totalBits int) []uint8 {
	w := totalBits % 64
	if w == 0 {
		w = 64
	}
	bits := make([]uint8, 0, totalBits)
	for i := len(words) - 1; i >= 0; i-- {
		width := 64
		if i == len(words)-1 {
			width = w
		}
		for p := width - 1; p >= 0; p-- {
			bits = append(bits, uint8((words[i]>>uint(p))&1))
		}
	}
	return bits
}

func TestAsyncBackwardBitStream_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bits")

	const totalBits = 100 // spans two 64-bit words, final one partially filled
	nWords := (totalBits + 63) / 64

	words := make([]uint64, nWords)
	for i := range words {
		words[i] = rand.Uint64()
	}

	w, err := stream.NewAsyncStreamWriter(path, 4096, 2, stream.Uint64Codec, nil)
	require.NoError(t, err)
	w.WriteSlice(words)
	w.Write(uint64(totalBits)) // trailer, read first by the backward reader
	require.NoError(t, w.Close())

	want := wantBackwardBits(words, totalBits)

	r, err := stream.NewAsyncBackwardBitStreamReader(path, 1024, 2, nil)
	require.NoError(t, err)
	for i := 0; i < totalBits; i++ {
		got := r.Read()
		require.Equal(t, want[i], got, "bit %d", i)
	}
	require.NoError(t, r.Close())
}

func TestAsyncBackwardBitStream_ExactWordMultiple(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bits")

	const totalBits = 192 // exactly 3 words, no padding in the last word
	words := []uint64{rand.Uint64(), rand.Uint64(), rand.Uint64()}

	w, err := stream.NewAsyncStreamWriter(path, 4096, 2, stream.Uint64Codec, nil)
	require.NoError(t, err)
	w.WriteSlice(words)
	w.Write(uint64(totalBits))
	require.NoError(t, w.Close())

	want := wantBackwardBits(words, totalBits)

	r, err := stream.NewAsyncBackwardBitStreamReader(path, 4096, 2, nil)
	require.NoError(t, err)
	for i := 0; i < totalBits; i++ {
		require.Equal(t, want[i], r.Read(), "bit %d", i)
	}
	require.NoError(t, r.Close())
}
