// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packed

// MaxInt40 is the largest value an Int40 can hold.
const MaxInt40 = 1<<40 - 1

// Int40 is an unsigned 40-bit integer stored in exactly 5 bytes,
// little-endian, with no padding. SA entries for large texts are
// typically narrowed to 40 bits, saving roughly 37% of bulk storage
// over a 64-bit representation.
type Int40 [5]byte

// NewInt40 constructs an Int40 from a 64-bit value.
// Panics if x exceeds MaxInt40.
func NewInt40(x uint64) Int40 {
	if x > MaxInt40 {
		panic("packed: Int40 value out of range")
	}
	return Int40{
		byte(x), byte(x >> 8), byte(x >> 16), byte(x >> 24), byte(x >> 32),
	}
}

// Uint64 widens the Int40 to a 64-bit unsigned integer.
func (v Int40) Uint64() uint64 {
	return uint64(v[0]) | uint64(v[1])<<8 | uint64(v[2])<<16 |
		uint64(v[3])<<24 | uint64(v[4])<<32
}

// Equal reports whether v and other hold the same value.
func (v Int40) Equal(other Int40) bool {
	return v == other
}

// Add returns v+other truncated to 40 bits, and whether the addition
// carried out of the top bit.
func (v Int40) Add(other Int40) (sum Int40, carry bool) {
	total := v.Uint64() + other.Uint64()
	return NewInt40(total & MaxInt40), total > MaxInt40
}
