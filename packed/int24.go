// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package packed provides fixed-width unsigned integer and pair types
// that store without alignment padding, for on-disk record formats
// where every byte counts.
package packed

// MaxInt24 is the largest value an Int24 can hold.
const MaxInt24 = 1<<24 - 1

// Int24 is an unsigned 24-bit integer stored in exactly 3 bytes,
// little-endian, with no padding.
type Int24 [3]byte

// NewInt24 constructs an Int24 from a 64-bit value.
// Panics if x exceeds MaxInt24.
func NewInt24(x uint64) Int24 {
	if x > MaxInt24 {
		panic("packed: Int24 value out of range")
	}
	return Int24{byte(x), byte(x >> 8), byte(x >> 16)}
}

// Uint64 widens the Int24 to a 64-bit unsigned integer.
func (v Int24) Uint64() uint64 {
	return uint64(v[0]) | uint64(v[1])<<8 | uint64(v[2])<<16
}

// Equal reports whether v and other hold the same value.
func (v Int24) Equal(other Int24) bool {
	return v == other
}

// Add returns v+other truncated to 24 bits, and whether the addition
// carried out of the top bit (i.e. overflowed 24 bits).
func (v Int24) Add(other Int24) (sum Int24, carry bool) {
	total := v.Uint64() + other.Uint64()
	return NewInt24(total & MaxInt24), total > MaxInt24
}
