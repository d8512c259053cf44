// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package packed_test

import (
	"math/rand/v2"
	"testing"

	"code.hybscloud.com/emsort/packed"
)

func TestInt40_RoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xFFFFFF, 0xFFFFFFFF, packed.MaxInt40 - 1, packed.MaxInt40}
	for _, x := range cases {
		v := packed.NewInt40(x)
		if got := v.Uint64(); got != x {
			t.Errorf("NewInt40(%d).Uint64() = %d, want %d", x, got, x)
		}
	}
}

func TestInt40_RoundTrip_Random(t *testing.T) {
	for range 10000 {
		x := rand.Uint64N(packed.MaxInt40 + 1)
		if got := packed.NewInt40(x).Uint64(); got != x {
			t.Fatalf("NewInt40(%d).Uint64() = %d, want %d", x, got, x)
		}
	}
}

func TestInt40_OutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("NewInt40(MaxInt40+1) did not panic")
		}
	}()
	_ = packed.NewInt40(packed.MaxInt40 + 1)
}

func TestInt40_Add(t *testing.T) {
	a := packed.NewInt40(packed.MaxInt40)
	b := packed.NewInt40(1)
	sum, carry := a.Add(b)
	if !carry {
		t.Error("expected carry when exceeding MaxInt40")
	}
	if sum.Uint64() != 0 {
		t.Errorf("overflowed sum = %d, want 0 (wrapped)", sum.Uint64())
	}
}

func TestInt40_Size(t *testing.T) {
	var v packed.Int40
	if len(v) != 5 {
		t.Errorf("len(Int40) = %d, want 5", len(v))
	}
}
