// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package ramtrack_test

import (
	"sync"
	"testing"

	"code.hybscloud.com/emsort/ramtrack"
)

func TestTracker_ReserveRelease(t *testing.T) {
	tr := ramtrack.NewTracker(100)

	if ok := tr.Reserve(50); !ok {
		t.Error("Reserve(50) should be within a 100 byte budget")
	}
	if ok := tr.Reserve(60); ok {
		t.Error("Reserve(60) on top of 50 should exceed a 100 byte budget")
	}
	if got := tr.Current(); got != 110 {
		t.Errorf("Current() = %d, want 110", got)
	}
	if got := tr.Peak(); got != 110 {
		t.Errorf("Peak() = %d, want 110", got)
	}

	tr.Release(60)
	if got := tr.Current(); got != 50 {
		t.Errorf("Current() after release = %d, want 50", got)
	}
	if got := tr.Peak(); got != 110 {
		t.Errorf("Peak() should remain at historical max, got %d", got)
	}
}

func TestTracker_UnboundedBudget(t *testing.T) {
	tr := ramtrack.NewTracker(0)
	if ok := tr.Reserve(1 << 40); !ok {
		t.Error("zero budget should mean unbounded")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := ramtrack.NewTracker(0)
	var wg sync.WaitGroup
	const goroutines, iterations = 16, 1000
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range iterations {
				tr.Reserve(1)
				tr.Release(1)
			}
		}()
	}
	wg.Wait()
	if got := tr.Current(); got != 0 {
		t.Errorf("Current() = %d, want 0 after balanced reserve/release", got)
	}
}
