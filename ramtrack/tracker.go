// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package ramtrack provides an explicit allocator-tracking handle,
// replacing the global current/peak RAM counters of the original
// implementation with a value owned by whatever component's memory
// usage should be bounded (advisorily — see Tracker.Reserve). In this
// module, emradixheap builds one per heap from the byte budget given to
// its constructor; it does not accept a caller's Tracker and does not
// expose its own.
package ramtrack

import "sync"

// Tracker counts bytes reserved against a soft budget. It is safe for
// concurrent use. Reservation is advisory: Reserve always grants the
// request and simply reports whether doing so keeps usage within
// budget, so a caller can decide to spill without Reserve itself ever
// blocking or failing.
type Tracker struct {
	mu      sync.Mutex
	budget  int64
	current int64
	peak    int64
}

// NewTracker returns a Tracker with the given soft byte budget. A
// budget of 0 means unbounded: Reserve always reports within-budget.
func NewTracker(budget int64) *Tracker {
	return &Tracker{budget: budget}
}

// Reserve records n additional bytes as in use and reports whether the
// new total is still within budget (true) or over it (false). The
// reservation is granted either way.
func (t *Tracker) Reserve(n int64) (withinBudget bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current += n
	if t.current > t.peak {
		t.peak = t.current
	}
	return t.budget == 0 || t.current <= t.budget
}

// Release records n bytes as no longer in use.
func (t *Tracker) Release(n int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current -= n
}

// Current returns bytes currently reserved.
func (t *Tracker) Current() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Peak returns the highest value Current has ever reported.
func (t *Tracker) Peak() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peak
}

// Budget returns the configured soft budget (0 means unbounded).
func (t *Tracker) Budget() int64 {
	return t.budget
}
