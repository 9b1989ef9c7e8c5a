// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bench

import (
	"sync"
	"time"
)

// DefaultBudget is the CPU-time limit of a new Budget.
const DefaultBudget = 10 * time.Second

// Budget is the CPU-time limit shared by the runners of one suite, plus
// the state they coordinate through.
//
// Description:
//
//	The limit can only change while no runner bound to the Budget is
//	active. The first Start locks it and the last runner to finish unlocks
//	it. Finishing runners add their throughput to an aggregate total,
//	which a Suite clears when it starts a run on an unlocked Budget.
//
// Thread Safety: Safe for concurrent use. All fields share one mutex.
type Budget struct {
	mu     sync.Mutex
	limit  time.Duration
	locked bool
	active int
	total  float64
}

// NewBudget returns an unlocked Budget with DefaultBudget.
func NewBudget() *Budget {
	return &Budget{limit: DefaultBudget}
}

// Set sets the limit in whole seconds.
//
// Outputs:
//   - bool: true if applied. False when seconds is negative or the Budget
//     is locked; a locked Budget ignores the call without error.
func (b *Budget) Set(seconds int) bool {
	if seconds < 0 {
		return false
	}
	return b.SetDuration(time.Duration(seconds) * time.Second)
}

// SetDuration is Set with sub-second resolution.
func (b *Budget) SetDuration(d time.Duration) bool {
	if d < 0 {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return false
	}
	b.limit = d
	return true
}

// Limit returns the current limit.
func (b *Budget) Limit() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.limit
}

// Locked reports whether any runner bound to the Budget is active.
func (b *Budget) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.locked
}

// Active returns the number of runners currently measuring.
func (b *Budget) Active() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Total returns the aggregate throughput of every successful runner that
// finished since the last ResetTotal or suite run.
func (b *Budget) Total() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// ResetTotal clears the aggregate. It is ignored while locked.
func (b *Budget) ResetTotal() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.locked {
		return false
	}
	b.total = 0
	return true
}

// acquire registers an active runner and returns the limit it measures
// against.
func (b *Budget) acquire() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.active++
	b.locked = true
	return b.limit
}

// acquireRun registers n runners at once and returns the limit they all
// measure against. The aggregate starts over unless the Budget was already
// locked by runners outside this batch.
func (b *Budget) acquireRun(n int) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.locked {
		b.total = 0
	}
	b.active += n
	b.locked = true
	return b.limit
}

// release unregisters a runner. Only successful runners contribute rate.
func (b *Budget) release(rate float64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ok {
		b.total += rate
	}
	b.active--
	if b.active <= 0 {
		b.active = 0
		b.locked = false
	}
}
