// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cputime provides CPU-time sources for the benchmark runners.
//
// A Clock reports the cumulative CPU time consumed by the OS thread that
// calls it. Callers that want per-goroutine accounting must pin the
// goroutine with runtime.LockOSThread before sampling, otherwise the Go
// scheduler may move the goroutine between threads and the samples stop
// being comparable.
//
// Thread() returns the platform clock. NewStepClock and Func exist so
// tests can drive the runners deterministically.
package cputime

import (
	"errors"
	"sync"
	"time"
)

// ErrUnsupported is returned by Now when the platform has no per-thread
// CPU clock.
var ErrUnsupported = errors.New("per-thread cpu clock not supported on this platform")

// Clock reports cumulative CPU time of the calling OS thread.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the CPU time consumed so far by the calling thread.
	// Only differences between two samples taken on the same thread are
	// meaningful.
	Now() (time.Duration, error)
}

// Func adapts an ordinary function to the Clock interface.
type Func func() (time.Duration, error)

// Now calls f.
func (f Func) Now() (time.Duration, error) {
	return f()
}

// StepClock is a deterministic Clock that advances by a fixed step on every
// sample. The first sample returns zero.
//
// Thread Safety: Safe for concurrent use, but sharing one StepClock between
// several runners interleaves their samples. Give each runner its own.
type StepClock struct {
	mu      sync.Mutex
	step    time.Duration
	now     time.Duration
	samples int
}

// NewStepClock creates a StepClock advancing by step per sample.
//
// Example:
//
//	clock := cputime.NewStepClock(time.Millisecond)
//	clock.Now() // 0
//	clock.Now() // 1ms
func NewStepClock(step time.Duration) *StepClock {
	return &StepClock{step: step}
}

// Now returns the current reading and advances the clock.
func (c *StepClock) Now() (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now
	c.now += c.step
	c.samples++
	return now, nil
}

// Samples returns how many times Now has been called.
func (c *StepClock) Samples() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samples
}

// Verify interface compliance at compile time.
var (
	_ Clock = Func(nil)
	_ Clock = (*StepClock)(nil)
)
