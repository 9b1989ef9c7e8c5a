// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cputime

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStepClock(t *testing.T) {
	t.Run("first sample is zero", func(t *testing.T) {
		clock := NewStepClock(time.Millisecond)
		now, err := clock.Now()
		if err != nil {
			t.Fatalf("Now() error = %v", err)
		}
		if now != 0 {
			t.Errorf("Now() = %v, want 0", now)
		}
	})

	t.Run("advances by step", func(t *testing.T) {
		clock := NewStepClock(5 * time.Millisecond)
		for i := 0; i < 4; i++ {
			now, err := clock.Now()
			if err != nil {
				t.Fatalf("Now() error = %v", err)
			}
			if want := time.Duration(i) * 5 * time.Millisecond; now != want {
				t.Errorf("sample %d = %v, want %v", i, now, want)
			}
		}
		if got := clock.Samples(); got != 4 {
			t.Errorf("Samples() = %d, want 4", got)
		}
	})

	t.Run("concurrent samples are all distinct", func(t *testing.T) {
		clock := NewStepClock(time.Nanosecond)
		const n = 200

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			seen = make(map[time.Duration]struct{}, n)
		)
		wg.Add(n)
		for i := 0; i < n; i++ {
			go func() {
				defer wg.Done()
				now, _ := clock.Now()
				mu.Lock()
				seen[now] = struct{}{}
				mu.Unlock()
			}()
		}
		wg.Wait()

		if len(seen) != n {
			t.Errorf("got %d distinct samples, want %d", len(seen), n)
		}
		if got := clock.Samples(); got != n {
			t.Errorf("Samples() = %d, want %d", got, n)
		}
	})
}

func TestFunc(t *testing.T) {
	boom := errors.New("boom")

	clock := Func(func() (time.Duration, error) {
		return 0, boom
	})
	if _, err := clock.Now(); !errors.Is(err, boom) {
		t.Errorf("Now() error = %v, want %v", err, boom)
	}

	clock = Func(func() (time.Duration, error) {
		return 42 * time.Microsecond, nil
	})
	now, err := clock.Now()
	if err != nil {
		t.Fatalf("Now() error = %v", err)
	}
	if now != 42*time.Microsecond {
		t.Errorf("Now() = %v, want 42µs", now)
	}
}
