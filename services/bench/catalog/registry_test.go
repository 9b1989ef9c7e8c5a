// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cpubench/services/bench"
)

// recordingWorkload captures the params its factory receives.
func recordingWorkload(name string, defaults map[string]int, got *map[string]int) Workload {
	return Workload{
		Name:     name,
		Defaults: defaults,
		Factory: func(p map[string]int) (bench.Operation, error) {
			*got = p
			return func() error { return nil }, nil
		},
	}
}

func TestRegistry_RegisterErrors(t *testing.T) {
	r := NewRegistry()
	noop := func(map[string]int) (bench.Operation, error) { return nil, nil }

	assert.ErrorIs(t, r.Register(Workload{Factory: noop}), ErrEmptyName)
	assert.ErrorIs(t, r.Register(Workload{Name: "x"}), ErrNilFactory)

	require.NoError(t, r.Register(Workload{Name: "x", Factory: noop}))
	assert.ErrorIs(t, r.Register(Workload{Name: "x", Factory: noop}), ErrAlreadyRegistered)
	assert.Equal(t, 1, r.Len())
}

func TestRegistry_MustRegisterPanics(t *testing.T) {
	r := NewRegistry()
	assert.Panics(t, func() { r.MustRegister(Workload{Name: "bad"}) })
}

func TestRegistry_LookupReturnsCopy(t *testing.T) {
	r := NewRegistry()
	defaults := map[string]int{"n": 1}
	var got map[string]int
	r.MustRegister(recordingWorkload("w", defaults, &got))

	defaults["n"] = 99
	w, ok := r.Lookup("w")
	require.True(t, ok)
	assert.Equal(t, 1, w.Defaults["n"], "registry keeps its own copy")

	w.Defaults["n"] = 42
	again, _ := r.Lookup("w")
	assert.Equal(t, 1, again.Defaults["n"], "lookups hand out copies")

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestRegistry_Names(t *testing.T) {
	r := NewRegistry()
	var got map[string]int
	for _, name := range []string{"zeta", "alpha", "mid"} {
		r.MustRegister(recordingWorkload(name, nil, &got))
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, r.Names())
}

func TestRegistry_Build(t *testing.T) {
	r := NewRegistry()
	var got map[string]int
	r.MustRegister(recordingWorkload("w", map[string]int{"n": 10, "seed": 1}, &got))

	t.Run("defaults only", func(t *testing.T) {
		op, err := r.Build("w", nil)
		require.NoError(t, err)
		require.NotNil(t, op)
		assert.Equal(t, map[string]int{"n": 10, "seed": 1}, got)
	})

	t.Run("overrides merge over defaults", func(t *testing.T) {
		_, err := r.Build("w", map[string]int{"n": 3})
		require.NoError(t, err)
		assert.Equal(t, map[string]int{"n": 3, "seed": 1}, got)
	})

	t.Run("unknown parameter", func(t *testing.T) {
		_, err := r.Build("w", map[string]int{"size": 3})
		assert.ErrorIs(t, err, ErrUnknownParam)
		assert.Contains(t, err.Error(), `"size"`)
	})

	t.Run("unknown workload", func(t *testing.T) {
		_, err := r.Build("nope", nil)
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestRegistry_BuildWrapsFactoryError(t *testing.T) {
	boom := errors.New("boom")
	r := NewRegistry()
	r.MustRegister(Workload{
		Name: "broken",
		Factory: func(map[string]int) (bench.Operation, error) {
			return nil, boom
		},
	})

	_, err := r.Build("broken", nil)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "build broken")
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := Builtin()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, name := range r.Names() {
				_, err := r.Build(name, nil)
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()
}
