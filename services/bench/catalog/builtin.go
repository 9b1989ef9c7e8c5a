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
	"crypto/sha256"
	"fmt"
	"math/rand/v2"
	"runtime"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/cpubench/services/bench"
)

// Builtin returns a registry with the stock workloads. Every call builds
// a fresh registry.
//
// The workloads come in comparable groups:
//
//	concat-plus / concat-builder / sprintf / strconv   string building
//	slice-append / slice-prealloc                      slice growth
//	map-insert / sort-ints / sha256 / spin             general CPU work
func Builtin() *Registry {
	r := NewRegistry()

	r.MustRegister(Workload{
		Name:        "noop",
		Description: "Does nothing; measures harness overhead",
		Factory: func(map[string]int) (bench.Operation, error) {
			return func() error { return nil }, nil
		},
	})

	r.MustRegister(Workload{
		Name:        "spin",
		Description: "Sums the integers below n",
		Defaults:    map[string]int{"n": 1000},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() int {
				sum := 0
				for i := 0; i < n; i++ {
					sum += i
				}
				return sum
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "concat-plus",
		Description: "Builds an n-byte string with +=",
		Defaults:    map[string]int{"n": 100},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() string {
				s := ""
				for i := 0; i < n; i++ {
					s += "x"
				}
				return s
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "concat-builder",
		Description: "Builds an n-byte string with strings.Builder",
		Defaults:    map[string]int{"n": 100},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() string {
				var sb strings.Builder
				for i := 0; i < n; i++ {
					sb.WriteByte('x')
				}
				return sb.String()
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "sprintf",
		Description: "Formats n integers with fmt.Sprintf",
		Defaults:    map[string]int{"n": 10},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() (s string) {
				for i := 0; i < n; i++ {
					s = fmt.Sprintf("%d", i)
				}
				return s
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "strconv",
		Description: "Formats n integers with strconv.Itoa",
		Defaults:    map[string]int{"n": 10},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() (s string) {
				for i := 0; i < n; i++ {
					s = strconv.Itoa(i)
				}
				return s
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "sha256",
		Description: "Hashes a size-byte buffer with SHA-256",
		Defaults:    map[string]int{"size": 1024},
		Factory: func(p map[string]int) (bench.Operation, error) {
			size, err := positive(p, "size")
			if err != nil {
				return nil, err
			}
			buf := make([]byte, size)
			for i := range buf {
				buf[i] = byte(i)
			}
			return consume(func() [sha256.Size]byte {
				return sha256.Sum256(buf)
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "map-insert",
		Description: "Inserts n keys into a fresh map",
		Defaults:    map[string]int{"n": 1000},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() int {
				m := make(map[int]int)
				for i := 0; i < n; i++ {
					m[i] = i
				}
				return len(m)
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "slice-append",
		Description: "Appends n ints to a nil slice",
		Defaults:    map[string]int{"n": 1000},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() []int {
				var s []int
				for i := 0; i < n; i++ {
					s = append(s, i)
				}
				return s
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "slice-prealloc",
		Description: "Appends n ints to a slice with capacity n",
		Defaults:    map[string]int{"n": 1000},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			return consume(func() []int {
				s := make([]int, 0, n)
				for i := 0; i < n; i++ {
					s = append(s, i)
				}
				return s
			}), nil
		},
	})

	r.MustRegister(Workload{
		Name:        "sort-ints",
		Description: "Sorts a copy of n pseudo-random ints",
		Defaults:    map[string]int{"n": 1000, "seed": 1},
		Factory: func(p map[string]int) (bench.Operation, error) {
			n, err := positive(p, "n")
			if err != nil {
				return nil, err
			}
			rng := rand.New(rand.NewPCG(uint64(p["seed"]), 0))
			src := make([]int, n)
			for i := range src {
				src[i] = rng.Int()
			}
			work := make([]int, n)
			return bench.Void(func() {
				copy(work, src)
				slices.Sort(work)
			}), nil
		},
	})

	return r
}

// consume adapts fn to an Operation and keeps each result alive so the
// compiler cannot drop the work.
func consume[T any](fn func() T) bench.Operation {
	return func() error {
		runtime.KeepAlive(fn())
		return nil
	}
}

func positive(p map[string]int, key string) (int, error) {
	v := p[key]
	if v < 1 {
		return 0, fmt.Errorf("%w: %s must be at least 1, got %d", ErrInvalidParam, key, v)
	}
	return v, nil
}
