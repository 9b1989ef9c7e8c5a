// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog holds named, parameterized workloads that the CLI can
// turn into benchmark candidates.
package catalog

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"

	"github.com/AleutianAI/cpubench/services/bench"
)

var (
	// ErrNilFactory is returned when registering a workload without a Factory.
	ErrNilFactory = errors.New("workload factory must not be nil")

	// ErrEmptyName is returned when registering a workload without a name.
	ErrEmptyName = errors.New("workload name must not be empty")

	// ErrAlreadyRegistered is returned when the name is taken.
	ErrAlreadyRegistered = errors.New("workload already registered")

	// ErrNotFound is returned when no workload has the name.
	ErrNotFound = errors.New("workload not found")

	// ErrUnknownParam is returned when Build gets a parameter the workload
	// does not declare.
	ErrUnknownParam = errors.New("unknown workload parameter")

	// ErrInvalidParam is returned by factories for out-of-range values.
	ErrInvalidParam = errors.New("invalid workload parameter")
)

// Factory builds an operation from fully merged parameters.
type Factory func(params map[string]int) (bench.Operation, error)

// Workload describes a buildable candidate.
type Workload struct {
	// Name is the registry key, e.g. "concat-builder".
	Name string

	// Description is shown by `cpubench list`.
	Description string

	// Defaults declares every accepted parameter and its default value.
	Defaults map[string]int

	// Factory builds the operation.
	Factory Factory
}

// Registry maps names to workloads.
//
// Thread Safety: Safe for concurrent use via read-write mutex.
type Registry struct {
	mu        sync.RWMutex
	workloads map[string]Workload
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{workloads: make(map[string]Workload)}
}

// Register adds w.
//
// Outputs:
//   - error: ErrEmptyName, ErrNilFactory or ErrAlreadyRegistered.
func (r *Registry) Register(w Workload) error {
	if w.Name == "" {
		return ErrEmptyName
	}
	if w.Factory == nil {
		return fmt.Errorf("%w: %s", ErrNilFactory, w.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workloads[w.Name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, w.Name)
	}
	w.Defaults = maps.Clone(w.Defaults)
	r.workloads[w.Name] = w
	return nil
}

// MustRegister registers w and panics on error. Use during initialization.
func (r *Registry) MustRegister(w Workload) {
	if err := r.Register(w); err != nil {
		panic(fmt.Sprintf("catalog: failed to register %s: %v", w.Name, err))
	}
}

// Lookup returns the workload registered under name.
func (r *Registry) Lookup(name string) (Workload, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workloads[name]
	if ok {
		w.Defaults = maps.Clone(w.Defaults)
	}
	return w, ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.workloads))
	for name := range r.workloads {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered workloads.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workloads)
}

// Build merges params over the workload's defaults and calls its Factory.
//
// Inputs:
//   - name: A registered workload name.
//   - params: Overrides; every key must be declared in Defaults.
//
// Outputs:
//   - bench.Operation: The operation to measure.
//   - error: ErrNotFound, ErrUnknownParam, or the factory's error.
//
// Example:
//
//	op, err := registry.Build("concat-plus", map[string]int{"n": 50})
func (r *Registry) Build(name string, params map[string]int) (bench.Operation, error) {
	w, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	merged := maps.Clone(w.Defaults)
	if merged == nil {
		merged = make(map[string]int, len(params))
	}
	keys := slices.Sorted(maps.Keys(params))
	for _, k := range keys {
		if _, declared := w.Defaults[k]; !declared {
			return nil, fmt.Errorf("%w: %s has no parameter %q", ErrUnknownParam, name, k)
		}
		merged[k] = params[k]
	}

	op, err := w.Factory(merged)
	if err != nil {
		return nil, fmt.Errorf("build %s: %w", name, err)
	}
	return op, nil
}
