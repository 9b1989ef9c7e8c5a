// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/cpubench/cmd/cpubench/config"
	"github.com/AleutianAI/cpubench/services/bench"
	"github.com/AleutianAI/cpubench/services/bench/catalog"
)

// errBadCandidate is returned for malformed --candidate values.
var errBadCandidate = errors.New("invalid --candidate value")

// parseCandidate parses "[name=]workload[:key=value,...]".
//
// Examples:
//
//	concat-plus                 -> name "concat-plus", no overrides
//	plus=concat-plus:n=200      -> name "plus", n=200
//	sort-ints:n=50,seed=7       -> name "sort-ints", two overrides
func parseCandidate(s string) (config.CandidateSpec, error) {
	head, rawParams, hasParams := strings.Cut(strings.TrimSpace(s), ":")

	name, workload, named := strings.Cut(head, "=")
	if !named {
		workload = name
	}
	name, workload = strings.TrimSpace(name), strings.TrimSpace(workload)
	if name == "" || workload == "" {
		return config.CandidateSpec{}, fmt.Errorf("%w: %q", errBadCandidate, s)
	}

	spec := config.CandidateSpec{Name: name, Workload: workload}
	if !hasParams {
		return spec, nil
	}

	spec.Params = make(map[string]int)
	for _, kv := range strings.Split(rawParams, ",") {
		k, v, ok := strings.Cut(kv, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return config.CandidateSpec{}, fmt.Errorf("%w: %q: parameter %q is not key=value", errBadCandidate, s, kv)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return config.CandidateSpec{}, fmt.Errorf("%w: %q: parameter %s: %w", errBadCandidate, s, k, err)
		}
		spec.Params[k] = n
	}
	return spec, nil
}

// addCandidates builds every CandidateSpec from the registry and registers it with
// the suite. Each runner requests budgetSeconds.
func addCandidates(suite *bench.Suite, registry *catalog.Registry, specs []config.CandidateSpec, budgetSeconds int) error {
	for _, c := range specs {
		op, err := registry.Build(c.Workload, c.Params)
		if err != nil {
			return fmt.Errorf("candidate %s: %w", c.Name, err)
		}
		if _, err := suite.NewRunner(c.Name, op, bench.WithBudgetSeconds(budgetSeconds)); err != nil {
			return fmt.Errorf("candidate %s: %w", c.Name, err)
		}
	}
	return nil
}
