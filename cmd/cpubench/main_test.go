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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/cpubench/services/bench"
)

// =============================================================================
// Test Helpers
// =============================================================================

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// execute runs the CLI in-process.
func execute(t *testing.T, ctx context.Context, args ...string) cliResult {
	t.Helper()
	t.Setenv("CPUBENCH_OUTPUT", "")
	var stdout, stderr bytes.Buffer
	code := run(ctx, args, &stdout, &stderr)
	return cliResult{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

type jsonReport struct {
	RunID         string            `json:"run_id"`
	MaxScore      int               `json:"max_score"`
	BudgetSeconds float64           `json:"budget_seconds"`
	ScoresDefined bool              `json:"scores_defined"`
	Labels        map[string]string `json:"labels"`
	Candidates    []struct {
		Name       string   `json:"name"`
		Score      *float64 `json:"score"`
		Operations int64    `json:"operations"`
		Failed     bool     `json:"failed"`
	} `json:"candidates"`
}

// =============================================================================
// version / list / init
// =============================================================================

func TestVersion(t *testing.T) {
	res := execute(t, context.Background(), "version")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "cpubench dev")
}

func TestList_Table(t *testing.T) {
	res := execute(t, context.Background(), "list")
	require.Equal(t, exitOK, res.code, res.stderr)
	for _, name := range []string{"noop", "concat-plus", "concat-builder", "sort-ints"} {
		assert.Contains(t, res.stdout, name)
	}
	assert.Contains(t, res.stdout, "n=1000,seed=1")
	assert.NotContains(t, res.stdout, "\x1b[")
}

func TestList_JSON(t *testing.T) {
	res := execute(t, context.Background(), "list", "--format", "json")
	require.Equal(t, exitOK, res.code, res.stderr)

	var got []workloadListing
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &got))
	require.Len(t, got, 11)
	assert.Equal(t, "concat-builder", got[0].Name)
	assert.NotNil(t, got[0].Params)
}

func TestList_BadFormat(t *testing.T) {
	res := execute(t, context.Background(), "list", "--format", "xml")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "unknown format")
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suite.yaml")

	res := execute(t, context.Background(), "--ui", "machine", "init", path)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "OK: wrote "+path)
	assert.FileExists(t, path)

	res = execute(t, context.Background(), "init", path)
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "already exists")

	res = execute(t, context.Background(), "init", "--force", path)
	assert.Equal(t, exitOK, res.code, res.stderr)
}

func TestGlobalFlagValidation(t *testing.T) {
	res := execute(t, context.Background(), "--ui", "sparkly", "version")
	assert.Equal(t, exitError, res.code)

	res = execute(t, context.Background(), "--log-level", "loud", "version")
	assert.Equal(t, exitError, res.code)
}

// =============================================================================
// run
// =============================================================================

func TestRun_NoCandidates(t *testing.T) {
	res := execute(t, context.Background(), "run", "--budget", "0")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "no candidates")
}

func TestRun_BadCandidate(t *testing.T) {
	res := execute(t, context.Background(), "run", "--budget", "0", "--candidate", "=noop")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "invalid --candidate")
}

func TestRun_UnknownWorkload(t *testing.T) {
	res := execute(t, context.Background(), "run", "--budget", "0", "--candidate", "missing")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "workload not found")
}

func TestRun_InvalidParam(t *testing.T) {
	res := execute(t, context.Background(), "run", "--budget", "0", "--candidate", "spin:n=0")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "invalid workload parameter")
}

func TestRun_InvalidMaxScore(t *testing.T) {
	res := execute(t, context.Background(), "run", "--budget", "0", "--max-score", "0", "--candidate", "noop")
	assert.Equal(t, exitError, res.code)
	assert.Contains(t, res.stderr, "MaxScore")
}

func TestRun_ZeroBudgetJSON(t *testing.T) {
	res := execute(t, context.Background(),
		"--ui", "machine",
		"run", "--budget", "0", "--format", "json",
		"--label", "host=ci",
		"--candidate", "plus=concat-plus:n=10",
		"--candidate", "concat-builder",
	)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, "PROGRESS: measuring 2 candidates")
	assert.Contains(t, res.stderr, "OK: measured 2 candidates")

	var report jsonReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report), res.stdout)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 10, report.MaxScore)
	assert.Zero(t, report.BudgetSeconds)
	assert.False(t, report.ScoresDefined, "zero budget means zero total throughput")
	assert.Equal(t, "ci", report.Labels["host"])

	require.Len(t, report.Candidates, 2)
	assert.Equal(t, "plus", report.Candidates[0].Name)
	assert.Equal(t, "concat-builder", report.Candidates[1].Name)
	for _, c := range report.Candidates {
		assert.Nil(t, c.Score)
		assert.Zero(t, c.Operations)
	}
}

func TestRun_Table(t *testing.T) {
	res := execute(t, context.Background(), "--ui", "machine", "run", "--budget", "0", "--candidate", "noop")
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stdout, "Time taken:")
	assert.Contains(t, res.stdout, "Score (/10)")
	assert.Contains(t, res.stdout, "n/a")
}

func TestRun_ConfigFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	suitePath := filepath.Join(dir, "suite.yaml")
	promPath := filepath.Join(dir, "cpubench.prom")
	require.NoError(t, os.WriteFile(suitePath, []byte(`
version: "1.0.0"
budget: 60
max_score: 5
output: json
candidates:
  - name: spin
    workload: spin
    params: {n: 10}
`), 0o644))

	res := execute(t, context.Background(),
		"--ui", "machine",
		"run", "--config", suitePath,
		"--budget", "0",
		"--candidate", "noop",
		"--prom-textfile", promPath,
	)
	require.Equal(t, exitOK, res.code, res.stderr)

	var report jsonReport
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &report), res.stdout)
	assert.Equal(t, 5, report.MaxScore, "file value kept")
	assert.Zero(t, report.BudgetSeconds, "flag overrides file")
	require.Len(t, report.Candidates, 2, "flag candidates are appended")
	assert.Equal(t, "spin", report.Candidates[0].Name)
	assert.Equal(t, "noop", report.Candidates[1].Name)

	prom, err := os.ReadFile(promPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "cpubench_suite_runs_total 1")
	assert.Contains(t, string(prom), `cpubench_candidate_operations_total{candidate="noop"} 0`)
}

func TestRun_StdoutTelemetry(t *testing.T) {
	res := execute(t, context.Background(),
		"--ui", "machine",
		"run", "--budget", "0",
		"--traces", "stdout", "--metrics", "stdout",
		"--candidate", "noop",
	)
	require.Equal(t, exitOK, res.code, res.stderr)
	assert.Contains(t, res.stderr, `"Name": "suite.run"`)
	assert.Contains(t, res.stderr, `"Name": "candidate.record"`)
	assert.Contains(t, res.stderr, "cpubench.suite.runs")
	assert.NotContains(t, res.stdout, "suite.run", "telemetry never reaches the report stream")
}

func TestRun_Interrupted(t *testing.T) {
	if testing.Short() {
		t.Skip("leaves a runner burning one CPU second in the background")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := execute(t, ctx, "--ui", "machine", "run", "--budget", "1", "--candidate", "noop")
	assert.Equal(t, exitInterrupted, res.code, res.stderr)
	assert.Contains(t, res.stderr, "interrupted")
}

// =============================================================================
// Exit codes
// =============================================================================

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"interrupted", fmt.Errorf("%w: %w", bench.ErrInterrupted, context.Canceled), exitInterrupted},
		{"candidate failed", errors.Join(fmt.Errorf("%w: a: boom", bench.ErrCandidateFailed)), exitFailed},
		{"other", errors.New("boom"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
