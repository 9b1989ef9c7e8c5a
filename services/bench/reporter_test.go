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
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() *Report {
	return &Report{
		RunID:             "run-1",
		Elapsed:           2140 * time.Millisecond,
		Budget:            2 * time.Second,
		MaxScore:          10,
		TotalOpsPerSecond: 1500.7,
		ScoresDefined:     true,
		Candidates: []CandidateReport{
			{Name: "plus", Score: 10.0 / 3, ScoreDefined: true, OpsPerSecond: 500.9, Operations: 1002, CPUTime: 2 * time.Second},
			{Name: "builder", Score: 20.0 / 3, ScoreDefined: true, OpsPerSecond: 999.8, Operations: 2000, CPUTime: 2 * time.Second},
		},
	}
}

func TestPrecision(t *testing.T) {
	assert.Equal(t, 1, Precision(10))
	assert.Equal(t, 1, Precision(100))
	assert.Equal(t, 2, Precision(9))
	assert.Equal(t, 2, Precision(1))
}

func TestConsoleReporter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewConsoleReporter(&buf).Report(sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "Time taken: 2.1 s")
	assert.Contains(t, out, "Candidate")
	assert.Contains(t, out, "Score (/10)")
	assert.Contains(t, out, "Operations")
	assert.Contains(t, out, "plus")
	assert.Contains(t, out, "3.3")
	assert.Contains(t, out, "6.7")
	assert.Contains(t, out, "500")
	assert.Contains(t, out, "999")
	assert.NotContains(t, out, "\x1b[", "no ANSI escapes when not a terminal")
	assert.NotContains(t, out, "n/a")
}

func TestConsoleReporter_LowMaxUsesTwoDecimals(t *testing.T) {
	report := sampleReport()
	report.MaxScore = 5
	report.Candidates[0].Score = 5.0 / 3
	report.Candidates[1].Score = 10.0 / 3

	var buf bytes.Buffer
	require.NoError(t, NewConsoleReporter(&buf).Report(report))

	out := buf.String()
	assert.Contains(t, out, "Time taken: 2.14 s")
	assert.Contains(t, out, "Score (/5)")
	assert.Contains(t, out, "1.67")
	assert.Contains(t, out, "3.33")
}

func TestConsoleReporter_UndefinedAndFailed(t *testing.T) {
	report := &Report{
		MaxScore:      10,
		Elapsed:       time.Second,
		ScoresDefined: false,
		Candidates: []CandidateReport{
			{Name: "idle"},
			{Name: "broken", Failed: true, Error: "candidate failed: broken: boom"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, NewConsoleReporter(&buf).Report(report))

	out := buf.String()
	assert.Contains(t, out, "Time taken: 1.0 s")
	assert.Contains(t, out, "n/a")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "Scores undefined")
	assert.Contains(t, out, "FAIL: broken")
	assert.Contains(t, out, "boom")
}

func TestConsoleReporter_NilReport(t *testing.T) {
	assert.ErrorIs(t, NewConsoleReporter(&bytes.Buffer{}).Report(nil), ErrNilReport)
	assert.ErrorIs(t, NewJSONReporter(&bytes.Buffer{}).Report(nil), ErrNilReport)
}

func TestJSONReporter(t *testing.T) {
	report := sampleReport()
	report.Labels = map[string]string{"host": "ci"}
	report.Candidates = append(report.Candidates,
		CandidateReport{Name: "broken", Failed: true, Error: "boom"},
	)

	var buf bytes.Buffer
	require.NoError(t, NewJSONReporter(&buf).Report(report))

	var got struct {
		RunID          string            `json:"run_id"`
		ElapsedSeconds float64           `json:"elapsed_seconds"`
		BudgetSeconds  float64           `json:"budget_seconds"`
		MaxScore       int               `json:"max_score"`
		ScoresDefined  bool              `json:"scores_defined"`
		Labels         map[string]string `json:"labels"`
		Candidates     []struct {
			Name       string   `json:"name"`
			Score      *float64 `json:"score"`
			Operations int64    `json:"operations"`
			CPUTime    string   `json:"cpu_time"`
			Failed     bool     `json:"failed"`
			Error      string   `json:"error"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))

	assert.Equal(t, "run-1", got.RunID)
	assert.InDelta(t, 2.14, got.ElapsedSeconds, 1e-9)
	assert.InDelta(t, 2.0, got.BudgetSeconds, 1e-9)
	assert.Equal(t, 10, got.MaxScore)
	assert.True(t, got.ScoresDefined)
	assert.Equal(t, "ci", got.Labels["host"])

	require.Len(t, got.Candidates, 3)
	require.NotNil(t, got.Candidates[0].Score)
	assert.InDelta(t, 10.0/3, *got.Candidates[0].Score, 1e-9)
	assert.Equal(t, int64(1002), got.Candidates[0].Operations)
	assert.Equal(t, "2.00s", got.Candidates[0].CPUTime)

	assert.Nil(t, got.Candidates[2].Score, "failed candidates have no score")
	assert.True(t, got.Candidates[2].Failed)
	assert.Equal(t, "boom", got.Candidates[2].Error)
}

func TestJSONReporter_UndefinedScoreIsNull(t *testing.T) {
	report := &Report{MaxScore: 10, Candidates: []CandidateReport{{Name: "idle"}}}

	var buf bytes.Buffer
	require.NoError(t, NewJSONReporter(&buf).Report(report))
	assert.Contains(t, buf.String(), `"score": null`)
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{500 * time.Nanosecond, "500ns"},
		{1500 * time.Nanosecond, "1.50µs"},
		{2500 * time.Microsecond, "2.50ms"},
		{2 * time.Second, "2.00s"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatDuration(tt.d))
		})
	}
}
