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

import "time"

// DefaultMaxScore is the score the candidates of a suite share.
const DefaultMaxScore = 10

// Normalize scales rates so they sum to maxScore.
//
// Description:
//
//	score[i] = maxScore * rates[i] / sum(rates). When the sum is zero no
//	score can be computed: every score is 0 and defined is false.
//
// Outputs:
//   - scores: One score per rate, in input order.
//   - total: The sum of rates.
//   - defined: False when total is zero.
//
// Example:
//
//	scores, _, _ := bench.Normalize([]float64{100, 300}, 10)
//	// scores == [2.5, 7.5]
func Normalize(rates []float64, maxScore float64) (scores []float64, total float64, defined bool) {
	for _, r := range rates {
		total += r
	}
	scores = make([]float64, len(rates))
	if total == 0 {
		return scores, 0, false
	}
	for i, r := range rates {
		scores[i] = maxScore * r / total
	}
	return scores, total, true
}

// Report is the outcome of one evaluated suite run.
type Report struct {
	// RunID identifies the run.
	RunID string

	// Elapsed is wall-clock time from Run until every member finished.
	Elapsed time.Duration

	// Budget is the per-candidate CPU-time limit of the run.
	Budget time.Duration

	// MaxScore is what the scores of valid candidates sum to.
	MaxScore int

	// TotalOpsPerSecond is the summed throughput of valid candidates.
	TotalOpsPerSecond float64

	// ScoresDefined is false when TotalOpsPerSecond is zero.
	ScoresDefined bool

	// Candidates are in registration order.
	Candidates []CandidateReport

	// Labels are the suite's labels.
	Labels map[string]string
}

// CandidateReport is one row of a Report.
type CandidateReport struct {
	Name         string
	Score        float64
	ScoreDefined bool
	OpsPerSecond float64
	Operations   int64
	CPUTime      time.Duration

	// Failed is set when the operation returned an error or panicked.
	// Failed rows carry no score and are excluded from the totals.
	Failed bool
	Error  string
}

// Failed returns the number of failed candidates.
func (r *Report) Failed() int {
	n := 0
	for _, c := range r.Candidates {
		if c.Failed {
			n++
		}
	}
	return n
}

// Winner returns the valid candidate with the highest throughput.
// ok is false when no score is defined.
func (r *Report) Winner() (CandidateReport, bool) {
	if !r.ScoresDefined {
		return CandidateReport{}, false
	}
	best := -1
	for i, c := range r.Candidates {
		if c.Failed {
			continue
		}
		if best < 0 || c.OpsPerSecond > r.Candidates[best].OpsPerSecond {
			best = i
		}
	}
	if best < 0 {
		return CandidateReport{}, false
	}
	return r.Candidates[best], true
}
