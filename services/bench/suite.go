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
	"context"
	"errors"
	"fmt"
	"maps"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/cpubench/pkg/logging"
	"github.com/AleutianAI/cpubench/services/bench/telemetry"
)

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// SuiteOption configures a Suite.
type SuiteOption func(*Suite)

// WithMaxScore sets the score Evaluate normalizes to. Values below 1
// are ignored.
func WithMaxScore(maxScore int) SuiteOption {
	return func(s *Suite) {
		if maxScore > 0 {
			s.maxScore = maxScore
		}
	}
}

// WithBudget binds the suite to an existing Budget instead of a fresh one.
// Suites sharing a Budget share its lock and aggregate.
func WithBudget(budget *Budget) SuiteOption {
	return func(s *Suite) {
		if budget != nil {
			s.budget = budget
		}
	}
}

// WithLogger sets the suite's logger. Runners built by the suite inherit it.
func WithLogger(logger *logging.Logger) SuiteOption {
	return func(s *Suite) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSink sends every evaluated run to a telemetry sink.
func WithSink(sink telemetry.Sink) SuiteOption {
	return func(s *Suite) {
		if sink != nil {
			s.sink = sink
		}
	}
}

// WithPartialResults makes Evaluate report failed candidates as flagged
// rows instead of failing the whole evaluation.
func WithPartialResults() SuiteOption {
	return func(s *Suite) {
		s.partial = true
	}
}

// WithWallClock replaces time.Now for elapsed-time measurement.
func WithWallClock(now func() time.Time) SuiteOption {
	return func(s *Suite) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLabels attaches labels to the Report and to telemetry records.
func WithLabels(labels map[string]string) SuiteOption {
	return func(s *Suite) {
		s.labels = maps.Clone(labels)
	}
}

// -----------------------------------------------------------------------------
// Suite
// -----------------------------------------------------------------------------

// Suite runs a set of candidates against one Budget and scores them
// relative to each other.
//
// Description:
//
//	Members are kept in registration order with no duplicates (by
//	identity). Run starts every member and returns immediately; Evaluate
//	blocks until they finish and normalizes their throughput. Evaluate
//	always scores the members as they were when Run started them. While a
//	run is in flight, Add and Remove are ignored.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	suite := bench.NewSuite()
//	a, _ := bench.NewRunner(suite.Budget(), "plus", opA)
//	b, _ := bench.NewRunner(suite.Budget(), "builder", opB)
//	suite.Add(a).Add(b)
//
//	if err := suite.Run(); err != nil {
//	    return err
//	}
//	report, err := suite.Evaluate(ctx)
type Suite struct {
	budget   *Budget
	maxScore int
	logger   *logging.Logger
	sink     telemetry.Sink
	partial  bool
	now      func() time.Time
	labels   map[string]string
	runID    string

	mu       sync.Mutex
	members  []*Runner
	run      []*Runner
	limit    time.Duration
	running  bool
	started  time.Time
	elapsed  time.Duration
	waited   bool
	recorded bool
}

// NewSuite creates an empty suite with its own Budget.
func NewSuite(opts ...SuiteOption) *Suite {
	s := &Suite{
		budget:   NewBudget(),
		maxScore: DefaultMaxScore,
		logger:   logging.Nop(),
		sink:     telemetry.NewNoOpSink(),
		now:      time.Now,
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("run_id", s.runID)
	return s
}

// Budget returns the suite's Budget.
func (s *Suite) Budget() *Budget { return s.budget }

// MaxScore returns the configured maximum score.
func (s *Suite) MaxScore() int { return s.maxScore }

// RunID returns the identifier attached to the suite's logs, reports and
// telemetry.
func (s *Suite) RunID() string { return s.runID }

// Candidates returns the members in registration order.
func (s *Suite) Candidates() []*Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.members)
}

// Len returns the number of members.
func (s *Suite) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// NewRunner builds a runner on the suite's Budget and adds it.
//
// The runner logs through the suite's logger unless opts say otherwise.
func (s *Suite) NewRunner(name string, op Operation, opts ...RunnerOption) (*Runner, error) {
	opts = append([]RunnerOption{WithRunnerLogger(s.logger)}, opts...)
	r, err := NewRunner(s.budget, name, op, opts...)
	if err != nil {
		return nil, err
	}
	s.Add(r)
	return r, nil
}

// Add appends r unless it is nil, already a member, or a run is in flight.
// It returns s for chaining.
func (s *Suite) Add(r *Runner) *Suite {
	if r == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlightLocked() {
		s.logger.Warn("suite running, add ignored", "candidate", r.Name())
		return s
	}
	if slices.Contains(s.members, r) {
		return s
	}
	s.members = append(s.members, r)
	return s
}

// Remove drops r if it is a member and no run is in flight. It returns s
// for chaining.
func (s *Suite) Remove(r *Runner) *Suite {
	if r == nil {
		return s
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlightLocked() {
		s.logger.Warn("suite running, remove ignored", "candidate", r.Name())
		return s
	}
	if i := slices.Index(s.members, r); i >= 0 {
		s.members = slices.Delete(s.members, i, i+1)
	}
	return s
}

// inFlightLocked reports whether a run has started and some runner of it
// has not finished yet. Caller holds s.mu.
func (s *Suite) inFlightLocked() bool {
	if !s.running {
		return false
	}
	for _, m := range s.run {
		if !m.Finished() {
			return true
		}
	}
	return false
}

// Run starts every member in registration order and returns without
// waiting.
//
// Description:
//
//	Every member is registered with the Budget under one lock before any
//	goroutine launches, so all of them measure against the same limit and
//	the Budget stays locked until the last one finishes. The Budget's
//	aggregate throughput starts over with the run.
//
// Outputs:
//   - error: ErrNoCandidates, ErrAlreadyRunning, ErrRunnerUsed or
//     ErrBudgetMismatch. On error no member was started.
func (s *Suite) Run() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.members) == 0 {
		return ErrNoCandidates
	}
	if s.inFlightLocked() {
		return ErrAlreadyRunning
	}
	for _, m := range s.members {
		if m.budget != s.budget {
			return fmt.Errorf("%w: %s", ErrBudgetMismatch, m.Name())
		}
		if m.Started() {
			return fmt.Errorf("%w: %s", ErrRunnerUsed, m.Name())
		}
	}

	for i, m := range s.members {
		if !m.claim() {
			for _, claimed := range s.members[:i] {
				claimed.unclaim()
			}
			return fmt.Errorf("%w: %s", ErrRunnerUsed, m.Name())
		}
	}

	s.run = slices.Clone(s.members)
	s.running = true
	s.waited = false
	s.recorded = false
	s.started = s.now()
	s.limit = s.budget.acquireRun(len(s.run))

	for _, m := range s.run {
		m.launch(s.limit)
	}

	s.logger.Info("suite started",
		"candidates", len(s.run),
		"budget", s.limit,
	)
	return nil
}

// Evaluate waits for the run and scores it out of the configured maximum.
func (s *Suite) Evaluate(ctx context.Context) (*Report, error) {
	return s.EvaluateOutOf(ctx, s.maxScore)
}

// EvaluateOutOf waits for the run and scores it out of maxScore.
//
// Description:
//
//	The runners started by the last Run are waited on in registration
//	order; members added since then are not part of it. If ctx ends first the
//	call fails with ErrInterrupted and the run stays in flight, so a later
//	call can wait again. Throughput of valid members is normalized to sum
//	to maxScore; if it sums to zero every score is undefined.
//
//	Failed members abort the evaluation with their joined errors, unless
//	the suite was built WithPartialResults, in which case they appear as
//	flagged rows excluded from normalization.
//
// Inputs:
//   - ctx: Bounds the wait. Must not be nil.
//   - maxScore: Must be positive.
//
// Outputs:
//   - *Report: The scored run.
//   - error: ErrNotStarted, ErrInvalidMaxScore, ErrInterrupted or the
//     joined candidate failures (each wrapping ErrCandidateFailed).
func (s *Suite) EvaluateOutOf(ctx context.Context, maxScore int) (*Report, error) {
	if maxScore < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidMaxScore, maxScore)
	}

	s.mu.Lock()
	if s.started.IsZero() {
		s.mu.Unlock()
		return nil, ErrNotStarted
	}
	members := slices.Clone(s.run)
	started := s.started
	limit := s.limit
	s.mu.Unlock()

	for _, m := range members {
		if err := m.Wait(ctx); err != nil {
			s.logger.Error("evaluation interrupted", "waiting_on", m.Name(), "error", err)
			return nil, fmt.Errorf("%w: %w", ErrInterrupted, err)
		}
	}

	s.mu.Lock()
	if !s.waited {
		s.elapsed = s.now().Sub(started)
		s.waited = true
	}
	elapsed := s.elapsed
	s.running = false
	record := !s.recorded
	s.recorded = true
	s.mu.Unlock()

	results := make([]Result, len(members))
	var failures []error
	for i, m := range members {
		results[i], _ = m.Result()
		if results[i].Err != nil {
			failures = append(failures, results[i].Err)
		}
	}

	report := s.buildReport(results, elapsed, limit, maxScore)

	if record {
		s.record(ctx, report)
	}

	if len(failures) > 0 && !s.partial {
		return nil, errors.Join(failures...)
	}

	if !report.ScoresDefined {
		s.logger.Warn("total throughput is zero, scores undefined")
	}
	s.logger.Info("suite evaluated",
		"elapsed", elapsed,
		"total_ops_per_sec", report.TotalOpsPerSecond,
		"failed", len(failures),
	)
	return report, nil
}

func (s *Suite) buildReport(results []Result, elapsed, limit time.Duration, maxScore int) *Report {
	var rates []float64
	for _, res := range results {
		if res.Err == nil {
			rates = append(rates, res.OpsPerSecond)
		}
	}
	scores, sum, defined := Normalize(rates, float64(maxScore))
	total := s.aggregate(sum)

	report := &Report{
		RunID:             s.runID,
		Elapsed:           elapsed,
		Budget:            limit,
		MaxScore:          maxScore,
		TotalOpsPerSecond: total,
		ScoresDefined:     defined,
		Candidates:        make([]CandidateReport, len(results)),
		Labels:            maps.Clone(s.labels),
	}

	next := 0
	for i, res := range results {
		row := CandidateReport{
			Name:       res.Name,
			Operations: res.Operations,
			CPUTime:    res.CPUTime,
		}
		if res.Err != nil {
			row.Failed = true
			row.Error = res.Err.Error()
		} else {
			row.OpsPerSecond = res.OpsPerSecond
			row.Score = scores[next]
			row.ScoreDefined = defined
			next++
		}
		report.Candidates[i] = row
	}
	return report
}

// aggregate returns the Budget's accumulated throughput for the run. It
// falls back to sum, the total of the rates being scored, when the two
// disagree, which happens when other suites share the Budget.
func (s *Suite) aggregate(sum float64) float64 {
	total := s.budget.Total()
	if math.Abs(total-sum) > 1e-9*math.Max(1, math.Abs(sum)) {
		s.logger.Warn("budget aggregate differs from scored rates",
			"aggregate_ops_per_sec", total,
			"scored_ops_per_sec", sum,
		)
		return sum
	}
	return total
}

// record forwards a report to the sink. Sink errors are logged, never
// returned.
func (s *Suite) record(ctx context.Context, report *Report) {
	now := s.now()

	for _, c := range report.Candidates {
		var err error
		if c.Failed {
			err = s.sink.RecordFailure(ctx, &telemetry.FailureData{
				RunID:     report.RunID,
				Name:      c.Name,
				Message:   c.Error,
				Timestamp: now,
				Labels:    report.Labels,
			})
		} else {
			err = s.sink.RecordCandidate(ctx, &telemetry.CandidateData{
				RunID:        report.RunID,
				Name:         c.Name,
				Operations:   c.Operations,
				CPUTime:      c.CPUTime,
				OpsPerSecond: c.OpsPerSecond,
				Score:        c.Score,
				ScoreDefined: c.ScoreDefined,
				Timestamp:    now,
				Labels:       report.Labels,
			})
		}
		if err != nil {
			s.logger.Warn("telemetry record failed", "candidate", c.Name, "error", err)
		}
	}

	err := s.sink.RecordSuite(ctx, &telemetry.SuiteData{
		RunID:             report.RunID,
		Candidates:        len(report.Candidates),
		Failed:            report.Failed(),
		Elapsed:           report.Elapsed,
		Budget:            report.Budget,
		TotalOpsPerSecond: report.TotalOpsPerSecond,
		MaxScore:          float64(report.MaxScore),
		Timestamp:         now,
		Labels:            report.Labels,
	})
	if err != nil {
		s.logger.Warn("telemetry record failed", "error", err)
	}
}
