// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrNilContext is returned when a nil context is passed.
	ErrNilContext = errors.New("context must not be nil")

	// ErrNilData is returned when nil record data is passed.
	ErrNilData = errors.New("data must not be nil")

	// ErrSinkClosed is returned when recording to a closed sink.
	ErrSinkClosed = errors.New("sink is closed")

	// ErrNoSinks is returned when a composite sink is built from nothing.
	ErrNoSinks = errors.New("at least one sink is required")
)

// -----------------------------------------------------------------------------
// Record Data
// -----------------------------------------------------------------------------

// CandidateData is the telemetry view of one finished candidate.
type CandidateData struct {
	// RunID identifies the suite run the candidate belongs to.
	RunID string

	// Name is the candidate's display name (at most 15 runes).
	Name string

	// Operations is the number of completed invocations.
	Operations int64

	// CPUTime is the CPU time the candidate's thread consumed.
	CPUTime time.Duration

	// OpsPerSecond is the measured throughput.
	OpsPerSecond float64

	// Score is the normalized score. Meaningful only when ScoreDefined.
	Score float64

	// ScoreDefined is false when the suite's total throughput was zero.
	ScoreDefined bool

	// Timestamp is when the record was produced.
	Timestamp time.Time

	// Labels are copied onto every span and metric as extra attributes.
	Labels map[string]string
}

// SuiteData is the telemetry view of one evaluated suite run.
type SuiteData struct {
	RunID string

	// Candidates is the number of members, failed ones included.
	Candidates int

	// Failed is the number of members whose operation failed.
	Failed int

	// Elapsed is wall-clock time from Run to the end of Evaluate's wait.
	Elapsed time.Duration

	// Budget is the per-candidate CPU-time limit.
	Budget time.Duration

	// TotalOpsPerSecond is the sum of valid members' throughput.
	TotalOpsPerSecond float64

	// MaxScore is the score the totals normalize to.
	MaxScore float64

	Timestamp time.Time
	Labels    map[string]string
}

// FailureData describes a candidate whose operation returned an error or
// panicked.
type FailureData struct {
	RunID     string
	Name      string
	Message   string
	Timestamp time.Time
	Labels    map[string]string
}

// -----------------------------------------------------------------------------
// Sink Interface
// -----------------------------------------------------------------------------

// Sink receives benchmark telemetry.
//
// Description:
//
//	Sink is the single export seam for a suite. The suite calls
//	RecordCandidate once per member, RecordFailure once per failed
//	member, and RecordSuite once per successful evaluation.
//
// Thread Safety: Implementations must be safe for concurrent use.
type Sink interface {
	// RecordCandidate records one finished candidate.
	RecordCandidate(ctx context.Context, data *CandidateData) error

	// RecordSuite records one evaluated run.
	RecordSuite(ctx context.Context, data *SuiteData) error

	// RecordFailure records one failed candidate.
	RecordFailure(ctx context.Context, data *FailureData) error

	// Flush forces export of buffered telemetry.
	Flush(ctx context.Context) error

	// Close releases resources. Idempotent.
	Close() error
}

// -----------------------------------------------------------------------------
// NoOp Sink
// -----------------------------------------------------------------------------

// NoOpSink discards everything. It still validates its inputs so callers
// see the same contract as with a real sink.
type NoOpSink struct{}

// NewNoOpSink returns a sink that discards all telemetry.
func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

func (s *NoOpSink) RecordCandidate(ctx context.Context, data *CandidateData) error {
	return checkArgs(ctx, data == nil)
}

func (s *NoOpSink) RecordSuite(ctx context.Context, data *SuiteData) error {
	return checkArgs(ctx, data == nil)
}

func (s *NoOpSink) RecordFailure(ctx context.Context, data *FailureData) error {
	return checkArgs(ctx, data == nil)
}

func (s *NoOpSink) Flush(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func (s *NoOpSink) Close() error { return nil }

// -----------------------------------------------------------------------------
// Composite Sink
// -----------------------------------------------------------------------------

// CompositeSink fans every record out to several sinks.
//
// Description:
//
//	Records are delivered to each child in order; a failing child does
//	not stop delivery to the rest, and all child errors are joined.
//	Flush and Close run on all children concurrently.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	sink, err := telemetry.NewCompositeSink(promSink, otelSink)
//	if err != nil {
//	    return err
//	}
//	defer sink.Close()
type CompositeSink struct {
	sinks []Sink

	mu     sync.RWMutex
	closed bool
}

// NewCompositeSink combines sinks. Nil entries are skipped.
//
// Outputs:
//   - *CompositeSink: The combined sink.
//   - error: ErrNoSinks if no non-nil sink was given.
func NewCompositeSink(sinks ...Sink) (*CompositeSink, error) {
	valid := make([]Sink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil, ErrNoSinks
	}
	return &CompositeSink{sinks: valid}, nil
}

// Len returns the number of child sinks.
func (c *CompositeSink) Len() int {
	return len(c.sinks)
}

func (c *CompositeSink) RecordCandidate(ctx context.Context, data *CandidateData) error {
	if err := c.ready(ctx, data == nil); err != nil {
		return err
	}
	return c.each(func(s Sink) error { return s.RecordCandidate(ctx, data) })
}

func (c *CompositeSink) RecordSuite(ctx context.Context, data *SuiteData) error {
	if err := c.ready(ctx, data == nil); err != nil {
		return err
	}
	return c.each(func(s Sink) error { return s.RecordSuite(ctx, data) })
}

func (c *CompositeSink) RecordFailure(ctx context.Context, data *FailureData) error {
	if err := c.ready(ctx, data == nil); err != nil {
		return err
	}
	return c.each(func(s Sink) error { return s.RecordFailure(ctx, data) })
}

// Flush flushes every child concurrently and returns the first error.
func (c *CompositeSink) Flush(ctx context.Context) error {
	if err := c.ready(ctx, false); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range c.sinks {
		g.Go(func() error { return s.Flush(gctx) })
	}
	return g.Wait()
}

// Close closes every child concurrently. Idempotent.
func (c *CompositeSink) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	var g errgroup.Group
	for _, s := range c.sinks {
		g.Go(s.Close)
	}
	return g.Wait()
}

func (c *CompositeSink) ready(ctx context.Context, nilData bool) error {
	if err := checkArgs(ctx, nilData); err != nil {
		return err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrSinkClosed
	}
	return nil
}

func (c *CompositeSink) each(fn func(Sink) error) error {
	var errs []error
	for _, s := range c.sinks {
		if err := fn(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func checkArgs(ctx context.Context, nilData bool) error {
	if ctx == nil {
		return ErrNilContext
	}
	if nilData {
		return ErrNilData
	}
	return nil
}

// Verify interface compliance at compile time.
var (
	_ Sink = (*NoOpSink)(nil)
	_ Sink = (*CompositeSink)(nil)
)
