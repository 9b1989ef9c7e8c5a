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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/AleutianAI/cpubench/services/bench/telemetry"

var (
	// ErrOTelInitFailed is returned when instrument creation fails.
	ErrOTelInitFailed = errors.New("opentelemetry initialization failed")

	// ErrInvalidOTelConfig is returned for a nil or incomplete config.
	ErrInvalidOTelConfig = errors.New("invalid opentelemetry configuration")
)

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// OTelConfig configures the OpenTelemetry sink.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type OTelConfig struct {
	// ServiceName is the service name for telemetry. Required.
	ServiceName string

	// ServiceVersion is used as the instrumentation version.
	ServiceVersion string

	// TracerProvider to use. If nil, the global provider is used.
	TracerProvider trace.TracerProvider

	// MeterProvider to use. If nil, the global provider is used.
	MeterProvider metric.MeterProvider

	// TraceEnabled enables span creation. Default: true.
	TraceEnabled bool

	// MetricsEnabled enables metric recording. Default: true.
	MetricsEnabled bool
}

// DefaultOTelConfig returns a config with tracing and metrics enabled.
func DefaultOTelConfig() *OTelConfig {
	return &OTelConfig{
		ServiceName:    "cpubench",
		ServiceVersion: "1.0.0",
		TraceEnabled:   true,
		MetricsEnabled: true,
	}
}

// Validate checks that required fields are set.
func (c *OTelConfig) Validate() error {
	if c.ServiceName == "" {
		return errors.New("service name is required")
	}
	return nil
}

// -----------------------------------------------------------------------------
// OpenTelemetry Sink
// -----------------------------------------------------------------------------

// OTelSink exports benchmark telemetry via OpenTelemetry.
//
// Description:
//
//	Each record becomes a span ("candidate.record", "suite.record",
//	"failure.record") and feeds a set of instruments. The sink does not
//	own its providers: Flush and Close leave them running, and the caller
//	shuts them down.
//
// Thread Safety: Safe for concurrent use.
//
// Example:
//
//	config := telemetry.DefaultOTelConfig()
//	config.TracerProvider = tp
//	config.MeterProvider = mp
//
//	sink, err := telemetry.NewOTelSink(config)
//	if err != nil {
//	    return fmt.Errorf("create otel sink: %w", err)
//	}
//	defer sink.Close()
type OTelSink struct {
	config *OTelConfig
	tracer trace.Tracer
	meter  metric.Meter

	candidateThroughput metric.Float64Histogram
	candidateCPUTime    metric.Float64Histogram
	candidateScore      metric.Float64Gauge
	candidateOperations metric.Int64Counter
	suiteElapsed        metric.Float64Histogram
	suiteThroughput     metric.Float64Gauge
	suitesTotal         metric.Int64Counter
	failuresTotal       metric.Int64Counter

	mu     sync.RWMutex
	closed bool
}

// NewOTelSink creates an OpenTelemetry sink.
//
// Inputs:
//   - config: Must not be nil and must have a ServiceName.
//
// Outputs:
//   - *OTelSink: The sink. Never nil on success.
//   - error: ErrInvalidOTelConfig or ErrOTelInitFailed (joined with cause).
func NewOTelSink(config *OTelConfig) (*OTelSink, error) {
	if config == nil {
		return nil, ErrInvalidOTelConfig
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Join(ErrInvalidOTelConfig, err)
	}

	cfg := *config

	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	mp := cfg.MeterProvider
	if mp == nil {
		mp = otel.GetMeterProvider()
	}

	sink := &OTelSink{
		config: &cfg,
		tracer: tp.Tracer(instrumentationName, trace.WithInstrumentationVersion(cfg.ServiceVersion)),
		meter:  mp.Meter(instrumentationName, metric.WithInstrumentationVersion(cfg.ServiceVersion)),
	}

	if cfg.MetricsEnabled {
		if err := sink.initializeMetrics(); err != nil {
			return nil, errors.Join(ErrOTelInitFailed, err)
		}
	}

	return sink, nil
}

func (s *OTelSink) initializeMetrics() error {
	var err error

	s.candidateThroughput, err = s.meter.Float64Histogram(
		"cpubench.candidate.throughput",
		metric.WithDescription("Candidate throughput in operations per CPU second"),
		metric.WithUnit("{operation}/s"),
	)
	if err != nil {
		return err
	}

	s.candidateCPUTime, err = s.meter.Float64Histogram(
		"cpubench.candidate.cpu_time",
		metric.WithDescription("CPU time consumed by a candidate"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	s.candidateScore, err = s.meter.Float64Gauge(
		"cpubench.candidate.score",
		metric.WithDescription("Normalized candidate score"),
		metric.WithUnit("{score}"),
	)
	if err != nil {
		return err
	}

	s.candidateOperations, err = s.meter.Int64Counter(
		"cpubench.candidate.operations",
		metric.WithDescription("Operations completed by candidates"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return err
	}

	s.suiteElapsed, err = s.meter.Float64Histogram(
		"cpubench.suite.elapsed",
		metric.WithDescription("Wall-clock time of a suite run"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return err
	}

	s.suiteThroughput, err = s.meter.Float64Gauge(
		"cpubench.suite.throughput",
		metric.WithDescription("Summed throughput of a suite's valid candidates"),
		metric.WithUnit("{operation}/s"),
	)
	if err != nil {
		return err
	}

	s.suitesTotal, err = s.meter.Int64Counter(
		"cpubench.suite.runs",
		metric.WithDescription("Suite runs evaluated"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return err
	}

	s.failuresTotal, err = s.meter.Int64Counter(
		"cpubench.candidate.failures",
		metric.WithDescription("Candidates whose operation failed"),
		metric.WithUnit("{failure}"),
	)
	return err
}

// RecordCandidate records one finished candidate.
//
// Thread Safety: Safe for concurrent use.
func (s *OTelSink) RecordCandidate(ctx context.Context, data *CandidateData) error {
	if err := s.ready(ctx, data == nil); err != nil {
		return err
	}

	name := orUnknown(data.Name)
	attrs := withLabels([]attribute.KeyValue{
		attribute.String("candidate.name", name),
	}, data.Labels)

	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "candidate.record",
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.SetAttributes(
			attribute.String("run.id", data.RunID),
			attribute.Int64("candidate.operations", data.Operations),
			attribute.Float64("candidate.cpu_seconds", data.CPUTime.Seconds()),
			attribute.Float64("candidate.ops_per_second", data.OpsPerSecond),
			attribute.Bool("candidate.score_defined", data.ScoreDefined),
		)
		if data.ScoreDefined {
			span.SetAttributes(attribute.Float64("candidate.score", data.Score))
		}
		span.End()
	}

	if s.config.MetricsEnabled {
		attrSet := metric.WithAttributes(attrs...)
		s.candidateThroughput.Record(ctx, data.OpsPerSecond, attrSet)
		s.candidateCPUTime.Record(ctx, data.CPUTime.Seconds(), attrSet)
		s.candidateOperations.Add(ctx, data.Operations, attrSet)
		if data.ScoreDefined {
			s.candidateScore.Record(ctx, data.Score, attrSet)
		}
	}

	return nil
}

// RecordSuite records one evaluated run.
//
// Thread Safety: Safe for concurrent use.
func (s *OTelSink) RecordSuite(ctx context.Context, data *SuiteData) error {
	if err := s.ready(ctx, data == nil); err != nil {
		return err
	}

	attrs := withLabels(nil, data.Labels)

	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "suite.record",
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.SetAttributes(
			attribute.String("run.id", data.RunID),
			attribute.Int("suite.candidates", data.Candidates),
			attribute.Int("suite.failed", data.Failed),
			attribute.Float64("suite.elapsed_seconds", data.Elapsed.Seconds()),
			attribute.Float64("suite.budget_seconds", data.Budget.Seconds()),
			attribute.Float64("suite.total_ops_per_second", data.TotalOpsPerSecond),
			attribute.Float64("suite.max_score", data.MaxScore),
		)
		if data.Failed > 0 {
			span.SetStatus(codes.Error, "suite had failed candidates")
		}
		span.End()
	}

	if s.config.MetricsEnabled {
		attrSet := metric.WithAttributes(attrs...)
		s.suiteElapsed.Record(ctx, data.Elapsed.Seconds(), attrSet)
		s.suiteThroughput.Record(ctx, data.TotalOpsPerSecond, attrSet)
		s.suitesTotal.Add(ctx, 1, attrSet)
	}

	return nil
}

// RecordFailure records one failed candidate.
//
// Thread Safety: Safe for concurrent use.
func (s *OTelSink) RecordFailure(ctx context.Context, data *FailureData) error {
	if err := s.ready(ctx, data == nil); err != nil {
		return err
	}

	name := orUnknown(data.Name)
	attrs := withLabels([]attribute.KeyValue{
		attribute.String("candidate.name", name),
	}, data.Labels)

	if s.config.TraceEnabled {
		_, span := s.tracer.Start(ctx, "failure.record",
			trace.WithAttributes(attrs...),
			trace.WithTimestamp(data.Timestamp),
		)
		span.SetAttributes(
			attribute.String("run.id", data.RunID),
			attribute.String("error.message", data.Message),
		)
		span.SetStatus(codes.Error, data.Message)
		span.End()
	}

	if s.config.MetricsEnabled {
		s.failuresTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}

	return nil
}

// Flush is a no-op beyond argument checks; the providers' ForceFlush
// belongs to whoever owns them.
func (s *OTelSink) Flush(ctx context.Context) error {
	return s.ready(ctx, false)
}

// Close marks the sink closed. Idempotent.
func (s *OTelSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// StartSuiteSpan starts a parent span covering a whole run. Records made
// with the returned context become its children. The caller ends the span.
//
// Example:
//
//	ctx, span := sink.StartSuiteSpan(ctx, suite.RunID())
//	defer span.End()
//	report, err := suite.Evaluate(ctx)
func (s *OTelSink) StartSuiteSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.tracer.Start(ctx, "suite.run",
		trace.WithAttributes(attribute.String("run.id", runID)),
	)
}

func (s *OTelSink) ready(ctx context.Context, nilData bool) error {
	if err := checkArgs(ctx, nilData); err != nil {
		return err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSinkClosed
	}
	return nil
}

func withLabels(attrs []attribute.KeyValue, labels map[string]string) []attribute.KeyValue {
	for k, v := range labels {
		attrs = append(attrs, attribute.String("label."+k, v))
	}
	return attrs
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

var _ Sink = (*OTelSink)(nil)
