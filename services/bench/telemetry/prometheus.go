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
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ErrInvalidPrometheusConfig is returned for a nil or incomplete config.
var ErrInvalidPrometheusConfig = errors.New("invalid prometheus configuration")

// PrometheusConfig configures the Prometheus sink.
type PrometheusConfig struct {
	// Namespace prefixes every metric name. Required.
	Namespace string

	// ConstLabels are attached to every series.
	ConstLabels prometheus.Labels

	// Registry receives the collectors. If nil, a private registry is
	// created so several sinks can coexist in one process.
	Registry *prometheus.Registry
}

// DefaultPrometheusConfig returns the "cpubench" namespace with a private
// registry.
func DefaultPrometheusConfig() *PrometheusConfig {
	return &PrometheusConfig{Namespace: "cpubench"}
}

// PrometheusSink keeps the latest run's results as Prometheus series.
//
// Description:
//
//	Per-candidate gauges hold the most recent throughput, score and CPU
//	time; counters accumulate operations, runs and failures. The CLI
//	exports the registry with WriteTextfile for the node-exporter
//	textfile collector.
//
// Thread Safety: Safe for concurrent use.
type PrometheusSink struct {
	registry *prometheus.Registry

	opsPerSecond  *prometheus.GaugeVec
	score         *prometheus.GaugeVec
	cpuSeconds    *prometheus.GaugeVec
	operations    *prometheus.CounterVec
	failures      *prometheus.CounterVec
	suiteElapsed  prometheus.Histogram
	suiteTotal    prometheus.Gauge
	suiteRuns     prometheus.Counter
	suiteFailures prometheus.Gauge

	mu     sync.RWMutex
	closed bool
}

// NewPrometheusSink registers the sink's collectors.
//
// Outputs:
//   - error: ErrInvalidPrometheusConfig, or a registration conflict when
//     the given Registry already holds collectors with the same names.
func NewPrometheusSink(config *PrometheusConfig) (sink *PrometheusSink, err error) {
	if config == nil || config.Namespace == "" {
		return nil, ErrInvalidPrometheusConfig
	}

	reg := config.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	// promauto panics on duplicate registration.
	defer func() {
		if r := recover(); r != nil {
			sink = nil
			err = fmt.Errorf("register prometheus collectors: %v", r)
		}
	}()

	factory := promauto.With(reg)
	ns := config.Namespace
	cl := config.ConstLabels

	sink = &PrometheusSink{
		registry: reg,
		opsPerSecond: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "candidate",
			Name:        "ops_per_second",
			Help:        "Candidate throughput in operations per CPU second",
			ConstLabels: cl,
		}, []string{"candidate"}),
		score: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "candidate",
			Name:        "score",
			Help:        "Normalized candidate score; absent when undefined",
			ConstLabels: cl,
		}, []string{"candidate"}),
		cpuSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "candidate",
			Name:        "cpu_seconds",
			Help:        "CPU time consumed by the candidate's thread",
			ConstLabels: cl,
		}, []string{"candidate"}),
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "candidate",
			Name:        "operations_total",
			Help:        "Operations completed by the candidate",
			ConstLabels: cl,
		}, []string{"candidate"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "candidate",
			Name:        "failures_total",
			Help:        "Runs in which the candidate's operation failed",
			ConstLabels: cl,
		}, []string{"candidate"}),
		suiteElapsed: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   "suite",
			Name:        "elapsed_seconds",
			Help:        "Wall-clock duration of suite runs",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
			ConstLabels: cl,
		}),
		suiteTotal: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "suite",
			Name:        "total_ops_per_second",
			Help:        "Summed throughput of the last run's valid candidates",
			ConstLabels: cl,
		}),
		suiteRuns: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   "suite",
			Name:        "runs_total",
			Help:        "Suite runs evaluated",
			ConstLabels: cl,
		}),
		suiteFailures: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   "suite",
			Name:        "failed_candidates",
			Help:        "Failed candidates in the last run",
			ConstLabels: cl,
		}),
	}
	return sink, nil
}

// Registry returns the registry holding the sink's collectors.
func (s *PrometheusSink) Registry() *prometheus.Registry {
	return s.registry
}

func (s *PrometheusSink) RecordCandidate(ctx context.Context, data *CandidateData) error {
	if err := s.ready(ctx, data == nil); err != nil {
		return err
	}
	name := orUnknown(data.Name)
	s.opsPerSecond.WithLabelValues(name).Set(data.OpsPerSecond)
	s.cpuSeconds.WithLabelValues(name).Set(data.CPUTime.Seconds())
	s.operations.WithLabelValues(name).Add(float64(data.Operations))
	if data.ScoreDefined {
		s.score.WithLabelValues(name).Set(data.Score)
	} else {
		s.score.DeleteLabelValues(name)
	}
	return nil
}

func (s *PrometheusSink) RecordSuite(ctx context.Context, data *SuiteData) error {
	if err := s.ready(ctx, data == nil); err != nil {
		return err
	}
	s.suiteElapsed.Observe(data.Elapsed.Seconds())
	s.suiteTotal.Set(data.TotalOpsPerSecond)
	s.suiteFailures.Set(float64(data.Failed))
	s.suiteRuns.Inc()
	return nil
}

func (s *PrometheusSink) RecordFailure(ctx context.Context, data *FailureData) error {
	if err := s.ready(ctx, data == nil); err != nil {
		return err
	}
	s.failures.WithLabelValues(orUnknown(data.Name)).Inc()
	return nil
}

// Flush is a no-op: Prometheus is pull-based.
func (s *PrometheusSink) Flush(ctx context.Context) error {
	return s.ready(ctx, false)
}

// Close marks the sink closed. Registered series stay readable.
func (s *PrometheusSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// WriteTextfile writes the registry in text exposition format to path,
// atomically via a temporary file, for the node-exporter textfile
// collector.
func (s *PrometheusSink) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, s.registry); err != nil {
		return fmt.Errorf("write prometheus textfile %s: %w", path, err)
	}
	return nil
}

func (s *PrometheusSink) ready(ctx context.Context, nilData bool) error {
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

var _ Sink = (*PrometheusSink)(nil)
