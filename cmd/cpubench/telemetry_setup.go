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
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"

	"github.com/AleutianAI/cpubench/cmd/cpubench/config"
	"github.com/AleutianAI/cpubench/services/bench/telemetry"
)

// errUnknownExporter is returned for exporter names the CLI does not know.
var errUnknownExporter = errors.New("unknown telemetry exporter")

// telemetryStack owns the providers and sinks for one CLI run.
type telemetryStack struct {
	// Sink receives suite records. Never nil.
	Sink telemetry.Sink

	otel       *telemetry.OTelSink
	prometheus *telemetry.PrometheusSink
	textfile   string
	shutdowns  []func(context.Context) error
}

// setupTelemetry builds the exporters selected by cfg.
//
// Description:
//
//	Traces go to stdout (pretty JSON on w) or an OTLP gRPC collector.
//	Metrics go to stdout through a periodic reader that flushes on
//	shutdown. A Prometheus textfile path adds a PrometheusSink. With
//	nothing selected the stack holds a NoOpSink.
//
// Outputs:
//   - *telemetryStack: Call Shutdown when the run is over.
//   - error: Exporter construction failures.
func setupTelemetry(ctx context.Context, cfg config.TelemetryConfig, w io.Writer) (*telemetryStack, error) {
	stack := &telemetryStack{textfile: cfg.PrometheusTextfile}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", "cpubench"),
		attribute.String("service.version", Version),
	)

	var tp *sdktrace.TracerProvider
	if cfg.Traces != "" && cfg.Traces != "none" {
		exporter, err := newSpanExporter(ctx, cfg, w)
		if err != nil {
			return nil, fmt.Errorf("init tracer: %w", err)
		}
		tp = sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exporter),
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		stack.shutdowns = append(stack.shutdowns, tp.Shutdown)
	}

	var mp *sdkmetric.MeterProvider
	if cfg.Metrics != "" && cfg.Metrics != "none" {
		if cfg.Metrics != "stdout" {
			return nil, fmt.Errorf("init meter: %w: %s", errUnknownExporter, cfg.Metrics)
		}
		exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("init meter: %w", err)
		}
		mp = sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		)
		stack.shutdowns = append(stack.shutdowns, mp.Shutdown)
	}

	var sinks []telemetry.Sink
	if tp != nil || mp != nil {
		otelCfg := telemetry.DefaultOTelConfig()
		otelCfg.ServiceVersion = Version
		otelCfg.TraceEnabled = tp != nil
		otelCfg.MetricsEnabled = mp != nil
		if tp != nil {
			otelCfg.TracerProvider = tp
		}
		if mp != nil {
			otelCfg.MeterProvider = mp
		}
		sink, err := telemetry.NewOTelSink(otelCfg)
		if err != nil {
			return nil, errors.Join(err, stack.shutdown(ctx))
		}
		stack.otel = sink
		sinks = append(sinks, sink)
	}

	if cfg.PrometheusTextfile != "" {
		sink, err := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
		if err != nil {
			return nil, errors.Join(err, stack.shutdown(ctx))
		}
		stack.prometheus = sink
		sinks = append(sinks, sink)
	}

	if len(sinks) == 0 {
		stack.Sink = telemetry.NewNoOpSink()
		return stack, nil
	}
	composite, err := telemetry.NewCompositeSink(sinks...)
	if err != nil {
		return nil, errors.Join(err, stack.shutdown(ctx))
	}
	stack.Sink = composite
	return stack, nil
}

func newSpanExporter(ctx context.Context, cfg config.TelemetryConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	switch cfg.Traces {
	case "otlp":
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithDialOption(grpc.WithUserAgent("cpubench/" + Version)),
		}
		if cfg.OTLPInsecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		return otlptracegrpc.New(ctx, opts...)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("%w: %s", errUnknownExporter, cfg.Traces)
	}
}

// StartRunSpan opens the span that parents every record of the run. It is
// a no-op span when tracing is off.
func (s *telemetryStack) StartRunSpan(ctx context.Context, runID string) (context.Context, trace.Span) {
	if s.otel == nil {
		return noop.NewTracerProvider().Tracer("").Start(ctx, "suite.run")
	}
	return s.otel.StartSuiteSpan(ctx, runID)
}

// Shutdown writes the Prometheus textfile, closes the sinks and flushes the
// exporters. Every step runs even if an earlier one fails.
func (s *telemetryStack) Shutdown(ctx context.Context) error {
	var errs []error
	if s.prometheus != nil && s.textfile != "" {
		if err := s.prometheus.WriteTextfile(s.textfile); err != nil {
			errs = append(errs, fmt.Errorf("write prometheus textfile: %w", err))
		}
	}
	if err := s.Sink.Flush(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.Sink.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := s.shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (s *telemetryStack) shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range s.shutdowns {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	s.shutdowns = nil
	return errors.Join(errs...)
}
