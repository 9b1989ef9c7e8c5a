// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry exports benchmark results as traces and metrics.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                         bench.Suite                              │
//	│                             │                                    │
//	│                             ▼                                    │
//	│  ┌────────────────────────────────────────────────────────────┐  │
//	│  │                      Sink Interface                        │  │
//	│  │ RecordCandidate() │ RecordSuite() │ RecordFailure()        │  │
//	│  └────────────────────────────────────────────────────────────┘  │
//	│          │                   │                   │               │
//	│          ▼                   ▼                   ▼               │
//	│   ┌────────────┐     ┌───────────────┐     ┌───────────┐         │
//	│   │ Prometheus │     │ OpenTelemetry │     │ Composite │         │
//	│   │    Sink    │     │     Sink      │     │   Sink    │         │
//	│   └─────┬──────┘     └───────┬───────┘     └───────────┘         │
//	│         ▼                    ▼                                   │
//	│   textfile / registry   stdout / OTLP                            │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	promSink, err := telemetry.NewPrometheusSink(telemetry.DefaultPrometheusConfig())
//	otelSink, err := telemetry.NewOTelSink(telemetry.DefaultOTelConfig())
//	sink, err := telemetry.NewCompositeSink(promSink, otelSink)
//
//	suite := bench.NewSuite(bench.WithSink(sink))
//
// # Thread Safety
//
// All Sink implementations are safe for concurrent use.
//
// # Metric Naming
//
// Prometheus metrics follow <namespace>_<subsystem>_<metric>_<unit>, e.g.
// cpubench_candidate_ops_per_second and cpubench_suite_runs_total.
package telemetry
