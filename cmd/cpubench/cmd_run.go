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
	"maps"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/cpubench/cmd/cpubench/config"
	"github.com/AleutianAI/cpubench/pkg/logging"
	"github.com/AleutianAI/cpubench/pkg/ux"
	"github.com/AleutianAI/cpubench/services/bench"
	"github.com/AleutianAI/cpubench/services/bench/catalog"
)

// shutdownTimeout bounds exporter flushing after the run.
const shutdownTimeout = 10 * time.Second

// runOptions holds the flags of `cpubench run`. Flags that were set on the
// command line override the suite file.
type runOptions struct {
	configPath   string
	budget       int
	maxScore     int
	format       string
	partial      bool
	timeout      time.Duration
	candidates   []string
	labels       map[string]string
	traces       string
	metrics      string
	otlpEndpoint string
	otlpInsecure bool
	promTextfile string
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Measure and score candidate workloads",
		Long: `Measure every candidate for the same CPU-time budget and print each
candidate's score out of the maximum, its operation count and the elapsed
wall-clock time.

Candidates come from the suite file (--config) and from repeated
--candidate flags of the form [name=]workload[:key=value,...].`,
		Example: `  cpubench run --budget 2 --candidate concat-plus --candidate concat-builder
  cpubench run --config cpubench.yaml --format json
  cpubench run --candidate fast=sort-ints:n=100 --candidate slow=sort-ints:n=10000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			suiteFile, err := resolveSuiteFile(cmd, o)
			if err != nil {
				return err
			}
			return runSuite(cmd, g, suiteFile)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&o.configPath, "config", "c", "", "Suite file (YAML)")
	f.IntVarP(&o.budget, "budget", "b", 10, "CPU seconds per candidate")
	f.IntVarP(&o.maxScore, "max-score", "m", bench.DefaultMaxScore, "Scale the scores are normalized to")
	f.StringVarP(&o.format, "format", "f", "table", "Report format: table or json")
	f.BoolVar(&o.partial, "partial", false, "Report surviving candidates when some fail")
	f.DurationVar(&o.timeout, "timeout", 0, "Wall-clock limit on the evaluation (0 disables)")
	f.StringArrayVar(&o.candidates, "candidate", nil, "Candidate as [name=]workload[:key=value,...] (repeatable)")
	f.StringToStringVar(&o.labels, "label", nil, "Label attached to the report and telemetry (key=value, repeatable)")
	f.StringVar(&o.traces, "traces", "none", "Trace exporter: none, stdout or otlp")
	f.StringVar(&o.metrics, "metrics", "none", "Metric exporter: none or stdout")
	f.StringVar(&o.otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP gRPC collector for --traces otlp")
	f.BoolVar(&o.otlpInsecure, "otlp-insecure", false, "Disable TLS towards the OTLP collector")
	f.StringVar(&o.promTextfile, "prom-textfile", "", "Write Prometheus metrics to this file after the run")
	return cmd
}

// resolveSuiteFile loads --config (or the defaults) and applies the flags
// the user set explicitly.
func resolveSuiteFile(cmd *cobra.Command, o *runOptions) (*config.SuiteFile, error) {
	var s *config.SuiteFile
	if o.configPath != "" {
		loaded, err := config.Load(o.configPath)
		if err != nil {
			return nil, err
		}
		s = loaded
	} else {
		def := config.DefaultSuiteFile()
		s = &def
	}

	changed := cmd.Flags().Changed
	if changed("budget") {
		s.Budget = o.budget
	}
	if changed("max-score") {
		s.MaxScore = o.maxScore
	}
	if changed("format") {
		s.Output = o.format
	}
	if changed("partial") {
		s.PartialResults = o.partial
	}
	if changed("timeout") {
		s.Timeout = o.timeout
	}
	if changed("traces") {
		s.Telemetry.Traces = o.traces
	}
	if changed("metrics") {
		s.Telemetry.Metrics = o.metrics
	}
	if changed("otlp-endpoint") || (changed("traces") && o.traces == "otlp" && s.Telemetry.OTLPEndpoint == "") {
		s.Telemetry.OTLPEndpoint = o.otlpEndpoint
	}
	if changed("otlp-insecure") {
		s.Telemetry.OTLPInsecure = o.otlpInsecure
	}
	if changed("prom-textfile") {
		s.Telemetry.PrometheusTextfile = o.promTextfile
	}
	if len(o.labels) > 0 {
		if s.Labels == nil {
			s.Labels = make(map[string]string, len(o.labels))
		}
		maps.Copy(s.Labels, o.labels)
	}
	for _, raw := range o.candidates {
		c, err := parseCandidate(raw)
		if err != nil {
			return nil, err
		}
		s.Candidates = append(s.Candidates, c)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidSuite, err)
	}
	if len(s.Candidates) == 0 {
		return nil, fmt.Errorf("%w: pass --candidate or a suite file with candidates (see `cpubench list`)", bench.ErrNoCandidates)
	}
	return s, nil
}

// newLogger merges the persistent log flags over the suite file's log
// section.
func newLogger(cmd *cobra.Command, g *globalOptions, s *config.SuiteFile) (*logging.Logger, error) {
	levelName := s.Log.Level
	if g.logLevel != "" {
		levelName = g.logLevel
	}
	level, err := logging.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}
	dir := s.Log.Dir
	if g.logDir != "" {
		dir = g.logDir
	}
	return logging.New(logging.Config{
		Level:   level,
		Dir:     dir,
		Service: "cpubench",
		JSON:    g.logJSON || s.Log.JSON,
		Writer:  cmd.ErrOrStderr(),
	}), nil
}

// runSuite measures the candidates of s and writes the report to stdout.
func runSuite(cmd *cobra.Command, g *globalOptions, s *config.SuiteFile) (err error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, err := newLogger(cmd, g, s)
	if err != nil {
		return err
	}
	defer logger.Close()

	stack, err := setupTelemetry(ctx, s.Telemetry, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if serr := stack.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("telemetry shutdown failed", "error", serr)
		}
	}()

	opts := []bench.SuiteOption{
		bench.WithMaxScore(s.MaxScore),
		bench.WithLogger(logger),
		bench.WithSink(stack.Sink),
		bench.WithLabels(s.Labels),
	}
	if s.PartialResults {
		opts = append(opts, bench.WithPartialResults())
	}
	suite := bench.NewSuite(opts...)

	if err := addCandidates(suite, catalog.Builtin(), s.Candidates, s.Budget); err != nil {
		return err
	}

	reporter, err := newReporter(cmd, s.Output)
	if err != nil {
		return err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	ctx, span := stack.StartRunSpan(ctx, suite.RunID())
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := suite.Run(); err != nil {
		return err
	}

	spin := ux.NewSpinner(g.printer(cmd),
		fmt.Sprintf("measuring %d candidates for %ds of CPU time each", suite.Len(), s.Budget))
	spin.Start()
	report, err := suite.Evaluate(ctx)
	if err != nil {
		spin.Stop()
		if errors.Is(err, bench.ErrInterrupted) {
			logger.Warn("run interrupted; candidates still measuring are abandoned", "run_id", suite.RunID())
		}
		return err
	}

	spin.StopWithSuccess(fmt.Sprintf("measured %d candidates in %s", len(report.Candidates), bench.FormatDuration(report.Elapsed)))

	if err := reporter.Report(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if report.Failed() > 0 {
		return fmt.Errorf("%w: %d of %d candidates failed", bench.ErrCandidateFailed, report.Failed(), len(report.Candidates))
	}
	return nil
}

func newReporter(cmd *cobra.Command, format string) (bench.Reporter, error) {
	switch format {
	case "table", "":
		return bench.NewConsoleReporter(cmd.OutOrStdout()), nil
	case "json":
		return bench.NewJSONReporter(cmd.OutOrStdout()), nil
	default:
		return nil, fmt.Errorf("unknown format %q (want table or json)", format)
	}
}
