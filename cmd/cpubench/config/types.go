// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config defines the YAML suite file read by `cpubench run`.
package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/mod/semver"
)

// CurrentVersion is written by `cpubench init`. Files must share its major
// version.
const CurrentVersion = "v1.0.0"

// =============================================================================
// Shared Validator Instance
// =============================================================================

// suiteValidate is the validator instance for suite files.
// Initialized in init() with custom validators.
var suiteValidate *validator.Validate

func init() {
	suiteValidate = validator.New()
	_ = suiteValidate.RegisterValidation("suiteversion", validateSuiteVersion)
}

// validateSuiteVersion accepts semantic versions with major version 1. The
// leading "v" is optional.
func validateSuiteVersion(fl validator.FieldLevel) bool {
	v := NormalizeVersion(fl.Field().String())
	return semver.IsValid(v) && semver.Major(v) == semver.Major(CurrentVersion)
}

// NormalizeVersion adds the "v" prefix semver expects.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v != "" && !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// =============================================================================
// Suite File
// =============================================================================

// SuiteFile is the on-disk description of one benchmark run.
//
// # Fields
//
//   - Version: Required. Semantic version of the file format, major 1.
//   - MaxScore: Scale the scores are normalized to. Default 10.
//   - Budget: CPU seconds per candidate. Default 10.
//   - Output: "table" or "json".
//   - PartialResults: Report surviving candidates when some fail.
//   - Timeout: Wall-clock limit on the whole evaluation; 0 disables it.
//   - Labels: Attached to the report and every telemetry record.
//   - Candidates: Workloads to compare. Names must be unique.
//
// # Example
//
//	version: "1.0.0"
//	budget: 2
//	candidates:
//	  - name: plus
//	    workload: concat-plus
//	    params: {n: 200}
type SuiteFile struct {
	Version        string            `yaml:"version" validate:"required,suiteversion"`
	MaxScore       int               `yaml:"max_score" validate:"gte=1,lte=1000000"`
	Budget         int               `yaml:"budget" validate:"gte=0,lte=86400"`
	Output         string            `yaml:"output" validate:"oneof=table json"`
	PartialResults bool              `yaml:"partial_results"`
	Timeout        time.Duration     `yaml:"timeout" validate:"gte=0"`
	Labels         map[string]string `yaml:"labels,omitempty" validate:"dive,keys,required,endkeys"`
	Log            LogConfig         `yaml:"log"`
	Telemetry      TelemetryConfig   `yaml:"telemetry"`
	Candidates     []CandidateSpec   `yaml:"candidates" validate:"unique=Name,dive"`
}

// LogConfig configures pkg/logging.
type LogConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	Dir   string `yaml:"dir,omitempty"`
	JSON  bool   `yaml:"json"`
}

// TelemetryConfig selects telemetry exporters.
type TelemetryConfig struct {
	// Traces is "none", "stdout" or "otlp".
	Traces string `yaml:"traces" validate:"omitempty,oneof=none stdout otlp"`

	// Metrics is "none" or "stdout".
	Metrics string `yaml:"metrics" validate:"omitempty,oneof=none stdout"`

	// OTLPEndpoint is host:port of an OTLP gRPC collector.
	OTLPEndpoint string `yaml:"otlp_endpoint,omitempty" validate:"required_if=Traces otlp"`

	// OTLPInsecure disables TLS towards the collector.
	OTLPInsecure bool `yaml:"otlp_insecure,omitempty"`

	// PrometheusTextfile is written after every run when set.
	PrometheusTextfile string `yaml:"prometheus_textfile,omitempty"`
}

// CandidateSpec names a catalog workload and its parameter overrides.
type CandidateSpec struct {
	Name     string         `yaml:"name" validate:"required"`
	Workload string         `yaml:"workload" validate:"required"`
	Params   map[string]int `yaml:"params,omitempty"`
}

// DefaultSuiteFile returns a valid file with no candidates.
func DefaultSuiteFile() SuiteFile {
	return SuiteFile{
		Version:  CurrentVersion,
		MaxScore: 10,
		Budget:   10,
		Output:   "table",
		Log:      LogConfig{Level: "info"},
		Telemetry: TelemetryConfig{
			Traces:  "none",
			Metrics: "none",
		},
	}
}

// ExampleSuiteFile returns the file `cpubench init` writes: the string
// building workloads side by side.
func ExampleSuiteFile() SuiteFile {
	s := DefaultSuiteFile()
	s.Budget = 2
	s.Candidates = []CandidateSpec{
		{Name: "concat-plus", Workload: "concat-plus", Params: map[string]int{"n": 100}},
		{Name: "concat-builder", Workload: "concat-builder", Params: map[string]int{"n": 100}},
		{Name: "sprintf", Workload: "sprintf"},
		{Name: "strconv", Workload: "strconv"},
	}
	return s
}

// Validate checks the file against its tags.
func (s *SuiteFile) Validate() error {
	return suiteValidate.Struct(s)
}
