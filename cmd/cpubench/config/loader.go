// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalidSuite is returned when a file parses but fails validation.
	ErrInvalidSuite = errors.New("invalid suite file")

	// ErrExists is returned by WriteFile when it would overwrite a file.
	ErrExists = errors.New("suite file already exists")
)

// Load reads and validates the suite file at path.
//
// Description:
//
//	Fields missing from the file keep their DefaultSuiteFile values.
//	Unknown keys are rejected so typos do not silently fall back to a
//	default.
//
// Outputs:
//   - *SuiteFile: The validated file.
//   - error: Read, parse, or ErrInvalidSuite errors.
func Load(path string) (*SuiteFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes and validates YAML suite data.
func Parse(data []byte) (*SuiteFile, error) {
	s := DefaultSuiteFile()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse suite file: %w", err)
	}
	s.Version = NormalizeVersion(s.Version)

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidSuite, describe(err))
	}
	return &s, nil
}

// WriteFile marshals s to path, creating parent directories. It refuses
// to overwrite an existing file unless force is set.
func WriteFile(path string, s SuiteFile, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%w: %s", ErrExists, path)
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create the suite directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal suite file: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// describe flattens validator errors into "Field: rule" pairs.
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "SuiteFile.")
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", field, fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
