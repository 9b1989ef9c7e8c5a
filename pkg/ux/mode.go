// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// EnvMode overrides output mode detection when set.
const EnvMode = "CPUBENCH_OUTPUT"

// DefaultWidth is used when the terminal width cannot be determined.
const DefaultWidth = 80

// Mode controls how rich the CLI output is.
type Mode string

const (
	// ModeRich enables colors, icons, boxes and the spinner animation.
	ModeRich Mode = "rich"

	// ModePlain keeps icons and layout but never emits color.
	ModePlain Mode = "plain"

	// ModeMachine prints prefixed plain lines suitable for scripts and logs.
	ModeMachine Mode = "machine"
)

// ParseMode converts a flag or environment value to a Mode.
//
// Description:
//
//	Accepts the full names plus short aliases. The empty string and "auto"
//	return an empty Mode, which tells the caller to call DetectMode.
//
// Outputs:
//   - Mode: The parsed mode, or "" for auto.
//   - error: Non-nil for unrecognized values.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return "", nil
	case "rich", "full", "color":
		return ModeRich, nil
	case "plain", "minimal", "nocolor":
		return ModePlain, nil
	case "machine", "quiet", "q":
		return ModeMachine, nil
	default:
		return "", fmt.Errorf("unknown output mode %q (want rich, plain, machine or auto)", s)
	}
}

// DetectMode picks a mode for w.
//
// Description:
//
//	A valid CPUBENCH_OUTPUT value wins. Otherwise terminals get ModeRich
//	and everything else (files, pipes, buffers) gets ModeMachine.
//	NO_COLOR downgrades ModeRich to ModePlain.
func DetectMode(w io.Writer) Mode {
	if env, ok := os.LookupEnv(EnvMode); ok {
		if mode, err := ParseMode(env); err == nil && mode != "" {
			return mode
		}
	}
	if !IsTerminal(w) {
		return ModeMachine
	}
	if _, noColor := os.LookupEnv("NO_COLOR"); noColor {
		return ModePlain
	}
	return ModeRich
}

// IsTerminal reports whether w is backed by a terminal file descriptor.
func IsTerminal(w io.Writer) bool {
	fd, ok := fileDescriptor(w)
	if !ok {
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// TerminalWidth returns the column count of the terminal behind w, or
// DefaultWidth when w is not a terminal.
func TerminalWidth(w io.Writer) int {
	fd, ok := fileDescriptor(w)
	if !ok || !isatty.IsTerminal(fd) {
		return DefaultWidth
	}
	width, _, err := term.GetSize(int(fd))
	if err != nil || width <= 0 {
		return DefaultWidth
	}
	return width
}

func fileDescriptor(w io.Writer) (uintptr, bool) {
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return 0, false
	}
	return f.Fd(), true
}
