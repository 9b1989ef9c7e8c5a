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
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// =============================================================================
// Non-animated modes
// =============================================================================

func TestSpinner_MachineModePrintsProgressOnce(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(NewPrinter(&buf, ModeMachine), "measuring")
	assert.False(t, spin.Animated())

	spin.Start()
	spin.Start()
	spin.Stop()
	spin.Stop()

	assert.Equal(t, "PROGRESS: measuring\n", buf.String())
}

func TestSpinner_PlainModeOnPipeIsSilent(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(NewPrinter(&buf, ModePlain), "measuring")
	spin.Start()
	spin.Stop()
	assert.Empty(t, buf.String())
}

func TestSpinner_RichModeOnBufferDoesNotAnimate(t *testing.T) {
	spin := NewSpinner(NewPrinter(&bytes.Buffer{}, ModeRich), "measuring")
	assert.False(t, spin.Animated(), "only terminals animate")
}

// =============================================================================
// Animation
// =============================================================================

func animatedSpinner(buf *bytes.Buffer, message string) *Spinner {
	spin := NewSpinner(NewPrinter(buf, ModeRich), message).WithInterval(time.Millisecond)
	spin.animate = true
	return spin
}

func TestSpinner_AnimatesAndClears(t *testing.T) {
	var buf bytes.Buffer
	spin := animatedSpinner(&buf, "measuring").WithType(SpinnerLine)

	spin.Start()
	time.Sleep(20 * time.Millisecond)
	spin.Stop()

	out := buf.String()
	assert.Contains(t, out, "measuring")
	assert.Contains(t, out, "\r- measuring")
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte("\r\033[K")), "Stop clears the line")
}

func TestSpinner_UpdateMessage(t *testing.T) {
	var buf bytes.Buffer
	spin := animatedSpinner(&buf, "first")

	spin.Start()
	spin.UpdateMessage("second")
	time.Sleep(20 * time.Millisecond)
	spin.Stop()

	assert.Contains(t, buf.String(), "second")
}

func TestSpinner_Restart(t *testing.T) {
	var buf bytes.Buffer
	spin := animatedSpinner(&buf, "again")

	spin.Start()
	spin.Stop()
	spin.Start()
	time.Sleep(10 * time.Millisecond)
	spin.Stop()
}

func TestSpinner_WithIntervalIgnoresNonPositive(t *testing.T) {
	spin := NewSpinner(NewPrinter(&bytes.Buffer{}, ModeMachine), "x").WithInterval(0)
	assert.Equal(t, DefaultSpinnerInterval, spin.interval)
}

// =============================================================================
// Completion
// =============================================================================

func TestSpinner_StopWithSuccess(t *testing.T) {
	var buf bytes.Buffer
	spin := NewSpinner(NewPrinter(&buf, ModeMachine), "evaluate")
	spin.Start()
	spin.StopWithSuccess("measured 2 candidates")
	assert.Equal(t, "PROGRESS: evaluate\nOK: measured 2 candidates\n", buf.String())
}
