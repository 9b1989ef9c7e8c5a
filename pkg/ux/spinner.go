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
	"sync"
	"time"
)

// SpinnerType defines the animation style
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerLine
	SpinnerCompass
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:    {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerLine:    {"-", "\\", "|", "/"},
	SpinnerCompass: {"◐", "◓", "◑", "◒"},
}

// DefaultSpinnerInterval is the frame period.
const DefaultSpinnerInterval = 80 * time.Millisecond

// Spinner shows an animated progress line while a measurement runs.
//
// Description:
//
//	The animation only runs when the printer is in ModeRich and its writer
//	is a terminal. In ModeMachine, Start prints a single "PROGRESS: " line.
//	In ModePlain on a pipe or file it stays silent. Stop clears the line it
//	drew, so the report that follows starts at column zero.
//
// Thread Safety: Safe for concurrent use.
type Spinner struct {
	printer  *Printer
	message  string
	spinType SpinnerType
	interval time.Duration
	animate  bool

	mu         sync.Mutex
	running    bool
	stop       chan struct{}
	done       chan struct{}
	frameIndex int
}

// NewSpinner creates a spinner that writes through p.
func NewSpinner(p *Printer, message string) *Spinner {
	return &Spinner{
		printer:  p,
		message:  message,
		spinType: SpinnerDots,
		interval: DefaultSpinnerInterval,
		animate:  p.Mode() == ModeRich && IsTerminal(p.Writer()),
	}
}

// WithType sets the spinner animation type
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	s.spinType = t
	return s
}

// WithInterval sets the frame period. Non-positive values are ignored.
func (s *Spinner) WithInterval(d time.Duration) *Spinner {
	if d > 0 {
		s.interval = d
	}
	return s
}

// Animated reports whether Start will draw frames.
func (s *Spinner) Animated() bool { return s.animate }

// Start begins the spinner animation. Calling Start on a running spinner
// does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	message := s.message
	if !s.animate {
		s.mu.Unlock()
		if s.printer.Mode() == ModeMachine {
			s.printer.println("PROGRESS: " + message)
		}
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go s.loop(stop, done)
}

func (s *Spinner) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	frames := spinnerFrames[s.spinType]
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			s.write("\r\033[K")
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := frames[s.frameIndex]
			s.frameIndex = (s.frameIndex + 1) % len(frames)
			message := s.message
			s.mu.Unlock()
			s.write(fmt.Sprintf("\r%s %s", s.printer.styles.Highlight.Render(frame), message))
		}
	}
}

func (s *Spinner) write(text string) {
	s.printer.mu.Lock()
	defer s.printer.mu.Unlock()
	fmt.Fprint(s.printer.w, text)
}

// Stop halts the animation and clears the line. It waits for the
// animation goroutine to exit.
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// UpdateMessage changes the spinner message while running
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StopWithSuccess stops and prints a success message
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	s.printer.Success(message)
}
