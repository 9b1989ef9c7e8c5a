// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the cpubench CLI.
package ux

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Palette
var (
	ColorAccent  = lipgloss.Color("#20B9B4")
	ColorBright  = lipgloss.Color("#2CD7C7")
	ColorBorder  = lipgloss.Color("#16858E")
	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#5C7A84")
)

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Styles holds the lipgloss styles bound to one renderer.
type Styles struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
	Box       lipgloss.Style
}

// NewStyles builds the palette against r. A renderer whose profile is
// ASCII produces uncolored output from the same styles.
func NewStyles(r *lipgloss.Renderer) Styles {
	return Styles{
		Title:     r.NewStyle().Bold(true).Foreground(ColorBright),
		Bold:      r.NewStyle().Bold(true),
		Muted:     r.NewStyle().Foreground(ColorMuted),
		Success:   r.NewStyle().Foreground(ColorSuccess),
		Warning:   r.NewStyle().Foreground(ColorWarning),
		Error:     r.NewStyle().Foreground(ColorError),
		Highlight: r.NewStyle().Foreground(ColorBright).Bold(true),
		Box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1),
	}
}

// -----------------------------------------------------------------------------
// Printer
// -----------------------------------------------------------------------------

// Printer writes styled status lines to one writer.
//
// Description:
//
//	Each mode has its own rendering. ModeMachine emits "OK: ", "WARN: " and
//	"ERROR: " prefixed lines and drops decoration. ModePlain keeps icons but
//	forces the renderer to ASCII. ModeRich lets lipgloss detect the color
//	profile of the writer.
//
// Thread Safety: Safe for concurrent use; each call writes one line
// atomically with respect to other Printer calls.
type Printer struct {
	mu       sync.Mutex
	w        io.Writer
	mode     Mode
	renderer *lipgloss.Renderer
	styles   Styles
}

// NewPrinter creates a printer for w. An empty mode is resolved with
// DetectMode.
func NewPrinter(w io.Writer, mode Mode) *Printer {
	if mode == "" {
		mode = DetectMode(w)
	}
	r := lipgloss.NewRenderer(w)
	if mode != ModeRich {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{
		w:        w,
		mode:     mode,
		renderer: r,
		styles:   NewStyles(r),
	}
}

// Mode returns the resolved output mode.
func (p *Printer) Mode() Mode { return p.mode }

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Renderer returns the lipgloss renderer bound to the writer, for callers
// that build their own tables.
func (p *Printer) Renderer() *lipgloss.Renderer { return p.renderer }

// Styles returns the printer's styles.
func (p *Printer) Styles() Styles { return p.styles }

// Title prints a heading. Machine mode omits it.
func (p *Printer) Title(text string) {
	if p.mode == ModeMachine {
		return
	}
	p.println(p.styles.Title.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status("OK", IconSuccess, p.styles.Success, text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status("WARN", IconWarning, p.styles.Warning, text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status("ERROR", IconError, p.styles.Error, text)
}

// Info prints an informational line.
func (p *Printer) Info(text string) {
	if p.mode == ModeMachine {
		p.println(text)
		return
	}
	p.println(p.styles.Muted.Render("│") + " " + text)
}

// Muted prints secondary text. Machine mode omits it.
func (p *Printer) Muted(text string) {
	if p.mode == ModeMachine {
		return
	}
	p.println(p.styles.Muted.Render(text))
}

// Box prints content in a rounded box no wider than the terminal.
func (p *Printer) Box(title, content string) {
	if p.mode == ModeMachine {
		p.println(fmt.Sprintf("%s: %s", title, content))
		return
	}
	width := min(TerminalWidth(p.w), 72) - 2
	p.println(p.styles.Box.Width(width).Render(p.styles.Title.Render(title) + "\n" + content))
}

// Bullet prints an indented list item.
func (p *Printer) Bullet(text string) {
	if p.mode == ModeMachine {
		p.println(text)
		return
	}
	p.println("  " + string(IconBullet) + " " + text)
}

func (p *Printer) status(prefix string, icon Icon, style lipgloss.Style, text string) {
	switch p.mode {
	case ModeMachine:
		p.println(prefix + ": " + text)
	case ModePlain:
		p.println(string(icon) + " " + text)
	default:
		p.println(style.Render(string(icon)) + " " + style.Render(text))
	}
}

func (p *Printer) println(line string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}
