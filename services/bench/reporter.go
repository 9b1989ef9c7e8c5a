// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package bench

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// ErrNilReport is returned when a reporter is given no report.
var ErrNilReport = errors.New("report must not be nil")

// Reporter renders a Report.
type Reporter interface {
	Report(report *Report) error
}

// Precision returns the decimals used for a max score: one when
// maxScore >= 10, two otherwise.
func Precision(maxScore int) int {
	if maxScore >= 10 {
		return 1
	}
	return 2
}

// -----------------------------------------------------------------------------
// Console Reporter
// -----------------------------------------------------------------------------

// ConsoleReporter writes a "Time taken" line and a score table.
//
// Description:
//
//	Columns are Candidate, Score (/max) and Operations (integer ops per
//	CPU second). Elapsed time and scores use Precision(max) decimals.
//	Undefined scores print as "n/a" and failed rows as "failed". Colors
//	are emitted only when the writer is a terminal.
//
// Thread Safety: Not safe for concurrent use on the same writer.
type ConsoleReporter struct {
	w        io.Writer
	renderer *lipgloss.Renderer
}

// NewConsoleReporter creates a console reporter writing to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w, renderer: lipgloss.NewRenderer(w)}
}

// Report writes report to the reporter's writer.
func (r *ConsoleReporter) Report(report *Report) error {
	if report == nil {
		return ErrNilReport
	}
	prec := Precision(report.MaxScore)

	header := r.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6"))
	cell := r.renderer.NewStyle().Padding(0, 1)
	failed := cell.Foreground(lipgloss.Color("#EF4444"))
	muted := r.renderer.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(muted).
		Headers("Candidate", fmt.Sprintf("Score (/%d)", report.MaxScore), "Operations")

	for _, c := range report.Candidates {
		t.Row(c.Name, formatScore(c, prec), formatOperations(c))
	}

	t.StyleFunc(func(row, col int) lipgloss.Style {
		switch {
		case row == table.HeaderRow:
			return header.Padding(0, 1)
		case row >= 0 && row < len(report.Candidates) && report.Candidates[row].Failed:
			return failed
		case col > 0:
			return cell.Align(lipgloss.Right)
		default:
			return cell
		}
	})

	if _, err := fmt.Fprintf(r.w, "Time taken: %s s\n", strconv.FormatFloat(report.Elapsed.Seconds(), 'f', prec, 64)); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(r.w, t.String()); err != nil {
		return err
	}

	if !report.ScoresDefined {
		if _, err := fmt.Fprintln(r.w, muted.Render("Scores undefined: total throughput is zero.")); err != nil {
			return err
		}
	}
	for _, c := range report.Candidates {
		if !c.Failed {
			continue
		}
		if _, err := fmt.Fprintf(r.w, "%s %s\n", failed.Render("FAIL: "+c.Name), c.Error); err != nil {
			return err
		}
	}
	return nil
}

func formatScore(c CandidateReport, prec int) string {
	switch {
	case c.Failed:
		return "failed"
	case !c.ScoreDefined:
		return "n/a"
	default:
		return strconv.FormatFloat(c.Score, 'f', prec, 64)
	}
}

func formatOperations(c CandidateReport) string {
	if c.Failed {
		return "-"
	}
	return strconv.FormatInt(int64(math.Floor(c.OpsPerSecond)), 10)
}

// -----------------------------------------------------------------------------
// JSON Reporter
// -----------------------------------------------------------------------------

// JSONReporter writes a Report as indented JSON. Undefined scores are null.
type JSONReporter struct {
	w io.Writer
}

// NewJSONReporter creates a JSON reporter writing to w.
func NewJSONReporter(w io.Writer) *JSONReporter {
	return &JSONReporter{w: w}
}

type jsonReport struct {
	RunID             string            `json:"run_id"`
	ElapsedSeconds    float64           `json:"elapsed_seconds"`
	BudgetSeconds     float64           `json:"budget_seconds"`
	MaxScore          int               `json:"max_score"`
	TotalOpsPerSecond float64           `json:"total_ops_per_second"`
	ScoresDefined     bool              `json:"scores_defined"`
	Labels            map[string]string `json:"labels,omitempty"`
	Candidates        []jsonCandidate   `json:"candidates"`
}

type jsonCandidate struct {
	Name         string   `json:"name"`
	Score        *float64 `json:"score"`
	OpsPerSecond float64  `json:"ops_per_second"`
	Operations   int64    `json:"operations"`
	CPUSeconds   float64  `json:"cpu_seconds"`
	CPUTime      string   `json:"cpu_time"`
	Failed       bool     `json:"failed,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// Report writes report as one JSON document.
func (r *JSONReporter) Report(report *Report) error {
	if report == nil {
		return ErrNilReport
	}

	out := jsonReport{
		RunID:             report.RunID,
		ElapsedSeconds:    report.Elapsed.Seconds(),
		BudgetSeconds:     report.Budget.Seconds(),
		MaxScore:          report.MaxScore,
		TotalOpsPerSecond: report.TotalOpsPerSecond,
		ScoresDefined:     report.ScoresDefined,
		Labels:            report.Labels,
		Candidates:        make([]jsonCandidate, len(report.Candidates)),
	}
	for i, c := range report.Candidates {
		jc := jsonCandidate{
			Name:         c.Name,
			OpsPerSecond: c.OpsPerSecond,
			Operations:   c.Operations,
			CPUSeconds:   c.CPUTime.Seconds(),
			CPUTime:      FormatDuration(c.CPUTime),
			Failed:       c.Failed,
			Error:        c.Error,
		}
		if c.ScoreDefined && !c.Failed {
			score := c.Score
			jc.Score = &score
		}
		out.Candidates[i] = jc
	}

	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// FormatDuration renders d with the largest unit that keeps it above one:
// ns, µs, ms or s.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Microsecond:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	case d < time.Millisecond:
		return fmt.Sprintf("%.2fµs", float64(d.Nanoseconds())/1e3)
	case d < time.Second:
		return fmt.Sprintf("%.2fms", float64(d.Nanoseconds())/1e6)
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

var (
	_ Reporter = (*ConsoleReporter)(nil)
	_ Reporter = (*JSONReporter)(nil)
)
