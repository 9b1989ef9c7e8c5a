// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package bench compares competing implementations of one operation by
// CPU-time throughput.
//
// # Overview
//
// Each candidate runs on its own goroutine, locked to an OS thread, and
// invokes its operation until the thread has consumed the suite's CPU-time
// budget. Throughput is operations per consumed CPU second, so candidates
// running side by side are not penalized for sharing cores. Scores are
// throughputs normalized to sum to a maximum score (default 10).
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                             Suite                                │
//	├──────────────────────────────────────────────────────────────────┤
//	│                                                                  │
//	│   Run() ──► Runner A ──┐                                         │
//	│         ──► Runner B ──┼──► Budget (limit, lock, active, total)  │
//	│         ──► Runner C ──┘                                         │
//	│                 │                                                │
//	│                 ▼  Done() closed                                 │
//	│   Evaluate(ctx) ──► Normalize ──► Report ──► Reporter / Sink     │
//	│                                                                  │
//	└──────────────────────────────────────────────────────────────────┘
//
// # Usage
//
//	suite := bench.NewSuite(bench.WithMaxScore(10))
//
//	if _, err := suite.NewRunner("plus", bench.Void(concatPlus)); err != nil {
//	    return err
//	}
//	if _, err := suite.NewRunner("builder", bench.Void(concatBuilder)); err != nil {
//	    return err
//	}
//
//	// Each NewRunner requests DefaultBudget; set the limit afterwards.
//	suite.Budget().Set(2)
//
//	if err := suite.Run(); err != nil {
//	    return err
//	}
//	report, err := suite.Evaluate(ctx)
//	if err != nil {
//	    return err
//	}
//	return bench.NewConsoleReporter(os.Stdout).Report(report)
//
// # Budget Lock
//
// A Budget is locked from the moment its first runner starts until its
// last active runner finishes. While locked, Set is silently ignored, so
// every candidate of a run measures against the same limit.
//
// # Limitations
//
// Operations cannot be cancelled. An operation that never returns hangs
// its runner and any Evaluate waiting on it; pass a context with a
// deadline to Evaluate to bound the wait.
package bench
