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

import "errors"

var (
	// ErrNilBudget is returned when a runner is built without a Budget.
	ErrNilBudget = errors.New("budget must not be nil")

	// ErrNilOperation is returned when a runner is built without an operation.
	ErrNilOperation = errors.New("operation must not be nil")

	// ErrInvalidBudget is returned for a negative CPU-time budget.
	ErrInvalidBudget = errors.New("budget must not be negative")

	// ErrInvalidMaxScore is returned for a maximum score below 1.
	ErrInvalidMaxScore = errors.New("max score must be positive")

	// ErrCandidateFailed wraps every error raised by, or while measuring,
	// a candidate's operation.
	ErrCandidateFailed = errors.New("candidate failed")

	// ErrNoCandidates is returned by Run on an empty suite.
	ErrNoCandidates = errors.New("suite has no candidates")

	// ErrAlreadyRunning is returned by Run while a previous run is in flight.
	ErrAlreadyRunning = errors.New("suite is already running")

	// ErrNotStarted is returned by Evaluate before Run.
	ErrNotStarted = errors.New("suite has not been run")

	// ErrRunnerUsed is returned by Run when a member has already started.
	// Runners measure once; build new ones to measure again.
	ErrRunnerUsed = errors.New("runner has already been started")

	// ErrBudgetMismatch is returned by Run when a member is bound to a
	// different Budget than the suite.
	ErrBudgetMismatch = errors.New("runner budget does not belong to suite")

	// ErrInterrupted is returned by Evaluate when its context ends before
	// every member finished. The run stays in flight.
	ErrInterrupted = errors.New("evaluation interrupted")
)
