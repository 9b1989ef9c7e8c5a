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
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/AleutianAI/cpubench/pkg/logging"
	"github.com/AleutianAI/cpubench/services/bench/cputime"
)

// MaxNameLength is the longest display name a runner keeps, in runes.
const MaxNameLength = 15

// Operation is one unit of work. A non-nil error fails the candidate.
type Operation func() error

// Void adapts a function without an error result to an Operation.
func Void(fn func()) Operation {
	if fn == nil {
		return nil
	}
	return func() error {
		fn()
		return nil
	}
}

// Result is what a finished runner measured.
type Result struct {
	// Name is the runner's display name.
	Name string

	// Operations is the number of completed invocations.
	Operations int64

	// Budget is the CPU-time limit the runner measured against.
	Budget time.Duration

	// CPUTime is the CPU time the runner's thread consumed measuring.
	// It overshoots the budget by at most one operation.
	CPUTime time.Duration

	// OpsPerSecond is Operations / CPUTime, or 0 when CPUTime is zero.
	// Meaningless when Err is set.
	OpsPerSecond float64

	// Err wraps ErrCandidateFailed when the operation failed.
	Err error
}

// -----------------------------------------------------------------------------
// Options
// -----------------------------------------------------------------------------

// RunnerOption configures a Runner.
type RunnerOption func(*runnerOptions)

type runnerOptions struct {
	budget time.Duration
	clock  cputime.Clock
	logger *logging.Logger
}

// WithBudgetSeconds requests a CPU-time budget in whole seconds. The
// request is ignored if the Budget is locked.
func WithBudgetSeconds(seconds int) RunnerOption {
	return func(o *runnerOptions) {
		o.budget = time.Duration(seconds) * time.Second
	}
}

// WithBudgetDuration is WithBudgetSeconds with sub-second resolution.
func WithBudgetDuration(d time.Duration) RunnerOption {
	return func(o *runnerOptions) {
		o.budget = d
	}
}

// WithClock replaces the per-thread CPU clock. Tests use a
// cputime.StepClock for deterministic counts.
func WithClock(clock cputime.Clock) RunnerOption {
	return func(o *runnerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRunnerLogger sets the runner's logger.
func WithRunnerLogger(logger *logging.Logger) RunnerOption {
	return func(o *runnerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// -----------------------------------------------------------------------------
// Runner
// -----------------------------------------------------------------------------

type runnerState int

const (
	stateIdle runnerState = iota
	stateRunning
	stateFinished
)

// Runner measures one candidate.
//
// Description:
//
//	A Runner is started once. Its goroutine locks itself to an OS thread,
//	invokes the operation until the thread has consumed the Budget's
//	limit of CPU time, then publishes a Result and closes Done.
//
// Thread Safety: Safe for concurrent use.
type Runner struct {
	name   string
	op     Operation
	budget *Budget
	clock  cputime.Clock
	logger *logging.Logger

	done chan struct{}

	mu     sync.Mutex
	state  runnerState
	result Result
}

// NewRunner binds a candidate operation to a Budget.
//
// Description:
//
//	The name is truncated to MaxNameLength runes. Without a budget option
//	the runner requests DefaultBudget, matching a freshly built Budget.
//	Either request is silently ignored while the Budget is locked.
//
// Inputs:
//   - budget: The shared Budget. Must not be nil.
//   - name: Display name.
//   - op: The operation to measure. Must not be nil.
//   - opts: Optional configuration.
//
// Outputs:
//   - *Runner: An idle runner.
//   - error: ErrNilBudget, ErrNilOperation or ErrInvalidBudget.
//
// Example:
//
//	r, err := bench.NewRunner(budget, "builder", bench.Void(concatBuilder),
//	    bench.WithBudgetSeconds(2),
//	)
func NewRunner(budget *Budget, name string, op Operation, opts ...RunnerOption) (*Runner, error) {
	if budget == nil {
		return nil, ErrNilBudget
	}
	if op == nil {
		return nil, ErrNilOperation
	}

	o := runnerOptions{
		budget: DefaultBudget,
		clock:  cputime.Thread(),
		logger: logging.Nop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.budget < 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBudget, o.budget)
	}

	r := &Runner{
		name:   truncateName(name),
		op:     op,
		budget: budget,
		clock:  o.clock,
		done:   make(chan struct{}),
	}
	r.logger = o.logger.With("candidate", r.name)

	if !budget.SetDuration(o.budget) {
		r.logger.Debug("budget locked, request ignored", "requested", o.budget)
	}
	return r, nil
}

// Start launches the measurement goroutine. The Budget is acquired
// before Start returns. Starting a runner twice is a logged no-op.
func (r *Runner) Start() {
	r.start()
}

func (r *Runner) start() bool {
	if !r.claim() {
		r.logger.Warn("runner already started")
		return false
	}
	r.launch(r.budget.acquire())
	return true
}

// claim moves an idle runner to running. The caller must either launch it
// with an acquired limit or hand it back with unclaim.
func (r *Runner) claim() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateIdle {
		return false
	}
	r.state = stateRunning
	return true
}

func (r *Runner) unclaim() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == stateRunning {
		r.state = stateIdle
	}
}

func (r *Runner) launch(limit time.Duration) {
	r.logger.Debug("runner started", "budget", limit)
	go r.loop(limit)
}

func (r *Runner) loop(limit time.Duration) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ops, consumed, err := r.measure(limit)

	var rate float64
	if err == nil && consumed > 0 {
		rate = float64(ops) / consumed.Seconds()
	}

	r.budget.release(rate, err == nil)

	r.mu.Lock()
	r.result = Result{
		Name:         r.name,
		Operations:   ops,
		Budget:       limit,
		CPUTime:      consumed,
		OpsPerSecond: rate,
		Err:          err,
	}
	r.state = stateFinished
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("candidate failed", "ops", ops, "error", err)
	} else {
		r.logger.Debug("runner finished", "ops", ops, "cpu_time", consumed, "ops_per_sec", rate)
	}
	close(r.done)
}

// measure runs the operation until the thread's CPU time since the
// baseline sample reaches limit.
func (r *Runner) measure(limit time.Duration) (ops int64, consumed time.Duration, err error) {
	base, err := r.clock.Now()
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %s: sample cpu clock: %w", ErrCandidateFailed, r.name, err)
	}

	for consumed < limit {
		if err := r.invoke(); err != nil {
			return ops, consumed, fmt.Errorf("%w: %s: %w", ErrCandidateFailed, r.name, err)
		}
		ops++

		now, err := r.clock.Now()
		if err != nil {
			return ops, consumed, fmt.Errorf("%w: %s: sample cpu clock: %w", ErrCandidateFailed, r.name, err)
		}
		consumed = now - base
	}
	return ops, consumed, nil
}

func (r *Runner) invoke() (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return r.op()
}

// Join blocks until the runner has finished.
func (r *Runner) Join() {
	<-r.done
}

// JoinTimeout waits up to d and reports whether the runner finished.
// A false return says nothing about when it will.
func (r *Runner) JoinTimeout(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-r.done:
		return true
	case <-timer.C:
		return false
	}
}

// Wait blocks until the runner finished or ctx ends, returning ctx.Err()
// in the latter case.
func (r *Runner) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		// A finished runner wins a tie.
		select {
		case <-r.done:
			return nil
		default:
			return ctx.Err()
		}
	}
}

// Done is closed once the Result is published.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}

// Name returns the (possibly truncated) display name.
func (r *Runner) Name() string {
	return r.name
}

// Budget returns the Budget the runner is bound to.
func (r *Runner) Budget() *Budget {
	return r.budget
}

// Started reports whether Start has been called.
func (r *Runner) Started() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != stateIdle
}

// Finished reports whether the Result is available.
func (r *Runner) Finished() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == stateFinished
}

// Rate returns the measured throughput, or 0 before the runner finished
// or when it failed.
func (r *Runner) Rate() float64 {
	res, ok := r.Result()
	if !ok || res.Err != nil {
		return 0
	}
	return res.OpsPerSecond
}

// Result returns the measurement; ok is false until the runner finished.
func (r *Runner) Result() (Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != stateFinished {
		return Result{}, false
	}
	return r.result, true
}

// Err returns the failure of a finished runner, or nil.
func (r *Runner) Err() error {
	res, _ := r.Result()
	return res.Err
}

func truncateName(name string) string {
	runes := []rune(name)
	if len(runes) > MaxNameLength {
		return string(runes[:MaxNameLength])
	}
	return name
}
