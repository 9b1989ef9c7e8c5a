// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// Test Helpers
// -----------------------------------------------------------------------------

type mockSink struct {
	mu         sync.Mutex
	candidates []*CandidateData
	suites     []*SuiteData
	failures   []*FailureData
	flushes    int
	closes     int

	recordErr error
	flushErr  error
	closeErr  error
}

func (m *mockSink) RecordCandidate(_ context.Context, data *CandidateData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, data)
	return m.recordErr
}

func (m *mockSink) RecordSuite(_ context.Context, data *SuiteData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suites = append(m.suites, data)
	return m.recordErr
}

func (m *mockSink) RecordFailure(_ context.Context, data *FailureData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, data)
	return m.recordErr
}

func (m *mockSink) Flush(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
	return m.flushErr
}

func (m *mockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	return m.closeErr
}

func (m *mockSink) counts() (candidates, suites, failures int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.candidates), len(m.suites), len(m.failures)
}

func testCandidate() *CandidateData {
	return &CandidateData{
		RunID:        "run-1",
		Name:         "builder",
		Operations:   1200,
		CPUTime:      2 * time.Second,
		OpsPerSecond: 600,
		Score:        7.5,
		ScoreDefined: true,
		Timestamp:    time.Now(),
		Labels:       map[string]string{"host": "ci"},
	}
}

func testSuite() *SuiteData {
	return &SuiteData{
		RunID:             "run-1",
		Candidates:        2,
		Elapsed:           2100 * time.Millisecond,
		Budget:            2 * time.Second,
		TotalOpsPerSecond: 800,
		MaxScore:          10,
		Timestamp:         time.Now(),
	}
}

func testFailure() *FailureData {
	return &FailureData{RunID: "run-1", Name: "broken", Message: "boom", Timestamp: time.Now()}
}

// -----------------------------------------------------------------------------
// NoOpSink Tests
// -----------------------------------------------------------------------------

func TestNoOpSink(t *testing.T) {
	ctx := context.Background()
	sink := NewNoOpSink()

	assert.NoError(t, sink.RecordCandidate(ctx, testCandidate()))
	assert.NoError(t, sink.RecordSuite(ctx, testSuite()))
	assert.NoError(t, sink.RecordFailure(ctx, testFailure()))
	assert.NoError(t, sink.Flush(ctx))
	assert.NoError(t, sink.Close())

	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, sink.RecordCandidate(nil, testCandidate()), ErrNilContext)
	assert.ErrorIs(t, sink.RecordSuite(ctx, nil), ErrNilData)
	assert.ErrorIs(t, sink.RecordFailure(ctx, nil), ErrNilData)
	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, sink.Flush(nil), ErrNilContext)
}

// -----------------------------------------------------------------------------
// CompositeSink Tests
// -----------------------------------------------------------------------------

func TestNewCompositeSink(t *testing.T) {
	t.Run("skips nil sinks", func(t *testing.T) {
		composite, err := NewCompositeSink(nil, &mockSink{}, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, composite.Len())
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := NewCompositeSink()
		assert.ErrorIs(t, err, ErrNoSinks)

		_, err = NewCompositeSink(nil, nil)
		assert.ErrorIs(t, err, ErrNoSinks)
	})
}

func TestCompositeSink_FansOut(t *testing.T) {
	ctx := context.Background()
	m1, m2 := &mockSink{}, &mockSink{}
	composite, err := NewCompositeSink(m1, m2)
	require.NoError(t, err)

	require.NoError(t, composite.RecordCandidate(ctx, testCandidate()))
	require.NoError(t, composite.RecordSuite(ctx, testSuite()))
	require.NoError(t, composite.RecordFailure(ctx, testFailure()))

	for _, m := range []*mockSink{m1, m2} {
		c, s, f := m.counts()
		assert.Equal(t, 1, c)
		assert.Equal(t, 1, s)
		assert.Equal(t, 1, f)
	}
}

func TestCompositeSink_ChildErrorDoesNotStopDelivery(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("boom")
	failing := &mockSink{recordErr: boom}
	healthy := &mockSink{}
	composite, err := NewCompositeSink(failing, healthy)
	require.NoError(t, err)

	err = composite.RecordCandidate(ctx, testCandidate())
	assert.ErrorIs(t, err, boom)

	c, _, _ := healthy.counts()
	assert.Equal(t, 1, c)
}

func TestCompositeSink_ValidatesArgs(t *testing.T) {
	m := &mockSink{}
	composite, err := NewCompositeSink(m)
	require.NoError(t, err)

	assert.ErrorIs(t, composite.RecordCandidate(context.Background(), nil), ErrNilData)
	//nolint:staticcheck // nil context is the case under test
	assert.ErrorIs(t, composite.RecordSuite(nil, testSuite()), ErrNilContext)

	c, s, _ := m.counts()
	assert.Zero(t, c)
	assert.Zero(t, s)
}

func TestCompositeSink_Flush(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("flush failed")
	m1, m2 := &mockSink{}, &mockSink{flushErr: boom}
	composite, err := NewCompositeSink(m1, m2)
	require.NoError(t, err)

	assert.ErrorIs(t, composite.Flush(ctx), boom)
	assert.Equal(t, 1, m1.flushes)
	assert.Equal(t, 1, m2.flushes)
}

func TestCompositeSink_Close(t *testing.T) {
	ctx := context.Background()
	m1, m2 := &mockSink{}, &mockSink{}
	composite, err := NewCompositeSink(m1, m2)
	require.NoError(t, err)

	require.NoError(t, composite.Close())
	require.NoError(t, composite.Close())
	assert.Equal(t, 1, m1.closes, "close is idempotent")
	assert.Equal(t, 1, m2.closes)

	assert.ErrorIs(t, composite.RecordCandidate(ctx, testCandidate()), ErrSinkClosed)
	assert.ErrorIs(t, composite.Flush(ctx), ErrSinkClosed)
}

func TestCompositeSink_Concurrent(t *testing.T) {
	ctx := context.Background()
	m := &mockSink{}
	composite, err := NewCompositeSink(m)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = composite.RecordCandidate(ctx, testCandidate())
			_ = composite.RecordFailure(ctx, testFailure())
		}()
	}
	wg.Wait()

	c, _, f := m.counts()
	assert.Equal(t, 50, c)
	assert.Equal(t, 50, f)
}
