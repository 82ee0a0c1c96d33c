// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package latency records input-latency samples and derives nearest-rank
// percentile statistics and an SLA verdict from them.
package latency

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/AleutianAI/mapbench/services/bench/series"
)

// =============================================================================
// Constants & Errors
// =============================================================================

const (
	// Capacity is the number of most recent samples retained.
	Capacity = 1000

	// DefaultTargetMS is the P95 latency target used when none is configured.
	DefaultTargetMS = 200.0
)

var (
	// ErrInvalidInput is returned for NaN, infinite or negative durations.
	ErrInvalidInput = errors.New("invalid latency sample")
)

// =============================================================================
// Tracker
// =============================================================================

// Clock returns the current time. Tests substitute a fake.
type Clock func() time.Time

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the time source used by MarkStart, MarkEnd, Begin and
// Complete.
func WithClock(c Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.now = c
		}
	}
}

// Tracker collects latency samples for one session.
//
// Description:
//
//	Samples arrive either as a MarkStart/MarkEnd pair, as a pre-computed
//	duration through AddMeasurement, or as a Begin/Complete pair for
//	callers that need several overlapping measurements. All paths feed the
//	same bounded series of Capacity samples. Statistics are computed on
//	demand by Stats.
//
// Thread Safety: NOT safe for concurrent use.
type Tracker struct {
	samples *series.Bounded[float64]
	start   time.Time
	pending bool
	now     Clock
}

// NewTracker creates an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		samples: series.New[float64](Capacity),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MarkStart records the start of a user-perceived operation, replacing
// any earlier pending start.
func (t *Tracker) MarkStart() {
	t.start = t.now()
	t.pending = true
}

// MarkEnd records the time since the last MarkStart.
//
// Description:
//
//	Without a preceding MarkStart this is a no-op. The start mark is not
//	consumed, so repeated MarkEnd calls each record the time since the same
//	start. Only Reset or a new MarkStart replaces it.
//
// Outputs:
//   - bool: True if a sample was recorded.
func (t *Tracker) MarkEnd() bool {
	if !t.pending {
		return false
	}
	t.samples.Push(elapsedMS(t.start, t.now()))
	return true
}

// AddMeasurement records a pre-computed duration in milliseconds.
//
// Outputs:
//   - error: ErrInvalidInput (wrapped) for NaN, infinite or negative values.
func (t *Tracker) AddMeasurement(ms float64) error {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidInput, ms)
	}
	t.samples.Push(ms)
	return nil
}

// Mark is a captured start time returned by Begin.
type Mark struct {
	start time.Time
}

// Begin captures the current time without touching the pending MarkStart.
func (t *Tracker) Begin() Mark {
	return Mark{start: t.now()}
}

// Complete records the time elapsed since m was captured and returns it in
// milliseconds. A zero Mark records nothing and returns false.
func (t *Tracker) Complete(m Mark) (float64, bool) {
	if m.start.IsZero() {
		return 0, false
	}
	ms := elapsedMS(m.start, t.now())
	t.samples.Push(ms)
	return ms, true
}

// Len returns the number of retained samples.
func (t *Tracker) Len() int {
	return t.samples.Len()
}

// Samples returns a copy of the retained samples, oldest first.
func (t *Tracker) Samples() []float64 {
	return t.samples.Items()
}

// Reset clears every sample and the pending start mark.
func (t *Tracker) Reset() {
	t.samples.Clear()
	t.start = time.Time{}
	t.pending = false
}

// Stats computes the statistics of the retained samples.
//
// Description:
//
//	An empty tracker yields the all-zero Snapshot. Otherwise a sorted copy
//	is taken and percentiles use the nearest-rank Percentile function. The
//	average is computed over the samples in insertion order.
func (t *Tracker) Stats() Snapshot {
	return Compute(t.samples.Items())
}

func elapsedMS(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		d = 0
	}
	return float64(d) / float64(time.Millisecond)
}

// =============================================================================
// Statistics
// =============================================================================

// Compute returns the statistics of samples. The input is not modified.
func Compute(samples []float64) Snapshot {
	if len(samples) == 0 {
		return Snapshot{}
	}

	var sum float64
	for _, v := range samples {
		sum += v
	}

	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	return Snapshot{
		Count: len(sorted),
		Avg:   sum / float64(len(sorted)),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   Percentile(sorted, 0.50),
		P95:   Percentile(sorted, 0.95),
		P99:   Percentile(sorted, 0.99),
	}
}

// Percentile returns the nearest-rank percentile of an ascending slice.
//
// Description:
//
//	The index is floor(len*p) clamped to len-1; values are never
//	interpolated. Returns 0 for an empty slice.
//
// Inputs:
//   - sorted: Samples in ascending order.
//   - p: Percentile as a fraction in [0, 1].
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx < 0 {
		idx = 0
	}
	return sorted[min(idx, len(sorted)-1)]
}
