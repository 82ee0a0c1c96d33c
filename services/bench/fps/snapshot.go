// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package fps

import (
	"errors"
	"fmt"
	"math"
)

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrInvalidInput is returned for NaN, infinite or negative samples.
	ErrInvalidInput = errors.New("invalid frame rate sample")
)

// -----------------------------------------------------------------------------
// Snapshot
// -----------------------------------------------------------------------------

// Snapshot is the frame-rate aggregate after some number of samples.
//
// Description:
//
//	Min is unset until the first sample arrives; a zero Snapshot therefore
//	means "no data yet" and is what the display layer renders before the
//	first sampling window completes. Average is an online mean and is never
//	recomputed from history.
//
// Invariants (once SampleCount >= 1):
//
//	Min <= Current <= Max
//	Min <= Average <= Max
//
// Thread Safety: Value type; safe to copy and share.
type Snapshot struct {
	// Current is the most recent sample.
	Current float64 `json:"current"`

	// Min is the lowest sample since the last reset.
	Min float64 `json:"min"`

	// Max is the highest sample since the last reset.
	Max float64 `json:"max"`

	// Average is the arithmetic mean of all samples since the last reset.
	Average float64 `json:"average"`

	// SampleCount is the number of samples folded into this snapshot.
	SampleCount uint32 `json:"sample_count"`
}

// Step folds one sample into the snapshot and returns the result.
//
// Description:
//
//	Step is the pure update function behind Aggregator.Record. The
//	receiver is not modified. The mean uses the recurrence
//
//	    average' = (average*(n-1) + sample) / n
//
//	where n is the post-increment sample count, which is O(1) in time and
//	space per sample.
//
// Inputs:
//   - sample: Frame rate in frames per second. Must be finite and >= 0.
//
// Outputs:
//   - Snapshot: The updated snapshot, or the receiver unchanged on error.
//   - error: ErrInvalidInput (wrapped) if the sample is rejected.
func (s Snapshot) Step(sample float64) (Snapshot, error) {
	if math.IsNaN(sample) || math.IsInf(sample, 0) || sample < 0 {
		return s, fmt.Errorf("%w: %v", ErrInvalidInput, sample)
	}

	next := s
	next.SampleCount++
	next.Current = sample

	if sample > next.Max {
		next.Max = sample
	}
	// The first sample initializes Min without comparing, so an observed
	// minimum of zero is kept rather than treated as unset.
	if s.SampleCount == 0 || sample < next.Min {
		next.Min = sample
	}

	n := float64(next.SampleCount)
	next.Average = (s.Average*(n-1) + sample) / n

	return next, nil
}

// IsEmpty returns true if no samples have been recorded.
func (s Snapshot) IsEmpty() bool {
	return s.SampleCount == 0
}

// Jitter returns Max - Min, the spread used by the jitter recommendation.
func (s Snapshot) Jitter() float64 {
	return s.Max - s.Min
}

// Score classifies the average with the four-tier rule set.
func (s Snapshot) Score() Score {
	return ScoreFor(s.Average)
}

// Grade classifies the average with the three-tier rule set.
func (s Snapshot) Grade() Grade {
	return GradeFor(s.Average)
}
