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

// Aggregator owns the running frame-rate Snapshot of one session.
//
// Thread Safety: NOT safe for concurrent use.
type Aggregator struct {
	snap Snapshot
}

// NewAggregator returns an aggregator with the all-zero snapshot.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// Record folds one frame-rate sample into the aggregate.
//
// A first sample of 0 becomes the minimum; Min is only "unset" while
// SampleCount is 0, so 0 then 60 yields Min 0, Average 30, Max 60.
//
// Outputs:
//   - error: ErrInvalidInput (wrapped) for NaN, infinite or negative
//     samples. The aggregate is unchanged in that case.
func (a *Aggregator) Record(current float64) error {
	next, err := a.snap.Step(current)
	if err != nil {
		return err
	}
	a.snap = next
	return nil
}

// Reset returns the aggregate to the all-zero "no data yet" snapshot.
func (a *Aggregator) Reset() {
	a.snap = Snapshot{}
}

// Snapshot returns the current aggregate by value.
func (a *Aggregator) Snapshot() Snapshot {
	return a.snap
}

// Evaluate classifies the running average with the four-tier rule set.
func (a *Aggregator) Evaluate() Score {
	return a.snap.Score()
}

// Grade classifies the running average with the three-tier rule set.
func (a *Aggregator) Grade() Grade {
	return a.snap.Grade()
}

// Recommendations returns advisory messages for the current aggregate and
// the given memory samples in megabytes. See the package-level
// Recommendations function for the rules.
func (a *Aggregator) Recommendations(memoryMB []float64) []string {
	return Recommendations(a.snap, memoryMB)
}
