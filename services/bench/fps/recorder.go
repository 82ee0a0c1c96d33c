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
	"fmt"
	"math"

	"github.com/AleutianAI/mapbench/services/bench/series"
)

// MemorySnapshotCapacity is the number of memory samples a Recorder keeps.
const MemorySnapshotCapacity = 100

// Recorder is a benchmark run: an Aggregator gated by an explicit
// start/stop, plus a bounded series of memory samples.
//
// Description:
//
//	Samples delivered while the recorder is stopped are dropped silently so
//	that a sampler which keeps running between runs does not leak into the
//	next run. StartRecording resets both the aggregate and the memory
//	series.
//
// Thread Safety: NOT safe for concurrent use.
type Recorder struct {
	agg       *Aggregator
	memory    *series.Bounded[float64]
	recording bool
}

// NewRecorder returns a stopped recorder with no data.
func NewRecorder() *Recorder {
	return &Recorder{
		agg:    NewAggregator(),
		memory: series.New[float64](MemorySnapshotCapacity),
	}
}

// StartRecording clears all previous data and begins accepting samples.
func (r *Recorder) StartRecording() {
	r.agg.Reset()
	r.memory.Clear()
	r.recording = true
}

// StopRecording stops accepting samples. The aggregate is kept.
func (r *Recorder) StopRecording() {
	r.recording = false
}

// IsRecording reports whether samples are currently accepted.
func (r *Recorder) IsRecording() bool {
	return r.recording
}

// UpdateFPS records a frame-rate sample if the recorder is running.
//
// Outputs:
//   - bool: True if the sample was recorded.
//   - error: ErrInvalidInput (wrapped) if the sample was rejected. Input is
//     validated even while stopped.
func (r *Recorder) UpdateFPS(current float64) (bool, error) {
	if !r.recording {
		if _, err := (Snapshot{}).Step(current); err != nil {
			return false, err
		}
		return false, nil
	}
	if err := r.agg.Record(current); err != nil {
		return false, err
	}
	return true, nil
}

// RecordMemory appends a memory sample in megabytes if the recorder is
// running. Returns true if the sample was kept.
func (r *Recorder) RecordMemory(megabytes float64) (bool, error) {
	if math.IsNaN(megabytes) || math.IsInf(megabytes, 0) || megabytes < 0 {
		return false, fmt.Errorf("%w: memory %v", ErrInvalidInput, megabytes)
	}
	if !r.recording {
		return false, nil
	}
	r.memory.Push(megabytes)
	return true, nil
}

// Snapshot returns the current frame-rate aggregate.
func (r *Recorder) Snapshot() Snapshot {
	return r.agg.Snapshot()
}

// Memory returns a copy of the retained memory samples, oldest first.
func (r *Recorder) Memory() []float64 {
	return r.memory.Items()
}

// MemoryMean returns the mean of the retained memory samples, or 0.
func (r *Recorder) MemoryMean() float64 {
	return mean(r.memory.Items())
}

// Evaluate classifies the recorded average with the four-tier rule set.
func (r *Recorder) Evaluate() Score {
	return r.agg.Evaluate()
}

// Grade classifies the recorded average with the three-tier rule set.
func (r *Recorder) Grade() Grade {
	return r.agg.Grade()
}

// Recommendations evaluates the advisory rules over the recorded data.
func (r *Recorder) Recommendations() []string {
	return r.agg.Recommendations(r.memory.Items())
}
