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
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Snapshot / Aggregator
// =============================================================================

func TestAggregator_MinAverageMaxHoldAfterEveryRecord(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for run := 0; run < 20; run++ {
		agg := NewAggregator()
		var sum float64

		n := 1 + rng.IntN(200)
		for i := 1; i <= n; i++ {
			sample := rng.Float64() * 144
			require.NoError(t, agg.Record(sample))
			sum += sample

			snap := agg.Snapshot()
			require.Equal(t, uint32(i), snap.SampleCount)
			require.LessOrEqual(t, snap.Min, snap.Average+1e-9)
			require.LessOrEqual(t, snap.Average, snap.Max+1e-9)
			require.LessOrEqual(t, snap.Min, snap.Current)
			require.LessOrEqual(t, snap.Current, snap.Max)
			require.InDelta(t, sum/float64(i), snap.Average, 1e-9)
		}
	}
}

func TestAggregator_Record(t *testing.T) {
	agg := NewAggregator()

	require.NoError(t, agg.Record(60))
	require.NoError(t, agg.Record(30))
	require.NoError(t, agg.Record(45))

	snap := agg.Snapshot()
	assert.Equal(t, 45.0, snap.Current)
	assert.Equal(t, 30.0, snap.Min)
	assert.Equal(t, 60.0, snap.Max)
	assert.InDelta(t, 45.0, snap.Average, 1e-9)
	assert.Equal(t, uint32(3), snap.SampleCount)
}

func TestAggregator_ZeroMinimumIsKept(t *testing.T) {
	agg := NewAggregator()

	require.NoError(t, agg.Record(0))
	require.NoError(t, agg.Record(50))

	snap := agg.Snapshot()
	assert.Equal(t, 0.0, snap.Min)
	assert.Equal(t, 50.0, snap.Max)
	assert.InDelta(t, 25.0, snap.Average, 1e-9)
}

func TestAggregator_RejectsInvalidInput(t *testing.T) {
	agg := NewAggregator()
	require.NoError(t, agg.Record(40))
	before := agg.Snapshot()

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1), -1} {
		err := agg.Record(bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidInput))
		assert.Equal(t, before, agg.Snapshot())
	}
}

func TestAggregator_ResetYieldsZeroSnapshot(t *testing.T) {
	agg := NewAggregator()
	agg.Reset()
	assert.Equal(t, Snapshot{}, agg.Snapshot())

	require.NoError(t, agg.Record(12))
	require.NoError(t, agg.Record(90))
	agg.Reset()

	assert.Equal(t, Snapshot{}, agg.Snapshot())
	assert.True(t, agg.Snapshot().IsEmpty())

	// A stale minimum must not survive a reset.
	require.NoError(t, agg.Record(70))
	assert.Equal(t, 70.0, agg.Snapshot().Min)
}

func TestSnapshot_StepDoesNotMutateReceiver(t *testing.T) {
	var s Snapshot
	next, err := s.Step(33)
	require.NoError(t, err)
	assert.Equal(t, Snapshot{}, s)
	assert.Equal(t, uint32(1), next.SampleCount)
}

// =============================================================================
// Classification
// =============================================================================

func TestScoreFor(t *testing.T) {
	tests := []struct {
		average float64
		want    Score
	}{
		{60, ScoreExcellent},
		{55, ScoreExcellent},
		{54.9, ScoreGood},
		{45, ScoreGood},
		{44.9, ScoreFair},
		{30, ScoreFair},
		{29.9, ScorePoor},
		{0, ScorePoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScoreFor(tt.average), "average=%v", tt.average)
	}
}

func TestGradeFor(t *testing.T) {
	tests := []struct {
		average float64
		want    Grade
	}{
		{55, GradeGood},
		{54.9, GradeOK},
		{45, GradeOK},
		{30, GradeOK},
		{29.9, GradePoor},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, GradeFor(tt.average), "average=%v", tt.average)
	}
}

func TestScoreAndGradeAgreeAtSharedBoundaries(t *testing.T) {
	assert.Equal(t, ScoreExcellent, ScoreFor(ExcellentThreshold))
	assert.Equal(t, GradeGood, GradeFor(ExcellentThreshold))
	assert.Equal(t, ScorePoor, ScoreFor(FairThreshold-0.01))
	assert.Equal(t, GradePoor, GradeFor(FairThreshold-0.01))
}

func TestScore_PolicyData(t *testing.T) {
	assert.Equal(t, "#4CAF50", ScoreExcellent.Color())
	assert.Equal(t, "#8BC34A", ScoreGood.Color())
	assert.Equal(t, "#FF9800", ScoreFair.Color())
	assert.Equal(t, "#f44336", ScorePoor.Color())
	assert.Equal(t, "Excellent", ScoreExcellent.Label())
	assert.Equal(t, "fair", ScoreFair.String())

	text, err := ScoreGood.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "good", string(text))

	assert.Equal(t, "#FF9800", GradeOK.Color())
	assert.Equal(t, "ok", GradeOK.String())
}

// =============================================================================
// Recommendations
// =============================================================================

func TestRecommendations(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		memory []float64
		want   []string
	}{
		{
			name: "healthy",
			snap: Snapshot{Min: 55, Max: 60, Average: 58, SampleCount: 4},
			want: []string{AdvicePerformingOK},
		},
		{
			name: "low average",
			snap: Snapshot{Min: 20, Max: 28, Average: 25, SampleCount: 4},
			want: []string{AdviceReduceLoad},
		},
		{
			name: "jitter",
			snap: Snapshot{Min: 35, Max: 60, Average: 50, SampleCount: 4},
			want: []string{AdviceJitter},
		},
		{
			name: "jitter exactly at threshold does not fire",
			snap: Snapshot{Min: 40, Max: 60, Average: 50, SampleCount: 4},
			want: []string{AdvicePerformingOK},
		},
		{
			name:   "memory",
			snap:   Snapshot{Min: 55, Max: 60, Average: 58, SampleCount: 4},
			memory: []float64{90, 120},
			want:   []string{AdviceMemory},
		},
		{
			name:   "all rules fire in order",
			snap:   Snapshot{Min: 5, Max: 40, Average: 20, SampleCount: 4},
			memory: []float64{150},
			want:   []string{AdviceReduceLoad, AdviceJitter, AdviceMemory},
		},
		{
			name: "empty snapshot triggers load advice",
			snap: Snapshot{},
			want: []string{AdviceReduceLoad},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Recommendations(tt.snap, tt.memory))
		})
	}
}

// =============================================================================
// Recorder
// =============================================================================

func TestRecorder_IgnoresSamplesWhileStopped(t *testing.T) {
	r := NewRecorder()

	ok, err := r.UpdateFPS(60)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, r.Snapshot().IsEmpty())

	_, err = r.UpdateFPS(math.NaN())
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecorder_StartResetsPreviousRun(t *testing.T) {
	r := NewRecorder()
	r.StartRecording()
	require.True(t, r.IsRecording())

	_, err := r.UpdateFPS(20)
	require.NoError(t, err)
	_, err = r.RecordMemory(300)
	require.NoError(t, err)
	r.StopRecording()

	assert.Equal(t, uint32(1), r.Snapshot().SampleCount)
	assert.Equal(t, 300.0, r.MemoryMean())

	r.StartRecording()
	assert.True(t, r.Snapshot().IsEmpty())
	assert.Empty(t, r.Memory())
}

func TestRecorder_MemoryIsBounded(t *testing.T) {
	r := NewRecorder()
	r.StartRecording()

	for i := 1; i <= MemorySnapshotCapacity+20; i++ {
		kept, err := r.RecordMemory(float64(i))
		require.NoError(t, err)
		require.True(t, kept)
	}

	mem := r.Memory()
	require.Len(t, mem, MemorySnapshotCapacity)
	assert.Equal(t, 21.0, mem[0])
	assert.Equal(t, float64(MemorySnapshotCapacity+20), mem[len(mem)-1])

	_, err := r.RecordMemory(-5)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRecorder_Recommendations(t *testing.T) {
	r := NewRecorder()
	r.StartRecording()
	for _, v := range []float64{58, 59, 60} {
		_, err := r.UpdateFPS(v)
		require.NoError(t, err)
	}
	_, err := r.RecordMemory(250)
	require.NoError(t, err)

	assert.Equal(t, []string{AdviceMemory}, r.Recommendations())
	assert.Equal(t, ScoreExcellent, r.Evaluate())
	assert.Equal(t, GradeGood, r.Grade())
}

// =============================================================================
// Sampler
// =============================================================================

func TestSampler_EmitsOncePerWindow(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	s := NewSampler(start)

	// 60 frames at ~16.67ms; the 60th lands exactly on one second.
	var emitted []float64
	for i := 1; i <= 60; i++ {
		now := start.Add(time.Duration(i) * time.Second / 60)
		if rate, ok := s.Frame(now); ok {
			emitted = append(emitted, rate)
		}
	}
	require.Len(t, emitted, 1)
	assert.InDelta(t, 60.0, emitted[0], 1e-6)

	// Window restarted at the emitting frame.
	rate, ok := s.Frame(start.Add(1500 * time.Millisecond))
	assert.False(t, ok)
	assert.Zero(t, rate)
}

func TestSampler_LongWindowScalesRate(t *testing.T) {
	start := time.Unix(0, 0)
	s := NewSampler(start)

	_, ok := s.Frame(start.Add(500 * time.Millisecond))
	require.False(t, ok)
	rate, ok := s.Frame(start.Add(2 * time.Second))
	require.True(t, ok)
	assert.InDelta(t, 1.0, rate, 1e-9)

	s.Reset(start.Add(10 * time.Second))
	_, ok = s.Frame(start.Add(10*time.Second + 999*time.Millisecond))
	assert.False(t, ok)
}
