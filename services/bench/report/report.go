// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package report assembles the read-only view of a benchmark session that
// the display layer, the HTTP API and the telemetry sinks consume.
package report

import (
	"time"

	"github.com/AleutianAI/mapbench/services/bench/advisor"
	"github.com/AleutianAI/mapbench/services/bench/chaos"
	"github.com/AleutianAI/mapbench/services/bench/fps"
	"github.com/AleutianAI/mapbench/services/bench/latency"
)

// RecentEventCount is the number of chaos events listed in a report.
const RecentEventCount = 10

// Report is an immutable snapshot of every engine of one session.
//
// Description:
//
//	A Report is produced under the session lock and never shares memory
//	with the engines, so it can be serialized, rendered or exported
//	without further synchronization.
//
// Thread Safety: Immutable after creation; safe for concurrent read access.
type Report struct {
	// SessionID identifies the session.
	SessionID string `json:"session_id"`

	// GeneratedAt is when the snapshot was taken.
	GeneratedAt time.Time `json:"generated_at"`

	// Map is the map panel configuration.
	Map advisor.MapConfig `json:"map"`

	// Advice is the recommendation for the configured object count.
	Advice advisor.Advice `json:"advice"`

	// FPS holds frame-rate statistics of the current recording.
	FPS FPSSection `json:"fps"`

	// Latency holds input-latency statistics and the SLA verdict.
	Latency LatencySection `json:"latency"`

	// Chaos holds the chaos engine summary.
	Chaos ChaosSection `json:"chaos"`

	// Load is the initial page-load timing, if the host reported one.
	Load *LoadTiming `json:"load,omitempty"`
}

// FPSSection is the frame-rate part of a Report.
type FPSSection struct {
	Snapshot        fps.Snapshot `json:"snapshot"`
	Score           fps.Score    `json:"score"`
	Grade           fps.Grade    `json:"grade"`
	Recording       bool         `json:"recording"`
	MemoryMeanMB    float64      `json:"memory_mean_mb"`
	MemorySamples   int          `json:"memory_samples"`
	Recommendations []string     `json:"recommendations"`
}

// LatencySection is the latency part of a Report.
type LatencySection struct {
	Snapshot    latency.Snapshot `json:"snapshot"`
	TargetMS    float64          `json:"target_ms"`
	MeetsTarget bool             `json:"meets_target"`
}

// ChaosSection is the chaos part of a Report.
type ChaosSection struct {
	Active    bool        `json:"active"`
	Intensity uint8       `json:"intensity"`
	Stats     chaos.Stats `json:"stats"`

	// Recent lists the display strings of the newest events, newest first.
	Recent []string `json:"recent"`
}

// NewFPSSection derives the frame-rate section from a recorder.
func NewFPSSection(r *fps.Recorder) FPSSection {
	snap := r.Snapshot()
	return FPSSection{
		Snapshot:        snap,
		Score:           snap.Score(),
		Grade:           snap.Grade(),
		Recording:       r.IsRecording(),
		MemoryMeanMB:    r.MemoryMean(),
		MemorySamples:   len(r.Memory()),
		Recommendations: r.Recommendations(),
	}
}

// NewLatencySection derives the latency section and its verdict.
func NewLatencySection(t *latency.Tracker, targetMS float64) LatencySection {
	snap := t.Stats()
	return LatencySection{
		Snapshot:    snap,
		TargetMS:    targetMS,
		MeetsTarget: snap.MeetsTarget(targetMS),
	}
}

// NewChaosSection derives the chaos section from an engine.
func NewChaosSection(e *chaos.Engine) ChaosSection {
	recent := e.Recent(RecentEventCount)
	lines := make([]string, len(recent))
	for i, ev := range recent {
		lines[i] = ev.Describe()
	}
	return ChaosSection{
		Active:    e.Active(),
		Intensity: e.Intensity(),
		Stats:     e.Stats(),
		Recent:    lines,
	}
}
