// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package latency

import "fmt"

// Snapshot holds latency statistics in milliseconds.
//
// For any non-empty snapshot Min <= P50 <= P95 <= P99 <= Max.
type Snapshot struct {
	Count int     `json:"count"`
	Avg   float64 `json:"avg_ms"`
	Min   float64 `json:"min_ms"`
	Max   float64 `json:"max_ms"`
	P50   float64 `json:"p50_ms"`
	P95   float64 `json:"p95_ms"`
	P99   float64 `json:"p99_ms"`
}

// MeetsTarget reports whether P95 is at or below targetMS.
//
// An empty snapshot has P95 == 0 and therefore meets any non-negative
// target.
func (s Snapshot) MeetsTarget(targetMS float64) bool {
	return s.P95 <= targetMS
}

// Report formats the snapshot as a multi-line text report.
func (s Snapshot) Report() string {
	return fmt.Sprintf("Input Latency Report (n=%d)\n"+
		"Average: %.1fms\n"+
		"Min: %.1fms\n"+
		"Max: %.1fms\n"+
		"P50: %.1fms\n"+
		"P95: %.1fms\n"+
		"P99: %.1fms",
		s.Count, s.Avg, s.Min, s.Max, s.P50, s.P95, s.P99)
}
