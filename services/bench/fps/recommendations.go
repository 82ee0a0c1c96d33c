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

// Recommendation rule thresholds.
const (
	// LowAverageThreshold triggers the reduce-load advice when the average
	// frame rate is strictly below it.
	LowAverageThreshold = 30.0

	// JitterThreshold triggers the jitter advice when Max-Min is strictly
	// above it.
	JitterThreshold = 20.0

	// MemoryThresholdMB triggers the memory advice when the mean of the
	// memory samples is strictly above it.
	MemoryThresholdMB = 100.0
)

// Advisory messages, in rule order.
const (
	AdviceReduceLoad   = "Consider reducing the number of objects."
	AdviceJitter       = "Frame rate fluctuates heavily. Consider optimizing per-frame work."
	AdviceMemory       = "Memory usage is high. Consider removing objects that are no longer needed."
	AdvicePerformingOK = "Performance is good!"
)

// Recommendations evaluates the advisory rule set.
//
// Description:
//
//	Rules are independent and every applicable rule fires, in the fixed
//	order load, jitter, memory. If none fires the single fallback message
//	is returned. The rules are applied literally: an empty snapshot has an
//	average of 0 and therefore triggers the load advice.
//
// Inputs:
//   - snap: Frame-rate aggregate to evaluate.
//   - memoryMB: Memory samples in megabytes. Empty or nil skips the memory
//     rule.
//
// Outputs:
//   - []string: One or more messages. Never empty.
func Recommendations(snap Snapshot, memoryMB []float64) []string {
	var recs []string

	if snap.Average < LowAverageThreshold {
		recs = append(recs, AdviceReduceLoad)
	}
	if snap.Jitter() > JitterThreshold {
		recs = append(recs, AdviceJitter)
	}
	if len(memoryMB) > 0 && mean(memoryMB) > MemoryThresholdMB {
		recs = append(recs, AdviceMemory)
	}

	if len(recs) == 0 {
		recs = append(recs, AdvicePerformingOK)
	}
	return recs
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
