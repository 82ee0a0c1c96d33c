// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package chaos

import "slices"

// KindCount is the number of retained events of one kind.
type KindCount struct {
	Kind  Kind `json:"kind"`
	Count int  `json:"count"`
}

// Stats summarizes the event log.
type Stats struct {
	// Total is the number of retained events.
	Total int `json:"total"`

	// TotalEver is the number of events spawned since creation.
	TotalEver int `json:"total_ever"`

	// ByKind counts retained events per kind, sorted by descending count.
	// Kinds with no retained events are omitted.
	ByKind []KindCount `json:"by_kind"`

	// EventsPerSecond is TotalEver divided by the seconds since Start.
	EventsPerSecond float64 `json:"events_per_second"`
}

// Stats computes per-kind counts and the event rate.
//
// Description:
//
//	ByKind is sorted by descending count; ties keep kind declaration
//	order. The rate divides TotalEver by the seconds elapsed since the
//	last Start. If the engine was never started, or no time
//	has elapsed, the divisor defaults to 1.0 second, which overstates the
//	rate early in a session.
func (e *Engine) Stats() Stats {
	var counts [numKinds]int
	for ev := range e.events.All() {
		if ev.Kind >= 0 && ev.Kind < numKinds {
			counts[ev.Kind]++
		}
	}

	byKind := make([]KindCount, 0, numKinds)
	for _, k := range Kinds {
		if counts[k] > 0 {
			byKind = append(byKind, KindCount{Kind: k, Count: counts[k]})
		}
	}
	slices.SortStableFunc(byKind, func(a, b KindCount) int {
		return b.Count - a.Count
	})

	elapsed := 1.0
	if !e.startTime.IsZero() {
		if s := e.now().Sub(e.startTime).Seconds(); s > 0 {
			elapsed = s
		}
	}

	return Stats{
		Total:           e.events.Len(),
		TotalEver:       e.totalEver,
		ByKind:          byKind,
		EventsPerSecond: float64(e.totalEver) / elapsed,
	}
}
