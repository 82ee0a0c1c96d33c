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

import "time"

// SampleWindow is the minimum time a Sampler counts frames before it emits
// an estimate.
const SampleWindow = time.Second

// Sampler converts frame timestamps into frame-rate estimates.
//
// Description:
//
//	Frame counts frames until at least SampleWindow has elapsed since the
//	window start, then emits frames*1000/elapsed_ms and starts a new window
//	at that frame's timestamp. Between emissions Frame returns ok=false.
//
// Example:
//
//	s := fps.NewSampler(time.Now())
//	for now := range frames {
//	    if rate, ok := s.Frame(now); ok {
//	        _ = agg.Record(rate)
//	    }
//	}
//
// Thread Safety: NOT safe for concurrent use.
type Sampler struct {
	windowStart time.Time
	frames      int
}

// NewSampler starts the first window at start.
func NewSampler(start time.Time) *Sampler {
	return &Sampler{windowStart: start}
}

// Frame counts one frame rendered at now.
//
// Outputs:
//   - float64: Frames per second over the closed window.
//   - bool: True only when a window closed on this frame.
func (s *Sampler) Frame(now time.Time) (float64, bool) {
	s.frames++

	elapsed := now.Sub(s.windowStart)
	if elapsed < SampleWindow {
		return 0, false
	}

	ms := float64(elapsed) / float64(time.Millisecond)
	rate := float64(s.frames) * 1000 / ms

	s.frames = 0
	s.windowStart = now
	return rate, true
}

// Reset discards the current window and starts a new one at start.
func (s *Sampler) Reset(start time.Time) {
	s.windowStart = start
	s.frames = 0
}
