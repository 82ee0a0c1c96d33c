// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package fps provides streaming frame-rate statistics for a map rendering
// session.
//
// # Overview
//
// The package is split into three layers:
//
//   - Snapshot: an immutable value holding current/min/max/average. Its
//     Step method is the pure update function; every other type in the
//     package is built on it.
//   - Aggregator: the owner of a Snapshot, recording one sample per
//     sampling window.
//   - Recorder: a benchmark session that gates recording on an explicit
//     start/stop and also keeps a bounded memory-usage series.
//
// Sampler turns raw frame timestamps into the per-second frame-rate
// estimates that Aggregator consumes.
//
// # Classification
//
// Two rule sets classify the running average:
//
//   - Score: four tiers at 55/45/30 (Excellent, Good, Fair, Poor).
//   - Grade: three tiers at 55/30 (Good, OK, Poor).
//
// They agree at the 55 and 30 boundaries. They are kept as separate named
// rule sets because different panels consume them.
//
// # Input Policy
//
// NaN, infinite and negative samples are rejected with ErrInvalidInput and
// leave the aggregate unchanged.
//
// # Thread Safety
//
// Snapshot is a value and safe to share. Aggregator, Recorder and Sampler
// are NOT safe for concurrent use; the owning session serializes access.
package fps
