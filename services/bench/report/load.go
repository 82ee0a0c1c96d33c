// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package report

import (
	"fmt"
	"strings"
)

// LoadTargetMS is the total initial-load budget on a 4G connection.
const LoadTargetMS = 3000.0

// LoadTiming is the initial page-load timing reported by the host, in
// milliseconds relative to navigation start unless noted.
type LoadTiming struct {
	DOMContentLoadedMS     float64 `json:"dom_content_loaded_ms" validate:"gte=0"`
	FirstContentfulPaintMS float64 `json:"first_contentful_paint_ms" validate:"gte=0"`
	LoadCompleteMS         float64 `json:"load_complete_ms" validate:"gte=0"`

	// WasmInitMS is a duration, not an offset.
	WasmInitMS  float64 `json:"wasm_init_ms" validate:"gte=0"`
	TotalLoadMS float64 `json:"total_load_ms" validate:"gte=0"`
}

// MeetsTarget reports whether the total load time is strictly below
// LoadTargetMS.
func (l LoadTiming) MeetsTarget() bool {
	return l.TotalLoadMS < LoadTargetMS
}

// Format renders the load timing as a text report.
func (l LoadTiming) Format() string {
	status := "target met"
	if !l.MeetsTarget() {
		status = "target missed"
	}

	var b strings.Builder
	b.WriteString("=== Initial Load Report ===\n")
	fmt.Fprintf(&b, "DOM Content Loaded: %.0fms\n", l.DOMContentLoadedMS)
	fmt.Fprintf(&b, "First Contentful Paint: %.0fms\n", l.FirstContentfulPaintMS)
	fmt.Fprintf(&b, "Page Load Complete: %.0fms\n", l.LoadCompleteMS)
	fmt.Fprintf(&b, "WASM Init Time: %.0fms\n", l.WasmInitMS)
	fmt.Fprintf(&b, "Total Load Time: %.0fms\n", l.TotalLoadMS)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Target on 4G: < %.0fms\n", LoadTargetMS)
	fmt.Fprintf(&b, "Status: %s", status)
	return b.String()
}
