// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package advisor

import "math"

// Map configuration limits and defaults.
const (
	MinObjectCount = 0
	MaxObjectCount = 100000

	MinAnimationSpeed = 0.1
	MaxAnimationSpeed = 10.0

	DefaultObjectCount    = 1000
	DefaultAnimationSpeed = 1.0
)

// MapConfig is the map panel configuration of one session.
//
// Description:
//
//	Setters clamp their input instead of rejecting it, so a MapConfig
//	obtained through DefaultMapConfig and the setters is always within
//	limits. The recommended mode is advisory; RenderMode is what the host
//	actually renders with.
//
// Thread Safety: NOT safe for concurrent use.
type MapConfig struct {
	ObjectCount    int        `json:"object_count"`
	RenderMode     RenderMode `json:"render_mode"`
	AnimationSpeed float64    `json:"animation_speed"`
	AutoPan        bool       `json:"auto_pan"`
	ShowFPS        bool       `json:"show_fps"`
}

// DefaultMapConfig returns 1000 objects in DOM mode at normal speed, with
// the FPS display on and auto-pan off.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		ObjectCount:    DefaultObjectCount,
		RenderMode:     ModeDOM,
		AnimationSpeed: DefaultAnimationSpeed,
		ShowFPS:        true,
	}
}

// SetObjectCount sets the object count clamped to [0, 100000].
func (c *MapConfig) SetObjectCount(n int) {
	c.ObjectCount = min(max(n, MinObjectCount), MaxObjectCount)
}

// SetRenderMode sets the rendering mode.
func (c *MapConfig) SetRenderMode(m RenderMode) {
	c.RenderMode = m
}

// SetAnimationSpeed sets the speed multiplier clamped to [0.1, 10].
// NaN resets to the default speed.
func (c *MapConfig) SetAnimationSpeed(speed float64) {
	if math.IsNaN(speed) {
		c.AnimationSpeed = DefaultAnimationSpeed
		return
	}
	c.AnimationSpeed = min(max(speed, MinAnimationSpeed), MaxAnimationSpeed)
}

// ToggleAutoPan flips auto-pan.
func (c *MapConfig) ToggleAutoPan() {
	c.AutoPan = !c.AutoPan
}

// ToggleFPSDisplay flips the FPS overlay.
func (c *MapConfig) ToggleFPSDisplay() {
	c.ShowFPS = !c.ShowFPS
}

// Advice evaluates the advisor policies for the configured object count.
func (c MapConfig) Advice() Advice {
	return Advise(c.ObjectCount)
}
