// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package advisor maps marker load to a recommended rendering strategy.
//
// The mode breakpoints (1000, 10000) and the high-load breakpoint (5000)
// are independent policies and deliberately do not coincide.
package advisor

import (
	"errors"
	"fmt"
	"strings"
)

// Breakpoints on the object count.
const (
	// DOMLimit is the largest count recommended for DOM rendering.
	DOMLimit = 1000

	// CanvasLimit is the largest count recommended for Canvas rendering.
	CanvasLimit = 10000

	// HighLoadThreshold is the count above which load is considered high.
	HighLoadThreshold = 5000
)

// ErrUnknownMode is returned when parsing an unrecognized mode name.
var ErrUnknownMode = errors.New("unknown render mode")

// RenderMode is a rendering strategy, ordered by capacity.
type RenderMode int

const (
	// ModeDOM renders one DOM element per marker.
	ModeDOM RenderMode = iota
	// ModeCanvas draws markers on a 2D canvas.
	ModeCanvas
	// ModeWebGL draws markers with WebGL.
	ModeWebGL
)

// Modes lists every mode in capacity order.
var Modes = []RenderMode{ModeDOM, ModeCanvas, ModeWebGL}

// String returns the display name of the mode.
func (m RenderMode) String() string {
	switch m {
	case ModeDOM:
		return "DOM"
	case ModeCanvas:
		return "Canvas"
	case ModeWebGL:
		return "WebGL"
	default:
		return fmt.Sprintf("RenderMode(%d)", int(m))
	}
}

// ParseRenderMode parses a mode name case-insensitively.
func ParseRenderMode(s string) (RenderMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dom":
		return ModeDOM, nil
	case "canvas":
		return ModeCanvas, nil
	case "webgl":
		return ModeWebGL, nil
	default:
		return ModeDOM, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m RenderMode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *RenderMode) UnmarshalText(text []byte) error {
	parsed, err := ParseRenderMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Recommend returns the rendering strategy for objectCount markers.
//
//	[0, 1000]      DOM
//	(1000, 10000]  Canvas
//	(10000, inf)   WebGL
//
// Negative counts are treated as an empty map and return DOM.
func Recommend(objectCount int) RenderMode {
	switch {
	case objectCount <= DOMLimit:
		return ModeDOM
	case objectCount <= CanvasLimit:
		return ModeCanvas
	default:
		return ModeWebGL
	}
}

// IsHighLoad reports whether objectCount is above HighLoadThreshold.
func IsHighLoad(objectCount int) bool {
	return objectCount > HighLoadThreshold
}

// Advice is the combined recommendation for one object count.
type Advice struct {
	ObjectCount int        `json:"object_count"`
	Recommended RenderMode `json:"recommended_mode"`
	HighLoad    bool       `json:"high_load"`
}

// Advise evaluates both policies for objectCount.
func Advise(objectCount int) Advice {
	return Advice{
		ObjectCount: objectCount,
		Recommended: Recommend(objectCount),
		HighLoad:    IsHighLoad(objectCount),
	}
}
