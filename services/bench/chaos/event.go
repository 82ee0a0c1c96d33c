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

import (
	"fmt"
	"math/rand/v2"
	"time"
)

// -----------------------------------------------------------------------------
// Kind
// -----------------------------------------------------------------------------

// Kind is the category of a synthetic fault event.
type Kind int

const (
	// KindUIGlitch corrupts the appearance of a UI element.
	KindUIGlitch Kind = iota

	// KindInputCorruption delays and perturbs user input.
	KindInputCorruption

	// KindVisualDistortion distorts the rendered scene.
	KindVisualDistortion

	// KindTimeWarp speeds up animation time.
	KindTimeWarp

	numKinds
)

// Kinds lists every kind in declaration order.
var Kinds = [numKinds]Kind{KindUIGlitch, KindInputCorruption, KindVisualDistortion, KindTimeWarp}

// String returns the name of the kind.
func (k Kind) String() string {
	switch k {
	case KindUIGlitch:
		return "ui_glitch"
	case KindInputCorruption:
		return "input_corruption"
	case KindVisualDistortion:
		return "visual_distortion"
	case KindTimeWarp:
		return "time_warp"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	for _, v := range Kinds {
		if v.String() == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// -----------------------------------------------------------------------------
// Event
// -----------------------------------------------------------------------------

// Parameter ranges for generated events.
const (
	// ElementIDRange bounds the numeric suffix of UIGlitch element IDs.
	ElementIDRange = 100

	// MaxDelayMS bounds InputCorruption delays (exclusive).
	MaxDelayMS = 500

	// DistortionGlitch is the only distortion generated.
	DistortionGlitch = "glitch"

	// MinSpeedMultiplier and MaxSpeedMultiplier bound TimeWarp events; the
	// upper bound is exclusive.
	MinSpeedMultiplier = 1.0
	MaxSpeedMultiplier = 3.0
)

// Event is one synthetic fault.
//
// Only the fields of the event's Kind are meaningful:
//
//	KindUIGlitch:         ElementID, Severity in [0,1)
//	KindInputCorruption:  DelayMS in [0,500), Noise in [0,1)
//	KindVisualDistortion: Distortion
//	KindTimeWarp:         SpeedMultiplier in [1,3)
type Event struct {
	Kind            Kind      `json:"kind"`
	ElementID       string    `json:"element_id,omitempty"`
	Severity        float64   `json:"severity,omitempty"`
	DelayMS         uint32    `json:"delay_ms,omitempty"`
	Noise           float64   `json:"noise,omitempty"`
	Distortion      string    `json:"distortion,omitempty"`
	SpeedMultiplier float64   `json:"speed_multiplier,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// Describe returns the one-line display string of the event.
func (e Event) Describe() string {
	switch e.Kind {
	case KindUIGlitch:
		return fmt.Sprintf("UI glitch: %s (severity: %.2f)", e.ElementID, e.Severity)
	case KindInputCorruption:
		return fmt.Sprintf("Input delay: %dms (noise: %.2f)", e.DelayMS, e.Noise)
	case KindVisualDistortion:
		return fmt.Sprintf("Visual distortion: %s", e.Distortion)
	case KindTimeWarp:
		return fmt.Sprintf("Time warp: x%.2f", e.SpeedMultiplier)
	default:
		return e.Kind.String()
	}
}

// randomEvent samples a kind uniformly and then its parameters.
func randomEvent(rng *rand.Rand, at time.Time) Event {
	ev := Event{Kind: Kinds[rng.IntN(int(numKinds))], CreatedAt: at}
	switch ev.Kind {
	case KindUIGlitch:
		ev.ElementID = fmt.Sprintf("chaos-element-%d", rng.IntN(ElementIDRange))
		ev.Severity = rng.Float64()
	case KindInputCorruption:
		ev.DelayMS = uint32(rng.IntN(MaxDelayMS))
		ev.Noise = rng.Float64()
	case KindVisualDistortion:
		ev.Distortion = DistortionGlitch
	case KindTimeWarp:
		ev.SpeedMultiplier = MinSpeedMultiplier + rng.Float64()*(MaxSpeedMultiplier-MinSpeedMultiplier)
	}
	return ev
}
