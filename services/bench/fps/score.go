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

import "fmt"

// Thresholds on the average frame rate, in frames per second.
const (
	// ExcellentThreshold is the lower bound of ScoreExcellent and GradeGood.
	ExcellentThreshold = 55.0

	// GoodThreshold is the lower bound of ScoreGood. The three-tier grade
	// has no boundary here.
	GoodThreshold = 45.0

	// FairThreshold is the lower bound of ScoreFair and GradeOK.
	FairThreshold = 30.0
)

// -----------------------------------------------------------------------------
// Four-tier score
// -----------------------------------------------------------------------------

// Score is the four-tier performance classification.
type Score int

const (
	// ScorePoor is an average below FairThreshold.
	ScorePoor Score = iota
	// ScoreFair is an average in [FairThreshold, GoodThreshold).
	ScoreFair
	// ScoreGood is an average in [GoodThreshold, ExcellentThreshold).
	ScoreGood
	// ScoreExcellent is an average at or above ExcellentThreshold.
	ScoreExcellent
)

// ScoreFor classifies an average frame rate.
func ScoreFor(average float64) Score {
	switch {
	case average >= ExcellentThreshold:
		return ScoreExcellent
	case average >= GoodThreshold:
		return ScoreGood
	case average >= FairThreshold:
		return ScoreFair
	default:
		return ScorePoor
	}
}

// String returns the machine-readable name of the score.
func (s Score) String() string {
	switch s {
	case ScoreExcellent:
		return "excellent"
	case ScoreGood:
		return "good"
	case ScoreFair:
		return "fair"
	case ScorePoor:
		return "poor"
	default:
		return fmt.Sprintf("score(%d)", int(s))
	}
}

// Color returns the display colour for the score as a hex string.
func (s Score) Color() string {
	switch s {
	case ScoreExcellent:
		return "#4CAF50"
	case ScoreGood:
		return "#8BC34A"
	case ScoreFair:
		return "#FF9800"
	default:
		return "#f44336"
	}
}

// Label returns the human-readable label for the score.
func (s Score) Label() string {
	switch s {
	case ScoreExcellent:
		return "Excellent"
	case ScoreGood:
		return "Good"
	case ScoreFair:
		return "Fair"
	default:
		return "Needs improvement"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Score) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Score) UnmarshalText(text []byte) error {
	for _, v := range []Score{ScorePoor, ScoreFair, ScoreGood, ScoreExcellent} {
		if v.String() == string(text) {
			*s = v
			return nil
		}
	}
	return fmt.Errorf("unknown score %q", text)
}

// -----------------------------------------------------------------------------
// Three-tier grade
// -----------------------------------------------------------------------------

// Grade is the three-tier performance classification used by the compact
// benchmark panel.
type Grade int

const (
	// GradePoor is an average below FairThreshold.
	GradePoor Grade = iota
	// GradeOK is an average in [FairThreshold, ExcellentThreshold).
	GradeOK
	// GradeGood is an average at or above ExcellentThreshold.
	GradeGood
)

// GradeFor classifies an average frame rate.
func GradeFor(average float64) Grade {
	switch {
	case average >= ExcellentThreshold:
		return GradeGood
	case average >= FairThreshold:
		return GradeOK
	default:
		return GradePoor
	}
}

// String returns the machine-readable name of the grade.
func (g Grade) String() string {
	switch g {
	case GradeGood:
		return "good"
	case GradeOK:
		return "ok"
	case GradePoor:
		return "poor"
	default:
		return fmt.Sprintf("grade(%d)", int(g))
	}
}

// Color returns the display colour for the grade as a hex string.
func (g Grade) Color() string {
	switch g {
	case GradeGood:
		return "#4CAF50"
	case GradeOK:
		return "#FF9800"
	default:
		return "#f44336"
	}
}

// Label returns the human-readable label for the grade.
func (g Grade) Label() string {
	switch g {
	case GradeGood:
		return "Good"
	case GradeOK:
		return "OK"
	default:
		return "Needs improvement"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (g Grade) MarshalText() ([]byte, error) {
	return []byte(g.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (g *Grade) UnmarshalText(text []byte) error {
	for _, v := range []Grade{GradePoor, GradeOK, GradeGood} {
		if v.String() == string(text) {
			*g = v
			return nil
		}
	}
	return fmt.Errorf("unknown grade %q", text)
}
