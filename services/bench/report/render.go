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

	"github.com/charmbracelet/lipgloss"
)

// Palette for the terminal report.
var (
	colorTitle = lipgloss.Color("#2CD7C7")
	colorMuted = lipgloss.Color("#2C4A54")
	colorPass  = lipgloss.Color("#4CAF50")
	colorFail  = lipgloss.Color("#f44336")
	colorBox   = lipgloss.Color("#16858E")
)

var styles = struct {
	Title   lipgloss.Style
	Heading lipgloss.Style
	Muted   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(colorTitle),
	Heading: lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(colorMuted),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorBox).
		Padding(0, 1),
}

// Render formats r for a terminal.
//
// When color is false the plain Text form is returned, which is also what
// non-TTY output and logs use. Score and grade colours come from the
// classifier policy data.
func Render(r *Report, color bool) string {
	if !color {
		return Text(r)
	}

	score := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(r.FPS.Score.Color()))
	grade := lipgloss.NewStyle().Foreground(lipgloss.Color(r.FPS.Grade.Color()))

	verdict := lipgloss.NewStyle().Foreground(colorPass).Render("PASS")
	if !r.Latency.MeetsTarget {
		verdict = lipgloss.NewStyle().Foreground(colorFail).Render("FAIL")
	}

	var b strings.Builder
	b.WriteString(styles.Title.Render("Map Benchmark " + r.SessionID))
	b.WriteString("\n\n")

	b.WriteString(styles.Heading.Render("Frame rate"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  %s  %s\n",
		fpsLine(r),
		score.Render(r.FPS.Score.Label()),
		grade.Render("("+r.FPS.Grade.Label()+")"))
	for _, rec := range r.FPS.Recommendations {
		fmt.Fprintf(&b, "  %s %s\n", styles.Muted.Render("•"), rec)
	}
	b.WriteString("\n")

	b.WriteString(styles.Heading.Render("Input latency"))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s  P95 target %.0fms %s\n", latencyLine(r), r.Latency.TargetMS, verdict)
	b.WriteString("\n")

	b.WriteString(styles.Heading.Render("Chaos"))
	b.WriteString("\n")
	b.WriteString(chaosLine(r))
	b.WriteString("\n")
	for _, line := range r.Chaos.Recent {
		fmt.Fprintf(&b, "  %s\n", styles.Muted.Render(line))
	}
	b.WriteString("\n")
	b.WriteString(adviceLine(r))
	if r.Load != nil {
		b.WriteString("\n\n")
		b.WriteString(styles.Muted.Render(r.Load.Format()))
	}

	return styles.Box.Render(b.String())
}

// Text formats r without styling.
func Text(r *Report) string {
	verdict := "PASS"
	if !r.Latency.MeetsTarget {
		verdict = "FAIL"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Map Benchmark %s\n\n", r.SessionID)

	b.WriteString("Frame rate\n")
	fmt.Fprintf(&b, "%s  %s (%s)\n", fpsLine(r), r.FPS.Score.Label(), r.FPS.Grade.Label())
	for _, rec := range r.FPS.Recommendations {
		fmt.Fprintf(&b, "  - %s\n", rec)
	}
	b.WriteString("\n")

	b.WriteString("Input latency\n")
	fmt.Fprintf(&b, "%s  P95 target %.0fms %s\n\n", latencyLine(r), r.Latency.TargetMS, verdict)

	b.WriteString("Chaos\n")
	b.WriteString(chaosLine(r))
	b.WriteString("\n")
	for _, line := range r.Chaos.Recent {
		fmt.Fprintf(&b, "  %s\n", line)
	}
	b.WriteString("\n")
	b.WriteString(adviceLine(r))
	b.WriteString("\n")
	if r.Load != nil {
		b.WriteString("\n")
		b.WriteString(r.Load.Format())
		b.WriteString("\n")
	}
	return b.String()
}

func fpsLine(r *Report) string {
	s := r.FPS.Snapshot
	return fmt.Sprintf("current %.0f  min %.0f  max %.0f  avg %.1f  (n=%d)",
		s.Current, s.Min, s.Max, s.Average, s.SampleCount)
}

func latencyLine(r *Report) string {
	s := r.Latency.Snapshot
	return fmt.Sprintf("n=%d  avg %.1fms  p50 %.1fms  p95 %.1fms  p99 %.1fms",
		s.Count, s.Avg, s.P50, s.P95, s.P99)
}

func chaosLine(r *Report) string {
	state := "idle"
	if r.Chaos.Active {
		state = "active"
	}
	st := r.Chaos.Stats
	return fmt.Sprintf("%s  intensity %d  retained %d  total %d  %.1f events/s",
		state, r.Chaos.Intensity, st.Total, st.TotalEver, st.EventsPerSecond)
}

func adviceLine(r *Report) string {
	line := fmt.Sprintf("Mode %s, recommended %s for %d objects",
		r.Map.RenderMode, r.Advice.Recommended, r.Advice.ObjectCount)
	if r.Advice.HighLoad {
		line += " (high load)"
	}
	return line
}
