// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"github.com/AleutianAI/mapbench/services/bench/advisor"
	"github.com/AleutianAI/mapbench/services/bench/chaos"
	"github.com/AleutianAI/mapbench/services/bench/report"
)

// =============================================================================
// Requests
// =============================================================================

// CreateSessionRequest is the body of POST /v1/sessions. Every field is
// optional.
type CreateSessionRequest struct {
	// Mode is the initial render mode: DOM, Canvas or WebGL.
	Mode string `json:"mode"`

	// Intensity is the initial chaos intensity, clamped to [1, 10].
	Intensity *int `json:"intensity"`

	// ObjectCount is the initial marker count.
	ObjectCount *int `json:"object_count" binding:"omitempty,min=0,max=100000"`

	// TargetMS overrides the server's latency target for this session.
	TargetMS *float64 `json:"target_ms" binding:"omitempty,gt=0"`
}

// ValueRequest carries one sample for the fps, memory and latency routes.
type ValueRequest struct {
	Value *float64 `json:"value" binding:"required"`
}

// IntensityRequest is the body of PUT /v1/sessions/:id/chaos/intensity.
type IntensityRequest struct {
	Intensity *int `json:"intensity" binding:"required"`
}

// ConfigRequest is the body of PUT /v1/sessions/:id/config. Nil fields are
// left unchanged.
type ConfigRequest struct {
	ObjectCount    *int     `json:"object_count"`
	RenderMode     *string  `json:"render_mode"`
	AnimationSpeed *float64 `json:"animation_speed"`
	AutoPan        *bool    `json:"auto_pan"`
	ShowFPS        *bool    `json:"show_fps"`
}

// AdviceQuery is the query of GET /v1/advice.
type AdviceQuery struct {
	ObjectCount *int `form:"object_count" binding:"required"`
}

// =============================================================================
// Responses
// =============================================================================

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int    `json:"sessions"`
}

// CreateSessionResponse is the body of POST /v1/sessions.
type CreateSessionResponse struct {
	SessionID string         `json:"session_id"`
	Report    *report.Report `json:"report"`
}

// ListSessionsResponse is the body of GET /v1/sessions.
type ListSessionsResponse struct {
	Sessions []string `json:"sessions"`
}

// AcceptedResponse reports whether a sample was kept.
type AcceptedResponse struct {
	Accepted bool `json:"accepted"`
}

// IntensityResponse carries the stored chaos intensity.
type IntensityResponse struct {
	Intensity uint8 `json:"intensity"`
}

// ChaosResponse is returned by the chaos control routes.
type ChaosResponse struct {
	State chaos.State `json:"state"`
}

// ConfigResponse is the body of PUT /v1/sessions/:id/config.
type ConfigResponse struct {
	Map    advisor.MapConfig `json:"map"`
	Advice advisor.Advice    `json:"advice"`
}
