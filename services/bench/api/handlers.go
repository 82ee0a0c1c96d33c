// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package api is the HTTP surface of the mapbench server.
//
// Every session-scoped route resolves the session from the :id path
// parameter. Ingest routes are rate limited per session. Errors are returned
// as ErrorResponse with a status derived from the sentinel errors of the
// bench packages.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/mapbench/pkg/validation"
	"github.com/AleutianAI/mapbench/services/bench/advisor"
	"github.com/AleutianAI/mapbench/services/bench/fps"
	"github.com/AleutianAI/mapbench/services/bench/latency"
	"github.com/AleutianAI/mapbench/services/bench/report"
	"github.com/AleutianAI/mapbench/services/bench/session"
)

// ServiceVersion is reported by GET /health.
const ServiceVersion = "0.1.0"

const sessionKey = "session"

// Config configures Handlers.
type Config struct {
	// Version is reported by /health.
	Version string

	// IngestRate is the sustained per-session sample rate for the ingest
	// routes. Zero disables limiting.
	// Default: 240 per second
	IngestRate rate.Limit

	// IngestBurst is the per-session burst size.
	// Default: 120
	IngestBurst int

	// StreamInterval is the period between websocket report frames.
	// Default: 500ms
	StreamInterval time.Duration

	// MetricsHandler serves GET /metrics. Nil disables the route.
	MetricsHandler http.Handler

	// Logger is the request logger.
	// Default: slog.Default()
	Logger *slog.Logger
}

// DefaultConfig returns the default handler configuration.
func DefaultConfig() Config {
	return Config{
		Version:        ServiceVersion,
		IngestRate:     240,
		IngestBurst:    120,
		StreamInterval: 500 * time.Millisecond,
		Logger:         slog.Default(),
	}
}

// Handlers holds the HTTP handlers.
//
// Thread Safety: Safe for concurrent use.
type Handlers struct {
	registry *session.Registry
	cfg      Config
	validate *validator.Validate

	limitMu  sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHandlers creates handlers serving the sessions of registry.
func NewHandlers(registry *session.Registry, cfg Config) *Handlers {
	def := DefaultConfig()
	if cfg.Version == "" {
		cfg.Version = def.Version
	}
	if cfg.IngestRate > 0 && cfg.IngestBurst <= 0 {
		cfg.IngestBurst = def.IngestBurst
	}
	if cfg.StreamInterval <= 0 {
		cfg.StreamInterval = def.StreamInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = def.Logger
	}
	return &Handlers{
		registry: registry,
		cfg:      cfg,
		validate: validator.New(),
		limiters: make(map[string]*rate.Limiter),
	}
}

// =============================================================================
// Middleware
// =============================================================================

const requestIDKey = "request_id"

func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

// requestID echoes or assigns X-Request-ID on every response.
func requestID(c *gin.Context) {
	c.Set(requestIDKey, getOrCreateRequestID(c))
	c.Next()
}

func (h *Handlers) logger(c *gin.Context, handler string) *slog.Logger {
	return h.cfg.Logger.With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler))
}

// loadSession resolves :id and stores the session in the context.
func (h *Handlers) loadSession(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateSessionID(id); err != nil {
		h.fail(c, err)
		c.Abort()
		return
	}
	s, err := h.registry.Get(id)
	if err != nil {
		h.fail(c, err)
		c.Abort()
		return
	}
	c.Set(sessionKey, s)
	c.Next()
}

// limitIngest rejects ingest requests above the session's rate.
func (h *Handlers) limitIngest(c *gin.Context) {
	if h.cfg.IngestRate <= 0 {
		c.Next()
		return
	}
	if !h.limiter(c.Param("id")).Allow() {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "ingest rate exceeded",
			Code:  "RATE_LIMITED",
		})
		return
	}
	c.Next()
}

func (h *Handlers) limiter(id string) *rate.Limiter {
	h.limitMu.Lock()
	defer h.limitMu.Unlock()
	l, ok := h.limiters[id]
	if !ok {
		l = rate.NewLimiter(h.cfg.IngestRate, h.cfg.IngestBurst)
		h.limiters[id] = l
	}
	return l
}

func (h *Handlers) forgetLimiter(id string) {
	h.limitMu.Lock()
	defer h.limitMu.Unlock()
	delete(h.limiters, id)
}

func current(c *gin.Context) *session.Session {
	return c.MustGet(sessionKey).(*session.Session)
}

// =============================================================================
// Errors
// =============================================================================

// statusFor maps an error to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, fps.ErrInvalidInput), errors.Is(err, latency.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, validation.ErrInvalidIdentifier):
		return http.StatusBadRequest, "INVALID_SESSION_ID"
	case errors.Is(err, advisor.ErrUnknownMode):
		return http.StatusBadRequest, "UNKNOWN_MODE"
	case errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound, "SESSION_NOT_FOUND"
	case errors.Is(err, session.ErrSessionClosed):
		return http.StatusGone, "SESSION_CLOSED"
	case errors.Is(err, session.ErrRegistryClosed):
		return http.StatusServiceUnavailable, "SHUTTING_DOWN"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.cfg.Logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Error: err.Error(),
		Code:  "INVALID_REQUEST",
	})
}

// =============================================================================
// Service
// =============================================================================

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Version:  h.cfg.Version,
		Sessions: h.registry.Len(),
	})
}

// HandleAdvice handles GET /v1/advice?object_count=N.
//
// Response:
//
//	200 OK: advisor.Advice
//	400 Bad Request: missing or negative object_count
func (h *Handlers) HandleAdvice(c *gin.Context) {
	var q AdviceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		badRequest(c, err)
		return
	}
	if *q.ObjectCount < 0 {
		badRequest(c, errors.New("object_count must be >= 0"))
		return
	}
	c.JSON(http.StatusOK, advisor.Advise(*q.ObjectCount))
}

// =============================================================================
// Sessions
// =============================================================================

// HandleCreateSession handles POST /v1/sessions.
//
// Response:
//
//	201 Created: CreateSessionResponse
//	400 Bad Request: invalid body or unknown mode
//	503 Service Unavailable: server shutting down
func (h *Handlers) HandleCreateSession(c *gin.Context) {
	logger := h.logger(c, "HandleCreateSession")

	var req CreateSessionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.Warn("Invalid request body", "error", err)
			badRequest(c, err)
			return
		}
	}

	m := advisor.DefaultMapConfig()
	if req.Mode != "" {
		mode, err := advisor.ParseRenderMode(req.Mode)
		if err != nil {
			h.fail(c, err)
			return
		}
		m.SetRenderMode(mode)
	}
	if req.ObjectCount != nil {
		m.SetObjectCount(*req.ObjectCount)
	}

	opts := []session.Option{session.WithMap(m)}
	if req.Intensity != nil {
		opts = append(opts, session.WithIntensity(*req.Intensity))
	}
	if req.TargetMS != nil {
		opts = append(opts, session.WithTarget(*req.TargetMS))
	}

	s, err := h.registry.Create(opts...)
	if err != nil {
		h.fail(c, err)
		return
	}
	r, err := s.Snapshot()
	if err != nil {
		h.fail(c, err)
		return
	}

	logger.Info("Session created", "session_id", s.ID(), "mode", m.RenderMode.String())
	c.JSON(http.StatusCreated, CreateSessionResponse{SessionID: s.ID(), Report: r})
}

// HandleListSessions handles GET /v1/sessions.
func (h *Handlers) HandleListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, ListSessionsResponse{Sessions: h.registry.IDs()})
}

// HandleGetReport handles GET /v1/sessions/:id.
//
// With ?format=text the plain-text report is returned instead of JSON.
func (h *Handlers) HandleGetReport(c *gin.Context) {
	r, err := current(c).Report(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if strings.EqualFold(c.Query("format"), "text") {
		c.String(http.StatusOK, report.Text(r))
		return
	}
	c.JSON(http.StatusOK, r)
}

// HandleDeleteSession handles DELETE /v1/sessions/:id.
func (h *Handlers) HandleDeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := validation.ValidateSessionID(id); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.registry.Remove(id); err != nil {
		h.fail(c, err)
		return
	}
	h.forgetLimiter(id)
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Ingest
// =============================================================================

func bindValue(c *gin.Context) (float64, bool) {
	var req ValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return 0, false
	}
	return *req.Value, true
}

// HandleFPS handles POST /v1/sessions/:id/fps. Samples are only kept while
// recording; the response reports whether this one was.
func (h *Handlers) HandleFPS(c *gin.Context) {
	v, ok := bindValue(c)
	if !ok {
		return
	}
	accepted, err := current(c).RecordFPS(v)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AcceptedResponse{Accepted: accepted})
}

// HandleMemory handles POST /v1/sessions/:id/memory.
func (h *Handlers) HandleMemory(c *gin.Context) {
	v, ok := bindValue(c)
	if !ok {
		return
	}
	accepted, err := current(c).RecordMemory(v)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AcceptedResponse{Accepted: accepted})
}

// HandleLatency handles POST /v1/sessions/:id/latency.
func (h *Handlers) HandleLatency(c *gin.Context) {
	v, ok := bindValue(c)
	if !ok {
		return
	}
	if err := current(c).AddLatency(v); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AcceptedResponse{Accepted: true})
}

// HandleLatencyStart handles POST /v1/sessions/:id/latency/start.
func (h *Handlers) HandleLatencyStart(c *gin.Context) {
	if err := current(c).MarkLatencyStart(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleLatencyEnd handles POST /v1/sessions/:id/latency/end. Accepted is
// false when no start was pending.
func (h *Handlers) HandleLatencyEnd(c *gin.Context) {
	recorded, err := current(c).MarkLatencyEnd()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AcceptedResponse{Accepted: recorded})
}

// HandleLoadTiming handles POST /v1/sessions/:id/load.
func (h *Handlers) HandleLoadTiming(c *gin.Context) {
	var req report.LoadTiming
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		badRequest(c, err)
		return
	}
	if err := current(c).SetLoadTiming(req); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Recording
// =============================================================================

// HandleRecordingStart handles POST /v1/sessions/:id/recording/start.
func (h *Handlers) HandleRecordingStart(c *gin.Context) {
	if err := current(c).StartRecording(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// HandleRecordingStop handles POST /v1/sessions/:id/recording/stop.
func (h *Handlers) HandleRecordingStop(c *gin.Context) {
	if err := current(c).StopRecording(); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// =============================================================================
// Chaos
// =============================================================================

func (h *Handlers) chaosState(c *gin.Context, s *session.Session) {
	st, err := s.ChaosState()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ChaosResponse{State: st})
}

// HandleChaosStart handles POST /v1/sessions/:id/chaos/start.
func (h *Handlers) HandleChaosStart(c *gin.Context) {
	s := current(c)
	if err := s.StartChaos(); err != nil {
		h.fail(c, err)
		return
	}
	h.chaosState(c, s)
}

// HandleChaosStop handles POST /v1/sessions/:id/chaos/stop.
func (h *Handlers) HandleChaosStop(c *gin.Context) {
	s := current(c)
	if err := s.StopChaos(); err != nil {
		h.fail(c, err)
		return
	}
	h.chaosState(c, s)
}

// HandleChaosExtreme handles POST /v1/sessions/:id/chaos/extreme.
func (h *Handlers) HandleChaosExtreme(c *gin.Context) {
	s := current(c)
	h.logger(c, "HandleChaosExtreme").Warn("Extreme chaos test requested", "session_id", s.ID())
	if err := s.ExtremeTest(); err != nil {
		h.fail(c, err)
		return
	}
	h.chaosState(c, s)
}

// HandleChaosIntensity handles PUT /v1/sessions/:id/chaos/intensity. The
// value is clamped to [1, 10].
func (h *Handlers) HandleChaosIntensity(c *gin.Context) {
	var req IntensityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	v, err := current(c).SetIntensity(*req.Intensity)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, IntensityResponse{Intensity: v})
}

// HandleChaosCycle handles POST /v1/sessions/:id/chaos/cycle.
func (h *Handlers) HandleChaosCycle(c *gin.Context) {
	v, err := current(c).CycleIntensity()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, IntensityResponse{Intensity: v})
}

// =============================================================================
// Map configuration
// =============================================================================

// HandleConfig handles PUT /v1/sessions/:id/config.
//
// Out-of-range values are clamped. An unknown render mode is rejected
// before anything is applied.
func (h *Handlers) HandleConfig(c *gin.Context) {
	var req ConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	var mode *advisor.RenderMode
	if req.RenderMode != nil {
		m, err := advisor.ParseRenderMode(*req.RenderMode)
		if err != nil {
			h.fail(c, err)
			return
		}
		mode = &m
	}

	m, err := current(c).Configure(func(cfg *advisor.MapConfig) {
		if req.ObjectCount != nil {
			cfg.SetObjectCount(*req.ObjectCount)
		}
		if mode != nil {
			cfg.SetRenderMode(*mode)
		}
		if req.AnimationSpeed != nil {
			cfg.SetAnimationSpeed(*req.AnimationSpeed)
		}
		if req.AutoPan != nil && *req.AutoPan != cfg.AutoPan {
			cfg.ToggleAutoPan()
		}
		if req.ShowFPS != nil && *req.ShowFPS != cfg.ShowFPS {
			cfg.ToggleFPSDisplay()
		}
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ConfigResponse{Map: m, Advice: m.Advice()})
}
