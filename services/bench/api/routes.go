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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// NewRouter returns a gin engine with recovery, tracing and every mapbench
// route registered.
func NewRouter(serviceName string, h *Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	RegisterRoutes(router, h)
	return router
}

// RegisterRoutes registers all mapbench routes with the router.
//
// Service Endpoints:
//
//	GET    /health - Health check
//	GET    /metrics - Prometheus exposition (when configured)
//	GET    /v1/advice?object_count=N - Render mode recommendation
//
// Session Endpoints:
//
//	POST   /v1/sessions - Create a session
//	GET    /v1/sessions - List session IDs
//	GET    /v1/sessions/:id - Session report
//	DELETE /v1/sessions/:id - Close a session
//	GET    /v1/sessions/:id/stream - Websocket report stream
//
// Ingest Endpoints (rate limited per session):
//
//	POST   /v1/sessions/:id/fps
//	POST   /v1/sessions/:id/memory
//	POST   /v1/sessions/:id/latency
//	POST   /v1/sessions/:id/latency/start
//	POST   /v1/sessions/:id/latency/end
//
// Control Endpoints:
//
//	POST   /v1/sessions/:id/load
//	POST   /v1/sessions/:id/recording/start
//	POST   /v1/sessions/:id/recording/stop
//	POST   /v1/sessions/:id/chaos/start
//	POST   /v1/sessions/:id/chaos/stop
//	POST   /v1/sessions/:id/chaos/extreme
//	POST   /v1/sessions/:id/chaos/cycle
//	PUT    /v1/sessions/:id/chaos/intensity
//	PUT    /v1/sessions/:id/config
func RegisterRoutes(router *gin.Engine, h *Handlers) {
	router.Use(requestID)
	router.GET("/health", h.HandleHealth)
	if h.cfg.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(h.cfg.MetricsHandler))
	}

	v1 := router.Group("/v1")
	{
		v1.GET("/advice", h.HandleAdvice)

		v1.POST("/sessions", h.HandleCreateSession)
		v1.GET("/sessions", h.HandleListSessions)
		v1.DELETE("/sessions/:id", h.HandleDeleteSession)

		sess := v1.Group("/sessions/:id", h.loadSession)
		{
			sess.GET("", h.HandleGetReport)
			sess.GET("/stream", h.HandleStream)

			ingest := sess.Group("", h.limitIngest)
			{
				ingest.POST("/fps", h.HandleFPS)
				ingest.POST("/memory", h.HandleMemory)
				ingest.POST("/latency", h.HandleLatency)
				ingest.POST("/latency/start", h.HandleLatencyStart)
				ingest.POST("/latency/end", h.HandleLatencyEnd)
			}

			sess.POST("/load", h.HandleLoadTiming)
			sess.POST("/recording/start", h.HandleRecordingStart)
			sess.POST("/recording/stop", h.HandleRecordingStop)

			sess.POST("/chaos/start", h.HandleChaosStart)
			sess.POST("/chaos/stop", h.HandleChaosStop)
			sess.POST("/chaos/extreme", h.HandleChaosExtreme)
			sess.POST("/chaos/cycle", h.HandleChaosCycle)
			sess.PUT("/chaos/intensity", h.HandleChaosIntensity)

			sess.PUT("/config", h.HandleConfig)
		}
	}
}
