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
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/mapbench/services/bench/advisor"
	"github.com/AleutianAI/mapbench/services/bench/chaos"
	"github.com/AleutianAI/mapbench/services/bench/report"
	"github.com/AleutianAI/mapbench/services/bench/session"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	t        *testing.T
	registry *session.Registry
	handlers *Handlers
	router   *gin.Engine
}

func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()
	reg := session.NewRegistry(nil, session.WithManualChaos(), session.WithSeed(3))
	t.Cleanup(func() { _ = reg.Close() })

	cfg := DefaultConfig()
	cfg.StreamInterval = 10 * time.Millisecond
	for _, m := range mutate {
		m(&cfg)
	}
	h := NewHandlers(reg, cfg)
	router := gin.New()
	RegisterRoutes(router, h)
	return &testServer{t: t, registry: reg, handlers: h, router: router}
}

func (ts *testServer) do(method, path string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(ts.t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) create(body any) string {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/v1/sessions", body)
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	var resp CreateSessionResponse
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.SessionID
}

func (ts *testServer) report(id string) report.Report {
	ts.t.Helper()
	w := ts.do(http.MethodGet, "/v1/sessions/"+id, nil)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	var r report.Report
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &r))
	return r
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

// =============================================================================
// Routes
// =============================================================================

func TestRegisterRoutes(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.MetricsHandler = http.NotFoundHandler()
	})

	var got []string
	for _, r := range ts.router.Routes() {
		got = append(got, r.Method+" "+r.Path)
	}
	sort.Strings(got)

	want := []string{
		"DELETE /v1/sessions/:id",
		"GET /health",
		"GET /metrics",
		"GET /v1/advice",
		"GET /v1/sessions",
		"GET /v1/sessions/:id",
		"GET /v1/sessions/:id/stream",
		"POST /v1/sessions",
		"POST /v1/sessions/:id/chaos/cycle",
		"POST /v1/sessions/:id/chaos/extreme",
		"POST /v1/sessions/:id/chaos/start",
		"POST /v1/sessions/:id/chaos/stop",
		"POST /v1/sessions/:id/fps",
		"POST /v1/sessions/:id/latency",
		"POST /v1/sessions/:id/latency/end",
		"POST /v1/sessions/:id/latency/start",
		"POST /v1/sessions/:id/load",
		"POST /v1/sessions/:id/memory",
		"POST /v1/sessions/:id/recording/start",
		"POST /v1/sessions/:id/recording/stop",
		"PUT /v1/sessions/:id/chaos/intensity",
		"PUT /v1/sessions/:id/config",
	}
	assert.Equal(t, want, got)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	ts.create(nil)

	w := ts.do(http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, ServiceVersion, resp.Version)
	assert.Equal(t, 1, resp.Sessions)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRequestIDOnEveryRoute(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))

	for _, path := range []string{"/v1/advice?object_count=10", "/v1/sessions", "/v1/sessions/nope"} {
		w := ts.do(http.MethodGet, path, nil)
		assert.NotEmpty(t, w.Header().Get("X-Request-ID"), path)
	}
}

func TestAdvice(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		query string
		code  int
		mode  advisor.RenderMode
		high  bool
	}{
		{"object_count=500", http.StatusOK, advisor.ModeDOM, false},
		{"object_count=8000", http.StatusOK, advisor.ModeCanvas, true},
		{"object_count=20000", http.StatusOK, advisor.ModeWebGL, true},
		{"object_count=-1", http.StatusBadRequest, 0, false},
		{"", http.StatusBadRequest, 0, false},
		{"object_count=abc", http.StatusBadRequest, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := ts.do(http.MethodGet, "/v1/advice?"+tt.query, nil)
			require.Equal(t, tt.code, w.Code, w.Body.String())
			if tt.code != http.StatusOK {
				return
			}
			a := decode[advisor.Advice](t, w)
			assert.Equal(t, tt.mode, a.Recommended)
			assert.Equal(t, tt.high, a.HighLoad)
		})
	}
}

// =============================================================================
// Sessions
// =============================================================================

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t)

	id := ts.create(CreateSessionRequest{
		Mode:        "webgl",
		Intensity:   ptr(5),
		ObjectCount: ptr(20000),
		TargetMS:    ptr(150.0),
	})

	r := ts.report(id)
	assert.Equal(t, id, r.SessionID)
	assert.Equal(t, advisor.ModeWebGL, r.Map.RenderMode)
	assert.Equal(t, 20000, r.Map.ObjectCount)
	assert.Equal(t, uint8(5), r.Chaos.Intensity)
	assert.Equal(t, 150.0, r.Latency.TargetMS)
}

func TestCreateSession_Invalid(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(http.MethodPost, "/v1/sessions", CreateSessionRequest{Mode: "svg"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "UNKNOWN_MODE", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodPost, "/v1/sessions", CreateSessionRequest{ObjectCount: ptr(-5)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Zero(t, ts.registry.Len())
}

func TestListAndDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	a := ts.create(nil)
	b := ts.create(nil)

	w := ts.do(http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []string{a, b}, decode[ListSessionsResponse](t, w).Sessions)

	w = ts.do(http.MethodDelete, "/v1/sessions/"+a, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = ts.do(http.MethodGet, "/v1/sessions/"+a, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "SESSION_NOT_FOUND", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodDelete, "/v1/sessions/"+a, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(http.MethodDelete, "/v1/sessions/bad%2Cid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_SESSION_ID", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodGet, "/v1/sessions/-x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClosedSessionIsGone(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)

	s, err := ts.registry.Get(id)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	w := ts.do(http.MethodPost, "/v1/sessions/"+id+"/recording/start", nil)
	assert.Equal(t, http.StatusGone, w.Code)
	assert.Equal(t, "SESSION_CLOSED", decode[ErrorResponse](t, w).Code)
}

func TestReportText(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)

	w := ts.do(http.MethodGet, "/v1/sessions/"+id+"?format=text", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
	assert.Contains(t, w.Body.String(), id)
}

// =============================================================================
// Ingest
// =============================================================================

func TestFPSIngest(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)
	base := "/v1/sessions/" + id

	w := ts.do(http.MethodPost, base+"/fps", ValueRequest{Value: ptr(60.0)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[AcceptedResponse](t, w).Accepted, "not recording yet")

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, base+"/recording/start", nil).Code)
	for _, v := range []float64{60, 20, 40} {
		w = ts.do(http.MethodPost, base+"/fps", ValueRequest{Value: ptr(v)})
		require.Equal(t, http.StatusOK, w.Code)
		assert.True(t, decode[AcceptedResponse](t, w).Accepted)
	}
	w = ts.do(http.MethodPost, base+"/memory", ValueRequest{Value: ptr(64.0)})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, base+"/fps", ValueRequest{Value: ptr(-1.0)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_INPUT", decode[ErrorResponse](t, w).Code)

	w = ts.do(http.MethodPost, base+"/fps", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_REQUEST", decode[ErrorResponse](t, w).Code)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, base+"/recording/stop", nil).Code)

	r := ts.report(id)
	assert.Equal(t, uint32(3), r.FPS.Snapshot.SampleCount)
	assert.Equal(t, 20.0, r.FPS.Snapshot.Min)
	assert.Equal(t, 60.0, r.FPS.Snapshot.Max)
	assert.Equal(t, 40.0, r.FPS.Snapshot.Average)
	assert.False(t, r.FPS.Recording)
	assert.Equal(t, 1, r.FPS.MemorySamples)
}

func TestLatencyIngest(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)
	base := "/v1/sessions/" + id

	w := ts.do(http.MethodPost, base+"/latency/end", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[AcceptedResponse](t, w).Accepted)

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, base+"/latency/start", nil).Code)
	w = ts.do(http.MethodPost, base+"/latency/end", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[AcceptedResponse](t, w).Accepted)

	w = ts.do(http.MethodPost, base+"/latency", ValueRequest{Value: ptr(120.0)})
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPost, base+"/latency", ValueRequest{Value: ptr(-3.0)})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	r := ts.report(id)
	assert.Equal(t, 2, r.Latency.Snapshot.Count)
	assert.Equal(t, 120.0, r.Latency.Snapshot.Max)
}

func TestIngestRateLimit(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.IngestRate = 0.001
		c.IngestBurst = 2
	})
	id := ts.create(nil)
	path := "/v1/sessions/" + id + "/latency"

	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, path, ValueRequest{Value: ptr(1.0)}).Code)
	assert.Equal(t, http.StatusOK, ts.do(http.MethodPost, path, ValueRequest{Value: ptr(1.0)}).Code)

	w := ts.do(http.MethodPost, path, ValueRequest{Value: ptr(1.0)})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "RATE_LIMITED", decode[ErrorResponse](t, w).Code)

	other := ts.create(nil)
	assert.Equal(t, http.StatusOK,
		ts.do(http.MethodPost, "/v1/sessions/"+other+"/latency", ValueRequest{Value: ptr(1.0)}).Code,
		"limits are per session")

	// Control routes are not limited.
	assert.Equal(t, http.StatusNoContent, ts.do(http.MethodPost, "/v1/sessions/"+id+"/recording/start", nil).Code)
}

func TestLoadTiming(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)
	path := "/v1/sessions/" + id + "/load"

	w := ts.do(http.MethodPost, path, report.LoadTiming{TotalLoadMS: -5})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, path, report.LoadTiming{
		DOMContentLoadedMS:     400,
		FirstContentfulPaintMS: 600,
		LoadCompleteMS:         1500,
		WasmInitMS:             300,
		TotalLoadMS:            1800,
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	r := ts.report(id)
	require.NotNil(t, r.Load)
	assert.Equal(t, 1800.0, r.Load.TotalLoadMS)
}

// =============================================================================
// Chaos and configuration
// =============================================================================

func TestChaosControl(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)
	base := "/v1/sessions/" + id

	w := ts.do(http.MethodPost, base+"/chaos/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[ChaosResponse](t, w).State.Active)

	w = ts.do(http.MethodPut, base+"/chaos/intensity", IntensityRequest{Intensity: ptr(99)})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, chaos.MaxIntensity, decode[IntensityResponse](t, w).Intensity)

	w = ts.do(http.MethodPut, base+"/chaos/intensity", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(http.MethodPost, base+"/chaos/cycle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, uint8(2), decode[IntensityResponse](t, w).Intensity)

	w = ts.do(http.MethodPost, base+"/chaos/extreme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[ChaosResponse](t, w).State
	assert.Equal(t, chaos.ExtremeIntensity, st.Intensity)
	assert.Equal(t, chaos.ExtremeEventCount, st.TotalEventsEver)
	assert.Len(t, st.Events, chaos.LogCapacity)

	w = ts.do(http.MethodPost, base+"/chaos/stop", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, decode[ChaosResponse](t, w).State.Active)
}

func TestConfig(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)
	path := "/v1/sessions/" + id + "/config"

	w := ts.do(http.MethodPut, path, ConfigRequest{
		ObjectCount:    ptr(250000),
		RenderMode:     ptr("canvas"),
		AnimationSpeed: ptr(50.0),
		AutoPan:        ptr(true),
		ShowFPS:        ptr(false),
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[ConfigResponse](t, w)
	assert.Equal(t, 100000, resp.Map.ObjectCount)
	assert.Equal(t, advisor.ModeCanvas, resp.Map.RenderMode)
	assert.Equal(t, 10.0, resp.Map.AnimationSpeed)
	assert.True(t, resp.Map.AutoPan)
	assert.False(t, resp.Map.ShowFPS)
	assert.Equal(t, advisor.ModeWebGL, resp.Advice.Recommended)

	w = ts.do(http.MethodPut, path, ConfigRequest{RenderMode: ptr("svg"), ObjectCount: ptr(1)})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 100000, ts.report(id).Map.ObjectCount, "rejected update applies nothing")
}

// =============================================================================
// Stream
// =============================================================================

func TestStream(t *testing.T) {
	ts := newTestServer(t)
	id := ts.create(nil)

	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/sessions/" + id + "/stream"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	_ = ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	for want := uint64(1); want <= 2; want++ {
		var frame struct {
			Seq    uint64         `json:"seq"`
			Report *report.Report `json:"report"`
			Error  string         `json:"error"`
		}
		require.NoError(t, ws.ReadJSON(&frame))
		assert.Equal(t, want, frame.Seq)
		require.NotNil(t, frame.Report)
		assert.Equal(t, id, frame.Report.SessionID)
	}

	s, err := ts.registry.Get(id)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	for {
		var frame StreamFrame
		if err := ws.ReadJSON(&frame); err != nil {
			break
		}
		if frame.Error != "" {
			assert.Equal(t, session.ErrSessionClosed.Error(), frame.Error)
			break
		}
	}
}

func TestStream_UnknownSession(t *testing.T) {
	ts := newTestServer(t)
	w := ts.do(http.MethodGet, "/v1/sessions/nope/stream", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func ptr[T any](v T) *T { return &v }
