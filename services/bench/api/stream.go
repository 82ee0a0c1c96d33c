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
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/mapbench/services/bench/driver"
	"github.com/AleutianAI/mapbench/services/bench/session"
)

const writeWait = 5 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 64 * 1024,
}

// StreamFrame is one websocket message. Error is set on the final frame
// when the session goes away.
type StreamFrame struct {
	Seq    uint64 `json:"seq"`
	Report any    `json:"report,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HandleStream handles GET /v1/sessions/:id/stream.
//
// Description:
//
//	Upgrades to a websocket and pushes the session report every
//	StreamInterval until the client disconnects or the session is closed.
//	Client messages are read and discarded; reading is what surfaces the
//	disconnect.
func (h *Handlers) HandleStream(c *gin.Context) {
	s := current(c)
	logger := h.logger(c, "HandleStream").With(slog.String("session_id", s.ID()))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("failed to upgrade the websocket", "error", err)
		return
	}
	defer ws.Close()
	logger.Info("Stream client connected")

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var seq uint64
	send := func(now time.Time) {
		seq++
		frame := StreamFrame{Seq: seq}
		r, err := s.Report(ctx)
		if err != nil {
			frame.Error = err.Error()
		} else {
			frame.Report = r
		}

		_ = ws.SetWriteDeadline(now.Add(writeWait))
		if werr := ws.WriteJSON(frame); werr != nil {
			logger.Warn("Failed to write stream frame", "error", werr)
			cancel()
			return
		}
		if errors.Is(err, session.ErrSessionClosed) {
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
				time.Now().Add(writeWait))
			cancel()
		}
	}

	send(time.Now())
	if ctx.Err() != nil {
		return
	}

	t, err := driver.NewTicker(h.cfg.StreamInterval, send)
	if err != nil {
		logger.Error("failed to create stream ticker", "error", err)
		return
	}
	if err := t.Start(ctx); err != nil {
		logger.Error("failed to start stream ticker", "error", err)
		return
	}
	<-t.Done()
	logger.Info("Stream client disconnected", "frames", seq)
}
