// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dropfour/pkg/logging"
	"github.com/AleutianAI/dropfour/services/learning"
	"github.com/AleutianAI/dropfour/services/learning/observability"
	"github.com/AleutianAI/dropfour/services/model"
)

func newTestPipeline() *learning.Pipeline {
	log := logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
	obs := observability.New(prometheus.NewRegistry())
	return learning.NewPipeline(learning.DefaultConfig(), log, model.NewLinearPolicy(), obs)
}

func newTestRouter(pipeline *learning.Pipeline) *gin.Engine {
	gin.SetMode(gin.TestMode)
	log := logging.New(logging.Config{Level: logging.LevelError, Quiet: true})
	router := gin.New()
	router.GET("/health", HealthCheck)
	router.GET("/ws", HandleLearningWebSocket(pipeline, log))
	router.POST("/games", HandleSubmitGame(pipeline, log))
	return router
}

func TestHealthCheck(t *testing.T) {
	router := newTestRouter(newTestPipeline())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "ok", response["status"])
	assert.Equal(t, Version, response["version"])
	assert.NotEmpty(t, response["uptime"])
}

func TestHandleSubmitGame(t *testing.T) {
	router := newTestRouter(newTestPipeline())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/games",
		strings.NewReader(`{"outcome":"win","moves":[]}`))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Contains(t, w.Body.String(), "queued")
}

func TestHandleSubmitGame_RejectsBadJSON(t *testing.T) {
	router := newTestRouter(newTestPipeline())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/games", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, frame, err := conn.ReadMessage()
	require.NoError(t, err)
	var event map[string]any
	require.NoError(t, json.Unmarshal(frame, &event))
	return event
}

func TestHandleLearningWebSocket(t *testing.T) {
	pipeline := newTestPipeline()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pipeline.Run(ctx)

	srv := httptest.NewServer(newTestRouter(pipeline))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	greeting := readEvent(t, conn)
	assert.Equal(t, "connection_established", greeting["type"])

	// Malformed frames are dropped without killing the connection.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"get_metrics"}`)))
	reply := readEvent(t, conn)
	assert.Equal(t, "metrics_update", reply["type"])

	data, ok := reply["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(0), data["gamesProcessed"])
	assert.Equal(t, float64(1), data["modelVersion"])
}
