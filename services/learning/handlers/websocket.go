// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers holds the HTTP and WebSocket surface of the learning
// service. The WebSocket endpoint is the status channel: it carries both
// inbound control frames and outbound push events on one connection.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/dropfour/pkg/logging"
	"github.com/AleutianAI/dropfour/services/learning"
	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

// writeDeadline is the soft per-frame delivery budget. A subscriber that
// cannot accept a frame within it is treated as dead and dropped by the
// pipeline; delivery to the remaining subscribers continues.
const writeDeadline = 150 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
}

// wsSubscriber adapts one gorilla connection to the pipeline's Subscriber
// interface. Send is only ever called from the pipeline's dispatch
// goroutine, which satisfies gorilla's single-writer requirement.
type wsSubscriber struct {
	id   string
	conn *websocket.Conn
}

func newWSSubscriber(conn *websocket.Conn) *wsSubscriber {
	return &wsSubscriber{id: uuid.New().String(), conn: conn}
}

func (s *wsSubscriber) ID() string { return s.id }

func (s *wsSubscriber) Send(payload []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSubscriber) Close() error {
	return s.conn.Close()
}

// HandleLearningWebSocket upgrades the connection, attaches it to the
// pipeline as a subscriber, and pumps inbound control frames until the
// client disconnects. Malformed frames are logged and dropped without
// closing the connection.
func HandleLearningWebSocket(pipeline *learning.Pipeline, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()

		sub := newWSSubscriber(ws)
		log.Info("websocket client connected", "subscriber", sub.id)
		pipeline.Attach(sub)
		defer pipeline.Detach(sub.id)

		for {
			_, raw, err := ws.ReadMessage()
			if err != nil {
				log.Info("websocket client disconnected", "subscriber", sub.id, "error", err.Error())
				return
			}
			msg, err := datatypes.DecodeControl(raw)
			if err != nil {
				log.Warn("dropping malformed control frame", "subscriber", sub.id, "error", err)
				continue
			}
			pipeline.Control(sub, msg)
		}
	}
}
