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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/dropfour/pkg/logging"
	"github.com/AleutianAI/dropfour/services/learning"
	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

// Version is the service build version reported by the health endpoint.
const Version = "0.1.0"

var serviceStart = time.Now()

// HealthCheck reports service liveness.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": Version,
		"uptime":  time.Since(serviceStart).Round(time.Second).String(),
	})
}

// HandleSubmitGame accepts a completed game record over plain HTTP for
// serving layers that do not hold a WebSocket open. The record is queued
// for the pipeline; validation failures surface asynchronously in the
// pipeline's skip metrics, so the endpoint only rejects undecodable JSON.
func HandleSubmitGame(pipeline *learning.Pipeline, log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var game datatypes.GameRecord
		if err := c.ShouldBindJSON(&game); err != nil {
			log.Warn("rejecting undecodable game submission", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid game record: " + err.Error()})
			return
		}
		pipeline.Submit(game)
		c.JSON(http.StatusAccepted, gin.H{"status": "queued"})
	}
}
