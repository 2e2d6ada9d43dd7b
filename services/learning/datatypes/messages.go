// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"encoding/json"
	"fmt"
	"time"
)

// =============================================================================
// Inbound Control Messages
// =============================================================================

// MessageType tags an inbound control request on the status channel.
type MessageType string

const (
	MsgSubmitOutcome MessageType = "priority_learning"
	MsgDefenseQuery  MessageType = "pattern_defense_request"
	MsgForceUpdate   MessageType = "check_model_updates"
	MsgMetricsQuery  MessageType = "get_metrics"
)

// ControlMessage is the closed sum over control requests the pipeline
// accepts. Exactly four variants exist: SubmitOutcome, DefenseQuery,
// ForceUpdate, and MetricsQuery.
type ControlMessage interface {
	controlMessage()
}

// SubmitOutcome feeds a completed game into the pipeline.
type SubmitOutcome struct {
	Game GameRecord
}

// DefenseQuery asks for heuristic blocking advice against a named threat
// pattern on a given board.
type DefenseQuery struct {
	RequestID string
	Pattern   PatternType
	Board     Board
}

// ForceUpdate bypasses the retrain gate once when Force is set.
type ForceUpdate struct {
	Force bool
}

// MetricsQuery requests a snapshot of the pipeline metrics.
type MetricsQuery struct{}

func (SubmitOutcome) controlMessage() {}
func (DefenseQuery) controlMessage()  {}
func (ForceUpdate) controlMessage()   {}
func (MetricsQuery) controlMessage()  {}

// controlEnvelope mirrors the wire shape of inbound requests. The original
// clients put defense-query fields at the top level and the game payload
// under "data"; both are preserved.
type controlEnvelope struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	Pattern   PatternType     `json:"pattern,omitempty"`
	Board     Board           `json:"board,omitempty"`
	Force     bool            `json:"force,omitempty"`
}

// DecodeControl parses a raw status-channel frame into one of the four
// control variants. Unknown types and malformed payloads are errors; the
// caller logs and drops them without disturbing the pipeline.
func DecodeControl(raw []byte) (ControlMessage, error) {
	var env controlEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode control frame: %w", err)
	}
	switch env.Type {
	case MsgSubmitOutcome:
		var game GameRecord
		if err := json.Unmarshal(env.Data, &game); err != nil {
			return nil, fmt.Errorf("decode game outcome: %w", err)
		}
		return SubmitOutcome{Game: game}, nil
	case MsgDefenseQuery:
		if !env.Pattern.Known() {
			return nil, fmt.Errorf("defense query for unknown pattern %q", env.Pattern)
		}
		return DefenseQuery{RequestID: env.RequestID, Pattern: env.Pattern, Board: env.Board}, nil
	case MsgForceUpdate:
		return ForceUpdate{Force: env.Force}, nil
	case MsgMetricsQuery:
		return MetricsQuery{}, nil
	default:
		return nil, fmt.Errorf("unknown control message type %q", env.Type)
	}
}

// =============================================================================
// Outbound Events
// =============================================================================

// EventType tags a push event broadcast on the status channel.
type EventType string

const (
	EventConnectionEstablished EventType = "connection_established"
	EventLearningProgress      EventType = "learning_progress"
	EventPatternInsights       EventType = "pattern_insights"
	EventModelUpdated          EventType = "model_updated"
	EventDefenseResponse       EventType = "pattern_defense_response"
	EventMetricsUpdate         EventType = "metrics_update"
)

// Event is one outbound status-channel frame.
type Event struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"requestId,omitempty"`
	Data      any       `json:"data,omitempty"`
}

// ConnectionEstablished greets a newly attached subscriber.
type ConnectionEstablished struct {
	ModelVersion int             `json:"model_version"`
	Metrics      MetricsSnapshot `json:"metrics"`
}

// LearningProgress reports pipeline counters after a game is processed.
type LearningProgress struct {
	GamesProcessed int `json:"gamesProcessed"`
	LossesAnalyzed int `json:"lossesAnalyzed"`
	BufferSize     int `json:"bufferSize"`
}

// PatternInsights reports a newly observed loss pattern.
type PatternInsights struct {
	Patterns          map[PatternType]int `json:"patterns"`
	CriticalPositions []CriticalPosition  `json:"criticalPositions"`
	Recommendations   []string            `json:"recommendations"`
}

// ModelUpdated announces a committed model update.
type ModelUpdated struct {
	Version      string             `json:"version"`
	Improvements map[string]float64 `json:"improvements"`
	Timestamp    time.Time          `json:"timestamp"`
}

// DefenseAdvice answers a DefenseQuery: candidate blocking columns, a
// confidence score, and a textual strategy for the pattern.
type DefenseAdvice struct {
	Pattern       PatternType `json:"pattern"`
	CriticalMoves []int       `json:"criticalMoves"`
	Confidence    float64     `json:"confidence"`
	Strategy      []string    `json:"strategy"`
}

// MetricsSnapshot is a point-in-time copy of the pipeline metrics.
type MetricsSnapshot struct {
	GamesProcessed      int                     `json:"gamesProcessed"`
	LossesAnalyzed      int                     `json:"lossesAnalyzed"`
	ModelUpdates        int                     `json:"modelUpdates"`
	CurrentWinRate      float64                 `json:"currentWinRate"`
	PatternDefenseRates map[PatternType]float64 `json:"patternDefenseRates"`
	LastUpdate          *time.Time              `json:"lastUpdate,omitempty"`
	BufferSize          int                     `json:"bufferSize"`
	ModelVersion        int                     `json:"modelVersion"`
}
