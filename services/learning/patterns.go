// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package learning

import (
	"time"

	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

// Bounds for the per-pattern loss history.
const (
	patternHistoryCap  = 50
	patternTestRecords = 10
	patternTailMoves   = 5
)

// lossRecord captures one analyzed loss: its descriptor and the final
// moves of the game that produced it.
type lossRecord struct {
	pattern  datatypes.LossPattern
	examples []*datatypes.Experience
	at       time.Time
}

// DefensePosition is one regression position derived from a recorded loss:
// the board the learner faced and the columns that would have blocked the
// threat.
type DefensePosition struct {
	Board         datatypes.Board
	BlockingMoves []int
}

// PatternTracker keeps a bounded rolling record of losses per threat
// pattern, the measured defense rate per pattern, and the canned strategy
// text the defense queries return.
//
// Owned by the pipeline dispatch loop; no locking.
type PatternTracker struct {
	records      map[datatypes.PatternType][]lossRecord
	improvements map[datatypes.PatternType]float64
}

// NewPatternTracker creates an empty tracker.
func NewPatternTracker() *PatternTracker {
	return &PatternTracker{
		records:      make(map[datatypes.PatternType][]lossRecord),
		improvements: make(map[datatypes.PatternType]float64),
	}
}

// Record stores an analyzed loss: the descriptor plus the last 5 extracted
// examples of the game. History per pattern is bounded; the oldest record
// is dropped on overflow.
func (t *PatternTracker) Record(pattern datatypes.LossPattern, examples []*datatypes.Experience, at time.Time) {
	tail := examples
	if len(tail) > patternTailMoves {
		tail = tail[len(tail)-patternTailMoves:]
	}
	recs := t.records[pattern.Type]
	if len(recs) >= patternHistoryCap {
		recs = recs[1:]
	}
	t.records[pattern.Type] = append(recs, lossRecord{pattern: pattern, examples: tail, at: at})
}

// Count returns how many losses have been recorded for a pattern.
func (t *PatternTracker) Count(pattern datatypes.PatternType) int {
	return len(t.records[pattern])
}

// Counts returns the per-pattern loss counts for pattern_insights events.
func (t *PatternTracker) Counts() map[datatypes.PatternType]int {
	out := make(map[datatypes.PatternType]int, len(t.records))
	for p, recs := range t.records {
		out[p] = len(recs)
	}
	return out
}

// Dominant returns the pattern with the most recorded losses, or "" when
// no losses have been recorded. Ties resolve in canonical pattern order.
func (t *PatternTracker) Dominant() datatypes.PatternType {
	var best datatypes.PatternType
	bestCount := 0
	for _, p := range datatypes.KnownPatterns {
		if n := len(t.records[p]); n > bestCount {
			best, bestCount = p, n
		}
	}
	return best
}

// TestPositions builds defense regression positions from the most recent
// recorded losses of a pattern: each example's pre-move board paired with
// the loss's blocking columns.
func (t *PatternTracker) TestPositions(pattern datatypes.PatternType) []DefensePosition {
	recs := t.records[pattern]
	if len(recs) > patternTestRecords {
		recs = recs[len(recs)-patternTestRecords:]
	}
	var positions []DefensePosition
	for _, rec := range recs {
		blocking := rec.pattern.BlockingColumns()
		for _, ex := range rec.examples {
			if ex.BoardBefore == nil {
				continue
			}
			positions = append(positions, DefensePosition{
				Board:         ex.BoardBefore,
				BlockingMoves: blocking,
			})
		}
	}
	return positions
}

// SetImprovement records the defense rate measured for a pattern after a
// training run.
func (t *PatternTracker) SetImprovement(pattern datatypes.PatternType, rate float64) {
	t.improvements[pattern] = rate
}

// Improvement returns the last measured defense rate for a pattern, with
// 0.5 as the uninformed default.
func (t *PatternTracker) Improvement(pattern datatypes.PatternType) float64 {
	if rate, ok := t.improvements[pattern]; ok {
		return rate
	}
	return 0.5
}

// Improvements returns a copy of the measured per-pattern defense rates.
func (t *PatternTracker) Improvements() map[datatypes.PatternType]float64 {
	out := make(map[datatypes.PatternType]float64, len(t.improvements))
	for p, r := range t.improvements {
		out[p] = r
	}
	return out
}

// patternRecommendations is the fixed strategy text per pattern type.
var patternRecommendations = map[datatypes.PatternType][]string{
	datatypes.PatternHorizontal: {
		"Increase weight on horizontal threat detection",
		"Prioritize center column control",
		"Look ahead for horizontal setups",
	},
	datatypes.PatternVertical: {
		"Monitor column heights more carefully",
		"Prevent vertical stacking",
		"Balance defensive and offensive plays",
	},
	datatypes.PatternDiagonal: {
		"Improve diagonal pattern recognition",
		"Control key diagonal intersections",
		"Increase lookahead for diagonal threats",
	},
	datatypes.PatternAntiDiagonal: {
		"Enhance anti-diagonal threat detection",
		"Block critical anti-diagonal positions",
		"Consider both diagonal directions equally",
	},
}

// Recommendations returns the strategy text for a pattern.
func Recommendations(pattern datatypes.PatternType) []string {
	if recs, ok := patternRecommendations[pattern]; ok {
		return recs
	}
	return []string{"Improve general defense"}
}
