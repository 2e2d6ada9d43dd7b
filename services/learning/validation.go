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
	"github.com/AleutianAI/dropfour/pkg/logging"
	"github.com/AleutianAI/dropfour/services/learning/datatypes"
	"github.com/AleutianAI/dropfour/services/model"
)

// Gate thresholds. Per-pattern defense below defenseWarnFloor is logged
// but never blocks acceptance.
const (
	improvementFloor = -0.1
	defenseWarnFloor = 0.3
)

// canonicalPosition is one must-know position: a board with exactly one
// right answer.
type canonicalPosition struct {
	name        string
	board       datatypes.Board
	correctMove int
}

// canonicalBattery builds the fixed must-know battery: take the immediate
// win, block the immediate opponent win. Updates that forget either are
// worse than no update at all.
func canonicalBattery() []canonicalPosition {
	winInOne := datatypes.EmptyBoard()
	winInOne[5][0] = datatypes.CellLearner
	winInOne[5][1] = datatypes.CellLearner
	winInOne[5][2] = datatypes.CellLearner

	blockLoss := datatypes.EmptyBoard()
	blockLoss[5][0] = datatypes.CellOpponent
	blockLoss[5][1] = datatypes.CellOpponent
	blockLoss[5][2] = datatypes.CellOpponent

	return []canonicalPosition{
		{name: "take_immediate_win", board: winInOne, correctMove: 3},
		{name: "block_immediate_loss", board: blockLoss, correctMove: 3},
	}
}

// ValidationGate accepts or rejects a training attempt before anything is
// committed. Rejection means the attempt regressed: either the aggregate
// improvement fell through the floor or the model forgot a canonical
// position.
type ValidationGate struct {
	threshold float64
	live      model.Predictor
	battery   []canonicalPosition
	log       *logging.Logger
}

// NewValidationGate creates a gate over the live model with the given
// canonical-score threshold (typically 0.95).
func NewValidationGate(live model.Predictor, threshold float64, log *logging.Logger) *ValidationGate {
	return &ValidationGate{
		threshold: threshold,
		live:      live,
		battery:   canonicalBattery(),
		log:       log,
	}
}

// Accept judges a completed training attempt.
func (g *ValidationGate) Accept(result *TrainingResult) bool {
	if result.Improvement < improvementFloor {
		g.log.Warn("update rejected: aggregate improvement below floor",
			"improvement", result.Improvement,
			"floor", improvementFloor,
		)
		return false
	}

	score := g.CanonicalScore()
	if score < g.threshold {
		g.log.Warn("update rejected: canonical position score below threshold",
			"score", score,
			"threshold", g.threshold,
		)
		return false
	}

	for _, pattern := range datatypes.KnownPatterns {
		if rate, ok := result.Metrics[string(pattern)+"_defense"]; ok && rate < defenseWarnFloor {
			g.log.Warn("weak pattern defense after update",
				"pattern", string(pattern),
				"rate", rate,
			)
		}
	}

	return true
}

// CanonicalScore evaluates the live model on the must-know battery and
// returns the fraction answered correctly. Also used by the stability
// monitor as its fixed regression set.
func (g *ValidationGate) CanonicalScore() float64 {
	correct := 0
	for _, pos := range g.battery {
		if g.live.BestMove(pos.board) == pos.correctMove {
			correct++
		}
	}
	return float64(correct) / float64(len(g.battery))
}
