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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

// stubPredictor answers every board with a fixed column.
type stubPredictor struct {
	best int
}

func (s *stubPredictor) Predict(datatypes.Board) []float64 {
	scores := make([]float64, datatypes.BoardCols)
	scores[s.best] = 1.0
	return scores
}

func (s *stubPredictor) BestMove(datatypes.Board) int { return s.best }

func TestValidationGate_AcceptsHealthyUpdate(t *testing.T) {
	gate := NewValidationGate(&stubPredictor{best: 3}, 0.95, quietLogger())

	accepted := gate.Accept(&TrainingResult{Improvement: 0.05, Metrics: map[string]float64{}})
	assert.True(t, accepted)
}

func TestValidationGate_RejectsRegressedImprovement(t *testing.T) {
	gate := NewValidationGate(&stubPredictor{best: 3}, 0.95, quietLogger())

	accepted := gate.Accept(&TrainingResult{Improvement: -0.2, Metrics: map[string]float64{}})
	assert.False(t, accepted)
}

func TestValidationGate_ImprovementFloorIsExclusive(t *testing.T) {
	gate := NewValidationGate(&stubPredictor{best: 3}, 0.95, quietLogger())

	accepted := gate.Accept(&TrainingResult{Improvement: improvementFloor, Metrics: map[string]float64{}})
	assert.True(t, accepted)
}

func TestValidationGate_RejectsForgottenCanonicalPositions(t *testing.T) {
	gate := NewValidationGate(&stubPredictor{best: 0}, 0.95, quietLogger())

	accepted := gate.Accept(&TrainingResult{Improvement: 0.5, Metrics: map[string]float64{}})
	assert.False(t, accepted)
}

func TestValidationGate_CanonicalScore(t *testing.T) {
	assert.Equal(t, 1.0, NewValidationGate(&stubPredictor{best: 3}, 0.95, quietLogger()).CanonicalScore())
	assert.Equal(t, 0.0, NewValidationGate(&stubPredictor{best: 5}, 0.95, quietLogger()).CanonicalScore())
}

func TestValidationGate_WeakDefenseWarnsButAccepts(t *testing.T) {
	gate := NewValidationGate(&stubPredictor{best: 3}, 0.95, quietLogger())

	accepted := gate.Accept(&TrainingResult{
		Improvement: 0.1,
		Metrics:     map[string]float64{"horizontal_defense": 0.1},
	})
	assert.True(t, accepted)
}
