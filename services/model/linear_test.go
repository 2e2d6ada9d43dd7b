// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

func TestNewLinearPolicy_UniformPrediction(t *testing.T) {
	p := NewLinearPolicy()
	scores := p.Predict(datatypes.EmptyBoard())

	require.Len(t, scores, datatypes.BoardCols)
	sum := 0.0
	for _, s := range scores {
		assert.InDelta(t, 1.0/float64(datatypes.BoardCols), s, 1e-9)
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestPredict_SumsToOne(t *testing.T) {
	p := NewLinearPolicy()
	board := datatypes.EmptyBoard()
	board[5][3] = datatypes.CellLearner
	board[5][2] = datatypes.CellOpponent

	// Push the parameters away from zero first.
	batch := []Example{{Board: board, Action: 3, Reward: -1.0}}
	for i := 0; i < 20; i++ {
		p.TrainStep(batch, 0.1)
	}

	scores := p.Predict(board)
	sum := 0.0
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, 0.0)
		sum += s
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEncode_TwoPlanes(t *testing.T) {
	board := datatypes.EmptyBoard()
	board[5][0] = datatypes.CellLearner
	board[4][6] = datatypes.CellOpponent

	x := Encode(board)
	require.Len(t, x, 2*datatypes.BoardRows*datatypes.BoardCols)

	// Learner plane first, opponent plane second.
	assert.Equal(t, 1.0, x[5*datatypes.BoardCols+0])
	assert.Equal(t, 1.0, x[datatypes.BoardRows*datatypes.BoardCols+4*datatypes.BoardCols+6])

	nonZero := 0
	for _, v := range x {
		if v != 0 {
			nonZero++
		}
	}
	assert.Equal(t, 2, nonZero)
}

func TestParameters_RoundTripIsBitIdentical(t *testing.T) {
	p := NewLinearPolicy()
	board := datatypes.EmptyBoard()
	board[5][1] = datatypes.CellOpponent

	batch := []Example{{Board: board, Action: 1, Reward: -0.8}}
	p.TrainStep(batch, 0.05)
	saved := p.Parameters()

	// Mutate further, then restore.
	for i := 0; i < 5; i++ {
		p.TrainStep(batch, 0.05)
	}
	assert.NotEqual(t, saved, p.Parameters())

	p.SetParameters(saved)
	assert.Equal(t, saved, p.Parameters())
}

func TestParameters_ReturnsCopy(t *testing.T) {
	p := NewLinearPolicy()
	params := p.Parameters()
	params[0] = 42

	assert.Zero(t, p.Parameters()[0], "mutating the returned slice must not touch the live vector")
}

func TestTrainStep_ReducesLossOnPenalizedAction(t *testing.T) {
	p := NewLinearPolicy()
	board := datatypes.EmptyBoard()
	board[5][0] = datatypes.CellOpponent
	board[5][1] = datatypes.CellOpponent

	// A loss-outcome example carries a negative reward, so its weighted
	// loss is positive and descent should drive it down.
	batch := []Example{{Board: board, Action: 6, Reward: -1.0}}

	first, perExample := p.TrainStep(batch, 0.05)
	require.Len(t, perExample, 1)
	assert.Greater(t, first, 0.0)

	var last float64
	for i := 0; i < 50; i++ {
		last, _ = p.TrainStep(batch, 0.05)
	}
	assert.Less(t, last, first)
}

func TestTrainStep_EmptyBatch(t *testing.T) {
	p := NewLinearPolicy()
	before := p.Parameters()
	mean, perExample := p.TrainStep(nil, 0.1)
	assert.Zero(t, mean)
	assert.Nil(t, perExample)
	assert.Equal(t, before, p.Parameters())
}

func TestBestMove_IsArgmax(t *testing.T) {
	p := NewLinearPolicy()
	board := datatypes.EmptyBoard()

	// Zero parameters predict uniformly; strict comparison keeps the
	// first column.
	assert.Equal(t, 0, p.BestMove(board))

	// Bias column 4 directly and the argmax must follow.
	params := p.Parameters()
	params[len(params)-datatypes.BoardCols+4] = 5.0
	p.SetParameters(params)
	assert.Equal(t, 4, p.BestMove(board))
}
