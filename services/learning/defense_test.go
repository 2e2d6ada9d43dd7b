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

func TestCriticalMoves_HorizontalRun(t *testing.T) {
	board := datatypes.EmptyBoard()
	board[5][2] = datatypes.CellOpponent
	board[5][3] = datatypes.CellOpponent

	moves := CriticalMoves(board, datatypes.PatternHorizontal)
	assert.ElementsMatch(t, []int{1, 4}, moves)
}

func TestCriticalMoves_VerticalRun(t *testing.T) {
	board := datatypes.EmptyBoard()
	board[4][3] = datatypes.CellOpponent
	board[5][3] = datatypes.CellOpponent

	moves := CriticalMoves(board, datatypes.PatternVertical)
	assert.Equal(t, []int{3}, moves)
}

func TestCriticalMoves_DiagonalRun(t *testing.T) {
	board := datatypes.EmptyBoard()
	board[3][3] = datatypes.CellOpponent
	board[4][4] = datatypes.CellOpponent

	moves := CriticalMoves(board, datatypes.PatternDiagonal)
	assert.ElementsMatch(t, []int{2, 5}, moves)
}

func TestCriticalMoves_SingleCellIsNotARun(t *testing.T) {
	board := datatypes.EmptyBoard()
	board[5][3] = datatypes.CellOpponent

	assert.Empty(t, CriticalMoves(board, datatypes.PatternHorizontal))
}

func TestCriticalMoves_OccupiedEndsSkipped(t *testing.T) {
	board := datatypes.EmptyBoard()
	board[5][1] = datatypes.CellLearner
	board[5][2] = datatypes.CellOpponent
	board[5][3] = datatypes.CellOpponent
	board[5][4] = datatypes.CellLearner

	assert.Empty(t, CriticalMoves(board, datatypes.PatternHorizontal))
}

func TestCriticalMoves_DedupsColumns(t *testing.T) {
	board := datatypes.EmptyBoard()
	// Two stacked horizontal runs sharing the same open end columns.
	board[5][2] = datatypes.CellOpponent
	board[5][3] = datatypes.CellOpponent
	board[4][2] = datatypes.CellOpponent
	board[4][3] = datatypes.CellOpponent

	moves := CriticalMoves(board, datatypes.PatternHorizontal)
	assert.ElementsMatch(t, []int{1, 4}, moves)
}

func TestCriticalMoves_CappedAtThree(t *testing.T) {
	board := datatypes.EmptyBoard()
	// Separate runs on separate rows produce five distinct candidates.
	board[3][1] = datatypes.CellOpponent
	board[3][2] = datatypes.CellOpponent
	board[4][4] = datatypes.CellOpponent
	board[4][5] = datatypes.CellOpponent
	board[5][2] = datatypes.CellOpponent
	board[5][3] = datatypes.CellOpponent

	moves := CriticalMoves(board, datatypes.PatternHorizontal)
	assert.Len(t, moves, maxCriticalMoves)
}

func TestCriticalMoves_RejectsBadInput(t *testing.T) {
	board := datatypes.EmptyBoard()
	board[5][2] = datatypes.CellOpponent
	board[5][3] = datatypes.CellOpponent

	assert.Nil(t, CriticalMoves(board, datatypes.PatternType("bogus")))
	assert.Nil(t, CriticalMoves(datatypes.Board{}, datatypes.PatternHorizontal))
}
