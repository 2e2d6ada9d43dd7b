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

import "github.com/AleutianAI/dropfour/services/learning/datatypes"

// maxCriticalMoves caps the candidate columns a defense query returns.
const maxCriticalMoves = 3

// patternDelta maps each threat orientation to its board direction.
var patternDelta = map[datatypes.PatternType][2]int{
	datatypes.PatternHorizontal:   {0, 1},
	datatypes.PatternVertical:     {1, 0},
	datatypes.PatternDiagonal:     {1, 1},
	datatypes.PatternAntiDiagonal: {1, -1},
}

// CriticalMoves scans a board for opponent runs of two or more along the
// given pattern orientation and returns the columns of the empty cells at
// either end of each run, capped at 3 distinct columns. This is the cheap
// heuristic behind defense queries; the trained model remains the real
// defense.
func CriticalMoves(board datatypes.Board, pattern datatypes.PatternType) []int {
	delta, ok := patternDelta[pattern]
	if !ok || board.Validate() != nil {
		return nil
	}
	dr, dc := delta[0], delta[1]

	seen := make(map[int]bool)
	var critical []int
	addIfOpen := func(r, c int) {
		if r < 0 || r >= datatypes.BoardRows || c < 0 || c >= datatypes.BoardCols {
			return
		}
		if board[r][c] != datatypes.CellEmpty || seen[c] {
			return
		}
		seen[c] = true
		critical = append(critical, c)
	}

	for r := 0; r < datatypes.BoardRows; r++ {
		for c := 0; c < datatypes.BoardCols; c++ {
			if board[r][c] != datatypes.CellOpponent {
				continue
			}
			// Only start a run at its first cell.
			pr, pc := r-dr, c-dc
			if pr >= 0 && pr < datatypes.BoardRows && pc >= 0 && pc < datatypes.BoardCols &&
				board[pr][pc] == datatypes.CellOpponent {
				continue
			}
			run := 1
			nr, nc := r+dr, c+dc
			for nr >= 0 && nr < datatypes.BoardRows && nc >= 0 && nc < datatypes.BoardCols &&
				board[nr][nc] == datatypes.CellOpponent {
				run++
				nr, nc = nr+dr, nc+dc
			}
			if run >= 2 {
				addIfOpen(nr, nc)
				addIfOpen(r-dr, c-dc)
			}
		}
	}

	if len(critical) > maxCriticalMoves {
		critical = critical[:maxCriticalMoves]
	}
	return critical
}
