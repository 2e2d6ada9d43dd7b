// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes defines the typed records exchanged by the continuous
// learning pipeline: inbound game outcomes, extracted training experiences,
// threat-pattern descriptors, and the control/event message surface of the
// status channel.
//
// Everything here is validated at construction. The pipeline never accepts
// a free-form map; malformed input is rejected before it can touch the
// experience memory or the live model.
package datatypes

import (
	"fmt"
	"time"
)

// Board dimensions for the column-drop game.
const (
	BoardRows = 6
	BoardCols = 7
)

// =============================================================================
// Cells and Boards
// =============================================================================

// CellState is the content of one board cell.
type CellState string

const (
	CellEmpty    CellState = "Empty"
	CellLearner  CellState = "Yellow"
	CellOpponent CellState = "Red"
)

// Board is a row-major 6x7 grid, row 0 at the top. The serving layer owns
// the canonical encoding; within the pipeline a board is only ever read.
type Board [][]CellState

// Validate checks the board has exactly 6 rows of 7 known cells.
func (b Board) Validate() error {
	if len(b) != BoardRows {
		return fmt.Errorf("board has %d rows, want %d", len(b), BoardRows)
	}
	for r, row := range b {
		if len(row) != BoardCols {
			return fmt.Errorf("board row %d has %d cells, want %d", r, len(row), BoardCols)
		}
		for c, cell := range row {
			switch cell {
			case CellEmpty, CellLearner, CellOpponent:
			default:
				return fmt.Errorf("board cell (%d,%d) has unknown state %q", r, c, cell)
			}
		}
	}
	return nil
}

// EmptyBoard returns a fully empty board, mostly useful in tests.
func EmptyBoard() Board {
	b := make(Board, BoardRows)
	for r := range b {
		b[r] = make([]CellState, BoardCols)
		for c := range b[r] {
			b[r][c] = CellEmpty
		}
	}
	return b
}

// =============================================================================
// Outcomes, Phases, Patterns
// =============================================================================

// Outcome is the terminal result of a game from the learner's perspective.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeDraw Outcome = "draw"
	OutcomeLoss Outcome = "loss"
)

// ParseOutcome validates a raw outcome tag.
func ParseOutcome(s string) (Outcome, error) {
	switch Outcome(s) {
	case OutcomeWin, OutcomeDraw, OutcomeLoss:
		return Outcome(s), nil
	default:
		return "", fmt.Errorf("unknown outcome %q", s)
	}
}

// GamePhase partitions a game by move index: the first 8 half-moves are the
// opening, the final 10 are the endgame, everything between is the middle.
type GamePhase string

const (
	PhaseOpening GamePhase = "opening"
	PhaseMiddle  GamePhase = "middle"
	PhaseEndgame GamePhase = "endgame"
)

// PhaseOf derives the phase of move moveIndex in a game of totalMoves.
func PhaseOf(moveIndex, totalMoves int) GamePhase {
	switch {
	case moveIndex < 8:
		return PhaseOpening
	case moveIndex < totalMoves-10:
		return PhaseMiddle
	default:
		return PhaseEndgame
	}
}

// PatternType is a geometric threat class on the board.
type PatternType string

const (
	PatternHorizontal   PatternType = "horizontal"
	PatternVertical     PatternType = "vertical"
	PatternDiagonal     PatternType = "diagonal"
	PatternAntiDiagonal PatternType = "anti-diagonal"
)

// KnownPatterns lists every tracked pattern type in canonical order.
var KnownPatterns = []PatternType{
	PatternHorizontal,
	PatternVertical,
	PatternDiagonal,
	PatternAntiDiagonal,
}

// Known reports whether the pattern type is one of the tracked classes.
func (p PatternType) Known() bool {
	for _, k := range KnownPatterns {
		if p == k {
			return true
		}
	}
	return false
}

// =============================================================================
// Loss Patterns
// =============================================================================

// CriticalPosition is a board cell the opponent used to complete a threat.
// Column is the field the defense heuristics care about.
type CriticalPosition struct {
	Row    int `json:"row"`
	Column int `json:"column"`
}

// MoveMistake records a learner move later judged to have enabled the loss.
type MoveMistake struct {
	MoveIndex int `json:"moveIndex"`
	Column    int `json:"column"`
}

// LossPattern describes how a game was lost: the threat geometry, the cells
// that completed it, and the learner moves that allowed it.
type LossPattern struct {
	Type              PatternType        `json:"type"`
	CriticalPositions []CriticalPosition `json:"criticalPositions,omitempty"`
	Mistakes          []MoveMistake      `json:"aiMistakes,omitempty"`
}

// Validate rejects descriptors with an untracked pattern type or columns
// outside the board.
func (lp *LossPattern) Validate() error {
	if !lp.Type.Known() {
		return fmt.Errorf("unknown loss pattern type %q", lp.Type)
	}
	for _, pos := range lp.CriticalPositions {
		if pos.Column < 0 || pos.Column >= BoardCols {
			return fmt.Errorf("critical position column %d out of range", pos.Column)
		}
	}
	return nil
}

// BlockingColumns returns the columns of the critical positions, the moves
// that would have blocked the completed threat.
func (lp *LossPattern) BlockingColumns() []int {
	cols := make([]int, 0, len(lp.CriticalPositions))
	for _, pos := range lp.CriticalPositions {
		cols = append(cols, pos.Column)
	}
	return cols
}

// =============================================================================
// Game Records
// =============================================================================

// Actor tags who played a half-move.
type Actor string

const (
	ActorLearner  Actor = "AI"
	ActorOpponent Actor = "Human"
)

// Move is one half-move of a completed game as reported by the serving layer.
type Move struct {
	Player      Actor     `json:"playerId"`
	BoardBefore Board     `json:"boardStateBefore"`
	BoardAfter  Board     `json:"boardStateAfter"`
	Column      int       `json:"column"`
	Timestamp   time.Time `json:"timestamp"`
}

// GameRecord is an inbound completed game: the ordered half-moves, the
// terminal outcome, and an optional loss-pattern descriptor when the game
// was lost to a recognized threat.
type GameRecord struct {
	Moves       []Move       `json:"moves"`
	Outcome     Outcome      `json:"outcome"`
	LossPattern *LossPattern `json:"lossPattern,omitempty"`
}

// Validate checks the record is structurally complete. A record that fails
// here is logged and skipped by the pipeline; it never reaches the buffer.
func (g *GameRecord) Validate() error {
	if _, err := ParseOutcome(string(g.Outcome)); err != nil {
		return err
	}
	if len(g.Moves) == 0 {
		return fmt.Errorf("game record has no moves")
	}
	for i, mv := range g.Moves {
		if mv.Player != ActorLearner && mv.Player != ActorOpponent {
			return fmt.Errorf("move %d has unknown actor %q", i, mv.Player)
		}
		if mv.Column < 0 || mv.Column >= BoardCols {
			return fmt.Errorf("move %d column %d out of range", i, mv.Column)
		}
		if err := mv.BoardBefore.Validate(); err != nil {
			return fmt.Errorf("move %d board before: %w", i, err)
		}
		if err := mv.BoardAfter.Validate(); err != nil {
			return fmt.Errorf("move %d board after: %w", i, err)
		}
	}
	if g.LossPattern != nil {
		if err := g.LossPattern.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// Experiences
// =============================================================================

// Experience is one extracted training example: a board transition made by
// the learner, tagged with the game's terminal outcome and its position in
// the game. Immutable once created.
type Experience struct {
	BoardBefore Board
	BoardAfter  Board
	Action      int
	Outcome     Outcome
	MoveIndex   int
	TotalMoves  int
	Phase       GamePhase
	LossPattern *LossPattern
	CreatedAt   time.Time
}

// IsPatternLoss reports whether this experience belongs in a pattern bucket:
// a loss tagged with a tracked threat pattern.
func (e *Experience) IsPatternLoss() bool {
	return e.Outcome == OutcomeLoss && e.LossPattern != nil && e.LossPattern.Type.Known()
}
