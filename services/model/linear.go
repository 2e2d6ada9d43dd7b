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
	"math"
	"sync/atomic"

	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

const (
	// inputDim is the two-plane board encoding: one plane per player.
	inputDim = 2 * datatypes.BoardRows * datatypes.BoardCols

	// paramLen is inputDim weights per column plus one bias per column.
	paramLen = datatypes.BoardCols*inputDim + datatypes.BoardCols
)

// LinearPolicy is a linear softmax policy over the two-plane board
// encoding. It is the reference Trainable implementation; the pipeline
// never assumes more about the model than the Trainable contract.
//
// The parameter vector is published through an atomic pointer. Readers
// load the current vector once per call and compute against that snapshot,
// so a concurrent TrainStep or SetParameters can never expose a
// half-written parameter set.
type LinearPolicy struct {
	params atomic.Pointer[[]float64]
}

// NewLinearPolicy returns a policy with zero-initialized parameters, which
// scores every column equally until trained.
func NewLinearPolicy() *LinearPolicy {
	p := &LinearPolicy{}
	initial := make([]float64, paramLen)
	p.params.Store(&initial)
	return p
}

// Encode flattens a board into the two-plane feature vector: plane one for
// the learner's pieces, plane two for the opponent's.
func Encode(board datatypes.Board) []float64 {
	x := make([]float64, inputDim)
	for r := 0; r < datatypes.BoardRows && r < len(board); r++ {
		for c := 0; c < datatypes.BoardCols && c < len(board[r]); c++ {
			switch board[r][c] {
			case datatypes.CellLearner:
				x[r*datatypes.BoardCols+c] = 1
			case datatypes.CellOpponent:
				x[datatypes.BoardRows*datatypes.BoardCols+r*datatypes.BoardCols+c] = 1
			}
		}
	}
	return x
}

// Predict returns the softmax move distribution over the seven columns.
func (p *LinearPolicy) Predict(board datatypes.Board) []float64 {
	params := *p.params.Load()
	return softmax(logits(params, Encode(board)))
}

// BestMove returns the column with the highest predicted score.
func (p *LinearPolicy) BestMove(board datatypes.Board) int {
	scores := p.Predict(board)
	best := 0
	for i, s := range scores {
		if s > scores[best] {
			best = i
		}
	}
	return best
}

// Parameters returns a copy of the current parameter vector.
func (p *LinearPolicy) Parameters() []float64 {
	cur := *p.params.Load()
	out := make([]float64, len(cur))
	copy(out, cur)
	return out
}

// SetParameters installs a copy of params as the live vector. Used by the
// version manager's rollback path; the restore is bit-identical because
// both directions copy the raw float64 slice.
func (p *LinearPolicy) SetParameters(params []float64) {
	next := make([]float64, len(params))
	copy(next, params)
	p.params.Store(&next)
}

// TrainStep applies one averaged SGD step of the reward-weighted
// cross-entropy loss and atomically publishes the updated vector.
func (p *LinearPolicy) TrainStep(batch []Example, learningRate float64) (float64, []float64) {
	if len(batch) == 0 {
		return 0, nil
	}
	cur := *p.params.Load()
	grad := make([]float64, paramLen)
	perExample := make([]float64, len(batch))
	total := 0.0

	for i, ex := range batch {
		x := Encode(ex.Board)
		probs := softmax(logits(cur, x))

		// Loss = cross-entropy(action) * (-reward): reinforce winning
		// trajectories, penalize losing ones.
		ce := -math.Log(probs[ex.Action] + 1e-12)
		loss := ce * -ex.Reward
		perExample[i] = loss
		total += loss

		// d(loss)/d(logit_j) = -reward * (p_j - 1[j == action])
		for j := 0; j < datatypes.BoardCols; j++ {
			delta := probs[j]
			if j == ex.Action {
				delta -= 1
			}
			delta *= -ex.Reward
			row := j * inputDim
			for k, xk := range x {
				if xk != 0 {
					grad[row+k] += delta * xk
				}
			}
			grad[datatypes.BoardCols*inputDim+j] += delta
		}
	}

	next := make([]float64, paramLen)
	scale := learningRate / float64(len(batch))
	for i := range next {
		next[i] = cur[i] - scale*grad[i]
	}
	p.params.Store(&next)

	return total / float64(len(batch)), perExample
}

func logits(params, x []float64) []float64 {
	out := make([]float64, datatypes.BoardCols)
	for j := 0; j < datatypes.BoardCols; j++ {
		sum := params[datatypes.BoardCols*inputDim+j]
		row := j * inputDim
		for k, xk := range x {
			if xk != 0 {
				sum += params[row+k] * xk
			}
		}
		out[j] = sum
	}
	return out
}

func softmax(z []float64) []float64 {
	max := z[0]
	for _, v := range z[1:] {
		if v > max {
			max = v
		}
	}
	out := make([]float64, len(z))
	sum := 0.0
	for i, v := range z {
		out[i] = math.Exp(v - max)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}
