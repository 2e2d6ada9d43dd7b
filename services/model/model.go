// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package model defines the opaque parametric move-selection function the
// learning pipeline trains and the serving layer queries. The pipeline
// depends only on the interfaces here; the concrete architecture behind
// them is deliberately out of scope for the learner.
package model

import "github.com/AleutianAI/dropfour/services/learning/datatypes"

// Predictor scores candidate moves for a board position.
//
// Predict returns one score per column; higher is better. BestMove is the
// argmax of Predict. Implementations must be safe for concurrent use: the
// serving layer calls Predict while the pipeline trains.
type Predictor interface {
	Predict(board datatypes.Board) []float64
	BestMove(board datatypes.Board) int
}

// Example is one prepared training pair: a board position, the action that
// was taken, and the shaped reward attached to it by the trainer.
type Example struct {
	Board  datatypes.Board
	Action int
	Reward float64
}

// Trainable extends Predictor with the parameter surface the learner needs.
//
// Parameters and SetParameters move full copies of the flat parameter
// vector; SetParameters installs its argument atomically, so concurrent
// Predict calls observe either the previous or the new vector, never a
// torn one. TrainStep applies one gradient step for the reward-weighted
// classification loss over the minibatch and reports the mean loss plus
// the per-example losses in batch order.
type Trainable interface {
	Predictor
	Parameters() []float64
	SetParameters(params []float64)
	TrainStep(batch []Example, learningRate float64) (meanLoss float64, perExample []float64)
}
