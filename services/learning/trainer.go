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
	"context"
	"fmt"
	"math"

	"github.com/AleutianAI/dropfour/pkg/logging"
	"github.com/AleutianAI/dropfour/services/learning/datatypes"
	"github.com/AleutianAI/dropfour/services/model"
)

// Training constants.
const (
	trainingEpochs = 5

	// lossTailMoves widens the penalty on losses decided in the final
	// moves of a game.
	lossTailMoves = 5
)

// TrainingResult carries the outcome of one training attempt: the metrics
// map the validation gate judges, the aggregate improvement scalar, and
// per-example losses (batch order) for priority re-ranking.
type TrainingResult struct {
	Metrics       map[string]float64
	Improvement   float64
	ExampleLosses []float64
}

// TrainingExecutor runs a bounded number of optimization epochs against
// the live parameter set and measures the result. It never touches the
// snapshot ring; backup and rollback are the version manager's job.
type TrainingExecutor struct {
	live         model.Trainable
	learningRate float64
	batchSize    int
	log          *logging.Logger
}

// NewTrainingExecutor wires an executor to the live model.
func NewTrainingExecutor(live model.Trainable, learningRate float64, batchSize int, log *logging.Logger) *TrainingExecutor {
	return &TrainingExecutor{
		live:         live,
		learningRate: learningRate,
		batchSize:    batchSize,
		log:          log,
	}
}

// Train runs the fixed epoch loop over the sampled batch, then measures
// per-pattern defense accuracy on positions supplied by the tracker.
//
// The context is checked between minibatches; cancellation aborts the
// attempt with an error, which the pipeline treats as a validation
// rejection and rolls back.
func (t *TrainingExecutor) Train(
	ctx context.Context,
	batch []*datatypes.Experience,
	focus datatypes.PatternType,
	positions func(datatypes.PatternType) []DefensePosition,
) (*TrainingResult, error) {
	if len(batch) == 0 {
		return nil, fmt.Errorf("training batch is empty")
	}

	examples := make([]model.Example, len(batch))
	for i, exp := range batch {
		examples[i] = model.Example{
			Board:  exp.BoardBefore,
			Action: exp.Action,
			Reward: shapeReward(exp),
		}
	}

	metrics := make(map[string]float64)
	perExample := make([]float64, len(examples))

	for epoch := 0; epoch < trainingEpochs; epoch++ {
		epochLoss := 0.0
		steps := 0
		for start := 0; start < len(examples); start += t.batchSize {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("training aborted in epoch %d: %w", epoch, err)
			}
			end := start + t.batchSize
			if end > len(examples) {
				end = len(examples)
			}
			loss, losses := t.live.TrainStep(examples[start:end], t.learningRate)
			epochLoss += loss
			steps++
			for i, l := range losses {
				perExample[start+i] = math.Abs(l)
			}
		}
		metrics[fmt.Sprintf("epoch_%d_loss", epoch)] = epochLoss / float64(steps)
	}

	// Defense accuracy: focused pattern only, or the standard trio when
	// unfocused.
	tested := []datatypes.PatternType{
		datatypes.PatternHorizontal,
		datatypes.PatternVertical,
		datatypes.PatternDiagonal,
	}
	if focus != "" {
		tested = []datatypes.PatternType{focus}
	}
	for _, pattern := range tested {
		rate := t.defenseAccuracy(positions(pattern))
		metrics[string(pattern)+"_defense"] = rate
	}

	// Aggregate improvement: the mean across everything measured,
	// epoch losses included.
	sum := 0.0
	for _, v := range metrics {
		sum += v
	}
	overall := sum / float64(len(metrics))
	metrics["overall_accuracy"] = overall

	t.log.Debug("training attempt finished",
		"batch_size", len(batch),
		"focus", string(focus),
		"overall", overall,
	)

	return &TrainingResult{
		Metrics:       metrics,
		Improvement:   overall,
		ExampleLosses: perExample,
	}, nil
}

// defenseAccuracy is the fraction of positions where the model's top
// prediction is among the recorded blocking moves. With no positions to
// test, 0.5 keeps the metric uninformative instead of punishing or
// rewarding.
func (t *TrainingExecutor) defenseAccuracy(positions []DefensePosition) float64 {
	if len(positions) == 0 {
		return 0.5
	}
	correct := 0
	for _, pos := range positions {
		predicted := t.live.BestMove(pos.Board)
		for _, blocking := range pos.BlockingMoves {
			if predicted == blocking {
				correct++
				break
			}
		}
	}
	return float64(correct) / float64(len(positions))
}

// shapeReward maps an experience to its training reward: +1 win, 0 draw,
// -1 loss, scaled into [0.5, 1.0] of full magnitude by how late the move
// came, and doubled for losses decided within the final 5 moves.
func shapeReward(exp *datatypes.Experience) float64 {
	var reward float64
	switch exp.Outcome {
	case datatypes.OutcomeWin:
		reward = 1.0
	case datatypes.OutcomeLoss:
		reward = -1.0
	default:
		reward = 0.0
	}

	positionFactor := float64(exp.MoveIndex+1) / float64(exp.TotalMoves)
	reward *= 0.5 + 0.5*positionFactor

	if exp.Outcome == datatypes.OutcomeLoss && exp.MoveIndex >= exp.TotalMoves-lossTailMoves {
		reward *= 2.0
	}
	return reward
}
