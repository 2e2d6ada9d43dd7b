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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dropfour/services/learning/datatypes"
	"github.com/AleutianAI/dropfour/services/model"
)

func trainedPolicy(t *testing.T) *model.LinearPolicy {
	t.Helper()
	p := model.NewLinearPolicy()
	board := datatypes.EmptyBoard()
	board[5][2] = datatypes.CellOpponent
	p.TrainStep([]model.Example{{Board: board, Action: 2, Reward: -1.0}}, 0.05)
	return p
}

func TestVersionManager_StartsAtOne(t *testing.T) {
	v := NewVersionManager(model.NewLinearPolicy())
	assert.Equal(t, 1, v.Version())
	assert.True(t, v.LastCommit().IsZero())
	assert.Zero(t, v.SnapshotCount())
}

func TestCommit_AdvancesVersionAndStampsTime(t *testing.T) {
	v := NewVersionManager(model.NewLinearPolicy())
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	v.Commit(now)
	assert.Equal(t, 2, v.Version())
	assert.Equal(t, now, v.LastCommit())

	v.Commit(now.Add(time.Hour))
	assert.Equal(t, 3, v.Version())
}

func TestRollback_RestoresBitIdenticalParameters(t *testing.T) {
	live := trainedPolicy(t)
	v := NewVersionManager(live)

	saved := live.Parameters()
	v.Backup(time.Now())

	// A further training step diverges the live vector.
	board := datatypes.EmptyBoard()
	live.TrainStep([]model.Example{{Board: board, Action: 5, Reward: -1.0}}, 0.1)
	require.NotEqual(t, saved, live.Parameters())

	require.True(t, v.Rollback())
	assert.Equal(t, saved, live.Parameters())
	assert.Equal(t, 1, v.Version(), "rollback must not advance the version")
}

func TestRollback_EmptyRingIsNoOp(t *testing.T) {
	live := trainedPolicy(t)
	before := live.Parameters()
	v := NewVersionManager(live)

	assert.False(t, v.Rollback())
	assert.Equal(t, before, live.Parameters())
}

func TestBackup_RingCapacity(t *testing.T) {
	live := trainedPolicy(t)
	v := NewVersionManager(live)

	for i := 0; i < 25; i++ {
		v.Backup(time.Now())
		v.Commit(time.Now())
	}
	assert.Equal(t, 10, v.SnapshotCount())

	// The surviving snapshots are the most recent ten.
	assert.Equal(t, 16, v.history[0].Version)
	assert.Equal(t, 25, v.history[len(v.history)-1].Version)
}

func TestBackup_SnapshotIsIsolatedFromLiveTraining(t *testing.T) {
	live := trainedPolicy(t)
	v := NewVersionManager(live)
	v.Backup(time.Now())

	snapshot := make([]float64, len(v.history[0].Parameters))
	copy(snapshot, v.history[0].Parameters)

	board := datatypes.EmptyBoard()
	live.TrainStep([]model.Example{{Board: board, Action: 0, Reward: -1.0}}, 0.1)

	assert.Equal(t, snapshot, v.history[0].Parameters,
		"training after backup must not mutate the stored snapshot")
}
