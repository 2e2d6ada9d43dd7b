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
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

func newTestMemory(capacity int) *ExperienceMemory {
	return NewExperienceMemory(capacity, WithRand(rand.New(rand.NewSource(1))))
}

func plainExperience(action int) *datatypes.Experience {
	return &datatypes.Experience{
		BoardBefore: datatypes.EmptyBoard(),
		BoardAfter:  datatypes.EmptyBoard(),
		Action:      action,
		Outcome:     datatypes.OutcomeWin,
	}
}

func patternLossExperience(pattern datatypes.PatternType) *datatypes.Experience {
	return &datatypes.Experience{
		BoardBefore: datatypes.EmptyBoard(),
		BoardAfter:  datatypes.EmptyBoard(),
		Action:      3,
		Outcome:     datatypes.OutcomeLoss,
		LossPattern: &datatypes.LossPattern{
			Type:              pattern,
			CriticalPositions: []datatypes.CriticalPosition{{Row: 5, Column: 3}},
		},
	}
}

// =============================================================================
// Add and Eviction Tests
// =============================================================================

func TestAdd_DefaultPriority(t *testing.T) {
	m := newTestMemory(16)

	// Empty memory: unspecified priority defaults to 1.0.
	m.Add(plainExperience(0), 0)
	assert.Equal(t, 1.0, m.MaxPriority())

	// Non-empty: unspecified priority inherits the current maximum.
	m.Add(plainExperience(1), 2.5)
	m.Add(plainExperience(2), 0)
	assert.Equal(t, 2.5, m.entries[2].priority)
}

func TestAdd_CapacityBound(t *testing.T) {
	m := newTestMemory(8)
	for i := 0; i < 50; i++ {
		m.Add(plainExperience(i%datatypes.BoardCols), 1.0)
	}
	assert.Equal(t, 8, m.Len())
}

func TestAdd_TinyCapacityKeepsOneBucketSlot(t *testing.T) {
	// Capacity below 4 yields a fractional bucket quarter; the bucket
	// must still hold one entry instead of blowing up on the first
	// pattern loss.
	m := newTestMemory(3)
	for i := 0; i < 5; i++ {
		m.Add(patternLossExperience(datatypes.PatternHorizontal), 2.0)
	}

	assert.Equal(t, 3, m.Len())
	assert.Equal(t, 1, m.BucketLen(datatypes.PatternHorizontal))
}

func TestEvictions_CountsLifetimeEvictions(t *testing.T) {
	m := newTestMemory(4)
	for i := 0; i < 4; i++ {
		m.Add(plainExperience(i), 1.0)
	}
	assert.Equal(t, 0, m.Evictions())

	for i := 0; i < 3; i++ {
		m.Add(plainExperience(i), 1.0)
	}
	assert.Equal(t, 3, m.Evictions())
	assert.Equal(t, 4, m.Len())
}

func TestAdd_PatternBucketMembership(t *testing.T) {
	m := newTestMemory(16)
	m.Add(patternLossExperience(datatypes.PatternHorizontal), 2.0)
	m.Add(patternLossExperience(datatypes.PatternVertical), 2.0)
	m.Add(plainExperience(0), 1.0)

	assert.Equal(t, 1, m.BucketLen(datatypes.PatternHorizontal))
	assert.Equal(t, 1, m.BucketLen(datatypes.PatternVertical))
	assert.Equal(t, 0, m.BucketLen(datatypes.PatternDiagonal))
}

func TestEviction_PreservesSubsetInvariant(t *testing.T) {
	// Capacity 8, bucket cap 2. Fill with pattern losses so that main
	// buffer eviction must also remove bucket members.
	m := newTestMemory(8)
	for i := 0; i < 20; i++ {
		m.Add(patternLossExperience(datatypes.PatternHorizontal), 2.0)
	}

	assert.Equal(t, 8, m.Len())
	require.LessOrEqual(t, m.BucketLen(datatypes.PatternHorizontal), 2)

	// Every bucket member must still be in the main buffer.
	inMain := make(map[*datatypes.Experience]bool, m.Len())
	for _, e := range m.entries {
		inMain[e.exp] = true
	}
	for _, exp := range m.buckets[datatypes.PatternHorizontal] {
		assert.True(t, inMain[exp], "bucket member evicted from main buffer")
	}
}

// =============================================================================
// Sampling Tests
// =============================================================================

func TestSample_ReturnsWholeBufferWhenShort(t *testing.T) {
	m := newTestMemory(64)
	for i := 0; i < 5; i++ {
		m.Add(plainExperience(i), 1.0)
	}

	batch := m.Sample(10, "")
	assert.Len(t, batch.Experiences, 5)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, batch.Indices)
	assert.Zero(t, batch.FromBucket)
}

func TestSample_PatternFocusDrawsFromBucket(t *testing.T) {
	// Spec'd scenario: 51 horizontal-loss experiences, sample 10 with
	// horizontal focus, at least 7 must come from the bucket.
	m := newTestMemory(256)
	for i := 0; i < 51; i++ {
		m.Add(patternLossExperience(datatypes.PatternHorizontal), 2.0)
	}

	batch := m.Sample(10, datatypes.PatternHorizontal)
	assert.Len(t, batch.Experiences, 10)
	assert.GreaterOrEqual(t, batch.FromBucket, 7)

	// Bucket draws are marked with index -1, the weighted remainder with
	// real main-buffer indices.
	for i, idx := range batch.Indices {
		if i < batch.FromBucket {
			assert.Equal(t, -1, idx)
		} else {
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, m.Len())
		}
	}
}

func TestSample_FocusOnEmptyBucketFallsBack(t *testing.T) {
	m := newTestMemory(64)
	for i := 0; i < 20; i++ {
		m.Add(plainExperience(i%datatypes.BoardCols), 1.0)
	}

	batch := m.Sample(10, datatypes.PatternDiagonal)
	assert.Len(t, batch.Experiences, 10)
	assert.Zero(t, batch.FromBucket)
}

func TestSample_HighPriorityDominates(t *testing.T) {
	m := newTestMemory(64)
	favored := plainExperience(6)
	m.Add(favored, 1000.0)
	for i := 0; i < 9; i++ {
		m.Add(plainExperience(0), 0.011)
	}

	hits := 0
	for trial := 0; trial < 20; trial++ {
		batch := m.Sample(10, "")
		for _, exp := range batch.Experiences {
			if exp == favored {
				hits++
			}
		}
	}
	// With a ~100x priority ratio the favored entry must dominate the
	// draws even at beta 0.4.
	assert.Greater(t, hits, 100)
}

func TestSample_BetaAnneals(t *testing.T) {
	m := newTestMemory(64)
	for i := 0; i < 32; i++ {
		m.Add(plainExperience(i%datatypes.BoardCols), 1.0)
	}

	assert.Equal(t, betaInitial, m.beta)
	m.Sample(8, "")
	assert.InDelta(t, betaInitial+betaIncrement, m.beta, 1e-12)

	// A short-buffer early return does not advance beta.
	m.Sample(1000, "")
	assert.InDelta(t, betaInitial+betaIncrement, m.beta, 1e-12)
}

// =============================================================================
// Priority Update Tests
// =============================================================================

func TestUpdatePriorities_AppliesFloor(t *testing.T) {
	m := newTestMemory(16)
	for i := 0; i < 4; i++ {
		m.Add(plainExperience(i), 1.0)
	}

	m.UpdatePriorities([]int{0, 2}, []float64{0.0, 3.0})
	assert.Equal(t, priorityFloor, m.entries[0].priority, "zero loss still gets the floor epsilon")
	assert.Equal(t, 3.0+priorityFloor, m.entries[2].priority)
	assert.Equal(t, 1.0, m.entries[1].priority, "untouched entries keep their priority")
}

func TestUpdatePriorities_SkipsBucketMarkersAndBadIndices(t *testing.T) {
	m := newTestMemory(16)
	for i := 0; i < 3; i++ {
		m.Add(plainExperience(i), 1.0)
	}

	m.UpdatePriorities([]int{-1, 99, 1}, []float64{5.0, 5.0, 5.0})
	assert.Equal(t, 1.0, m.entries[0].priority)
	assert.Equal(t, 5.0+priorityFloor, m.entries[1].priority)
}
