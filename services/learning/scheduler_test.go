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
)

func TestShouldUpdate(t *testing.T) {
	s := RetrainScheduler{
		MinGamesForUpdate: 50,
		UpdateFrequency:   100,
		Cooldown:          5 * time.Minute,
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		bufferLen      int
		gamesProcessed int
		lastCommit     time.Time
		want           bool
	}{
		{"all conditions met, first commit", 50, 100, time.Time{}, true},
		{"all conditions met, cooldown elapsed", 500, 200, now.Add(-6 * time.Minute), true},
		{"cooldown exactly elapsed", 500, 200, now.Add(-5 * time.Minute), true},
		{"buffer too small", 49, 100, time.Time{}, false},
		{"off-frequency game count", 50, 101, time.Time{}, false},
		{"cooldown still running", 500, 200, now.Add(-4 * time.Minute), false},
		{"buffer too small and off-frequency", 49, 101, time.Time{}, false},
		{"buffer too small and cooldown running", 49, 100, now.Add(-time.Minute), false},
		{"off-frequency and cooldown running", 500, 101, now.Add(-time.Minute), false},
		{"zero games processed counts as on-frequency", 50, 0, time.Time{}, true},
		{"everything wrong", 10, 37, now.Add(-time.Minute), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.ShouldUpdate(tt.bufferLen, tt.gamesProcessed, tt.lastCommit, now)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestShouldUpdate_IsPure(t *testing.T) {
	s := RetrainScheduler{MinGamesForUpdate: 1, UpdateFrequency: 1, Cooldown: time.Minute}
	now := time.Now()
	for i := 0; i < 5; i++ {
		assert.True(t, s.ShouldUpdate(10, 10, time.Time{}, now), "call %d changed outcome", i)
	}
}
