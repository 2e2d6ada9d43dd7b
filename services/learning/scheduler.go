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

import "time"

// RetrainScheduler is the stateless gate deciding whether conditions
// justify a retraining attempt. It holds configuration only; every call is
// a pure function of its arguments.
type RetrainScheduler struct {
	// MinGamesForUpdate is the minimum buffer population before any
	// retraining attempt.
	MinGamesForUpdate int

	// UpdateFrequency gates attempts to every Nth processed game.
	UpdateFrequency int

	// Cooldown is the minimum wall time between successful commits.
	Cooldown time.Duration
}

// ShouldUpdate reports whether a retraining attempt is justified right
// now. All three conditions must hold: the buffer holds at least
// MinGamesForUpdate experiences, the games-processed counter is a multiple
// of UpdateFrequency, and either no commit has happened yet (lastCommit is
// the zero time) or the cooldown has elapsed since the last one.
func (s RetrainScheduler) ShouldUpdate(bufferLen, gamesProcessed int, lastCommit, now time.Time) bool {
	if bufferLen < s.MinGamesForUpdate {
		return false
	}
	if gamesProcessed%s.UpdateFrequency != 0 {
		return false
	}
	if !lastCommit.IsZero() && now.Sub(lastCommit) < s.Cooldown {
		return false
	}
	return true
}
