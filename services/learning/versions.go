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
	"time"

	"github.com/AleutianAI/dropfour/services/model"
)

// snapshotRingCap bounds the in-memory parameter history.
const snapshotRingCap = 10

// ModelSnapshot is one full parameter copy taken before a training
// attempt. Consumed only on rollback.
type ModelSnapshot struct {
	Version    int
	Parameters []float64
	TakenAt    time.Time
}

// VersionManager owns the live model's version counter and the bounded
// snapshot ring used for rollback.
//
// Only the pipeline dispatch loop calls into it, so it carries no locking.
type VersionManager struct {
	live       model.Trainable
	version    int
	lastCommit time.Time
	history    []ModelSnapshot
}

// NewVersionManager starts version numbering at 1, matching the serving
// layer's initial deployment.
func NewVersionManager(live model.Trainable) *VersionManager {
	return &VersionManager{live: live, version: 1}
}

// Version returns the current committed version number.
func (v *VersionManager) Version() int {
	return v.version
}

// LastCommit returns the wall time of the most recent commit, or the zero
// time when no update has been committed yet.
func (v *VersionManager) LastCommit() time.Time {
	return v.lastCommit
}

// SnapshotCount returns the current depth of the snapshot ring.
func (v *VersionManager) SnapshotCount() int {
	return len(v.history)
}

// Backup pushes a full parameter snapshot onto the ring, dropping the
// oldest when the ring is full. Called immediately before every training
// attempt.
func (v *VersionManager) Backup(now time.Time) {
	if len(v.history) >= snapshotRingCap {
		v.history = v.history[1:]
	}
	v.history = append(v.history, ModelSnapshot{
		Version:    v.version,
		Parameters: v.live.Parameters(),
		TakenAt:    now,
	})
}

// Commit records an accepted update: the version counter advances and the
// commit time is stamped. The trained parameters are already live, so no
// copy happens here.
func (v *VersionManager) Commit(now time.Time) {
	v.version++
	v.lastCommit = now
}

// Rollback restores the most recently pushed snapshot into the live model.
// The version counter is unchanged. A rollback with an empty ring is a
// no-op; the pipeline always backs up before training so this only happens
// if Rollback is called outside an update cycle.
func (v *VersionManager) Rollback() bool {
	if len(v.history) == 0 {
		return false
	}
	v.live.SetParameters(v.history[len(v.history)-1].Parameters)
	return true
}
