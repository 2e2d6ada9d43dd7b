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

// stabilityWindow bounds the rolling score history.
const stabilityWindow = 100

// StabilityVerdict classifies one stability observation.
type StabilityVerdict int

const (
	// StabilityOK means the latest score is within tolerance of baseline.
	StabilityOK StabilityVerdict = iota

	// StabilityCatastrophic means the latest score fell below
	// baseline * (1 - threshold) in a single observation.
	StabilityCatastrophic

	// StabilityDegrading means the mean of the last 10 scores drifted
	// below baseline * (1 - threshold/2).
	StabilityDegrading
)

// String returns the verdict name for logs.
func (v StabilityVerdict) String() string {
	switch v {
	case StabilityOK:
		return "ok"
	case StabilityCatastrophic:
		return "catastrophic"
	case StabilityDegrading:
		return "degrading"
	default:
		return "unknown"
	}
}

// StabilityMonitor is the long-horizon guard against slow degradation
// across many update cycles. It is advisory: it reports instability but
// never triggers rollback itself; that belongs to the validation gate at
// commit time.
//
// The first observed score becomes the baseline for all later checks.
type StabilityMonitor struct {
	threshold   float64
	baseline    float64
	hasBaseline bool
	history     []float64
}

// NewStabilityMonitor creates a monitor with the given degradation
// threshold (typically 0.1).
func NewStabilityMonitor(threshold float64) *StabilityMonitor {
	return &StabilityMonitor{threshold: threshold}
}

// Baseline returns the captured baseline score and whether one exists yet.
func (m *StabilityMonitor) Baseline() (float64, bool) {
	return m.baseline, m.hasBaseline
}

// Observe records one periodic evaluation score and classifies it.
func (m *StabilityMonitor) Observe(score float64) StabilityVerdict {
	if !m.hasBaseline {
		m.baseline = score
		m.hasBaseline = true
	}

	if len(m.history) >= stabilityWindow {
		m.history = m.history[1:]
	}
	m.history = append(m.history, score)

	if score < m.baseline*(1-m.threshold) {
		return StabilityCatastrophic
	}

	if len(m.history) >= 10 {
		sum := 0.0
		for _, s := range m.history[len(m.history)-10:] {
			sum += s
		}
		if sum/10 < m.baseline*(1-m.threshold/2) {
			return StabilityDegrading
		}
	}

	return StabilityOK
}
