// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package observability provides Prometheus metrics for the continuous
// learning pipeline.
//
// # Description
//
// Metrics cover the full update cycle: games ingested, losses analyzed,
// training attempts and their outcomes, buffer population, per-pattern
// defense rates, and status-channel fan-out. Exposed via /metrics for
// Prometheus + Grafana.
//
// # Thread Safety
//
// All metric operations are thread-safe via Prometheus's internal locking.
package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace for all metrics.
const metricsNamespace = "dropfour"

// Subsystem for learning-pipeline metrics.
const learningSubsystem = "learning"

// Metrics holds all Prometheus metrics for the learning pipeline.
// Initialize once at startup via Default(), or with New against a private
// registry in tests.
type Metrics struct {
	// GamesProcessed counts completed games ingested by the pipeline.
	GamesProcessed prometheus.Counter

	// LossesAnalyzed counts losses that went through pattern analysis.
	LossesAnalyzed prometheus.Counter

	// SkippedRecords counts malformed game records dropped at intake.
	SkippedRecords prometheus.Counter

	// UpdateAttempts counts training attempts by result.
	// Labels: result (committed, rejected, failed)
	UpdateAttempts *prometheus.CounterVec

	// TrainingDuration measures wall time of the training step.
	TrainingDuration prometheus.Histogram

	// BufferSize tracks the experience memory population.
	BufferSize prometheus.Gauge

	// ModelVersion tracks the committed model version.
	ModelVersion prometheus.Gauge

	// PatternDefenseRate tracks the measured defense rate per pattern.
	// Labels: pattern (horizontal, vertical, diagonal, anti-diagonal)
	PatternDefenseRate *prometheus.GaugeVec

	// Subscribers tracks connected status-channel subscribers.
	Subscribers prometheus.Gauge

	// DroppedSubscribers counts subscribers removed after send failures.
	DroppedSubscribers prometheus.Counter

	// StabilityVerdicts counts stability observations by verdict.
	// Labels: verdict (ok, catastrophic, degrading)
	StabilityVerdicts *prometheus.CounterVec
}

// New creates the metric set against the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		GamesProcessed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "games_processed_total",
			Help:      "Completed games ingested by the pipeline.",
		}),
		LossesAnalyzed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "losses_analyzed_total",
			Help:      "Losses that went through pattern analysis.",
		}),
		SkippedRecords: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "skipped_records_total",
			Help:      "Malformed game records dropped at intake.",
		}),
		UpdateAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "update_attempts_total",
			Help:      "Training attempts by result.",
		}, []string{"result"}),
		TrainingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "training_duration_seconds",
			Help:      "Wall time of the training step.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BufferSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "buffer_size",
			Help:      "Experience memory population.",
		}),
		ModelVersion: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "model_version",
			Help:      "Committed model version.",
		}),
		PatternDefenseRate: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "pattern_defense_rate",
			Help:      "Measured defense rate per threat pattern.",
		}, []string{"pattern"}),
		Subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "subscribers",
			Help:      "Connected status-channel subscribers.",
		}),
		DroppedSubscribers: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "dropped_subscribers_total",
			Help:      "Subscribers removed after send failures.",
		}),
		StabilityVerdicts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: learningSubsystem,
			Name:      "stability_verdicts_total",
			Help:      "Stability observations by verdict.",
		}, []string{"verdict"}),
	}
}

var (
	defaultMetrics *Metrics
	defaultOnce    sync.Once
)

// Default returns the singleton metric set registered against the default
// Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}
