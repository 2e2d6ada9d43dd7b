// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package learning implements the continuous learning pipeline: a bounded
// prioritized experience memory fed by completed games, a gated
// train/validate/commit-or-rollback update cycle over the live model, and
// a push/pull status channel for subscribers.
//
// # Concurrency
//
// All pipeline state is owned by a single dispatch goroutine (Run).
// Inbound work arrives on a channel; subscriber registry, memory, metrics
// and the snapshot ring are mutated only on that goroutine, so the package
// carries no locks of its own. The computationally heavy training step is
// offloaded to a worker goroutine; while it runs, the dispatch loop keeps
// serving control and broadcast traffic, with nested update attempts
// refused. The model itself publishes parameters atomically, so readers on
// other goroutines observe either the pre-update or the committed
// post-update vector, never a torn intermediate.
package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/dropfour/pkg/logging"
	"github.com/AleutianAI/dropfour/services/learning/datatypes"
	"github.com/AleutianAI/dropfour/services/learning/observability"
	"github.com/AleutianAI/dropfour/services/model"
)

// lossPriority is the insertion priority for experiences from lost games;
// everything else enters at the neutral priority.
const (
	lossPriority    = 2.0
	neutralPriority = 1.0

	// updateBatchFactor scales the configured batch size up for update
	// cycles, which train on a larger sample than a single minibatch.
	updateBatchFactor = 10

	inboxDepth = 256
)

// Subscriber is one status-channel endpoint. Send delivers a serialized
// event frame; a returned error means the transport is dead and the
// pipeline drops the subscriber.
type Subscriber interface {
	ID() string
	Send(payload []byte) error
	Close() error
}

// trainer abstracts the training executor so tests can script outcomes.
type trainer interface {
	Train(ctx context.Context, batch []*datatypes.Experience, focus datatypes.PatternType,
		positions func(datatypes.PatternType) []DefensePosition) (*TrainingResult, error)
}

// Internal commands consumed by the dispatch loop.
type command interface{ command() }

type attachCmd struct{ sub Subscriber }
type detachCmd struct{ id string }
type submitCmd struct{ game datatypes.GameRecord }
type controlCmd struct {
	sub Subscriber
	msg datatypes.ControlMessage
}

func (attachCmd) command()  {}
func (detachCmd) command()  {}
func (submitCmd) command()  {}
func (controlCmd) command() {}

// pipelineCounters are the loop-owned lifetime counters behind the
// metrics snapshot.
type pipelineCounters struct {
	gamesProcessed int
	lossesAnalyzed int
	modelUpdates   int
	wins           int
}

// Pipeline is the continuous learning pipeline instance. Construct with
// NewPipeline, drive with Run, feed through Submit/Control, observe
// through Attach.
type Pipeline struct {
	cfg  Config
	log  *logging.Logger
	live model.Trainable

	memory    *ExperienceMemory
	scheduler RetrainScheduler
	trainer   trainer
	gate      *ValidationGate
	versions  *VersionManager
	tracker   *PatternTracker
	stability *StabilityMonitor

	counters    pipelineCounters
	obs         *observability.Metrics
	subscribers map[string]Subscriber
	training    bool

	inbox    chan command
	done     chan struct{}
	progress *rate.Limiter
	tracer   trace.Tracer
}

// NewPipeline wires a pipeline around the live model.
func NewPipeline(cfg Config, log *logging.Logger, live model.Trainable, obs *observability.Metrics) *Pipeline {
	gate := NewValidationGate(live, cfg.ValidationThreshold, log)
	return &Pipeline{
		cfg:    cfg,
		log:    log,
		live:   live,
		memory: NewExperienceMemory(cfg.BufferCapacity),
		scheduler: RetrainScheduler{
			MinGamesForUpdate: cfg.MinGamesForUpdate,
			UpdateFrequency:   cfg.UpdateFrequency,
			Cooldown:          cfg.UpdateCooldown.Duration,
		},
		trainer:     NewTrainingExecutor(live, cfg.LearningRate, cfg.BatchSize, log),
		gate:        gate,
		versions:    NewVersionManager(live),
		tracker:     NewPatternTracker(),
		stability:   NewStabilityMonitor(cfg.StabilityThreshold),
		obs:         obs,
		subscribers: make(map[string]Subscriber),
		inbox:       make(chan command, inboxDepth),
		done:        make(chan struct{}),
		progress:    rate.NewLimiter(rate.Limit(5), 10),
		tracer:      otel.Tracer("dropfour/learning"),
	}
}

// Version returns the committed model version. Safe to call only from the
// dispatch goroutine or after Run returned; external callers use
// MetricsQuery instead.
func (p *Pipeline) Version() int {
	return p.versions.Version()
}

// =============================================================================
// Public API (any goroutine)
// =============================================================================

// Attach registers a subscriber. The dispatch loop greets it with a
// connection_established event.
func (p *Pipeline) Attach(sub Subscriber) {
	p.enqueue(attachCmd{sub: sub})
}

// Detach removes a subscriber, typically after its transport closed.
func (p *Pipeline) Detach(id string) {
	p.enqueue(detachCmd{id: id})
}

// Submit feeds a completed game into the pipeline.
func (p *Pipeline) Submit(game datatypes.GameRecord) {
	p.enqueue(submitCmd{game: game})
}

// Control hands an inbound control message to the dispatch loop. Replies
// go to the submitting subscriber.
func (p *Pipeline) Control(sub Subscriber, msg datatypes.ControlMessage) {
	p.enqueue(controlCmd{sub: sub, msg: msg})
}

func (p *Pipeline) enqueue(cmd command) {
	select {
	case p.inbox <- cmd:
	case <-p.done:
	}
}

// =============================================================================
// Dispatch Loop
// =============================================================================

// Run owns all pipeline state until ctx is cancelled. It returns after the
// shutdown path has closed every subscriber; broadcasts are delivered
// synchronously on this goroutine, so nothing is in flight when it
// returns.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.StabilityInterval.Duration)
	defer ticker.Stop()

	p.log.Info("learning pipeline started",
		"buffer_capacity", p.cfg.BufferCapacity,
		"update_frequency", p.cfg.UpdateFrequency,
		"min_games", p.cfg.MinGamesForUpdate,
	)

	for {
		select {
		case <-ctx.Done():
			p.shutdown()
			return nil
		case cmd := <-p.inbox:
			p.dispatch(ctx, cmd)
		case <-ticker.C:
			p.observeStability()
		}
	}
}

func (p *Pipeline) shutdown() {
	close(p.done)
	for id, sub := range p.subscribers {
		if err := sub.Close(); err != nil {
			p.log.Debug("closing subscriber on shutdown", "subscriber", id, "error", err)
		}
	}
	p.subscribers = make(map[string]Subscriber)
	p.obs.Subscribers.Set(0)
	p.log.Info("learning pipeline stopped",
		"games_processed", p.counters.gamesProcessed,
		"model_updates", p.counters.modelUpdates,
	)
}

// dispatch handles one command. While a training worker is in flight
// (p.training), control traffic is still served but nested update
// attempts are refused.
func (p *Pipeline) dispatch(ctx context.Context, cmd command) {
	switch c := cmd.(type) {
	case attachCmd:
		p.subscribers[c.sub.ID()] = c.sub
		p.obs.Subscribers.Set(float64(len(p.subscribers)))
		p.sendTo(c.sub, datatypes.Event{
			Type: datatypes.EventConnectionEstablished,
			Data: datatypes.ConnectionEstablished{
				ModelVersion: p.versions.Version(),
				Metrics:      p.snapshotMetrics(),
			},
		})
		p.log.Info("subscriber connected", "subscriber", c.sub.ID(), "total", len(p.subscribers))

	case detachCmd:
		if _, ok := p.subscribers[c.id]; ok {
			delete(p.subscribers, c.id)
			p.obs.Subscribers.Set(float64(len(p.subscribers)))
			p.log.Info("subscriber disconnected", "subscriber", c.id, "total", len(p.subscribers))
		}

	case submitCmd:
		p.processGame(ctx, c.game)

	case controlCmd:
		p.handleControl(ctx, c)
	}
}

func (p *Pipeline) handleControl(ctx context.Context, c controlCmd) {
	switch msg := c.msg.(type) {
	case datatypes.SubmitOutcome:
		p.processGame(ctx, msg.Game)

	case datatypes.DefenseQuery:
		p.sendTo(c.sub, datatypes.Event{
			Type:      datatypes.EventDefenseResponse,
			RequestID: msg.RequestID,
			Data: datatypes.DefenseAdvice{
				Pattern:       msg.Pattern,
				CriticalMoves: CriticalMoves(msg.Board, msg.Pattern),
				Confidence:    p.tracker.Improvement(msg.Pattern),
				Strategy:      Recommendations(msg.Pattern),
			},
		})

	case datatypes.ForceUpdate:
		if !msg.Force {
			return
		}
		if p.training {
			p.log.Warn("forced update refused: training already in progress")
			return
		}
		p.log.Info("forced model update requested")
		p.runUpdateCycle(ctx, "")

	case datatypes.MetricsQuery:
		p.sendTo(c.sub, datatypes.Event{
			Type: datatypes.EventMetricsUpdate,
			Data: p.snapshotMetrics(),
		})
	}
}

// =============================================================================
// Game Intake
// =============================================================================

// processGame validates, extracts, stores, and possibly triggers a gated
// update. Malformed records are logged and skipped without touching the
// buffer or the counters beyond the skip metric.
func (p *Pipeline) processGame(ctx context.Context, game datatypes.GameRecord) {
	ctx, span := p.tracer.Start(ctx, "learning.process_game")
	defer span.End()

	if err := game.Validate(); err != nil {
		p.obs.SkippedRecords.Inc()
		p.log.Warn("skipping malformed game record", "error", err)
		return
	}

	examples := extractExamples(game)

	priority := neutralPriority
	if game.Outcome == datatypes.OutcomeLoss {
		priority = lossPriority
		p.counters.lossesAnalyzed++
		p.obs.LossesAnalyzed.Inc()
		if game.LossPattern != nil {
			p.analyzeLossPattern(*game.LossPattern, examples)
		}
	} else if game.Outcome == datatypes.OutcomeWin {
		p.counters.wins++
	}

	for _, exp := range examples {
		p.memory.Add(exp, priority)
	}

	p.counters.gamesProcessed++
	p.obs.GamesProcessed.Inc()
	p.obs.BufferSize.Set(float64(p.memory.Len()))

	if !p.training && p.scheduler.ShouldUpdate(
		p.memory.Len(), p.counters.gamesProcessed, p.versions.LastCommit(), time.Now(),
	) {
		p.runUpdateCycle(ctx, "")
	}

	if p.progress.Allow() {
		p.broadcast(datatypes.Event{
			Type: datatypes.EventLearningProgress,
			Data: datatypes.LearningProgress{
				GamesProcessed: p.counters.gamesProcessed,
				LossesAnalyzed: p.counters.lossesAnalyzed,
				BufferSize:     p.memory.Len(),
			},
		})
	}
}

// extractExamples turns a validated game into training examples, one per
// learner half-move.
func extractExamples(game datatypes.GameRecord) []*datatypes.Experience {
	now := time.Now()
	total := len(game.Moves)
	var examples []*datatypes.Experience
	for i, mv := range game.Moves {
		if mv.Player != datatypes.ActorLearner {
			continue
		}
		exp := &datatypes.Experience{
			BoardBefore: mv.BoardBefore,
			BoardAfter:  mv.BoardAfter,
			Action:      mv.Column,
			Outcome:     game.Outcome,
			MoveIndex:   i,
			TotalMoves:  total,
			Phase:       datatypes.PhaseOf(i, total),
			CreatedAt:   now,
		}
		if !mv.Timestamp.IsZero() {
			exp.CreatedAt = mv.Timestamp
		}
		if game.Outcome == datatypes.OutcomeLoss {
			exp.LossPattern = game.LossPattern
		}
		examples = append(examples, exp)
	}
	return examples
}

// analyzeLossPattern records the loss for targeted sampling and announces
// the insight to subscribers.
func (p *Pipeline) analyzeLossPattern(pattern datatypes.LossPattern, examples []*datatypes.Experience) {
	p.tracker.Record(pattern, examples, time.Now())
	p.log.Info("loss pattern detected",
		"pattern", string(pattern.Type),
		"mistakes", len(pattern.Mistakes),
	)
	p.broadcast(datatypes.Event{
		Type: datatypes.EventPatternInsights,
		Data: datatypes.PatternInsights{
			Patterns:          p.tracker.Counts(),
			CriticalPositions: pattern.CriticalPositions,
			Recommendations:   Recommendations(pattern.Type),
		},
	})
}

// =============================================================================
// Update Cycle
// =============================================================================

// runUpdateCycle is the transactional backup → train → validate →
// commit-or-rollback sequence. Training runs on a worker goroutine; the
// loop keeps serving commands (updates disabled) until the worker
// finishes. Every exit path that does not commit rolls back, including
// cancellation.
func (p *Pipeline) runUpdateCycle(ctx context.Context, focus datatypes.PatternType) {
	ctx, span := p.tracer.Start(ctx, "learning.update_cycle")
	defer span.End()

	if focus == "" {
		focus = p.tracker.Dominant()
	}
	evictionsAtSample := p.memory.Evictions()
	batch := p.memory.Sample(p.cfg.BatchSize*updateBatchFactor, focus)
	if len(batch.Experiences) == 0 {
		p.log.Warn("skipping model update: experience memory is empty")
		return
	}

	p.log.Info("starting model update",
		"version", p.versions.Version(),
		"batch", len(batch.Experiences),
		"focus", string(focus),
	)

	p.versions.Backup(time.Now())

	// Snapshot the tracker's test positions on the loop; the worker must
	// not touch loop-owned state.
	positions := make(map[datatypes.PatternType][]DefensePosition, len(datatypes.KnownPatterns))
	for _, pattern := range datatypes.KnownPatterns {
		positions[pattern] = p.tracker.TestPositions(pattern)
	}
	lookup := func(pt datatypes.PatternType) []DefensePosition { return positions[pt] }

	type trainOutcome struct {
		res *TrainingResult
		err error
	}
	done := make(chan trainOutcome, 1)
	start := time.Now()
	p.training = true
	go func() {
		res, err := p.trainer.Train(ctx, batch.Experiences, focus, lookup)
		done <- trainOutcome{res: res, err: err}
	}()

	var out trainOutcome
	for waiting := true; waiting; {
		select {
		case out = <-done:
			waiting = false
		case cmd := <-p.inbox:
			p.dispatch(ctx, cmd)
		case <-ctx.Done():
			// The trainer checks ctx between minibatches and returns
			// promptly; the rollback branch below still runs.
			out = <-done
			waiting = false
		}
	}
	p.training = false
	p.obs.TrainingDuration.Observe(time.Since(start).Seconds())

	if out.err != nil {
		p.versions.Rollback()
		p.obs.UpdateAttempts.WithLabelValues("failed").Inc()
		p.log.Warn("training attempt failed, rolled back", "error", out.err)
		return
	}

	if !p.gate.Accept(out.res) {
		p.versions.Rollback()
		p.obs.UpdateAttempts.WithLabelValues("rejected").Inc()
		p.log.Warn("model update failed validation, rolling back",
			"version", p.versions.Version(),
			"improvement", out.res.Improvement,
		)
		return
	}

	now := time.Now()
	p.versions.Commit(now)
	p.counters.modelUpdates++

	// Games processed while the worker ran may have evicted front
	// entries and shifted the buffer; re-base the sampled indices so the
	// re-rank lands on the entries that were actually trained. Indices
	// shifted below zero belong to evicted entries and are skipped.
	indices := batch.Indices
	if shift := p.memory.Evictions() - evictionsAtSample; shift > 0 {
		indices = make([]int, len(batch.Indices))
		for i, idx := range batch.Indices {
			if idx < 0 {
				indices[i] = idx
				continue
			}
			indices[i] = idx - shift
		}
	}
	p.memory.UpdatePriorities(indices, out.res.ExampleLosses)

	for _, pattern := range datatypes.KnownPatterns {
		if rate, ok := out.res.Metrics[string(pattern)+"_defense"]; ok {
			p.tracker.SetImprovement(pattern, rate)
			p.obs.PatternDefenseRate.WithLabelValues(string(pattern)).Set(rate)
		}
	}

	p.obs.UpdateAttempts.WithLabelValues("committed").Inc()
	p.obs.ModelVersion.Set(float64(p.versions.Version()))

	p.broadcast(datatypes.Event{
		Type: datatypes.EventModelUpdated,
		Data: datatypes.ModelUpdated{
			Version:      fmt.Sprintf("v%d", p.versions.Version()),
			Improvements: out.res.Metrics,
			Timestamp:    now,
		},
	})
	p.log.Info("model updated", "version", p.versions.Version(), "improvement", out.res.Improvement)
}

// observeStability runs the periodic long-horizon check against the fixed
// regression set. Advisory only: instability is logged and counted, never
// acted on here.
func (p *Pipeline) observeStability() {
	score := p.gate.CanonicalScore()
	verdict := p.stability.Observe(score)
	p.obs.StabilityVerdicts.WithLabelValues(verdict.String()).Inc()
	if verdict != StabilityOK {
		baseline, _ := p.stability.Baseline()
		p.log.Warn("model stability concern",
			"verdict", verdict.String(),
			"score", score,
			"baseline", baseline,
		)
	}
}

// =============================================================================
// Broadcasting
// =============================================================================

// broadcast serializes the event once and delivers it to every subscriber.
// A failing subscriber is removed; the rest still receive the event.
func (p *Pipeline) broadcast(event datatypes.Event) {
	if len(p.subscribers) == 0 {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("marshal broadcast event", "type", string(event.Type), "error", err)
		return
	}
	var failed []string
	for id, sub := range p.subscribers {
		if err := sub.Send(payload); err != nil {
			failed = append(failed, id)
		}
	}
	for _, id := range failed {
		delete(p.subscribers, id)
		p.obs.DroppedSubscribers.Inc()
		p.log.Warn("removed subscriber after send failure", "subscriber", id)
	}
	if len(failed) > 0 {
		p.obs.Subscribers.Set(float64(len(p.subscribers)))
	}
}

// sendTo delivers one event to one subscriber with the same removal
// semantics as broadcast.
func (p *Pipeline) sendTo(sub Subscriber, event datatypes.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Error("marshal event", "type", string(event.Type), "error", err)
		return
	}
	if err := sub.Send(payload); err != nil {
		delete(p.subscribers, sub.ID())
		p.obs.DroppedSubscribers.Inc()
		p.obs.Subscribers.Set(float64(len(p.subscribers)))
		p.log.Warn("removed subscriber after send failure", "subscriber", sub.ID())
	}
}

// snapshotMetrics copies the loop-owned counters into a wire snapshot.
func (p *Pipeline) snapshotMetrics() datatypes.MetricsSnapshot {
	winRate := 0.5
	if p.counters.gamesProcessed > 0 {
		winRate = float64(p.counters.wins) / float64(p.counters.gamesProcessed)
	}
	snap := datatypes.MetricsSnapshot{
		GamesProcessed:      p.counters.gamesProcessed,
		LossesAnalyzed:      p.counters.lossesAnalyzed,
		ModelUpdates:        p.counters.modelUpdates,
		CurrentWinRate:      winRate,
		PatternDefenseRates: p.tracker.Improvements(),
		BufferSize:          p.memory.Len(),
		ModelVersion:        p.versions.Version(),
	}
	if last := p.versions.LastCommit(); !last.IsZero() {
		snap.LastUpdate = &last
	}
	return snap
}
