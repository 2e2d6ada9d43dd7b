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
	"math"
	"math/rand"
	"time"

	"github.com/AleutianAI/dropfour/services/learning/datatypes"
)

// Priority-weighted sampling constants.
const (
	betaInitial   = 0.4
	betaIncrement = 0.001
	priorityFloor = 0.01
	bucketShare   = 0.7
)

// priorityEntry pairs an experience with its sampling priority. Owned
// exclusively by ExperienceMemory; priorities are always > 0.
type priorityEntry struct {
	exp      *datatypes.Experience
	priority float64
}

// SampledBatch is the result of one Sample call. Indices parallels
// Experiences and holds the main-buffer index of each item, or -1 for
// items drawn from a pattern bucket. Items drawn from the focused bucket
// form the prefix; FromBucket is their count.
type SampledBatch struct {
	Experiences []*datatypes.Experience
	Indices     []int
	FromBucket  int
}

// ExperienceMemory is the bounded, prioritized, pattern-partitioned store
// of training examples.
//
// The main buffer is a FIFO ring of at most capacity entries. Losses
// tagged with a tracked threat pattern additionally land in that pattern's
// bucket (capacity/4 each). Bucket membership is kept a strict subset of
// the main buffer: when the main buffer evicts an experience, it is
// removed from its bucket as well.
//
// Not safe for concurrent use; the pipeline dispatch loop is the only
// writer and reader.
type ExperienceMemory struct {
	capacity  int
	bucketCap int
	entries   []priorityEntry
	buckets   map[datatypes.PatternType][]*datatypes.Experience
	beta      float64
	evictions int
	rng       *rand.Rand
}

// MemoryOption configures an ExperienceMemory.
type MemoryOption func(*ExperienceMemory)

// WithRand sets the random source, fixing it in tests.
func WithRand(rng *rand.Rand) MemoryOption {
	return func(m *ExperienceMemory) {
		m.rng = rng
	}
}

// NewExperienceMemory creates a memory bounded at capacity entries with
// per-pattern buckets bounded at capacity/4, floored at one slot so tiny
// capacities cannot produce an unappendable bucket.
func NewExperienceMemory(capacity int, opts ...MemoryOption) *ExperienceMemory {
	bucketCap := capacity / 4
	if bucketCap < 1 {
		bucketCap = 1
	}
	m := &ExperienceMemory{
		capacity:  capacity,
		bucketCap: bucketCap,
		entries:   make([]priorityEntry, 0, capacity),
		buckets:   make(map[datatypes.PatternType][]*datatypes.Experience, len(datatypes.KnownPatterns)),
		beta:      betaInitial,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len returns the number of stored experiences.
func (m *ExperienceMemory) Len() int {
	return len(m.entries)
}

// BucketLen returns the size of one pattern bucket.
func (m *ExperienceMemory) BucketLen(pattern datatypes.PatternType) int {
	return len(m.buckets[pattern])
}

// Evictions returns the lifetime count of main-buffer evictions. Sampled
// indices refer to buffer positions, so a caller holding indices across
// later Adds must subtract the evictions that happened in between before
// using them.
func (m *ExperienceMemory) Evictions() int {
	return m.evictions
}

// MaxPriority returns the largest stored priority, or 0 when empty.
func (m *ExperienceMemory) MaxPriority() float64 {
	max := 0.0
	for _, e := range m.entries {
		if e.priority > max {
			max = e.priority
		}
	}
	return max
}

// Add stores an experience. A priority <= 0 means "unspecified" and falls
// back to the maximum stored priority, or 1.0 when the memory is empty.
// The oldest entry is evicted when the buffer is full; pattern losses also
// enter their pattern's bucket, evicting that bucket's oldest on overflow.
func (m *ExperienceMemory) Add(exp *datatypes.Experience, priority float64) {
	if priority <= 0 {
		priority = m.MaxPriority()
		if priority == 0 {
			priority = 1.0
		}
	}

	if len(m.entries) >= m.capacity {
		m.evictOldest()
	}
	m.entries = append(m.entries, priorityEntry{exp: exp, priority: priority})

	if exp.IsPatternLoss() {
		key := exp.LossPattern.Type
		bucket := m.buckets[key]
		if len(bucket) >= m.bucketCap {
			bucket = bucket[1:]
		}
		m.buckets[key] = append(bucket, exp)
	}
}

// evictOldest drops the front of the main buffer and keeps the subset
// invariant by removing the same experience from its bucket.
func (m *ExperienceMemory) evictOldest() {
	evicted := m.entries[0].exp
	m.entries = m.entries[1:]
	m.evictions++
	if !evicted.IsPatternLoss() {
		return
	}
	key := evicted.LossPattern.Type
	bucket := m.buckets[key]
	for i, e := range bucket {
		if e == evicted {
			m.buckets[key] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// Sample draws a training batch of up to n experiences.
//
// With a focus pattern whose bucket is non-empty, ceil(0.7*n) items come
// uniformly without replacement from that bucket (capped at the bucket
// size) and the remainder from the priority-weighted main buffer.
// Otherwise the whole batch is priority-weighted. The weighted draw is
// with replacement while the bucket draw is not; the mismatch is kept
// deliberately, see DESIGN.md.
func (m *ExperienceMemory) Sample(n int, focus datatypes.PatternType) SampledBatch {
	if focus != "" && len(m.buckets[focus]) > 0 {
		want := int(math.Ceil(bucketShare * float64(n)))
		fromBucket := m.sampleBucket(focus, want)
		rest := m.sampleWeighted(n - len(fromBucket))

		batch := SampledBatch{FromBucket: len(fromBucket)}
		for _, exp := range fromBucket {
			batch.Experiences = append(batch.Experiences, exp)
			batch.Indices = append(batch.Indices, -1)
		}
		batch.Experiences = append(batch.Experiences, rest.Experiences...)
		batch.Indices = append(batch.Indices, rest.Indices...)
		return batch
	}
	return m.sampleWeighted(n)
}

// sampleBucket draws min(n, len(bucket)) items uniformly without
// replacement.
func (m *ExperienceMemory) sampleBucket(pattern datatypes.PatternType, n int) []*datatypes.Experience {
	bucket := m.buckets[pattern]
	if len(bucket) <= n {
		out := make([]*datatypes.Experience, len(bucket))
		copy(out, bucket)
		return out
	}
	out := make([]*datatypes.Experience, 0, n)
	for _, i := range m.rng.Perm(len(bucket))[:n] {
		out = append(out, bucket[i])
	}
	return out
}

// sampleWeighted draws n items with replacement, P(i) proportional to
// priority_i^beta. Beta anneals toward 1.0 by a fixed step on every
// weighted draw. A buffer smaller than n is returned whole instead.
func (m *ExperienceMemory) sampleWeighted(n int) SampledBatch {
	if n <= 0 {
		return SampledBatch{}
	}
	if len(m.entries) < n {
		batch := SampledBatch{
			Experiences: make([]*datatypes.Experience, 0, len(m.entries)),
			Indices:     make([]int, 0, len(m.entries)),
		}
		for i, e := range m.entries {
			batch.Experiences = append(batch.Experiences, e.exp)
			batch.Indices = append(batch.Indices, i)
		}
		return batch
	}

	cumulative := make([]float64, len(m.entries))
	sum := 0.0
	for i, e := range m.entries {
		sum += math.Pow(e.priority, m.beta)
		cumulative[i] = sum
	}

	batch := SampledBatch{
		Experiences: make([]*datatypes.Experience, 0, n),
		Indices:     make([]int, 0, n),
	}
	for k := 0; k < n; k++ {
		target := m.rng.Float64() * sum
		idx := searchCumulative(cumulative, target)
		batch.Experiences = append(batch.Experiences, m.entries[idx].exp)
		batch.Indices = append(batch.Indices, idx)
	}

	m.beta = math.Min(1.0, m.beta+betaIncrement)
	return batch
}

// searchCumulative finds the first index whose cumulative weight exceeds
// target.
func searchCumulative(cumulative []float64, target float64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cumulative[mid] <= target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// UpdatePriorities overwrites stored priorities with priority + 0.01 so no
// entry ever becomes unsampleable. Called after training re-ranks the
// batch by observed loss. Out-of-range indices (including the -1 bucket
// markers) are skipped.
func (m *ExperienceMemory) UpdatePriorities(indices []int, priorities []float64) {
	for i, idx := range indices {
		if i >= len(priorities) {
			return
		}
		if idx < 0 || idx >= len(m.entries) {
			continue
		}
		m.entries[idx].priority = priorities[i] + priorityFloor
	}
}
