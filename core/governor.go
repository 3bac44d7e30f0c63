package core

import (
	"context"
	"sync/atomic"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/internal/metrics"
	"github.com/huangsam/reposcan/schema"
	"go.uber.org/zap"
)

// Memory pressure thresholds, as fractions of the memory limit.
const (
	HighWatermark  = 0.85
	LowWatermark   = 0.50
	RecoveryChecks = 2 // consecutive low checks before growing back
)

// Adjustment describes what a governor check changed.
type Adjustment string

// All governor adjustments.
const (
	AdjustNone   Adjustment = "none"
	AdjustShrink Adjustment = "shrink"
	AdjustGrow   Adjustment = "grow"
)

// Governor adapts worker concurrency and batch size to memory pressure.
// Workers and BatchSize may be read from any goroutine. Check must only be
// called from the dispatcher goroutine.
type Governor struct {
	sampler contract.MemorySampler
	limit   uint64

	maxWorkers int
	maxBatch   int
	minBatch   int

	workers atomic.Int64
	batch   atomic.Int64
	peak    atomic.Uint64
	last    atomic.Uint64

	lowStreak int

	metrics *metrics.Metrics
	logger  *logging.Logger
}

// NewGovernor creates a governor starting at the plan's workers and batch size.
func NewGovernor(sampler contract.MemorySampler, limit uint64, plan schema.ScanPlan, m *metrics.Metrics, logger *logging.Logger) *Governor {
	if logger == nil {
		logger = logging.NewNop()
	}
	g := &Governor{
		sampler:    sampler,
		limit:      limit,
		maxWorkers: max(plan.MaxWorkers, plan.Workers, 1),
		maxBatch:   max(plan.MaxBatchSize, plan.BatchSize, 1),
		minBatch:   max(min(schema.MinBatchSize, plan.BatchSize), 1),
		metrics:    m,
		logger:     logger,
	}
	g.workers.Store(int64(max(plan.Workers, 1)))
	g.batch.Store(int64(max(plan.BatchSize, 1)))
	return g
}

// Workers returns the current number of batches allowed in flight.
func (g *Governor) Workers() int { return int(g.workers.Load()) }

// BatchSize returns the size of the next batch.
func (g *Governor) BatchSize() int { return int(g.batch.Load()) }

// Peak returns the highest memory usage observed.
func (g *Governor) Peak() uint64 { return g.peak.Load() }

// Last returns the most recent memory sample.
func (g *Governor) Last() uint64 { return g.last.Load() }

// Check samples memory and adjusts the parameters.
func (g *Governor) Check(ctx context.Context) Adjustment {
	usage, err := g.sampler.Sample()
	if err != nil {
		g.logger.Debug(ctx, "Memory sample failed", zap.Error(err))
		if usage == 0 {
			return AdjustNone
		}
	}
	g.observe(usage)

	workers, batch := g.Workers(), g.BatchSize()
	adj := AdjustNone
	switch ratio := float64(usage) / float64(g.limit); {
	case ratio > HighWatermark:
		g.lowStreak = 0
		newWorkers, newBatch := max(workers/2, 1), max(batch/2, g.minBatch)
		if newWorkers != workers || newBatch != batch {
			g.workers.Store(int64(newWorkers))
			g.batch.Store(int64(newBatch))
			adj = AdjustShrink
			g.logger.Warn(ctx, "Memory pressure, reducing concurrency",
				zap.Uint64("memory_bytes", usage),
				zap.Uint64("limit_bytes", g.limit),
				zap.Int("workers", newWorkers),
				zap.Int("batch_size", newBatch))
		}
	case ratio < LowWatermark:
		g.lowStreak++
		if g.lowStreak < RecoveryChecks {
			break
		}
		g.lowStreak = 0
		newWorkers, newBatch := min(workers+1, g.maxWorkers), min(batch*2, g.maxBatch)
		if newWorkers != workers || newBatch != batch {
			g.workers.Store(int64(newWorkers))
			g.batch.Store(int64(newBatch))
			adj = AdjustGrow
			g.logger.Debug(ctx, "Memory recovered, increasing concurrency",
				zap.Int("workers", newWorkers),
				zap.Int("batch_size", newBatch))
		}
	default:
		g.lowStreak = 0
	}

	if adj != AdjustNone {
		g.metrics.ObserveAdjustment(string(adj))
	}
	g.metrics.ObserveGovernor(g.Workers(), g.BatchSize(), usage)
	return adj
}

// Observe records a memory sample without adjusting anything.
func (g *Governor) Observe() {
	if usage, _ := g.sampler.Sample(); usage > 0 {
		g.observe(usage)
	}
}

func (g *Governor) observe(usage uint64) {
	g.last.Store(usage)
	for {
		peak := g.peak.Load()
		if usage <= peak || g.peak.CompareAndSwap(peak, usage) {
			return
		}
	}
}
