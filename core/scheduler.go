package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/internal/metrics"
	"github.com/huangsam/reposcan/schema"
	"go.uber.org/zap"
)

// BatchReport is passed to the batch callback after every finished batch.
type BatchReport struct {
	Index       int
	Files       int
	Complete    bool // every file in the batch produced a result
	Elapsed     time.Duration
	FilesDone   int
	Workers     int
	BatchSize   int
	MemoryBytes uint64
}

// SchedulerStats summarizes a finished run.
type SchedulerStats struct {
	BatchesDispatched int
	BatchesCompleted  int
	WorkersUsed       int
}

// Scheduler splits a sampled set into batches and runs them on a bounded pool.
type Scheduler struct {
	root     string
	analyzer contract.ContentAnalyzer
	gov      *Governor
	cfg      schema.ScanConfiguration
	onBatch  func(BatchReport)

	metrics *metrics.Metrics
	logger  *logging.Logger

	abandoned   chan struct{}
	abandonOnce sync.Once

	filesDone  atomic.Int64
	dispatched atomic.Int64
	completed  atomic.Int64
	peakActive atomic.Int64
}

// SchedulerOption configures a Scheduler.
type SchedulerOption func(*Scheduler)

// WithBatchCallback registers fn to run on the dispatcher goroutine after each batch.
func WithBatchCallback(fn func(BatchReport)) SchedulerOption {
	return func(s *Scheduler) { s.onBatch = fn }
}

// WithSchedulerMetrics sets the metrics sink.
func WithSchedulerMetrics(m *metrics.Metrics) SchedulerOption {
	return func(s *Scheduler) { s.metrics = m }
}

// WithSchedulerLogger sets the logger.
func WithSchedulerLogger(l *logging.Logger) SchedulerOption {
	return func(s *Scheduler) { s.logger = l }
}

// NewScheduler creates a scheduler reading files under root.
func NewScheduler(root string, analyzer contract.ContentAnalyzer, gov *Governor, cfg schema.ScanConfiguration, opts ...SchedulerOption) *Scheduler {
	s := &Scheduler{
		root:      root,
		analyzer:  analyzer,
		gov:       gov,
		cfg:       cfg,
		logger:    logging.NewNop(),
		abandoned: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run starts scanning the sampled files and returns the result stream.
// The channel is closed once every started batch has returned. When ctx is
// done no new batch is started and workers stop at the next file boundary.
func (s *Scheduler) Run(ctx context.Context, set schema.SampledSet) <-chan schema.FileScanResult {
	out := make(chan schema.FileScanResult, max(s.gov.BatchSize(), 1))
	go s.dispatch(ctx, set.Files, out)
	return out
}

// Abandon releases workers blocked on delivering results nobody will read.
func (s *Scheduler) Abandon() {
	s.abandonOnce.Do(func() { close(s.abandoned) })
}

// Stats returns the counters of the run so far.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		BatchesDispatched: int(s.dispatched.Load()),
		BatchesCompleted:  int(s.completed.Load()),
		WorkersUsed:       int(s.peakActive.Load()),
	}
}

type batchDone struct {
	batch    schema.Batch
	complete bool
	elapsed  time.Duration
}

func (s *Scheduler) dispatch(ctx context.Context, files []schema.FileCandidate, out chan<- schema.FileScanResult) {
	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		close(out)
	}()

	done := make(chan batchDone)
	next, index, inFlight := 0, 0, 0
	for {
		for ctx.Err() == nil && next < len(files) && inFlight < s.gov.Workers() {
			end := min(next+s.gov.BatchSize(), len(files))
			b := schema.Batch{Index: index, Files: files[next:end]}
			next, index = end, index+1
			inFlight++
			s.dispatched.Add(1)
			if int64(inFlight) > s.peakActive.Load() {
				s.peakActive.Store(int64(inFlight))
			}

			wg.Go(func() {
				start := time.Now()
				complete := s.runBatch(ctx, b, out)
				select {
				case done <- batchDone{batch: b, complete: complete, elapsed: time.Since(start)}:
				case <-s.abandoned:
				}
			})
		}
		if inFlight == 0 {
			return
		}

		select {
		case d := <-done:
			inFlight--
			s.finishBatch(ctx, d)
		case <-s.abandoned:
			s.logger.Warn(ctx, "Abandoning in-flight batches", zap.Int("in_flight", inFlight))
			return
		}
	}
}

func (s *Scheduler) finishBatch(ctx context.Context, d batchDone) {
	if d.complete {
		s.completed.Add(1)
	}
	s.metrics.ObserveBatch(d.elapsed.Seconds())
	s.gov.Check(ctx)

	s.logger.Debug(ctx, "Batch finished",
		zap.Int("batch", d.batch.Index),
		zap.Int("files", len(d.batch.Files)),
		zap.Bool("complete", d.complete),
		zap.Duration("elapsed", d.elapsed))

	if s.onBatch != nil {
		s.onBatch(BatchReport{
			Index:       d.batch.Index,
			Files:       len(d.batch.Files),
			Complete:    d.complete,
			Elapsed:     d.elapsed,
			FilesDone:   int(s.filesDone.Load()),
			Workers:     s.gov.Workers(),
			BatchSize:   s.gov.BatchSize(),
			MemoryBytes: s.gov.Last(),
		})
	}
}
