package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/reposcan/core/agg"
	"github.com/huangsam/reposcan/core/sample"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/gitclient"
	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/internal/metrics"
	"github.com/huangsam/reposcan/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/huangsam/reposcan/core"

// Orchestrator runs scan sessions end to end.
type Orchestrator struct {
	client    contract.SourceControlClient
	estimator contract.SizeEstimator
	analyzer  contract.ContentAnalyzer
	sampler   contract.MemorySampler
	table     *heuristics.Table
	stores    contract.StoreManager
	cacheTTL  time.Duration
	metrics   *metrics.Metrics
	tracer    trace.Tracer
	logger    *logging.Logger
	sink      func([]schema.FileScanResult)
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithEstimator replaces the default tree estimator.
func WithEstimator(e contract.SizeEstimator) OrchestratorOption {
	return func(o *Orchestrator) { o.estimator = e }
}

// WithHeuristics sets the sampling heuristics table.
func WithHeuristics(t *heuristics.Table) OrchestratorOption {
	return func(o *Orchestrator) { o.table = t }
}

// WithStores enables the estimate cache and run history.
func WithStores(mgr contract.StoreManager, cacheTTL time.Duration) OrchestratorOption {
	return func(o *Orchestrator) {
		o.stores = mgr
		o.cacheTTL = cacheTTL
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) OrchestratorOption {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithTracer sets the tracer used for phase spans.
func WithTracer(t trace.Tracer) OrchestratorOption {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.logger = l }
}

// WithResultSink receives every per-file result once a scan reaches a terminal state.
func WithResultSink(fn func([]schema.FileScanResult)) OrchestratorOption {
	return func(o *Orchestrator) { o.sink = fn }
}

// NewOrchestrator wires the pipeline around its external collaborators.
func NewOrchestrator(client contract.SourceControlClient, analyzer contract.ContentAnalyzer, sampler contract.MemorySampler, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		analyzer: analyzer,
		sampler:  sampler,
		table:    heuristics.Default(),
		tracer:   otel.Tracer(tracerName),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.estimator == nil {
		o.estimator = gitclient.NewTreeEstimator(client)
	}
	return o
}

// prepared holds the outputs of the stages before scanning.
type prepared struct {
	estimate schema.SizeEstimate
	plan     schema.ScanPlan
	checkout contract.Checkout
	listing  []schema.FileCandidate
	sample   schema.SampledSet
	skipped  []schema.FileScanResult
}

// Scan runs session to a terminal state.
//
// Once a listing exists, a timeout or cancellation yields a partial summary
// and no error. Before that, and for fatal failures, a *contract.ScanError is
// returned without a summary. The checkout is removed on every path.
func (o *Orchestrator) Scan(ctx context.Context, session *Session) (*schema.ScanSummary, error) {
	cfg := session.Config
	start := time.Now()

	ctx, cancel := context.WithTimeoutCause(ctx, cfg.TotalScanTimeout, contract.ErrScanTimeout)
	defer cancel()
	ctx = logging.WithSessionID(ctx, session.ID)
	logger := o.logger.With(zap.String("session.id", session.ID))

	ctx, span := o.tracer.Start(ctx, "reposcan.scan", trace.WithAttributes(
		attribute.String("repository", session.Repository.String()),
		attribute.String("scan_level", string(cfg.Level)),
	))
	defer span.End()

	var cleanup CleanupFunc
	defer func() {
		if cleanup != nil {
			if err := cleanup(); err != nil {
				logger.Warn(ctx, "Failed to remove checkout", zap.Error(err))
			}
		}
		session.Close()
	}()

	p, err := o.prepare(ctx, logger, session, &cleanup)
	if err != nil {
		err = o.fail(ctx, logger, session, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	runID := o.beginHistory(ctx, logger, session, start)

	summary, results := o.scan(ctx, logger, session, p, start)
	summary.SessionID = session.ID
	summary.Repository = session.Repository.String()
	summary.Branch = session.Repository.Branch
	summary.Tier = p.plan.Tier
	summary.Level = cfg.Level
	summary.Estimate = &p.estimate
	summary.SampleFingerprint = p.sample.Fingerprint
	summary.StartedAt = start

	final := schema.StateCompleted
	switch summary.Completeness {
	case schema.PartialTimeout:
		final = schema.StateTimedOut
	case schema.PartialCancelled:
		final = schema.StateCancelled
	}
	o.transition(ctx, logger, session, final, string(summary.Completeness))
	summary.State = final

	o.metrics.ObserveScan(p.plan.Tier, summary.Completeness)
	span.SetAttributes(
		attribute.String("completeness", string(summary.Completeness)),
		attribute.Int("scanned_files", summary.ScannedFiles),
		attribute.Int("findings", len(summary.Findings)),
	)
	o.endHistory(ctx, logger, runID, results, summary)
	if o.sink != nil {
		o.sink(results)
	}

	logger.Info(ctx, "Scan finished",
		zap.String("completeness", string(summary.Completeness)),
		zap.Int("listed", summary.TotalFilesListed),
		zap.Int("sampled", summary.SampledFiles),
		zap.Int("scanned", summary.ScannedFiles),
		zap.Int("findings", len(summary.Findings)),
		zap.Float64("elapsed_seconds", summary.Performance.ElapsedSeconds))
	return &summary, nil
}

// Plan runs estimation, checkout, listing and sampling without scanning.
func (o *Orchestrator) Plan(ctx context.Context, session *Session) (*schema.PlanResult, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, session.Config.TotalScanTimeout, contract.ErrScanTimeout)
	defer cancel()
	logger := o.logger.With(zap.String("session.id", session.ID))

	var cleanup CleanupFunc
	defer func() {
		if cleanup != nil {
			_ = cleanup()
		}
		session.Close()
	}()

	p, err := o.prepare(ctx, logger, session, &cleanup)
	if err != nil {
		return nil, o.fail(ctx, logger, session, err)
	}
	return &schema.PlanResult{
		Estimate: p.estimate,
		Plan:     p.plan,
		Listed:   len(p.listing),
		Skipped:  len(p.skipped),
		Coverage: sample.Coverage(p.listing, p.sample.Files),
		Sample:   p.sample,
		Commit:   p.checkout.Commit,
		Strategy: p.checkout.Strategy,
	}, nil
}

// Estimate probes desc and resolves the plan a scan would use. Nothing is fetched.
// Probe failures degrade to the fallback estimate; only a stopped ctx is an error.
func (o *Orchestrator) Estimate(ctx context.Context, desc schema.RepositoryDescriptor, cfg schema.ScanConfiguration) (*schema.EstimateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, contract.NewScanError(contract.KindCancelled, "estimate", err)
	}
	ctx, span := o.tracer.Start(ctx, "reposcan.estimate")
	defer span.End()

	est, _ := o.wrappedEstimator(o.logger, cfg).Estimate(ctx, desc)
	tier := Categorize(est)
	span.SetAttributes(attribute.Int("file_count", est.FileCount), attribute.String("tier", string(tier)))
	return &schema.EstimateResult{
		Repository: desc.String(),
		Estimate:   est,
		Plan:       Resolve(cfg, tier),
	}, nil
}

// prepare runs every stage up to sampling. cleanup is set as soon as a checkout exists.
func (o *Orchestrator) prepare(ctx context.Context, logger *logging.Logger, session *Session, cleanup *CleanupFunc) (*prepared, error) {
	cfg := session.Config
	desc := session.Repository
	p := &prepared{}

	// Estimating
	if err := o.enter(ctx, logger, session, schema.StateEstimating, "estimate"); err != nil {
		return nil, err
	}
	phaseCtx, span := o.tracer.Start(ctx, "reposcan.estimate")
	p.estimate, _ = o.wrappedEstimator(logger, cfg).Estimate(phaseCtx, desc)
	span.SetAttributes(attribute.Int("file_count", p.estimate.FileCount), attribute.String("source", p.estimate.Source))
	span.End()

	tier := Categorize(p.estimate)
	p.plan = Resolve(cfg, tier)
	logger.Info(ctx, "Resolved scan plan",
		zap.Int("estimated_files", p.estimate.FileCount),
		zap.String("estimate_source", p.estimate.Source),
		zap.String("tier", string(tier)),
		zap.Int("workers", p.plan.Workers),
		zap.Int("sample_budget", p.plan.SampleBudget),
		zap.Int("batch_size", p.plan.BatchSize))

	// Cloning
	if err := o.enter(ctx, logger, session, schema.StateCloning, "clone"); err != nil {
		return nil, err
	}
	phaseCtx, span = o.tracer.Start(ctx, "reposcan.clone", trace.WithAttributes(attribute.String("strategy", string(p.plan.Strategy))))
	checkout, cleanupFn, err := NewCloneManager(o.client, cfg.WorkDir, cfg.MaxFileSizeBytes, o.table, logger).Fetch(phaseCtx, desc, tier)
	span.End()
	if err != nil {
		return nil, err
	}
	*cleanup = cleanupFn
	p.checkout = checkout

	// Listing
	if err := o.enter(ctx, logger, session, schema.StateListing, "list"); err != nil {
		return nil, err
	}
	phaseCtx, span = o.tracer.Start(ctx, "reposcan.list")
	p.listing, err = ListCandidates(phaseCtx, checkout, o.table)
	span.End()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, contract.NewScanError(contract.KindInternal, "list", err)
	}

	// Sampling. From here on a stop produces a partial summary.
	if err := session.Transition(schema.StateSampling, fmt.Sprintf("%d files listed", len(p.listing))); err != nil {
		return nil, contract.NewScanError(contract.KindInternal, "sample", err)
	}
	_, span = o.tracer.Start(ctx, "reposcan.sample")
	p.sample, p.skipped = sample.Plan(p.listing, p.plan.SampleBudget, cfg.MaxFileSizeBytes, o.table)
	span.SetAttributes(attribute.Int("sampled", p.sample.Len()), attribute.String("fingerprint", p.sample.Fingerprint))
	span.End()
	logger.Info(ctx, "Sampled files",
		zap.Int("listed", len(p.listing)),
		zap.Int("sampled", p.sample.Len()),
		zap.Int("skipped_too_large", len(p.skipped)),
		zap.Int("priority_picks", p.sample.Priority),
		zap.Int("coverage_picks", p.sample.Coverage),
		zap.Int("fill_picks", p.sample.Fill),
		zap.String("fingerprint", p.sample.Fingerprint))
	return p, nil
}

// scan runs the scheduler over the sampled set and aggregates what comes back.
func (o *Orchestrator) scan(ctx context.Context, logger *logging.Logger, session *Session, p *prepared, start time.Time) (schema.ScanSummary, []schema.FileScanResult) {
	cfg := session.Config
	o.transition(ctx, logger, session, schema.StateScanning, fmt.Sprintf("%d files sampled", p.sample.Len()))
	ctx, span := o.tracer.Start(ctx, "reposcan.batches")
	defer span.End()

	gov := NewGovernor(o.sampler, cfg.MemoryLimitBytes, p.plan, o.metrics, logger)
	gov.Observe()
	total := p.sample.Len()
	sched := NewScheduler(p.checkout.Root, o.analyzer, gov, cfg,
		WithSchedulerMetrics(o.metrics),
		WithSchedulerLogger(logger),
		WithBatchCallback(func(r BatchReport) {
			session.Publish(schema.ProgressEvent{
				Message:     fmt.Sprintf("batch %d finished", r.Index),
				FilesDone:   r.FilesDone,
				FilesTotal:  total,
				Workers:     r.Workers,
				BatchSize:   r.BatchSize,
				MemoryBytes: r.MemoryBytes,
			})
		}))

	aggregator := agg.New(len(p.listing), total)
	keep := o.sink != nil || (o.stores != nil && o.stores.GetHistoryStore() != nil)
	var results []schema.FileScanResult
	add := func(r schema.FileScanResult) {
		aggregator.Add(r)
		if keep {
			results = append(results, r)
		}
	}
	for _, r := range p.skipped {
		o.metrics.ObserveFile(r.Status)
		add(r)
	}

	o.drain(ctx, logger, sched, sched.Run(ctx, p.sample), cfg.DrainGrace, add)

	stop := schema.Completeness("")
	if ctx.Err() != nil {
		stop = stopCompleteness(ctx)
		logger.Warn(ctx, "Scan stopped early",
			zap.String("cause", context.Cause(ctx).Error()),
			zap.Int("scanned", aggregator.Scanned()),
			zap.Int("sampled", total))
	}

	o.transition(ctx, logger, session, schema.StateAggregating, "")
	gov.Observe()
	stats := sched.Stats()
	summary := aggregator.Summary(agg.Input{
		Elapsed:     time.Since(start),
		PeakMemory:  gov.Peak(),
		WorkersUsed: stats.WorkersUsed,
		Coverage:    sample.Coverage(p.listing, p.sample.Files),
		Stop:        stop,
	})
	summary.BatchesDispatched = stats.BatchesDispatched
	summary.BatchesCompleted = stats.BatchesCompleted
	return summary, results
}

// drain reads results until the stream closes. After ctx is done it waits at
// most grace before abandoning the remaining workers.
func (o *Orchestrator) drain(ctx context.Context, logger *logging.Logger, sched *Scheduler, results <-chan schema.FileScanResult, grace time.Duration, add func(schema.FileScanResult)) {
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return
			}
			add(r)
		case <-ctx.Done():
			o.drainAfterStop(ctx, logger, sched, results, grace, add)
			return
		}
	}
}

func (o *Orchestrator) drainAfterStop(ctx context.Context, logger *logging.Logger, sched *Scheduler, results <-chan schema.FileScanResult, grace time.Duration, add func(schema.FileScanResult)) {
	timer := time.NewTimer(grace)
	defer timer.Stop()
	for {
		select {
		case r, ok := <-results:
			if !ok {
				return
			}
			add(r)
		case <-timer.C:
			logger.Warn(ctx, "Drain grace expired, abandoning remaining files", zap.Duration("grace", grace))
			sched.Abandon()
			return
		}
	}
}

// enter moves to a pre-listing state, failing if the scan was already stopped.
func (o *Orchestrator) enter(ctx context.Context, logger *logging.Logger, session *Session, state schema.SessionState, op string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := session.Transition(state, ""); err != nil {
		return contract.NewScanError(contract.KindInternal, op, err)
	}
	logger.Debug(ctx, "Entered state", zap.String("state", string(state)))
	return nil
}

// transition moves session to state, logging instead of failing on a bad move.
func (o *Orchestrator) transition(ctx context.Context, logger *logging.Logger, session *Session, state schema.SessionState, msg string) {
	if err := session.Transition(state, msg); err != nil {
		logger.Error(ctx, "Unexpected state transition", zap.Error(err))
	}
}

// fail converts err into a ScanError and moves the session to its terminal state.
func (o *Orchestrator) fail(ctx context.Context, logger *logging.Logger, session *Session, err error) error {
	var scanErr *contract.ScanError
	switch {
	case ctx.Err() != nil && stopCompleteness(ctx) == schema.PartialTimeout:
		scanErr = contract.NewScanError(contract.KindTimeout, string(session.State()), context.Cause(ctx))
	case ctx.Err() != nil:
		scanErr = contract.NewScanError(contract.KindCancelled, string(session.State()), context.Cause(ctx))
	case errors.As(err, &scanErr):
	default:
		scanErr = contract.NewScanError(contract.KindInternal, string(session.State()), err)
	}

	final := schema.StateFailed
	switch scanErr.Kind {
	case contract.KindTimeout:
		final = schema.StateTimedOut
	case contract.KindCancelled:
		final = schema.StateCancelled
	}
	o.transition(ctx, logger, session, final, scanErr.Error())
	o.metrics.ObserveFailure(string(scanErr.Kind))
	logger.Error(ctx, "Scan failed", zap.String("kind", string(scanErr.Kind)), zap.Error(scanErr))
	return scanErr
}

// stopCompleteness maps the reason ctx ended to a partial completeness flag.
func stopCompleteness(ctx context.Context) schema.Completeness {
	cause := context.Cause(ctx)
	if errors.Is(cause, contract.ErrScanTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		return schema.PartialTimeout
	}
	return schema.PartialCancelled
}

func (o *Orchestrator) wrappedEstimator(logger *logging.Logger, cfg schema.ScanConfiguration) *Estimator {
	var cache contract.EstimateCache
	if o.stores != nil {
		cache = o.stores.GetEstimateCache()
	}
	return NewEstimator(o.estimator, cache, o.cacheTTL, cfg.EstimateTimeout, logger)
}

func (o *Orchestrator) beginHistory(ctx context.Context, logger *logging.Logger, session *Session, start time.Time) int64 {
	if o.stores == nil || o.stores.GetHistoryStore() == nil {
		return 0
	}
	runID, err := o.stores.GetHistoryStore().BeginScan(start, session.ID, session.Repository, session.Config.Level)
	if err != nil {
		logger.Warn(ctx, "Scan history tracking failed", zap.Error(err))
		return 0
	}
	return runID
}

func (o *Orchestrator) endHistory(ctx context.Context, logger *logging.Logger, runID int64, results []schema.FileScanResult, summary schema.ScanSummary) {
	if runID == 0 {
		return
	}
	store := o.stores.GetHistoryStore()
	if err := store.RecordFileResults(runID, results); err != nil {
		logger.Warn(ctx, "Failed to record file results", zap.Error(err))
	}
	if err := store.EndScan(runID, time.Now(), summary); err != nil {
		logger.Warn(ctx, "Failed to finalize scan history", zap.Error(err))
	}
}
