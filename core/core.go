// Package core has the scan pipeline: estimation, tiering, checkout, sampling,
// batch scheduling and aggregation, driven by the orchestrator.
package core

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/huangsam/reposcan/internal/analyzer"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/gitclient"
	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/internal/metrics"
	"github.com/huangsam/reposcan/internal/outwriter"
	"github.com/huangsam/reposcan/internal/sysmem"
	"github.com/huangsam/reposcan/schema"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// progressBuffer is the subscription buffer for the CLI progress display.
const progressBuffer = 256

// Runtime holds the collaborators shared by every scan of a process.
// It is safe for concurrent use; each call builds its own orchestrator.
type Runtime struct {
	client   contract.SourceControlClient
	analyzer contract.ContentAnalyzer
	sampler  contract.MemorySampler
	table    *heuristics.Table
	stores   contract.StoreManager
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	logger   *logging.Logger
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeLogger sets the logger handed to every stage.
func WithRuntimeLogger(l *logging.Logger) RuntimeOption {
	return func(r *Runtime) { r.logger = l }
}

// WithRuntimeTracer sets the tracer used for phase spans.
func WithRuntimeTracer(t trace.Tracer) RuntimeOption {
	return func(r *Runtime) { r.tracer = t }
}

// WithRuntimeClient replaces the go-git/GitHub client.
func WithRuntimeClient(c contract.SourceControlClient) RuntimeOption {
	return func(r *Runtime) { r.client = c }
}

// WithRuntimeAnalyzer replaces the secret analyzer.
func WithRuntimeAnalyzer(a contract.ContentAnalyzer) RuntimeOption {
	return func(r *Runtime) { r.analyzer = a }
}

// WithRuntimeSampler replaces the process memory sampler.
func WithRuntimeSampler(s contract.MemorySampler) RuntimeOption {
	return func(r *Runtime) { r.sampler = s }
}

// NewRuntime builds the default collaborators from a validated config.
// mgr may be nil when no persistence is configured.
func NewRuntime(cfg *contract.Config, mgr contract.StoreManager, opts ...RuntimeOption) (*Runtime, error) {
	r := &Runtime{
		stores:   mgr,
		cacheTTL: cfg.EstimateCacheTTL,
		metrics:  metrics.NewMetrics(),
		tracer:   otel.Tracer(tracerName),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}

	table, err := heuristics.Load(cfg.HeuristicsFile)
	if err != nil {
		return nil, err
	}
	r.table = table

	if r.client == nil {
		clientOpts := []gitclient.Option{
			gitclient.WithGitHubAPIURL(cfg.GitHubAPIURL),
			gitclient.WithLogger(r.logger.Named("gitclient")),
		}
		if u, err := url.Parse(cfg.GitHubAPIURL); err == nil && u.Host != "" {
			clientOpts = append(clientOpts, gitclient.WithGitHubHost(u.Hostname()))
		}
		client, err := gitclient.New(clientOpts...)
		if err != nil {
			return nil, err
		}
		r.client = client
	}
	if r.analyzer == nil {
		a, err := analyzer.NewSecretAnalyzer()
		if err != nil {
			return nil, fmt.Errorf("failed to create analyzer: %w", err)
		}
		r.analyzer = a
	}
	if r.sampler == nil {
		s, err := sysmem.NewSampler()
		if err != nil {
			return nil, err
		}
		r.sampler = s
	}
	return r, nil
}

// Orchestrator returns an orchestrator wired to the runtime collaborators.
func (r *Runtime) Orchestrator(opts ...OrchestratorOption) *Orchestrator {
	base := []OrchestratorOption{
		WithHeuristics(r.table),
		WithMetrics(r.metrics),
		WithTracer(r.tracer),
		WithLogger(r.logger),
	}
	if r.stores != nil {
		base = append(base, WithStores(r.stores, r.cacheTTL))
	}
	return NewOrchestrator(r.client, r.analyzer, r.sampler, append(base, opts...)...)
}

// Scan runs session and returns the summary together with every per-file result.
func (r *Runtime) Scan(ctx context.Context, session *Session) (*schema.ScanSummary, []schema.FileScanResult, error) {
	var results []schema.FileScanResult
	orch := r.Orchestrator(WithResultSink(func(rs []schema.FileScanResult) { results = rs }))
	summary, err := orch.Scan(ctx, session)
	if err != nil {
		return nil, nil, err
	}
	return summary, results, nil
}

// Estimate probes desc and resolves the plan a scan with cfg would use.
func (r *Runtime) Estimate(ctx context.Context, desc schema.RepositoryDescriptor, cfg schema.ScanConfiguration) (*schema.EstimateResult, error) {
	return r.Orchestrator().Estimate(ctx, desc, cfg)
}

// Plan runs a dry run of session up to sampling.
func (r *Runtime) Plan(ctx context.Context, session *Session) (*schema.PlanResult, error) {
	return r.Orchestrator().Plan(ctx, session)
}

// ExecuteScan scans cfg.Repository and prints the result. Partial summaries are
// printed like complete ones; the summary is returned for exit code decisions.
func ExecuteScan(ctx context.Context, cfg *contract.Config, rt *Runtime, ow *outwriter.OutWriter) (*schema.ScanSummary, error) {
	session := NewSession(cfg.Repository, cfg.Scan)

	var wg sync.WaitGroup
	if cfg.Progress {
		events := session.Subscribe(progressBuffer)
		wg.Go(func() { ow.WriteProgress(events, os.Stderr) })
	}
	summary, results, err := rt.Scan(ctx, session)
	wg.Wait()
	if err != nil {
		return nil, err
	}
	if err := ow.WriteScan(summary, results, cfg); err != nil {
		return summary, fmt.Errorf("failed to write scan results: %w", err)
	}
	return summary, nil
}

// ExecuteEstimate probes cfg.Repository and prints the estimate and plan.
func ExecuteEstimate(ctx context.Context, cfg *contract.Config, rt *Runtime, ow *outwriter.OutWriter) error {
	res, err := rt.Estimate(ctx, cfg.Repository, cfg.Scan)
	if err != nil {
		return err
	}
	return ow.WriteEstimate(res, cfg)
}

// ExecutePlan runs a dry run for cfg.Repository and prints the sampled set.
func ExecutePlan(ctx context.Context, cfg *contract.Config, rt *Runtime, ow *outwriter.OutWriter) error {
	session := NewSession(cfg.Repository, cfg.Scan)

	var wg sync.WaitGroup
	if cfg.Progress {
		events := session.Subscribe(progressBuffer)
		wg.Go(func() { ow.WriteProgress(events, os.Stderr) })
	}
	res, err := rt.Plan(ctx, session)
	wg.Wait()
	if err != nil {
		return err
	}
	return ow.WritePlan(res, cfg)
}
