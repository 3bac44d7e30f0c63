// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/reposcan/schema"
)

// TreeEntry is a blob discovered in a repository tree.
type TreeEntry struct {
	Path string // slash-separated, relative to the repository root
	Size int64
}

// RemoteTree is a listing obtained without cloning the repository.
type RemoteTree struct {
	Entries   []TreeEntry
	Truncated bool   // the listing hit a provider limit and is incomplete
	Source    string // e.g. schema.SourceGitHubTree
}

// FetchOptions controls how a repository is materialized on disk.
type FetchOptions struct {
	Strategy         schema.CheckoutStrategy
	MaxFileSizeBytes int64
	Allowlist        map[string]struct{} // extensions materialized by a sparse checkout
}

// Checkout is the on-disk result of a fetch.
type Checkout struct {
	Root     string
	Commit   string
	Strategy schema.CheckoutStrategy
	// Entries lists the files known to the fetch. It is nil when the caller
	// should walk Root instead.
	Entries []TreeEntry
}

// SourceControlClient defines the operations needed against a source control host.
// This allows the scan pipeline to be tested without network access.
type SourceControlClient interface {
	// ListTree returns the file listing of desc without cloning it.
	// Hosts without an introspection API return ErrEstimateUnsupported.
	ListTree(ctx context.Context, desc schema.RepositoryDescriptor) (RemoteTree, error)

	// Fetch materializes desc into dest, which must already exist and be empty.
	Fetch(ctx context.Context, desc schema.RepositoryDescriptor, dest string, opts FetchOptions) (Checkout, error)
}

// SizeEstimator probes a repository for its size without cloning it.
type SizeEstimator interface {
	Estimate(ctx context.Context, desc schema.RepositoryDescriptor) (schema.SizeEstimate, error)
}

// ContentAnalyzer inspects the content of one file.
// Implementations are stateless and must not retain content after returning.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, content []byte, path string) (schema.AnalyzerOutput, error)
}

// MemorySampler reports memory figures for the running process and host.
type MemorySampler interface {
	// Sample returns the current memory usage of the process in bytes.
	Sample() (uint64, error)

	// Available returns the memory available on the host in bytes.
	Available() (uint64, error)
}

// StoreManager defines the interface for managing the persistence stores.
// This allows the store layer to be mocked for testing.
type StoreManager interface {
	GetHistoryStore() HistoryStore
	GetEstimateCache() EstimateCache
}

// EstimateCache stores size estimates keyed by repository and branch.
type EstimateCache interface {
	// Get returns the estimate stored under key if it is younger than ttl.
	Get(key string, ttl time.Duration) (schema.SizeEstimate, bool, error)

	// Set stores est under key.
	Set(key string, repository string, est schema.SizeEstimate) error

	// GetStatus returns status information about the cache
	GetStatus(ttl time.Duration) (schema.CacheStatus, error)

	// Close closes the underlying connection
	Close() error
}

// HistoryStore defines the interface for tracking scan runs and their per-file results.
type HistoryStore interface {
	// BeginScan creates a new scan run and returns its unique ID
	BeginScan(startTime time.Time, sessionID string, desc schema.RepositoryDescriptor, level schema.ScanLevel) (int64, error)

	// RecordFileResults stores per-file outcomes for a run
	RecordFileResults(runID int64, results []schema.FileScanResult) error

	// EndScan updates the run with the final summary
	EndScan(runID int64, endTime time.Time, summary schema.ScanSummary) error

	// GetStatus returns status information about the history store
	GetStatus() (schema.HistoryStatus, error)

	// GetAllScanRuns returns every recorded run ordered by id
	GetAllScanRuns() ([]schema.ScanRunRecord, error)

	// GetAllFileResults returns every per-file row ordered by run and path
	GetAllFileResults() ([]schema.FileResultRecord, error)

	// Close closes the underlying connection
	Close() error
}
