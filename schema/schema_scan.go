package schema

import "encoding/json"

// FileCandidate is a file discovered during listing.
type FileCandidate struct {
	Path     string  `json:"path"`               // slash-separated, relative to the checkout root
	Size     int64   `json:"size"`               // size in bytes
	Ext      string  `json:"ext"`                // lowercase extension with the dot, "" for none
	Language string  `json:"language,omitempty"` // best-effort language tag
	Priority float64 `json:"priority"`           // sampling score, filled by the planner
}

// SampledSet is the ordered, bounded subset of the listing chosen for scanning.
type SampledSet struct {
	Files       []FileCandidate `json:"files"`
	Budget      int             `json:"budget"` // UnboundedBudget for a full scan
	Fingerprint string          `json:"fingerprint"`
	Priority    int             `json:"priority_picks"`
	Coverage    int             `json:"coverage_picks"`
	Fill        int             `json:"fill_picks"`
}

// Len returns the number of sampled files.
func (s SampledSet) Len() int { return len(s.Files) }

// Batch is a contiguous slice of the sampled set handed to one worker.
type Batch struct {
	Index int
	Files []FileCandidate
}

// AnalyzerOutput is the opaque result of analyzing a single file.
// FindingCount drives aggregation, Payload is passed through untouched.
type AnalyzerOutput struct {
	FindingCount int             `json:"finding_count"`
	Payload      json.RawMessage `json:"payload,omitempty"`
}

// HasFindings reports whether the analyzer flagged anything.
func (o AnalyzerOutput) HasFindings() bool { return o.FindingCount > 0 }

// FileScanResult is the outcome of scanning one file.
type FileScanResult struct {
	Candidate FileCandidate  `json:"candidate"`
	Status    FileStatus     `json:"status"`
	Output    AnalyzerOutput `json:"output"`
	Err       string         `json:"error,omitempty"`
	ElapsedMs int64          `json:"elapsed_ms"`
}

// ScanPlan holds the concrete parameters resolved from a tier and a configuration.
type ScanPlan struct {
	Tier               ScanTier         `json:"tier"`
	Level              ScanLevel        `json:"scan_level"`
	Workers            int              `json:"workers"`
	MaxWorkers         int              `json:"max_workers"`
	SampleBudget       int              `json:"sample_budget"`
	BatchSize          int              `json:"batch_size"`
	MaxBatchSize       int              `json:"max_batch_size"`
	MemoryConservative bool             `json:"memory_conservative"`
	Strategy           CheckoutStrategy `json:"strategy"`
}

// Unbounded reports whether the plan scans the whole eligible listing.
func (p ScanPlan) Unbounded() bool { return p.SampleBudget == UnboundedBudget }

// PlanResult is the outcome of a dry run: everything up to sampling.
type PlanResult struct {
	Estimate SizeEstimate     `json:"estimate"`
	Plan     ScanPlan         `json:"plan"`
	Listed   int              `json:"total_files_listed"`
	Skipped  int              `json:"skipped_too_large"`
	Coverage float64          `json:"coverage"`
	Sample   SampledSet       `json:"sample"`
	Commit   string           `json:"commit,omitempty"`
	Strategy CheckoutStrategy `json:"strategy"`
}

// EstimateResult is a size estimate together with the plan it resolves to.
type EstimateResult struct {
	Repository string       `json:"repository"`
	Estimate   SizeEstimate `json:"estimate"`
	Plan       ScanPlan     `json:"plan"`
}
