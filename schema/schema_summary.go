package schema

import (
	"encoding/json"
	"time"
)

// StatusCounts tallies per-file outcomes.
type StatusCounts struct {
	OK              int `json:"ok"`
	SkippedTooLarge int `json:"skipped_too_large"`
	ReadError       int `json:"read_error"`
	AnalyzerError   int `json:"analyzer_error"`
	Timeout         int `json:"timeout"`
}

// Inc increments the counter for status.
func (c *StatusCounts) Inc(status FileStatus) {
	switch status {
	case StatusOK:
		c.OK++
	case StatusSkippedTooLarge:
		c.SkippedTooLarge++
	case StatusReadError:
		c.ReadError++
	case StatusAnalyzerError:
		c.AnalyzerError++
	case StatusTimeout:
		c.Timeout++
	}
}

// Get returns the counter for status.
func (c StatusCounts) Get(status FileStatus) int {
	switch status {
	case StatusOK:
		return c.OK
	case StatusSkippedTooLarge:
		return c.SkippedTooLarge
	case StatusReadError:
		return c.ReadError
	case StatusAnalyzerError:
		return c.AnalyzerError
	case StatusTimeout:
		return c.Timeout
	default:
		return 0
	}
}

// Scanned is the number of files that went through the scan stage.
func (c StatusCounts) Scanned() int {
	return c.OK + c.ReadError + c.AnalyzerError + c.Timeout
}

// Performance holds runtime figures for a scan.
type Performance struct {
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	PeakMemoryBytes uint64  `json:"peak_memory_bytes"`
	WorkersUsed     int     `json:"workers_used"`
}

// Finding is the analyzer output of a file that had findings.
type Finding struct {
	Path   string          `json:"path"`
	Count  int             `json:"count"`
	Output json.RawMessage `json:"output,omitempty"`
}

// ScanSummary is the final report of a scan.
// The first block of fields is the stable output contract; the rest is additive.
type ScanSummary struct {
	TotalFilesListed int          `json:"total_files_listed"`
	SampledFiles     int          `json:"sampled_files"`
	ScannedFiles     int          `json:"scanned_files"`
	StatusCounts     StatusCounts `json:"status_counts"`
	Findings         []Finding    `json:"findings"`
	Performance      Performance  `json:"performance"`
	Completeness     Completeness `json:"completeness"`

	SessionID         string        `json:"session_id,omitempty"`
	Repository        string        `json:"repository,omitempty"`
	Branch            string        `json:"branch,omitempty"`
	Tier              ScanTier      `json:"tier,omitempty"`
	Level             ScanLevel     `json:"scan_level,omitempty"`
	Estimate          *SizeEstimate `json:"estimate,omitempty"`
	SampleFingerprint string        `json:"sample_fingerprint,omitempty"`
	BatchesDispatched int           `json:"batches_dispatched"`
	BatchesCompleted  int           `json:"batches_completed"`
	Coverage          float64       `json:"coverage"` // share of listed extensions present in the sample
	State             SessionState  `json:"state,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
}

// TotalFindings sums finding counts across files.
func (s ScanSummary) TotalFindings() int {
	total := 0
	for _, f := range s.Findings {
		total += f.Count
	}
	return total
}

// ProgressEvent is published by a scan session on state changes and batch completions.
type ProgressEvent struct {
	SessionID   string       `json:"session_id"`
	State       SessionState `json:"state"`
	Message     string       `json:"message,omitempty"`
	FilesDone   int          `json:"files_done"`
	FilesTotal  int          `json:"files_total"`
	Workers     int          `json:"workers"`
	BatchSize   int          `json:"batch_size"`
	MemoryBytes uint64       `json:"memory_bytes"`
	Time        time.Time    `json:"time"`
}
