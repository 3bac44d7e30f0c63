package schema

import "time"

// ScanRunRecord represents a row from the scan_runs table.
type ScanRunRecord struct {
	RunID            int64
	SessionID        string
	Repository       string
	Branch           string
	Tier             string
	ScanLevel        string
	StartTime        time.Time
	EndTime          *time.Time
	RunDurationMs    *int32
	TotalFilesListed int32
	SampledFiles     int32
	ScannedFiles     int32
	FindingsCount    int32
	Completeness     string
	Fingerprint      string
	PeakMemoryBytes  int64
	WorkersUsed      int32
}

// FileResultRecord represents a row from the scan_file_results table.
type FileResultRecord struct {
	RunID        int64
	FilePath     string
	SizeBytes    int64
	Extension    string
	Status       string
	FindingCount int32
	ElapsedMs    int64
	ErrorMessage *string
}

// EstimateCacheRecord represents a row from the estimate_cache table.
type EstimateCacheRecord struct {
	CacheKey   string
	Repository string
	FileCount  int64
	TotalBytes int64
	Confidence string
	Source     string
	CreatedAt  time.Time
}

// NewFileResultRecord builds the stored row of a per-file scan result.
func NewFileResultRecord(runID int64, r FileScanResult) FileResultRecord {
	rec := FileResultRecord{
		RunID:        runID,
		FilePath:     r.Candidate.Path,
		SizeBytes:    r.Candidate.Size,
		Extension:    r.Candidate.Ext,
		Status:       string(r.Status),
		FindingCount: int32(r.Output.FindingCount),
		ElapsedMs:    r.ElapsedMs,
	}
	if r.Err != "" {
		msg := r.Err
		rec.ErrorMessage = &msg
	}
	return rec
}
