// Package parquet provides data structures and functions for exporting scan
// history and per-file results to Parquet files using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/huangsam/reposcan/schema"
	"github.com/parquet-go/parquet-go"
)

// ScanRun represents a single recorded scan.
// This struct maps to the scan_runs database table.
type ScanRun struct {
	RunID      int64  `parquet:"run_id,snappy"`
	SessionID  string `parquet:"session_id,snappy"`
	Repository string `parquet:"repository,snappy"`
	Branch     string `parquet:"branch,optional,snappy"`
	Tier       string `parquet:"tier,snappy"`
	ScanLevel  string `parquet:"scan_level,snappy"`

	// StartTime is when the scan began (stored as TIMESTAMP with nanosecond precision)
	StartTime time.Time `parquet:"start_time,snappy"`

	// EndTime is nil for a run that never finished
	EndTime       *time.Time `parquet:"end_time,optional,snappy"`
	RunDurationMs *int32     `parquet:"run_duration_ms,optional,snappy"`

	TotalFilesListed int32  `parquet:"total_files_listed,snappy"`
	SampledFiles     int32  `parquet:"sampled_files,snappy"`
	ScannedFiles     int32  `parquet:"scanned_files,snappy"`
	FindingsCount    int32  `parquet:"findings_count,snappy"`
	Completeness     string `parquet:"completeness,snappy"`
	Fingerprint      string `parquet:"sample_fingerprint,snappy"`
	PeakMemoryBytes  int64  `parquet:"peak_memory_bytes,snappy"`
	WorkersUsed      int32  `parquet:"workers_used,snappy"`
}

// FileResult represents the outcome of scanning one file.
// This struct maps to the scan_file_results database table.
type FileResult struct {
	// RunID references the parent scan run, zero when the row was not persisted
	RunID        int64   `parquet:"run_id,snappy"`
	FilePath     string  `parquet:"file_path,snappy"`
	SizeBytes    int64   `parquet:"size_bytes,snappy"`
	Extension    string  `parquet:"extension,snappy"`
	Status       string  `parquet:"status,snappy"`
	FindingCount int32   `parquet:"finding_count,snappy"`
	ElapsedMs    int64   `parquet:"elapsed_ms,snappy"`
	ErrorMessage *string `parquet:"error_message,optional,snappy"`
}

// write streams rows of T into w using struct schema inference.
func write[T any](w io.Writer, data []T) error {
	writer := parquet.NewGenericWriter[T](w)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

func writeFile[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file, data); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteScanRunsParquet writes a slice of ScanRun structs to a Parquet file.
func WriteScanRunsParquet(data []ScanRun, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteFileResultsParquet writes a slice of FileResult structs to a Parquet file.
func WriteFileResultsParquet(data []FileResult, outputPath string) error {
	return writeFile(data, outputPath)
}

// WriteFileResults writes per-file results to w.
func WriteFileResults(w io.Writer, data []FileResult) error {
	return write(w, data)
}

// ConvertScanRunRecords converts schema.ScanRunRecord to ScanRun for Parquet export.
func ConvertScanRunRecords(records []schema.ScanRunRecord) []ScanRun {
	result := make([]ScanRun, len(records))
	for i, r := range records {
		result[i] = ScanRun{
			RunID:            r.RunID,
			SessionID:        r.SessionID,
			Repository:       r.Repository,
			Branch:           r.Branch,
			Tier:             r.Tier,
			ScanLevel:        r.ScanLevel,
			StartTime:        r.StartTime,
			EndTime:          r.EndTime,
			RunDurationMs:    r.RunDurationMs,
			TotalFilesListed: r.TotalFilesListed,
			SampledFiles:     r.SampledFiles,
			ScannedFiles:     r.ScannedFiles,
			FindingsCount:    r.FindingsCount,
			Completeness:     r.Completeness,
			Fingerprint:      r.Fingerprint,
			PeakMemoryBytes:  r.PeakMemoryBytes,
			WorkersUsed:      r.WorkersUsed,
		}
	}
	return result
}

// ConvertFileResultRecords converts schema.FileResultRecord to FileResult for Parquet export.
func ConvertFileResultRecords(records []schema.FileResultRecord) []FileResult {
	result := make([]FileResult, len(records))
	for i, r := range records {
		result[i] = FileResult{
			RunID:        r.RunID,
			FilePath:     r.FilePath,
			SizeBytes:    r.SizeBytes,
			Extension:    r.Extension,
			Status:       r.Status,
			FindingCount: r.FindingCount,
			ElapsedMs:    r.ElapsedMs,
			ErrorMessage: r.ErrorMessage,
		}
	}
	return result
}

// ConvertScanResults converts in-memory scan results to FileResult rows.
func ConvertScanResults(results []schema.FileScanResult) []FileResult {
	records := make([]schema.FileResultRecord, len(results))
	for i, r := range results {
		records[i] = schema.NewFileResultRecord(0, r)
	}
	return ConvertFileResultRecords(records)
}
