package parquet

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/reposcan/schema"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRuns() []ScanRun {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)
	duration := int32(90_000)
	return []ScanRun{
		{
			RunID: 1, SessionID: "a", Repository: "https://github.com/acme/widgets", Tier: "normal",
			ScanLevel: "adaptive", StartTime: start, EndTime: &end, RunDurationMs: &duration,
			TotalFilesListed: 120, SampledFiles: 120, ScannedFiles: 120, Completeness: "complete",
		},
		{RunID: 2, SessionID: "b", Repository: "/srv/repo", Tier: "massive", StartTime: start},
	}
}

func TestScanRunStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(ScanRun))
	for _, col := range []string{"run_id", "session_id", "repository", "start_time", "end_time", "completeness", "sample_fingerprint", "workers_used"} {
		_, ok := s.Lookup(col)
		assert.True(t, ok, "column %s should exist", col)
	}
}

func TestFileResultStructTags(t *testing.T) {
	s := parquet.SchemaOf(new(FileResult))
	for _, col := range []string{"run_id", "file_path", "size_bytes", "extension", "status", "finding_count", "elapsed_ms", "error_message"} {
		_, ok := s.Lookup(col)
		assert.True(t, ok, "column %s should exist", col)
	}
}

func TestWriteScanRunsParquet(t *testing.T) {
	out := filepath.Join(t.TempDir(), "runs.parquet")
	require.NoError(t, WriteScanRunsParquet(sampleRuns(), out))

	rows, err := parquet.ReadFile[ScanRun](out)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0].RunID)
	require.NotNil(t, rows[0].EndTime)
	assert.Nil(t, rows[1].EndTime)
	assert.Nil(t, rows[1].RunDurationMs)
}

func TestWriteFileResultsParquetBadPath(t *testing.T) {
	err := WriteFileResultsParquet(nil, filepath.Join(t.TempDir(), "missing", "x.parquet"))
	assert.Error(t, err)
}

func TestWriteFileResults(t *testing.T) {
	results := []schema.FileScanResult{
		{Candidate: schema.FileCandidate{Path: "a.go", Size: 10, Ext: ".go"}, Status: schema.StatusOK, Output: schema.AnalyzerOutput{FindingCount: 2}, ElapsedMs: 3},
		{Candidate: schema.FileCandidate{Path: "big.bin", Size: 1 << 30, Ext: ".bin"}, Status: schema.StatusSkippedTooLarge, Err: "size exceeds limit"},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteFileResults(&buf, ConvertScanResults(results)))

	path := filepath.Join(t.TempDir(), "files.parquet")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	rows, err := parquet.ReadFile[FileResult](path)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "a.go", rows[0].FilePath)
	assert.Equal(t, int32(2), rows[0].FindingCount)
	assert.Nil(t, rows[0].ErrorMessage)
	require.NotNil(t, rows[1].ErrorMessage)
	assert.Equal(t, "skipped_too_large", rows[1].Status)
}

func TestConvertScanRunRecords(t *testing.T) {
	records := []schema.ScanRunRecord{{RunID: 7, Repository: "r", Completeness: "partial_timeout", WorkersUsed: 2}}
	runs := ConvertScanRunRecords(records)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(7), runs[0].RunID)
	assert.Equal(t, "partial_timeout", runs[0].Completeness)
	assert.Equal(t, int32(2), runs[0].WorkersUsed)
}
