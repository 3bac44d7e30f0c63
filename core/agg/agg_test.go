package agg

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(path string, status schema.FileStatus, findings int) schema.FileScanResult {
	r := schema.FileScanResult{Candidate: schema.FileCandidate{Path: path}, Status: status}
	if findings > 0 {
		r.Output = schema.AnalyzerOutput{FindingCount: findings, Payload: json.RawMessage(`[{"rule":"x"}]`)}
	}
	return r
}

func TestSummaryComplete(t *testing.T) {
	a := New(10, 4)
	a.Add(result("big.bin", schema.StatusSkippedTooLarge, 0))
	a.Add(result("z.env", schema.StatusOK, 2))
	a.Add(result("a.env", schema.StatusOK, 1))
	a.Add(result("b.go", schema.StatusReadError, 0))
	a.Add(result("c.go", schema.StatusTimeout, 0))

	s := a.Summary(Input{Elapsed: 1500 * time.Millisecond, PeakMemory: 42, WorkersUsed: 3, Coverage: 0.5})

	assert.Equal(t, 10, s.TotalFilesListed)
	assert.Equal(t, 4, s.SampledFiles)
	assert.Equal(t, 4, s.ScannedFiles)
	assert.Equal(t, schema.Complete, s.Completeness)
	assert.Equal(t, schema.StatusCounts{OK: 2, SkippedTooLarge: 1, ReadError: 1, Timeout: 1}, s.StatusCounts)
	require.Len(t, s.Findings, 2)
	assert.Equal(t, "a.env", s.Findings[0].Path)
	assert.Equal(t, "z.env", s.Findings[1].Path)
	assert.Equal(t, 3, s.TotalFindings())
	assert.InDelta(t, 1.5, s.Performance.ElapsedSeconds, 1e-9)
	assert.Equal(t, uint64(42), s.Performance.PeakMemoryBytes)
	assert.Equal(t, 3, s.Performance.WorkersUsed)
	assert.InDelta(t, 0.5, s.Coverage, 1e-9)
}

func TestSummaryPartial(t *testing.T) {
	for _, stop := range []schema.Completeness{schema.PartialTimeout, schema.PartialCancelled} {
		t.Run(string(stop), func(t *testing.T) {
			a := New(100, 50)
			for i := range 20 {
				a.Add(result(fmt.Sprintf("f%02d", i), schema.StatusOK, 0))
			}
			s := a.Summary(Input{Stop: stop})
			assert.Equal(t, stop, s.Completeness)
			assert.Equal(t, 20, s.ScannedFiles)
		})
	}
}

func TestSummaryCompleteDespiteStop(t *testing.T) {
	a := New(1, 1)
	a.Add(result("only", schema.StatusOK, 0))
	assert.Equal(t, schema.Complete, a.Summary(Input{Stop: schema.PartialTimeout}).Completeness)
}

func TestAddIgnoresDuplicates(t *testing.T) {
	a := New(2, 2)
	a.Add(result("x", schema.StatusOK, 1))
	a.Add(result("x", schema.StatusOK, 1))
	assert.Equal(t, 1, a.Scanned())
	assert.Len(t, a.Summary(Input{}).Findings, 1)
}

func TestSummaryEmptyFindingsNotNil(t *testing.T) {
	s := New(0, 0).Summary(Input{})
	assert.NotNil(t, s.Findings)
	assert.Equal(t, schema.Complete, s.Completeness)

	out, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"findings":[]`)
}

func TestSummaryInvariantOrdering(t *testing.T) {
	a := New(30, 10)
	for i := range 10 {
		status := schema.AllFileStatuses[i%len(schema.AllFileStatuses)]
		if status == schema.StatusSkippedTooLarge {
			status = schema.StatusOK
		}
		a.Add(result(fmt.Sprintf("f%d", i), status, i%2))
	}
	s := a.Summary(Input{})
	assert.LessOrEqual(t, 0, s.ScannedFiles)
	assert.LessOrEqual(t, s.ScannedFiles, s.SampledFiles)
	assert.LessOrEqual(t, s.SampledFiles, s.TotalFilesListed)
	assert.Equal(t, s.ScannedFiles, s.StatusCounts.Scanned())
}
