//go:build basic

// Package integration contains end-to-end tests for the reposcan binary.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
package integration

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeipuuv/gojsonschema"
)

var noStores = map[string]string{
	"REPOSCAN_CACHE_BACKEND":   "none",
	"REPOSCAN_HISTORY_BACKEND": "none",
}

func TestScanLocalDirectory(t *testing.T) {
	root := writeRepo(t, 60)

	output, code := runReposcan(t, noStores, "scan", root, "--output", "json", "--level", "thorough")
	require.Equal(t, 0, code)

	var summary schema.ScanSummary
	require.NoError(t, json.Unmarshal(output, &summary))
	assert.Equal(t, schema.Complete, summary.Completeness)
	assert.Equal(t, schema.NormalTier, summary.Tier)
	assert.Equal(t, 61, summary.TotalFilesListed)
	assert.Equal(t, 61, summary.ScannedFiles)
	require.Len(t, summary.Findings, 1)
	assert.Equal(t, "config/client.js", summary.Findings[0].Path)
	assert.NotContains(t, string(output), fakeOpenAIKey, "secrets are redacted in the summary")
}

func TestScanSummaryMatchesJSONSchema(t *testing.T) {
	root := writeRepo(t, 10)
	output, code := runReposcan(t, noStores, "scan", root, "--output", "json")
	require.Equal(t, 0, code)

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema.SummaryJSONSchema),
		gojsonschema.NewBytesLoader(output),
	)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "%v", result.Errors())
}

func TestScanFailOnFindings(t *testing.T) {
	root := writeRepo(t, 5)

	_, code := runReposcan(t, noStores, "scan", root, "--output", "json", "--fail-on-findings")
	assert.Equal(t, 3, code)

	clean := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(clean, "main.go"), []byte("package main\n"), 0o644))
	_, code = runReposcan(t, noStores, "scan", clean, "--output", "json", "--fail-on-findings")
	assert.Equal(t, 0, code)
}

func TestScanPerFileCSV(t *testing.T) {
	root := writeRepo(t, 20)
	out := filepath.Join(t.TempDir(), "results.csv")

	_, code := runReposcan(t, noStores, "scan", root, "--output", "csv", "--output-file", out)
	require.Equal(t, 0, code)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Len(t, records, 22, "header plus one row per file")
}

func TestScanMissingRepository(t *testing.T) {
	_, code := runReposcan(t, noStores, "scan", filepath.Join(t.TempDir(), "missing"))
	assert.Equal(t, 1, code)
}

func TestEstimateAndPlan(t *testing.T) {
	root := writeRepo(t, 40)

	output, code := runReposcan(t, noStores, "estimate", root, "--output", "json")
	require.Equal(t, 0, code)
	var est schema.EstimateResult
	require.NoError(t, json.Unmarshal(output, &est))
	assert.Equal(t, 41, est.Estimate.FileCount)
	assert.Equal(t, schema.SourceLocalWalk, est.Estimate.Source)

	output, code = runReposcan(t, noStores, "plan", root, "--output", "json", "--sample-budget", "10")
	require.Equal(t, 0, code)
	var plan schema.PlanResult
	require.NoError(t, json.Unmarshal(output, &plan))
	assert.Equal(t, 10, plan.Sample.Len())
}

func TestHistoryWithSQLite(t *testing.T) {
	dbDir := t.TempDir()
	env := map[string]string{
		"REPOSCAN_CACHE_BACKEND":      "sqlite",
		"REPOSCAN_CACHE_DB_CONNECT":   filepath.Join(dbDir, "cache.db"),
		"REPOSCAN_HISTORY_BACKEND":    "sqlite",
		"REPOSCAN_HISTORY_DB_CONNECT": filepath.Join(dbDir, "history.db"),
	}
	root := writeRepo(t, 15)

	_, code := runReposcan(t, env, "scan", root, "--output", "json")
	require.Equal(t, 0, code)

	output, code := runReposcan(t, env, "history", "status")
	require.Equal(t, 0, code)
	assert.Contains(t, string(output), "Total Runs: 1")

	prefix := filepath.Join(t.TempDir(), "export")
	_, code = runReposcan(t, env, "history", "export", "--output-file", prefix)
	require.Equal(t, 0, code)
	assert.FileExists(t, prefix+".scan_runs.parquet")
	assert.FileExists(t, prefix+".scan_file_results.parquet")

	_, code = runReposcan(t, env, "history", "migrate")
	require.Equal(t, 0, code)

	_, code = runReposcan(t, env, "history", "clear")
	require.Equal(t, 0, code)

	output, code = runReposcan(t, env, "cache", "status")
	require.Equal(t, 0, code)
	assert.Contains(t, string(output), "Cache Backend: sqlite")
}

func TestVersion(t *testing.T) {
	output, code := runReposcan(t, nil, "version")
	require.Equal(t, 0, code)
	assert.True(t, strings.HasPrefix(string(output), "reposcan CLI"))
}
