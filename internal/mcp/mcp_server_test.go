package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/contract"
	mcp_internal "github.com/huangsam/reposcan/internal/mcp"
	"github.com/huangsam/reposcan/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *server.MCPServer {
	t.Helper()
	scanCfg, err := schema.NewScanConfiguration(schema.WithWorkDir(t.TempDir()), schema.WithMemoryLimit(1<<30))
	require.NoError(t, err)
	baseCfg := &contract.Config{Scan: scanCfg}

	analyzer := &contract.MockContentAnalyzer{}
	analyzer.On("Analyze", mock.Anything, mock.Anything, "keys/prod.env").Return(schema.AnalyzerOutput{FindingCount: 2}, nil).Maybe()
	analyzer.On("Analyze", mock.Anything, mock.Anything, mock.Anything).Return(schema.AnalyzerOutput{}, nil).Maybe()
	sampler := &contract.MockMemorySampler{}
	sampler.On("Sample").Return(uint64(64<<20), nil).Maybe()

	rt, err := core.NewRuntime(baseCfg, nil, core.WithRuntimeAnalyzer(analyzer), core.WithRuntimeSampler(sampler))
	require.NoError(t, err)
	return mcp_internal.NewMCPServer(baseCfg, rt, "test")
}

func writeLocalRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, name := range []string{"main.go", "pkg/util.go", "keys/prod.env", "README.md"} {
		full := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte("content of "+name), 0o644))
	}
	return root
}

func callTool(t *testing.T, s *server.MCPServer, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	tool := s.GetTool(name)
	require.NotNil(t, tool, "Tool %s should exist", name)
	res, err := tool.Handler(context.Background(), mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: name, Arguments: args},
	})
	require.NoError(t, err, "The MCP handler should not return a raw error for tool logic failures")
	return res
}

func TestMCPServerHandlers_ValidationErrors(t *testing.T) {
	s := newTestServer(t)

	t.Run("scan_repository missing url", func(t *testing.T) {
		res := callTool(t, s, "scan_repository", map[string]any{})
		assert.True(t, res.IsError, "The response should indicate an error state")
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid repository url")
	})

	t.Run("scan_repository invalid level", func(t *testing.T) {
		res := callTool(t, s, "scan_repository", map[string]any{"repository_url": "https://github.com/acme/widgets", "scan_level": "turbo"})
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid scan_level")
	})

	t.Run("scan_repository invalid timeout", func(t *testing.T) {
		res := callTool(t, s, "scan_repository", map[string]any{"repository_url": "https://github.com/acme/widgets", "timeout": "soon"})
		assert.True(t, res.IsError)
		assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "invalid timeout")
	})

	t.Run("estimate_repository unsupported scheme", func(t *testing.T) {
		res := callTool(t, s, "estimate_repository", map[string]any{"repository_url": "ftp://example.com/repo"})
		assert.True(t, res.IsError)
	})
}

func TestMCPServerHandlers_Scan(t *testing.T) {
	s := newTestServer(t)
	root := writeLocalRepo(t)

	res := callTool(t, s, "scan_repository", map[string]any{"repository_url": root, "scan_level": "thorough"})
	require.False(t, res.IsError, res.Content)

	var summary schema.ScanSummary
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(mcp.TextContent).Text), &summary))
	assert.Equal(t, schema.Complete, summary.Completeness)
	assert.Equal(t, schema.ThoroughLevel, summary.Level)
	assert.Equal(t, 4, summary.ScannedFiles)
	require.Len(t, summary.Findings, 1)
	assert.Equal(t, "keys/prod.env", summary.Findings[0].Path)
}

func TestMCPServerHandlers_ScanFailure(t *testing.T) {
	s := newTestServer(t)

	res := callTool(t, s, "scan_repository", map[string]any{"repository_url": filepath.Join(t.TempDir(), "missing")})
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content[0].(mcp.TextContent).Text, "scan failed")
}

func TestMCPServerHandlers_Estimate(t *testing.T) {
	s := newTestServer(t)
	root := writeLocalRepo(t)

	res := callTool(t, s, "estimate_repository", map[string]any{"repository_url": root})
	require.False(t, res.IsError, res.Content)

	var est schema.EstimateResult
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].(mcp.TextContent).Text), &est))
	assert.Equal(t, 4, est.Estimate.FileCount)
	assert.Equal(t, schema.NormalTier, est.Plan.Tier)
}
