// Package mcp provides the Model Context Protocol (MCP) server implementation.
package mcp

import (
	"context"

	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer initializes and configures the reposcan MCP server without starting it.
// This is exposed for unit testing.
func NewMCPServer(baseCfg *contract.Config, rt *core.Runtime, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"Reposcan Server",
		version,
		server.WithLogging(),
	)

	h := &toolHandler{
		baseCfg: baseCfg,
		rt:      rt,
	}

	levels := []string{"fast", "standard", "thorough", "adaptive"}

	// --- 1. Tool: scan_repository ---
	s.AddTool(mcp.NewTool("scan_repository",
		mcp.WithDescription("Scan a repository for secrets. Large repositories are sampled; the summary says how complete the scan was."),
		mcp.WithString("repository_url", mcp.Description("Repository URL or local path."), mcp.Required()),
		mcp.WithString("branch", mcp.Description("Branch to scan. Defaults to the remote HEAD.")),
		mcp.WithString("scan_level", mcp.Description("How aggressively to sample. Defaults to 'adaptive'."), mcp.Enum(levels...)),
		mcp.WithNumber("sample_budget", mcp.Description("Override the number of files sampled (-1 scans everything).")),
		mcp.WithString("timeout", mcp.Description("Total scan timeout, e.g. '10m'. A timed out scan returns a partial summary.")),
	), h.handleScanRepository)

	// --- 2. Tool: estimate_repository ---
	s.AddTool(mcp.NewTool("estimate_repository",
		mcp.WithDescription("Estimate the size of a repository without cloning it and show the scan plan it would get."),
		mcp.WithString("repository_url", mcp.Description("Repository URL or local path."), mcp.Required()),
		mcp.WithString("branch", mcp.Description("Branch to estimate.")),
		mcp.WithString("scan_level", mcp.Description("Scan level used to resolve the plan."), mcp.Enum(levels...)),
	), h.handleEstimateRepository)

	return s
}

// StartMCPServer starts the reposcan MCP server on stdio.
func StartMCPServer(_ context.Context, baseCfg *contract.Config, rt *core.Runtime, version string) error {
	s := NewMCPServer(baseCfg, rt, version)
	return server.ServeStdio(s)
}
