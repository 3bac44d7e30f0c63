package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/mark3labs/mcp-go/mcp"
)

// toolHandler holds common dependencies for MCP tool handlers.
type toolHandler struct {
	baseCfg *contract.Config
	rt      *core.Runtime
}

// requestConfig builds the per-call config from the base config and the tool arguments.
func (h *toolHandler) requestConfig(request mcp.CallToolRequest) (*contract.Config, error) {
	return h.baseCfg.CloneWithOverrides(contract.ScanOverrides{
		RepositoryURL: request.GetString("repository_url", ""),
		Branch:        request.GetString("branch", ""),
		ScanLevel:     request.GetString("scan_level", ""),
		SampleBudget:  request.GetInt("sample_budget", 0),
		Timeout:       request.GetString("timeout", ""),
	})
}

func (h *toolHandler) handleScanRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid scan parameters: %v", err)), nil
	}

	summary, _, err := h.rt.Scan(ctx, core.NewSession(cfg.Repository, cfg.Scan))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scan failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(summary, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}

func (h *toolHandler) handleEstimateRepository(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	cfg, err := h.requestConfig(request)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid estimate parameters: %v", err)), nil
	}

	res, err := h.rt.Estimate(ctx, cfg.Repository, cfg.Scan)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("estimate failed: %v", err)), nil
	}

	jsonData, _ := json.MarshalIndent(res, "", "  ")
	return mcp.NewToolResultText(string(jsonData)), nil
}
