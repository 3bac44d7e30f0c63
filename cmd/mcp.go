package cmd

import (
	"github.com/huangsam/reposcan/internal/mcp"
	"github.com/spf13/cobra"
)

// mcpCmd represents the mcp command.
var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the reposcan MCP server",
	Long: `Launch an MCP server on stdio that lets AI agents scan and estimate
repositories through the scan_repository and estimate_repository tools.

Logs go to stderr so stdout stays reserved for the protocol.`,
	Args: cobra.NoArgs,
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return sharedSetup(rootCtx, cmd, args)
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		return mcp.StartMCPServer(rootCtx, cfg, rt, version)
	},
}
