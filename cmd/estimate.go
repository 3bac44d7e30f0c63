package cmd

import (
	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/outwriter"
	"github.com/spf13/cobra"
)

// estimateCmd probes a repository without cloning it.
var estimateCmd = &cobra.Command{
	Use:   "estimate <repository-url>",
	Short: "Estimate repository size and show the scan plan it would get.",
	Long: `Probe the repository for its file count and total size without cloning
it, then show the tier, worker count, batch size and sample budget a scan
would start with.

GitHub repositories are probed through the API. Local paths are walked.
Estimates are cached for --estimate-cache-ttl when a cache backend is set.

Examples:
  reposcan estimate https://github.com/acme/widgets
  reposcan estimate https://github.com/acme/widgets --level fast --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteEstimate(rootCtx, cfg, rt, outwriter.NewOutWriter()); err != nil {
			fatal("Cannot estimate repository", err)
		}
	},
}
