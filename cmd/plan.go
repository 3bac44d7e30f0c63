package cmd

import (
	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/outwriter"
	"github.com/spf13/cobra"
)

// planCmd runs a scan up to sampling and prints what would be scanned.
var planCmd = &cobra.Command{
	Use:   "plan <repository-url>",
	Short: "Dry run: estimate, fetch and sample without analyzing content.",
	Long: `Run the scan pipeline up to sampling and print the sampled file set with
the reason each file was picked (priority, coverage or fill).

Use it to check that a sample budget covers the paths you care about before
paying for a full scan.

Examples:
  reposcan plan https://github.com/acme/monorepo --sample-budget 500
  reposcan plan https://github.com/acme/monorepo --output csv --output-file sample.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecutePlan(rootCtx, cfg, rt, outwriter.NewOutWriter()); err != nil {
			fatal("Cannot plan scan", err)
		}
	},
}
