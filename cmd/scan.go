package cmd

import (
	"os"

	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/outwriter"
	"github.com/spf13/cobra"
)

// scanCmd scans a repository for secrets.
var scanCmd = &cobra.Command{
	Use:   "scan <repository-url>",
	Short: "Scan a repository for secrets, sampling it when it is too large.",
	Long: `Estimate the repository, pick a scan tier, fetch the content and run the
secret analyzer over every file or over a sample of them.

Tiers:
- normal: full clone, every file scanned
- large: shallow clone, prioritized sample
- massive: shallow sparse checkout of the sampled files only

The summary always states how complete the scan was. A timeout or Ctrl-C
produces a partial summary rather than an error.

Examples:
  # Scan a public repository
  reposcan scan https://github.com/acme/widgets

  # Scan a local checkout thoroughly with a progress bar
  reposcan scan ./widgets --level thorough --progress yes

  # Gate a pipeline on findings
  reposcan scan https://github.com/acme/widgets --fail-on-findings --output json

  # Per-file results for analytics
  reposcan scan https://github.com/acme/widgets --output parquet --output-file results.parquet`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		summary, err := core.ExecuteScan(rootCtx, cfg, rt, outwriter.NewOutWriter())
		if err != nil {
			fatal("Cannot scan repository", err)
		}
		if cfg.FailOnFindings && summary.TotalFindings() > 0 {
			teardown()
			os.Exit(exitFindings)
		}
	},
}
