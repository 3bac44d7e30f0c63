package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd shows the verbose version for diagnostic purposes.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of reposcan.",
	Long: `Display version information including build details.

Shows:
- Release version
- Git commit hash
- Build timestamp
- Go runtime version`,
	Run: func(cmd *cobra.Command, _ []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "reposcan CLI\n")
		_, _ = fmt.Fprintf(out, "  Version: %s\n", version)
		_, _ = fmt.Fprintf(out, "  Commit:  %s\n", commit)
		_, _ = fmt.Fprintf(out, "  Built:   %s\n", date)
		_, _ = fmt.Fprintf(out, "  Runtime: %s\n", runtime.Version())
	},
}
