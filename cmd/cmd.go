// Package cmd defines the command-line interface for reposcan.
package cmd

import (
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/server"
	"github.com/huangsam/reposcan/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(estimateCmd)
	rootCmd.AddCommand(planCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(cacheCmd)
	rootCmd.AddCommand(versionCmd)

	historyCmd.AddCommand(historyStatusCmd)
	historyCmd.AddCommand(historyClearCmd)
	historyCmd.AddCommand(historyExportCmd)
	historyCmd.AddCommand(historyMigrateCmd)

	cacheCmd.AddCommand(cacheStatusCmd)
	cacheCmd.AddCommand(cacheClearCmd)

	// Bind all persistent flags of rootCmd to Viper
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "Path to config file")
	pf.String("branch", "", "Branch to scan (defaults to the remote HEAD)")
	pf.String("token", "", "Credential token for private repositories (prefer REPOSCAN_TOKEN)")
	pf.String("level", string(schema.AdaptiveLevel), "Scan level: fast or standard or thorough or adaptive")
	pf.String("memory-limit", "4GiB", "Memory budget for the scan, capped at 70% of available memory")
	pf.Int("max-workers", 0, "Upper bound on concurrent workers (0 = min(NumCPU, 8))")
	pf.Int("workers", 0, "Fixed worker count, disables governor scaling of workers (0 = auto)")
	pf.Int("sample-budget", 0, "Override the number of sampled files (-1 = all, 0 = tier default)")
	pf.Int("batch-size", 0, "Initial batch size (0 = 200)")
	pf.String("per-file-timeout", "", "Timeout for analyzing a single file, e.g. 30s")
	pf.String("timeout", "", "Total scan timeout, e.g. 1h; a timed out scan reports partial results")
	pf.String("max-file-size", "", "Skip files larger than this, e.g. 50MiB")
	pf.String("mmap-threshold", "", "Memory-map files at or above this size, e.g. 1MiB")
	pf.String("drain-grace", "", "How long in-flight batches may finish after a stop, e.g. 5s")
	pf.String("estimate-timeout", "", "Timeout for the size estimate probe, e.g. 15s")
	pf.String("work-dir", "", "Directory for temporary checkouts (defaults to the system temp dir)")
	pf.String("heuristics", "", "Path to a YAML heuristics table overriding the built-in one")
	pf.String("github-api-url", "", "GitHub API base URL for GitHub Enterprise hosts")
	pf.String("output", string(schema.TextOut), "Output format: text or csv or json or parquet")
	pf.String("output-file", "", "Optional path to write output to")
	pf.Int("width", 0, "Terminal width override (0 = auto-detect)")
	pf.String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	pf.String("progress", "no", "Show a progress bar on stderr (yes/no)")
	pf.String("log-level", contract.DefaultLogLevel, "Log level: debug or info or warn or error")
	pf.String("log-format", contract.DefaultLogFormat, "Log format: console or json")
	pf.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces (empty disables tracing)")
	pf.String("estimate-cache-ttl", "", "How long cached size estimates stay valid, e.g. 24h")
	pf.String("cache-backend", string(schema.SQLiteBackend), "Estimate cache backend: sqlite or mysql or postgresql or none")
	pf.String("cache-db-connect", "", "Database connection string for the estimate cache")
	pf.String("history-backend", string(schema.NoneBackend), "Scan history backend: sqlite or mysql or postgresql or none")
	pf.String("history-db-connect", "", "Database connection string for scan history (must differ from cache-db-connect)")
	if err := viper.BindPFlags(pf); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of scanCmd to Viper
	scanCmd.Flags().Bool("fail-on-findings", false, "Exit with status 3 when any finding is reported")
	if err := viper.BindPFlags(scanCmd.Flags()); err != nil {
		contract.LogFatal("Error binding scan flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("addr", contract.DefaultServeAddr, "Listen address for the HTTP API")
	serveCmd.Flags().Int("max-concurrent-scans", server.DefaultMaxConcurrentScans, "Scans allowed to run at once")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of historyMigrateCmd to Viper
	historyMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(historyMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding history migrate flags", err)
	}
}
