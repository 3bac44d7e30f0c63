package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/iocache"
	"github.com/huangsam/reposcan/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// historyBackend reads and validates the history backend settings.
func historyBackend() (schema.DatabaseBackend, string, error) {
	if err := loadConfigFile(); err != nil {
		return "", "", err
	}
	backend := schema.DatabaseBackend(viper.GetString("history-backend"))
	if backend == "" {
		backend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[backend]; !ok {
		return "", "", fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", backend)
	}
	connStr := viper.GetString("history-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return "", "", err
	}
	return backend, connStr, nil
}

// historySetup loads minimal configuration needed for history operations.
// This is used by commands that need history access without full shared setup.
func historySetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := historyBackend()
	if err != nil {
		return err
	}
	if backend == schema.NoneBackend {
		return errors.New("history is disabled; set --history-backend or REPOSCAN_HISTORY_BACKEND")
	}
	if stores, err = iocache.Open(schema.NoneBackend, "", backend, connStr); err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	cfg.OutputFile = viper.GetString("output-file")
	return nil
}

// historyMigrateSetup validates the backend without opening the store, so
// migrations can run against a fresh or older database.
func historyMigrateSetup(_ *cobra.Command, _ []string) error {
	backend, connStr, err := historyBackend()
	if err != nil {
		return err
	}
	cfg.HistoryBackend = backend
	cfg.HistoryDBConnect = connStr
	return nil
}

// historyCmd focused on scan history management.
//
// Note: History subcommands use minimal initialization instead of the full
// sharedSetup. This avoids repository validation and memory probing.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manage recorded scan runs and exports",
	Long: `Manage the scan history recorded when --history-backend is set.

Each scan stores one run row (repository, tier, completeness, counts) and one
row per sampled file (status, size, findings). Contents and secrets are never
stored.

Supported backends: SQLite, MySQL, PostgreSQL, or None (disabled, default)

Subcommands:
  status  - Show history statistics
  export  - Export runs and file results to Parquet
  clear   - Remove all history
  migrate - Run database schema migrations

Examples:
  # Record scans in SQLite
  REPOSCAN_HISTORY_BACKEND=sqlite reposcan scan https://github.com/acme/widgets

  # Export for analysis in DuckDB
  reposcan history export --history-backend sqlite --output-file scans`,
}

// historyStatusCmd shows history status.
var historyStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display scan history statistics and connection details",
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		status, err := stores.GetHistoryStore().GetStatus()
		if err != nil {
			fatal("Failed to get history status", err)
		}
		iocache.PrintHistoryStatus(os.Stdout, status)
	},
}

// historyClearCmd clears recorded scans.
var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all recorded scan history",
	Long: `Delete all recorded scan runs and per-file results.

For SQLite: Deletes the database file
For MySQL/PostgreSQL: Drops the history tables

WARNING: This action cannot be undone. Consider exporting data first.`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearHistory(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
			fatal("Failed to clear history", err)
		}
		fmt.Println("History cleared successfully.")
	},
}

// historyExportCmd exports history to Parquet files.
var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export scan history to Parquet for BI tools and analytics",
	Long: `Export all recorded scans to two Parquet files named after --output-file:

  <output-file>.scan_runs.parquet
  <output-file>.scan_file_results.parquet

Examples:
  reposcan history export --output-file scans
  duckdb -c "SELECT completeness, count(*) FROM read_parquet('scans.scan_runs.parquet') GROUP BY 1"`,
	PreRunE: historySetup,
	Run: func(_ *cobra.Command, _ []string) {
		err := iocache.ExportHistory(stores.GetHistoryStore(), cfg.OutputFile, os.Stdout)
		if errors.Is(err, iocache.ErrNoHistory) {
			contract.LogWarn("Nothing to export", err)
			return
		}
		if err != nil {
			fatal("Failed to export history", err)
		}
	},
}

// historyMigrateCmd runs database migrations for the history store.
var historyMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database schema migrations (upgrades/downgrades)",
	Long: `Manage database schema versions for the history store.

By default, migrates to the latest version. Use --target-version for specific versions.

Examples:
  # Migrate to latest version (default)
  reposcan history migrate

  # Rollback to initial state
  reposcan history migrate --target-version 0`,
	PreRunE: historyMigrateSetup,
	Run: func(_ *cobra.Command, _ []string) {
		targetVersion := viper.GetInt("target-version")
		if err := iocache.Migrate(cfg.HistoryBackend, cfg.HistoryDBConnect, targetVersion, os.Stdout); err != nil {
			fatal("Failed to run migrations", err)
		}
	},
}
