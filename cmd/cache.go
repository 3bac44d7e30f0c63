package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/iocache"
	"github.com/huangsam/reposcan/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// cacheSetup loads minimal configuration needed for cache operations.
// This is used by commands that need cache access without full shared setup.
func cacheSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}

	backend := schema.DatabaseBackend(viper.GetString("cache-backend"))
	connStr := viper.GetString("cache-db-connect")
	if err := contract.ValidateDatabaseConnectionString(backend, connStr); err != nil {
		return err
	}

	ttl := contract.DefaultEstimateCacheTTL
	if raw := viper.GetString("estimate-cache-ttl"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid --estimate-cache-ttl value: %w", err)
		}
		ttl = parsed
	}

	cfg.CacheBackend = backend
	cfg.CacheDBConnect = connStr
	cfg.EstimateCacheTTL = ttl
	return nil
}

// cacheSetupWrapper wraps cacheSetup to provide PreRunE for cache commands.
func cacheSetupWrapper(_ *cobra.Command, _ []string) error {
	return cacheSetup()
}

// cacheCmd focused on estimate cache management.
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the size estimate cache",
	Long: `Manage the cache of repository size estimates.

Estimates are keyed by repository and branch and stay valid for
--estimate-cache-ttl (default 24h), so repeated scans skip the API probe.

Supported backends: SQLite (default), MySQL, PostgreSQL, or None

Examples:
  reposcan cache status
  reposcan cache clear`,
}

// cacheClearCmd clears the cache.
var cacheClearCmd = &cobra.Command{
	Use:     "clear",
	Short:   "Remove all cached size estimates",
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := iocache.ClearCache(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
			fatal("Failed to clear cache", err)
		}
		fmt.Println("Cache cleared successfully.")
	},
}

// cacheStatusCmd shows cache status.
var cacheStatusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Display cache statistics and connection details",
	PreRunE: cacheSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if cfg.CacheBackend == schema.NoneBackend {
			iocache.PrintCacheStatus(os.Stdout, schema.CacheStatus{Backend: string(cfg.CacheBackend)})
			return
		}
		cache, err := iocache.NewEstimateCache(cfg.CacheBackend, cfg.CacheDBConnect)
		if err != nil {
			fatal("Failed to open cache", err)
		}
		defer func() { _ = cache.Close() }()

		status, err := cache.GetStatus(cfg.EstimateCacheTTL)
		if err != nil {
			fatal("Failed to get cache status", err)
		}
		iocache.PrintCacheStatus(os.Stdout, status)
	},
}
