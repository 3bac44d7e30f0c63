package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/huangsam/reposcan/core"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/iocache"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/internal/sysmem"
	"github.com/huangsam/reposcan/internal/telemetry"
	"github.com/huangsam/reposcan/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// All linker flags will be set by goreleaser infra at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitFindings is the exit code of a scan that found secrets with --fail-on-findings.
const exitFindings = 3

// rootCtx is the root context for all operations. Execute replaces it with a
// context cancelled on SIGINT or SIGTERM.
var rootCtx = context.Background()

// cfg will hold the validated, final configuration.
var cfg = &contract.Config{}

// input holds the raw, unvalidated configuration from all sources (file, env, flags).
// Viper will unmarshal into this struct.
var input = &contract.ConfigRawInput{}

// Process-wide collaborators created by sharedSetup.
var (
	stores  *iocache.StoreManager
	rt      *core.Runtime
	tel     *telemetry.Telemetry
	logger  = logging.NewNop()
	stopped bool
)

// rootCmd is the command-line entrypoint for all other commands.
var rootCmd = &cobra.Command{
	Use:   "reposcan",
	Short: "Scan repositories of any size for secrets within a memory budget.",
	Long: `Reposcan estimates a repository before touching it, picks a scan tier,
and samples huge repositories instead of giving up on them.`,
	Version:            version,
	SilenceErrors:      true,
	SilenceUsage:       true,
	DisableSuggestions: true,
	Run: func(cmd *cobra.Command, _ []string) {
		_ = cmd.Help()
	},
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if configFile := viper.GetString("config"); configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(".reposcan")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME")
	}

	viper.SetEnvPrefix("REPOSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("token", "REPOSCAN_TOKEN", "GITHUB_TOKEN")

	viper.SetDefault("level", schema.AdaptiveLevel)
	viper.SetDefault("output", schema.TextOut)
	viper.SetDefault("color", "yes")
	viper.SetDefault("progress", "no")
	viper.SetDefault("log-level", contract.DefaultLogLevel)
	viper.SetDefault("log-format", contract.DefaultLogFormat)
	viper.SetDefault("addr", contract.DefaultServeAddr)
	viper.SetDefault("cache-backend", schema.SQLiteBackend)
	viper.SetDefault("cache-db-connect", "")
	viper.SetDefault("history-backend", schema.NoneBackend)
	viper.SetDefault("history-db-connect", "")
}

// sharedSetup unmarshals config, runs validation and builds the runtime.
func sharedSetup(ctx context.Context, _ *cobra.Command, args []string) error {
	// 1. Read config file. This merges defaults, file, env, and flags.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	// 2. Unmarshal all resolved values from Viper into our raw input struct.
	if err := viper.Unmarshal(input); err != nil {
		return fmt.Errorf("unable to unmarshal config: %w", err)
	}

	// 3. Handle positional arguments (which Viper doesn't do).
	if len(args) == 1 {
		input.RepoURL = args[0]
	}

	// 4. Run all validation and complex parsing.
	sampler, err := sysmem.NewSampler()
	if err != nil {
		return err
	}
	if err := contract.ProcessAndValidate(ctx, cfg, sampler, input); err != nil {
		return err
	}

	// 5. Observability
	logCfg, err := logging.NewConfig(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	if logger, err = logging.NewLogger(logCfg); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	telCfg := telemetry.NewDefaultConfig()
	telCfg.Endpoint = cfg.OTLPEndpoint
	telCfg.ServiceVersion = version
	if tel, err = telemetry.New(ctx, telCfg); err != nil {
		return err
	}

	// 6. Initialize persistence layer with validated config
	if stores, err = iocache.OpenFromConfig(cfg); err != nil {
		return fmt.Errorf("failed to initialize persistence: %w", err)
	}

	rt, err = core.NewRuntime(cfg, stores,
		core.WithRuntimeLogger(logger),
		core.WithRuntimeTracer(tel.Tracer("reposcan")),
		core.WithRuntimeSampler(sampler),
	)
	return err
}

// sharedSetupWrapper wraps sharedSetup to provide context for Cobra's PreRunE.
func sharedSetupWrapper(cmd *cobra.Command, args []string) error {
	return sharedSetup(rootCtx, cmd, args)
}

// loadConfigFile handles config file loading logic common to all setup functions.
func loadConfigFile() error {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

// teardown flushes traces and closes the stores. It runs once.
func teardown() {
	if stopped {
		return
	}
	stopped = true
	if tel != nil {
		if err := tel.Shutdown(context.Background()); err != nil {
			contract.LogWarn("Failed to flush traces", err)
		}
	}
	if stores != nil {
		if err := stores.Close(); err != nil {
			contract.LogWarn("Failed to close stores", err)
		}
	}
	_ = logger.Sync()
}

// fatal tears down and exits with status 1.
func fatal(msg string, err error) {
	teardown()
	contract.LogFatal(msg, err)
}

// Execute runs the root command with signal handling on the root context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	rootCtx = ctx
	defer teardown()

	return rootCmd.Execute()
}
