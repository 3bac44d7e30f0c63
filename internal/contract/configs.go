package contract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/reposcan/schema"
)

// Default values for configuration.
const (
	DefaultEstimateCacheTTL = 24 * time.Hour
	DefaultServeAddr        = "127.0.0.1:8080"
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "console"
)

// Config holds the runtime configuration for a scan.
// This struct remains the "final, validated" config.
type Config struct {
	Repository schema.RepositoryDescriptor
	Scan       schema.ScanConfiguration

	Output         schema.OutputMode
	OutputFile     string
	Width          int // Terminal width override (0 = auto-detect)
	UseColors      bool
	Progress       bool
	FailOnFindings bool

	HeuristicsFile string
	GitHubAPIURL   string

	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
	ServeAddr    string

	EstimateCacheTTL time.Duration
	CacheBackend     schema.DatabaseBackend
	CacheDBConnect   string // Please use env var as this is plaintext

	HistoryBackend   schema.DatabaseBackend
	HistoryDBConnect string // Please use env var as this is plaintext
}

// ConfigRawInput holds the raw inputs from all sources (flags, env, config file).
// Viper unmarshals into this struct.
type ConfigRawInput struct {
	// This is set manually from positional args, so no tag
	RepoURL string

	// --- Repository ---
	Branch string `mapstructure:"branch"`
	Token  string `mapstructure:"token"`

	// --- Scan knobs ---
	Level           string `mapstructure:"level"`
	MemoryLimit     string `mapstructure:"memory-limit"`
	MaxWorkers      int    `mapstructure:"max-workers"`
	Workers         int    `mapstructure:"workers"`
	SampleBudget    int    `mapstructure:"sample-budget"`
	BatchSize       int    `mapstructure:"batch-size"`
	PerFileTimeout  string `mapstructure:"per-file-timeout"`
	Timeout         string `mapstructure:"timeout"`
	MaxFileSize     string `mapstructure:"max-file-size"`
	MmapThreshold   string `mapstructure:"mmap-threshold"`
	DrainGrace      string `mapstructure:"drain-grace"`
	EstimateTimeout string `mapstructure:"estimate-timeout"`
	WorkDir         string `mapstructure:"work-dir"`
	Heuristics      string `mapstructure:"heuristics"`
	GitHubAPIURL    string `mapstructure:"github-api-url"`

	// --- Output ---
	Output         string `mapstructure:"output"`
	OutputFile     string `mapstructure:"output-file"`
	Width          int    `mapstructure:"width"`
	Color          string `mapstructure:"color"`
	Progress       string `mapstructure:"progress"`
	FailOnFindings bool   `mapstructure:"fail-on-findings"`

	// --- Observability ---
	LogLevel     string `mapstructure:"log-level"`
	LogFormat    string `mapstructure:"log-format"`
	OTLPEndpoint string `mapstructure:"otlp-endpoint"`
	Addr         string `mapstructure:"addr"`

	// --- Persistence ---
	EstimateCacheTTL string `mapstructure:"estimate-cache-ttl"`
	CacheBackend     string `mapstructure:"cache-backend"`
	CacheDBConnect   string `mapstructure:"cache-db-connect"`
	HistoryBackend   string `mapstructure:"history-backend"`
	HistoryDBConnect string `mapstructure:"history-db-connect"`
}

// Clone returns a copy of the Config struct.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// CloneWithRepository creates a copy of the Config that targets another repository.
func (c *Config) CloneWithRepository(desc schema.RepositoryDescriptor) *Config {
	clone := c.Clone()
	clone.Repository = desc
	return clone
}

// ScanOverrides are the per-request knobs accepted by the mcp and serve surfaces.
type ScanOverrides struct {
	RepositoryURL string `json:"repository_url"`
	Branch        string `json:"branch,omitempty"`
	Token         string `json:"token,omitempty"`
	ScanLevel     string `json:"scan_level,omitempty"`
	SampleBudget  int    `json:"sample_budget,omitempty"`
	Timeout       string `json:"timeout,omitempty"`
}

// CloneWithOverrides returns a copy of the Config that targets o.RepositoryURL
// with the scan knobs of o applied and validated. An empty token keeps the
// configured one.
func (c *Config) CloneWithOverrides(o ScanOverrides) (*Config, error) {
	token := o.Token
	if token == "" {
		token = c.Repository.Token
	}
	desc, err := schema.NewRepositoryDescriptor(o.RepositoryURL, o.Branch, token)
	if err != nil {
		return nil, err
	}
	clone := c.CloneWithRepository(desc)

	if o.ScanLevel != "" {
		level := schema.ScanLevel(strings.ToLower(o.ScanLevel))
		if _, ok := schema.ValidScanLevels[level]; !ok {
			return nil, fmt.Errorf("invalid scan_level %q", o.ScanLevel)
		}
		clone.Scan.Level = level
	}
	if o.SampleBudget != 0 {
		clone.Scan.SampleBudget = o.SampleBudget
	}
	if o.Timeout != "" {
		d, err := time.ParseDuration(o.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout: %w", err)
		}
		clone.Scan.TotalScanTimeout = d
	}
	if err := clone.Scan.Validate(); err != nil {
		return nil, err
	}
	return clone, nil
}

// ProcessAndValidate performs all complex parsing and validation on the raw inputs
// and updates the final Config struct.
func ProcessAndValidate(ctx context.Context, cfg *Config, sampler MemorySampler, input *ConfigRawInput) error {
	if err := validateSimpleInputs(cfg, input); err != nil {
		return err
	}
	if err := validateBackendConfigs(cfg, input); err != nil {
		return err
	}
	if err := processScanConfiguration(ctx, cfg, sampler, input); err != nil {
		return err
	}
	if err := resolveRepository(cfg, input); err != nil {
		return err
	}
	return nil
}

// ValidateDatabaseConnectionString validates the format of database connection strings
// for MySQL and PostgreSQL backends.
func ValidateDatabaseConnectionString(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend, schema.NoneBackend:
		return nil
	case schema.MySQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "@tcp(") {
			return fmt.Errorf("MySQL connection string must contain '@tcp(' for host:port specification")
		}
		if !strings.Contains(connStr, "/") {
			return fmt.Errorf("MySQL connection string must contain '/' followed by database name")
		}
	case schema.PostgreSQLBackend:
		if connStr == "" {
			return fmt.Errorf("a connection string is required when using %s backend", backend)
		}
		if !strings.Contains(connStr, "host=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'host=' parameter")
		}
		if !strings.Contains(connStr, "dbname=") {
			return fmt.Errorf("PostgreSQL connection string must contain 'dbname=' parameter")
		}
	}
	return nil
}

// validateBackendConfigs validates estimate cache and history backend configurations.
func validateBackendConfigs(cfg *Config, input *ConfigRawInput) error {
	// --- Cache Backend Validation ---
	cfg.CacheBackend = schema.DatabaseBackend(strings.ToLower(input.CacheBackend))
	if cfg.CacheBackend == "" {
		cfg.CacheBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.CacheBackend]; !ok {
		return fmt.Errorf("invalid cache backend '%s'. must be sqlite, mysql, postgresql, none", input.CacheBackend)
	}
	cfg.CacheDBConnect = input.CacheDBConnect
	if err := ValidateDatabaseConnectionString(cfg.CacheBackend, cfg.CacheDBConnect); err != nil {
		return err
	}

	// --- History Backend Validation ---
	cfg.HistoryBackend = schema.DatabaseBackend(strings.ToLower(input.HistoryBackend))
	if cfg.HistoryBackend == "" {
		cfg.HistoryBackend = schema.NoneBackend
	}
	if _, ok := schema.ValidDatabaseBackends[cfg.HistoryBackend]; !ok {
		return fmt.Errorf("invalid history backend '%s'. must be sqlite, mysql, postgresql, none", input.HistoryBackend)
	}
	cfg.HistoryDBConnect = input.HistoryDBConnect
	if err := ValidateDatabaseConnectionString(cfg.HistoryBackend, cfg.HistoryDBConnect); err != nil {
		return err
	}

	// SQLite files must differ, including the default paths
	if cfg.CacheBackend == schema.SQLiteBackend && cfg.HistoryBackend == schema.SQLiteBackend {
		cachePath := cfg.CacheDBConnect
		if cachePath == "" {
			cachePath = GetCacheDBFilePath()
		}
		historyPath := cfg.HistoryDBConnect
		if historyPath == "" {
			historyPath = GetHistoryDBFilePath()
		}
		if cachePath == historyPath {
			return fmt.Errorf("cache and history storage must use different SQLite database files. Both resolve to %q", cachePath)
		}
	}

	cfg.EstimateCacheTTL = DefaultEstimateCacheTTL
	if input.EstimateCacheTTL != "" {
		ttl, err := time.ParseDuration(input.EstimateCacheTTL)
		if err != nil {
			return fmt.Errorf("invalid --estimate-cache-ttl value: %w", err)
		}
		if ttl <= 0 {
			return fmt.Errorf("estimate cache ttl must be positive (received %s)", ttl)
		}
		cfg.EstimateCacheTTL = ttl
	}
	return nil
}

// validateSimpleInputs processes and validates output and observability fields.
func validateSimpleInputs(cfg *Config, input *ConfigRawInput) error {
	// --- 0. Transfer simple non-validated fields from input -> cfg ---
	cfg.OutputFile = input.OutputFile
	cfg.Width = input.Width
	cfg.FailOnFindings = input.FailOnFindings
	cfg.HeuristicsFile = input.Heuristics
	cfg.GitHubAPIURL = strings.TrimSpace(input.GitHubAPIURL)
	cfg.OTLPEndpoint = strings.TrimSpace(input.OTLPEndpoint)

	cfg.ServeAddr = input.Addr
	if cfg.ServeAddr == "" {
		cfg.ServeAddr = DefaultServeAddr
	}

	colors, err := ParseBoolString(orDefault(input.Color, "yes"))
	if err != nil {
		return fmt.Errorf("invalid --color value: %w", err)
	}
	cfg.UseColors = colors

	progress, err := ParseBoolString(orDefault(input.Progress, "no"))
	if err != nil {
		return fmt.Errorf("invalid --progress value: %w", err)
	}
	cfg.Progress = progress

	// --- 1. Output Validation ---
	cfg.Output = schema.OutputMode(strings.ToLower(orDefault(input.Output, string(schema.TextOut))))
	if _, ok := schema.ValidOutputModes[cfg.Output]; !ok {
		return fmt.Errorf("invalid output format '%s'. must be text, csv, json, parquet", input.Output)
	}
	if cfg.Output == schema.ParquetOut && cfg.OutputFile == "" {
		return fmt.Errorf("parquet output requires --output-file")
	}

	// --- 2. Logging Validation ---
	cfg.LogLevel = strings.ToLower(orDefault(input.LogLevel, DefaultLogLevel))
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level '%s'. must be debug, info, warn, error", input.LogLevel)
	}
	cfg.LogFormat = strings.ToLower(orDefault(input.LogFormat, DefaultLogFormat))
	if cfg.LogFormat != "console" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log format '%s'. must be console, json", input.LogFormat)
	}

	return nil
}

// processScanConfiguration converts the raw scan knobs into a validated ScanConfiguration.
// The memory limit is capped by a share of the memory available on the host.
func processScanConfiguration(_ context.Context, cfg *Config, sampler MemorySampler, input *ConfigRawInput) error {
	var opts []schema.ScanOption

	if input.Level != "" {
		opts = append(opts, schema.WithLevel(schema.ScanLevel(strings.ToLower(input.Level))))
	}

	memoryLimit := schema.DefaultMemoryLimitBytes
	if input.MemoryLimit != "" {
		parsed, err := ParseByteSize(input.MemoryLimit)
		if err != nil {
			return fmt.Errorf("invalid --memory-limit value: %w", err)
		}
		memoryLimit = uint64(parsed)
	}
	if sampler != nil {
		if available, err := sampler.Available(); err == nil {
			memoryLimit = schema.CapMemoryLimit(memoryLimit, available)
		}
	}
	opts = append(opts, schema.WithMemoryLimit(memoryLimit))

	if input.MaxWorkers != 0 {
		opts = append(opts, schema.WithMaxWorkers(input.MaxWorkers))
	}
	if input.Workers != 0 {
		opts = append(opts, schema.WithWorkers(input.Workers))
	}
	if input.SampleBudget != 0 {
		opts = append(opts, schema.WithSampleBudget(input.SampleBudget))
	}
	if input.BatchSize != 0 {
		opts = append(opts, schema.WithBatchSize(input.BatchSize))
	}

	durations := []struct {
		flag string
		raw  string
		opt  func(time.Duration) schema.ScanOption
	}{
		{"per-file-timeout", input.PerFileTimeout, schema.WithPerFileTimeout},
		{"timeout", input.Timeout, schema.WithTotalScanTimeout},
		{"drain-grace", input.DrainGrace, schema.WithDrainGrace},
		{"estimate-timeout", input.EstimateTimeout, schema.WithEstimateTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid --%s value: %w", d.flag, err)
		}
		opts = append(opts, d.opt(parsed))
	}

	sizes := []struct {
		flag string
		raw  string
		opt  func(int64) schema.ScanOption
	}{
		{"max-file-size", input.MaxFileSize, schema.WithMaxFileSize},
		{"mmap-threshold", input.MmapThreshold, schema.WithMmapThreshold},
	}
	for _, s := range sizes {
		if s.raw == "" {
			continue
		}
		parsed, err := ParseByteSize(s.raw)
		if err != nil {
			return fmt.Errorf("invalid --%s value: %w", s.flag, err)
		}
		opts = append(opts, s.opt(parsed))
	}

	if input.WorkDir != "" {
		opts = append(opts, schema.WithWorkDir(input.WorkDir))
	}

	scanCfg, err := schema.NewScanConfiguration(opts...)
	if err != nil {
		return err
	}
	cfg.Scan = scanCfg
	return nil
}

// resolveRepository validates the positional repository argument when one was given.
func resolveRepository(cfg *Config, input *ConfigRawInput) error {
	if input.RepoURL == "" {
		return nil
	}
	desc, err := schema.NewRepositoryDescriptor(input.RepoURL, input.Branch, input.Token)
	if err != nil {
		return err
	}
	cfg.Repository = desc
	return nil
}

// ParseByteSize parses human sizes such as "4GiB", "50MB" or "1048576".
func ParseByteSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(strings.TrimSpace(s))
	if err != nil {
		return 0, err
	}
	if n > 1<<62 {
		return 0, fmt.Errorf("size %q is too large", s)
	}
	return int64(n), nil
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
