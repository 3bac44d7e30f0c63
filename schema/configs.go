package schema

import (
	"fmt"
	"runtime"
	"time"
)

// Default values for scan configuration.
const (
	DefaultMemoryLimitBytes   uint64 = 4 << 30
	DefaultBatchSize                 = 200
	MinBatchSize                     = 10
	DefaultPerFileTimeout            = 30 * time.Second
	DefaultTotalScanTimeout          = time.Hour
	DefaultMaxFileSizeBytes   int64  = 50 << 20
	DefaultMmapThresholdBytes int64  = 1 << 20
	DefaultDrainGrace                = 5 * time.Second
	DefaultEstimateTimeout           = 15 * time.Second

	// MemoryLimitSystemFraction caps the memory limit against available system memory.
	MemoryLimitSystemFraction = 0.70

	minMemoryLimitBytes uint64 = 64 << 20
	maxWorkersCeiling          = 64
	maxBatchSize               = 10_000
)

// DefaultMaxWorkers is min(CPU count, 8).
var DefaultMaxWorkers = min(runtime.NumCPU(), 8)

// ScanConfiguration is the validated set of knobs for one scan.
// Zero Workers or SampleBudget means "take it from the tier profile".
type ScanConfiguration struct {
	Level              ScanLevel     `json:"scan_level"`
	MemoryLimitBytes   uint64        `json:"memory_limit_bytes"`
	MaxWorkers         int           `json:"max_workers"`
	Workers            int           `json:"workers,omitempty"`
	SampleBudget       int           `json:"sample_budget,omitempty"`
	BatchSize          int           `json:"batch_size"`
	PerFileTimeout     time.Duration `json:"per_file_timeout"`
	TotalScanTimeout   time.Duration `json:"total_scan_timeout"`
	MaxFileSizeBytes   int64         `json:"max_file_size_bytes"`
	MmapThresholdBytes int64         `json:"mmap_threshold_bytes"`
	DrainGrace         time.Duration `json:"drain_grace"`
	EstimateTimeout    time.Duration `json:"estimate_timeout"`
	WorkDir            string        `json:"work_dir,omitempty"` // parent of temporary checkouts, empty = os.TempDir
}

// ScanOption mutates a ScanConfiguration before validation.
type ScanOption func(*ScanConfiguration)

// WithLevel sets the scan level.
func WithLevel(level ScanLevel) ScanOption {
	return func(c *ScanConfiguration) { c.Level = level }
}

// WithMemoryLimit sets the memory limit in bytes.
func WithMemoryLimit(limit uint64) ScanOption {
	return func(c *ScanConfiguration) { c.MemoryLimitBytes = limit }
}

// WithMaxWorkers sets the worker ceiling.
func WithMaxWorkers(n int) ScanOption {
	return func(c *ScanConfiguration) { c.MaxWorkers = n }
}

// WithWorkers overrides the tier worker count.
func WithWorkers(n int) ScanOption {
	return func(c *ScanConfiguration) { c.Workers = n }
}

// WithSampleBudget overrides the tier sample budget.
func WithSampleBudget(n int) ScanOption {
	return func(c *ScanConfiguration) { c.SampleBudget = n }
}

// WithBatchSize sets the initial batch size.
func WithBatchSize(n int) ScanOption {
	return func(c *ScanConfiguration) { c.BatchSize = n }
}

// WithPerFileTimeout sets the per-file deadline.
func WithPerFileTimeout(d time.Duration) ScanOption {
	return func(c *ScanConfiguration) { c.PerFileTimeout = d }
}

// WithTotalScanTimeout sets the deadline for the whole scan.
func WithTotalScanTimeout(d time.Duration) ScanOption {
	return func(c *ScanConfiguration) { c.TotalScanTimeout = d }
}

// WithMaxFileSize sets the per-file size ceiling.
func WithMaxFileSize(n int64) ScanOption {
	return func(c *ScanConfiguration) { c.MaxFileSizeBytes = n }
}

// WithMmapThreshold sets the size above which files are memory-mapped.
func WithMmapThreshold(n int64) ScanOption {
	return func(c *ScanConfiguration) { c.MmapThresholdBytes = n }
}

// WithDrainGrace sets how long in-flight batches get after a stop.
func WithDrainGrace(d time.Duration) ScanOption {
	return func(c *ScanConfiguration) { c.DrainGrace = d }
}

// WithEstimateTimeout sets the deadline for the size probe.
func WithEstimateTimeout(d time.Duration) ScanOption {
	return func(c *ScanConfiguration) { c.EstimateTimeout = d }
}

// WithWorkDir sets the parent directory for temporary checkouts.
func WithWorkDir(dir string) ScanOption {
	return func(c *ScanConfiguration) { c.WorkDir = dir }
}

// DefaultScanConfiguration returns the defaults before any option is applied.
func DefaultScanConfiguration() ScanConfiguration {
	return ScanConfiguration{
		Level:              AdaptiveLevel,
		MemoryLimitBytes:   DefaultMemoryLimitBytes,
		MaxWorkers:         DefaultMaxWorkers,
		BatchSize:          DefaultBatchSize,
		PerFileTimeout:     DefaultPerFileTimeout,
		TotalScanTimeout:   DefaultTotalScanTimeout,
		MaxFileSizeBytes:   DefaultMaxFileSizeBytes,
		MmapThresholdBytes: DefaultMmapThresholdBytes,
		DrainGrace:         DefaultDrainGrace,
		EstimateTimeout:    DefaultEstimateTimeout,
	}
}

// NewScanConfiguration applies opts over the defaults and validates the result.
func NewScanConfiguration(opts ...ScanOption) (ScanConfiguration, error) {
	cfg := DefaultScanConfiguration()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return ScanConfiguration{}, err
	}
	return cfg, nil
}

// Validate checks every field against its allowed range.
func (c ScanConfiguration) Validate() error {
	if _, ok := ValidScanLevels[c.Level]; !ok {
		return fmt.Errorf("invalid scan level '%s'. must be fast, standard, thorough, adaptive", c.Level)
	}
	if c.MemoryLimitBytes < minMemoryLimitBytes {
		return fmt.Errorf("memory limit must be at least %d bytes (received %d)", minMemoryLimitBytes, c.MemoryLimitBytes)
	}
	if c.MaxWorkers < 1 || c.MaxWorkers > maxWorkersCeiling {
		return fmt.Errorf("max workers must be between 1 and %d (received %d)", maxWorkersCeiling, c.MaxWorkers)
	}
	if c.Workers < 0 || c.Workers > c.MaxWorkers {
		return fmt.Errorf("workers must be between 0 and max workers %d (received %d)", c.MaxWorkers, c.Workers)
	}
	if c.SampleBudget < 0 && c.SampleBudget != UnboundedBudget {
		return fmt.Errorf("sample budget must be positive, 0 for the tier default, or %d for unbounded (received %d)", UnboundedBudget, c.SampleBudget)
	}
	if c.BatchSize < 1 || c.BatchSize > maxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d (received %d)", maxBatchSize, c.BatchSize)
	}
	if c.PerFileTimeout <= 0 {
		return fmt.Errorf("per-file timeout must be positive (received %s)", c.PerFileTimeout)
	}
	if c.TotalScanTimeout <= 0 {
		return fmt.Errorf("total scan timeout must be positive (received %s)", c.TotalScanTimeout)
	}
	if c.MaxFileSizeBytes <= 0 {
		return fmt.Errorf("max file size must be positive (received %d)", c.MaxFileSizeBytes)
	}
	if c.MmapThresholdBytes <= 0 {
		return fmt.Errorf("mmap threshold must be positive (received %d)", c.MmapThresholdBytes)
	}
	if c.DrainGrace < 0 {
		return fmt.Errorf("drain grace cannot be negative (received %s)", c.DrainGrace)
	}
	if c.EstimateTimeout <= 0 {
		return fmt.Errorf("estimate timeout must be positive (received %s)", c.EstimateTimeout)
	}
	return nil
}

// CapMemoryLimit bounds requested by MemoryLimitSystemFraction of available.
// An unknown (zero) available amount leaves requested untouched.
func CapMemoryLimit(requested, available uint64) uint64 {
	if available == 0 {
		return requested
	}
	ceiling := uint64(float64(available) * MemoryLimitSystemFraction)
	return min(requested, ceiling)
}
