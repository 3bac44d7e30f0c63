package contract

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessAndValidate(t *testing.T) {
	tests := []struct {
		name        string
		input       *ConfigRawInput
		expectError bool
		setupMock   func(*MockMemorySampler)
		check       func(*testing.T, *Config)
	}{
		{
			name:  "valid minimal config",
			input: &ConfigRawInput{RepoURL: "https://github.com/acme/widgets"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, schema.TextOut, cfg.Output)
				assert.Equal(t, schema.AdaptiveLevel, cfg.Scan.Level)
				assert.Equal(t, schema.NoneBackend, cfg.CacheBackend)
				assert.Equal(t, schema.NoneBackend, cfg.HistoryBackend)
				assert.Equal(t, DefaultEstimateCacheTTL, cfg.EstimateCacheTTL)
				assert.Equal(t, "https://github.com/acme/widgets", cfg.Repository.URL)
				assert.True(t, cfg.UseColors)
				assert.False(t, cfg.Progress)
			},
		},
		{
			name: "human sizes and durations",
			input: &ConfigRawInput{
				RepoURL:        "https://github.com/acme/widgets",
				Level:          "FAST",
				MemoryLimit:    "2GiB",
				MaxFileSize:    "10MB",
				MmapThreshold:  "512KiB",
				Timeout:        "10m",
				PerFileTimeout: "5s",
				DrainGrace:     "1s",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, schema.FastLevel, cfg.Scan.Level)
				assert.Equal(t, uint64(2<<30), cfg.Scan.MemoryLimitBytes)
				assert.Equal(t, int64(10_000_000), cfg.Scan.MaxFileSizeBytes)
				assert.Equal(t, int64(512<<10), cfg.Scan.MmapThresholdBytes)
				assert.Equal(t, 10*time.Minute, cfg.Scan.TotalScanTimeout)
				assert.Equal(t, 5*time.Second, cfg.Scan.PerFileTimeout)
				assert.Equal(t, time.Second, cfg.Scan.DrainGrace)
			},
		},
		{
			name:  "memory limit capped by available memory",
			input: &ConfigRawInput{MemoryLimit: "4GiB"},
			setupMock: func(m *MockMemorySampler) {
				m.On("Available").Return(uint64(1<<30), nil)
			},
			check: func(t *testing.T, cfg *Config) {
				available := float64(1 << 30)
				assert.Equal(t, uint64(available*0.70), cfg.Scan.MemoryLimitBytes)
			},
		},
		{
			name:  "available memory unknown",
			input: &ConfigRawInput{},
			setupMock: func(m *MockMemorySampler) {
				m.On("Available").Return(uint64(0), errors.New("unsupported"))
			},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, schema.DefaultMemoryLimitBytes, cfg.Scan.MemoryLimitBytes)
			},
		},
		{name: "invalid level", input: &ConfigRawInput{Level: "turbo"}, expectError: true},
		{name: "invalid memory limit", input: &ConfigRawInput{MemoryLimit: "lots"}, expectError: true},
		{name: "invalid timeout", input: &ConfigRawInput{Timeout: "forever"}, expectError: true},
		{name: "invalid output", input: &ConfigRawInput{Output: "xml"}, expectError: true},
		{name: "parquet without file", input: &ConfigRawInput{Output: "parquet"}, expectError: true},
		{name: "parquet with file", input: &ConfigRawInput{Output: "parquet", OutputFile: "out.parquet"}},
		{name: "invalid color", input: &ConfigRawInput{Color: "maybe"}, expectError: true},
		{name: "invalid log level", input: &ConfigRawInput{LogLevel: "trace"}, expectError: true},
		{name: "invalid log format", input: &ConfigRawInput{LogFormat: "xml"}, expectError: true},
		{name: "invalid repository", input: &ConfigRawInput{RepoURL: "ftp://example.com/x"}, expectError: true},
		{name: "invalid history backend", input: &ConfigRawInput{HistoryBackend: "oracle"}, expectError: true},
		{name: "mysql without connect", input: &ConfigRawInput{HistoryBackend: "mysql"}, expectError: true},
		{name: "invalid cache ttl", input: &ConfigRawInput{EstimateCacheTTL: "-1h"}, expectError: true},
		{
			name: "same sqlite file for cache and history",
			input: &ConfigRawInput{
				CacheBackend:     "sqlite",
				HistoryBackend:   "sqlite",
				CacheDBConnect:   filepath.Join("tmp", "same.db"),
				HistoryDBConnect: filepath.Join("tmp", "same.db"),
			},
			expectError: true,
		},
		{
			name:        "workers override above max",
			input:       &ConfigRawInput{MaxWorkers: 2, Workers: 4},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sampler := &MockMemorySampler{}
			if tt.setupMock != nil {
				tt.setupMock(sampler)
			} else {
				sampler.On("Available").Return(uint64(0), nil).Maybe()
			}

			cfg := &Config{}
			err := ProcessAndValidate(context.Background(), cfg, sampler, tt.input)
			if tt.expectError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.check != nil {
				tt.check(t, cfg)
			}
			sampler.AssertExpectations(t)
		})
	}
}

func TestValidateDatabaseConnectionString(t *testing.T) {
	assert.NoError(t, ValidateDatabaseConnectionString(schema.SQLiteBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.NoneBackend, ""))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "user:pass@tcp(localhost:3306)/reposcan"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.MySQLBackend, "localhost:3306"))
	assert.NoError(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "host=localhost dbname=reposcan"))
	assert.Error(t, ValidateDatabaseConnectionString(schema.PostgreSQLBackend, "dbname=reposcan"))
}

func TestCloneWithRepository(t *testing.T) {
	cfg := &Config{Output: schema.JSONOut}
	desc, err := schema.NewRepositoryDescriptor("https://github.com/acme/other", "", "")
	require.NoError(t, err)

	clone := cfg.CloneWithRepository(desc)
	assert.Equal(t, desc, clone.Repository)
	assert.Empty(t, cfg.Repository.URL)
	assert.Equal(t, schema.JSONOut, clone.Output)
}

func TestParseByteSize(t *testing.T) {
	n, err := ParseByteSize("1MiB")
	require.NoError(t, err)
	assert.Equal(t, int64(1<<20), n)

	n, err = ParseByteSize(" 2048 ")
	require.NoError(t, err)
	assert.Equal(t, int64(2048), n)

	_, err = ParseByteSize("big")
	assert.Error(t, err)
}
