package contract

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetPlainLabel(t *testing.T) {
	tests := []struct {
		status   schema.FileStatus
		expected string
	}{
		{schema.StatusOK, "OK"},
		{schema.StatusSkippedTooLarge, "Skipped"},
		{schema.StatusReadError, "Read Error"},
		{schema.StatusAnalyzerError, "Analyzer Error"},
		{schema.StatusTimeout, "Timeout"},
		{"bogus", "Unknown"},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.expected, GetPlainLabel(tt.status))
		})
	}
}

func TestGetColorLabel(t *testing.T) {
	for _, status := range schema.AllFileStatuses {
		t.Run(string(status), func(t *testing.T) {
			// Should contain the plain label
			assert.Contains(t, GetColorLabel(status), GetPlainLabel(status))
		})
	}
}

func TestGetCompletenessLabel(t *testing.T) {
	assert.Equal(t, "complete", GetCompletenessLabel(schema.Complete, false))
	assert.Contains(t, GetCompletenessLabel(schema.PartialTimeout, true), "partial_timeout")
}

func TestSelectOutputFile(t *testing.T) {
	t.Run("empty path returns stdout", func(t *testing.T) {
		file, err := SelectOutputFile("")
		require.NoError(t, err)
		assert.Equal(t, os.Stdout, file)
	})

	t.Run("valid path creates file", func(t *testing.T) {
		tempFile := filepath.Join(t.TempDir(), "test_output.txt")

		file, err := SelectOutputFile(tempFile)
		require.NoError(t, err)
		assert.NotNil(t, file)
		_ = file.Close()

		_, err = os.Stat(tempFile)
		assert.NoError(t, err)
	})
}

func TestShouldIgnore(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		excludes   []string
		wantIgnore bool
	}{
		{
			name:       "empty excludes",
			path:       "src/main.go",
			excludes:   []string{},
			wantIgnore: false,
		},
		{
			name:       "prefix match",
			path:       "vendor/github.com/lib/file.go",
			excludes:   []string{"vendor/"},
			wantIgnore: true,
		},
		{
			name:       "nested directory match",
			path:       "web/node_modules/react/index.js",
			excludes:   []string{"node_modules/"},
			wantIgnore: true,
		},
		{
			name:       "suffix match",
			path:       "dist/bundle.min.js",
			excludes:   []string{".min.js"},
			wantIgnore: true,
		},
		{
			name:       "glob match basename",
			path:       "src/file.min.js",
			excludes:   []string{"*.min.js"},
			wantIgnore: true,
		},
		{
			name:       "substring match",
			path:       "src/generated/code.go",
			excludes:   []string{"generated"},
			wantIgnore: true,
		},
		{
			name:       "no match",
			path:       "src/core/engine.go",
			excludes:   []string{"vendor/", "node_modules/", ".min.js"},
			wantIgnore: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantIgnore, ShouldIgnore(tt.path, tt.excludes))
		})
	}
}

func TestGetDBFilePaths(t *testing.T) {
	homeDir, err := os.UserHomeDir()
	require.NoError(t, err)

	cachePath := GetCacheDBFilePath()
	assert.Contains(t, cachePath, ".reposcan_cache.db")
	assert.True(t, strings.HasPrefix(cachePath, homeDir))

	historyPath := GetHistoryDBFilePath()
	assert.Contains(t, historyPath, ".reposcan_history.db")
	assert.NotEqual(t, cachePath, historyPath)
}

func TestTruncatePath(t *testing.T) {
	assert.Equal(t, "src/main.go", TruncatePath("src/main.go", 40))
	assert.Equal(t, "...main.go", TruncatePath("a/very/long/src/main.go", 10))
	assert.Equal(t, "abcdef", TruncatePath("abcdef", 3))
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"yes", "TRUE", "1"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	for _, s := range []string{"no", "False", "0"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		assert.False(t, v)
	}
	_, err := ParseBoolString("maybe")
	assert.Error(t, err)
}

func TestScanError(t *testing.T) {
	cause := errors.New("dial tcp: no such host")
	err := fmt.Errorf("running scan: %w", NewScanError(KindRepositoryUnreachable, "clone", cause))

	assert.ErrorIs(t, err, ErrRepositoryUnreachable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrCloneFailure)
	assert.Equal(t, KindRepositoryUnreachable, KindOf(err))
	assert.Contains(t, err.Error(), "clone: repository_unreachable: dial tcp")

	assert.Equal(t, KindInternal, KindOf(cause))
	assert.Equal(t, "listing: cancelled", NewScanError(KindCancelled, "listing", nil).Error())
}
