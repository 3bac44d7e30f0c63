package contract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/huangsam/reposcan/schema"
)

// Color variables for console output.
var (
	CriticalColor = color.New(color.FgRed, color.Bold)     // CriticalColor marks failures and findings.
	HighColor     = color.New(color.FgMagenta, color.Bold) // HighColor marks timeouts.
	ModerateColor = color.New(color.FgYellow)              // ModerateColor marks skipped files and partial scans.
	LowColor      = color.New(color.FgGreen)               // LowColor marks healthy outcomes.
)

// GetPlainLabel returns a plain text label for a file status.
// This is the core logic used for CSV, JSON, and table printing.
func GetPlainLabel(status schema.FileStatus) string {
	switch status {
	case schema.StatusOK:
		return "OK"
	case schema.StatusSkippedTooLarge:
		return "Skipped"
	case schema.StatusReadError:
		return "Read Error"
	case schema.StatusAnalyzerError:
		return "Analyzer Error"
	case schema.StatusTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// GetColorLabel returns a colored status label for console output (table).
func GetColorLabel(status schema.FileStatus) string {
	text := GetPlainLabel(status)

	switch status {
	case schema.StatusReadError, schema.StatusAnalyzerError:
		return CriticalColor.Sprint(text)
	case schema.StatusTimeout:
		return HighColor.Sprint(text)
	case schema.StatusSkippedTooLarge:
		return ModerateColor.Sprint(text)
	case schema.StatusOK:
		return LowColor.Sprint(text)
	default:
		return text
	}
}

// GetCompletenessLabel returns a colored label for a scan completeness flag.
func GetCompletenessLabel(c schema.Completeness, useColors bool) string {
	text := string(c)
	if !useColors {
		return text
	}
	if c == schema.Complete {
		return LowColor.Sprint(text)
	}
	return ModerateColor.Sprint(text)
}

// SelectOutputFile returns the appropriate file handle for output, based on the provided
// file path. It falls back to os.Stdout when no path is given.
func SelectOutputFile(filePath string) (*os.File, error) {
	if filePath == "" {
		return os.Stdout, nil
	}
	return os.Create(filePath)
}

// ShouldIgnore returns true if the given path matches any of the exclude patterns.
// It supports simple glob patterns (using filepath.Match) when the pattern
// contains wildcard characters (*, ?, [ ]). Patterns ending with '/' match a
// directory segment anywhere in the path. Patterns starting with '.' are treated
// as suffix (extension) matches.
func ShouldIgnore(path string, excludes []string) bool {
	for _, ex := range excludes {
		ex = strings.TrimSpace(ex)
		if ex == "" {
			continue
		}

		if strings.ContainsAny(ex, "*?[") {
			pat := strings.ReplaceAll(ex, "**", "*")
			if ok, err := filepath.Match(pat, path); err == nil && ok {
				return true
			}
			// Also try matching against the base filename (e.g. *.min.js)
			if ok, err := filepath.Match(pat, filepath.Base(path)); err == nil && ok {
				return true
			}
			continue
		}

		switch {
		case strings.HasSuffix(ex, "/"):
			if strings.HasPrefix(path, ex) || strings.Contains(path, "/"+ex) {
				return true
			}
		case strings.HasPrefix(ex, "."):
			if strings.HasSuffix(path, ex) {
				return true
			}
		case strings.Contains(path, ex):
			return true
		}
	}
	return false
}

// LogFatal logs an error and exits the program.
func LogFatal(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s: %v\n", CriticalColor.Sprint("Fatal"), msg, err)
	os.Exit(1)
}

// LogWarn logs a warning message to stderr.
func LogWarn(msg string, err error) {
	_, _ = fmt.Fprintf(os.Stderr, "%s %s: %v\n", ModerateColor.Sprint("Warn"), msg, err)
}

// GetCacheDBFilePath returns the path to the SQLite DB file for the estimate cache.
func GetCacheDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".reposcan_cache.db"
	}
	return filepath.Join(homeDir, ".reposcan_cache.db")
}

// GetHistoryDBFilePath returns the path to the SQLite DB file for scan history.
func GetHistoryDBFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".reposcan_history.db"
	}
	return filepath.Join(homeDir, ".reposcan_history.db")
}

// TruncatePath truncates a file path to a maximum width with ellipsis prefix.
// Requires maxWidth > 3 to leave room for the "..." prefix.
func TruncatePath(path string, maxWidth int) string {
	runes := []rune(path)
	if len(runes) > maxWidth && maxWidth > 3 {
		return "..." + string(runes[len(runes)-maxWidth+3:])
	}
	return path
}

// ParseBoolString parses a string value into a boolean.
// Accepts "yes", "no", "true", "false", "1", "0" (case-insensitive).
// Returns an error for invalid values.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "yes", "true", "1":
		return true, nil
	case "no", "false", "0":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean string: %s (expected yes/no/true/false/1/0)", s)
	}
}
