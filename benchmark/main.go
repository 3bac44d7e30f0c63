// Package main provides a performance benchmarking tool for the reposcan CLI.
// It scans each test repository at every scan level several times, treating the
// first successful run as cold and averaging the rest as warm, and records
// elapsed time, peak memory and completeness in a CSV file.
//
// Prerequisites:
// - reposcan binary installed and available in PATH
// - Test repositories cloned to the specified base directory
// - Git repositories: csv-parser, fd, git, kubernetes
//
// Usage: go run benchmark/main.go [repo-base-dir]
//
//	repo-base-dir: Directory containing test repositories
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/reposcan/schema"
)

// BenchmarkResult holds the averaged figures of one repository and scan level.
type BenchmarkResult struct {
	Repository   string
	Level        schema.ScanLevel
	ColdTime     string
	WarmTime     string
	PeakMemory   uint64
	Scanned      int
	Listed       int
	Completeness schema.Completeness
}

// BenchmarkConfig holds configuration for the benchmark run.
type BenchmarkConfig struct {
	RepoBase    string
	Timeout     time.Duration
	MemoryLimit string
	Runs        int
	TestRepos   []string
	Levels      []schema.ScanLevel
}

func main() {
	if len(os.Args) != 2 {
		fmt.Printf("Usage: %s [repo-base-dir]\n", os.Args[0])
		os.Exit(1)
	}

	config := BenchmarkConfig{
		RepoBase:    os.Args[1],
		Timeout:     10 * time.Minute,
		MemoryLimit: "2GiB",
		Runs:        3,
		TestRepos:   []string{"csv-parser", "fd", "git", "kubernetes"},
		Levels:      []schema.ScanLevel{schema.FastLevel, schema.StandardLevel, schema.ThoroughLevel, schema.AdaptiveLevel},
	}

	if err := checkPrerequisites(config); err != nil {
		fmt.Printf("Prerequisites check failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Clearing estimate cache...\n")
	if output, err := exec.Command("reposcan", "cache", "clear").CombinedOutput(); err != nil {
		fmt.Printf("Warning: failed to clear cache: %v\nOutput: %s\n", err, string(output))
	}

	results := runBenchmarks(config)

	if err := saveResults(results); err != nil {
		fmt.Printf("Failed to save results: %v\n", err)
		os.Exit(1)
	}
	printSummary(results)
}

// checkPrerequisites verifies that the reposcan binary and test repositories exist
func checkPrerequisites(config BenchmarkConfig) error {
	if _, err := exec.LookPath("reposcan"); err != nil {
		return fmt.Errorf("reposcan binary not found in PATH")
	}
	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		if _, err := os.Stat(repoPath); os.IsNotExist(err) {
			return fmt.Errorf("repository %s not found at %s", repo, repoPath)
		}
	}
	return nil
}

// runBenchmarks executes every scan level across configured repositories
func runBenchmarks(config BenchmarkConfig) []BenchmarkResult {
	var results []BenchmarkResult

	fmt.Printf("Starting benchmark: %d repos, %d levels, %v timeout, %s memory, %d runs\n",
		len(config.TestRepos), len(config.Levels), config.Timeout, config.MemoryLimit, config.Runs)

	for _, repo := range config.TestRepos {
		repoPath := filepath.Join(config.RepoBase, repo)
		for _, level := range config.Levels {
			fmt.Printf("Scanning %s at level %s\n", repo, level)
			results = append(results, runBenchmarkSuite(config, repo, repoPath, level))
		}
	}
	return results
}

// runBenchmarkSuite scans repoPath config.Runs times and averages the warm runs
func runBenchmarkSuite(config BenchmarkConfig, repo, repoPath string, level schema.ScanLevel) BenchmarkResult {
	result := BenchmarkResult{Repository: repo, Level: level, ColdTime: "TIMEOUT", WarmTime: "TIMEOUT"}

	var times []float64
	for run := 1; run <= config.Runs; run++ {
		start := time.Now()
		summary, err := runScan(config, repoPath, level)
		if err != nil {
			fmt.Printf("  run %d failed: %v\n", run, err)
			continue
		}
		times = append(times, time.Since(start).Seconds())
		result.PeakMemory = max(result.PeakMemory, summary.Performance.PeakMemoryBytes)
		result.Scanned = summary.ScannedFiles
		result.Listed = summary.TotalFilesListed
		result.Completeness = summary.Completeness
	}

	if len(times) > 0 {
		result.ColdTime = fmt.Sprintf("%.3fs", times[0])
	}
	if len(times) > 1 {
		var sum float64
		for _, t := range times[1:] {
			sum += t
		}
		result.WarmTime = fmt.Sprintf("%.3fs", sum/float64(len(times)-1))
	}

	fmt.Printf("  Cold: %s, Warm: %s, Peak: %s, Scanned: %d/%d (%s)\n",
		result.ColdTime, result.WarmTime, humanize.IBytes(result.PeakMemory), result.Scanned, result.Listed, result.Completeness)
	return result
}

// runScan runs one scan with JSON output and decodes the summary
func runScan(config BenchmarkConfig, repoPath string, level schema.ScanLevel) (*schema.ScanSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "reposcan", "scan", repoPath,
		"--level", string(level),
		"--memory-limit", config.MemoryLimit,
		"--output", "json",
		"--log-level", "warn",
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	var summary schema.ScanSummary
	if err := json.Unmarshal(output, &summary); err != nil {
		return nil, fmt.Errorf("unexpected output: %w", err)
	}
	return &summary, nil
}

// saveResults writes benchmark results to a timestamped CSV file
func saveResults(results []BenchmarkResult) error {
	timestamp := time.Now().Format("20060102_150405")
	filename := fmt.Sprintf("/tmp/reposcan_benchmark_%s.csv", timestamp)

	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil {
			fmt.Printf("Warning: failed to close file %s: %v\n", filename, closeErr)
		}
	}()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"repo", "level", "cold_time", "warm_avg", "peak_memory_bytes", "scanned", "listed", "completeness"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, r := range results {
		record := []string{
			r.Repository,
			string(r.Level),
			r.ColdTime,
			r.WarmTime,
			strconv.FormatUint(r.PeakMemory, 10),
			strconv.Itoa(r.Scanned),
			strconv.Itoa(r.Listed),
			string(r.Completeness),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	fmt.Printf("Results saved to %s\n", filename)
	return nil
}

// printSummary displays the final benchmark results grouped by level
func printSummary(results []BenchmarkResult) {
	fmt.Printf("Benchmark complete\n")
	for _, level := range []schema.ScanLevel{schema.FastLevel, schema.StandardLevel, schema.ThoroughLevel, schema.AdaptiveLevel} {
		fmt.Printf("Level %s:\n", level)
		for _, r := range results {
			if r.Level == level {
				fmt.Printf("  %-12s: Cold: %s, Warm: %s, Peak: %s\n", r.Repository, r.ColdTime, r.WarmTime, humanize.IBytes(r.PeakMemory))
			}
		}
	}
}
