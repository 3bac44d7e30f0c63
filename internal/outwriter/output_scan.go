package outwriter

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/parquet"
	"github.com/huangsam/reposcan/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// PrintScanResults outputs a scan summary, dispatching based on the output format configured.
// CSV and Parquet carry one row per file; text and JSON carry the summary.
func PrintScanResults(summary *schema.ScanSummary, results []schema.FileScanResult, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, summary)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScanCSV(w, results)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return parquet.WriteFileResults(w, parquet.ConvertScanResults(sortedResults(results)))
		}, "Wrote Parquet")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScanText(w, summary, cfg)
		}, "Wrote table")
	}
}

// writeScanText renders the summary, status counts and findings as tables.
func writeScanText(w io.Writer, s *schema.ScanSummary, cfg *contract.Config) error {
	overview := [][]string{
		{"Repository", s.Repository},
		{"Tier", string(s.Tier)},
		{"Scan level", string(s.Level)},
		{"Completeness", contract.GetCompletenessLabel(s.Completeness, cfg.UseColors)},
		{"Files listed", humanize.Comma(int64(s.TotalFilesListed))},
		{"Files sampled", humanize.Comma(int64(s.SampledFiles))},
		{"Files scanned", humanize.Comma(int64(s.ScannedFiles))},
		{"Coverage", fmt.Sprintf("%.1f%%", s.Coverage*100)},
		{"Batches", fmt.Sprintf("%d/%d", s.BatchesCompleted, s.BatchesDispatched)},
		{"Workers used", strconv.Itoa(s.Performance.WorkersUsed)},
		{"Peak memory", humanize.IBytes(s.Performance.PeakMemoryBytes)},
		{"Elapsed", formatSeconds(s.Performance.ElapsedSeconds)},
	}
	if s.Estimate != nil {
		overview = append(overview, []string{"Estimate", fmt.Sprintf("%s files (%s, %s)",
			humanize.Comma(int64(s.Estimate.FileCount)), s.Estimate.Source, s.Estimate.Confidence)})
	}
	if err := renderTable(w, []string{"Field", "Value"}, overview, tw.AlignLeft); err != nil {
		return err
	}

	counts := make([][]string, 0, len(schema.AllFileStatuses))
	for _, status := range schema.AllFileStatuses {
		counts = append(counts, []string{statusLabel(status, cfg.UseColors), humanize.Comma(int64(s.StatusCounts.Get(status)))})
	}
	if err := renderTable(w, []string{"Status", "Files"}, counts, tw.AlignRight); err != nil {
		return err
	}

	if len(s.Findings) > 0 {
		pathWidth := GetMaxTablePathWidth(cfg, 20)
		rows := make([][]string, 0, len(s.Findings))
		for i, f := range s.Findings {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				contract.TruncatePath(f.Path, pathWidth),
				strconv.Itoa(f.Count),
			})
		}
		if err := renderTable(w, []string{"Rank", "Path", "Findings"}, rows, tw.AlignRight); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintf(w, "Scan %s: %d of %d sampled files scanned, %d findings in %d files\n",
		s.SessionID, s.ScannedFiles, s.SampledFiles, s.TotalFindings(), len(s.Findings))
	return err
}

// writeScanCSV writes one row per file result, ordered by path.
func writeScanCSV(w io.Writer, results []schema.FileScanResult) error {
	header := []string{"path", "ext", "language", "size_bytes", "status", "label", "finding_count", "elapsed_ms", "error"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, r := range sortedResults(results) {
			rec := []string{
				r.Candidate.Path,
				r.Candidate.Ext,
				r.Candidate.Language,
				strconv.FormatInt(r.Candidate.Size, 10),
				string(r.Status),
				contract.GetPlainLabel(r.Status),
				strconv.Itoa(r.Output.FindingCount),
				strconv.FormatInt(r.ElapsedMs, 10),
				r.Err,
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// renderTable writes a bordered table with the given row alignment.
func renderTable(w io.Writer, headers []string, rows [][]string, align tw.Align) error {
	table := tablewriter.NewWriter(w)
	table.Header(headers)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = align
	})
	if err := table.Bulk(rows); err != nil {
		return err
	}
	return table.Render()
}

func statusLabel(status schema.FileStatus, useColors bool) string {
	if useColors {
		return contract.GetColorLabel(status)
	}
	return contract.GetPlainLabel(status)
}

func sortedResults(results []schema.FileScanResult) []schema.FileScanResult {
	sorted := slices.Clone(results)
	slices.SortFunc(sorted, func(a, b schema.FileScanResult) int {
		return cmp.Compare(a.Candidate.Path, b.Candidate.Path)
	})
	return sorted
}

func formatSeconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond).String()
}
