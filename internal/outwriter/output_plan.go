package outwriter

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"

	"github.com/olekukonko/tablewriter/tw"
)

// ErrParquetUnsupported is returned for outputs that have no per-file rows.
var ErrParquetUnsupported = errors.New("parquet output is only available for scan results")

// PrintEstimateResults outputs a size estimate and the plan it resolves to.
func PrintEstimateResults(res *schema.EstimateResult, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, res)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeEstimateCSV(w, res)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return ErrParquetUnsupported
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return renderTable(w, []string{"Field", "Value"}, estimateRows(res.Repository, res.Estimate, res.Plan), tw.AlignLeft)
		}, "Wrote table")
	}
}

// PrintPlanResults outputs a dry run: the resolved plan and the sampled set in order.
func PrintPlanResults(res *schema.PlanResult, repository string, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, res)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSampleCSV(w, res.Sample)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return ErrParquetUnsupported
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePlanText(w, res, repository, cfg)
		}, "Wrote table")
	}
}

func estimateRows(repository string, est schema.SizeEstimate, plan schema.ScanPlan) [][]string {
	budget := humanize.Comma(int64(plan.SampleBudget))
	if plan.Unbounded() {
		budget = "all"
	}
	return [][]string{
		{"Repository", repository},
		{"Estimated files", humanize.Comma(int64(est.FileCount))},
		{"Estimated size", humanize.IBytes(uint64(max(est.TotalBytes, 0)))},
		{"Confidence", string(est.Confidence)},
		{"Source", est.Source},
		{"Tier", string(plan.Tier)},
		{"Scan level", string(plan.Level)},
		{"Workers", fmt.Sprintf("%d (max %d)", plan.Workers, plan.MaxWorkers)},
		{"Sample budget", budget},
		{"Batch size", fmt.Sprintf("%d (max %d)", plan.BatchSize, plan.MaxBatchSize)},
		{"Checkout", string(plan.Strategy)},
	}
}

func writeEstimateCSV(w io.Writer, res *schema.EstimateResult) error {
	header := []string{"repository", "file_count", "total_bytes", "confidence", "source", "tier", "scan_level", "workers", "sample_budget", "batch_size", "strategy"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		return cw.Write([]string{
			res.Repository,
			strconv.Itoa(res.Estimate.FileCount),
			strconv.FormatInt(res.Estimate.TotalBytes, 10),
			string(res.Estimate.Confidence),
			res.Estimate.Source,
			string(res.Plan.Tier),
			string(res.Plan.Level),
			strconv.Itoa(res.Plan.Workers),
			strconv.Itoa(res.Plan.SampleBudget),
			strconv.Itoa(res.Plan.BatchSize),
			string(res.Plan.Strategy),
		})
	})
}

func writePlanText(w io.Writer, res *schema.PlanResult, repository string, cfg *contract.Config) error {
	rows := estimateRows(repository, res.Estimate, res.Plan)
	rows = append(rows,
		[]string{"Commit", res.Commit},
		[]string{"Files listed", humanize.Comma(int64(res.Listed))},
		[]string{"Skipped (too large)", humanize.Comma(int64(res.Skipped))},
		[]string{"Files sampled", humanize.Comma(int64(res.Sample.Len()))},
		[]string{"Coverage", fmt.Sprintf("%.1f%%", res.Coverage*100)},
		[]string{"Fingerprint", res.Sample.Fingerprint},
	)
	if err := renderTable(w, []string{"Field", "Value"}, rows, tw.AlignLeft); err != nil {
		return err
	}
	if res.Sample.Len() == 0 {
		return nil
	}

	pathWidth := GetMaxTablePathWidth(cfg, 45)
	sample := make([][]string, 0, res.Sample.Len())
	for i, f := range res.Sample.Files {
		sample = append(sample, []string{
			strconv.Itoa(i + 1),
			contract.TruncatePath(f.Path, pathWidth),
			humanize.IBytes(uint64(max(f.Size, 0))),
			f.Language,
			strconv.FormatFloat(f.Priority, 'f', 2, 64),
		})
	}
	if err := renderTable(w, []string{"Order", "Path", "Size", "Language", "Priority"}, sample, tw.AlignRight); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Sampled %d files: %d priority, %d coverage, %d fill\n",
		res.Sample.Len(), res.Sample.Priority, res.Sample.Coverage, res.Sample.Fill)
	return err
}

func writeSampleCSV(w io.Writer, set schema.SampledSet) error {
	header := []string{"order", "path", "ext", "language", "size_bytes", "priority"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, f := range set.Files {
			rec := []string{
				strconv.Itoa(i + 1),
				f.Path,
				f.Ext,
				f.Language,
				strconv.FormatInt(f.Size, 10),
				strconv.FormatFloat(f.Priority, 'f', 4, 64),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}
