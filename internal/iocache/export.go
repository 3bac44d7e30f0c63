package iocache

import (
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/parquet"
)

// ErrNoHistory is returned when there is nothing to export.
var ErrNoHistory = errors.New("no scan history found to export")

// ExportHistory writes scan runs and per-file results to two Parquet files
// named after outputFile.
func ExportHistory(store contract.HistoryStore, outputFile string, w io.Writer) error {
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}
	if store == nil {
		return errors.New("history backend is not configured")
	}

	status, err := store.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get history status: %w", err)
	}
	if status.TotalRuns == 0 {
		return ErrNoHistory
	}
	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)

	runs, err := store.GetAllScanRuns()
	if err != nil {
		return fmt.Errorf("failed to retrieve scan runs: %w", err)
	}
	files, err := store.GetAllFileResults()
	if err != nil {
		return fmt.Errorf("failed to retrieve file results: %w", err)
	}

	runsFile := outputFile + ".scan_runs.parquet"
	if err := parquet.WriteScanRunsParquet(parquet.ConvertScanRunRecords(runs), runsFile); err != nil {
		return fmt.Errorf("failed to write scan runs: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d scan runs to: %s\n", len(runs), runsFile)

	filesFile := outputFile + ".scan_file_results.parquet"
	if err := parquet.WriteFileResultsParquet(parquet.ConvertFileResultRecords(files), filesFile); err != nil {
		return fmt.Errorf("failed to write file results: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d file results to: %s\n", len(files), filesFile)
	return nil
}
