// Package outwriter has output and writer logic.
package outwriter

import (
	"io"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteScan prints a scan summary and its per-file results using the configured output format.
func (ow *OutWriter) WriteScan(summary *schema.ScanSummary, results []schema.FileScanResult, cfg *contract.Config) error {
	return PrintScanResults(summary, results, cfg)
}

// WriteEstimate prints a size estimate using the configured output format.
func (ow *OutWriter) WriteEstimate(res *schema.EstimateResult, cfg *contract.Config) error {
	return PrintEstimateResults(res, cfg)
}

// WritePlan prints a dry run using the configured output format.
func (ow *OutWriter) WritePlan(res *schema.PlanResult, cfg *contract.Config) error {
	return PrintPlanResults(res, cfg.Repository.String(), cfg)
}

// WriteProgress renders progress events on w until the channel closes.
func (ow *OutWriter) WriteProgress(events <-chan schema.ProgressEvent, w io.Writer) {
	Progress(events, w)
}
