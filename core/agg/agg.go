// Package agg merges per-file scan results into a summary.
package agg

import (
	"cmp"
	"slices"
	"time"

	"github.com/huangsam/reposcan/schema"
)

// Aggregator accumulates results from a single goroutine.
type Aggregator struct {
	listed  int
	sampled int

	counts   schema.StatusCounts
	findings []schema.Finding
	scanned  int
	seen     map[string]struct{}
}

// New creates an aggregator for a scan that listed listed files and sampled sampled of them.
func New(listed, sampled int) *Aggregator {
	return &Aggregator{
		listed:   listed,
		sampled:  sampled,
		findings: []schema.Finding{},
		seen:     make(map[string]struct{}, sampled),
	}
}

// Add records one result. A second result for the same path is ignored.
func (a *Aggregator) Add(r schema.FileScanResult) {
	if _, dup := a.seen[r.Candidate.Path]; dup {
		return
	}
	a.seen[r.Candidate.Path] = struct{}{}

	a.counts.Inc(r.Status)
	if r.Status.Scanned() {
		a.scanned++
	}
	if r.Status == schema.StatusOK && r.Output.HasFindings() {
		a.findings = append(a.findings, schema.Finding{
			Path:   r.Candidate.Path,
			Count:  r.Output.FindingCount,
			Output: r.Output.Payload,
		})
	}
}

// Scanned returns the number of sampled files that produced a result so far.
func (a *Aggregator) Scanned() int { return a.scanned }

// Input carries the run figures that do not come from the results themselves.
type Input struct {
	Elapsed     time.Duration // since the scan started, including fetch and listing
	PeakMemory  uint64
	WorkersUsed int
	Coverage    float64
	// Stop is the completeness reported when not every sampled file produced
	// a result. Empty means the scan was not stopped early.
	Stop schema.Completeness
}

// Summary builds the final report.
func (a *Aggregator) Summary(in Input) schema.ScanSummary {
	findings := slices.Clone(a.findings)
	slices.SortFunc(findings, func(x, y schema.Finding) int { return cmp.Compare(x.Path, y.Path) })

	completeness := schema.Complete
	if a.scanned < a.sampled {
		completeness = in.Stop
		if completeness == "" {
			completeness = schema.PartialCancelled
		}
	}

	return schema.ScanSummary{
		TotalFilesListed: a.listed,
		SampledFiles:     a.sampled,
		ScannedFiles:     min(a.scanned, a.sampled),
		StatusCounts:     a.counts,
		Findings:         findings,
		Performance: schema.Performance{
			ElapsedSeconds:  in.Elapsed.Seconds(),
			PeakMemoryBytes: in.PeakMemory,
			WorkersUsed:     in.WorkersUsed,
		},
		Completeness: completeness,
		Coverage:     in.Coverage,
	}
}
