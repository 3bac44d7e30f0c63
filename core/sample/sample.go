// Package sample selects a bounded, deterministic subset of a repository listing.
package sample

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/schema"
	"github.com/zeebo/xxh3"
)

// Plan selects the files to scan from listing.
//
// Files above maxFileSize are returned as skipped_too_large results. The rest are
// picked in three passes: highest priority first, then one file per extension not
// yet represented, then a fixed-stride fill in path order. An unbounded budget
// keeps every eligible file in path order. The result depends only on the set of
// files in listing, not on their order.
func Plan(listing []schema.FileCandidate, budget int, maxFileSize int64, table *heuristics.Table) (schema.SampledSet, []schema.FileScanResult) {
	eligible := make([]schema.FileCandidate, 0, len(listing))
	var skipped []schema.FileScanResult
	for _, c := range listing {
		if maxFileSize > 0 && c.Size > maxFileSize {
			skipped = append(skipped, schema.FileScanResult{
				Candidate: c,
				Status:    schema.StatusSkippedTooLarge,
				Err:       fmt.Sprintf("size %d exceeds limit %d", c.Size, maxFileSize),
			})
			continue
		}
		eligible = append(eligible, c)
	}
	slices.SortFunc(eligible, byPath)
	slices.SortFunc(skipped, func(a, b schema.FileScanResult) int { return byPath(a.Candidate, b.Candidate) })

	set := schema.SampledSet{Budget: budget}
	switch {
	case budget == schema.UnboundedBudget:
		set.Files = eligible
		set.Fill = len(eligible)
	case budget > 0:
		selectBounded(&set, eligible, budget, table.CoverageReservePct)
	}
	if set.Files == nil {
		set.Files = []schema.FileCandidate{}
	}
	set.Fingerprint = Fingerprint(set.Files)
	return set, skipped
}

func selectBounded(set *schema.SampledSet, eligible []schema.FileCandidate, budget int, reservePct float64) {
	extCounts := make(map[string]int)
	for _, c := range eligible {
		extCounts[c.Ext]++
	}
	reserve := min(len(extCounts), int(float64(budget)*reservePct))

	ranked := slices.Clone(eligible)
	slices.SortStableFunc(ranked, func(a, b schema.FileCandidate) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Path, b.Path)
	})

	files := make([]schema.FileCandidate, 0, min(budget, len(eligible)))
	taken := make(map[string]struct{}, cap(files))
	represented := make(map[string]struct{}, len(extCounts))
	take := func(c schema.FileCandidate) {
		files = append(files, c)
		taken[c.Path] = struct{}{}
		represented[c.Ext] = struct{}{}
	}

	// Priority picks.
	for _, c := range ranked {
		if len(files) >= budget-reserve || c.Priority <= 0 {
			break
		}
		take(c)
	}
	set.Priority = len(files)

	// Coverage picks, most common extension first.
	exts := make([]string, 0, len(extCounts))
	for ext := range extCounts {
		exts = append(exts, ext)
	}
	slices.SortFunc(exts, func(a, b string) int {
		if c := cmp.Compare(extCounts[b], extCounts[a]); c != 0 {
			return c
		}
		return cmp.Compare(a, b)
	})
	firstByExt := make(map[string]schema.FileCandidate, len(extCounts))
	for _, c := range ranked {
		if _, ok := firstByExt[c.Ext]; !ok {
			if _, used := taken[c.Path]; !used {
				firstByExt[c.Ext] = c
			}
		}
	}
	for _, ext := range exts {
		if len(files) >= budget {
			break
		}
		if _, ok := represented[ext]; ok {
			continue
		}
		take(firstByExt[ext])
	}
	set.Coverage = len(files) - set.Priority

	// Systematic fill over what is left, in path order.
	remaining := make([]schema.FileCandidate, 0, len(eligible)-len(files))
	for _, c := range eligible {
		if _, used := taken[c.Path]; !used {
			remaining = append(remaining, c)
		}
	}
	k, m := budget-len(files), len(remaining)
	if k >= m {
		files = append(files, remaining...)
	} else {
		for i := range k {
			files = append(files, remaining[i*m/k])
		}
	}
	set.Fill = len(files) - set.Priority - set.Coverage
	set.Files = files
}

// Fingerprint hashes the ordered paths of files.
func Fingerprint(files []schema.FileCandidate) string {
	h := xxh3.New()
	for _, c := range files {
		_, _ = h.WriteString(c.Path)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// Coverage returns the share of the extensions in listing that also appear in files.
func Coverage(listing, files []schema.FileCandidate) float64 {
	all := make(map[string]struct{})
	for _, c := range listing {
		all[c.Ext] = struct{}{}
	}
	if len(all) == 0 {
		return 1
	}
	seen := make(map[string]struct{})
	for _, c := range files {
		seen[c.Ext] = struct{}{}
	}
	return float64(len(seen)) / float64(len(all))
}

func byPath(a, b schema.FileCandidate) int {
	return cmp.Compare(a.Path, b.Path)
}
