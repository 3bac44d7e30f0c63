package sample

import (
	"fmt"
	"math/rand/v2"
	"path"
	"slices"
	"testing"

	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var table = heuristics.Default()

func candidate(p string, size int64) schema.FileCandidate {
	ext := heuristics.NormalizeExt(path.Ext(p))
	return schema.FileCandidate{Path: p, Size: size, Ext: ext, Priority: table.Score(p, ext)}
}

// syntheticListing builds n files spread over a handful of extensions, with a
// few high-priority paths mixed in.
func syntheticListing(n int) []schema.FileCandidate {
	exts := []string{".go", ".py", ".js", ".md", ".txt", ".html", ".rs", ""}
	out := make([]schema.FileCandidate, 0, n)
	for i := range n {
		dir := fmt.Sprintf("pkg%03d", i%97)
		name := fmt.Sprintf("file%06d%s", i, exts[i%len(exts)])
		if i%500 == 0 {
			name = fmt.Sprintf("secrets%06d.env", i)
		}
		out = append(out, candidate(dir+"/"+name, int64(100+i%1000)))
	}
	return out
}

func paths(files []schema.FileCandidate) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func TestPlanDeterministic(t *testing.T) {
	listing := syntheticListing(5_000)
	first, _ := Plan(listing, 300, schema.DefaultMaxFileSizeBytes, table)

	for seed := range uint64(5) {
		shuffled := slices.Clone(listing)
		r := rand.New(rand.NewPCG(seed, seed+1))
		r.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		again, _ := Plan(shuffled, 300, schema.DefaultMaxFileSizeBytes, table)
		assert.Equal(t, paths(first.Files), paths(again.Files))
		assert.Equal(t, first.Fingerprint, again.Fingerprint)
	}
}

func TestPlanRespectsBudget(t *testing.T) {
	listing := syntheticListing(2_000)
	for _, budget := range []int{1, 10, 99, 500, 1_999, 2_000, 5_000} {
		set, _ := Plan(listing, budget, schema.DefaultMaxFileSizeBytes, table)
		assert.Equal(t, min(budget, len(listing)), set.Len(), "budget=%d", budget)
		assert.Equal(t, set.Len(), set.Priority+set.Coverage+set.Fill)

		seen := map[string]struct{}{}
		for _, f := range set.Files {
			_, dup := seen[f.Path]
			assert.False(t, dup, "duplicate %s", f.Path)
			seen[f.Path] = struct{}{}
		}
	}
}

func TestPlanCoversExtensions(t *testing.T) {
	listing := syntheticListing(10_000)
	set, _ := Plan(listing, 100, schema.DefaultMaxFileSizeBytes, table)

	listed := map[string]struct{}{}
	for _, c := range listing {
		listed[c.Ext] = struct{}{}
	}
	sampled := map[string]struct{}{}
	for _, c := range set.Files {
		sampled[c.Ext] = struct{}{}
	}
	assert.Equal(t, listed, sampled)
	assert.InDelta(t, 1.0, Coverage(listing, set.Files), 1e-9)
}

func TestPlanOrder(t *testing.T) {
	listing := []schema.FileCandidate{
		candidate("a/readme.md", 10),
		candidate("b/main.go", 10),
		candidate("c/util.go", 10),
		candidate("d/lib.go", 10),
		candidate("deploy/secrets.env", 10),
		candidate("config/settings.yaml", 10),
		candidate("e/notes.txt", 10),
	}
	set, _ := Plan(listing, 5, 0, table)
	require.Equal(t, 5, set.Len())

	// Priority picks are sorted by score, highest first.
	require.GreaterOrEqual(t, set.Priority, 2)
	assert.Equal(t, "deploy/secrets.env", set.Files[0].Path)
	assert.Equal(t, "config/settings.yaml", set.Files[1].Path)
	for i := 1; i < set.Priority; i++ {
		assert.GreaterOrEqual(t, set.Files[i-1].Priority, set.Files[i].Priority)
	}
	// The most common extension is covered first.
	assert.Equal(t, ".go", set.Files[set.Priority].Ext)
}

func TestPlanStrideFill(t *testing.T) {
	var listing []schema.FileCandidate
	for i := range 100 {
		listing = append(listing, schema.FileCandidate{Path: fmt.Sprintf("f%03d", i), Ext: ""})
	}
	set, _ := Plan(listing, 4, 0, table)
	// One coverage pick for "" then a stride of floor(i*99/3) over the rest.
	assert.Equal(t, []string{"f000", "f001", "f034", "f067"}, paths(set.Files))
	assert.Equal(t, 0, set.Priority)
	assert.Equal(t, 1, set.Coverage)
	assert.Equal(t, 3, set.Fill)
}

func TestPlanUnbounded(t *testing.T) {
	listing := syntheticListing(300)
	slices.Reverse(listing)

	set, skipped := Plan(listing, schema.UnboundedBudget, schema.DefaultMaxFileSizeBytes, table)
	assert.Empty(t, skipped)
	assert.Equal(t, len(listing), set.Len())
	assert.True(t, slices.IsSortedFunc(set.Files, byPath))
}

func TestPlanSkipsOversize(t *testing.T) {
	listing := []schema.FileCandidate{
		candidate("big.sql", 2_000),
		candidate("small.sql", 10),
		candidate("huge.bin", 9_999),
	}
	set, skipped := Plan(listing, schema.UnboundedBudget, 1_000, table)

	assert.Equal(t, []string{"small.sql"}, paths(set.Files))
	require.Len(t, skipped, 2)
	assert.Equal(t, "big.sql", skipped[0].Candidate.Path)
	assert.Equal(t, "huge.bin", skipped[1].Candidate.Path)
	for _, r := range skipped {
		assert.Equal(t, schema.StatusSkippedTooLarge, r.Status)
		assert.Contains(t, r.Err, "exceeds limit 1000")
	}
}

func TestPlanEmpty(t *testing.T) {
	set, skipped := Plan(nil, 500, schema.DefaultMaxFileSizeBytes, table)
	assert.NotNil(t, set.Files)
	assert.Zero(t, set.Len())
	assert.Empty(t, skipped)
	assert.NotEmpty(t, set.Fingerprint)
}

func TestFingerprintOrderSensitive(t *testing.T) {
	a := []schema.FileCandidate{{Path: "x"}, {Path: "y"}}
	b := []schema.FileCandidate{{Path: "y"}, {Path: "x"}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.Equal(t, Fingerprint(a), Fingerprint(slices.Clone(a)))
	assert.NotEqual(t, Fingerprint([]schema.FileCandidate{{Path: "ab"}}), Fingerprint([]schema.FileCandidate{{Path: "a"}, {Path: "b"}}))
}

func TestCoverage(t *testing.T) {
	listing := []schema.FileCandidate{{Ext: ".go"}, {Ext: ".py"}, {Ext: ""}, {Ext: ".go"}}
	assert.InDelta(t, 2.0/3.0, Coverage(listing, []schema.FileCandidate{{Ext: ".go"}, {Ext: ""}}), 1e-9)
	assert.InDelta(t, 1.0, Coverage(nil, nil), 1e-9)
}
