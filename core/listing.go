package core

import (
	"context"
	"path"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/schema"
	"github.com/src-d/enry/v2"
)

// ListCandidates turns a checkout into file candidates, scored with table.
func ListCandidates(ctx context.Context, checkout contract.Checkout, table *heuristics.Table) ([]schema.FileCandidate, error) {
	entries := checkout.Entries
	if entries == nil {
		var err error
		if entries, err = contract.WalkFiles(ctx, checkout.Root); err != nil {
			return nil, err
		}
	}

	out := make([]schema.FileCandidate, 0, len(entries))
	for i, e := range entries {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if contract.ShouldIgnore(e.Path, table.Exclude) {
			continue
		}
		ext := heuristics.NormalizeExt(path.Ext(e.Path))
		out = append(out, schema.FileCandidate{
			Path:     e.Path,
			Size:     e.Size,
			Ext:      ext,
			Language: enry.GetLanguage(path.Base(e.Path), nil),
			Priority: table.Score(e.Path, ext),
		})
	}
	return out, nil
}
