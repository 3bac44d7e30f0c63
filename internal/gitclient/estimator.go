package gitclient

import (
	"context"
	"time"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
)

// TreeEstimator estimates repository size from a tree listing.
type TreeEstimator struct {
	client contract.SourceControlClient
}

var _ contract.SizeEstimator = &TreeEstimator{} // Compile-time check

// NewTreeEstimator creates an estimator over client.
func NewTreeEstimator(client contract.SourceControlClient) *TreeEstimator {
	return &TreeEstimator{client: client}
}

// Estimate implements contract.SizeEstimator.
func (e *TreeEstimator) Estimate(ctx context.Context, desc schema.RepositoryDescriptor) (schema.SizeEstimate, error) {
	tree, err := e.client.ListTree(ctx, desc)
	if err != nil {
		return schema.SizeEstimate{}, err
	}

	est := schema.SizeEstimate{
		FileCount:  len(tree.Entries),
		Confidence: schema.HighConfidence,
		Source:     tree.Source,
		ProbedAt:   time.Now(),
	}
	for _, entry := range tree.Entries {
		est.TotalBytes += entry.Size
	}
	if tree.Truncated {
		// The provider stopped listing, so the real count is at least massive.
		est.Confidence = schema.LowConfidence
		est.FileCount = max(est.FileCount, schema.UltraLargeTierMaxFiles+1)
	}
	return est, nil
}
