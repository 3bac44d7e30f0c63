package core

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/schema"
	"go.uber.org/zap"
)

// CleanupFunc removes a checkout. It is idempotent.
type CleanupFunc func() error

// CloneManager materializes repositories into temporary directories.
type CloneManager struct {
	client      contract.SourceControlClient
	workDir     string
	maxFileSize int64
	table       *heuristics.Table
	logger      *logging.Logger
}

// NewCloneManager creates a clone manager writing under workDir (os.TempDir when empty).
func NewCloneManager(client contract.SourceControlClient, workDir string, maxFileSize int64, table *heuristics.Table, logger *logging.Logger) *CloneManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &CloneManager{client: client, workDir: workDir, maxFileSize: maxFileSize, table: table, logger: logger}
}

// Fetch checks out desc with the strategy of tier. The returned cleanup
// removes the temporary directory; on error it has already been removed.
func (m *CloneManager) Fetch(ctx context.Context, desc schema.RepositoryDescriptor, tier schema.ScanTier) (contract.Checkout, CleanupFunc, error) {
	dir, err := os.MkdirTemp(m.workDir, "reposcan-*")
	if err != nil {
		return contract.Checkout{}, nil, contract.NewScanError(contract.KindInternal, "clone", fmt.Errorf("creating work dir: %w", err))
	}

	var once sync.Once
	var cleanupErr error
	cleanup := func() error {
		once.Do(func() {
			cleanupErr = os.RemoveAll(dir)
			m.logger.Debug(ctx, "Removed checkout", zap.String("dir", dir), zap.Error(cleanupErr))
		})
		return cleanupErr
	}

	opts := contract.FetchOptions{
		Strategy:         schema.TierProfiles[tier].Strategy,
		MaxFileSizeBytes: m.maxFileSize,
		Allowlist:        m.table.Allowlist(),
	}
	checkout, err := m.client.Fetch(ctx, desc, dir, opts)
	if err != nil {
		_ = cleanup()
		return contract.Checkout{}, nil, err
	}
	return checkout, cleanup, nil
}
