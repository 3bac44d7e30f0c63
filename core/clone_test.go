package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestCloneManagerStrategyAndCleanup(t *testing.T) {
	workDir := t.TempDir()
	desc := testDescriptor(t)
	client := &contract.MockSourceControlClient{}
	client.On("Fetch", mock.Anything, desc, mock.AnythingOfType("string"), mock.MatchedBy(func(o contract.FetchOptions) bool {
		return o.Strategy == schema.SparseCheckout && o.MaxFileSizeBytes == 1024 && len(o.Allowlist) > 0
	})).Return(func(_ context.Context, _ schema.RepositoryDescriptor, dest string, _ contract.FetchOptions) contract.Checkout {
		return contract.Checkout{Root: dest, Strategy: schema.SparseCheckout}
	}, nil)

	m := NewCloneManager(client, workDir, 1024, heuristics.Default(), nil)
	checkout, cleanup, err := m.Fetch(context.Background(), desc, schema.MassiveTier)
	require.NoError(t, err)
	assert.DirExists(t, checkout.Root)
	assert.Equal(t, workDir, filepath.Dir(checkout.Root))

	require.NoError(t, cleanup())
	require.NoError(t, cleanup())
	assert.NoDirExists(t, checkout.Root)
	client.AssertExpectations(t)
}

func TestCloneManagerFailureRemovesDir(t *testing.T) {
	workDir := t.TempDir()
	desc := testDescriptor(t)
	client := &contract.MockSourceControlClient{}
	cloneErr := contract.NewScanError(contract.KindAuthenticationFailure, "fetch", errors.New("denied"))
	client.On("Fetch", mock.Anything, desc, mock.Anything, mock.MatchedBy(func(o contract.FetchOptions) bool {
		return o.Strategy == schema.ShallowCheckout
	})).Return(contract.Checkout{}, cloneErr)

	_, cleanup, err := NewCloneManager(client, workDir, 1024, heuristics.Default(), nil).Fetch(context.Background(), desc, schema.NormalTier)
	assert.ErrorIs(t, err, contract.ErrAuthenticationFailure)
	assert.Nil(t, cleanup)

	left, err := os.ReadDir(workDir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestCloneManagerBadWorkDir(t *testing.T) {
	m := NewCloneManager(&contract.MockSourceControlClient{}, filepath.Join(t.TempDir(), "missing", "dir"), 1, heuristics.Default(), nil)
	_, _, err := m.Fetch(context.Background(), testDescriptor(t), schema.NormalTier)
	assert.ErrorIs(t, err, contract.ErrInternal)
}
