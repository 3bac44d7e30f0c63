package contract

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkFiles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "pkg"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".git", "objects"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "pkg", "a.go"), []byte("package pkg"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README"), []byte("hi"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte("ref"), 0o644))
	require.NoError(t, os.Symlink(filepath.Join(root, "README"), filepath.Join(root, "link")))

	entries, err := WalkFiles(context.Background(), root)
	require.NoError(t, err)

	byPath := map[string]int64{}
	for _, e := range entries {
		byPath[e.Path] = e.Size
	}
	assert.Equal(t, map[string]int64{"src/pkg/a.go": 11, "README": 2}, byPath)
}

func TestWalkFilesCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("a"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := WalkFiles(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWalkFilesMissingRoot(t *testing.T) {
	_, err := WalkFiles(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
