package gitclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSourceRepo creates a committed repository holding files.
func newSourceRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	for name, content := range files {
		full := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
		_, err := wt.Add(name)
		require.NoError(t, err)
	}
	_, err = wt.Commit("initial", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	require.NoError(t, err)
	return dir
}

func TestParseRemote(t *testing.T) {
	tests := []struct {
		raw               string
		host, owner, repo string
		ok                bool
	}{
		{"https://github.com/acme/widgets", "github.com", "acme", "widgets", true},
		{"https://github.com/acme/widgets.git", "github.com", "acme", "widgets", true},
		{"ssh://git@GitHub.com/acme/widgets.git", "github.com", "acme", "widgets", true},
		{"git@github.com:acme/widgets.git", "github.com", "acme", "widgets", true},
		{"https://github.com/acme", "", "", "", false},
		{"https://gitlab.com/group/sub/project", "", "", "", false},
		{"/tmp/repo", "", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			host, owner, repo, ok := parseRemote(tt.raw)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.host, host)
				assert.Equal(t, tt.owner, owner)
				assert.Equal(t, tt.repo, repo)
			}
		})
	}
}

func TestListTreeLocal(t *testing.T) {
	dir := newSourceRepo(t, map[string]string{"main.go": "package main", "config/.env": "A=1"})
	c, err := New()
	require.NoError(t, err)

	desc, err := schema.NewRepositoryDescriptor(dir, "", "")
	require.NoError(t, err)
	tree, err := c.ListTree(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, schema.SourceLocalWalk, tree.Source)
	assert.False(t, tree.Truncated)
	assert.Len(t, tree.Entries, 2)
}

func TestListTreeUnsupportedHost(t *testing.T) {
	c, err := New()
	require.NoError(t, err)
	desc, err := schema.NewRepositoryDescriptor("https://git.example.org/acme/widgets", "", "")
	require.NoError(t, err)

	_, err = c.ListTree(context.Background(), desc)
	assert.ErrorIs(t, err, contract.ErrEstimateUnsupported)
}

func newGitHubServer(t *testing.T, status int, truncated bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets", func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"nope"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"default_branch": "trunk"})
	})
	mux.HandleFunc("/repos/acme/widgets/git/trees/trunk", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sha":       "abc",
			"truncated": truncated,
			"tree": []map[string]any{
				{"path": "src", "type": "tree"},
				{"path": "src/main.go", "type": "blob", "size": 120},
				{"path": "secrets.env", "type": "blob", "size": 30},
			},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestListTreeGitHub(t *testing.T) {
	srv := newGitHubServer(t, http.StatusOK, false)
	c, err := New(WithGitHubAPIURL(srv.URL))
	require.NoError(t, err)

	desc, err := schema.NewRepositoryDescriptor("https://github.com/acme/widgets", "", "tok")
	require.NoError(t, err)
	tree, err := c.ListTree(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, schema.SourceGitHubTree, tree.Source)
	assert.Equal(t, []contract.TreeEntry{
		{Path: "src/main.go", Size: 120},
		{Path: "secrets.env", Size: 30},
	}, tree.Entries)
}

func TestListTreeGitHubErrors(t *testing.T) {
	tests := []struct {
		status int
		kind   contract.ErrorKind
	}{
		{http.StatusUnauthorized, contract.KindAuthenticationFailure},
		{http.StatusNotFound, contract.KindRepositoryUnreachable},
		{http.StatusInternalServerError, contract.KindRepositoryUnreachable},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newGitHubServer(t, tt.status, false)
			c, err := New(WithGitHubAPIURL(srv.URL))
			require.NoError(t, err)

			desc, err := schema.NewRepositoryDescriptor("https://github.com/acme/widgets", "", "")
			require.NoError(t, err)
			_, err = c.ListTree(context.Background(), desc)
			require.Error(t, err)
			assert.Equal(t, tt.kind, contract.KindOf(err))
		})
	}
}

func TestTreeEstimator(t *testing.T) {
	srv := newGitHubServer(t, http.StatusOK, true)
	c, err := New(WithGitHubAPIURL(srv.URL))
	require.NoError(t, err)

	desc, err := schema.NewRepositoryDescriptor("https://github.com/acme/widgets", "", "")
	require.NoError(t, err)
	est, err := NewTreeEstimator(c).Estimate(context.Background(), desc)
	require.NoError(t, err)

	assert.Equal(t, schema.LowConfidence, est.Confidence)
	assert.Equal(t, schema.UltraLargeTierMaxFiles+1, est.FileCount)
	assert.Equal(t, int64(150), est.TotalBytes)
}

func TestTreeEstimatorPropagatesErrors(t *testing.T) {
	client := &contract.MockSourceControlClient{}
	desc := schema.RepositoryDescriptor{URL: "https://git.example.org/a/b"}
	client.On("ListTree", context.Background(), desc).Return(contract.RemoteTree{}, contract.ErrEstimateUnsupported)

	_, err := NewTreeEstimator(client).Estimate(context.Background(), desc)
	assert.ErrorIs(t, err, contract.ErrEstimateUnsupported)
	client.AssertExpectations(t)
}

func TestWithGitHubAPIURLInvalid(t *testing.T) {
	_, err := New(WithGitHubAPIURL("ftp://example.com"))
	assert.Error(t, err)
}
