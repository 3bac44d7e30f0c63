package gitclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/heuristics"
	"github.com/huangsam/reposcan/schema"
	"github.com/src-d/enry/v2"
	"go.uber.org/zap"
)

// Fetch implements contract.SourceControlClient.
// Local descriptors are used in place and dest is left untouched.
func (c *Client) Fetch(ctx context.Context, desc schema.RepositoryDescriptor, dest string, opts contract.FetchOptions) (contract.Checkout, error) {
	if desc.IsLocal() {
		root := desc.LocalPath()
		info, err := os.Stat(root)
		if err != nil {
			return contract.Checkout{}, contract.NewScanError(contract.KindRepositoryUnreachable, "fetch", err)
		}
		if !info.IsDir() {
			return contract.Checkout{}, contract.NewScanError(contract.KindInvalidRequest, "fetch", fmt.Errorf("%s is not a directory", root))
		}
		return contract.Checkout{Root: root, Commit: localHead(root), Strategy: schema.LocalCheckout}, nil
	}
	return c.clone(ctx, desc, dest, opts)
}

// clone fetches desc.URL into dest with the requested strategy.
func (c *Client) clone(ctx context.Context, desc schema.RepositoryDescriptor, dest string, opts contract.FetchOptions) (contract.Checkout, error) {
	sparse := opts.Strategy == schema.SparseCheckout
	cloneOpts := &git.CloneOptions{
		URL:          desc.URL,
		Depth:        c.depth,
		SingleBranch: true,
		Tags:         git.NoTags,
		NoCheckout:   sparse,
	}
	if desc.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(desc.Branch)
	}
	if desc.Token != "" {
		cloneOpts.Auth = &githttp.BasicAuth{Username: "x-access-token", Password: desc.Token}
	}

	c.logger.Info(ctx, "Cloning repository",
		zap.Stringer("repository", desc),
		zap.String("strategy", string(opts.Strategy)))

	repo, err := git.PlainCloneContext(ctx, dest, false, cloneOpts)
	if err != nil {
		return contract.Checkout{}, classifyCloneError(ctx, err)
	}

	head, err := repo.Head()
	if err != nil {
		return contract.Checkout{}, contract.NewScanError(contract.KindCloneFailure, "fetch", fmt.Errorf("resolving HEAD: %w", err))
	}

	if !sparse {
		return contract.Checkout{Root: dest, Commit: head.Hash().String(), Strategy: schema.ShallowCheckout}, nil
	}

	commit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return contract.Checkout{}, contract.NewScanError(contract.KindCloneFailure, "fetch", fmt.Errorf("reading HEAD commit: %w", err))
	}
	entries, err := materialize(ctx, commit, dest, opts)
	if err != nil {
		if ctx.Err() != nil {
			return contract.Checkout{}, ctx.Err()
		}
		return contract.Checkout{}, contract.NewScanError(contract.KindCloneFailure, "fetch", err)
	}
	c.logger.Debug(ctx, "Materialized sparse checkout",
		zap.String("commit", head.Hash().String()),
		zap.Int("entries", len(entries)))

	return contract.Checkout{
		Root:     dest,
		Commit:   head.Hash().String(),
		Strategy: schema.SparseCheckout,
		Entries:  entries,
	}, nil
}

// materialize writes the allowlisted blobs of commit's tree under dest.
// Allowlisted blobs above the size limit are listed but not written.
func materialize(ctx context.Context, commit *object.Commit, dest string, opts contract.FetchOptions) ([]contract.TreeEntry, error) {
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("reading tree: %w", err)
	}

	var entries []contract.TreeEntry
	err = tree.Files().ForEach(func(f *object.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if f.Mode == filemode.Symlink || f.Mode == filemode.Submodule {
			return nil
		}
		if !filepath.IsLocal(filepath.FromSlash(f.Name)) || enry.IsVendor(f.Name) {
			return nil
		}
		if opts.Allowlist != nil {
			if _, ok := opts.Allowlist[heuristics.NormalizeExt(path.Ext(f.Name))]; !ok {
				return nil
			}
		}

		entries = append(entries, contract.TreeEntry{Path: f.Name, Size: f.Size})
		if opts.MaxFileSizeBytes > 0 && f.Size > opts.MaxFileSizeBytes {
			return nil
		}
		return writeBlob(f, filepath.Join(dest, filepath.FromSlash(f.Name)))
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func writeBlob(f *object.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	r, err := f.Reader()
	if err != nil {
		return fmt.Errorf("opening blob %s: %w", f.Name, err)
	}
	defer func() { _ = r.Close() }()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()
		return fmt.Errorf("writing %s: %w", f.Name, err)
	}
	return out.Close()
}

// localHead returns the HEAD commit of a local repository, or "" when root is not one.
func localHead(root string) string {
	repo, err := git.PlainOpen(root)
	if err != nil {
		return ""
	}
	head, err := repo.Head()
	if err != nil {
		return ""
	}
	return head.Hash().String()
}

func classifyCloneError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired), errors.Is(err, transport.ErrAuthorizationFailed):
		return contract.NewScanError(contract.KindAuthenticationFailure, "fetch", err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return contract.NewScanError(contract.KindRepositoryUnreachable, "fetch", err)
	}
	var netErr net.Error
	var dnsErr *net.DNSError
	var opErr *net.OpError
	if errors.As(err, &dnsErr) || errors.As(err, &opErr) || errors.As(err, &netErr) {
		return contract.NewScanError(contract.KindRepositoryUnreachable, "fetch", err)
	}
	return contract.NewScanError(contract.KindCloneFailure, "fetch", err)
}
