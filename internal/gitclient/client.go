// Package gitclient fetches and lists repositories with go-git and the GitHub API.
package gitclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-github/v57/github"
	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/schema"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// DefaultGitHubHost is the web host whose repositories are listed through the GitHub API.
const DefaultGitHubHost = "github.com"

// Client implements contract.SourceControlClient.
type Client struct {
	apiURL *url.URL            // nil uses api.github.com
	hosts  map[string]struct{} // web hosts served by the GitHub API
	logger *logging.Logger
	depth  int // clone depth, 0 fetches full history
}

var _ contract.SourceControlClient = &Client{} // Compile-time check

// Option configures a Client.
type Option func(*Client) error

// WithGitHubAPIURL points the tree listing at a GitHub Enterprise or test API.
// The web host of the enterprise instance must be registered with WithGitHubHost.
func WithGitHubAPIURL(raw string) Option {
	return func(c *Client) error {
		if raw == "" {
			return nil
		}
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid github api url %q: %w", raw, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid github api url %q: scheme must be http or https", raw)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		c.apiURL = u
		return nil
	}
}

// WithGitHubHost registers another web host as GitHub.
func WithGitHubHost(host string) Option {
	return func(c *Client) error {
		if host != "" {
			c.hosts[strings.ToLower(host)] = struct{}{}
		}
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// New creates a Client.
func New(opts ...Option) (*Client, error) {
	c := &Client{
		hosts:  map[string]struct{}{DefaultGitHubHost: {}},
		logger: logging.NewNop(),
		depth:  1,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// ListTree implements contract.SourceControlClient.
func (c *Client) ListTree(ctx context.Context, desc schema.RepositoryDescriptor) (contract.RemoteTree, error) {
	if desc.IsLocal() {
		entries, err := contract.WalkFiles(ctx, desc.LocalPath())
		if err != nil {
			if ctx.Err() != nil {
				return contract.RemoteTree{}, ctx.Err()
			}
			return contract.RemoteTree{}, contract.NewScanError(contract.KindRepositoryUnreachable, "list tree", err)
		}
		return contract.RemoteTree{Entries: entries, Source: schema.SourceLocalWalk}, nil
	}

	host, owner, repo, ok := parseRemote(desc.URL)
	if !ok {
		return contract.RemoteTree{}, contract.ErrEstimateUnsupported
	}
	if _, known := c.hosts[host]; !known {
		return contract.RemoteTree{}, contract.ErrEstimateUnsupported
	}
	return c.listGitHubTree(ctx, desc, owner, repo)
}

func (c *Client) listGitHubTree(ctx context.Context, desc schema.RepositoryDescriptor, owner, repo string) (contract.RemoteTree, error) {
	gh := c.github(ctx, desc.Token)

	ref := desc.Branch
	if ref == "" {
		r, _, err := gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return contract.RemoteTree{}, classifyGitHubError("list tree", err)
		}
		ref = r.GetDefaultBranch()
	}

	tree, _, err := gh.Git.GetTree(ctx, owner, repo, ref, true)
	if err != nil {
		return contract.RemoteTree{}, classifyGitHubError("list tree", err)
	}

	entries := make([]contract.TreeEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		if e.GetType() != "blob" {
			continue
		}
		entries = append(entries, contract.TreeEntry{Path: e.GetPath(), Size: int64(e.GetSize())})
	}
	c.logger.Debug(ctx, "Listed remote tree",
		zap.String("owner", owner),
		zap.String("repo", repo),
		zap.String("ref", ref),
		zap.Int("entries", len(entries)),
		zap.Bool("truncated", tree.GetTruncated()))

	return contract.RemoteTree{
		Entries:   entries,
		Truncated: tree.GetTruncated(),
		Source:    schema.SourceGitHubTree,
	}, nil
}

func (c *Client) github(ctx context.Context, token string) *github.Client {
	var gh *github.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		gh = github.NewClient(oauth2.NewClient(ctx, ts))
	} else {
		gh = github.NewClient(nil)
	}
	if c.apiURL != nil {
		base := *c.apiURL
		gh.BaseURL = &base
	}
	return gh
}

// parseRemote extracts host, owner and repository from https, ssh and scp-like URLs.
func parseRemote(raw string) (host, owner, repo string, ok bool) {
	var path string
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", "", "", false
		}
		host, path = u.Hostname(), u.Path
	} else {
		at := strings.Index(raw, "@")
		colon := strings.Index(raw, ":")
		if at < 0 || colon < at {
			return "", "", "", false
		}
		host, path = raw[at+1:colon], raw[colon+1:]
	}

	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	return strings.ToLower(host), parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

func classifyGitHubError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return contract.NewScanError(contract.KindRepositoryUnreachable, op, err)
	}
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		switch respErr.Response.StatusCode {
		case 401, 403:
			return contract.NewScanError(contract.KindAuthenticationFailure, op, err)
		case 404:
			return contract.NewScanError(contract.KindRepositoryUnreachable, op, err)
		}
	}
	return contract.NewScanError(contract.KindRepositoryUnreachable, op, err)
}
