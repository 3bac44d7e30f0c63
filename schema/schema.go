// Package schema has configs, models and tier tables for all parts of reposcan.
package schema

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidRepositoryURL is returned when a repository URL cannot be used.
var ErrInvalidRepositoryURL = errors.New("invalid repository url")

// RepositoryDescriptor identifies the repository to scan.
// It is immutable once created and the token is never serialized.
type RepositoryDescriptor struct {
	URL    string `json:"url"`
	Branch string `json:"branch,omitempty"` // empty means the remote HEAD
	Token  string `json:"-"`                // opaque credential passed through to the source control client
}

// NewRepositoryDescriptor validates rawURL and returns a descriptor for it.
// Accepted forms are http(s)://, ssh://, git://, file://, scp-like git@host:path
// and plain local paths.
func NewRepositoryDescriptor(rawURL, branch, token string) (RepositoryDescriptor, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return RepositoryDescriptor{}, fmt.Errorf("%w: empty", ErrInvalidRepositoryURL)
	}
	if strings.Contains(rawURL, "://") {
		u, err := url.Parse(rawURL)
		if err != nil {
			return RepositoryDescriptor{}, fmt.Errorf("%w: %v", ErrInvalidRepositoryURL, err)
		}
		switch u.Scheme {
		case "http", "https", "ssh", "git":
			if u.Host == "" {
				return RepositoryDescriptor{}, fmt.Errorf("%w: missing host in %q", ErrInvalidRepositoryURL, rawURL)
			}
		case "file":
			if u.Path == "" {
				return RepositoryDescriptor{}, fmt.Errorf("%w: missing path in %q", ErrInvalidRepositoryURL, rawURL)
			}
		default:
			return RepositoryDescriptor{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidRepositoryURL, u.Scheme)
		}
	}
	if strings.ContainsAny(branch, " \t\n~^:?*[\\") {
		return RepositoryDescriptor{}, fmt.Errorf("%w: invalid branch name %q", ErrInvalidRepositoryURL, branch)
	}
	return RepositoryDescriptor{URL: rawURL, Branch: strings.TrimSpace(branch), Token: token}, nil
}

// IsLocal reports whether the descriptor points at a path on this machine.
func (d RepositoryDescriptor) IsLocal() bool {
	if strings.HasPrefix(d.URL, "file://") {
		return true
	}
	if strings.Contains(d.URL, "://") {
		return false
	}
	// scp-like syntax: user@host:path
	if at, colon := strings.Index(d.URL, "@"), strings.Index(d.URL, ":"); at > 0 && colon > at {
		return false
	}
	return true
}

// LocalPath returns the filesystem path for a local descriptor.
func (d RepositoryDescriptor) LocalPath() string {
	return strings.TrimPrefix(d.URL, "file://")
}

// String returns the descriptor without credentials, safe for logs.
func (d RepositoryDescriptor) String() string {
	display := d.URL
	if u, err := url.Parse(d.URL); err == nil && u.User != nil {
		u.User = nil
		display = u.String()
	}
	if d.Branch == "" {
		return display
	}
	return display + "@" + d.Branch
}

// SizeEstimate is the result of probing a repository without cloning it.
type SizeEstimate struct {
	FileCount  int        `json:"file_count"`
	TotalBytes int64      `json:"total_bytes"`
	Confidence Confidence `json:"confidence"`
	Source     string     `json:"source"`
	ProbedAt   time.Time  `json:"probed_at"`
}

// Estimate sources.
const (
	SourceGitHubTree = "github-tree"
	SourceLocalWalk  = "local-walk"
	SourceFallback   = "fallback"
	SourceCache      = "cache"
)

// FallbackFileCount is used when no estimate can be obtained; it lands in the massive tier.
const FallbackFileCount = 250_000

// FallbackEstimate returns the conservative estimate used when probing fails.
func FallbackEstimate() SizeEstimate {
	return SizeEstimate{
		FileCount:  FallbackFileCount,
		Confidence: LowConfidence,
		Source:     SourceFallback,
		ProbedAt:   time.Now(),
	}
}
