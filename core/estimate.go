package core

import (
	"context"
	"fmt"
	"time"

	"github.com/huangsam/reposcan/internal/contract"
	"github.com/huangsam/reposcan/internal/logging"
	"github.com/huangsam/reposcan/schema"
	"github.com/zeebo/xxh3"
	"go.uber.org/zap"
)

// Estimator probes a repository with a deadline, an optional cache and a
// conservative fallback. It never returns an error.
type Estimator struct {
	inner   contract.SizeEstimator
	cache   contract.EstimateCache
	ttl     time.Duration
	timeout time.Duration
	logger  *logging.Logger
}

var _ contract.SizeEstimator = &Estimator{} // Compile-time check

// NewEstimator wraps inner. A nil cache disables caching.
func NewEstimator(inner contract.SizeEstimator, cache contract.EstimateCache, ttl, timeout time.Duration, logger *logging.Logger) *Estimator {
	if logger == nil {
		logger = logging.NewNop()
	}
	if timeout <= 0 {
		timeout = schema.DefaultEstimateTimeout
	}
	return &Estimator{inner: inner, cache: cache, ttl: ttl, timeout: timeout, logger: logger}
}

// EstimateCacheKey returns the cache key of a repository and branch.
func EstimateCacheKey(desc schema.RepositoryDescriptor) string {
	return fmt.Sprintf("%016x", xxh3.HashString(desc.URL+"|"+desc.Branch))
}

// Estimate implements contract.SizeEstimator.
func (e *Estimator) Estimate(ctx context.Context, desc schema.RepositoryDescriptor) (schema.SizeEstimate, error) {
	key := EstimateCacheKey(desc)
	if e.cache != nil {
		est, ok, err := e.cache.Get(key, e.ttl)
		switch {
		case err != nil:
			e.logger.Warn(ctx, "Estimate cache lookup failed", zap.Error(err))
		case ok:
			est.Source = schema.SourceCache
			return est, nil
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	est, err := e.inner.Estimate(probeCtx, desc)
	if err != nil {
		e.logger.Warn(ctx, "Size estimate unavailable, assuming a massive repository",
			zap.Stringer("repository", desc),
			zap.Error(err))
		return schema.FallbackEstimate(), nil
	}

	if e.cache != nil {
		if err := e.cache.Set(key, desc.String(), est); err != nil {
			e.logger.Warn(ctx, "Estimate cache store failed", zap.Error(err))
		}
	}
	return est, nil
}
