package claims

import (
	"context"
	"errors"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"blobnet/internal/domain"
	"blobnet/internal/storage"
)

// CacheConfig sizes the resolution cache.
type CacheConfig struct {
	Size int
	TTL  time.Duration
}

// CachingResolver fronts a resolver with an expiring LRU of successful
// resolutions and persists every claim it sees.
type CachingResolver struct {
	next  domain.ClaimResolver
	cache *expirable.LRU[string, domain.ResolveResult]
	repo  storage.ClaimRepository
}

// NewCachingResolver wraps next. repo may be nil.
func NewCachingResolver(next domain.ClaimResolver, repo storage.ClaimRepository, cfg CacheConfig) *CachingResolver {
	if cfg.Size <= 0 {
		cfg.Size = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	return &CachingResolver{
		next:  next,
		cache: expirable.NewLRU[string, domain.ResolveResult](cfg.Size, nil, cfg.TTL),
		repo:  repo,
	}
}

// Resolve implements domain.ClaimResolver using the cache.
func (r *CachingResolver) Resolve(ctx context.Context, uris ...string) (map[string]domain.ResolveResult, error) {
	return r.ResolveWithOptions(ctx, false, uris...)
}

// ResolveWithOptions resolves uris; force skips cached entries.
func (r *CachingResolver) ResolveWithOptions(ctx context.Context, force bool, uris ...string) (map[string]domain.ResolveResult, error) {
	results := make(map[string]domain.ResolveResult, len(uris))
	var misses []string

	for _, uri := range uris {
		key := domain.NormalizeLocator(uri)
		if !force {
			if res, ok := r.cache.Get(key); ok {
				results[uri] = res
				continue
			}
		}
		misses = append(misses, uri)
	}
	if len(misses) == 0 {
		return results, nil
	}

	fresh, err := r.next.Resolve(ctx, misses...)
	if err != nil {
		return nil, err
	}

	var seen []*domain.ResolvedClaim
	for _, uri := range misses {
		res, ok := fresh[uri]
		if !ok {
			res = domain.ResolveResult{Err: domain.ErrNotFound}
		}
		results[uri] = res
		if !res.Found() {
			continue
		}
		r.cache.Add(domain.NormalizeLocator(uri), res)
		seen = append(seen, res.Claim)
		if res.Certificate != nil {
			seen = append(seen, res.Certificate)
		}
	}

	if r.repo != nil && len(seen) > 0 {
		if err := r.repo.Save(ctx, seen...); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn("failed to persist resolved claims", "count", len(seen), "error", err)
		}
	}
	return results, nil
}

// Purge drops every cached resolution.
func (r *CachingResolver) Purge() {
	r.cache.Purge()
}

// Len returns the number of cached resolutions.
func (r *CachingResolver) Len() int {
	return r.cache.Len()
}
