package fetch

import (
	"context"

	"github.com/jonathan/cv-ranker/internal/cache"
)

// OpFetch is the cache operation name of fetched pages
const OpFetch = "fetch"

// CachedFetcher memoizes successful fetches in the cache layer.
// A nil cache fetches every time.
type CachedFetcher struct {
	cache   *cache.Service
	options *Options
}

// CachedResult extends Result with cache metadata.
type CachedResult struct {
	*Result
	FromCache bool
}

// NewCachedFetcher creates a new cached fetcher.
func NewCachedFetcher(c *cache.Service, opts *Options) *CachedFetcher {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &CachedFetcher{cache: c, options: opts}
}

// Fetch retrieves a URL, using the cached page when fresh.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*CachedResult, error) {
	key := cache.Key(OpFetch, urlStr)
	if cached, ok := cache.GetJSON[Result](ctx, f.cache, key); ok {
		return &CachedResult{Result: &cached, FromCache: true}, nil
	}

	result, err := URL(ctx, urlStr, f.options)
	if err != nil {
		return nil, err
	}
	cache.SetJSON(ctx, f.cache, key, *result)
	return &CachedResult{Result: result}, nil
}

// Invalidate drops the cached copy of a URL
func (f *CachedFetcher) Invalidate(ctx context.Context, urlStr string) bool {
	return f.cache.Delete(ctx, cache.Key(OpFetch, urlStr))
}
