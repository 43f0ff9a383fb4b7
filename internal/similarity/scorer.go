package similarity

import (
	"context"

	"github.com/jonathan/cv-ranker/internal/cache"
	"github.com/jonathan/cv-ranker/internal/types"
)

// TextScorer computes the lexical similarity of a requirement and a candidate text
type TextScorer interface {
	Score(ctx context.Context, requirement, candidate types.NormalizedText) float64
}

// TFIDFScorer is the pairwise TF-IDF TextScorer
type TFIDFScorer struct{}

// Score implements TextScorer
func (TFIDFScorer) Score(_ context.Context, requirement, candidate types.NormalizedText) float64 {
	return TextSimilarity(requirement, candidate)
}

// OpTextSimilarity is the cache operation name for text similarity scores
const OpTextSimilarity = "text_similarity"

// CachedScorer memoizes another TextScorer through the cache
type CachedScorer struct {
	inner TextScorer
	cache *cache.Service
}

// NewCachedScorer wraps inner. A nil inner means TFIDFScorer.
func NewCachedScorer(inner TextScorer, c *cache.Service) *CachedScorer {
	if inner == nil {
		inner = TFIDFScorer{}
	}
	return &CachedScorer{inner: inner, cache: c}
}

// Score implements TextScorer
func (s *CachedScorer) Score(ctx context.Context, requirement, candidate types.NormalizedText) float64 {
	key := cache.Key(OpTextSimilarity, requirement, candidate)
	if v, ok := cache.GetJSON[float64](ctx, s.cache, key); ok {
		return v
	}

	v := s.inner.Score(ctx, requirement, candidate)
	cache.SetJSON(ctx, s.cache, key, v)
	return v
}
