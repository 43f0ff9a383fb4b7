package vectorindex

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"

	"github.com/jonathan/cv-ranker/internal/cache"
	"github.com/jonathan/cv-ranker/internal/llm"
)

// Embedder turns text into a fixed-length vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// Name identifies the model; it is part of embedding cache keys
	Name() string
	// Dimension is the vector length, or 0 when unknown before the first call
	Dimension() int
}

// DefaultHashingDimension is the vector length of the hashing embedder
const DefaultHashingDimension = 256

var embedTokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// HashingEmbedder is a deterministic local embedder: tokens and adjacent-token
// bigrams are hashed into signed buckets and the vector is L2-normalized.
// Text without tokens yields the zero vector.
type HashingEmbedder struct {
	dim int
}

// NewHashingEmbedder creates a hashing embedder. A non-positive dim means
// DefaultHashingDimension.
func NewHashingEmbedder(dim int) *HashingEmbedder {
	if dim <= 0 {
		dim = DefaultHashingDimension
	}
	return &HashingEmbedder{dim: dim}
}

// Name implements Embedder
func (h *HashingEmbedder) Name() string {
	return fmt.Sprintf("hashing-%d", h.dim)
}

// Dimension implements Embedder
func (h *HashingEmbedder) Dimension() int {
	return h.dim
}

// Embed implements Embedder
func (h *HashingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float64, h.dim)
	tokens := embedTokenPattern.FindAllString(strings.ToLower(text), -1)
	for i, tok := range tokens {
		h.add(vec, tok, 1.0)
		if i > 0 {
			h.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	out := make([]float32, h.dim)
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	if norm == 0 {
		return out, nil
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out, nil
}

func (h *HashingEmbedder) add(vec []float64, feature string, weight float64) {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(feature))
	sum := hasher.Sum64()
	bucket := int(sum % uint64(h.dim))
	if sum>>63 == 1 {
		weight = -weight
	}
	vec[bucket] += weight
}

// GeminiEmbedder embeds text with the Gemini embedding model
type GeminiEmbedder struct {
	client llm.Client
}

// NewGeminiEmbedder creates an embedder over an LLM client
func NewGeminiEmbedder(client llm.Client) *GeminiEmbedder {
	return &GeminiEmbedder{client: client}
}

// Name implements Embedder
func (g *GeminiEmbedder) Name() string {
	return g.client.EmbeddingModel()
}

// Dimension implements Embedder
func (g *GeminiEmbedder) Dimension() int {
	if g.client.EmbeddingModel() == llm.DefaultEmbeddingModel {
		return llm.DefaultEmbeddingDimensions
	}
	return 0
}

// Embed implements Embedder
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return g.client.Embed(ctx, text)
}

// OpEmbed is the cache operation name for embeddings
const OpEmbed = "embed"

// CachedEmbedder memoizes another embedder through the cache
type CachedEmbedder struct {
	inner Embedder
	cache *cache.Service
}

// NewCachedEmbedder wraps inner with c
func NewCachedEmbedder(inner Embedder, c *cache.Service) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c}
}

// Name implements Embedder
func (c *CachedEmbedder) Name() string { return c.inner.Name() }

// Dimension implements Embedder
func (c *CachedEmbedder) Dimension() int { return c.inner.Dimension() }

// Embed implements Embedder
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cache.Key(OpEmbed, c.inner.Name(), text)
	if vec, ok := cache.GetJSON[[]float32](ctx, c.cache, key); ok && len(vec) > 0 {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	cache.SetJSON(ctx, c.cache, key, vec)
	return vec, nil
}
