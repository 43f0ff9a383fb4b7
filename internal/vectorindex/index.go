// Package vectorindex is an in-memory nearest-neighbour index over embedded
// chunks, used to justify rankings with the most relevant passages.
package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/jonathan/cv-ranker/internal/chunking"
	"github.com/jonathan/cv-ranker/internal/logger"
	"github.com/jonathan/cv-ranker/internal/types"
)

// Hit is one search result
type Hit struct {
	Chunk    types.Chunk `json:"chunk"`
	Fragment string      `json:"fragment"`
	Score    float64     `json:"score"`
}

// Filter selects the chunks a search may return
type Filter func(types.Chunk) bool

type entry struct {
	types.IndexEntry
	zero bool
}

// Index stores L2-normalized fragment vectors and scores them by inner
// product (cosine). It is safe for concurrent use: searches run in parallel
// and Add excludes searches only while committing.
type Index struct {
	mu       sync.RWMutex
	embedder Embedder
	split    *chunking.SplitConfig
	logger   *zap.Logger

	entries []entry
	chunks  map[types.Chunk]struct{}
	dim     int
	frozen  bool
}

// Option configures an Index
type Option func(*Index)

// WithSplitConfig splits chunks into fragments before embedding
func WithSplitConfig(cfg chunking.SplitConfig) Option {
	return func(idx *Index) {
		idx.split = &cfg
	}
}

// WithLogger sets the index logger
func WithLogger(l *zap.Logger) Option {
	return func(idx *Index) {
		idx.logger = logger.OrNop(l)
	}
}

// New creates an empty index over embedder
func New(embedder Embedder, opts ...Option) *Index {
	idx := &Index{
		embedder: embedder,
		logger:   zap.NewNop(),
		chunks:   make(map[types.Chunk]struct{}),
		dim:      embedder.Dimension(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Add embeds and stores chunks. Either every chunk is added or none is.
func (idx *Index) Add(ctx context.Context, chunks []types.Chunk) error {
	if idx.Frozen() {
		return ErrFrozen
	}

	type pending struct {
		chunk    types.Chunk
		fragment string
		vector   []float32
	}
	var batch []pending
	for _, c := range chunks {
		fragments := []string{c.Text}
		if idx.split != nil {
			if f := chunking.Split(c.Text, *idx.split); len(f) > 0 {
				fragments = f
			}
		}
		for _, f := range fragments {
			if err := ctx.Err(); err != nil {
				return err
			}
			vec, err := idx.embedder.Embed(ctx, f)
			if err != nil {
				return &RetrievalError{Op: "embed chunk " + c.SourceRef, Cause: err}
			}
			batch = append(batch, pending{chunk: c, fragment: f, vector: vec})
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.frozen {
		return ErrFrozen
	}

	dim := idx.dim
	for _, p := range batch {
		if dim == 0 {
			dim = len(p.vector)
		}
		if len(p.vector) != dim {
			return fmt.Errorf("chunk %s: got %d, want %d: %w", p.chunk.SourceRef, len(p.vector), dim, ErrDimensionMismatch)
		}
	}
	idx.dim = dim

	for _, p := range batch {
		vec, zero := normalize(p.vector)
		idx.entries = append(idx.entries, entry{
			IndexEntry: types.IndexEntry{Chunk: p.chunk, Fragment: p.fragment, Vector: vec},
			zero:       zero,
		})
		idx.chunks[p.chunk] = struct{}{}
	}

	idx.logger.Debug("added chunks to index",
		zap.Int("chunks", len(chunks)),
		zap.Int("fragments", len(batch)),
		zap.Int("total_entries", len(idx.entries)),
	)
	return nil
}

// Search returns at most k chunks most similar to query, best first. Ties keep
// insertion order and each distinct chunk appears once, scored by its best
// fragment. Zero vectors never match.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]Hit, error) {
	return idx.SearchFunc(ctx, query, k, nil)
}

// SearchFunc is Search restricted to chunks accepted by filter. A nil filter accepts all.
func (idx *Index) SearchFunc(ctx context.Context, query string, k int, filter Filter) ([]Hit, error) {
	if k <= 0 {
		return []Hit{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &RetrievalError{Op: "embed query", Cause: err}
	}
	q, zero := normalize(raw)
	if zero {
		return []Hit{}, nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.dim != 0 && len(q) != idx.dim && len(idx.entries) > 0 {
		return nil, &RetrievalError{
			Op:    "search",
			Cause: fmt.Errorf("query: got %d, want %d: %w", len(q), idx.dim, ErrDimensionMismatch),
		}
	}

	type best struct {
		entry *entry
		score float64
	}
	bestByChunk := make(map[types.Chunk]int)
	var candidates []best
	for i := range idx.entries {
		e := &idx.entries[i]
		if e.zero {
			continue
		}
		if filter != nil && !filter(e.Chunk) {
			continue
		}
		score := dot(q, e.Vector)
		if pos, seen := bestByChunk[e.Chunk]; seen {
			if score > candidates[pos].score {
				candidates[pos] = best{entry: e, score: score}
			}
			continue
		}
		bestByChunk[e.Chunk] = len(candidates)
		candidates = append(candidates, best{entry: e, score: score})
	}

	// candidates are in chunk insertion order, so a stable sort breaks ties by it
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > k {
		candidates = candidates[:k]
	}
	hits := make([]Hit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, Hit{
			Chunk:    c.entry.Chunk,
			Fragment: c.entry.Fragment,
			Score:    clamp01(c.score),
		})
	}
	return hits, nil
}

// Len returns the number of stored fragments
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.entries)
}

// ChunkCount returns the number of distinct chunks
func (idx *Index) ChunkCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Dimension returns the vector length, or 0 for an empty index with an
// embedder of unknown dimension
func (idx *Index) Dimension() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.dim
}

// Entries returns a copy of the stored entries in insertion order
func (idx *Index) Entries() []types.IndexEntry {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]types.IndexEntry, len(idx.entries))
	for i, e := range idx.entries {
		out[i] = e.IndexEntry
		out[i].Vector = append([]float32(nil), e.Vector...)
	}
	return out
}

// Freeze makes the index read-only. Later calls to Add return ErrFrozen.
func (idx *Index) Freeze() {
	idx.mu.Lock()
	idx.frozen = true
	idx.mu.Unlock()
}

// Frozen reports whether Freeze was called
func (idx *Index) Frozen() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.frozen
}

// normalize returns a unit-length copy of v and whether v has zero norm
func normalize(v []float32) ([]float32, bool) {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return out, true
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, false
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
