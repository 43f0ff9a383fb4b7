// Package ranking fuses text similarity, skill overlap and experience into a
// composite score, orders candidates and attaches retrieved justifications.
package ranking

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-ranker/internal/cache"
	"github.com/jonathan/cv-ranker/internal/chunking"
	"github.com/jonathan/cv-ranker/internal/logger"
	"github.com/jonathan/cv-ranker/internal/similarity"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/jonathan/cv-ranker/internal/vectorindex"
)

// DefaultJustificationTopK is the number of passages attached to each result
const DefaultJustificationTopK = 3

// Direction selects what the justification index holds
type Direction string

const (
	// ByRequirement searches requirement chunks with the candidate text
	ByRequirement Direction = "requirement"
	// ByCandidate searches candidate chunks with the requirement text,
	// restricted to the candidate being scored
	ByCandidate Direction = "candidate"
)

// ParseDirection maps a configuration value to a Direction
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case "", ByRequirement:
		return ByRequirement, nil
	case ByCandidate:
		return ByCandidate, nil
	default:
		return "", fmt.Errorf("unknown justification direction %q", s)
	}
}

// Searcher is the read side of a vector index
type Searcher interface {
	SearchFunc(ctx context.Context, query string, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error)
}

// Engine ranks candidates against a requirement. It holds no per-run state
// and is safe for concurrent use.
type Engine struct {
	scorer      similarity.TextScorer
	cache       *cache.Service
	logger      *zap.Logger
	concurrency int
	topK        int
	direction   Direction
}

// Option configures an Engine
type Option func(*Engine)

// WithTextScorer replaces the pairwise TF-IDF scorer
func WithTextScorer(s similarity.TextScorer) Option {
	return func(e *Engine) {
		e.scorer = s
	}
}

// WithCache memoizes text similarity scores
func WithCache(c *cache.Service) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithLogger sets the engine logger
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.OrNop(l)
	}
}

// WithConcurrency bounds the number of candidates scored in parallel
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithJustificationTopK sets how many passages are retrieved per candidate.
// Zero disables justification.
func WithJustificationTopK(k int) Option {
	return func(e *Engine) {
		if k >= 0 {
			e.topK = k
		}
	}
}

// WithDirection sets the justification direction
func WithDirection(d Direction) Option {
	return func(e *Engine) {
		if d != "" {
			e.direction = d
		}
	}
}

// NewEngine creates a ranking engine
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		logger:      zap.NewNop(),
		concurrency: runtime.GOMAXPROCS(0),
		topK:        DefaultJustificationTopK,
		direction:   ByRequirement,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateWeights checks that each weight is in [0,1] and that they sum to 1 ± 0.01
func ValidateWeights(w types.Weights) error {
	if err := w.Validate(); err != nil {
		return &ConfigurationError{Message: "invalid weights", Cause: err}
	}
	return nil
}

// Rank scores every candidate against req and returns them best first with
// ranks 1..n. Equal composites keep input order. Per-candidate retrieval
// failures are recorded on the result instead of failing the run. A nil index
// skips justification.
//
// If ctx is cancelled, the candidates finished so far are returned ranked,
// together with ctx.Err().
func (e *Engine) Rank(ctx context.Context, req types.Requirement, candidates []types.Candidate, w types.Weights, index Searcher) ([]types.RankedResult, error) {
	if err := ValidateWeights(w); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, &ConfigurationError{Message: "invalid requirement", Cause: err}
	}
	if len(candidates) == 0 {
		return []types.RankedResult{}, nil
	}

	scorer := e.textScorer(req)
	results := make([]*types.RankedResult, len(candidates))

	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i := range candidates {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			r := e.scoreCandidate(ctx, scorer, req, candidates[i], w, index)
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	ranked := make([]types.RankedResult, 0, len(candidates))
	for _, r := range results {
		if r != nil {
			ranked = append(ranked, *r)
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score.Composite > ranked[j].Score.Composite
	})
	for i := range ranked {
		ranked[i].Rank = i + 1
	}

	if err := ctx.Err(); err != nil {
		e.logger.Warn("ranking cancelled, returning partial results",
			zap.Int("completed", len(ranked)),
			zap.Int("candidates", len(candidates)),
		)
		return ranked, err
	}
	return ranked, nil
}

// textScorer picks the scorer for one run. Without an explicit scorer the
// requirement's term statistics are computed once.
func (e *Engine) textScorer(req types.Requirement) similarity.TextScorer {
	var s similarity.TextScorer
	if e.scorer != nil {
		s = e.scorer
	} else {
		s = pairScorer{similarity.NewPairScorer(req.Text)}
	}
	if e.cache != nil {
		s = similarity.NewCachedScorer(s, e.cache)
	}
	return s
}

type pairScorer struct {
	*similarity.PairScorer
}

func (p pairScorer) Score(_ context.Context, _, candidate types.NormalizedText) float64 {
	return p.PairScorer.Score(candidate)
}

func (e *Engine) scoreCandidate(ctx context.Context, scorer similarity.TextScorer, req types.Requirement, c types.Candidate, w types.Weights, index Searcher) types.RankedResult {
	log := e.logger.With(zap.String(logger.FieldCandidateID, c.ID))

	breakdown := computeBreakdown(
		scorer.Score(ctx, req.Text, c.Text),
		similarity.SkillOverlap(req.RequiredSkills, c.Entities.Skills),
		similarity.ExperienceScore(req.RequiredYears, c.Entities.YearsExperience),
		w,
	)
	matched, missing := similarity.MatchSkills(req.RequiredSkills, c.Entities.Skills)

	result := types.RankedResult{
		CandidateID:   c.ID,
		Score:         breakdown,
		MatchedSkills: matched,
		MissingSkills: missing,
		Justification: []types.Justification{},
	}

	if index != nil && e.topK > 0 {
		just, err := e.justify(ctx, req, c, index)
		if err != nil {
			log.Warn("justification retrieval failed", zap.Error(err))
			result.Degraded = append(result.Degraded, "retrieval: "+err.Error())
		} else {
			result.Justification = just
		}
	}

	result.Notes = generateNotes(breakdown, matched, req.RequiredYears, c.Entities.YearsExperience, len(result.Degraded) > 0)

	log.Debug("scored candidate",
		zap.Float64("text_similarity", breakdown.TextSimilarity),
		zap.Float64("skill_overlap", breakdown.SkillOverlap),
		zap.Float64("experience_score", breakdown.ExperienceScore),
		zap.Float64("composite", breakdown.Composite),
	)
	return result
}

func (e *Engine) justify(ctx context.Context, req types.Requirement, c types.Candidate, index Searcher) ([]types.Justification, error) {
	var (
		hits []vectorindex.Hit
		err  error
	)
	switch e.direction {
	case ByCandidate:
		hits, err = index.SearchFunc(ctx, req.Text.String(), e.topK, func(ch types.Chunk) bool {
			return chunking.BelongsTo(ch.SourceRef, c.ID)
		})
	default:
		hits, err = index.SearchFunc(ctx, c.Text.String(), e.topK, nil)
	}
	if err != nil {
		return nil, err
	}

	out := make([]types.Justification, 0, len(hits))
	for _, h := range hits {
		out = append(out, types.Justification{
			ChunkText: h.Chunk.Text,
			SourceRef: h.Chunk.SourceRef,
			Relevance: h.Score,
		})
	}
	return out, nil
}
