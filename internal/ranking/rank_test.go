package ranking

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/cv-ranker/internal/cache"
	"github.com/jonathan/cv-ranker/internal/chunking"
	"github.com/jonathan/cv-ranker/internal/extraction"
	"github.com/jonathan/cv-ranker/internal/parsing"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/jonathan/cv-ranker/internal/vectorindex"
)

func newCandidate(t *testing.T, id, raw string) types.Candidate {
	t.Helper()
	text := parsing.Normalize(raw)
	ex := extraction.NewExtractor(extraction.DefaultVocabulary())
	return types.Candidate{ID: id, Text: text, Entities: ex.Extract(t.Context(), text, extraction.LangAuto)}
}

// fixedScorer returns a preset text similarity per candidate text
type fixedScorer map[types.NormalizedText]float64

func (f fixedScorer) Score(_ context.Context, _, candidate types.NormalizedText) float64 {
	return f[candidate]
}

// fakeSearcher records queries and returns preset hits or an error
type fakeSearcher struct {
	hits  []vectorindex.Hit
	err   error
	calls atomic.Int32
}

func (f *fakeSearcher) SearchFunc(_ context.Context, _ string, k int, filter vectorindex.Filter) ([]vectorindex.Hit, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []vectorindex.Hit
	for _, h := range f.hits {
		if filter != nil && !filter(h.Chunk) {
			continue
		}
		out = append(out, h)
		if len(out) == k {
			break
		}
	}
	return out, nil
}

func TestRank_EndToEnd(t *testing.T) {
	req := types.Requirement{
		ID:             "req-1",
		Text:           parsing.Normalize("Data engineer Python SQL"),
		RequiredSkills: []string{"python", "sql"},
		RequiredYears:  3,
	}
	a := newCandidate(t, "A", "5 ans d'expérience Python SQL")
	b := newCandidate(t, "B", "1 an JavaScript")

	engine := NewEngine()
	results, err := engine.Rank(t.Context(), req, []types.Candidate{b, a}, types.DefaultWeights(), nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "A", results[0].CandidateID)
	assert.Equal(t, 1, results[0].Rank)
	assert.Equal(t, "B", results[1].CandidateID)
	assert.Equal(t, 2, results[1].Rank)

	assert.InDelta(t, 1.0, results[0].Score.SkillOverlap, 1e-9)
	assert.InDelta(t, 0.0, results[1].Score.SkillOverlap, 1e-9)
	assert.Greater(t, results[0].Score.Composite, results[1].Score.Composite)

	assert.Equal(t, []string{"python", "sql"}, results[0].MatchedSkills)
	assert.Equal(t, []string{}, results[0].MissingSkills)
	assert.Equal(t, []string{"python", "sql"}, results[1].MissingSkills)
	assert.InDelta(t, 1.0, results[0].Score.ExperienceScore, 1e-9)
	assert.InDelta(t, 1.0/3.0, results[1].Score.ExperienceScore, 1e-9)

	assert.Contains(t, results[0].Notes, "Strong skill match (python, sql)")
	assert.Contains(t, results[1].Notes, "No skill matches")
	assert.Contains(t, results[1].Notes, "Below experience requirement (1 of 3 years)")
}

func TestRank_InvalidWeights(t *testing.T) {
	var searcher fakeSearcher
	scored := 0
	engine := NewEngine(WithTextScorer(countingScorer(func() { scored++ })))

	_, err := engine.Rank(t.Context(), types.Requirement{Text: "python"},
		[]types.Candidate{{ID: "a", Text: "python"}},
		types.Weights{Text: 0.5, Skill: 0.5, Experience: 0.5}, &searcher)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	var sumErr *types.WeightSumError
	assert.ErrorAs(t, err, &sumErr)
	assert.Zero(t, scored)
	assert.Zero(t, searcher.calls.Load())
}

func TestRank_InvalidRequirement(t *testing.T) {
	engine := NewEngine()
	_, err := engine.Rank(t.Context(), types.Requirement{Text: "python", RequiredYears: -2},
		[]types.Candidate{{ID: "a"}}, types.DefaultWeights(), nil)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "invalid requirement")
}

func TestRank_EmptyCandidates(t *testing.T) {
	results, err := NewEngine().Rank(t.Context(), types.Requirement{Text: "python"}, nil, types.DefaultWeights(), nil)
	require.NoError(t, err)
	require.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRank_StableOrderForTies(t *testing.T) {
	var candidates []types.Candidate
	for _, id := range []string{"c1", "c2", "c3", "c4", "c5"} {
		candidates = append(candidates, types.Candidate{ID: id, Text: "identical text", Entities: types.EmptyEntitySet()})
	}
	req := types.Requirement{Text: "identical text"}

	for _, concurrency := range []int{1, 4} {
		engine := NewEngine(WithConcurrency(concurrency))
		results, err := engine.Rank(t.Context(), req, candidates, types.DefaultWeights(), nil)
		require.NoError(t, err)

		var ids []string
		for i, r := range results {
			ids = append(ids, r.CandidateID)
			assert.Equal(t, i+1, r.Rank)
		}
		assert.Equal(t, []string{"c1", "c2", "c3", "c4", "c5"}, ids)
	}
}

func TestRank_Deterministic(t *testing.T) {
	req := types.Requirement{Text: parsing.Normalize("Go PostgreSQL Kubernetes"), RequiredSkills: []string{"go", "kubernetes"}, RequiredYears: 4}
	candidates := []types.Candidate{
		newCandidate(t, "a", "Golang developer, 6 years, Kubernetes"),
		newCandidate(t, "b", "PostgreSQL DBA 2 years"),
		newCandidate(t, "c", "Kubernetes operator 3 yrs"),
	}

	engine := NewEngine(WithConcurrency(3))
	first, err := engine.Rank(t.Context(), req, candidates, types.DefaultWeights(), nil)
	require.NoError(t, err)
	second, err := engine.Rank(t.Context(), req, candidates, types.DefaultWeights(), nil)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRank_CompositeInRange(t *testing.T) {
	scores := fixedScorer{"high": 1, "low": 0, "mid": 0.4}
	candidates := []types.Candidate{
		{ID: "high", Text: "high", Entities: types.EntitySet{Skills: []string{"go"}, YearsExperience: 20}},
		{ID: "low", Text: "low"},
		{ID: "mid", Text: "mid", Entities: types.EntitySet{YearsExperience: 1}},
	}
	req := types.Requirement{Text: "x", RequiredSkills: []string{"go"}, RequiredYears: 2}

	weights := []types.Weights{
		types.DefaultWeights(),
		{Text: 1},
		{Skill: 1},
		{Experience: 1},
		{Text: 0.34, Skill: 0.34, Experience: 0.33},
	}
	for _, w := range weights {
		results, err := NewEngine(WithTextScorer(scores)).Rank(t.Context(), req, candidates, w, nil)
		require.NoError(t, err)
		for _, r := range results {
			assert.GreaterOrEqual(t, r.Score.Composite, 0.0)
			assert.LessOrEqual(t, r.Score.Composite, 1.0)
		}
	}
}

func TestRank_JustificationByRequirement(t *testing.T) {
	req := types.Requirement{
		ID:   "req",
		Text: parsing.Normalize("Strong Python skills\nSQL and data modelling\nTeam leadership"),
	}
	index := vectorindex.New(vectorindex.NewHashingEmbedder(256))
	require.NoError(t, index.Add(t.Context(), chunking.Chunk(req.Text, req.ID, chunking.DefaultMaxChunkChars)))
	index.Freeze()

	cand := types.Candidate{ID: "a", Text: parsing.Normalize("Python developer with SQL")}
	results, err := NewEngine(WithJustificationTopK(2)).Rank(t.Context(), req, []types.Candidate{cand}, types.DefaultWeights(), index)
	require.NoError(t, err)
	require.Len(t, results, 1)

	just := results[0].Justification
	require.NotEmpty(t, just)
	assert.LessOrEqual(t, len(just), 2)
	for i, j := range just {
		assert.True(t, chunking.BelongsTo(j.SourceRef, "req"))
		assert.GreaterOrEqual(t, j.Relevance, 0.0)
		assert.LessOrEqual(t, j.Relevance, 1.0)
		if i > 0 {
			assert.LessOrEqual(t, j.Relevance, just[i-1].Relevance)
		}
	}
	assert.Empty(t, results[0].Degraded)
}

func TestRank_JustificationByCandidate_IDsSharingPrefix(t *testing.T) {
	searcher := &fakeSearcher{hits: []vectorindex.Hit{
		{Chunk: types.Chunk{Text: "python sql data engineer", SourceRef: chunking.SourceRef("a#1", 0)}, Score: 0.9},
		{Chunk: types.Chunk{Text: "cooking gardening", SourceRef: chunking.SourceRef("a", 0)}, Score: 0.4},
	}}
	candidates := []types.Candidate{{ID: "a", Text: "cooking gardening"}, {ID: "a#1", Text: "python sql data engineer"}}

	engine := NewEngine(WithDirection(ByCandidate))
	results, err := engine.Rank(t.Context(), types.Requirement{Text: "python sql"}, candidates, types.DefaultWeights(), searcher)
	require.NoError(t, err)

	byID := map[string]types.RankedResult{}
	for _, r := range results {
		byID[r.CandidateID] = r
	}
	require.Len(t, byID["a"].Justification, 1)
	assert.Equal(t, "cooking gardening", byID["a"].Justification[0].ChunkText)
	require.Len(t, byID["a#1"].Justification, 1)
	assert.Equal(t, "python sql data engineer", byID["a#1"].Justification[0].ChunkText)
}

func TestRank_JustificationByCandidate(t *testing.T) {
	searcher := &fakeSearcher{hits: []vectorindex.Hit{
		{Chunk: types.Chunk{Text: "b line", SourceRef: chunking.SourceRef("b", 0)}, Score: 0.9},
		{Chunk: types.Chunk{Text: "a line", SourceRef: chunking.SourceRef("a", 0)}, Score: 0.8},
		{Chunk: types.Chunk{Text: "a other", SourceRef: chunking.SourceRef("a", 1)}, Score: 0.5},
	}}
	candidates := []types.Candidate{{ID: "a", Text: "a"}, {ID: "b", Text: "b"}}

	engine := NewEngine(WithDirection(ByCandidate))
	results, err := engine.Rank(t.Context(), types.Requirement{Text: "req"}, candidates, types.DefaultWeights(), searcher)
	require.NoError(t, err)

	byID := map[string]types.RankedResult{}
	for _, r := range results {
		byID[r.CandidateID] = r
	}
	require.Len(t, byID["a"].Justification, 2)
	assert.Equal(t, "a line", byID["a"].Justification[0].ChunkText)
	assert.InDelta(t, 0.8, byID["a"].Justification[0].Relevance, 1e-9)
	require.Len(t, byID["b"].Justification, 1)
	assert.Equal(t, "b line", byID["b"].Justification[0].ChunkText)
}

func TestRank_RetrievalFailureIsolated(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	searcher := &fakeSearcher{err: &vectorindex.RetrievalError{Op: "embed query", Cause: errors.New("embedding unavailable")}}
	candidates := []types.Candidate{
		{ID: "a", Text: "python sql", Entities: types.EntitySet{Skills: []string{"python"}}},
		{ID: "b", Text: "java"},
	}

	engine := NewEngine(WithLogger(zap.New(core)))
	results, err := engine.Rank(t.Context(), types.Requirement{Text: "python sql", RequiredSkills: []string{"python"}}, candidates, types.DefaultWeights(), searcher)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, r := range results {
		assert.Empty(t, r.Justification)
		require.Len(t, r.Degraded, 1)
		assert.Contains(t, r.Degraded[0], "retrieval:")
		assert.Contains(t, r.Notes, "Justification unavailable")
	}
	assert.Equal(t, "a", results[0].CandidateID)
	assert.InDelta(t, 1.0, results[0].Score.SkillOverlap, 1e-9)
	assert.Equal(t, 2, logs.FilterMessage("justification retrieval failed").Len())

	summary := Summarize(results)
	assert.Equal(t, 2, summary.Degraded)
	assert.Equal(t, "a", summary.TopCandidateID)
}

func TestRank_JustificationDisabled(t *testing.T) {
	searcher := &fakeSearcher{}
	results, err := NewEngine(WithJustificationTopK(0)).Rank(t.Context(), types.Requirement{Text: "x"},
		[]types.Candidate{{ID: "a", Text: "x"}}, types.DefaultWeights(), searcher)
	require.NoError(t, err)
	assert.Zero(t, searcher.calls.Load())
	assert.Equal(t, []types.Justification{}, results[0].Justification)
}

// countingScorer calls fn on every score
type countingScorer func()

func (c countingScorer) Score(_ context.Context, _, _ types.NormalizedText) float64 {
	c()
	return 0.5
}

func TestRank_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	results, err := NewEngine().Rank(ctx, types.Requirement{Text: "x"},
		[]types.Candidate{{ID: "a"}, {ID: "b"}}, types.DefaultWeights(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestRank_CancelledMidRun(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	engine := NewEngine(WithConcurrency(1), WithTextScorer(countingScorer(cancel)))
	candidates := []types.Candidate{{ID: "a"}, {ID: "b"}, {ID: "c"}}

	results, err := engine.Rank(ctx, types.Requirement{Text: "x"}, candidates, types.DefaultWeights(), nil)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].CandidateID)
	assert.Equal(t, 1, results[0].Rank)
}

func TestRank_CachedTextScores(t *testing.T) {
	calls := 0
	svc := cache.New(nil, 0)
	engine := NewEngine(WithTextScorer(countingScorer(func() { calls++ })), WithCache(svc), WithConcurrency(1))

	req := types.Requirement{Text: "python"}
	candidates := []types.Candidate{{ID: "a", Text: "python sql"}}
	for range 3 {
		_, err := engine.Rank(t.Context(), req, candidates, types.DefaultWeights(), nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, calls)
}

func TestParseDirection(t *testing.T) {
	tests := []struct {
		input   string
		want    Direction
		wantErr bool
	}{
		{"", ByRequirement, false},
		{"requirement", ByRequirement, false},
		{"candidate", ByCandidate, false},
		{"sideways", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDirection(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
