// Package pipeline orchestrates a full ranking run: normalization, entity
// extraction, justification index build, ranking and optional persistence.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jonathan/cv-ranker/internal/cache"
	"github.com/jonathan/cv-ranker/internal/chunking"
	"github.com/jonathan/cv-ranker/internal/db"
	"github.com/jonathan/cv-ranker/internal/extraction"
	"github.com/jonathan/cv-ranker/internal/logger"
	"github.com/jonathan/cv-ranker/internal/observability"
	"github.com/jonathan/cv-ranker/internal/parsing"
	"github.com/jonathan/cv-ranker/internal/ranking"
	"github.com/jonathan/cv-ranker/internal/types"
	"github.com/jonathan/cv-ranker/internal/vectorindex"
)

// Step names reported through progress events
const (
	StepNormalize = "normalize"
	StepExtract   = "extract"
	StepIndex     = "index"
	StepRank      = "rank"
)

// DefaultRequirementID is used for chunk references when the requirement has no ID
const DefaultRequirementID = "requirement"

// RequirementDoc is the requirement as read from input (requirement.schema.json)
type RequirementDoc struct {
	ID             string   `json:"id,omitempty"`
	Text           string   `json:"text"`
	RequiredSkills []string `json:"required_skills,omitempty"`
	RequiredYears  float64  `json:"required_years,omitempty"`
}

// CandidateDoc is one candidate as read from input (candidates.schema.json)
type CandidateDoc struct {
	ID   string `json:"id,omitempty"`
	Text string `json:"text"`
}

// ProgressEvent represents a progress update during pipeline execution
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// RunRecorder persists ranking runs. *db.DB implements it.
type RunRecorder interface {
	CreateRun(ctx context.Context, runID uuid.UUID, requirementID string, candidates int) error
	CompleteRun(ctx context.Context, runID uuid.UUID, status string, results any) error
}

// RunOptions holds configuration for running the pipeline
type RunOptions struct {
	Requirement RequirementDoc
	Candidates  []CandidateDoc
	Weights     types.Weights
	Language    extraction.LanguageHint

	Extractor *extraction.Extractor // Defaults to the built-in vocabulary
	Embedder  vectorindex.Embedder  // Defaults to a hashing embedder
	Split     chunking.SplitConfig
	Cache     *cache.Service // Nil disables caching

	// IndexStore persists built indexes keyed by their content so an
	// identical index is restored instead of re-embedded. Nil disables it.
	IndexStore vectorindex.Store

	TopK        int // Justification passages per candidate; 0 disables justification
	Concurrency int
	Direction   ranking.Direction

	Recorder   RunRecorder           // Nil skips persistence
	Printer    *observability.Printer // Nil disables verbose output
	Logger     *zap.Logger
	OnProgress ProgressCallback
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, runID uuid.UUID, step, message string) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Step: step, Message: message, RunID: runID.String()})
	}
}

// Run ranks the candidates of opts against its requirement.
// Invalid weights fail before any work. Index build and retrieval failures
// degrade individual results instead of failing the run. On cancellation the
// partial results are returned together with the context error.
func Run(ctx context.Context, opts RunOptions) (*types.RankedResults, error) {
	if err := ranking.ValidateWeights(opts.Weights); err != nil {
		return nil, err
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	if opts.Extractor == nil {
		opts.Extractor = extraction.NewExtractor(extraction.DefaultVocabulary())
	}
	if opts.Embedder == nil {
		opts.Embedder = vectorindex.NewHashingEmbedder(0)
	}

	runID := uuid.New()
	log := logger.WithFields(opts.Logger, zap.String(logger.FieldRunID, runID.String()))

	// Step 1: normalize and extract the requirement
	req, err := buildRequirement(ctx, opts)
	if err != nil {
		return nil, err
	}
	emitProgress(&opts, runID, StepNormalize, fmt.Sprintf("Requirement has %d skills, %g years", len(req.RequiredSkills), req.RequiredYears))
	if opts.Printer != nil {
		opts.Printer.PrintRequirement(req)
	}

	// Step 2: normalize and extract candidates in parallel
	candidates, err := buildCandidates(ctx, opts)
	if err != nil {
		return nil, err
	}
	emitProgress(&opts, runID, StepExtract, fmt.Sprintf("Extracted entities from %d candidates", len(candidates)))

	if opts.Recorder != nil {
		if err := opts.Recorder.CreateRun(ctx, runID, req.ID, len(candidates)); err != nil {
			log.Warn("failed to record run, continuing without persistence", zap.Error(err))
			opts.Recorder = nil
		}
	}

	// Step 3: build the justification index
	var searcher ranking.Searcher
	if opts.TopK > 0 {
		searcher = buildIndex(ctx, opts, req, candidates, log)
		emitProgress(&opts, runID, StepIndex, "Built justification index")
	}

	// Step 4: rank
	engine := ranking.NewEngine(
		ranking.WithCache(opts.Cache),
		ranking.WithLogger(log),
		ranking.WithConcurrency(opts.Concurrency),
		ranking.WithJustificationTopK(opts.TopK),
		ranking.WithDirection(opts.Direction),
	)
	results, rankErr := engine.Rank(ctx, req, candidates, opts.Weights, searcher)

	var cfgErr *ranking.ConfigurationError
	if errors.As(rankErr, &cfgErr) {
		finish(ctx, opts, runID, db.RunStatusFailed, nil, log)
		return nil, rankErr
	}

	out := &types.RankedResults{
		RunID:         runID.String(),
		RequirementID: req.ID,
		Weights:       opts.Weights,
		Results:       results,
	}

	status := db.RunStatusCompleted
	if rankErr != nil {
		status = db.RunStatusCancelled
	}
	finish(ctx, opts, runID, status, out, log)
	emitProgress(&opts, runID, StepRank, fmt.Sprintf("Ranked %d of %d candidates", len(results), len(candidates)))

	if opts.Printer != nil {
		opts.Printer.PrintRankedResults(results)
		opts.Printer.PrintSummary(out.RunID, ranking.Summarize(results))
	}

	return out, rankErr
}

// finish records the final status of a run, even when ctx is cancelled
func finish(ctx context.Context, opts RunOptions, runID uuid.UUID, status string, results *types.RankedResults, log *zap.Logger) {
	if opts.Recorder == nil {
		return
	}
	if err := opts.Recorder.CompleteRun(context.WithoutCancel(ctx), runID, status, results); err != nil {
		log.Warn("failed to complete run record", zap.Error(err))
	}
}

// buildRequirement normalizes the requirement. A requirement without explicit
// skills gets the skills and experience extracted from its own text.
func buildRequirement(ctx context.Context, opts RunOptions) (types.Requirement, error) {
	doc := opts.Requirement
	req := types.Requirement{
		ID:             doc.ID,
		Text:           parsing.Normalize(doc.Text),
		RequiredSkills: parsing.NormalizeSkills(doc.RequiredSkills),
		RequiredYears:  doc.RequiredYears,
	}
	if req.Text.IsEmpty() {
		return req, &ranking.ConfigurationError{Message: "requirement text is empty"}
	}

	if len(req.RequiredSkills) == 0 {
		entities := opts.Extractor.Extract(ctx, req.Text, opts.Language)
		req.RequiredSkills = entities.Skills
		if req.RequiredYears == 0 {
			req.RequiredYears = entities.YearsExperience
		}
	}
	return req, nil
}

// buildCandidates normalizes candidate text and extracts their entities.
// Missing IDs are generated. Duplicate IDs are a configuration error.
func buildCandidates(ctx context.Context, opts RunOptions) ([]types.Candidate, error) {
	candidates := make([]types.Candidate, len(opts.Candidates))
	seen := make(map[string]struct{}, len(opts.Candidates))
	for i, doc := range opts.Candidates {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, dup := seen[id]; dup {
			return nil, &ranking.ConfigurationError{Message: fmt.Sprintf("duplicate candidate id %q", id)}
		}
		seen[id] = struct{}{}
		candidates[i] = types.Candidate{ID: id, Text: parsing.Normalize(doc.Text)}
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for i := range candidates {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			candidates[i].Entities = opts.Extractor.Extract(gCtx, candidates[i].Text, opts.Language)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("candidate extraction interrupted: %w", err)
	}
	return candidates, nil
}

// buildIndex embeds the chunks justification searches run against and
// freezes the index. A failed build yields a searcher that reports the
// failure for every candidate.
func buildIndex(ctx context.Context, opts RunOptions, req types.Requirement, candidates []types.Candidate, log *zap.Logger) ranking.Searcher {
	embedder := opts.Embedder
	if opts.Cache != nil {
		embedder = vectorindex.NewCachedEmbedder(embedder, opts.Cache)
	}

	var chunks []types.Chunk
	if opts.Direction == ranking.ByCandidate {
		for _, c := range candidates {
			chunks = append(chunks, chunking.Chunk(c.Text, c.ID, chunking.DefaultMaxChunkChars)...)
		}
	} else {
		id := req.ID
		if id == "" {
			id = DefaultRequirementID
		}
		chunks = chunking.Chunk(req.Text, id, chunking.DefaultMaxChunkChars)
	}

	idxOpts := []vectorindex.Option{vectorindex.WithLogger(log)}
	if opts.Split.MaxChars > 0 {
		idxOpts = append(idxOpts, vectorindex.WithSplitConfig(opts.Split))
	}
	index := vectorindex.New(embedder, idxOpts...)
	name := indexName(embedder.Name(), opts.Split, chunks)

	restored := false
	if opts.IndexStore != nil {
		if err := index.Restore(ctx, opts.IndexStore, name); err != nil {
			log.Warn("failed to restore justification index", zap.String("index", name), zap.Error(err))
		}
		restored = index.Len() > 0
	}

	if !restored {
		if err := index.Add(ctx, chunks); err != nil {
			log.Warn("failed to build justification index", zap.Error(err))
			return unavailableIndex{err: err}
		}
		if opts.IndexStore != nil {
			if err := index.Snapshot(ctx, opts.IndexStore, name); err != nil {
				log.Warn("failed to persist justification index", zap.String("index", name), zap.Error(err))
			}
		}
	}
	index.Freeze()

	log.Debug("justification index ready",
		zap.String("index", name),
		zap.Bool("restored", restored),
		zap.Int("chunks", index.ChunkCount()),
		zap.Int("fragments", index.Len()),
		zap.String("embedder", embedder.Name()),
	)
	return index
}

// indexName derives a stable store name from everything that determines the
// index content
func indexName(embedder string, split chunking.SplitConfig, chunks []types.Chunk) string {
	return "idx-" + cache.Key("index", embedder, split, chunks)[:24]
}

// unavailableIndex fails every search with the index build error
type unavailableIndex struct {
	err error
}

func (u unavailableIndex) SearchFunc(context.Context, string, int, vectorindex.Filter) ([]vectorindex.Hit, error) {
	return nil, &vectorindex.RetrievalError{Op: "build index", Cause: u.err}
}
