// Package similarity computes the lexical and attribute sub-scores used by the
// ranking engine.
package similarity

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/jonathan/cv-ranker/internal/types"
)

// tokenPattern matches words of two or more letters or digits
var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}_]{2,}`)

// termCounts holds raw term frequencies of one document
type termCounts map[string]float64

func countTerms(text types.NormalizedText) termCounts {
	counts := make(termCounts)
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(text.String()), -1) {
		counts[tok]++
	}
	return counts
}

// TextSimilarity is the cosine similarity of the TF-IDF vectors of a and b,
// where vocabulary and document frequencies come from the pair alone.
// Idf is smoothed: ln((1+n)/(1+df)) + 1 with n = 2. The result is in [0,1];
// it is 0 when either text has no tokens.
func TextSimilarity(a, b types.NormalizedText) float64 {
	return pairCosine(countTerms(a), countTerms(b))
}

func pairCosine(a, b termCounts) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	vocab := make([]string, 0, len(a)+len(b))
	for t := range a {
		vocab = append(vocab, t)
	}
	for t := range b {
		if _, ok := a[t]; !ok {
			vocab = append(vocab, t)
		}
	}
	// Fixed summation order keeps scores bit-identical across runs
	sort.Strings(vocab)

	const n = 2.0
	var dot, normA, normB float64
	for _, t := range vocab {
		ca, cb := a[t], b[t]
		df := 0.0
		if ca > 0 {
			df++
		}
		if cb > 0 {
			df++
		}
		idf := math.Log((1+n)/(1+df)) + 1

		wa, wb := ca*idf, cb*idf
		dot += wa * wb
		normA += wa * wa
		normB += wb * wb
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// PairScorer holds the term statistics of one requirement so that scoring many
// candidates against it does not re-tokenize the requirement. Scores equal
// TextSimilarity(requirement, candidate).
type PairScorer struct {
	requirement termCounts
}

// NewPairScorer prepares a scorer for requirement
func NewPairScorer(requirement types.NormalizedText) *PairScorer {
	return &PairScorer{requirement: countTerms(requirement)}
}

// Score returns the text similarity of candidate to the prepared requirement
func (p *PairScorer) Score(candidate types.NormalizedText) float64 {
	return pairCosine(p.requirement, countTerms(candidate))
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
