package ranking

import "github.com/jonathan/cv-ranker/internal/types"

// Summary aggregates a ranked list for reporting
type Summary struct {
	Count          int     `json:"count"`
	MeanComposite  float64 `json:"mean_composite"`
	TopComposite   float64 `json:"top_composite"`
	TopCandidateID string  `json:"top_candidate_id,omitempty"`
	Degraded       int     `json:"degraded"`
}

// Summarize computes a Summary of results, which must already be ranked
func Summarize(results []types.RankedResult) Summary {
	s := Summary{Count: len(results)}
	if len(results) == 0 {
		return s
	}

	total := 0.0
	for _, r := range results {
		total += r.Score.Composite
		if len(r.Degraded) > 0 {
			s.Degraded++
		}
	}
	s.MeanComposite = total / float64(len(results))
	s.TopComposite = results[0].Score.Composite
	s.TopCandidateID = results[0].CandidateID
	return s
}
