package similarity

import (
	"math"

	"github.com/jonathan/cv-ranker/internal/parsing"
	"github.com/jonathan/cv-ranker/internal/types"
)

// SkillOverlap is the fraction of required skills present in the candidate's
// skills, compared by canonical name. It is 0 when nothing is required.
func SkillOverlap(required, candidate []string) float64 {
	matched, missing := MatchSkills(required, candidate)
	total := len(matched) + len(missing)
	if total == 0 {
		return 0
	}
	return float64(len(matched)) / float64(total)
}

// MatchSkills splits the canonical required skills into those the candidate
// has and those it lacks. Both lists are sorted and never nil.
func MatchSkills(required, candidate []string) (matched, missing []string) {
	have := make(map[string]struct{}, len(candidate))
	for _, s := range parsing.NormalizeSkills(candidate) {
		have[s] = struct{}{}
	}

	matchedSet := make(map[string]struct{})
	missingSet := make(map[string]struct{})
	for _, s := range parsing.NormalizeSkills(required) {
		if _, ok := have[s]; ok {
			matchedSet[s] = struct{}{}
		} else {
			missingSet[s] = struct{}{}
		}
	}
	return types.SortedSet(matchedSet), types.SortedSet(missingSet)
}

// ExperienceScore is 0 when no experience is required, otherwise the ratio of
// candidate to required years capped at 1. Negative candidate years count as 0.
func ExperienceScore(requiredYears, candidateYears float64) float64 {
	if requiredYears <= 0 || math.IsNaN(requiredYears) || math.IsNaN(candidateYears) {
		return 0
	}
	if candidateYears <= 0 {
		return 0
	}
	return math.Min(candidateYears/requiredYears, 1)
}
