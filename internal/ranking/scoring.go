package ranking

import (
	"fmt"
	"math"
	"strings"

	"github.com/jonathan/cv-ranker/internal/types"
)

// computeBreakdown fuses the sub-scores into a composite clamped to [0,1]
func computeBreakdown(textSim, skillOverlap, experience float64, w types.Weights) types.ScoreBreakdown {
	composite := w.Text*textSim + w.Skill*skillOverlap + w.Experience*experience
	return types.ScoreBreakdown{
		TextSimilarity:  textSim,
		SkillOverlap:    skillOverlap,
		ExperienceScore: experience,
		Composite:       clamp01(composite),
	}
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

// generateNotes creates a brief explanation of the ranking.
func generateNotes(s types.ScoreBreakdown, matchedSkills []string, requiredYears, candidateYears float64, degraded bool) string {
	var parts []string

	// Skill match description
	switch {
	case len(matchedSkills) == 0:
		parts = append(parts, "No skill matches")
	case s.SkillOverlap >= 0.7:
		parts = append(parts, fmt.Sprintf("Strong skill match (%s)", strings.Join(matchedSkills, ", ")))
	case s.SkillOverlap >= 0.4:
		parts = append(parts, fmt.Sprintf("Moderate skill match (%s)", strings.Join(matchedSkills, ", ")))
	default:
		parts = append(parts, fmt.Sprintf("Weak skill match (%s)", strings.Join(matchedSkills, ", ")))
	}

	// Experience description
	if requiredYears > 0 {
		if s.ExperienceScore >= 1 {
			parts = append(parts, fmt.Sprintf("Meets experience requirement (%s years)", formatYears(candidateYears)))
		} else {
			parts = append(parts, fmt.Sprintf("Below experience requirement (%s of %s years)", formatYears(candidateYears), formatYears(requiredYears)))
		}
	}

	// Text similarity description
	if s.TextSimilarity >= 0.5 {
		parts = append(parts, "High text similarity")
	} else if s.TextSimilarity >= 0.2 {
		parts = append(parts, "Some text similarity")
	} else {
		parts = append(parts, "Low text similarity")
	}

	if degraded {
		parts = append(parts, "Justification unavailable")
	}

	return strings.Join(parts, ". ")
}

func formatYears(y float64) string {
	if y < 0 {
		y = 0
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.1f", y), "0"), ".")
}
