// Package parsing provides text normalization and skill-name canonicalization.
package parsing

import (
	"regexp"
	"strings"

	"github.com/jonathan/cv-ranker/internal/types"
)

var (
	// horizontalSpace matches runs of spaces, tabs, form feeds, vertical tabs and NBSPs
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00A0}]+`)
	// blankLines matches two or more consecutive blank lines
	blankLines = regexp.MustCompile(`\n{3,}`)
)

// Normalize cleans raw document text into NormalizedText.
// NUL bytes are stripped, horizontal whitespace runs collapse to one space,
// runs of blank lines collapse to a single blank line and the result is trimmed.
// It never fails; empty input yields empty output.
func Normalize(raw string) types.NormalizedText {
	if raw == "" {
		return ""
	}

	text := strings.ReplaceAll(raw, "\x00", "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(horizontalSpace.ReplaceAllString(line, " "))
	}
	text = strings.Join(lines, "\n")

	text = blankLines.ReplaceAllString(text, "\n\n")

	return types.NormalizedText(strings.TrimSpace(text))
}

// skillNormalizations maps common skill name variants to canonical names
var skillNormalizations = map[string]string{
	"golang":       "go",
	"go lang":      "go",
	"js":           "javascript",
	"ts":           "typescript",
	"k8s":          "kubernetes",
	"react.js":     "react",
	"reactjs":      "react",
	"vue.js":       "vue",
	"vuejs":        "vue",
	"nodejs":       "node.js",
	"node":         "node.js",
	"postgres":     "postgresql",
	"sklearn":      "scikit-learn",
	"scikit learn": "scikit-learn",
	"powerbi":      "power bi",
	"ml":           "machine learning",
	"py":           "python",
}

// NormalizeSkillName returns the lowercase canonical form of a skill name.
// Empty or whitespace-only names return "".
func NormalizeSkillName(skillName string) string {
	normalized := strings.ToLower(strings.TrimSpace(skillName))
	if normalized == "" {
		return ""
	}

	normalized = horizontalSpace.ReplaceAllString(normalized, " ")

	if canonical, ok := skillNormalizations[normalized]; ok {
		return canonical
	}
	return normalized
}

// NormalizeSkills canonicalizes, deduplicates and sorts a list of skill names
func NormalizeSkills(skills []string) []string {
	set := make(map[string]struct{}, len(skills))
	for _, s := range skills {
		if n := NormalizeSkillName(s); n != "" {
			set[n] = struct{}{}
		}
	}
	return types.SortedSet(set)
}
