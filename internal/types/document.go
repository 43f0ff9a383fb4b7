// Package types provides type definitions for structured data used throughout the cv-ranker system.
//
//nolint:revive // types is a standard Go package name pattern
package types

import "sort"

// NormalizedText is text that went through parsing.Normalize: no NUL bytes,
// no run of more than one blank line, no leading or trailing whitespace.
type NormalizedText string

// String returns the underlying text
func (t NormalizedText) String() string {
	return string(t)
}

// IsEmpty reports whether the text has no content
func (t NormalizedText) IsEmpty() bool {
	return t == ""
}

// EntitySet holds the structured attributes extracted from a single document.
// Skill and degree lists are lowercase, deduplicated and sorted.
type EntitySet struct {
	Skills          []string `json:"skills"`
	YearsExperience float64  `json:"years_experience"`
	Degrees         []string `json:"degrees"`
	Organizations   []string `json:"organizations,omitempty"`
}

// EmptyEntitySet returns an EntitySet with empty (non-nil) sets and zero years
func EmptyEntitySet() EntitySet {
	return EntitySet{
		Skills:        []string{},
		Degrees:       []string{},
		Organizations: []string{},
	}
}

// HasSkill reports whether the set contains the given (already canonical) skill
func (e EntitySet) HasSkill(skill string) bool {
	idx := sort.SearchStrings(e.Skills, skill)
	return idx < len(e.Skills) && e.Skills[idx] == skill
}

// SkillSet returns the skills as a lookup map
func (e EntitySet) SkillSet() map[string]struct{} {
	set := make(map[string]struct{}, len(e.Skills))
	for _, s := range e.Skills {
		set[s] = struct{}{}
	}
	return set
}

// SortedSet converts a lookup map into a sorted slice, never nil
func SortedSet(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Candidate is one input document (CV) to be ranked
type Candidate struct {
	ID       string         `json:"id"`
	Text     NormalizedText `json:"text"`
	Entities EntitySet      `json:"entities"`
}

// Chunk is a retrievable unit of requirement or candidate text
type Chunk struct {
	Text      string `json:"text"`
	SourceRef string `json:"source_ref"`
}

// IndexEntry is one embedded fragment of a chunk held by the vector index
type IndexEntry struct {
	Chunk    Chunk     `json:"chunk"`
	Fragment string    `json:"fragment"`
	Vector   []float32 `json:"vector"`
}
