package types

// ScoreBreakdown holds the three sub-scores and their weighted composite, all in [0,1]
type ScoreBreakdown struct {
	TextSimilarity  float64 `json:"text_similarity"`
	SkillOverlap    float64 `json:"skill_overlap"`
	ExperienceScore float64 `json:"experience_score"`
	Composite       float64 `json:"composite"`
}

// Justification is a retrieved passage supporting a candidate's ranking
type Justification struct {
	ChunkText string  `json:"chunk_text"`
	SourceRef string  `json:"source_ref,omitempty"`
	Relevance float64 `json:"relevance"`
}

// RankedResult is the explainable ranking outcome for a single candidate
type RankedResult struct {
	CandidateID   string          `json:"candidate_id"`
	Rank          int             `json:"rank"`
	Score         ScoreBreakdown  `json:"score"`
	MatchedSkills []string        `json:"matched_skills"`
	MissingSkills []string        `json:"missing_skills"`
	Justification []Justification `json:"justification"`
	Notes         string          `json:"notes"`
	// Degraded lists isolated failures that reduced this result (e.g. retrieval unavailable)
	Degraded []string `json:"degraded,omitempty"`
}

// RankedResults is the output of one ranking run
type RankedResults struct {
	RunID         string         `json:"run_id"`
	RequirementID string         `json:"requirement_id,omitempty"`
	Weights       Weights        `json:"weights"`
	Results       []RankedResult `json:"results"`
}
