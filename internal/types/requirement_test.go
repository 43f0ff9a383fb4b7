package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeights_Validate(t *testing.T) {
	tests := []struct {
		name    string
		weights Weights
		wantErr bool
	}{
		{"defaults", DefaultWeights(), false},
		{"exact one", Weights{Text: 0.4, Skill: 0.4, Experience: 0.2}, false},
		{"lower bound", Weights{Text: 0.5, Skill: 0.35, Experience: 0.14}, false},
		{"upper bound", Weights{Text: 0.5, Skill: 0.35, Experience: 0.16}, false},
		{"below range", Weights{Text: 0.5, Skill: 0.35, Experience: 0.1}, true},
		{"above range", Weights{Text: 0.5, Skill: 0.4, Experience: 0.2}, true},
		{"all zero", Weights{}, true},
		{"negative weight", Weights{Text: 1.2, Skill: -0.2, Experience: 0}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.weights.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestWeightSumError_Message(t *testing.T) {
	err := Weights{Text: 0.2, Skill: 0.2, Experience: 0.2}.Validate()
	require.Error(t, err)

	var sumErr *WeightSumError
	require.ErrorAs(t, err, &sumErr)
	assert.InDelta(t, 0.6, sumErr.Sum, 1e-9)
	assert.Contains(t, err.Error(), "0.6000")
}

func TestRequirement_Validate(t *testing.T) {
	req := Requirement{Text: "python", RequiredYears: -1}
	assert.Error(t, req.Validate())

	req.RequiredYears = 3
	assert.NoError(t, req.Validate())
}

func TestEntitySet_HasSkill(t *testing.T) {
	set := EntitySet{Skills: []string{"docker", "python", "sql"}}

	assert.True(t, set.HasSkill("python"))
	assert.True(t, set.HasSkill("sql"))
	assert.False(t, set.HasSkill("java"))
	assert.False(t, EmptyEntitySet().HasSkill("python"))
}

func TestSortedSet(t *testing.T) {
	out := SortedSet(map[string]struct{}{"b": {}, "a": {}, "c": {}})
	assert.Equal(t, []string{"a", "b", "c"}, out)
	assert.NotNil(t, SortedSet(nil))
}

func TestRankedResult_JSONMarshaling(t *testing.T) {
	result := RankedResult{
		CandidateID: "cv_001",
		Rank:        1,
		Score: ScoreBreakdown{
			TextSimilarity:  0.42,
			SkillOverlap:    1.0,
			ExperienceScore: 1.0,
			Composite:       0.71,
		},
		MatchedSkills: []string{"python", "sql"},
		MissingSkills: []string{},
		Justification: []Justification{{ChunkText: "Python and SQL required", Relevance: 0.8}},
	}

	jsonBytes, err := json.MarshalIndent(result, "", "  ")
	require.NoError(t, err)
	assert.Contains(t, string(jsonBytes), `"candidate_id": "cv_001"`)
	assert.Contains(t, string(jsonBytes), `"skill_overlap": 1`)
	assert.Contains(t, string(jsonBytes), `"chunk_text": "Python and SQL required"`)
	assert.NotContains(t, string(jsonBytes), `"degraded"`)
}
