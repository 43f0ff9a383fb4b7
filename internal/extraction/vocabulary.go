package extraction

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/jonathan/cv-ranker/internal/parsing"
)

// defaultVocabulary is the built-in skill lexicon
var defaultVocabulary = []string{
	"python", "pandas", "numpy", "scikit-learn", "tensorflow", "pytorch",
	"sql", "power bi", "excel", "databricks", "spark", "docker", "kubernetes",
	"java", "javascript", "typescript", "angular", "react", "flask", "fastapi",
	"nlp", "ocr", "dataiku", "airflow", "git", "azure", "gcp", "aws",
}

// DefaultVocabulary returns a copy of the built-in skill lexicon
func DefaultVocabulary() []string {
	out := make([]string, len(defaultVocabulary))
	copy(out, defaultVocabulary)
	return out
}

// vocabularyFile accepts either a bare list or a {skills: [...]} document
type vocabularyFile struct {
	Skills []string `yaml:"skills"`
}

// LoadVocabulary reads a skill vocabulary from a YAML or JSON file.
// The file holds either a list of terms or a mapping with a "skills" list.
// Terms are canonicalized and deduplicated.
func LoadVocabulary(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read vocabulary file: %w", err)
	}

	var terms []string
	if err := yaml.Unmarshal(data, &terms); err != nil {
		var doc vocabularyFile
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, fmt.Errorf("failed to parse vocabulary file %s: %w", path, err)
		}
		terms = doc.Skills
	}

	vocab := parsing.NormalizeSkills(terms)
	if len(vocab) == 0 {
		return nil, fmt.Errorf("vocabulary file %s contains no terms", path)
	}
	return vocab, nil
}

// prepareVocabulary lowercases terms and collapses their whitespace for matching
func prepareVocabulary(vocab []string) []string {
	seen := make(map[string]struct{}, len(vocab))
	out := make([]string, 0, len(vocab))
	for _, term := range vocab {
		t := strings.Join(strings.Fields(strings.ToLower(term)), " ")
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
