package extraction

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-ranker/internal/llm"
	"github.com/jonathan/cv-ranker/internal/parsing"
	"github.com/jonathan/cv-ranker/internal/types"
)

func TestExtract_Skills(t *testing.T) {
	e := NewExtractor(DefaultVocabulary())

	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{"Case insensitive", "Expert PYTHON and Sql", []string{"python", "sql"}},
		{"Multi-word term across spaces", "Dashboards in Power   BI", []string{"power bi"}},
		{"Sorted and deduplicated", "sql, python, SQL, Python", []string{"python", "sql"}},
		{"No skills", "Gardening and cooking", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			set := e.Extract(context.Background(), parsing.Normalize(tt.text), LangAuto)
			assert.Equal(t, tt.expected, set.Skills)
		})
	}
}

func TestExtract_CanonicalizesVocabulary(t *testing.T) {
	e := NewExtractor([]string{"Golang", "K8s"})
	set := e.Extract(context.Background(), "Built golang services on k8s", LangAuto)
	assert.Equal(t, []string{"go", "kubernetes"}, set.Skills)
}

func TestExtractYears(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		lang     LanguageHint
		expected float64
	}{
		{"French ans", "5 ans d'expérience en Python", LangAuto, 5},
		{"English years plus", "3+ years of SQL", LangAuto, 3},
		{"Maximum wins", "2 ans chez A, puis 7 ans chez B", LangAuto, 7},
		{"Decimal comma", "2,5 ans", LangAuto, 2.5},
		{"Decimal point", "1.5 years", LangAuto, 1.5},
		{"Années", "10 années d'expérience", LangFrench, 10},
		{"Range takes upper bound", "2-3 ans", LangAuto, 3},
		{"No years", "Python developer", LangAuto, 0},
		{"Unit needs word boundary", "5 ansible playbooks", LangAuto, 0},
		{"French hint ignores English unit", "4 years", LangFrench, 0},
		{"English hint ignores French unit", "4 ans", LangEnglish, 0},
		{"English yrs", "6 yrs", LangEnglish, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractYears(tt.text, tt.lang))
		})
	}
}

func TestExtract_Degrees(t *testing.T) {
	e := NewExtractor(nil)
	set := e.Extract(context.Background(), parsing.Normalize("Master M2 Data Science, Bac+5, PhD"), LangAuto)
	assert.Equal(t, []string{"bac+5", "m2", "master", "phd"}, set.Degrees)
}

func TestExtract_EmptyText(t *testing.T) {
	e := NewExtractor(DefaultVocabulary())
	set := e.Extract(context.Background(), "", LangAuto)

	assert.Equal(t, types.EmptyEntitySet(), set)
	assert.NotNil(t, set.Skills)
	assert.Zero(t, set.YearsExperience)
}

type fakeRecognizer struct {
	out Recognized
	err error
}

func (f fakeRecognizer) Recognize(context.Context, string, LanguageHint) (Recognized, error) {
	return f.out, f.err
}

func TestExtract_RecognizerContributes(t *testing.T) {
	e := NewExtractor(nil, WithRecognizer(fakeRecognizer{out: Recognized{
		Organizations: []string{"Acme Corp", " Acme Corp ", "Université Paris-Saclay"},
		Degrees:       []string{"Ingénieur"},
	}}))

	set := e.Extract(context.Background(), "Master chez Acme Corp", LangFrench)
	assert.Equal(t, []string{"ingénieur", "master"}, set.Degrees)
	assert.Equal(t, []string{"Acme Corp", "Université Paris-Saclay"}, set.Organizations)
}

func TestExtract_RecognizerFailureIsIgnored(t *testing.T) {
	e := NewExtractor(DefaultVocabulary(), WithRecognizer(fakeRecognizer{err: errors.New("quota exceeded")}))

	set := e.Extract(context.Background(), "Python, 3 ans, master", LangAuto)
	assert.Equal(t, []string{"python"}, set.Skills)
	assert.Equal(t, 3.0, set.YearsExperience)
	assert.Equal(t, []string{"master"}, set.Degrees)
	assert.Equal(t, []string{}, set.Organizations)
}

func TestParseLanguageHint(t *testing.T) {
	assert.Equal(t, LangFrench, ParseLanguageHint("FR"))
	assert.Equal(t, LangEnglish, ParseLanguageHint("english"))
	assert.Equal(t, LangAuto, ParseLanguageHint(""))
	assert.Equal(t, LangAuto, ParseLanguageHint("de"))
}

func TestLoadVocabulary(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		content  string
		expected []string
		wantErr  bool
	}{
		{"YAML list", "- Python\n- Golang\n- python\n", []string{"go", "python"}, false},
		{"YAML mapping", "skills:\n  - SQL\n  - Power BI\n", []string{"power bi", "sql"}, false},
		{"JSON list", `["Docker", "K8s"]`, []string{"docker", "kubernetes"}, false},
		{"Empty list", "[]", nil, true},
		{"Malformed", "skills: [unterminated", nil, true},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, "vocab"+string(rune('a'+i))+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o644))

			vocab, err := LoadVocabulary(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, vocab)
		})
	}
}

func TestLoadVocabulary_MissingFile(t *testing.T) {
	_, err := LoadVocabulary(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read vocabulary file")
}

func TestDefaultVocabulary_ReturnsCopy(t *testing.T) {
	v := DefaultVocabulary()
	v[0] = "changed"
	assert.Equal(t, "python", DefaultVocabulary()[0])
}

type fakeLLM struct {
	response string
	err      error
	prompt   string
}

func (f *fakeLLM) GenerateJSON(_ context.Context, prompt string, _ llm.ModelTier) (string, error) {
	f.prompt = prompt
	return f.response, f.err
}
func (f *fakeLLM) Embed(context.Context, string) ([]float32, error) { return nil, nil }
func (f *fakeLLM) EmbeddingModel() string                           { return "fake" }
func (f *fakeLLM) Close() error                                     { return nil }

func TestLLMRecognizer(t *testing.T) {
	client := &fakeLLM{response: `{"organizations": ["Acme"], "degrees": ["master"]}`}
	r := NewLLMRecognizer(client)

	out, err := r.Recognize(context.Background(), "Master chez Acme", LangFrench)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme"}, out.Organizations)
	assert.Equal(t, []string{"master"}, out.Degrees)
	assert.Contains(t, client.prompt, "this text is French")
	assert.Contains(t, client.prompt, "Master chez Acme")
}

func TestLLMRecognizer_Errors(t *testing.T) {
	_, err := NewLLMRecognizer(&fakeLLM{err: errors.New("boom")}).Recognize(context.Background(), "x", LangAuto)
	assert.Error(t, err)

	_, err = NewLLMRecognizer(&fakeLLM{response: "not json"}).Recognize(context.Background(), "x", LangAuto)
	assert.Error(t, err)

	_, err = NewLLMRecognizer(nil).Recognize(context.Background(), "x", LangAuto)
	assert.Error(t, err)
}

func TestExtractionError(t *testing.T) {
	cause := errors.New("timeout")
	err := &ExtractionError{Message: "recognizer", Cause: cause}
	assert.Equal(t, "extraction error: recognizer: timeout", err.Error())
	assert.ErrorIs(t, err, cause)
}
