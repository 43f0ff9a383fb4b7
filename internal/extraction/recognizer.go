package extraction

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/cv-ranker/internal/llm"
	"github.com/jonathan/cv-ranker/internal/prompts"
)

// Recognized holds the entities a Recognizer adds on top of the rule-based pass
type Recognized struct {
	Organizations []string `json:"organizations"`
	Degrees       []string `json:"degrees"`
}

// Recognizer is an optional named-entity recognition capability
type Recognizer interface {
	Recognize(ctx context.Context, text string, lang LanguageHint) (Recognized, error)
}

// NopRecognizer recognizes nothing. It is the default.
type NopRecognizer struct{}

// Recognize implements Recognizer
func (NopRecognizer) Recognize(context.Context, string, LanguageHint) (Recognized, error) {
	return Recognized{}, nil
}

// LLMRecognizer asks a language model for organizations and degrees
type LLMRecognizer struct {
	client llm.Client
	tier   llm.ModelTier
}

// NewLLMRecognizer creates a recognizer backed by client
func NewLLMRecognizer(client llm.Client) *LLMRecognizer {
	return &LLMRecognizer{client: client, tier: llm.TierLite}
}

// Recognize implements Recognizer
func (r *LLMRecognizer) Recognize(ctx context.Context, text string, lang LanguageHint) (Recognized, error) {
	if r.client == nil {
		return Recognized{}, fmt.Errorf("no LLM client configured")
	}

	prompt := buildRecognitionPrompt(text, lang)
	raw, err := r.client.GenerateJSON(ctx, prompt, r.tier)
	if err != nil {
		return Recognized{}, fmt.Errorf("failed to recognize entities: %w", err)
	}

	var out Recognized
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return Recognized{}, fmt.Errorf("failed to parse recognizer output: %w", err)
	}
	return out, nil
}

func buildRecognitionPrompt(text string, lang LanguageHint) string {
	language := "language unknown"
	switch lang {
	case LangFrench:
		language = "this text is French"
	case LangEnglish:
		language = "this text is English"
	}

	schema := llm.EntitySchema()
	schema.Description = prompts.Format(prompts.MustGet("extraction.json", "entity-recognizer"),
		map[string]string{"Language": language}) + "\n" + prompts.MustGet("extraction.json", "degree-hint")
	return llm.BuildExtractionPrompt(schema, text)
}
