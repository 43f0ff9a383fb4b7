// Package llm provides the Gemini client used for optional entity recognition and embeddings.
package llm

// ModelTier represents the complexity/capability level of a model
type ModelTier string

const (
	// TierLite is for simple tasks: classification, entity recognition
	TierLite ModelTier = "lite"
	// TierStandard is for structured output over longer documents
	TierStandard ModelTier = "standard"
)

// Provider represents an LLM provider
type Provider string

// ProviderGemini is the Google Gemini provider
const ProviderGemini Provider = "gemini"

// DefaultEmbeddingModel is the Gemini embedding model used by the vector index
const DefaultEmbeddingModel = "text-embedding-004"

// DefaultEmbeddingDimensions is the vector length produced by DefaultEmbeddingModel
const DefaultEmbeddingDimensions = 768

// Config holds the model configuration for the application
type Config struct {
	Provider       Provider
	Models         map[ModelTier]string
	EmbeddingModel string
	Temperature    float32
}

// DefaultConfig returns the default Gemini configuration
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
		},
		EmbeddingModel: DefaultEmbeddingModel,
		Temperature:    0.1,
	}
}

// GetModel returns the model name for a given tier
func (c *Config) GetModel(tier ModelTier) string {
	if model, ok := c.Models[tier]; ok {
		return model
	}
	// Fallback chain: try standard, then lite
	if model, ok := c.Models[TierStandard]; ok {
		return model
	}
	if model, ok := c.Models[TierLite]; ok {
		return model
	}
	return ""
}

// GetEmbeddingModel returns the embedding model, falling back to the default
func (c *Config) GetEmbeddingModel() string {
	if c.EmbeddingModel == "" {
		return DefaultEmbeddingModel
	}
	return c.EmbeddingModel
}

// WithEmbeddingModel returns a copy of the config using a different embedding model
func (c *Config) WithEmbeddingModel(model string) *Config {
	newConfig := &Config{
		Provider:       c.Provider,
		Models:         make(map[ModelTier]string, len(c.Models)),
		EmbeddingModel: model,
		Temperature:    c.Temperature,
	}
	for k, v := range c.Models {
		newConfig.Models[k] = v
	}
	return newConfig
}
