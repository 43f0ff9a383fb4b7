package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGet_ValidPrompt(t *testing.T) {
	ClearCache()

	prompt, err := Get("extraction.json", "entity-recognizer")
	require.NoError(t, err)
	assert.Contains(t, prompt, "entity recognizer")
}

func TestGet_Errors(t *testing.T) {
	ClearCache()

	_, err := Get("nonexistent.json", "some-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read prompt file")

	_, err = Get("extraction.json", "nonexistent-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestMustGet(t *testing.T) {
	ClearCache()

	assert.Panics(t, func() { MustGet("nonexistent.json", "some-key") })
	assert.NotPanics(t, func() {
		assert.NotEmpty(t, MustGet("extraction.json", "degree-hint"))
	})
}

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		template string
		data     map[string]string
		expected string
	}{
		{"Replaces placeholders", "Language: {{.Language}}", map[string]string{"Language": "French"}, "Language: French"},
		{"Repeated placeholder", "{{.A}}-{{.A}}", map[string]string{"A": "x"}, "x-x"},
		{"Unknown placeholder kept", "{{.Missing}}", map[string]string{"A": "x"}, "{{.Missing}}"},
		{"Nil data", "plain", nil, "plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Format(tt.template, tt.data))
		})
	}
}

func TestList(t *testing.T) {
	ClearCache()

	keys, err := List("extraction.json")
	require.NoError(t, err)
	assert.Equal(t, []string{"degree-hint", "entity-recognizer"}, keys)
}
