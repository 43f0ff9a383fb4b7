package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"json code block", "```json\n{\"degrees\": [\"master\"]}\n```", `{"degrees": ["master"]}`},
		{"generic code block", "```\n{\"key\": \"value\"}\n```", `{"key": "value"}`},
		{"plain JSON", `{"key": "value"}`, `{"key": "value"}`},
		{"preamble", "Here is the JSON:\n{\"organizations\": [\"Acme\"]}", `{"organizations": ["Acme"]}`},
		{"trailing text", "{\"key\": \"value\"}\n\nLet me know!", `{"key": "value"}`},
		{"array", "Items: [\"a\", \"b\"] done", `["a", "b"]`},
		{"braces inside strings", `{"template": "Hello {name}!"}`, `{"template": "Hello {name}!"}`},
		{"escaped quotes", `Result: {"m": "He said \"hi}\""}`, `{"m": "He said \"hi}\""}`},
		{"no JSON", "not json", "not json"},
		{"unterminated", "{\"key\": ", "{\"key\":"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, CleanJSONBlock(tt.input))
		})
	}
}

func TestExtractBalanced(t *testing.T) {
	assert.Equal(t, `{"a": {"b": 1}}`, extractBalanced(`{"a": {"b": 1}} tail`))
	assert.Equal(t, `[[1], [2]]`, extractBalanced(`[[1], [2]]`))
	assert.Equal(t, "", extractBalanced(""))
	assert.Equal(t, "", extractBalanced("x{}"))
	assert.Equal(t, "", extractBalanced("{"))
}

func TestBuildExtractionPrompt(t *testing.T) {
	prompt := BuildExtractionPrompt(EntitySchema(), "Master at Université Paris-Saclay")

	assert.Contains(t, prompt, `"organizations": []string (required)`)
	assert.Contains(t, prompt, `"degrees": []string (required)`)
	assert.Contains(t, prompt, "Master at Université Paris-Saclay")
	assert.Contains(t, prompt, "French or English")
}
