package schemas_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-ranker/schemas"
)

func TestAllSchemaFiles_ValidJSON(t *testing.T) {
	names := schemas.Names()
	assert.ElementsMatch(t, []string{schemas.Requirement, schemas.Candidates}, names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			content, err := schemas.Get(name)
			require.NoError(t, err)

			var v map[string]any
			require.NoError(t, json.Unmarshal([]byte(content), &v), "schema file should be valid JSON: %s", name)
			assert.Contains(t, v, "$schema")
		})
	}
}

func TestGet_Unknown(t *testing.T) {
	_, err := schemas.Get("missing.schema.json")
	assert.Error(t, err)
}
