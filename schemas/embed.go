// Package schemas holds the JSON Schemas of the CLI input documents.
package schemas

import (
	"embed"
	"fmt"
)

// Schema names
const (
	Requirement = "requirement.schema.json"
	Candidates  = "candidates.schema.json"
)

//go:embed *.schema.json
var files embed.FS

// Get returns the raw content of a named schema
func Get(name string) (string, error) {
	data, err := files.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("unknown schema %s: %w", name, err)
	}
	return string(data), nil
}

// Names lists the embedded schema files
func Names() []string {
	entries, _ := files.ReadDir(".")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
