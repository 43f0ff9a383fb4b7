package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema describes a structured extraction task for the model.
type ExtractionSchema struct {
	Name        string
	Description string
	Fields      []SchemaField
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "number"
	Description string
	Required    bool
}

// BuildExtractionPrompt constructs the prompt from a schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  %q: %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Copy values verbatim from the text, do not invent or translate.\n")
	sb.WriteString("- Use an empty array when nothing is found.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// EntitySchema returns the schema for recognizing organizations and degrees in a CV
// or job description. Text may be French or English.
func EntitySchema() ExtractionSchema {
	return ExtractionSchema{
		Name:        "Entities",
		Description: "You are an entity recognizer for CVs and job descriptions written in French or English. Identify the organizations (employers, schools, universities) and academic degrees mentioned in the text.",
		Fields: []SchemaField{
			{Name: "organizations", Type: "[]string", Description: "Company, school and university names", Required: true},
			{Name: "degrees", Type: "[]string", Description: "Degree names such as master, licence, phd, bac+5", Required: true},
		},
	}
}
