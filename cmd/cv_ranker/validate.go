package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ranker/internal/schemas"
	embedded "github.com/jonathan/cv-ranker/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an input document against its JSON Schema",
	Long: "Validate a requirement or candidates JSON document against an embedded schema (--schema) " +
		"or an external schema file (--schema-file).",
	RunE: runValidate,
}

var (
	validateInputFile  string
	validateSchemaName string
	validateSchemaFile string
)

func init() {
	validateCmd.Flags().StringVarP(&validateInputFile, "in", "i", "", "Path to the JSON document")
	validateCmd.Flags().StringVar(&validateSchemaName, "schema", "", "Embedded schema: "+strings.Join(embeddedSchemaNames(), ", "))
	validateCmd.Flags().StringVar(&validateSchemaFile, "schema-file", "", "Path to an external JSON Schema file")

	_ = validateCmd.MarkFlagRequired("in")
	validateCmd.MarkFlagsOneRequired("schema", "schema-file")
	validateCmd.MarkFlagsMutuallyExclusive("schema", "schema-file")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(_ *cobra.Command, _ []string) error {
	var err error
	if validateSchemaFile != "" {
		err = schemas.ValidateJSON(validateSchemaFile, validateInputFile)
	} else {
		var data []byte
		data, err = os.ReadFile(validateInputFile)
		if err != nil {
			return fmt.Errorf("failed to read input file: %w", err)
		}
		err = schemas.ValidateDocument(schemaFileName(validateSchemaName), data)
	}

	var validationErr *schemas.ValidationError
	if errors.As(err, &validationErr) {
		_, _ = fmt.Fprint(os.Stderr, validationErr.Error())
		return fmt.Errorf("%s does not validate (%d errors)", validateInputFile, len(validationErr.Errors))
	}
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(os.Stdout, "%s is valid\n", validateInputFile)
	return nil
}

// embeddedSchemaNames lists the short names accepted by --schema
func embeddedSchemaNames() []string {
	names := embedded.Names()
	for i, n := range names {
		names[i] = strings.TrimSuffix(n, ".schema.json")
	}
	return names
}

// schemaFileName maps a short schema name ("requirement") to its embedded file
func schemaFileName(name string) string {
	if strings.HasSuffix(name, ".schema.json") {
		return name
	}
	return name + ".schema.json"
}
