package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed contracts/eval-summary.schema.json
var evalSummarySchema []byte

// EvalSummarySchema returns the embedded eval summary JSON schema.
func EvalSummarySchema() []byte {
	return append([]byte(nil), evalSummarySchema...)
}

// ValidateAgainstSchema validates an arbitrary payload against a JSON schema file.
func ValidateAgainstSchema(schemaPath string, payload interface{}) error {
	schemaBytes, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("read schema %s: %w", schemaPath, err)
	}
	return validate(schemaBytes, payload)
}

// ValidateEvalSummary validates payload against the embedded summary schema.
func ValidateEvalSummary(payload interface{}) error {
	return validate(evalSummarySchema, payload)
}

// ValidateEvalSummaryFile validates a summary JSON document on disk.
func ValidateEvalSummaryFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read summary %s: %w", path, err)
	}
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse summary %s: %w", path, err)
	}
	return validate(evalSummarySchema, doc)
}

func validate(schemaBytes []byte, payload interface{}) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaBytes),
		gojsonschema.NewBytesLoader(payloadBytes),
	)
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}

	if result.Valid() {
		return nil
	}

	errors := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		errors = append(errors, issue.String())
	}
	return fmt.Errorf("payload failed schema validation: %s", strings.Join(errors, "; "))
}
