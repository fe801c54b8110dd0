package extraction

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dvloznov/invoice-extractor/internal/invoice"
)

const schemaURL = "invoice.schema.json"

var invoiceSchema = mustCompileSchema()

// schemaMap describes the loose shape the model is expected to produce.
// Values stay permissive (strings or numbers) since the validator does the
// real checking; the schema only catches structural surprises.
func schemaMap() map[string]any {
	scalar := map[string]any{"type": []string{"string", "number", "null"}}

	itemProps := map[string]any{}
	for _, f := range invoice.LineItemFields {
		itemProps[string(f)] = scalar
	}

	props := map[string]any{}
	for _, f := range invoice.Fields {
		props[string(f)] = scalar
	}
	props[string(invoice.FieldLineItems)] = map[string]any{
		"type": []string{"array", "null"},
		"items": map[string]any{
			"type":       "object",
			"properties": itemProps,
		},
	}

	return map[string]any{
		"$schema":    "http://json-schema.org/draft-07/schema#",
		"type":       "object",
		"properties": props,
	}
}

func mustCompileSchema() *jsonschema.Schema {
	b, err := json.Marshal(schemaMap())
	if err != nil {
		panic(fmt.Sprintf("marshal invoice schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
		panic(fmt.Sprintf("add invoice schema: %v", err))
	}
	return compiler.MustCompile(schemaURL)
}

// checkShape validates a decoded model object against the invoice schema.
func checkShape(obj map[string]any) error {
	if err := invoiceSchema.Validate(obj); err != nil {
		return fmt.Errorf("model output does not match invoice schema: %w", err)
	}
	return nil
}
