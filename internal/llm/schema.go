package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/docextract/constants"
)

// BuildRecordJSONSchema returns a JSON-Schema for the extraction record.
// Every field is optional and nullable.
func BuildRecordJSONSchema() map[string]any {
	str := map[string]any{"type": []any{"string", "null"}}
	num := map[string]any{"type": []any{"number", "string", "null"}}
	date := map[string]any{"type": []any{"string", "null"}, "pattern": `^(\d{4}-\d{2}-\d{2}.*)?$`}

	docTypes := make([]any, 0, 6)
	for _, s := range constants.DocumentTypesAsStrings() {
		docTypes = append(docTypes, s)
	}
	docTypes = append(docTypes, nil)

	lineItem := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"description": str,
			"quantity":    num,
			"unitPrice":   num,
			"total":       num,
			"sku":         str,
		},
	}

	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"documentType":  map[string]any{"enum": docTypes},
			"vendorName":    str,
			"vendorAddress": str,
			"invoiceNumber": map[string]any{"type": []any{"string", "number", "null"}},
			"date":          date,
			"dueDate":       date,
			"totalAmount":   num,
			"taxAmount":     num,
			"currency":      map[string]any{"type": []any{"string", "null"}, "maxLength": 8},
			"lineItems":     map[string]any{"type": []any{"array", "null"}, "items": lineItem},
			"summary":       str,
		},
	}
}

func compileSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

var recordSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	return compileSchema(BuildRecordJSONSchema())
})

// ValidateRecord checks a normalized record against the record schema. The
// result is advisory; callers log it and carry on.
func ValidateRecord(rec Record) error {
	schema, err := recordSchema()
	if err != nil {
		return err
	}
	b, err := Canonical(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
