package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"flowform/internal/form"

	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// definitionSchema is the JSON Schema every incoming form definition
// must satisfy before it is stored. Structural checks live here; the
// cross-field invariants jsonschema cannot express (choice needs
// choices, scale needs ordered bounds) are enforced by CheckDefinition.
const definitionSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["title", "schema"],
  "properties": {
    "title": {"type": "string", "minLength": 1},
    "description": {"type": "string"},
    "tone": {"type": "string"},
    "callbackUrl": {"type": "string"},
    "schema": {
      "type": "object",
      "required": ["fields"],
      "properties": {
        "fields": {
          "type": "array",
          "minItems": 1,
          "items": {
            "type": "object",
            "required": ["name", "type", "label"],
            "properties": {
              "name": {"type": "string", "minLength": 1},
              "type": {"enum": ["text", "longtext", "email", "url", "number", "date", "choice", "scale", "file"]},
              "label": {"type": "string", "minLength": 1},
              "required": {"type": "boolean"},
              "validation": {
                "type": "object",
                "properties": {
                  "min": {"type": "number"},
                  "max": {"type": "number"},
                  "acceptedTypes": {"type": "array", "items": {"type": "string"}}
                }
              },
              "options": {
                "type": "object",
                "properties": {
                  "min": {"type": "integer"},
                  "max": {"type": "integer"},
                  "labels": {"type": "array", "items": {"type": "string"}},
                  "choices": {"type": "array", "items": {"type": "string"}},
                  "multiSelect": {"type": "boolean"}
                }
              }
            }
          }
        }
      }
    }
  }
}`

// Compiler validates form definitions supplied by the schema source.
type Compiler struct {
	compiled *js.Schema
}

func NewCompiler() (*Compiler, error) {
	c := js.NewCompiler()
	c.ExtractAnnotations = true
	if err := c.AddResource("mem://form-definition.json", strings.NewReader(definitionSchema)); err != nil {
		return nil, fmt.Errorf("failed to add definition schema: %w", err)
	}
	compiled, err := c.Compile("mem://form-definition.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile definition schema: %w", err)
	}
	return &Compiler{compiled: compiled}, nil
}

// ValidateDefinition checks a raw form definition against the embedded
// JSON Schema.
func (c *Compiler) ValidateDefinition(definition map[string]interface{}) error {
	// Round-trip through JSON so nested values carry the generic types
	// the validator expects.
	raw, err := json.Marshal(definition)
	if err != nil {
		return fmt.Errorf("failed to marshal definition: %w", err)
	}
	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return fmt.Errorf("failed to unmarshal definition: %w", err)
	}
	if err := c.compiled.Validate(value); err != nil {
		return fmt.Errorf("invalid form definition: %w", err)
	}
	return nil
}

// CheckDefinition enforces the field invariants the structural schema
// cannot: choice fields need at least one choice, scale fields need
// numeric bounds with min < max.
func CheckDefinition(s form.Schema) error {
	seen := make(map[string]bool, len(s.Fields))
	for _, field := range s.Fields {
		if seen[field.Name] {
			return fmt.Errorf("duplicate field name %q", field.Name)
		}
		seen[field.Name] = true

		switch field.Type {
		case form.FieldChoice:
			if field.Options == nil || len(field.Options.Choices) == 0 {
				return fmt.Errorf("choice field %q has no choices", field.Name)
			}
		case form.FieldScale:
			if field.Options == nil || field.Options.Min == nil || field.Options.Max == nil {
				return fmt.Errorf("scale field %q is missing its bounds", field.Name)
			}
			if *field.Options.Min >= *field.Options.Max {
				return fmt.Errorf("scale field %q has min >= max", field.Name)
			}
		}
	}
	return nil
}
