// Package schema derives JSON Schema tool parameters from Go structs.
package schema

import (
	"encoding/json"
	"strings"

	"github.com/invopop/jsonschema"
)

// objectSchema is the serialized shape handed to providers.
type objectSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

// Generate produces a JSON Schema object for a Go struct type T.
// It uses struct tags (json, jsonschema) to derive the schema.
func Generate[T any]() (json.RawMessage, error) {
	var zero T
	s := jsonschema.Reflect(&zero)

	// The top-level schema wraps the actual type; extract properties and
	// required from the root definition.
	root := resolve(s, s.Definitions)

	return json.Marshal(objectSchema{
		Type:       "object",
		Properties: schemaProperties(root, s.Definitions),
		Required:   root.Required,
	})
}

// resolve follows a $ref into $defs. invopop/jsonschema places named types
// under $defs with refs like "#/$defs/TypeName".
func resolve(s *jsonschema.Schema, defs jsonschema.Definitions) *jsonschema.Schema {
	if s.Ref == "" || defs == nil {
		return s
	}
	name := strings.TrimPrefix(s.Ref, "#/$defs/")
	if def, ok := defs[name]; ok {
		return def
	}
	return s
}

// schemaProperties converts an ordered map of properties into a plain
// map[string]any for serialization.
func schemaProperties(s *jsonschema.Schema, defs jsonschema.Definitions) map[string]any {
	if s.Properties == nil {
		return nil
	}
	props := make(map[string]any)
	for pair := s.Properties.Oldest(); pair != nil; pair = pair.Next() {
		props[pair.Key] = propertySchema(pair.Value, defs)
	}
	return props
}

// propertySchema converts a single property schema to a serializable map.
func propertySchema(s *jsonschema.Schema, defs jsonschema.Definitions) map[string]any {
	s = resolve(s, defs)
	m := make(map[string]any)

	if s.Type != "" {
		m["type"] = s.Type
	}
	if s.Description != "" {
		m["description"] = s.Description
	}
	if s.Default != nil {
		m["default"] = s.Default
	}
	if len(s.Enum) > 0 {
		m["enum"] = s.Enum
	}

	// Pointer types: invopop/jsonschema uses anyOf for nullable types
	if len(s.AnyOf) > 0 {
		for _, sub := range s.AnyOf {
			if sub.Type != "null" && sub.Type != "" {
				m["type"] = sub.Type
				break
			}
		}
	}

	// Nested object properties
	if s.Properties != nil {
		m["type"] = "object"
		m["properties"] = schemaProperties(s, defs)
		if len(s.Required) > 0 {
			m["required"] = s.Required
		}
	}

	// Array items
	if s.Items != nil {
		m["items"] = propertySchema(s.Items, defs)
	}

	return m
}
