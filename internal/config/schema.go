// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the config JSON Schema.
const SchemaID = "https://holomush.dev/schemas/plugkit-config.schema.json"

var compiled = sync.OnceValues(compileSchema)

// GenerateSchema generates a JSON Schema from the Config struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Config{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "plugkit configuration"
	schema.Description = "Schema for plugkit config.yaml files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.In("config").Wrapf(err, "marshal schema")
	}
	return data, nil
}

// ValidateSchema validates YAML config data against the JSON Schema. Empty
// data is a valid, empty config.
func ValidateSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code(CodeInvalid).In("config").Wrapf(err, "invalid YAML")
	}
	if doc == nil {
		return nil
	}
	return validateDocument(doc)
}

// validateDocument checks a decoded config document against the schema.
func validateDocument(doc any) error {
	sch, err := compiled()
	if err != nil {
		return err
	}

	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return oops.Code(CodeInvalid).
			In("config").
			Hint("run `plugkit schema` to print the expected structure").
			Wrapf(err, "schema validation failed")
	}
	return nil
}

// FormatSchemaError strips wrapping so only the validator's findings remain.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if _, after, ok := strings.Cut(msg, "schema validation failed: "); ok {
		return after
	}
	return msg
}

func compileSchema() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}

	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.In("config").Wrapf(err, "parse schema JSON")
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("config.schema.json", doc); err != nil {
		return nil, oops.In("config").Wrapf(err, "add schema resource")
	}
	sch, err := c.Compile("config.schema.json")
	if err != nil {
		return nil, oops.In("config").Wrapf(err, "compile schema")
	}
	return sch, nil
}

// toJSONTypes rewrites YAML-decoded values into the types the validator
// expects: nested maps keyed by string and numbers as float64.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = toJSONTypes(e)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = toJSONTypes(e)
		}
		return out
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case uint64:
		return float64(val)
	default:
		return val
	}
}
