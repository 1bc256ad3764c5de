// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config

import (
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml"
	"github.com/samber/oops"
)

// tomlParser reads TOML config files for koanf.
type tomlParser struct{}

// Unmarshal implements koanf.Parser.
func (tomlParser) Unmarshal(b []byte) (map[string]any, error) {
	tree, err := toml.LoadBytes(b)
	if err != nil {
		return nil, err
	}
	return tree.ToMap(), nil
}

// Marshal implements koanf.Parser.
func (tomlParser) Marshal(m map[string]any) ([]byte, error) {
	tree, err := toml.TreeFromMap(m)
	if err != nil {
		return nil, err
	}
	return tree.Marshal()
}

// ValidateTOML validates TOML config data against the JSON Schema.
func ValidateTOML(data []byte) error {
	doc, err := tomlParser{}.Unmarshal(data)
	if err != nil {
		return oops.Code(CodeInvalid).In("config").Wrapf(err, "invalid TOML")
	}
	return validateDocument(doc)
}

// parserFor picks the parser and schema check for a config file by
// extension. Files ending in .toml are TOML; everything else is YAML.
func parserFor(path string) (koanf.Parser, func([]byte) error) {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return tomlParser{}, ValidateTOML
	}
	return yaml.Parser(), ValidateSchema
}
