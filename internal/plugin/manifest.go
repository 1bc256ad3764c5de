// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// ManifestFile is the file name a script plugin directory must contain.
const ManifestFile = "plugin.yaml"

// Type identifies the plugin runtime.
type Type string

// Plugin types supported by manifests.
const (
	TypeLua Type = "lua"
)

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name        string     `yaml:"name"`
	Version     string     `yaml:"version"`
	Type        Type       `yaml:"type"`
	Description string     `yaml:"description,omitempty"`
	LuaPlugin   *LuaConfig `yaml:"lua-plugin,omitempty"`
}

// LuaConfig holds Lua-specific configuration.
type LuaConfig struct {
	Entry string `yaml:"entry"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with lowercase letter,
// followed by lowercase letters, digits, or hyphens.
// Cannot end with a hyphen. Single character names are allowed.
var namePattern = regexp.MustCompile(`^[a-z]([a-z0-9-]*[a-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, errManifest("", "manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code(CodeManifestInvalid).
			In("plugin").
			Wrapf(err, "invalid YAML")
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return errManifest(m.Name, "name %q must start with a-z, contain only a-z, 0-9, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return errManifest(m.Name, "name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return errManifest(m.Name, "version is required")
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return errManifest(m.Name, "version %q is not a semantic version: %v", m.Version, err)
	}

	switch m.Type {
	case TypeLua:
		if m.LuaPlugin == nil {
			return errManifest(m.Name, "lua-plugin is required when type is lua")
		}
		if m.LuaPlugin.Entry == "" {
			return errManifest(m.Name, "lua-plugin.entry is required")
		}
	default:
		return errManifest(m.Name, "type must be 'lua', got %q", m.Type)
	}

	return nil
}

// SemVer returns the parsed manifest version. Only valid after Validate.
func (m *Manifest) SemVer() *semver.Version {
	v, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return nil
	}
	return v
}

func errManifest(name, format string, args ...any) error {
	return oops.Code(CodeManifestInvalid).
		In("plugin").
		With("plugin", name).
		Errorf(format, args...)
}
