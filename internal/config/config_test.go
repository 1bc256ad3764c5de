// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/plugkit/internal/config"
	"github.com/holomush/plugkit/pkg/errutil"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load(nil, nil)
	require.NoError(t, err)

	wd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, "NoName App", cfg.App.Name)
	assert.Equal(t, wd, cfg.App.Path)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, []string{"*"}, cfg.Plugins.Activate)
	assert.False(t, cfg.Plugins.Strict)
	assert.Empty(t, cfg.Plugins.Dir)
	assert.Empty(t, cfg.Metrics.Addr)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
app:
  name: Demo
log:
  level: debug
plugins:
  dir: /srv/plugins
  activate: ["echo", "greet-*"]
  strict: true
metrics:
  addr: "127.0.0.1:9100"
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Demo", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format, "unset keys keep their defaults")
	assert.Equal(t, "/srv/plugins", cfg.Plugins.Dir)
	assert.Equal(t, []string{"echo", "greet-*"}, cfg.Plugins.Activate)
	assert.True(t, cfg.Plugins.Strict)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
}

func TestLoad_LaterFilesWin(t *testing.T) {
	first := writeFile(t, "first.yaml", "app:\n  name: First\nlog:\n  format: text\n")
	second := writeFile(t, "second.yaml", "app:\n  name: Second\n")

	cfg, err := config.Load([]string{first, second}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Second", cfg.App.Name)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestLoad_EmptyFile(t *testing.T) {
	path := writeFile(t, "empty.yaml", "")

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)
	assert.Equal(t, "NoName App", cfg.App.Name)
}

func TestLoad_FlagsOverrideFiles(t *testing.T) {
	path := writeFile(t, "config.yaml", "app:\n  name: FromFile\nlog:\n  level: warn\n")
	flags := newFlags(t, "--app-name=FromFlag", "--activate=a,b")

	cfg, err := config.Load([]string{path}, flags)
	require.NoError(t, err)

	assert.Equal(t, "FromFlag", cfg.App.Name)
	assert.Equal(t, []string{"a", "b"}, cfg.Plugins.Activate)
	assert.Equal(t, "warn", cfg.Log.Level, "unchanged flags must not clobber file values")
}

func TestLoad_AppPathMadeAbsolute(t *testing.T) {
	flags := newFlags(t, "--app-path=relative/dir")

	cfg, err := config.Load(nil, flags)
	require.NoError(t, err)

	assert.True(t, filepath.IsAbs(cfg.App.Path))
	assert.Equal(t, "dir", filepath.Base(cfg.App.Path))
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown key", "app:\n  nmae: typo\n"},
		{"bad log format", "log:\n  format: xml\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"wrong type", "plugins:\n  strict: sometimes\n"},
		{"empty name", "app:\n  name: \"\"\n"},
		{"invalid yaml", "app: [\n"},
		{"bad pattern", "plugins:\n  activate: [\"[\"]\n"},
		{"bad metrics addr", "metrics:\n  addr: nowhere\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.yaml", tt.content)
			_, err := config.Load([]string{path}, nil)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, config.CodeInvalid)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := config.Load([]string{path}, nil)
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, config.CodeInvalid)
	errutil.AssertErrorContext(t, err, "file", path)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		key    string
	}{
		{"missing name", func(c *config.Config) { c.App.Name = "" }, "app.name"},
		{"bad format", func(c *config.Config) { c.Log.Format = "yaml" }, "log.format"},
		{"bad level", func(c *config.Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad pattern", func(c *config.Config) { c.Plugins.Activate = []string{"ok", "[z"} }, "plugins.activate"},
		{"bad addr", func(c *config.Config) { c.Metrics.Addr = "9100" }, "metrics.addr"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, config.CodeInvalid)
			errutil.AssertErrorDomain(t, err, "config")
			errutil.AssertErrorContext(t, err, "key", tt.key)
		})
	}

	t.Run("default is valid", func(t *testing.T) {
		assert.NoError(t, config.Default().Validate())
	})
}

func TestDefaultFiles(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	assert.Empty(t, config.DefaultFiles())

	path := filepath.Join(dir, "plugkit", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: X\n"), 0o600))

	assert.Equal(t, []string{path}, config.DefaultFiles())
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
[app]
name = "From TOML"

[plugins]
activate = ["echo", "greeter"]
strict = true

[metrics]
addr = "127.0.0.1:9100"
`)

	cfg, err := config.Load([]string{path}, nil)
	require.NoError(t, err)

	assert.Equal(t, "From TOML", cfg.App.Name)
	assert.Equal(t, []string{"echo", "greeter"}, cfg.Plugins.Activate)
	assert.True(t, cfg.Plugins.Strict)
	assert.Equal(t, "127.0.0.1:9100", cfg.Metrics.Addr)
}

func TestLoad_MixedFormats(t *testing.T) {
	yamlPath := writeFile(t, "base.yaml", "app:\n  name: Base\nlog:\n  level: debug\n")
	tomlPath := writeFile(t, "override.toml", "[app]\nname = \"Override\"\n")

	cfg, err := config.Load([]string{yamlPath, tomlPath}, nil)
	require.NoError(t, err)

	assert.Equal(t, "Override", cfg.App.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_TOMLErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[app\nname = 1\n"},
		{"unknown key", "[server]\nport = 1\n"},
		{"wrong type", "[plugins]\nstrict = \"yes\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, "config.toml", tt.content)
			_, err := config.Load([]string{path}, nil)
			require.Error(t, err)
			errutil.AssertErrorCode(t, err, config.CodeInvalid)
		})
	}
}
