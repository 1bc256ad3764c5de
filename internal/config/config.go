// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads plugkit configuration from defaults, YAML or TOML
// files and command line flags, in that order of precedence.
package config

import (
	"net"
	"os"
	"path/filepath"
	"slices"

	"github.com/gobwas/glob"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/plugkit/internal/xdg"
)

// CodeInvalid marks configuration errors.
const CodeInvalid = "CONFIG_INVALID"

// Config is the complete plugkit configuration.
type Config struct {
	App     AppConfig     `koanf:"app" json:"app,omitempty" jsonschema:"description=Application identity"`
	Log     LogConfig     `koanf:"log" json:"log,omitempty" jsonschema:"description=Logging output"`
	Plugins PluginsConfig `koanf:"plugins" json:"plugins,omitempty" jsonschema:"description=Plugin discovery and activation"`
	Metrics MetricsConfig `koanf:"metrics" json:"metrics,omitempty" jsonschema:"description=Metrics and health endpoints"`
}

// AppConfig identifies the application.
type AppConfig struct {
	Name string `koanf:"name" json:"name,omitempty" jsonschema:"minLength=1,description=Application name used as the registrant of built-in signals"`
	Path string `koanf:"path" json:"path,omitempty" jsonschema:"description=Base path; made absolute on load"`
}

// LogConfig selects the log format and level.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// PluginsConfig controls script plugin discovery and activation.
type PluginsConfig struct {
	Dir      string   `koanf:"dir" json:"dir,omitempty" jsonschema:"description=Directory of script plugins; empty disables discovery"`
	Activate []string `koanf:"activate" json:"activate,omitempty" jsonschema:"description=Glob patterns over plugin names to activate at startup"`
	Strict   bool     `koanf:"strict" json:"strict,omitempty" jsonschema:"description=Fail startup on the first plugin error"`
}

// MetricsConfig configures the observability HTTP server.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty" jsonschema:"description=host:port for /metrics and health checks; empty disables the server"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Name: "NoName App",
			Path: ".",
		},
		Log: LogConfig{
			Format: "json",
			Level:  "info",
		},
		Plugins: PluginsConfig{
			Activate: []string{"*"},
		},
	}
}

// flagKeys maps command line flags to config keys.
var flagKeys = map[string]string{
	"app-name":     "app.name",
	"app-path":     "app.path",
	"log-format":   "log.format",
	"log-level":    "log.level",
	"plugins-dir":  "plugins.dir",
	"activate":     "plugins.activate",
	"strict":       "plugins.strict",
	"metrics-addr": "metrics.addr",
}

// RegisterFlags adds the flags Load understands to flags, with defaults taken
// from Default.
func RegisterFlags(flags *pflag.FlagSet) {
	d := Default()
	flags.String("app-name", d.App.Name, "application name")
	flags.String("app-path", d.App.Path, "application base path")
	flags.String("log-format", d.Log.Format, "log format (json or text)")
	flags.String("log-level", d.Log.Level, "log level (debug, info, warn, error)")
	flags.String("plugins-dir", d.Plugins.Dir, "directory of script plugins")
	flags.StringSlice("activate", d.Plugins.Activate, "glob patterns of plugins to activate")
	flags.Bool("strict", d.Plugins.Strict, "fail on the first plugin error")
	flags.String("metrics-addr", d.Metrics.Addr, "metrics/health HTTP address (empty = disabled)")
}

// Load builds the configuration from Default, then each file in order
// (later files win), then the flags the user changed. Each file is checked
// against the JSON Schema before it is merged. flags may be nil.
func Load(files []string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")
	for key, val := range defaults() {
		if err := k.Set(key, val); err != nil {
			return nil, oops.Code(CodeInvalid).In("config").With("key", key).Wrap(err)
		}
	}

	for _, path := range files {
		data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
		if err != nil {
			return nil, oops.Code(CodeInvalid).In("config").With("file", path).Wrapf(err, "read config file")
		}
		parser, validate := parserFor(path)
		if err := validate(data); err != nil {
			return nil, oops.Code(CodeInvalid).In("config").With("file", path).Wrap(err)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, oops.Code(CodeInvalid).In("config").With("file", path).Wrapf(err, "parse config file")
		}
	}

	if flags != nil {
		provider := posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.Code(CodeInvalid).In("config").Wrapf(err, "apply flags")
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.Code(CodeInvalid).In("config").Wrapf(err, "decode config")
	}

	abs, err := filepath.Abs(cfg.App.Path)
	if err != nil {
		return nil, oops.Code(CodeInvalid).In("config").With("path", cfg.App.Path).Wrapf(err, "resolve app.path")
	}
	cfg.App.Path = abs

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultFiles returns the XDG config file if it exists, so it is read when
// no file was given explicitly.
func DefaultFiles() []string {
	path, err := xdg.ConfigFile()
	if err != nil {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return []string{path}
}

var (
	logFormats = []string{"json", "text"}
	logLevels  = []string{"debug", "info", "warn", "error"}
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return errInvalid("app.name", c.App.Name, "app.name is required")
	}
	if !slices.Contains(logFormats, c.Log.Format) {
		return errInvalid("log.format", c.Log.Format, "log.format must be 'json' or 'text'")
	}
	if !slices.Contains(logLevels, c.Log.Level) {
		return errInvalid("log.level", c.Log.Level, "log.level must be debug, info, warn or error")
	}
	for _, p := range c.Plugins.Activate {
		if _, err := glob.Compile(p); err != nil {
			return oops.Code(CodeInvalid).
				In("config").
				With("key", "plugins.activate").
				With("value", p).
				Wrapf(err, "invalid activation pattern")
		}
	}
	if c.Metrics.Addr != "" {
		if _, _, err := net.SplitHostPort(c.Metrics.Addr); err != nil {
			return oops.Code(CodeInvalid).
				In("config").
				With("key", "metrics.addr").
				With("value", c.Metrics.Addr).
				Wrapf(err, "metrics.addr must be host:port")
		}
	}
	return nil
}

func defaults() map[string]any {
	d := Default()
	return map[string]any{
		"app.name":         d.App.Name,
		"app.path":         d.App.Path,
		"log.format":       d.Log.Format,
		"log.level":        d.Log.Level,
		"plugins.dir":      d.Plugins.Dir,
		"plugins.activate": d.Plugins.Activate,
		"plugins.strict":   d.Plugins.Strict,
		"metrics.addr":     d.Metrics.Addr,
	}
}

func errInvalid(key, value, msg string) error {
	return oops.Code(CodeInvalid).
		In("config").
		With("key", key).
		With("value", value).
		Errorf("%s", msg)
}
