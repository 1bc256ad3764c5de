// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for plugkit.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "plugkit"

// ConfigDir returns the XDG config directory for plugkit.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	return resolve("XDG_CONFIG_HOME", ".config")
}

// DataDir returns the XDG data directory for plugkit.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() (string, error) {
	return resolve("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ConfigFile returns the default config file path, config.yaml in ConfigDir.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// PluginsDir returns the default script plugin directory, plugins in DataDir.
func PluginsDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "plugins"), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.In("xdg").With("path", path).Wrapf(err, "create directory")
	}
	return nil
}

func resolve(env, homeRel string) (string, error) {
	if base := os.Getenv(env); base != "" {
		return filepath.Join(base, appName), nil
	}
	home := os.Getenv("HOME")
	if home == "" {
		var err error
		home, err = os.UserHomeDir()
		if err != nil {
			return "", oops.In("xdg").With("env", env).Wrapf(err, "resolve home directory")
		}
	}
	return filepath.Join(home, homeRel, appName), nil
}
