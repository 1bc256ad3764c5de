// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package lua

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samber/oops"

	"github.com/holomush/plugkit/internal/plugin"
	"github.com/holomush/plugkit/pkg/errutil"
)

// Discover loads every script plugin found in the subdirectories of dir.
// Subdirectories without a manifest, with an invalid manifest or with a
// script that does not compile are logged and skipped. A missing dir yields
// no plugins.
func Discover(dir string, opts ...Option) ([]*Plugin, error) {
	o := buildOptions(opts)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, oops.In("lua").With("dir", dir).Wrapf(err, "read plugins directory")
	}

	var plugins []*Plugin
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		pluginDir := filepath.Join(dir, entry.Name())
		if _, err := os.Stat(filepath.Join(pluginDir, plugin.ManifestFile)); err != nil {
			o.log.Warn("skipping plugin without manifest", "dir", entry.Name(), "error", err)
			continue
		}

		p, err := Load(pluginDir, opts...)
		if err != nil {
			errutil.LogError(o.log, "skipping invalid plugin", err, "dir", entry.Name())
			continue
		}
		plugins = append(plugins, p)
	}

	return plugins, nil
}
