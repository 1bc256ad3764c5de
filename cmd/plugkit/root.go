// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/holomush/plugkit/internal/app"
	"github.com/holomush/plugkit/internal/config"
	"github.com/holomush/plugkit/internal/logging"
	"github.com/holomush/plugkit/plugins/echo"
)

// NewRootCmd creates the root command for the plugkit CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugkit",
		Short: "plugkit - a signal based plugin host",
		Long: `plugkit hosts plugins that talk to each other through named signals.
Plugins are Go types compiled into the binary or Lua scripts discovered
from a plugins directory.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringSlice("config", nil, "config file path (repeatable; later files win)")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewSignalsCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig reads the --config files, or the XDG default file when none
// was given, and applies the flags the user set.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	files, err := cmd.Flags().GetStringSlice("config")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		files = config.DefaultFiles()
	}
	return config.Load(files, cmd.Flags())
}

// newApp sets up logging from cfg and builds the application with the
// built-in plugin classes.
func newApp(cfg *config.Config) (*app.App, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.SetDefault("plugkit", version, cfg.Log.Format, level)

	return app.New(cfg,
		app.WithLogger(logger),
		app.WithVersion(version),
		app.WithClasses(echo.Class()),
	)
}
