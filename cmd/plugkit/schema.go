// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/plugkit/internal/config"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the config file JSON Schema",
		Long: `Print the JSON Schema config.yaml files are validated against, or write
it to a file with --output.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := config.GenerateSchema()
			if err != nil {
				return err
			}

			if output == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), string(schema))
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return oops.In("cli").With("path", output).Wrapf(err, "create schema directory")
			}
			if err := os.WriteFile(output, schema, 0o600); err != nil {
				return oops.In("cli").With("path", output).Wrapf(err, "write schema")
			}
			cmd.Printf("Generated %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the schema to this file instead of stdout")
	return cmd
}
