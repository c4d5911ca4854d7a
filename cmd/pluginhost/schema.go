// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/pluginhost/internal/plugin"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the plugin descriptor JSON Schema",
		Long: `Generate the JSON Schema that plugin.yaml and plugin.toml descriptors
are validated against, for use by editors and CI.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			schema, err := plugin.GenerateSchema()
			if err != nil {
				return oops.Wrapf(err, "generate schema")
			}
			if output == "" {
				_, err = cmd.OutOrStdout().Write(append(schema, '\n'))
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o750); err != nil {
				return oops.With("path", output).Wrapf(err, "create directory")
			}
			if err := os.WriteFile(output, schema, 0o600); err != nil {
				return oops.With("path", output).Wrapf(err, "write schema")
			}
			cmd.Printf("Generated %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the schema to this file instead of stdout")

	return cmd
}
