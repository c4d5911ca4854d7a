// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the pluginhost CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pluginhost",
		Short: "pluginhost - A plugin host for game servers",
		Long: `pluginhost loads Lua, binary and compiled-in plugins, routes chat
commands to them and drives their timers from a fixed server tick.`,
		SilenceUsage: true,
	}

	// Global flag for config file path
	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (default: XDG_CONFIG_HOME/pluginhost/config.yaml if present)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewValidateCmd())
	cmd.AddCommand(NewSchemaCmd())
	cmd.AddCommand(NewMigrateCmd())

	return cmd
}
