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

// NewValidateCmd creates the validate subcommand.
func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <dir>...",
		Short: "Validate plugin descriptors",
		Long: `Check the plugin.yaml or plugin.toml in each directory against the
descriptor schema, runtime compatibility and the files it references.
A directory without a descriptor is treated as a plugins directory and
each plugin beneath it is checked.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	var dirs []string
	for _, arg := range args {
		if plugin.HasDescriptor(arg) {
			dirs = append(dirs, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return oops.With("dir", arg).Wrapf(err, "read plugins directory")
		}
		for _, entry := range entries {
			if entry.IsDir() && plugin.HasDescriptor(filepath.Join(arg, entry.Name())) {
				dirs = append(dirs, filepath.Join(arg, entry.Name()))
			}
		}
	}
	if len(dirs) == 0 {
		return oops.Errorf("no plugin descriptors found")
	}

	failed := 0
	for _, dir := range dirs {
		d, err := validateDir(dir)
		if err != nil {
			failed++
			cmd.Printf("FAIL %s: %s\n", dir, plugin.FormatSchemaError(err))
			continue
		}
		cmd.Printf("ok   %s: %s %s (%s)\n", dir, d.ID, d.Version, d.Type)
	}
	if failed > 0 {
		return oops.Code("VALIDATION_FAILED").
			With("failed", failed).
			Errorf("%d of %d plugins failed validation", failed, len(dirs))
	}
	return nil
}

func validateDir(dir string) (*plugin.Descriptor, error) {
	d, err := plugin.ReadDescriptor(dir)
	if err != nil {
		return nil, err
	}
	if err := d.CheckRuntime(); err != nil {
		return nil, err
	}
	var ref string
	switch d.Type {
	case plugin.TypeLua:
		ref = d.Lua.Entry
	case plugin.TypeBinary:
		ref = d.Binary.Executable
	}
	if ref != "" {
		if _, err := os.Stat(filepath.Join(dir, ref)); err != nil {
			return nil, oops.With("plugin", d.ID).With("file", ref).Errorf("%s not found", ref)
		}
	}
	return d, nil
}

