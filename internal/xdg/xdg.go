// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package xdg provides XDG Base Directory paths for pluginhost.
package xdg

import (
	"os"
	"path/filepath"

	"github.com/samber/oops"
)

const appName = "pluginhost"

// base returns $env, or home joined with fallback when env is unset.
func base(env string, fallback ...string) (string, error) {
	if dir := os.Getenv(env); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", oops.In("xdg").With("env", env).Wrapf(err, "resolve home directory")
	}
	return filepath.Join(append([]string{home}, fallback...)...), nil
}

// ConfigDir returns the config directory.
// Checks XDG_CONFIG_HOME first, falls back to ~/.config.
func ConfigDir() (string, error) {
	dir, err := base("XDG_CONFIG_HOME", ".config")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// DataDir returns the data directory.
// Checks XDG_DATA_HOME first, falls back to ~/.local/share.
func DataDir() (string, error) {
	dir, err := base("XDG_DATA_HOME", ".local", "share")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// StateDir returns the state directory.
// Checks XDG_STATE_HOME first, falls back to ~/.local/state.
func StateDir() (string, error) {
	dir, err := base("XDG_STATE_HOME", ".local", "state")
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appName), nil
}

// RuntimeDir returns the runtime directory.
// Checks XDG_RUNTIME_DIR first, falls back to StateDir()/run.
func RuntimeDir() (string, error) {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, appName), nil
	}
	state, err := StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(state, "run"), nil
}

// PluginsDir returns the default plugins directory under DataDir.
func PluginsDir() (string, error) {
	data, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(data, "plugins"), nil
}

// ConfigFile returns the default configuration file path.
func ConfigFile() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// EnsureDir creates a directory and all parent directories if they don't exist.
// Directories are created with 0700 permissions.
func EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o700); err != nil {
		return oops.In("xdg").With("path", path).Wrapf(err, "create directory")
	}
	return nil
}
