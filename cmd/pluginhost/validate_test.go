// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlugin(t *testing.T, root, name string, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(root, name)
	require.NoError(t, os.MkdirAll(dir, 0o750))
	for file, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o600))
	}
	return dir
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestValidate_WelcomePlugin(t *testing.T) {
	out, err := runCmd(t, "validate", filepath.Join("..", "..", "plugins", "welcome"))
	require.NoError(t, err)
	assert.Contains(t, out, "ok")
	assert.Contains(t, out, "welcome 1.0.0 (lua)")
}

func TestValidate_PluginsDirectory(t *testing.T) {
	root := t.TempDir()
	writePlugin(t, root, "good", map[string]string{
		"plugin.toml": "id = \"good\"\nversion = \"0.1.0\"\ntype = \"lua\"\n\n[lua]\nentry = \"main.lua\"\n",
		"main.lua":    "-- empty\n",
	})
	writePlugin(t, root, "noentry", map[string]string{
		"plugin.yaml": "id: noentry\nversion: 1.0.0\ntype: lua\nlua:\n  entry: missing.lua\n",
	})
	writePlugin(t, root, "future", map[string]string{
		"plugin.yaml": "id: future\nversion: 1.0.0\nmin-runtime: 99\ntype: lua\nlua:\n  entry: main.lua\n",
		"main.lua":    "",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "not-a-plugin"), 0o750))

	out, err := runCmd(t, "validate", root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 of 3 plugins failed validation")
	assert.Contains(t, out, "good 0.1.0 (lua)")
	assert.Contains(t, out, "missing.lua not found")
	assert.Contains(t, out, "requires runtime 99")
	assert.NotContains(t, out, "not-a-plugin")
}

func TestValidate_BadDescriptor(t *testing.T) {
	dir := writePlugin(t, t.TempDir(), "bad", map[string]string{
		"plugin.yaml": "id: Bad\nversion: one\ntype: lua\n",
	})

	out, err := runCmd(t, "validate", dir)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
}

func TestValidate_NothingFound(t *testing.T) {
	_, err := runCmd(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plugin descriptors found")
}

func TestValidate_RequiresArgument(t *testing.T) {
	_, err := runCmd(t, "validate")
	require.Error(t, err)
}
