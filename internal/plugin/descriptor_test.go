// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/internal/plugin"
	"github.com/holomush/pluginhost/pkg/errutil"
)

const welcomeYAML = `
id: welcome
name: Welcome Messages
version: 1.2.0
author: HoloMUSH Contributors
dependencies:
  - accounts
debug: true
type: lua
lua:
  entry: main.lua
`

const echoTOML = `
id = "echo"
version = "0.3.1"
min-runtime = 1
type = "binary"

[binary]
executable = "echo-plugin"
`

func TestParseYAML(t *testing.T) {
	d, err := plugin.ParseYAML([]byte(welcomeYAML))
	require.NoError(t, err)

	assert.Equal(t, "welcome", d.ID)
	assert.Equal(t, "Welcome Messages", d.DisplayName())
	assert.Equal(t, "1.2.0", d.Version)
	assert.Equal(t, []string{"accounts"}, d.Dependencies)
	assert.True(t, d.DependsOn("accounts"))
	assert.True(t, d.Debug)
	assert.Equal(t, plugin.TypeLua, d.Type)
	assert.Equal(t, "main.lua", d.Lua.Entry)
	assert.Equal(t, plugin.RuntimeVersion, d.Runtime(), "min-runtime defaults to the current runtime")
}

func TestParseTOML(t *testing.T) {
	d, err := plugin.ParseTOML([]byte(echoTOML))
	require.NoError(t, err)

	assert.Equal(t, "echo", d.ID)
	assert.Equal(t, "echo", d.DisplayName())
	assert.Equal(t, plugin.TypeBinary, d.Type)
	assert.Equal(t, "echo-plugin", d.Binary.Executable)
	assert.Equal(t, 1, d.MinRuntime)
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"empty", ""},
		{"missing id", "version: 1.0.0\ntype: lua\nlua:\n  entry: main.lua\n"},
		{"reserved id", "id: _global\nversion: 1.0.0\ntype: lua\nlua:\n  entry: main.lua\n"},
		{"uppercase id", "id: Welcome\nversion: 1.0.0\ntype: lua\nlua:\n  entry: main.lua\n"},
		{"bad version", "id: welcome\nversion: one\ntype: lua\nlua:\n  entry: main.lua\n"},
		{"unknown type", "id: welcome\nversion: 1.0.0\ntype: wasm\n"},
		{"static type in a file", "id: welcome\nversion: 1.0.0\ntype: static\n"},
		{"lua without entry", "id: welcome\nversion: 1.0.0\ntype: lua\n"},
		{"binary without executable", "id: echo\nversion: 1.0.0\ntype: binary\nbinary: {}\n"},
		{"unknown field", "id: welcome\nversion: 1.0.0\ntype: lua\nlua:\n  entry: main.lua\nevents: [say]\n"},
		{"zero min-runtime", "id: welcome\nversion: 1.0.0\nmin-runtime: 0\ntype: lua\nlua:\n  entry: main.lua\n"},
		{"bad dependency id", "id: welcome\nversion: 1.0.0\ndependencies: ['Bad Id']\ntype: lua\nlua:\n  entry: main.lua\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := plugin.ParseYAML([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestValidateID(t *testing.T) {
	valid := []string{"a", "echo", "echo-bot", "echo_bot", "a1", strings.Repeat("a", 64)}
	for _, id := range valid {
		assert.NoError(t, plugin.ValidateID(id), id)
	}
	invalid := []string{"", "_global", "1echo", "-echo", "Echo", "echo bot", strings.Repeat("a", 65)}
	for _, id := range invalid {
		err := plugin.ValidateID(id)
		require.Error(t, err, id)
		errutil.AssertErrorContext(t, err, "field", "id")
	}
}

func TestDescriptor_CheckRuntime(t *testing.T) {
	d := &plugin.Descriptor{ID: "future", MinRuntime: plugin.RuntimeVersion + 1}
	err := d.CheckRuntime()
	errutil.AssertErrorCode(t, err, plugin.CodeIncompatibleRuntime)
	errutil.AssertErrorContext(t, err, "min_runtime", plugin.RuntimeVersion+1)

	d.MinRuntime = plugin.RuntimeVersion
	assert.NoError(t, d.CheckRuntime())
}

func TestReadDescriptor(t *testing.T) {
	t.Run("prefers yaml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.YAMLDescriptor), []byte(welcomeYAML), 0o600))
		require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.TOMLDescriptor), []byte(echoTOML), 0o600))

		d, err := plugin.ReadDescriptor(dir)
		require.NoError(t, err)
		assert.Equal(t, "welcome", d.ID)
		assert.True(t, plugin.HasDescriptor(dir))
	})

	t.Run("falls back to toml", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, plugin.TOMLDescriptor), []byte(echoTOML), 0o600))

		d, err := plugin.ReadDescriptor(dir)
		require.NoError(t, err)
		assert.Equal(t, "echo", d.ID)
	})

	t.Run("invalid file names the path", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, plugin.YAMLDescriptor)
		require.NoError(t, os.WriteFile(path, []byte("id: [\n"), 0o600))

		_, err := plugin.ReadDescriptor(dir)
		errutil.AssertErrorContext(t, err, "path", path)
	})

	t.Run("no descriptor", func(t *testing.T) {
		dir := t.TempDir()
		_, err := plugin.ReadDescriptor(dir)
		require.Error(t, err)
		assert.False(t, plugin.HasDescriptor(dir))
	})
}
