// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Stdout(t *testing.T) {
	out, err := runCmd(t, "schema")
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, out, `"id"`)
	assert.Contains(t, out, `"min-runtime"`)
}

func TestSchema_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schemas", "plugin.schema.json")

	out, err := runCmd(t, "schema", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Generated "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}
