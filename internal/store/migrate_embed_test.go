// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsFS_EveryUpHasDown(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)

	pattern := regexp.MustCompile(`^\d{6}_\w+\.(up|down)\.sql$`)
	names := make(map[string]bool, len(entries))
	for _, entry := range entries {
		assert.Regexp(t, pattern, entry.Name())
		names[entry.Name()] = true
	}
	for name := range names {
		if stem, ok := strings.CutSuffix(name, ".up.sql"); ok {
			assert.True(t, names[stem+".down.sql"], "missing down migration for %s", stem)
		}
	}
}
