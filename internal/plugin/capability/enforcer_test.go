// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package capability_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/internal/plugin/capability"
)

type actor string

func (a actor) Name() string        { return string(a) }
func (a actor) SendMessage(string) {}

func TestEnforcer_Check(t *testing.T) {
	tests := []struct {
		name       string
		grants     []string
		permission string
		want       bool
	}{
		{"exact match", []string{"plugin.list"}, "plugin.list", true},
		{"single segment wildcard", []string{"plugin.*"}, "plugin.stop", true},
		{"single segment does not cross dots", []string{"plugin.*"}, "plugin.stop.force", false},
		{"double wildcard crosses dots", []string{"plugin.**"}, "plugin.stop.force", true},
		{"root wildcard", []string{"**"}, "welcome.admin", true},
		{"no match", []string{"plugin.list"}, "plugin.stop", false},
		{"partial prefix is not a match", []string{"plugin"}, "plugin.stop", false},
		{"no grants", nil, "plugin.list", false},
		{"empty permission", []string{"**"}, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := capability.NewEnforcer()
			require.NoError(t, e.SetGrants("alice", tt.grants))
			assert.Equal(t, tt.want, e.Check("alice", tt.permission))
		})
	}
}

func TestEnforcer_Allowed(t *testing.T) {
	e, err := capability.FromMap(map[string][]string{
		"Admin":             {"**"},
		capability.Everyone: {"help"},
	})
	require.NoError(t, err)

	assert.True(t, e.Allowed(actor("admin"), "plugin.stop"), "subjects are case-insensitive")
	assert.True(t, e.Allowed(actor("bob"), "help"), "everyone grants apply to all")
	assert.False(t, e.Allowed(actor("bob"), "plugin.stop"))
	assert.False(t, e.Allowed(nil, "help"))
}

func TestEnforcer_SetGrantsIsAtomic(t *testing.T) {
	e := capability.NewEnforcer()
	require.NoError(t, e.SetGrants("alice", []string{"plugin.list"}))

	err := e.SetGrants("alice", []string{"plugin.stop", "[unclosed"})
	require.Error(t, err)
	assert.Equal(t, []string{"plugin.list"}, e.Grants("alice"))

	require.Error(t, e.SetGrants("alice", []string{""}))
	require.Error(t, e.SetGrants("", []string{"x"}))
}

func TestEnforcer_GrantsAreCopied(t *testing.T) {
	e := capability.NewEnforcer()
	patterns := []string{"a.b"}
	require.NoError(t, e.SetGrants("alice", patterns))
	patterns[0] = "**"
	assert.False(t, e.Check("alice", "z"))

	got := e.Grants("alice")
	got[0] = "**"
	assert.Equal(t, []string{"a.b"}, e.Grants("alice"))
}

func TestEnforcer_RemoveAndSubjects(t *testing.T) {
	var e capability.Enforcer
	assert.False(t, e.Check("alice", "x"), "zero value denies")
	e.RemoveGrants("alice")

	require.NoError(t, e.SetGrants("Bob", []string{"x"}))
	require.NoError(t, e.SetGrants("alice", []string{"x"}))
	assert.Equal(t, []string{"alice", "bob"}, e.Subjects())

	e.RemoveGrants("BOB")
	assert.Nil(t, e.Grants("bob"))
	assert.Equal(t, []string{"alice"}, e.Subjects())
}

func TestEnforcer_Concurrent(t *testing.T) {
	e := capability.NewEnforcer()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				_ = e.SetGrants("alice", []string{"plugin.*"})
			} else {
				_ = e.Check("alice", "plugin.list")
			}
		}()
	}
	wg.Wait()
	assert.True(t, e.Check("alice", "plugin.list"))
}
