// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/pluginhost/pkg/errutil"
)

func TestAliases_Resolve(t *testing.T) {
	a := NewAliases()
	require.Empty(t, a.LoadSystem(map[string]string{
		"l":  "look",
		"gg": "say good game",
	}))
	require.NoError(t, a.Set("Alice", "hi", "say hello"))

	tests := []struct {
		name    string
		actor   string
		line    string
		want    string
		applied bool
	}{
		{"system alias", "bob", "l", "look", true},
		{"system alias keeps args", "bob", "l north", "look north", true},
		{"expansion args precede line args", "bob", "gg everyone", "say good game everyone", true},
		{"actor alias", "alice", "hi there", "say hello there", true},
		{"actor alias is per actor", "bob", "hi", "hi", false},
		{"case folded", "ALICE", "HI", "say hello", true},
		{"unknown word", "bob", "dance", "dance", false},
		{"empty line", "bob", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, applied := a.Resolve(tt.actor, tt.line, nil)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.applied, applied)
		})
	}
}

func TestAliases_ActorShadowsSystem(t *testing.T) {
	a := NewAliases()
	require.NoError(t, a.SetSystem("l", "look"))
	require.NoError(t, a.Set("alice", "l", "list"))

	got, _ := a.Resolve("alice", "l", nil)
	assert.Equal(t, "list", got)
	got, _ = a.Resolve("bob", "l", nil)
	assert.Equal(t, "look", got)
}

func TestAliases_CommandNamesShadowAliases(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Declaration{
		Name:    "look",
		Handler: func(context.Context, Actor, []any) (any, error) { return nil, nil },
	}))
	a := NewAliases()
	require.NoError(t, a.SetSystem("look", "say I am looking"))

	got, applied := a.Resolve("bob", "look here", reg)
	assert.False(t, applied)
	assert.Equal(t, "look here", got)
}

func TestAliases_Chains(t *testing.T) {
	a := NewAliases()
	require.NoError(t, a.SetSystem("a", "b one"))
	require.NoError(t, a.SetSystem("b", "c two"))

	got, applied := a.Resolve("bob", "a three", nil)
	assert.True(t, applied)
	assert.Equal(t, "c two one three", got)
}

func TestAliases_RejectsCycles(t *testing.T) {
	a := NewAliases()
	require.NoError(t, a.SetSystem("a", "b"))
	require.NoError(t, a.SetSystem("b", "c"))

	err := a.SetSystem("c", "a")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, CodeAliasCycle)
	errutil.AssertErrorContext(t, err, "alias", "c")

	got, _ := a.Resolve("bob", "c", nil)
	assert.Equal(t, "c", got, "rejected alias must not be kept")

	err = a.Set("alice", "self", "self again")
	errutil.AssertErrorCode(t, err, CodeAliasCycle)
}

func TestAliases_CycleRestoresPrevious(t *testing.T) {
	a := NewAliases()
	require.NoError(t, a.Set("alice", "x", "look"))
	require.NoError(t, a.Set("alice", "y", "x"))

	require.Error(t, a.Set("alice", "x", "y"))
	got, _ := a.Resolve("alice", "x", nil)
	assert.Equal(t, "look", got)
}

func TestAliases_InvalidName(t *testing.T) {
	a := NewAliases()
	err := a.Set("alice", "two words", "look")
	errutil.AssertErrorCode(t, err, CodeInvalidName)
}

func TestAliases_LoadSystemReportsRejected(t *testing.T) {
	a := NewAliases()
	rejected := a.LoadSystem(map[string]string{
		"ok":  "look",
		"p":   "q",
		"q":   "p",
		"1up": "look",
	})
	assert.Equal(t, []string{"1up", "q"}, rejected)
}

func TestAliases_RemoveAndClear(t *testing.T) {
	a := NewAliases()
	require.NoError(t, a.SetSystem("l", "look"))
	require.NoError(t, a.Set("alice", "hi", "say hi"))
	require.NoError(t, a.Set("alice", "bye", "say bye"))

	assert.Equal(t, map[string]string{"l": "look", "hi": "say hi", "bye": "say bye"}, a.For("alice"))

	assert.True(t, a.Remove("Alice", "HI"))
	assert.False(t, a.Remove("alice", "hi"))

	a.Clear("alice")
	assert.Equal(t, map[string]string{"l": "look"}, a.For("alice"))

	a.RemoveSystem("l")
	assert.Empty(t, a.For("alice"))
}

func TestAliases_ConcurrentAccess(t *testing.T) {
	a := NewAliases()
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = a.Set(fmt.Sprintf("p%d", i%3), fmt.Sprintf("a%d", i), "look")
		}()
		go func() {
			defer wg.Done()
			a.Resolve(fmt.Sprintf("p%d", i%3), fmt.Sprintf("a%d here", i), nil)
		}()
	}
	wg.Wait()
}
