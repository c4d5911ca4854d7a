// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package capability grants command permissions to actors.
//
// Pattern matching uses gobwas/glob with '.' as the segment separator:
//   - '*' matches a single segment (does not cross '.')
//   - '**' matches zero or more segments (crosses '.')
//
// Examples:
//   - "plugin.*" matches "plugin.stop" but NOT "plugin.stop.force"
//   - "plugin.**" matches both
//   - "**" matches any permission
package capability

import (
	"sort"
	"strings"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/holomush/pluginhost/internal/command"
)

// Everyone is the subject whose grants apply to every actor.
const Everyone = "*"

type compiledGrant struct {
	pattern string
	glob    glob.Glob
}

// Enforcer holds permission grants per actor name. Names are matched
// case-insensitively.
//
// Enforcer is safe for concurrent use. The zero value is ready to use.
type Enforcer struct {
	grants map[string][]compiledGrant
	mu     sync.RWMutex
}

var _ command.Authorizer = (*Enforcer)(nil)

// NewEnforcer creates an empty enforcer.
func NewEnforcer() *Enforcer {
	return &Enforcer{grants: make(map[string][]compiledGrant)}
}

// FromMap builds an enforcer from subject → patterns, as read from
// configuration.
func FromMap(grants map[string][]string) (*Enforcer, error) {
	e := NewEnforcer()
	for subject, patterns := range grants {
		if err := e.SetGrants(subject, patterns); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func fold(subject string) string {
	return strings.ToLower(subject)
}

// SetGrants replaces the grants of subject. Nothing changes when any
// pattern is invalid.
func (e *Enforcer) SetGrants(subject string, patterns []string) error {
	if subject == "" {
		return oops.In("capability").Errorf("subject cannot be empty")
	}

	compiled := make([]compiledGrant, len(patterns))
	for i, pattern := range patterns {
		errb := oops.In("capability").With("subject", subject).With("index", i)
		if pattern == "" {
			return errb.Errorf("grant %d is empty", i)
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return errb.With("pattern", pattern).Wrapf(err, "invalid grant %q", pattern)
		}
		compiled[i] = compiledGrant{pattern: pattern, glob: g}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.grants == nil {
		e.grants = make(map[string][]compiledGrant)
	}
	e.grants[fold(subject)] = compiled
	return nil
}

// RemoveGrants drops every grant of subject.
func (e *Enforcer) RemoveGrants(subject string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.grants, fold(subject))
}

// Grants returns a copy of the patterns granted to subject, or nil.
func (e *Enforcer) Grants(subject string) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	grants, ok := e.grants[fold(subject)]
	if !ok {
		return nil
	}
	patterns := make([]string, len(grants))
	for i, g := range grants {
		patterns[i] = g.pattern
	}
	return patterns
}

// Subjects lists subjects with grants, sorted.
func (e *Enforcer) Subjects() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.grants))
	for s := range e.grants {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Check reports whether subject, or Everyone, holds permission. An empty
// permission is never granted.
func (e *Enforcer) Check(subject, permission string) bool {
	if permission == "" {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return matches(e.grants[fold(subject)], permission) || matches(e.grants[Everyone], permission)
}

// Allowed implements command.Authorizer by actor name.
func (e *Enforcer) Allowed(actor command.Actor, permission string) bool {
	if actor == nil {
		return false
	}
	return e.Check(actor.Name(), permission)
}

func matches(grants []compiledGrant, permission string) bool {
	for _, g := range grants {
		if g.glob.Match(permission) {
			return true
		}
	}
	return false
}
