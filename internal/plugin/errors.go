// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package plugin

import (
	"strings"

	"github.com/samber/oops"
)

// Error codes for plugin lifecycle failures.
const (
	CodeLoadFailed          = "LOAD_FAILED"
	CodeDuplicateID         = "DUPLICATE_ID"
	CodeDependencyCycle     = "DEPENDENCY_CYCLE"
	CodeMissingDependency   = "MISSING_DEPENDENCY"
	CodeDependencyLocked    = "DEPENDENCY_LOCKED"
	CodeInvalidState        = "INVALID_STATE"
	CodeNotFound            = "PLUGIN_NOT_FOUND"
	CodeStartFailed         = "START_FAILED"
	CodeIncompatibleRuntime = "INCOMPATIBLE_RUNTIME"
)

// ErrDuplicateID reports a load whose id is already held by a live instance.
func ErrDuplicateID(id, existingPath, path string) error {
	return oops.Code(CodeDuplicateID).
		With("plugin", id).
		With("existing_path", existingPath).
		With("path", path).
		Errorf("a plugin with id %q is already loaded from %s", id, existingPath)
}

// ErrDependencyCycle reports a plugin on a dependency cycle.
func ErrDependencyCycle(id string, cycle []string) error {
	return oops.Code(CodeDependencyCycle).
		With("plugin", id).
		With("cycle", cycle).
		Errorf("dependency cycle: %s", strings.Join(cycle, " -> "))
}

// ErrMissingDependency reports a dependency that is not available.
func ErrMissingDependency(id, dependency string) error {
	return oops.Code(CodeMissingDependency).
		With("plugin", id).
		With("dependency", dependency).
		Errorf("plugin %s depends on %s, which is not available", id, dependency)
}

// ErrDependencyLocked reports a stop blocked by started dependents.
func ErrDependencyLocked(id string, blocking []string) error {
	return oops.Code(CodeDependencyLocked).
		With("plugin", id).
		With("blocking", blocking).
		Errorf("plugin %s is required by %s", id, strings.Join(blocking, ", "))
}

// ErrInvalidState reports an operation not allowed in the current state.
func ErrInvalidState(id string, from, to State) error {
	return oops.Code(CodeInvalidState).
		With("plugin", id).
		With("from", from.String()).
		With("to", to.String()).
		Errorf("plugin %s cannot move from %s to %s", id, from, to)
}

// ErrNotFound reports an unknown plugin id.
func ErrNotFound(id string) error {
	return oops.Code(CodeNotFound).
		With("plugin", id).
		Errorf("no plugin with id %q", id)
}

// Blockers returns the dependents listed in a DEPENDENCY_LOCKED error.
func Blockers(err error) []string {
	oopsErr, ok := oops.AsOops(err)
	if !ok || oopsErr.Code() != CodeDependencyLocked {
		return nil
	}
	blocking, _ := oopsErr.Context()["blocking"].([]string) //nolint:errcheck // absent means none
	return blocking
}
