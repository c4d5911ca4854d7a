// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"regexp"

	"github.com/samber/oops"
	"golang.org/x/text/cases"
)

// MaxNameLength is the maximum length for command and alias names.
const MaxNameLength = 32

// namePattern: a letter followed by letters, digits or _!?@#$%^+-.
var namePattern = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_!?@#$%^+\-]*$`)

type nameKind string

const (
	kindCommand nameKind = "command"
	kindAlias   nameKind = "alias"
)

// ValidateCommandName validates a command name.
func ValidateCommandName(name string) error {
	return kindCommand.validate(name)
}

// ValidateAliasName validates an alias name.
func ValidateAliasName(name string) error {
	return kindAlias.validate(name)
}

func (k nameKind) validate(name string) error {
	errb := oops.Code(CodeInvalidName).With("kind", string(k))
	switch {
	case name == "":
		return errb.Errorf("%s name cannot be empty", k)
	case len(name) > MaxNameLength:
		return errb.With("length", len(name)).With("max", MaxNameLength).
			Errorf("%s name exceeds maximum length of %d", k, MaxNameLength)
	case !namePattern.MatchString(name):
		return errb.With("name", name).
			Errorf("%s name must start with a letter and contain only letters, digits, or _!?@#$%%^+-", k)
	}
	return nil
}

// foldName normalizes a command or alias name for lookup. Casers are
// stateful, so each call gets its own.
func foldName(name string) string {
	return cases.Fold().String(name)
}
