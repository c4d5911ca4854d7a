// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package command

import (
	"errors"

	"github.com/samber/oops"
)

// Error codes for command dispatch failures.
const (
	CodeNoCommand          = "NO_COMMAND"
	CodeTooFewArgs         = "TOO_FEW_ARGS"
	CodeNoPermission       = "NO_PERMISSION"
	CodeConversionFailed   = "CONVERSION_FAILED"
	CodeWrongActor         = "WRONG_ACTOR"
	CodeRateLimited        = "RATE_LIMITED"
	CodeHandlerFailed      = "HANDLER_FAILED"
	CodeInvalidName        = "INVALID_NAME"
	CodeInvalidDeclaration = "INVALID_DECLARATION"
	CodeUserError          = "USER_ERROR"
)

// Sentinel errors for constructor validation.
var (
	ErrNilRegistry = errors.New("command registry is nil")
	ErrNilChain    = errors.New("converter chain is nil")
)

// ErrNoCommand creates an error for an unknown command.
func ErrNoCommand(cmd string) error {
	return oops.Code(CodeNoCommand).
		With("command", cmd).
		Errorf("unknown command: %s", cmd)
}

// ErrTooFewArgs creates an error for a short argument list.
func ErrTooFewArgs(cmd, usage string, got, want int) error {
	return oops.Code(CodeTooFewArgs).
		With("command", cmd).
		With("usage", usage).
		With("got", got).
		With("want", want).
		Errorf("%s needs %d arguments, got %d", cmd, want, got)
}

// ErrNoPermission creates an error for permission denial.
func ErrNoPermission(cmd, permission string) error {
	return oops.Code(CodeNoPermission).
		With("command", cmd).
		With("permission", permission).
		Errorf("permission denied for command %s", cmd)
}

// ErrWrongActor creates an error for a command the actor kind cannot run.
func ErrWrongActor(cmd, want string) error {
	return oops.Code(CodeWrongActor).
		With("command", cmd).
		With("actor_type", want).
		Errorf("%s can only be run by %s", cmd, want)
}

// ErrRateLimited creates an error for rate limiting.
func ErrRateLimited(cooldownMs int64) error {
	return oops.Code(CodeRateLimited).
		With("cooldown_ms", cooldownMs).
		Errorf("Too many commands. Please slow down.")
}

// UserError creates an error whose message is shown to the actor as is.
func UserError(message string) error {
	return oops.Code(CodeUserError).With("message", message).Errorf("%s", message)
}

// PlayerMessage extracts an actor-facing message from an error.
func PlayerMessage(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return "Something went wrong. Try again."
	}

	ctx := oopsErr.Context()
	switch oopsErr.Code() {
	case CodeNoCommand:
		return "Unknown command. Try /help."
	case CodeNoPermission:
		return "You don't have permission to do that."
	case CodeTooFewArgs:
		if usage, ok := ctx["usage"].(string); ok && usage != "" {
			return "Usage: /" + usage
		}
		return "Not enough arguments."
	case CodeConversionFailed:
		if token, ok := ctx["token"].(string); ok {
			return "Invalid value: " + token
		}
		return "Invalid arguments."
	case CodeWrongActor:
		return "You can't run that command from here."
	case CodeRateLimited:
		return "Too many commands. Please slow down."
	case CodeUserError:
		if msg, ok := ctx["message"].(string); ok {
			return msg
		}
		return "Something went wrong. Try again."
	default:
		return "Something went wrong. Try again."
	}
}
