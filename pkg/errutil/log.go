// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil logs and asserts samber/oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level. attrs are added after the error
// attributes.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	LogErrorContext(context.Background(), logger, msg, err, attrs...)
}

// LogErrorContext logs err at error level with ctx, so handlers that read
// trace ids from the context can attach them. For oops errors the code,
// domain, hint and context map are logged as separate attributes.
func LogErrorContext(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	args := []any{"error", err.Error()}
	if oopsErr, ok := oops.AsOops(err); ok {
		if code := oopsErr.Code(); code != nil {
			args = append(args, "code", code)
		}
		if domain := oopsErr.Domain(); domain != "" {
			args = append(args, "domain", domain)
		}
		if hint := oopsErr.Hint(); hint != "" {
			args = append(args, "hint", hint)
		}
		if c := oopsErr.Context(); len(c) > 0 {
			args = append(args, "context", c)
		}
	}
	logger.Log(ctx, slog.LevelError, msg, append(args, attrs...)...)
}
