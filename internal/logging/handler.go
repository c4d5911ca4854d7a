// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package logging builds the host's slog loggers. Records carry the
// service name and version plus the trace and span ids of the context
// they were logged with.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel/trace"
)

// CodeInvalidLevel marks an unparseable log level.
const CodeInvalidLevel = "INVALID_LOG_LEVEL"

// levelHandler filters by its own level so plugin loggers can lower it
// without touching the shared output handler, which accepts everything.
type levelHandler struct {
	next  slog.Handler
	level slog.Leveler
}

func (h *levelHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *levelHandler) Handle(ctx context.Context, r slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return h.next.Handle(ctx, r) //nolint:wrapcheck // slog passthrough
}

func (h *levelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelHandler{next: h.next.WithAttrs(attrs), level: h.level}
}

func (h *levelHandler) WithGroup(name string) slog.Handler {
	return &levelHandler{next: h.next.WithGroup(name), level: h.level}
}

// Setup builds a logger writing to w, or stderr when w is nil. format is
// "text" or "json"; anything else means json. A nil level means info.
func Setup(service, version, format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if level == nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	var out slog.Handler = slog.NewJSONHandler(w, opts)
	if format == "text" {
		out = slog.NewTextHandler(w, opts)
	}
	out = out.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("version", version),
	})
	return slog.New(&levelHandler{next: out, level: level})
}

// SetDefault installs a Setup logger on stderr as the slog default.
func SetDefault(service, version, format string, level slog.Leveler) *slog.Logger {
	logger := Setup(service, version, format, level, nil)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel parses debug, info, warn or error in any case. Empty means
// info.
func ParseLevel(s string) (slog.Level, error) {
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, oops.Code(CodeInvalidLevel).With("level", s).Wrap(err)
	}
	return l, nil
}

// ForPlugin derives a plugin logger carrying the plugin id and version.
// With debug set, the logger emits debug records even when base does not.
func ForPlugin(base *slog.Logger, id, version string, debug bool) *slog.Logger {
	h := base.Handler()
	if lh, ok := h.(*levelHandler); ok && debug {
		h = &levelHandler{next: lh.next, level: slog.LevelDebug}
	}
	return slog.New(h).With("plugin", id, "plugin_version", version)
}
