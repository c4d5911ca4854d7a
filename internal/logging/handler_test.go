// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/holomush/pluginhost/pkg/errutil"
)

// records decodes one JSON object per line.
func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec), line)
		out = append(out, rec)
	}
	return out
}

func TestSetup_Formats(t *testing.T) {
	for _, format := range []string{"json", "", "yaml"} {
		t.Run("json/"+format, func(t *testing.T) {
			var buf bytes.Buffer
			Setup("pluginhost", "1.0.0", format, nil, &buf).Info("hello", "n", 3)

			recs := records(t, &buf)
			require.Len(t, recs, 1)
			assert.Equal(t, "hello", recs[0]["msg"])
			assert.Equal(t, "pluginhost", recs[0]["service"])
			assert.Equal(t, "1.0.0", recs[0]["version"])
			assert.InDelta(t, 3, recs[0]["n"], 0)
		})
	}

	var buf bytes.Buffer
	Setup("pluginhost", "1.0.0", "text", nil, &buf).Info("hello")
	assert.Contains(t, buf.String(), "msg=hello")
	assert.Contains(t, buf.String(), "service=pluginhost")
}

func TestSetup_TraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("pluginhost", "1.0.0", "json", nil, &buf)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced")
	logger.Info("untraced")

	recs := records(t, &buf)
	require.Len(t, recs, 2)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", recs[0]["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", recs[0]["span_id"])
	assert.NotContains(t, recs[1], "trace_id")
	assert.NotContains(t, recs[1], "span_id")
}

func TestSetup_LevelAndGroups(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("pluginhost", "1.0.0", "json", slog.LevelWarn, &buf)

	logger.Info("dropped")
	logger.WithGroup("tick").With("n", 1).Warn("slow")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "slow", recs[0]["msg"])
	assert.Equal(t, map[string]any{"n": float64(1)}, recs[0]["tick"])
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	t.Cleanup(func() { slog.SetDefault(original) })

	logger := SetDefault("pluginhost", "2.0.0", "json", slog.LevelInfo)
	assert.Same(t, logger, slog.Default())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"Info":  slog.LevelInfo,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	errutil.AssertErrorCode(t, err, CodeInvalidLevel)
	errutil.AssertErrorContext(t, err, "level", "loud")
}

func TestForPlugin(t *testing.T) {
	var buf bytes.Buffer
	base := Setup("pluginhost", "1.0.0", "json", slog.LevelInfo, &buf)

	ForPlugin(base, "echo", "0.1.0", false).Debug("hidden")
	assert.Empty(t, buf.String())

	ForPlugin(base, "echo", "0.1.0", true).Debug("shown")
	base.Debug("still hidden")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "shown", recs[0]["msg"])
	assert.Equal(t, "echo", recs[0]["plugin"])
	assert.Equal(t, "0.1.0", recs[0]["plugin_version"])
	assert.Equal(t, "pluginhost", recs[0]["service"])
}
