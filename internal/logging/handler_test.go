// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "Failed to parse JSON: %s", buf.String())
	return entry
}

func TestSetup_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("secureauth", "1.0.0", "json", &buf)

	logger.Info("token issued")

	entry := decode(t, &buf)
	assert.Equal(t, "token issued", entry["msg"])
	assert.Equal(t, "secureauth", entry["service"])
	assert.Equal(t, "1.0.0", entry["version"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "level")
}

func TestSetup_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("secureauth", "1.0.0", "text", &buf)

	logger.Info("token issued")

	assert.Contains(t, buf.String(), "token issued")
	assert.Contains(t, buf.String(), "service=secureauth")
}

func TestSetup_DefaultFormatIsJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup("secureauth", "1.0.0", "", &buf).Info("hello")
	decode(t, &buf)
}

func TestSetupLevel_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := SetupLevel("secureauth", "1.0.0", "json", slog.LevelInfo, &buf)

	logger.Debug("token rejected", "reason", "expired")
	assert.Empty(t, buf.String())
}

func TestHandler_TraceContext(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("secureauth", "1.0.0", "json", &buf)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	logger.InfoContext(ctx, "traced message")

	entry := decode(t, &buf)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", entry["span_id"])
}

func TestHandler_NoTraceContext(t *testing.T) {
	var buf bytes.Buffer
	Setup("secureauth", "1.0.0", "json", &buf).Info("untraced")

	entry := decode(t, &buf)
	assert.NotContains(t, entry, "trace_id")
	assert.NotContains(t, entry, "span_id")
}

func TestHandler_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := Setup("secureauth", "1.0.0", "json", &buf)

	logger.With("signing_key", "k3y").
		WithGroup("request").
		Info("login",
			"username", "alice",
			"password", "hunter2",
			"Password_Hash", "$2a$11$abc",
			"token", "eyJ.x.y",
			slog.Group("headers", "cookie", "secureauth_session=abc"),
		)

	out := buf.String()
	for _, secret := range []string{"k3y", "hunter2", "$2a$11$abc", "eyJ.x.y", "secureauth_session=abc"} {
		assert.NotContains(t, out, secret)
	}

	entry := decode(t, &buf)
	assert.Equal(t, Redacted, entry["signing_key"])
	req := entry["request"].(map[string]any)
	assert.Equal(t, "alice", req["username"])
	assert.Equal(t, Redacted, req["password"])
	assert.Equal(t, Redacted, req["Password_Hash"])
	assert.Equal(t, Redacted, req["token"])
	assert.Equal(t, Redacted, req["headers"].(map[string]any)["cookie"])
}

func TestIsSensitive(t *testing.T) {
	assert.True(t, IsSensitive("password"))
	assert.True(t, IsSensitive("TOKEN"))
	assert.False(t, IsSensitive("username"))
	assert.False(t, IsSensitive("token_id"))
}

func TestSetDefault(t *testing.T) {
	original := slog.Default()
	defer slog.SetDefault(original)

	logger := SetDefault("secureauth", "2.0.0", "json")
	assert.Same(t, logger, slog.Default())
}
