// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package errutil_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/pkg/errutil"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestCode(t *testing.T) {
	assert.Equal(t, "AUTH_BAD_CREDENTIALS", errutil.Code(oops.Code("AUTH_BAD_CREDENTIALS").Errorf("nope")))
	assert.Empty(t, errutil.Code(oops.With("k", "v").Errorf("uncoded")))
	assert.Empty(t, errutil.Code(errors.New("plain")))
	assert.Empty(t, errutil.Code(nil))

	wrapped := oops.With("operation", "outer").Wrap(oops.Code("INNER").Errorf("inner"))
	assert.Equal(t, "INNER", errutil.Code(wrapped))
	assert.True(t, errutil.HasCode(wrapped))
	assert.False(t, errutil.HasCode(errors.New("plain")))
}

func TestLogError_WithOopsError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	err := oops.Code("RATELIMIT_STORE_FAILED").
		With("limiter", "token_bucket").
		Errorf("connection refused")

	errutil.LogError(logger, "admission failed", err)

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "admission failed", entry["msg"])
	assert.Equal(t, "RATELIMIT_STORE_FAILED", entry["code"])
	assert.Equal(t, map[string]any{"limiter": "token_bucket"}, entry["context"])
}

func TestLogError_WithStandardError(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	errutil.LogErrorContext(context.Background(), logger, "operation failed", errors.New("standard error"))

	entry := decode(t, &buf)
	assert.Equal(t, "ERROR", entry["level"])
	assert.Contains(t, entry["error"], "standard error")
	assert.NotContains(t, entry, "code")
}
