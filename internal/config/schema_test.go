// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package config_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/config"
)

func TestGenerateSchema(t *testing.T) {
	raw, err := config.GenerateSchema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, config.SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"token", "ratelimit", "session", "database", "http_addr", "bcrypt_cost"} {
		assert.Contains(t, props, key)
	}

	token := props["token"].(map[string]any)["properties"].(map[string]any)
	lifetime := token["lifetime"].(map[string]any)
	assert.Equal(t, "string", lifetime["type"], "durations are written as strings")
}

func TestValidateYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"empty document", "", false},
		{"minimal", "token:\n  signing_key: " + testKey + "\n", false},
		{"durations", "token:\n  lifetime: 1h30m\nratelimit:\n  idle_ttl: 15m\n", false},
		{"trusted proxies", "trusted_proxies:\n  - 10.0.0.0/8\n", false},
		{"bad duration", "token:\n  lifetime: forever\n", true},
		{"unknown top-level key", "listen: :80\n", true},
		{"wrong type", "bcrypt_cost: high\n", true},
		{"cost out of range", "bcrypt_cost: 20\n", true},
		{"backend enum", "ratelimit:\n  backend: memcached\n", true},
		{"policy missing routes", "ratelimit:\n  policies:\n    - name: p\n", true},
		{"not yaml", "token: [unclosed\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := config.ValidateYAML([]byte(tt.yaml))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
