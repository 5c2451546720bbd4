// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package httpapi_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/httpapi"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

type errorBody struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func tokenRequest(body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, httpapi.RouteToken, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "198.51.100.7:40000"
	return req
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func (f *fixture) mint(t *testing.T, username, password string) string {
	t.Helper()
	rec := f.do(tokenRequest(`{"username":"` + username + `","password":"` + password + `"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func TestNewRouter_RequiresDependencies(t *testing.T) {
	_, err := httpapi.NewRouter(httpapi.Deps{})
	require.Error(t, err)
}

func TestIssueToken(t *testing.T) {
	t.Run("valid credentials return a token for the subject", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		raw := f.mint(t, "alice", "wonderland")

		id, ok := f.issuer.Validate(raw)
		require.True(t, ok)
		assert.Equal(t, "alice", id.Subject)
		assert.Equal(t, auth.RoleUser, id.Role)
	})

	t.Run("wrong password and unknown user look the same", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		wrong := f.do(tokenRequest(`{"username":"alice","password":"not-the-one"}`))
		unknown := f.do(tokenRequest(`{"username":"mallory","password":"whatever1"}`))

		for _, rec := range []*httptest.ResponseRecorder{wrong, unknown} {
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, "bad_credentials", body.Error.Code)
			assert.Equal(t, "Invalid credentials.", body.Error.Message)
		}
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	})

	t.Run("malformed body is rejected", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		rec := f.do(tokenRequest(`{"username":`))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "invalid_request", decodeError(t, rec).Error.Code)
	})

	t.Run("exhausted bucket yields 429 with Retry-After", func(t *testing.T) {
		limits := ratelimit.Config{Bucket: ratelimit.BucketPolicy{Capacity: 1, RefillPerSecond: 0.25}}
		f := newFixture(t, fixtureOptions{limits: &limits})

		first := f.do(tokenRequest(`{"username":"alice","password":"wonderland"}`))
		require.Equal(t, http.StatusOK, first.Code)

		second := f.do(tokenRequest(`{"username":"alice","password":"wonderland"}`))
		assert.Equal(t, http.StatusTooManyRequests, second.Code)
		assert.Equal(t, "rate_limited", decodeError(t, second).Error.Code)
		secs, err := strconv.Atoi(second.Header().Get("Retry-After"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, secs, 1)
		assert.LessOrEqual(t, secs, 4)
	})

	t.Run("route window applies to token issuance", func(t *testing.T) {
		limits := ratelimit.DefaultConfig()
		limits.Policies[0].Limit = 2
		limits.Policies[0].Length = time.Minute
		f := newFixture(t, fixtureOptions{limits: &limits})

		for i := 0; i < 2; i++ {
			rec := f.do(tokenRequest(`{"username":"alice","password":"wrong-password"}`))
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		}
		rec := f.do(tokenRequest(`{"username":"alice","password":"wonderland"}`))
		assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	})

	t.Run("store failure yields 503", func(t *testing.T) {
		f := newFixture(t, fixtureOptions{})
		f.store.FailWith(errStoreDown)

		rec := f.do(tokenRequest(`{"username":"alice","password":"wonderland"}`))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "unavailable", decodeError(t, rec).Error.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func bearerGet(path, token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestProtectedResources(t *testing.T) {
	f := newFixture(t, fixtureOptions{})
	userToken := f.mint(t, "alice", "wonderland")
	adminToken := f.mint(t, "root", "supersecret")

	tests := []struct {
		name   string
		path   string
		token  string
		status int
	}{
		{"secret data with bearer", httpapi.RouteSecretData, userToken, http.StatusOK},
		{"secret data anonymous", httpapi.RouteSecretData, "", http.StatusUnauthorized},
		{"secret data with garbage token", httpapi.RouteSecretData, "not.a.jwt", http.StatusUnauthorized},
		{"admin-only as user", httpapi.RouteSecretAdmin, userToken, http.StatusForbidden},
		{"admin-only as admin", httpapi.RouteSecretAdmin, adminToken, http.StatusOK},
		{"bearer-only with bearer", httpapi.RouteBearerOnlyData, userToken, http.StatusOK},
		{"bearer-only anonymous", httpapi.RouteBearerOnlyData, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(bearerGet(tt.path, tt.token))
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.status == http.StatusUnauthorized {
				assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
			}
		})
	}

	t.Run("response names the subject and scheme", func(t *testing.T) {
		rec := f.do(bearerGet(httpapi.RouteSecretData, userToken))
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "alice", body["subject"])
		assert.Equal(t, "bearer", body["scheme"])
	})

	t.Run("unknown route uses the error envelope", func(t *testing.T) {
		rec := f.do(bearerGet("/nope", ""))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "not_found", decodeError(t, rec).Error.Code)
	})
}
