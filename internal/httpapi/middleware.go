// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

const identityKey = "secureauth.identity"

// requestLogger logs one line per request. Query strings are left out
// because they may carry credentials.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"client", clientKey(c),
			"duration", time.Since(start))
	}
}

// clientKey is the admission partition key for the request.
func clientKey(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return ratelimit.UnknownClient
}

// authenticate resolves an identity with the first strategy that accepts
// the request, or aborts with 401.
func authenticate(strategies ...auth.Strategy) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := auth.FirstOf(c.Writer, c.Request, strategies...)
		if !ok {
			c.Header("WWW-Authenticate", `Bearer realm="secureauth"`)
			respondError(c, http.StatusUnauthorized, codeUnauthorized, "Authentication required.")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// requireRole aborts with 403 unless the resolved identity carries role.
func requireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || !id.HasRole(role) {
			respondError(c, http.StatusForbidden, codeForbidden, "Insufficient role.")
			return
		}
		c.Next()
	}
}

// IdentityFrom returns the identity resolved by the authentication
// middleware.
func IdentityFrom(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok
}
