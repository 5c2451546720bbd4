// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package httpapi

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/pkg/errutil"
)

// Wire error codes. They are stable and independent of internal codes.
const (
	codeBadCredentials = "bad_credentials"
	codeRateLimited    = "rate_limited"
	codeUnavailable    = "unavailable"
	codeInvalidRequest = "invalid_request"
	codeUnauthorized   = "unauthorized"
	codeForbidden      = "forbidden"
	codeInternal       = "internal"
)

// Client-facing messages. A bad credential never says which part was wrong.
const (
	msgBadCredentials = "Invalid credentials."
	msgRateLimited    = "Too many requests. Try again later."
	msgUnavailable    = "Service temporarily unavailable."
	msgInternal       = "Internal server error."
)

// respondError sends the unified payload {"error": {"code", "message"}}.
func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"code": code, "message": message}})
}

// retryAfterSeconds rounds d up to whole seconds, never below one.
func retryAfterSeconds(d time.Duration) int {
	s := int(math.Ceil(d.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

func setRetryAfter(c *gin.Context, err error) {
	c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(auth.RetryAfter(err))))
}

// respondIssuanceError maps an orchestrator error onto an HTTP response.
func (h *handler) respondIssuanceError(c *gin.Context, err error) {
	switch auth.Classify(err) {
	case auth.OutcomeBadCredentials:
		respondError(c, http.StatusUnauthorized, codeBadCredentials, msgBadCredentials)
	case auth.OutcomeRateLimited:
		setRetryAfter(c, err)
		respondError(c, http.StatusTooManyRequests, codeRateLimited, msgRateLimited)
	case auth.OutcomeStoreUnavailable, auth.OutcomeCancelled:
		respondError(c, http.StatusServiceUnavailable, codeUnavailable, msgUnavailable)
	case auth.OutcomeInvalidInput:
		respondError(c, http.StatusBadRequest, codeInvalidRequest, err.Error())
	default:
		errutil.LogErrorContext(c.Request.Context(), h.logger, "unexpected issuance error", err)
		respondError(c, http.StatusInternalServerError, codeInternal, msgInternal)
	}
}
