// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secureauth/secureauth/internal/auth"
)

// REST routes.
const (
	RouteToken          = "/api/auth/token"
	RouteSecretData     = "/api/secret-data"
	RouteSecretAdmin    = "/api/secret-data/admin-only"
	RouteBearerOnlyData = "/api/data/secret"
)

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// issueToken handles POST /api/auth/token.
func (h *handler) issueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, codeInvalidRequest, "Request body must be JSON with username and password.")
		return
	}

	issued, err := h.orchestrator.Issue(c.Request.Context(), auth.IssueRequest{
		Username:  req.Username,
		Password:  req.Password,
		ClientKey: clientKey(c),
		Route:     RouteToken,
		Transport: auth.TransportREST,
	})
	if err != nil {
		h.respondIssuanceError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: issued.Token.Raw})
}

type secretResponse struct {
	Message string `json:"message"`
	Subject string `json:"subject"`
	Role    string `json:"role"`
	Scheme  string `json:"scheme"`
}

func secretFor(message string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := IdentityFrom(c)
		c.JSON(http.StatusOK, secretResponse{
			Message: message,
			Subject: id.Subject,
			Role:    id.Role,
			Scheme:  string(id.Scheme),
		})
	}
}
