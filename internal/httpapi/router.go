// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

// Package httpapi exposes token issuance, protected data and the browser
// account pages over HTTP.
package httpapi

import (
	"embed"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/secureauth/secureauth/internal/auth"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the collaborators the router needs.
type Deps struct {
	Orchestrator *auth.Orchestrator
	Bearer       *auth.BearerStrategy
	Sessions     *auth.CookieSessions
	Registrar    *auth.Registrar
	Logger       *slog.Logger

	// TrustedProxies lists the proxies whose forwarding headers are
	// believed when deriving the client address. Nil trusts none.
	TrustedProxies []string
}

type handler struct {
	orchestrator *auth.Orchestrator
	bearer       *auth.BearerStrategy
	sessions     *auth.CookieSessions
	registrar    *auth.Registrar
	logger       *slog.Logger
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.Orchestrator == nil {
		return nil, oops.Errorf("orchestrator is required")
	}
	if deps.Bearer == nil {
		return nil, oops.Errorf("bearer strategy is required")
	}
	if deps.Sessions == nil {
		return nil, oops.Errorf("cookie sessions are required")
	}
	if deps.Registrar == nil {
		return nil, oops.Errorf("registrar is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	h := &handler{
		orchestrator: deps.Orchestrator,
		bearer:       deps.Bearer,
		sessions:     deps.Sessions,
		registrar:    deps.Registrar,
		logger:       logger,
	}

	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, oops.Code("HTTP_TEMPLATES_INVALID").Wrap(err)
	}

	r := gin.New()
	if err := r.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, oops.Code("HTTP_TRUSTED_PROXIES_INVALID").With("proxies", deps.TrustedProxies).Wrap(err)
	}
	r.Use(gin.Recovery(), requestLogger(logger))
	r.SetHTMLTemplate(tmpl)

	r.POST(RouteToken, h.issueToken)

	either := authenticate(h.bearer, h.sessions)
	r.GET(RouteSecretData, either, secretFor("This is secret data."))
	r.GET(RouteSecretAdmin, either, requireRole(auth.RoleAdmin), secretFor("This is admin-only data."))
	r.GET(RouteBearerOnlyData, authenticate(h.bearer), secretFor("This is secret data for bearer tokens only."))

	r.GET(RouteHome, h.home)
	r.GET(RouteLogin, h.loginPage)
	r.POST(RouteLogin, h.login)
	r.POST(RouteLogout, h.logout)
	r.GET(RouteRegister, h.registerPage)
	r.POST(RouteRegister, h.register)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "not_found", "Not found.")
	})
	return r, nil
}
