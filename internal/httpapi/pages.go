// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package httpapi

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/pkg/errutil"
)

// Browser routes.
const (
	RouteHome     = "/"
	RouteLogin    = "/account/login"
	RouteLogout   = "/account/logout"
	RouteRegister = "/account/register"
)

// JWTCookieName carries the bearer token minted at browser login.
const JWTCookieName = "jwt_token"

const (
	msgSessionExpired = "Your session expired. Please try again."
	msgRegistered     = "Registration successful. Please sign in."
)

type formView struct {
	CSRFToken string
	Username  string
	Error     string
	Notice    string
}

type homeView struct {
	CSRFToken string
	Subject   string
	Role      string
}

func (h *handler) render(c *gin.Context, status int, name string, view any) {
	c.HTML(status, name, view)
}

// csrfToken fetches the session's token, failing the request if the
// session cannot be written.
func (h *handler) csrfToken(c *gin.Context) (string, bool) {
	token, err := h.sessions.CSRFToken(c.Writer, c.Request)
	if err != nil {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "csrf token unavailable", err)
		c.String(http.StatusInternalServerError, msgInternal)
		return "", false
	}
	return token, true
}

func (h *handler) loginPage(c *gin.Context) {
	token, ok := h.csrfToken(c)
	if !ok {
		return
	}
	view := formView{CSRFToken: token}
	if c.Query("registered") == "1" {
		view.Notice = msgRegistered
	}
	h.render(c, http.StatusOK, "login.html", view)
}

// login runs the same orchestrated issuance as the REST route and, on
// success, establishes the cookie session and sets the jwt_token cookie.
func (h *handler) login(c *gin.Context) {
	username := c.PostForm("username")
	if !h.sessions.CheckCSRF(c.Request, c.PostForm("csrf_token")) {
		h.rerender(c, http.StatusForbidden, "login.html", username, msgSessionExpired)
		return
	}

	issued, err := h.orchestrator.IssueBrowser(c.Writer, c.Request, auth.IssueRequest{
		Username:  username,
		Password:  c.PostForm("password"),
		ClientKey: clientKey(c),
		Route:     RouteLogin,
		Transport: auth.TransportBrowser,
	})
	if err != nil {
		status, msg := h.loginFailure(c, err)
		h.rerender(c, status, "login.html", username, msg)
		return
	}

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(JWTCookieName, issued.Token.Raw, int(h.orchestrator.Issuer().Lifetime().Seconds()), "/", "", true, true)
	c.Redirect(http.StatusSeeOther, RouteHome)
}

func (h *handler) loginFailure(c *gin.Context, err error) (int, string) {
	switch auth.Classify(err) {
	case auth.OutcomeBadCredentials:
		return http.StatusUnauthorized, msgBadCredentials
	case auth.OutcomeRateLimited:
		setRetryAfter(c, err)
		return http.StatusTooManyRequests, fmt.Sprintf("Too many sign-in attempts. Try again in %d seconds.",
			retryAfterSeconds(auth.RetryAfter(err)))
	case auth.OutcomeStoreUnavailable, auth.OutcomeCancelled:
		return http.StatusServiceUnavailable, msgUnavailable
	default:
		errutil.LogErrorContext(c.Request.Context(), h.logger, "browser login failed", err)
		return http.StatusInternalServerError, msgInternal
	}
}

// rerender shows a form again with an error and a fresh CSRF token.
func (h *handler) rerender(c *gin.Context, status int, page, username, msg string) {
	token, ok := h.csrfToken(c)
	if !ok {
		return
	}
	h.render(c, status, page, formView{CSRFToken: token, Username: username, Error: msg})
}

func (h *handler) logout(c *gin.Context) {
	if !h.sessions.CheckCSRF(c.Request, c.PostForm("csrf_token")) {
		c.Redirect(http.StatusSeeOther, RouteLogin)
		return
	}
	if err := h.sessions.Clear(c.Writer, c.Request); err != nil {
		errutil.LogErrorContext(c.Request.Context(), h.logger, "session clear failed", err)
	}
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(JWTCookieName, "", -1, "/", "", true, true)
	c.Redirect(http.StatusSeeOther, RouteLogin)
}

func (h *handler) registerPage(c *gin.Context) {
	token, ok := h.csrfToken(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "register.html", formView{CSRFToken: token})
}

func (h *handler) register(c *gin.Context) {
	username := c.PostForm("username")
	if !h.sessions.CheckCSRF(c.Request, c.PostForm("csrf_token")) {
		h.rerender(c, http.StatusForbidden, "register.html", username, msgSessionExpired)
		return
	}

	_, err := h.registrar.Register(c.Request.Context(), auth.Registration{
		Username:        username,
		Password:        c.PostForm("password"),
		ConfirmPassword: c.PostForm("confirm_password"),
	})
	if err != nil {
		status, msg := h.registrationFailure(c, err)
		h.rerender(c, status, "register.html", username, msg)
		return
	}
	c.Redirect(http.StatusSeeOther, RouteLogin+"?registered=1")
}

func (h *handler) registrationFailure(c *gin.Context, err error) (int, string) {
	switch errutil.Code(err) {
	case auth.CodeInvalidUsername:
		return http.StatusBadRequest, fmt.Sprintf(
			"Username must be %d to %d characters, start with a letter and use only letters, digits or underscores.",
			auth.MinUsernameLength, auth.MaxUsernameLength)
	case auth.CodeEmptyPassword:
		return http.StatusBadRequest, "Password is required."
	case auth.CodeInvalidPassword:
		return http.StatusBadRequest, fmt.Sprintf("Password must be %d to %d bytes long.",
			auth.MinPasswordLength, auth.MaxPasswordBytes)
	case auth.CodePasswordMismatch:
		return http.StatusBadRequest, "Passwords do not match."
	case auth.CodeUsernameTaken:
		return http.StatusConflict, "Username is already taken."
	}
	if auth.Classify(err) == auth.OutcomeStoreUnavailable {
		return http.StatusServiceUnavailable, msgUnavailable
	}
	errutil.LogErrorContext(c.Request.Context(), h.logger, "registration failed", err)
	return http.StatusInternalServerError, msgInternal
}

// home is served by the cookie strategy only.
func (h *handler) home(c *gin.Context) {
	id, ok := h.sessions.Authenticate(c.Writer, c.Request)
	if !ok {
		c.Redirect(http.StatusFound, RouteLogin)
		return
	}
	token, ok := h.csrfToken(c)
	if !ok {
		return
	}
	h.render(c, http.StatusOK, "home.html", homeView{CSRFToken: token, Subject: id.Subject, Role: id.Role})
}
