// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SecureAuth Contributors

package httpapi_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/secureauth/secureauth/internal/auth"
	"github.com/secureauth/secureauth/internal/auth/authtest"
	"github.com/secureauth/secureauth/internal/httpapi"
	"github.com/secureauth/secureauth/internal/ratelimit"
)

type fixture struct {
	router *gin.Engine
	store  *authtest.MemoryCredentials
	issuer *auth.TokenIssuer
}

type fixtureOptions struct {
	limits *ratelimit.Config
}

func newFixture(t *testing.T, opts fixtureOptions) *fixture {
	t.Helper()
	stack := authtest.NewStack(t, authtest.StackOptions{Limits: opts.limits})

	router, err := httpapi.NewRouter(httpapi.Deps{
		Orchestrator: stack.Orchestrator,
		Bearer:       stack.Bearer,
		Sessions:     stack.Sessions,
		Registrar:    stack.Registrar,
	})
	require.NoError(t, err)

	return &fixture{router: router, store: stack.Store, issuer: stack.Issuer}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

// browser replays cookies between requests the way a user agent would.
type browser struct {
	f       *fixture
	cookies map[string]*http.Cookie
}

func newBrowser(f *fixture) *browser {
	return &browser{f: f, cookies: make(map[string]*http.Cookie)}
}

func (b *browser) send(req *http.Request) *httptest.ResponseRecorder {
	req.RemoteAddr = "192.0.2.10:5555"
	for _, c := range b.cookies {
		req.AddCookie(c)
	}
	rec := b.f.do(req)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(b.cookies, c.Name)
			continue
		}
		b.cookies[c.Name] = c
	}
	return rec
}

func (b *browser) get(path string) *httptest.ResponseRecorder {
	return b.send(httptest.NewRequest(http.MethodGet, path, nil))
}

func (b *browser) post(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.send(req)
}

var csrfPattern = regexp.MustCompile(`name="csrf_token" value="([0-9a-f]+)"`)

func csrfFrom(t *testing.T, body string) string {
	t.Helper()
	m := csrfPattern.FindStringSubmatch(body)
	require.Len(t, m, 2, "no csrf token in page")
	return m[1]
}

// login signs the browser in as username and returns the final response.
func (b *browser) login(t *testing.T, username, password string) *httptest.ResponseRecorder {
	t.Helper()
	page := b.get(httpapi.RouteLogin)
	require.Equal(t, http.StatusOK, page.Code)
	return b.post(httpapi.RouteLogin, url.Values{
		"csrf_token": {csrfFrom(t, page.Body.String())},
		"username":   {username},
		"password":   {password},
	})
}

var errStoreDown = errors.New("connection refused")
