package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/shared"
)

type client struct {
	t       *testing.T
	handler http.Handler
	cookie  *http.Cookie
}

func newClient(t *testing.T, f *fixture) *client {
	t.Helper()
	r := chi.NewRouter()
	r.Use(f.sessions.LoadAndCommit(nil))
	r.Route("/auth", NewHandler(nil, f.service, shared.NewCSRFManager("csrf")).MountRoutes)
	return &client{t: t, handler: r}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	for _, ck := range rr.Result().Cookies() {
		if ck.Name == "gz_session" {
			c.cookie = ck
		}
	}
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func TestForgotPasswordDoesNotRevealAccounts(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	c := newClient(t, f)

	known := c.do(http.MethodPost, "/auth/password/forgot", map[string]string{"email": "a@x.com"})
	unknown := c.do(http.MethodPost, "/auth/password/forgot", map[string]string{"email": "nobody@x.com"})

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, known.Code, unknown.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())
	require.Equal(t, 1, f.notifier.count())
}

func TestLoginFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "ed@x.com", "secret1", accounts.RoleEditor, true)
	c := newClient(t, f)

	rr := c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ed@x.com", "password": "secret1"})
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Equal(t, true, decode(t, rr)["otp_required"])
	require.NotNil(t, c.cookie, "pending login must be persisted")

	rr = c.do(http.MethodPost, "/auth/login/verify", map[string]string{"code": f.notifier.last(t).payload.Code})
	require.Equal(t, http.StatusOK, rr.Code)
	body := decode(t, rr)
	require.NotEmpty(t, body["csrf_token"])

	rr = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	user := decode(t, rr)["user"].(map[string]any)
	require.Equal(t, "EDITOR", user["role"])
	require.Equal(t, "ed@x.com", user["email"])

	rr = c.do(http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, rr.Code)
	rr = c.do(http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginRejectsBadCredentialsVaguely(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "ed@x.com", "secret1", accounts.RoleEditor, true)
	c := newClient(t, f)

	wrong := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ed@x.com", "password": "nope"})
	missing := c.do(http.MethodPost, "/auth/login", map[string]string{"email": "ghost@x.com", "password": "nope"})
	require.Equal(t, http.StatusBadRequest, wrong.Code)
	require.Equal(t, wrong.Body.String(), missing.Body.String())
	require.Equal(t, "invalid email or password", decode(t, wrong)["detail"])
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)

	rr := c.do(http.MethodPost, "/auth/register", map[string]string{"email": "not-an-email", "password": "secret1"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	errs := decode(t, rr)["errors"].(map[string]any)
	require.Equal(t, "email", errs["email"])
	require.Equal(t, "required", errs["name"])

	rr = c.do(http.MethodPost, "/auth/register", map[string]string{"email": "a@x.com", "password": "abc", "name": "Ada"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, ErrWeakPassword.Error(), decode(t, rr)["detail"])
}

func TestRegisterAndVerifyOverHTTP(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)

	rr := c.do(http.MethodPost, "/auth/register", map[string]string{"email": "a@x.com", "password": "secret1", "name": "Ada"})
	require.Equal(t, http.StatusCreated, rr.Code)

	rr = c.do(http.MethodPost, "/auth/register", map[string]string{"email": "a@x.com", "password": "secret1", "name": "Ada"})
	require.Equal(t, http.StatusConflict, rr.Code)

	rr = c.do(http.MethodPost, "/auth/register/verify", map[string]string{"email": "a@x.com", "code": f.notifier.last(t).payload.Code})
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, f.account(t, "a@x.com").IsVerified)
}

func TestResetFlowOverHTTP(t *testing.T) {
	f := newFixture(t)
	f.createAccount(t, "a@x.com", "secret1", accounts.RoleCustomer, true)
	c := newClient(t, f)

	c.do(http.MethodPost, "/auth/password/forgot", map[string]string{"email": "a@x.com"})
	token := tokenFromLink(t, f.notifier.last(t).payload.Link)

	rr := c.do(http.MethodPost, "/auth/password/reset/verify", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, "a@x.com", decode(t, rr)["email"])

	rr = c.do(http.MethodPost, "/auth/password/reset", map[string]string{"token": token, "password": "newpass1"})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = c.do(http.MethodPost, "/auth/password/reset", map[string]string{"token": token, "password": "newpass2"})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	require.Equal(t, "invalid or expired token", decode(t, rr)["detail"])
}

func TestCSRFEndpoint(t *testing.T) {
	f := newFixture(t)
	c := newClient(t, f)
	rr := c.do(http.MethodGet, "/auth/csrf", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NotEmpty(t, decode(t, rr)["csrf_token"])
	require.NotNil(t, c.cookie)
}
