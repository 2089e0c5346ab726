// AngelaMos | 2026
// handler_test.go

package auth_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

type api struct {
	t      *testing.T
	h      *serviceHarness
	router http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()

	h := newServiceHarness(t)
	router := chi.NewRouter()
	passthrough := func(next http.Handler) http.Handler { return next }

	auth.NewHandler(h.svc).RegisterRoutes(
		router,
		middleware.Authenticator(h.svc),
		passthrough,
	)

	return &api{t: t, h: h, router: router}
}

func (a *api) do(method, path, bearer string, body any) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}

	r := httptest.NewRequest(method, path, &buf)
	r.Header.Set("Content-Type", "application/json")
	r.RemoteAddr = testIP + ":40000"
	if bearer != "" {
		r.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, r)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func (a *api) register(name string) auth.AuthResponse {
	a.t.Helper()

	rec, env := a.do(http.MethodPost, "/auth/register", "", auth.RegisterRequest{
		UserName: name,
		Email:    name + "@example.com",
		Password: testPassword,
	})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp auth.AuthResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &resp))
	return resp
}

func TestHandlerRegister(t *testing.T) {
	a := newAPI(t)

	resp := a.register("alice")
	assert.Equal(t, "alice", resp.User.UserName)
	assert.NotEmpty(t, resp.Tokens.AccessToken)

	rec, env := a.do(http.MethodPost, "/auth/register", "", auth.RegisterRequest{
		UserName: "alice",
		Email:    "other@example.com",
		Password: testPassword,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "username already exists", env.Error.Message)

	rec, env = a.do(http.MethodPost, "/auth/register", "", auth.RegisterRequest{
		UserName: "carol",
		Email:    "carol@example.com",
		Password: "password",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, string(env.Error.Details), string(auth.PasswordRequiresDigit))

	rec, _ = a.do(http.MethodPost, "/auth/register", "", auth.RegisterRequest{
		UserName: "dave@x",
		Email:    "dave@example.com",
		Password: testPassword,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	r := httptest.NewRequest(http.MethodPost, "/auth/register", bytes.NewBufferString("{"))
	raw := httptest.NewRecorder()
	a.router.ServeHTTP(raw, r)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestHandlerLoginRefreshRevoke(t *testing.T) {
	a := newAPI(t)
	a.register("alice")

	rec, env := a.do(http.MethodPost, "/auth/login", "", auth.LoginRequest{
		Identifier: "alice",
		Password:   "wrong-Password1",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid username, email or password", env.Error.Message)

	rec, env = a.do(http.MethodPost, "/auth/login", "", auth.LoginRequest{
		Identifier: "alice",
		Password:   testPassword,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var login auth.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &login))

	rec, env = a.do(http.MethodPost, "/auth/refresh", "", auth.RefreshRequest{
		RefreshToken: login.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var refreshed auth.AuthResponse
	require.NoError(t, json.Unmarshal(env.Data, &refreshed))

	rec, env = a.do(http.MethodPost, "/auth/refresh", "", auth.RefreshRequest{
		RefreshToken: login.Tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", env.Error.Code)

	rec, env = a.do(http.MethodPost, "/auth/revoke", "", auth.RefreshRequest{
		RefreshToken: refreshed.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":true}`, string(env.Data))

	rec, env = a.do(http.MethodPost, "/auth/revoke", "", auth.RefreshRequest{
		RefreshToken: refreshed.Tokens.RefreshToken,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":false}`, string(env.Data))
}

func TestHandlerAuthenticatedRoutes(t *testing.T) {
	a := newAPI(t)
	resp := a.register("alice")
	access := resp.Tokens.AccessToken

	rec, _ := a.do(http.MethodGet, "/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, env := a.do(http.MethodGet, "/auth/me", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me auth.UserResponse
	require.NoError(t, json.Unmarshal(env.Data, &me))
	assert.Equal(t, resp.User.ID, me.ID)

	rec, env = a.do(http.MethodGet, "/auth/sessions", access, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sessions auth.SessionsResponse
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	require.Len(t, sessions.Sessions, 1)
	assert.Equal(t, testIP, sessions.Sessions[0].CreatedByIP)

	rec, _ = a.do(http.MethodDelete, "/auth/sessions/does-not-exist", access, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.do(http.MethodDelete, "/auth/sessions/"+sessions.Sessions[0].ID, access, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = a.do(http.MethodPost, "/auth/logout", access, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, env = a.do(http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "TOKEN_REVOKED", env.Error.Code)
}

func TestHandlerLogoutAll(t *testing.T) {
	a := newAPI(t)
	resp := a.register("alice")

	rec, env := a.do(http.MethodPost, "/auth/logout-all", resp.Tokens.AccessToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"revoked":1}`, string(env.Data))

	rec, _ = a.do(http.MethodPost, "/auth/refresh", "", auth.RefreshRequest{
		RefreshToken: resp.Tokens.RefreshToken,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerChangePassword(t *testing.T) {
	a := newAPI(t)
	resp := a.register("alice")
	access := resp.Tokens.AccessToken

	rec, env := a.do(http.MethodPost, "/auth/change-password", access, auth.ChangePasswordRequest{
		CurrentPassword: "wrong-Password1",
		NewPassword:     newPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "current password is incorrect", env.Error.Message)

	rec, _ = a.do(http.MethodPost, "/auth/change-password", access, auth.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     "weak",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = a.do(http.MethodPost, "/auth/change-password", access, auth.ChangePasswordRequest{
		CurrentPassword: testPassword,
		NewPassword:     newPassword,
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, _ = a.do(http.MethodGet, "/auth/me", access, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = a.do(http.MethodPost, "/auth/login", "", auth.LoginRequest{
		Identifier: "alice",
		Password:   newPassword,
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerPasswordReset(t *testing.T) {
	a := newAPI(t)
	a.register("alice")

	for _, email := range []string{"alice@example.com", "ghost@example.com"} {
		rec, env := a.do(http.MethodPost, "/auth/forgot-password", "", auth.ForgotPasswordRequest{
			Email: email,
		})
		assert.Equal(t, http.StatusAccepted, rec.Code)
		assert.JSONEq(t,
			`{"message":"if the account exists, a reset link has been sent"}`,
			string(env.Data),
		)
	}

	rec, env := a.do(http.MethodPost, "/auth/reset-password", "", auth.ResetPasswordRequest{
		Email:       "alice@example.com",
		Token:       "forged",
		NewPassword: newPassword,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid or expired reset token", env.Error.Message)
}
