// AngelaMos | 2026
// handler_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
)

type fakeSessions struct {
	revoked map[string]int64
	calls   []string
}

func (f *fakeSessions) AdminRevokeSessions(
	_ context.Context,
	userID, _ string,
) (int64, error) {
	f.calls = append(f.calls, userID)
	n, ok := f.revoked[userID]
	if !ok {
		return 0, core.NotFoundError("user")
	}
	return n, nil
}

func (f *fakeSessions) SessionStats(context.Context) (auth.SessionCounts, error) {
	return auth.SessionCounts{Active: 5, Expired: 2, Revoked: 9}, nil
}

func asAdmin(id string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := middleware.WithClaims(r.Context(), &middleware.AccessTokenClaims{
				UserID: id,
				Role:   "admin",
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func newRouter(h *Handler) *chi.Mux {
	router := chi.NewRouter()
	h.RegisterRoutes(router, asAdmin("admin-1"), middleware.RequireAdmin)
	return router
}

func TestRevokeUserSessions(t *testing.T) {
	sessions := &fakeSessions{revoked: map[string]int64{"user-7": 3}}
	router := newRouter(NewHandler(HandlerConfig{Sessions: sessions}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/admin/users/user-7/sessions/revoke", nil,
	))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data RevokeSessionsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, RevokeSessionsResponse{UserID: "user-7", Revoked: 3}, body.Data)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/admin/users/ghost/sessions/revoke", nil,
	))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/admin/users/admin-1/sessions/revoke", nil,
	))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	assert.Equal(t, []string{"user-7", "ghost"}, sessions.calls)
}

func TestRevokeUserSessionsWithoutService(t *testing.T) {
	router := newRouter(NewHandler(HandlerConfig{}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(
		http.MethodPost, "/admin/users/user-7/sessions/revoke", nil,
	))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestSystemStats(t *testing.T) {
	router := newRouter(NewHandler(HandlerConfig{
		Probes: []Probe{
			{
				Name:  "database",
				Ping:  func(context.Context) error { return nil },
				Stats: func() any { return sql.DBStats{OpenConnections: 2} },
			},
			{
				Name:  "redis",
				Ping:  func(context.Context) error { return errors.New("down") },
				Stats: func() any { return &redis.PoolStats{TotalConns: 4} },
			},
		},
		Sessions: &fakeSessions{},
	}))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data struct {
			Dependencies map[string]struct {
				Healthy bool           `json:"healthy"`
				Stats   map[string]any `json:"stats"`
			} `json:"dependencies"`
			Sessions auth.SessionCounts `json:"sessions"`
			Runtime  RuntimeStats       `json:"runtime"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	db := body.Data.Dependencies["database"]
	assert.True(t, db.Healthy)
	assert.EqualValues(t, 2, db.Stats["OpenConnections"])

	rdb := body.Data.Dependencies["redis"]
	assert.False(t, rdb.Healthy)
	assert.EqualValues(t, 4, rdb.Stats["TotalConns"])

	assert.Equal(t, auth.SessionCounts{Active: 5, Expired: 2, Revoked: 9}, body.Data.Sessions)
	assert.NotEmpty(t, body.Data.Runtime.GoVersion)
}
