// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"errors"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"

	"github.com/carterperez-dev/sessionguard/internal/auth"
	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
)

type SessionService interface {
	AdminRevokeSessions(ctx context.Context, userID, clientIP string) (int64, error)
	SessionStats(ctx context.Context) (auth.SessionCounts, error)
}

// Probe describes a backing dependency shown on the stats page. Stats may be
// nil; its result is rendered as JSON unchanged.
type Probe struct {
	Name  string
	Ping  func(ctx context.Context) error
	Stats func() any
}

type HandlerConfig struct {
	Probes   []Probe
	Sessions SessionService
}

type Handler struct {
	probes   []Probe
	sessions SessionService
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{probes: cfg.Probes, sessions: cfg.Sessions}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator, adminOnly)

		r.Get("/admin/stats", h.GetSystemStats)
		r.Post("/admin/users/{userID}/sessions/revoke", h.RevokeUserSessions)
	})
}

// RevokeUserSessions ends every live refresh token of the target account.
// Access tokens already issued stay valid until they expire.
func (h *Handler) RevokeUserSessions(w http.ResponseWriter, r *http.Request) {
	if h.sessions == nil {
		core.InternalServerError(w, errors.New("session service not configured"))
		return
	}

	target := chi.URLParam(r, "userID")
	if target == middleware.GetUserID(r.Context()) {
		core.Forbidden(w, "use logout-all to end your own sessions")
		return
	}

	revoked, err := h.sessions.AdminRevokeSessions(r.Context(), target, middleware.ClientIP(r))
	if err != nil {
		core.JSONError(w, err)
		return
	}

	core.OK(w, RevokeSessionsResponse{UserID: target, Revoked: revoked})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := SystemStatsResponse{
		Dependencies: make(map[string]DependencyStatus, len(h.probes)),
		Runtime:      readRuntime(),
	}

	for _, p := range h.probes {
		status := DependencyStatus{Healthy: p.Ping == nil || p.Ping(ctx) == nil}
		if p.Stats != nil {
			status.Stats = p.Stats()
		}
		resp.Dependencies[p.Name] = status
	}

	if h.sessions != nil {
		counts, err := h.sessions.SessionStats(ctx)
		if err != nil {
			core.InternalServerError(w, err)
			return
		}
		resp.Sessions = &counts
	}

	core.OK(w, resp)
}

func readRuntime() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		HeapAlloc:    mem.HeapAlloc,
		NumGC:        mem.NumGC,
	}
}

type RevokeSessionsResponse struct {
	UserID  string `json:"user_id"`
	Revoked int64  `json:"revoked"`
}

type SystemStatsResponse struct {
	Dependencies map[string]DependencyStatus `json:"dependencies"`
	Sessions     *auth.SessionCounts         `json:"sessions,omitempty"`
	Runtime      RuntimeStats                `json:"runtime"`
}

type DependencyStatus struct {
	Healthy bool `json:"healthy"`
	Stats   any  `json:"stats,omitempty"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"goroutines"`
	HeapAlloc    uint64 `json:"heap_alloc_bytes"`
	NumGC        uint32 `json:"gc_cycles"`
}
