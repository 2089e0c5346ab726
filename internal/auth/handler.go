// AngelaMos | 2026
// handler.go

package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
)

const (
	msgInvalidCredentials = "invalid username, email or password"
	msgInvalidToken       = "invalid or expired refresh token"
	msgInvalidResetToken  = "invalid or expired reset token"
	msgOperationCompleted = "if the account exists, a reset link has been sent"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /auth. sensitive wraps the unauthenticated endpoints
// that accept secrets and is expected to carry a stricter rate limit.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, sensitive func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(sensitive)
			r.Post("/register", h.Register)
			r.Post("/login", h.Login)
			r.Post("/refresh", h.Refresh)
			r.Post("/revoke", h.Revoke)
			r.Post("/forgot-password", h.ForgotPassword)
			r.Post("/reset-password", h.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Get("/me", h.GetMe)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.GetSessions)
			r.Delete("/sessions/{sessionID}", h.RevokeSession)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Register(r.Context(), req, middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	core.Created(w, resp)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Login(r.Context(), req, middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	resp, err := h.service.Refresh(
		r.Context(),
		req.RefreshToken,
		middleware.ClientIP(r),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, resp)
}

func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	revoked, err := h.service.Revoke(
		r.Context(),
		req.RefreshToken,
		middleware.ClientIP(r),
	)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, RevokeResponse{Revoked: revoked})
}

func (h *Handler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	h.service.ForgotPassword(r.Context(), req.Email)

	core.Accepted(w, MessageResponse{Message: msgOperationCompleted})
}

func (h *Handler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.service.ResetPassword(r.Context(), req, middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		core.BadRequest(w, msgInvalidResetToken)
		return
	}

	core.NoContent(w)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	var req LogoutRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			core.BadRequest(w, "invalid request body")
			return
		}
	}

	if err := h.service.Logout(
		r.Context(),
		claims,
		req.RefreshToken,
		middleware.ClientIP(r),
	); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		core.Unauthorized(w, "")
		return
	}

	revoked, err := h.service.LogoutAll(r.Context(), claims, middleware.ClientIP(r))
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, LogoutAllResponse{Revoked: revoked})
}

func (h *Handler) GetSessions(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessions, err := h.service.GetActiveSessions(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		core.BadRequest(w, "session ID required")
		return
	}

	if err := h.service.RevokeSession(
		r.Context(),
		userID,
		sessionID,
		middleware.ClientIP(r),
	); err != nil {
		writeError(w, err)
		return
	}

	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}

	ok, err := h.service.ChangePassword(
		r.Context(),
		userID,
		req,
		middleware.ClientIP(r),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	if !ok {
		core.JSONError(
			w,
			core.UnauthorizedError("current password is incorrect"),
		)
		return
	}

	core.NoContent(w)
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.service.GetCurrentUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	core.OK(w, user)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}

	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}

	return true
}

func writeError(w http.ResponseWriter, err error) {
	var policyErr *PolicyError

	switch {
	case core.IsAppError(err):
		core.JSONError(w, err)
	case errors.As(err, &policyErr):
		core.JSONError(w, core.ValidationError(
			"password does not satisfy policy",
			policyErr.Violations,
		))
	case errors.Is(err, ErrInvalidUserName):
		core.JSONError(w, core.ValidationError(err.Error(), nil))
	case errors.Is(err, ErrDuplicateUserName):
		core.JSONError(w, core.DuplicateError("username"))
	case errors.Is(err, ErrDuplicateEmail):
		core.JSONError(w, core.DuplicateError("email"))
	case errors.Is(err, ErrInvalidCredentials):
		core.JSONError(w, core.UnauthorizedError(msgInvalidCredentials))
	case errors.Is(err, ErrInvalidToken):
		core.JSONError(w, core.NewAppError(
			core.ErrTokenInvalid,
			msgInvalidToken,
			http.StatusUnauthorized,
			core.CodeTokenInvalid,
		))
	case errors.Is(err, ErrSessionNotFound):
		core.NotFound(w, "session")
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	default:
		core.InternalServerError(w, err)
	}
}
