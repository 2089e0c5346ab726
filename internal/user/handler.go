// AngelaMos | 2026
// handler.go

package user

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/carterperez-dev/sessionguard/internal/core"
	"github.com/carterperez-dev/sessionguard/internal/middleware"
)

const defaultPageSize = 20

type Handler struct {
	service  *Service
	validate *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:  service,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
) {
	r.With(authenticator).Get("/users/me", h.GetMe)
}

// RegisterAdminRoutes mounts account management for administrators.
func (h *Handler) RegisterAdminRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Group(func(r chi.Router) {
		r.Use(authenticator, adminOnly)

		r.Get("/admin/users", h.ListUsers)
		r.Get("/admin/users/{userID}", h.GetUser)
		r.Put("/admin/users/{userID}/role", h.UpdateUserRole)
		r.Post("/admin/users/{userID}/unlock", h.UnlockUser)
	})
}

func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetMe(r.Context(), middleware.GetUserID(r.Context()))
	writeUser(w, u, err)
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetUser(r.Context(), chi.URLParam(r, "userID"))
	writeUser(w, u, err)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	params := listParamsFromQuery(r.URL.Query())

	users, total, err := h.service.ListUsers(r.Context(), params)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}

	core.Paginated(w, ToUserResponseList(users), params.Page, params.PageSize, total)
}

// UpdateUserRole changes another account's role. The change rotates the
// account's security stamp, so its outstanding access tokens stop working.
func (h *Handler) UpdateUserRole(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "userID")
	if target == middleware.GetUserID(r.Context()) {
		core.Forbidden(w, "cannot change your own role")
		return
	}

	var req UpdateUserRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.BadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	u, err := h.service.UpdateUserRole(r.Context(), target, req.Role)
	writeUser(w, u, err)
}

// UnlockUser ends a lockout early.
func (h *Handler) UnlockUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.UnlockUser(r.Context(), chi.URLParam(r, "userID"))
	writeUser(w, u, err)
}

func writeUser(w http.ResponseWriter, u *User, err error) {
	switch {
	case err == nil:
		core.OK(w, ToUserResponse(u))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case errors.Is(err, core.ErrUnauthorized):
		core.Unauthorized(w, "authentication required")
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, err.Error())
	default:
		core.InternalServerError(w, err)
	}
}

func listParamsFromQuery(q url.Values) ListUsersParams {
	atoi := func(key string, fallback int) int {
		if n, err := strconv.Atoi(q.Get(key)); err == nil {
			return n
		}
		return fallback
	}

	params := ListUsersParams{
		Page:     atoi("page", 1),
		PageSize: atoi("page_size", defaultPageSize),
		Search:   q.Get("search"),
		Role:     q.Get("role"),
	}
	params.Normalize()
	return params
}
