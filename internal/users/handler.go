package users

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/helios-erp/helios/internal/platform/httpx"
)

// Handler exposes authentication plus user administration endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *SessionStore
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *SessionStore) *Handler {
	return &Handler{logger: logger, service: service, sessions: sessions}
}

// MountAuthRoutes registers the login/logout endpoints.
func (h *Handler) MountAuthRoutes(r chi.Router) {
	r.Post("/login", h.login)
	r.Post("/logout", h.logout)
}

// MountAdminRoutes registers user management endpoints.
func (h *Handler) MountAdminRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Post("/{id}/role", h.assignRole)
	r.Post("/{id}/extras/{permissionID}", h.grantExtra)
	r.Delete("/{id}/extras/{permissionID}", h.revokeExtra)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
			return
		}
		h.fail(w, "login", err)
		return
	}
	token, err := h.sessions.Create(r.Context(), user.ID)
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"token": token, "user_id": user.ID, "email": user.Email})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	if token := bearerToken(r); token != "" {
		if err := h.sessions.Destroy(r.Context(), token); err != nil {
			h.fail(w, "logout", err)
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"logged_out": true})
}

type userView struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleID   int64  `json:"role_id"`
	IsActive bool   `json:"is_active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	all, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	views := make([]userView, 0, len(all))
	for _, u := range all {
		views = append(views, userView{ID: u.ID, Email: u.Email, Name: u.Name, RoleID: u.RoleID, IsActive: u.IsActive})
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": views})
}

type createUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	RoleID   int64  `json:"role_id"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	user, err := h.service.CreateUser(r.Context(), req.Email, req.Name, req.Password, req.RoleID)
	if err != nil {
		h.fail(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, userView{ID: user.ID, Email: user.Email, Name: user.Name, RoleID: user.RoleID, IsActive: user.IsActive})
}

func (h *Handler) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	var req struct {
		RoleID int64 `json:"role_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request body")
		return
	}
	if err := h.service.AssignRole(r.Context(), userID, req.RoleID); err != nil {
		h.respondUserError(w, "assign role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "role_id": req.RoleID})
}

func (h *Handler) grantExtra(w http.ResponseWriter, r *http.Request) {
	h.extra(w, r, h.service.GrantExtra)
}

func (h *Handler) revokeExtra(w http.ResponseWriter, r *http.Request) {
	h.extra(w, r, h.service.RevokeExtra)
}

func (h *Handler) extra(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, permissionID int64) error) {
	userID, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}
	permissionID, ok := h.pathID(w, r, "permissionID")
	if !ok {
		return
	}
	if err := op(r.Context(), userID, permissionID); err != nil {
		h.respondUserError(w, "user extra permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user_id": userID, "permission_id": permissionID})
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", name+" must be an integer")
		return 0, false
	}
	return id, true
}

func (h *Handler) respondUserError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	h.fail(w, msg, err)
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}
