package subscription

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helios-erp/helios/internal/extensions"
	"github.com/helios-erp/helios/internal/platform/httpx"
)

// Handler exposes entitlement status and cache invalidation to operators.
type Handler struct {
	logger   *slog.Logger
	checker  *Checker
	registry *extensions.Registry
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, checker *Checker, registry *extensions.Registry) *Handler {
	return &Handler{logger: logger, checker: checker, registry: registry}
}

// MountRoutes registers subscription admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{id}", h.status)
	r.Delete("/{id}/cache", h.invalidate)
	r.Delete("/cache", h.invalidateAll)
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ext, ok := h.registry.Get(id)
	if !ok {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	res, err := h.checker.Verify(r.Context(), id, ext.Manifest.Kind)
	if err != nil && !errors.Is(err, ErrSubscriptionRequired) && !errors.Is(err, ErrOfflineUnverified) {
		h.logger.Error("entitlement status", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"result": res, "allowed": err == nil})
}

func (h *Handler) invalidate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.checker.ClearCache(r.Context(), id); err != nil {
		h.logger.Error("clear entitlement cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"extension_id": id, "invalidated": true})
}

func (h *Handler) invalidateAll(w http.ResponseWriter, r *http.Request) {
	if err := h.checker.ClearCache(r.Context(), ""); err != nil {
		h.logger.Error("clear entitlement cache", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"invalidated": true})
}
