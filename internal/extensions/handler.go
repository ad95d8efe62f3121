package extensions

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/helios-erp/helios/internal/platform/httpx"
)

// Handler exposes the extension admin endpoints as JSON.
type Handler struct {
	logger    *slog.Logger
	states    *StateManager
	registry  *Registry
	repo      RepositoryPort
	installer *Installer
	validator *Validator
	purger    PurgeEnqueuer
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, states *StateManager, registry *Registry, repo RepositoryPort, installer *Installer, validator *Validator, purger PurgeEnqueuer) *Handler {
	return &Handler{logger: logger, states: states, registry: registry, repo: repo, installer: installer, validator: validator, purger: purger}
}

// MountRoutes registers extension admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/menu", h.menu)
	r.Get("/{id}/validate", h.validate)
	r.Post("/{id}/activate", h.activate)
	r.Post("/{id}/deactivate", h.deactivate)
	r.Delete("/{id}", h.uninstall)
}

type extensionView struct {
	ExtensionID     string `json:"extension_id"`
	Name            string `json:"name,omitempty"`
	Version         string `json:"version,omitempty"`
	State           string `json:"state"`
	Installed       bool   `json:"installed"`
	Loaded          bool   `json:"loaded"`
	RestartRequired bool   `json:"restart_required"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.states.Scan()
	if err != nil {
		h.fail(w, "list extensions", err)
		return
	}
	records, err := h.repo.List(r.Context())
	if err != nil {
		h.fail(w, "list extensions", err)
		return
	}
	byID := make(map[string]Extension, len(records))
	for _, rec := range records {
		byID[rec.ExtensionID] = rec
	}
	pending := make(map[string]bool)
	for _, d := range h.registry.RestartPending(entries) {
		pending[d.ExtensionID] = true
	}

	views := make([]extensionView, 0, len(entries))
	for _, e := range entries {
		if e.State == StateHidden {
			continue
		}
		_, loaded := h.registry.Get(e.ID)
		v := extensionView{
			ExtensionID:     e.ID,
			State:           string(e.State),
			Loaded:          loaded,
			RestartRequired: pending[e.ID],
		}
		if rec, ok := byID[e.ID]; ok {
			v.Name = rec.Name
			v.Version = rec.Version
			v.Installed = rec.IsInstalled
		}
		views = append(views, v)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"extensions": views})
}

func (h *Handler) menu(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, map[string]any{"entries": h.registry.MenuEntries()})
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.states.State(id)
	if err != nil {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	dir := h.states.Path(id, state)
	manifest, err := LoadManifest(dir)
	if err == nil {
		err = h.validator.ValidateManifest(manifest)
	}
	warnings, scanErr := h.validator.ScanSource(dir)
	if scanErr != nil {
		h.fail(w, "scan source", scanErr)
		return
	}
	resp := map[string]any{"extension_id": id, "valid": err == nil, "warnings": warningStrings(warnings)}
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			resp["issues"] = verr.Issues
		} else {
			resp["issues"] = []string{err.Error()}
		}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.states.Activate, true)
}

func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.states.Deactivate, false)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, op func(string) (Transition, error), active bool) {
	id := chi.URLParam(r, "id")
	tr, err := op(id)
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	if err := h.repo.SetActive(r.Context(), id, active); err != nil && err != ErrNotFound {
		h.fail(w, "update record", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"extension_id":     tr.ExtensionID,
		"state":            string(tr.To),
		"restart_required": tr.RestartRequired,
	})
}

func (h *Handler) uninstall(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	purge := r.URL.Query().Get("purge") == "true"
	err := h.installer.Uninstall(r.Context(), id, UninstallOptions{PurgeData: purge, Purger: h.purger})
	if err != nil {
		h.respondDomainError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"extension_id": id, "uninstalled": true, "data_purge_scheduled": purge})
}

func (h *Handler) respondDomainError(w http.ResponseWriter, err error) {
	var scErr *StateConflictError
	var cErr *ConflictError
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrStillActive):
		httpx.Problem(w, http.StatusConflict, "Still Active", err.Error())
	case errors.As(err, &scErr), errors.As(err, &cErr):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	default:
		h.fail(w, "extension operation", err)
	}
}

func (h *Handler) fail(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func warningStrings(ws []Warning) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.String())
	}
	return out
}
