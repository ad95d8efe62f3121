package extensions

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestHandler(t *testing.T, root string, repo RepositoryPort, purger PurgeEnqueuer) (*Handler, *Registry) {
	t.Helper()
	states, err := NewStateManager(root)
	require.NoError(t, err)
	registry := NewRegistry()
	installer := NewInstaller(InstallerConfig{
		States:    states,
		Validator: NewValidator("1.4.0"),
		Conflicts: NewConflictDetector(&stubIntrospector{}, registry),
		Migrator:  &stubMigrator{},
		Repo:      repo,
		Bundled:   DefaultBundled(),
	})
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	return NewHandler(logger, states, registry, repo, installer, NewValidator("1.4.0"), purger), registry
}

func serveExtensionRequest(h *Handler, method, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.MountRoutes(r)
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandlerList(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	_, err := repo.Upsert(context.Background(), Extension{ExtensionID: "loyalty", Name: "Loyalty", Version: "1.2.0", IsInstalled: true})
	require.NoError(t, err)
	writeExtensionDir(t, root, "loyalty", sampleManifest)
	writeExtensionDir(t, root, "_parked", sampleManifest)
	writeExtensionDir(t, root, ".stash", sampleManifest)

	h, _ := newTestHandler(t, root, repo, nil)
	rec := serveExtensionRequest(h, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Extensions []extensionView `json:"extensions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	// Hidden directories stay invisible.
	require.Len(t, body.Extensions, 2)
	require.Equal(t, "loyalty", body.Extensions[0].ExtensionID)
	require.Equal(t, "active", body.Extensions[0].State)
	require.True(t, body.Extensions[0].Installed)
	// Active on disk but not loaded into this process.
	require.True(t, body.Extensions[0].RestartRequired)
	require.Equal(t, "parked", body.Extensions[1].ExtensionID)
	require.Equal(t, "inactive", body.Extensions[1].State)
}

func TestHandlerActivate(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	_, err := repo.Upsert(context.Background(), Extension{ExtensionID: "loyalty", IsInstalled: true})
	require.NoError(t, err)
	writeExtensionDir(t, root, "_loyalty", sampleManifest)

	h, _ := newTestHandler(t, root, repo, nil)
	rec := serveExtensionRequest(h, http.MethodPost, "/loyalty/activate")
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "active", body["state"])
	require.Equal(t, true, body["restart_required"])

	record, err := repo.Get(context.Background(), "loyalty")
	require.NoError(t, err)
	require.True(t, record.IsActive)
}

func TestHandlerActivateMissing(t *testing.T) {
	h, _ := newTestHandler(t, t.TempDir(), newMemoryExtensionRepo(), nil)
	rec := serveExtensionRequest(h, http.MethodPost, "/ghost/activate")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerUninstallActiveConflicts(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "loyalty", sampleManifest)
	h, _ := newTestHandler(t, root, newMemoryExtensionRepo(), nil)

	rec := serveExtensionRequest(h, http.MethodDelete, "/loyalty")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerUninstallWithPurge(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	_, err := repo.Upsert(context.Background(), Extension{ExtensionID: "loyalty"})
	require.NoError(t, err)
	writeExtensionDir(t, root, "_loyalty", sampleManifest)

	purger := &stubPurger{}
	h, _ := newTestHandler(t, root, repo, purger)
	rec := serveExtensionRequest(h, http.MethodDelete, "/loyalty?purge=true")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, purger.calls, 1)
	require.Equal(t, "loyalty", purger.calls[0].Namespace)
}

func TestHandlerValidate(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "_loyalty", sampleManifest)
	h, _ := newTestHandler(t, root, newMemoryExtensionRepo(), nil)

	rec := serveExtensionRequest(h, http.MethodGet, "/loyalty/validate")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, true, body["valid"])
}

func TestHandlerMenu(t *testing.T) {
	root := t.TempDir()
	h, registry := newTestHandler(t, root, newMemoryExtensionRepo(), nil)
	require.NoError(t, registry.Register(loaded("loyalty", MenuEntry{Label: "Loyalty", URLPrefix: "/loyalty", Priority: 10})))

	rec := serveExtensionRequest(h, http.MethodGet, "/menu")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Entries []MenuEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
	require.Equal(t, "Loyalty", body.Entries[0].Label)
}
