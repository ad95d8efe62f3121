package extensions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

const crmManifest = `id: crm
name: CRM Sync
version: 0.3.0
author: Acme Labs
permissions:
  - action: view_contacts
`

func newTestLoader(t *testing.T, root string, repo RepositoryPort, syncer PermissionSyncer) (*Loader, *Registry) {
	t.Helper()
	states, err := NewStateManager(root)
	require.NoError(t, err)
	registry := NewRegistry()
	return NewLoader(LoaderConfig{
		States:      states,
		Registry:    registry,
		Repo:        repo,
		Migrator:    &stubMigrator{},
		Permissions: syncer,
	}), registry
}

func TestLoadAll(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "loyalty", sampleManifest)
	writeExtensionDir(t, root, "crm", crmManifest)
	writeExtensionDir(t, root, "_parked", sampleManifest)
	writeExtensionDir(t, root, ".stash", sampleManifest)

	repo := newMemoryExtensionRepo()
	syncer := newStubSyncer()
	loader, registry := newTestLoader(t, root, repo, syncer)

	report, err := loader.LoadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"crm", "loyalty"}, report.Loaded)
	require.Empty(t, report.Skipped)
	require.Equal(t, []string{"crm", "loyalty"}, registry.IDs())

	// The cached flags get reconciled from the scan.
	require.Equal(t, [][]string{{"crm", "loyalty"}}, repo.reconciled)
	// Declared permissions were synchronized for each loaded extension.
	require.Len(t, syncer.synced["loyalty"], 2)
	require.Len(t, syncer.synced["crm"], 1)
}

func TestLoadAllFailureIsolated(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "loyalty", sampleManifest)
	writeExtensionDir(t, root, "broken", "id: [not yaml")

	loader, registry := newTestLoader(t, root, newMemoryExtensionRepo(), newStubSyncer())
	report, err := loader.LoadAll(context.Background())
	require.NoError(t, err)

	require.Equal(t, []string{"loyalty"}, report.Loaded)
	require.Len(t, report.Skipped, 1)
	require.Equal(t, "broken", report.Skipped[0].ExtensionID)
	_, ok := registry.Get("broken")
	require.False(t, ok)
}

func TestLoadAllIDMismatchSkipped(t *testing.T) {
	root := t.TempDir()
	// Directory says "impostor" but the manifest claims "loyalty".
	writeExtensionDir(t, root, "impostor", sampleManifest)

	loader, registry := newTestLoader(t, root, newMemoryExtensionRepo(), newStubSyncer())
	report, err := loader.LoadAll(context.Background())
	require.NoError(t, err)
	require.Empty(t, report.Loaded)
	require.Len(t, report.Skipped, 1)
	// Wrapped exactly once: the skip entry carries the validation error
	// directly, not another LoadError layer.
	require.IsType(t, &ValidationError{}, report.Skipped[0].Err)
	require.Empty(t, registry.IDs())
}

func TestLoadAllMigrationFailureSkipsOne(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "loyalty", sampleManifest)
	writeExtensionDir(t, root, "crm", crmManifest)

	states, err := NewStateManager(root)
	require.NoError(t, err)
	registry := NewRegistry()
	loader := NewLoader(LoaderConfig{
		States:   states,
		Registry: registry,
		Migrator: &stubMigrator{failFor: "crm"},
	})

	report, err := loader.LoadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"loyalty"}, report.Loaded)
	require.Len(t, report.Skipped, 1)
	require.Equal(t, "crm", report.Skipped[0].ExtensionID)
}
