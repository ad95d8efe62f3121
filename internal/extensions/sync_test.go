package extensions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSyncFromDisk(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "_loyalty", sampleManifest)
	writeExtensionDir(t, root, "crm", crmManifest)
	writeExtensionDir(t, root, ".stash", sampleManifest)
	states, err := NewStateManager(root)
	require.NoError(t, err)
	repo := newMemoryExtensionRepo()

	res, err := SyncFromDisk(context.Background(), states, repo)
	require.NoError(t, err)
	require.Equal(t, 2, res.Synced)
	require.Equal(t, []string{"crm"}, res.Active)
	require.Empty(t, res.Skipped)

	rec, err := repo.Get(context.Background(), "crm")
	require.NoError(t, err)
	require.True(t, rec.IsInstalled)
	require.True(t, rec.IsActive)

	rec, err = repo.Get(context.Background(), "loyalty")
	require.NoError(t, err)
	require.True(t, rec.IsInstalled)
	require.False(t, rec.IsActive)
}

func TestSyncFromDiskPreservesStagedFlag(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "_loyalty", sampleManifest)
	states, err := NewStateManager(root)
	require.NoError(t, err)

	// A migration failure left the record staged; sync must not promote it.
	repo := newMemoryExtensionRepo()
	_, err = repo.Upsert(context.Background(), Extension{
		ExtensionID: "loyalty",
		Name:        "Loyalty Points",
		Version:     "1.2.0",
		IsInstalled: false,
	})
	require.NoError(t, err)

	res, err := SyncFromDisk(context.Background(), states, repo)
	require.NoError(t, err)
	require.Equal(t, 1, res.Synced)

	rec, err := repo.Get(context.Background(), "loyalty")
	require.NoError(t, err)
	require.False(t, rec.IsInstalled)
	require.False(t, rec.IsActive)
}

func TestSyncFromDiskSkipsUnreadableManifest(t *testing.T) {
	root := t.TempDir()
	writeExtensionDir(t, root, "crm", crmManifest)
	writeExtensionDir(t, root, "broken", "id: [not yaml")
	states, err := NewStateManager(root)
	require.NoError(t, err)
	repo := newMemoryExtensionRepo()

	res, err := SyncFromDisk(context.Background(), states, repo)
	require.NoError(t, err)
	require.Equal(t, 1, res.Synced)
	require.Len(t, res.Skipped, 1)
	require.Equal(t, "broken", res.Skipped[0].ExtensionID)
}
