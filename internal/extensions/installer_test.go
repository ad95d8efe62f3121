package extensions

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// stagingResidue lists leftover directories under the extensions root,
// hidden staging included.
func stagingResidue(t *testing.T, root string) []string {
	t.Helper()
	dirents, err := os.ReadDir(root)
	require.NoError(t, err)
	var names []string
	for _, d := range dirents {
		names = append(names, d.Name())
	}
	return names
}

func sampleArchive(t *testing.T) string {
	return buildArchive(t, map[string]string{
		ManifestFile:             sampleManifest,
		"migrations/0001_up.sql": "CREATE TABLE loyalty_accounts (id BIGSERIAL);",
		"locales/en.yaml":        "points.title: Loyalty Points\n",
	})
}

func TestInstallHappyPath(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	migrator := &stubMigrator{}
	installer := newTestInstaller(t, root, repo, migrator, []string{"users"})

	report, err := installer.Install(context.Background(), sampleArchive(t))
	require.NoError(t, err)
	require.True(t, report.Installed)
	require.Equal(t, "loyalty", report.ExtensionID)

	// Lands inactive; activation is a separate explicit step.
	_, err = os.Stat(filepath.Join(root, "_loyalty"))
	require.NoError(t, err)
	require.Equal(t, []string{"_loyalty"}, stagingResidue(t, root))

	rec, err := repo.Get(context.Background(), "loyalty")
	require.NoError(t, err)
	require.True(t, rec.IsInstalled)
	require.False(t, rec.IsActive)
	require.Equal(t, KindFree, rec.Kind)
	require.Equal(t, []string{"loyalty"}, migrator.applied)
}

func TestInstallNamespaceTakenByInstalledExtension(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	installer := newTestInstaller(t, root, repo, &stubMigrator{}, nil)

	alpha := buildArchive(t, map[string]string{
		ManifestFile: "id: alpha\nname: Alpha\nversion: 0.1.0\nauthor: Acme Labs\nschema:\n  namespace: shared\n  tables:\n    - shared_alpha\n",
	})
	_, err := installer.Install(context.Background(), alpha)
	require.NoError(t, err)

	// A second extension claiming the same namespace, even with disjoint
	// tables, must be blocked while the first sits installed but inactive.
	beta := buildArchive(t, map[string]string{
		ManifestFile: "id: beta\nname: Beta\nversion: 0.1.0\nauthor: Acme Labs\nschema:\n  namespace: shared\n  tables:\n    - shared_beta\n",
	})
	_, err = installer.Install(context.Background(), beta)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "namespace", conflict.Kind)
	require.Equal(t, "shared", conflict.Identifier)

	require.Equal(t, []string{"_alpha"}, stagingResidue(t, root))
	_, err = repo.Get(context.Background(), "beta")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInstallActivateLoadScenario(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	migrator := &stubMigrator{}
	installer := newTestInstaller(t, root, repo, migrator, nil)

	report, err := installer.Install(context.Background(), sampleArchive(t))
	require.NoError(t, err)
	require.True(t, report.Installed)

	states, err := NewStateManager(root)
	require.NoError(t, err)
	tr, err := states.Activate("loyalty")
	require.NoError(t, err)
	require.True(t, tr.RestartRequired)

	// The next startup pass picks the extension up and syncs permissions.
	syncer := newStubSyncer()
	loader, registry := newTestLoader(t, root, repo, syncer)
	loadReport, err := loader.LoadAll(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"loyalty"}, loadReport.Loaded)

	ext, ok := registry.Get("loyalty")
	require.True(t, ok)
	require.Equal(t, filepath.Join(root, "loyalty"), ext.Path)
	require.Len(t, syncer.synced["loyalty"], 2)

	rec, err := repo.Get(context.Background(), "loyalty")
	require.NoError(t, err)
	require.True(t, rec.IsActive)
}

func TestInstallDisallowedDependencyLeavesNothing(t *testing.T) {
	root := t.TempDir()
	manifest := strings.Replace(sampleManifest, "github.com/google/uuid", "github.com/evil/miner", 1)
	archive := buildArchive(t, map[string]string{ManifestFile: manifest})

	installer := newTestInstaller(t, root, newMemoryExtensionRepo(), &stubMigrator{}, nil)
	report, err := installer.Install(context.Background(), archive)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	require.False(t, report.Staged)
	require.Empty(t, stagingResidue(t, root))
}

func TestInstallConflictLeavesNothing(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	installer := newTestInstaller(t, root, repo, &stubMigrator{}, []string{"loyalty_accounts"})

	report, err := installer.Install(context.Background(), sampleArchive(t))
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	require.Equal(t, "loyalty_accounts", conflict.Identifier)
	require.False(t, report.Staged)
	require.Empty(t, stagingResidue(t, root))
	_, err = repo.Get(context.Background(), "loyalty")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestInstallMigrationFailureLeavesStaged(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	installer := newTestInstaller(t, root, repo, &stubMigrator{failFor: "loyalty"}, nil)

	report, err := installer.Install(context.Background(), sampleArchive(t))
	var merr *MigrationError
	require.ErrorAs(t, err, &merr)
	require.True(t, report.Staged)
	require.False(t, report.Installed)

	// The extracted directory survives, inactive, for inspection.
	_, statErr := os.Stat(filepath.Join(root, "_loyalty"))
	require.NoError(t, statErr)

	rec, err := repo.Get(context.Background(), "loyalty")
	require.NoError(t, err)
	require.False(t, rec.IsInstalled)
}

func TestInstallRejectsExistingExtension(t *testing.T) {
	root := t.TempDir()
	installer := newTestInstaller(t, root, newMemoryExtensionRepo(), &stubMigrator{}, nil)

	_, err := installer.Install(context.Background(), sampleArchive(t))
	require.NoError(t, err)

	_, err = installer.Install(context.Background(), sampleArchive(t))
	var conflict *StateConflictError
	require.ErrorAs(t, err, &conflict)
	// No second staging directory lingers.
	require.Equal(t, []string{"_loyalty"}, stagingResidue(t, root))
}

func TestInstallReportsSourceWarnings(t *testing.T) {
	root := t.TempDir()
	archive := buildArchive(t, map[string]string{
		ManifestFile:  sampleManifest,
		"src/main.go": "package main\n\nimport \"os/exec\"\n\nfunc x() { _ = exec.Command(\"sh\") }\n",
	})
	installer := newTestInstaller(t, root, newMemoryExtensionRepo(), &stubMigrator{}, nil)

	report, err := installer.Install(context.Background(), archive)
	require.NoError(t, err)
	require.True(t, report.Installed)
	require.NotEmpty(t, report.Warnings)
	require.Contains(t, report.Warnings[0], "shell execution")
}

func TestUninstallRefusesActive(t *testing.T) {
	root := t.TempDir()
	installer := newTestInstaller(t, root, newMemoryExtensionRepo(), &stubMigrator{}, nil)
	writeExtensionDir(t, root, "loyalty", sampleManifest)

	err := installer.Uninstall(context.Background(), "loyalty", UninstallOptions{})
	require.ErrorIs(t, err, ErrStillActive)
	_, statErr := os.Stat(filepath.Join(root, "loyalty"))
	require.NoError(t, statErr)
}

func TestUninstallPreservesDataByDefault(t *testing.T) {
	root := t.TempDir()
	repo := newMemoryExtensionRepo()
	installer := newTestInstaller(t, root, repo, &stubMigrator{}, nil)

	_, err := installer.Install(context.Background(), sampleArchive(t))
	require.NoError(t, err)

	purger := &stubPurger{}
	require.NoError(t, installer.Uninstall(context.Background(), "loyalty", UninstallOptions{Purger: purger}))
	require.Empty(t, purger.calls)
	require.Empty(t, stagingResidue(t, root))
	_, err = repo.Get(context.Background(), "loyalty")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUninstallWithPurge(t *testing.T) {
	root := t.TempDir()
	installer := newTestInstaller(t, root, newMemoryExtensionRepo(), &stubMigrator{}, nil)

	_, err := installer.Install(context.Background(), sampleArchive(t))
	require.NoError(t, err)

	purger := &stubPurger{}
	require.NoError(t, installer.Uninstall(context.Background(), "loyalty", UninstallOptions{PurgeData: true, Purger: purger}))
	require.Len(t, purger.calls, 1)
	require.Equal(t, "loyalty", purger.calls[0].ExtensionID)
	require.Equal(t, "loyalty", purger.calls[0].Namespace)
	require.Equal(t, []string{"loyalty_accounts", "loyalty_transactions"}, purger.calls[0].Tables)
}

func TestUninstallMissing(t *testing.T) {
	installer := newTestInstaller(t, t.TempDir(), newMemoryExtensionRepo(), &stubMigrator{}, nil)
	err := installer.Uninstall(context.Background(), "ghost", UninstallOptions{})
	require.ErrorIs(t, err, ErrNotFound)
}
