package extensions

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleManifest = `id: loyalty
name: Loyalty Points
version: 1.2.0
author: Acme Labs
kind: free
min_host_version: 1.0.0
dependencies:
  - name: github.com/google/uuid
    version: ">=1.3.0"
permissions:
  - action: view_points
    name: View loyalty points
  - action: manage_points
menu:
  label: Loyalty
  url_prefix: /loyalty
  priority: 40
schema:
  namespace: loyalty
  tables:
    - loyalty_accounts
    - loyalty_transactions
`

// writeExtensionDir lays out a minimal extension under root/dirName.
func writeExtensionDir(t *testing.T, root, dirName, manifest string) string {
	t.Helper()
	dir := filepath.Join(root, dirName)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "migrations"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "migrations", "0001_init.sql"),
		[]byte("CREATE TABLE IF NOT EXISTS loyalty_accounts (id BIGSERIAL PRIMARY KEY);\n"), 0o644))
	return dir
}

// buildArchive zips a directory layout described by files (path -> body).
func buildArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ext.zip")
	out, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(out)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, out.Close())
	return path
}

type memoryExtensionRepo struct {
	records    map[string]Extension
	nextID     int64
	reconciled [][]string
}

func newMemoryExtensionRepo() *memoryExtensionRepo {
	return &memoryExtensionRepo{records: make(map[string]Extension)}
}

func (r *memoryExtensionRepo) Upsert(ctx context.Context, ext Extension) (Extension, error) {
	if existing, ok := r.records[ext.ExtensionID]; ok {
		ext.ID = existing.ID
	} else {
		r.nextID++
		ext.ID = r.nextID
	}
	r.records[ext.ExtensionID] = ext
	return ext, nil
}

func (r *memoryExtensionRepo) Get(ctx context.Context, extensionID string) (Extension, error) {
	ext, ok := r.records[extensionID]
	if !ok {
		return Extension{}, ErrNotFound
	}
	return ext, nil
}

func (r *memoryExtensionRepo) List(ctx context.Context) ([]Extension, error) {
	out := make([]Extension, 0, len(r.records))
	for _, ext := range r.records {
		out = append(out, ext)
	}
	return out, nil
}

func (r *memoryExtensionRepo) SetActive(ctx context.Context, extensionID string, active bool) error {
	ext, ok := r.records[extensionID]
	if !ok {
		return ErrNotFound
	}
	ext.IsActive = active
	r.records[extensionID] = ext
	return nil
}

func (r *memoryExtensionRepo) SetInstalled(ctx context.Context, extensionID string, installed bool) error {
	ext, ok := r.records[extensionID]
	if !ok {
		return ErrNotFound
	}
	ext.IsInstalled = installed
	r.records[extensionID] = ext
	return nil
}

func (r *memoryExtensionRepo) Delete(ctx context.Context, extensionID string) error {
	if _, ok := r.records[extensionID]; !ok {
		return ErrNotFound
	}
	delete(r.records, extensionID)
	return nil
}

func (r *memoryExtensionRepo) ReconcileActive(ctx context.Context, activeIDs []string) error {
	r.reconciled = append(r.reconciled, activeIDs)
	for id, ext := range r.records {
		active := false
		for _, a := range activeIDs {
			if a == id {
				active = true
			}
		}
		ext.IsActive = active
		r.records[id] = ext
	}
	return nil
}

type stubMigrator struct {
	applied []string
	failFor string
	purged  []string
}

func (m *stubMigrator) Apply(ctx context.Context, manifest *Manifest, dir string) (int, error) {
	if m.failFor != "" && manifest.ID == m.failFor {
		return 0, &MigrationError{ExtensionID: manifest.ID, Script: "0001_init.sql", Err: context.DeadlineExceeded}
	}
	scripts, err := PlanMigrations(dir)
	if err != nil {
		return 0, err
	}
	m.applied = append(m.applied, manifest.ID)
	return len(scripts), nil
}

func (m *stubMigrator) Purge(ctx context.Context, manifest *Manifest) ([]string, error) {
	m.purged = append(m.purged, manifest.ID)
	return manifest.Schema.Tables, nil
}

type stubIntrospector struct {
	tables []string
	err    error
}

func (s *stubIntrospector) TableNames(ctx context.Context) ([]string, error) {
	return s.tables, s.err
}

type stubSyncer struct {
	synced map[string][]PermissionDecl
	err    error
}

func newStubSyncer() *stubSyncer {
	return &stubSyncer{synced: make(map[string][]PermissionDecl)}
}

func (s *stubSyncer) Sync(ctx context.Context, extensionID string, perms []PermissionDecl) error {
	if s.err != nil {
		return s.err
	}
	s.synced[extensionID] = perms
	return nil
}

type stubPurger struct {
	calls []purgeCall
}

type purgeCall struct {
	ExtensionID string
	Namespace   string
	Tables      []string
}

func (p *stubPurger) EnqueuePurge(ctx context.Context, extensionID, namespace string, tables []string) error {
	p.calls = append(p.calls, purgeCall{ExtensionID: extensionID, Namespace: namespace, Tables: tables})
	return nil
}

func newTestInstaller(t *testing.T, root string, repo RepositoryPort, migrator MigratorPort, tables []string) *Installer {
	t.Helper()
	states, err := NewStateManager(root)
	require.NoError(t, err)
	return NewInstaller(InstallerConfig{
		States:    states,
		Validator: NewValidator("1.4.0"),
		Conflicts: NewConflictDetector(&stubIntrospector{tables: tables}, NewDiskNamespaces(states)),
		Migrator:  migrator,
		Repo:      repo,
		Bundled:   DefaultBundled(),
	})
}
