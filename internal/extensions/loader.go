package extensions

import (
	"context"
	"log/slog"
	"time"
)

// PermissionSyncer materializes an extension's declared permissions into
// the shared permission store.
type PermissionSyncer interface {
	Sync(ctx context.Context, extensionID string, perms []PermissionDecl) error
}

// LoadReport summarizes one startup loading pass.
type LoadReport struct {
	Loaded  []string
	Skipped []LoadError
	Pending []Divergence
}

// Loader walks the extensions root once at host startup and registers
// every active extension. A single extension's failure is isolated: it is
// logged, recorded on the report, and must never prevent the remaining
// extensions or the host itself from starting.
type Loader struct {
	states      *StateManager
	registry    *Registry
	repo        RepositoryPort
	migrator    MigratorPort
	permissions PermissionSyncer
	logger      *slog.Logger
}

// LoaderConfig collects the loader's collaborators.
type LoaderConfig struct {
	States      *StateManager
	Registry    *Registry
	Repo        RepositoryPort
	Migrator    MigratorPort
	Permissions PermissionSyncer
	Logger      *slog.Logger
}

// NewLoader constructs a Loader.
func NewLoader(cfg LoaderConfig) *Loader {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		states:      cfg.States,
		registry:    cfg.Registry,
		repo:        cfg.Repo,
		migrator:    cfg.Migrator,
		permissions: cfg.Permissions,
		logger:      logger,
	}
}

// LoadAll performs the startup pass: hidden and inactive directories are
// skipped, each active extension is registered, migrated and its
// permissions synchronized, and the stored is_active cache is reconciled
// with the filesystem scan.
func (l *Loader) LoadAll(ctx context.Context) (*LoadReport, error) {
	entries, err := l.states.Scan()
	if err != nil {
		return nil, err
	}

	report := &LoadReport{}
	var activeIDs []string
	for _, entry := range entries {
		if entry.State != StateActive {
			continue
		}
		if err := l.loadOne(ctx, entry); err != nil {
			le := LoadError{ExtensionID: entry.ID, Err: err}
			report.Skipped = append(report.Skipped, le)
			l.logger.Error("extension skipped", slog.String("extension", entry.ID), slog.Any("error", err))
			continue
		}
		activeIDs = append(activeIDs, entry.ID)
		report.Loaded = append(report.Loaded, entry.ID)
		l.logger.Info("extension loaded", slog.String("extension", entry.ID))
	}

	if l.repo != nil {
		if err := l.repo.ReconcileActive(ctx, activeIDs); err != nil {
			// Reconciliation keeps a cache column fresh; a failure should
			// not abort host startup.
			l.logger.Warn("reconcile active flags", slog.Any("error", err))
		}
	}
	report.Pending = l.registry.RestartPending(entries)
	return report, nil
}

func (l *Loader) loadOne(ctx context.Context, entry Entry) error {
	manifest, err := LoadManifest(entry.Path)
	if err != nil {
		return err
	}
	if manifest.ID != entry.ID {
		// LoadAll wraps whatever comes back in a LoadError.
		return &ValidationError{
			ExtensionID: manifest.ID,
			Issues:      []string{"manifest id does not match directory name"},
		}
	}

	// Model import may cascade further schema migration.
	if l.migrator != nil {
		if _, err := l.migrator.Apply(ctx, manifest, entry.Path); err != nil {
			return err
		}
	}

	locales, err := CompileLocales(entry.Path)
	if err != nil {
		return err
	}

	if err := l.registry.Register(&LoadedExtension{
		Manifest: manifest,
		Path:     entry.Path,
		Locales:  locales,
		LoadedAt: time.Now(),
	}); err != nil {
		return err
	}

	if l.permissions != nil {
		if err := l.permissions.Sync(ctx, manifest.ID, manifest.Permissions); err != nil {
			return err
		}
	}
	return nil
}
