package extensions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StepResult records one pipeline step's outcome for the install report.
type StepResult struct {
	Step   string `json:"step"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// InstallReport accumulates diagnostics across the install pipeline.
type InstallReport struct {
	ExtensionID string       `json:"extension_id"`
	Archive     string       `json:"archive,omitempty"`
	Steps       []StepResult `json:"steps"`
	Warnings    []string     `json:"warnings,omitempty"`
	Staged      bool         `json:"staged"`
	Installed   bool         `json:"installed"`
}

func (r *InstallReport) step(name string, err error, detail string) {
	res := StepResult{Step: name, OK: err == nil, Detail: detail}
	if err != nil {
		res.Detail = err.Error()
	}
	r.Steps = append(r.Steps, res)
}

func (r *InstallReport) warn(ws ...Warning) {
	for _, w := range ws {
		r.Warnings = append(r.Warnings, w.String())
	}
}

// PurgeEnqueuer schedules the opt-in destructive data purge that follows
// an uninstall.
type PurgeEnqueuer interface {
	EnqueuePurge(ctx context.Context, extensionID string, namespace string, tables []string) error
}

// Installer orchestrates the install pipeline: extract, validate, detect
// conflicts, stage dependencies, migrate, compile locales, persist.
// Installs targeting the same extension id are serialized by a per-id lock.
type Installer struct {
	states    *StateManager
	validator *Validator
	conflicts *ConflictDetector
	migrator  MigratorPort
	repo      RepositoryPort
	bundled   map[string]string
	logger    *slog.Logger
	observe   func(time.Duration)

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// InstallerConfig collects the installer's collaborators.
type InstallerConfig struct {
	States    *StateManager
	Validator *Validator
	Conflicts *ConflictDetector
	Migrator  MigratorPort
	Repo      RepositoryPort
	// Bundled maps dependency package name to the version shipped with the
	// host. Runtime never performs network installs.
	Bundled map[string]string
	Logger  *slog.Logger
	// Observe, when set, receives the duration of each successful install.
	Observe func(time.Duration)
}

// NewInstaller constructs an Installer.
func NewInstaller(cfg InstallerConfig) *Installer {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{
		states:    cfg.States,
		validator: cfg.Validator,
		conflicts: cfg.Conflicts,
		migrator:  cfg.Migrator,
		repo:      cfg.Repo,
		bundled:   cfg.Bundled,
		logger:    logger,
		observe:   cfg.Observe,
		locks:     make(map[string]*sync.Mutex),
	}
}

func (i *Installer) lockFor(id string) *sync.Mutex {
	i.mu.Lock()
	defer i.mu.Unlock()
	l, ok := i.locks[id]
	if !ok {
		l = &sync.Mutex{}
		i.locks[id] = l
	}
	return l
}

// Install runs the full pipeline for an archive. On validation or conflict
// failure nothing persists under the extensions root; on migration failure
// the extension stays staged (inactive, not installed) for inspection.
// The report is returned alongside the error for diagnostics either way.
func (i *Installer) Install(ctx context.Context, archivePath string) (*InstallReport, error) {
	started := time.Now()
	report := &InstallReport{Archive: filepath.Base(archivePath)}

	// Step 1: extract to a hidden staging directory the loader never scans.
	staging := filepath.Join(i.states.Root(), ".stage-"+uuid.NewString())
	if err := ExtractArchive(archivePath, staging); err != nil {
		report.step("extract", err, "")
		return report, err
	}
	report.step("extract", nil, staging)
	cleanupStaging := true
	defer func() {
		if cleanupStaging {
			_ = os.RemoveAll(staging)
		}
	}()

	// Step 2: manifest validation.
	manifest, err := LoadManifest(staging)
	if err != nil {
		report.step("manifest", err, "")
		return report, err
	}
	report.ExtensionID = manifest.ID
	if err := i.validator.ValidateManifest(manifest); err != nil {
		report.step("manifest", err, "")
		return report, err
	}
	report.step("manifest", nil, fmt.Sprintf("%s %s by %s", manifest.Name, manifest.Version, manifest.Author))

	scanWarnings, err := i.validator.ScanSource(staging)
	if err != nil {
		report.step("source scan", err, "")
		return report, err
	}
	report.warn(scanWarnings...)
	for _, w := range scanWarnings {
		i.logger.Warn("extension source heuristic", slog.String("extension", manifest.ID), slog.String("finding", w.String()))
	}

	lock := i.lockFor(manifest.ID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := i.states.State(manifest.ID); err == nil {
		err := &StateConflictError{ExtensionID: manifest.ID, Target: DirName(manifest.ID, StateInactive)}
		report.step("placement", err, "")
		return report, err
	}

	// Step 3: conflict detection against live schema and loaded namespaces.
	conflictWarnings, err := i.conflicts.Check(ctx, manifest, staging)
	if err != nil {
		report.step("conflicts", err, "")
		return report, err
	}
	report.warn(conflictWarnings...)
	report.step("conflicts", nil, "")

	// Step 4: dependency staging against the pre-bundled set.
	if err := i.validator.CheckDependencyVersions(manifest, i.bundled); err != nil {
		report.step("dependencies", err, "")
		return report, err
	}
	report.step("dependencies", nil, fmt.Sprintf("%d declared", len(manifest.Dependencies)))

	// Move out of staging; the extension now exists as "_<id>" and failures
	// past this point leave it staged rather than half-applied.
	installPath := i.states.Path(manifest.ID, StateInactive)
	if err := os.Rename(staging, installPath); err != nil {
		report.step("placement", err, "")
		return report, fmt.Errorf("extensions: place %s: %w", manifest.ID, err)
	}
	cleanupStaging = false
	report.Staged = true
	report.step("placement", nil, installPath)

	record := Extension{
		ExtensionID: manifest.ID,
		Name:        manifest.Name,
		Version:     manifest.Version,
		Author:      manifest.Author,
		Kind:        manifest.Kind,
		InstallPath: installPath,
		IsInstalled: false,
		IsActive:    false,
	}
	if _, err := i.repo.Upsert(ctx, record); err != nil {
		report.step("persist", err, "")
		return report, err
	}

	// Step 5: namespace-scoped schema migrations.
	applied, err := i.migrator.Apply(ctx, manifest, installPath)
	if err != nil {
		report.step("migrate", err, "")
		i.logger.Error("extension left staged after migration failure", slog.String("extension", manifest.ID), slog.Any("error", err))
		return report, err
	}
	report.step("migrate", nil, fmt.Sprintf("%d scripts applied", applied))

	// Step 6: compile bundled localization resources.
	if _, err := CompileLocales(installPath); err != nil {
		report.step("locales", err, "")
		return report, err
	}
	report.step("locales", nil, "")

	// Step 7: mark installed, still inactive until an explicit activate.
	if err := i.repo.SetInstalled(ctx, manifest.ID, true); err != nil {
		report.step("persist", err, "")
		return report, err
	}
	report.Installed = true
	report.step("persist", nil, "installed, inactive")

	if i.observe != nil {
		i.observe(time.Since(started))
	}
	i.logger.Info("extension installed",
		slog.String("extension", manifest.ID),
		slog.String("version", manifest.Version),
		slog.Int("warnings", len(report.Warnings)))
	return report, nil
}

// UninstallOptions controls uninstall behavior. Data is preserved unless
// PurgeData is set, in which case the drop runs as a background job.
type UninstallOptions struct {
	PurgeData bool
	Purger    PurgeEnqueuer
}

// Uninstall removes an inactive extension: record first, then directory.
// Refuses while the extension directory is in the active state.
func (i *Installer) Uninstall(ctx context.Context, extensionID string, opts UninstallOptions) error {
	lock := i.lockFor(extensionID)
	lock.Lock()
	defer lock.Unlock()

	state, err := i.states.State(extensionID)
	if err != nil {
		return err
	}
	if state == StateActive {
		return ErrStillActive
	}

	manifest, manifestErr := LoadManifest(i.states.Path(extensionID, state))
	if err := i.repo.Delete(ctx, extensionID); err != nil && err != ErrNotFound {
		return err
	}
	if err := i.states.Delete(extensionID); err != nil {
		return err
	}

	if opts.PurgeData && opts.Purger != nil && manifestErr == nil {
		if err := opts.Purger.EnqueuePurge(ctx, extensionID, manifest.Schema.Namespace, manifest.Schema.Tables); err != nil {
			return fmt.Errorf("extensions: enqueue purge: %w", err)
		}
		i.logger.Info("extension data purge scheduled", slog.String("extension", extensionID))
	} else {
		i.logger.Warn("extension uninstalled, data tables preserved", slog.String("extension", extensionID))
	}
	return nil
}
