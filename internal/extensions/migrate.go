package extensions

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/helios-erp/helios/internal/platform/db"
)

// MigratorPort applies an extension's schema migrations scoped to its
// namespace. Implementations must be idempotent per script.
type MigratorPort interface {
	Apply(ctx context.Context, m *Manifest, dir string) (int, error)
	Purge(ctx context.Context, m *Manifest) ([]string, error)
}

// Migrator runs extension migration scripts against PostgreSQL, tracking
// applied scripts per extension so reruns are no-ops.
type Migrator struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewMigrator constructs a Migrator.
func NewMigrator(pool *pgxpool.Pool, logger *slog.Logger) *Migrator {
	return &Migrator{pool: pool, logger: logger}
}

const migrationLedgerDDL = `CREATE TABLE IF NOT EXISTS extension_migrations (
	extension_id TEXT NOT NULL,
	filename     TEXT NOT NULL,
	applied_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (extension_id, filename)
)`

// PlanMigrations lists the extension's migration scripts in apply order.
func PlanMigrations(dir string) ([]string, error) {
	migDir := filepath.Join(dir, "migrations")
	dirents, err := os.ReadDir(migDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("extensions: read migrations: %w", err)
	}
	var scripts []string
	for _, d := range dirents {
		if d.IsDir() || filepath.Ext(d.Name()) != ".sql" {
			continue
		}
		scripts = append(scripts, d.Name())
	}
	sort.Strings(scripts)
	return scripts, nil
}

// Apply runs pending migration scripts, each in its own transaction.
// Failure aborts the remainder and surfaces a *MigrationError; already
// applied scripts are skipped. Returns the count of scripts applied.
func (m *Migrator) Apply(ctx context.Context, manifest *Manifest, dir string) (int, error) {
	scripts, err := PlanMigrations(dir)
	if err != nil {
		return 0, err
	}
	if len(scripts) == 0 {
		return 0, nil
	}
	if _, err := m.pool.Exec(ctx, migrationLedgerDDL); err != nil {
		return 0, fmt.Errorf("extensions: migration ledger: %w", err)
	}

	applied := 0
	for _, script := range scripts {
		done, err := m.alreadyApplied(ctx, manifest.ID, script)
		if err != nil {
			return applied, err
		}
		if done {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, "migrations", script))
		if err != nil {
			return applied, &MigrationError{ExtensionID: manifest.ID, Script: script, Err: err}
		}
		if err := m.applyOne(ctx, manifest.ID, script, string(data)); err != nil {
			return applied, err
		}
		applied++
		if m.logger != nil {
			m.logger.Info("applied extension migration", slog.String("extension", manifest.ID), slog.String("script", script))
		}
	}
	return applied, nil
}

func (m *Migrator) alreadyApplied(ctx context.Context, extensionID, script string) (bool, error) {
	var exists bool
	err := m.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM extension_migrations WHERE extension_id = $1 AND filename = $2)`, extensionID, script).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("extensions: migration ledger lookup: %w", err)
	}
	return exists, nil
}

func (m *Migrator) applyOne(ctx context.Context, extensionID, script, body string) error {
	err := db.WithTx(ctx, m.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, body); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `INSERT INTO extension_migrations (extension_id, filename) VALUES ($1, $2)`, extensionID, script)
		return err
	})
	if err != nil {
		return &MigrationError{ExtensionID: extensionID, Script: script, Err: err}
	}
	return nil
}

// Purge drops the extension's declared tables and clears its migration
// ledger. Only tables inside the extension's own namespace are touched;
// this is the opt-in destructive half of uninstall.
func (m *Migrator) Purge(ctx context.Context, manifest *Manifest) ([]string, error) {
	var dropped []string
	for _, table := range manifest.Schema.Tables {
		table = strings.ToLower(strings.TrimSpace(table))
		if table == "" || !strings.HasPrefix(table, manifest.Schema.Namespace+"_") && table != manifest.Schema.Namespace {
			continue
		}
		if _, err := m.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %q CASCADE`, table)); err != nil {
			return dropped, fmt.Errorf("extensions: drop table %s: %w", table, err)
		}
		dropped = append(dropped, table)
	}
	if _, err := m.pool.Exec(ctx, `DELETE FROM extension_migrations WHERE extension_id = $1`, manifest.ID); err != nil {
		return dropped, fmt.Errorf("extensions: clear migration ledger: %w", err)
	}
	return dropped, nil
}
