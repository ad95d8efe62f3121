package extensions

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SchemaIntrospector reports the table names present in the live schema.
type SchemaIntrospector interface {
	TableNames(ctx context.Context) ([]string, error)
}

// PgIntrospector introspects the public schema of a PostgreSQL database.
type PgIntrospector struct {
	pool *pgxpool.Pool
}

// NewPgIntrospector constructs an introspector over the given pool.
func NewPgIntrospector(pool *pgxpool.Pool) *PgIntrospector {
	return &PgIntrospector{pool: pool}
}

// TableNames lists base tables in the public schema.
func (p *PgIntrospector) TableNames(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE' ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("extensions: introspect tables: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// NamespaceSource reports namespace labels already claimed by loaded or
// installed extensions.
type NamespaceSource interface {
	Namespaces() []string
}

// DiskNamespaces derives namespace labels from the manifests present
// under the extensions root, active and inactive alike. Hidden
// directories (install staging included) and excluded ids are skipped,
// as are directories whose manifest cannot be read; the installer and
// loader surface those on their own.
type DiskNamespaces struct {
	states  *StateManager
	exclude map[string]struct{}
}

// NewDiskNamespaces builds a source over the given root. Ids listed in
// exclude are left out so an extension never collides with itself.
func NewDiskNamespaces(states *StateManager, exclude ...string) *DiskNamespaces {
	ex := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		ex[id] = struct{}{}
	}
	return &DiskNamespaces{states: states, exclude: ex}
}

// Namespaces scans the extensions root and collects each manifest's
// namespace label.
func (d *DiskNamespaces) Namespaces() []string {
	entries, err := d.states.Scan()
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		if e.State == StateHidden {
			continue
		}
		if _, skip := d.exclude[e.ID]; skip {
			continue
		}
		m, err := LoadManifest(e.Path)
		if err != nil || m.Schema.Namespace == "" {
			continue
		}
		out = append(out, m.Schema.Namespace)
	}
	return out
}

// ConflictDetector cross-references an extension's declared schema
// identifiers against the live database schema and the namespaces of
// already registered extensions.
//
// The manifest's schema block is treated as authoritative. A best-effort
// scan of migration scripts supplements it and can only add warnings for
// identifiers found in SQL but missing from the declaration; identifiers
// constructed dynamically at runtime stay invisible to this check.
type ConflictDetector struct {
	introspector SchemaIntrospector
	namespaces   NamespaceSource
}

// NewConflictDetector wires the detector's two reference sources.
func NewConflictDetector(introspector SchemaIntrospector, namespaces NamespaceSource) *ConflictDetector {
	return &ConflictDetector{introspector: introspector, namespaces: namespaces}
}

var createTableRe = regexp.MustCompile(`(?i)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?"?([a-z0-9_]+)"?`)

// Check blocks installation on any identifier collision. Returns a
// *ConflictError naming the first colliding identifier, or nil plus any
// declaration-coverage warnings.
func (d *ConflictDetector) Check(ctx context.Context, m *Manifest, dir string) ([]Warning, error) {
	existing, err := d.introspector.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	existingSet := make(map[string]struct{}, len(existing))
	for _, t := range existing {
		existingSet[t] = struct{}{}
	}

	declared := make(map[string]struct{}, len(m.Schema.Tables))
	for _, table := range m.Schema.Tables {
		table = strings.ToLower(strings.TrimSpace(table))
		if table == "" {
			continue
		}
		declared[table] = struct{}{}
		if _, taken := existingSet[table]; taken {
			return nil, &ConflictError{ExtensionID: m.ID, Kind: "table", Identifier: table}
		}
	}

	if d.namespaces != nil {
		for _, ns := range d.namespaces.Namespaces() {
			if strings.EqualFold(ns, m.Schema.Namespace) {
				return nil, &ConflictError{ExtensionID: m.ID, Kind: "namespace", Identifier: m.Schema.Namespace}
			}
		}
	}

	warnings, err := d.scanMigrations(m, dir, declared, existingSet)
	if err != nil {
		return nil, err
	}
	return warnings, nil
}

// scanMigrations extracts CREATE TABLE names from the extension's
// migration scripts. A scripted table that collides with the live schema
// blocks the install even when the author forgot to declare it; a scripted
// table merely missing from the declaration is a warning.
func (d *ConflictDetector) scanMigrations(m *Manifest, dir string, declared, existing map[string]struct{}) ([]Warning, error) {
	migDir := filepath.Join(dir, "migrations")
	if _, err := os.Stat(migDir); err != nil {
		return nil, nil
	}
	var warnings []Warning
	err := filepath.WalkDir(migDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(dir, path)
		for _, match := range createTableRe.FindAllStringSubmatch(string(data), -1) {
			table := strings.ToLower(match[1])
			if _, ok := declared[table]; ok {
				continue
			}
			if _, taken := existing[table]; taken {
				return &ConflictError{ExtensionID: m.ID, Kind: "table", Identifier: table}
			}
			warnings = append(warnings, Warning{File: rel, Message: fmt.Sprintf("table %q created by migration but not declared in the manifest schema block", table)})
		}
		return nil
	})
	if err != nil {
		if _, ok := err.(*ConflictError); ok {
			return nil, err
		}
		return nil, fmt.Errorf("extensions: scan migrations: %w", err)
	}
	return warnings, nil
}
