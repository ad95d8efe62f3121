package extensions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort defines data access methods for extension records.
type RepositoryPort interface {
	Upsert(ctx context.Context, ext Extension) (Extension, error)
	Get(ctx context.Context, extensionID string) (Extension, error)
	List(ctx context.Context) ([]Extension, error)
	SetActive(ctx context.Context, extensionID string, active bool) error
	SetInstalled(ctx context.Context, extensionID string, installed bool) error
	Delete(ctx context.Context, extensionID string) error
	ReconcileActive(ctx context.Context, activeIDs []string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const extensionColumns = `id, extension_id, name, version, author, kind, install_path, is_installed, is_active, created_at, updated_at`

func scanExtension(row pgx.Row) (Extension, error) {
	var ext Extension
	err := row.Scan(&ext.ID, &ext.ExtensionID, &ext.Name, &ext.Version, &ext.Author, &ext.Kind, &ext.InstallPath, &ext.IsInstalled, &ext.IsActive, &ext.CreatedAt, &ext.UpdatedAt)
	return ext, err
}

// Upsert inserts or refreshes an extension record keyed by extension_id.
func (r *Repository) Upsert(ctx context.Context, ext Extension) (Extension, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO extensions (extension_id, name, version, author, kind, install_path, is_installed, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (extension_id) DO UPDATE SET
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			author = EXCLUDED.author,
			kind = EXCLUDED.kind,
			install_path = EXCLUDED.install_path,
			is_installed = EXCLUDED.is_installed,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING `+extensionColumns,
		ext.ExtensionID, ext.Name, ext.Version, ext.Author, ext.Kind, ext.InstallPath, ext.IsInstalled, ext.IsActive)
	return scanExtension(row)
}

// Get fetches one extension record.
func (r *Repository) Get(ctx context.Context, extensionID string) (Extension, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+extensionColumns+` FROM extensions WHERE extension_id = $1`, extensionID)
	ext, err := scanExtension(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Extension{}, ErrNotFound
		}
		return Extension{}, err
	}
	return ext, nil
}

// List returns all extension records ordered by extension_id.
func (r *Repository) List(ctx context.Context) ([]Extension, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+extensionColumns+` FROM extensions ORDER BY extension_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Extension
	for rows.Next() {
		ext, err := scanExtension(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ext)
	}
	return out, rows.Err()
}

// SetActive updates the cached is_active flag.
func (r *Repository) SetActive(ctx context.Context, extensionID string, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE extensions SET is_active = $2, updated_at = now() WHERE extension_id = $1`, extensionID, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetInstalled updates the is_installed flag, used to move a record out of
// the staged state once the pipeline completes.
func (r *Repository) SetInstalled(ctx context.Context, extensionID string, installed bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE extensions SET is_installed = $2, updated_at = now() WHERE extension_id = $1`, extensionID, installed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an extension record.
func (r *Repository) Delete(ctx context.Context, extensionID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM extensions WHERE extension_id = $1`, extensionID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ReconcileActive rewrites every record's cached is_active flag from the
// authoritative filesystem scan.
func (r *Repository) ReconcileActive(ctx context.Context, activeIDs []string) error {
	if activeIDs == nil {
		activeIDs = []string{}
	}
	_, err := r.pool.Exec(ctx, `UPDATE extensions SET is_active = (extension_id = ANY($1)), updated_at = now() WHERE is_active <> (extension_id = ANY($1))`, activeIDs)
	return err
}
