package permissions

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// UpsertPermission inserts or refreshes a permission keyed by codename.
// The upsert only writes when something changed, keeping reruns free of
// row churn.
func (r *Repository) UpsertPermission(ctx context.Context, p Permission) (Permission, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO permissions (codename, name, extension_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (codename) DO UPDATE SET
			name = EXCLUDED.name,
			extension_id = EXCLUDED.extension_id
		WHERE permissions.name <> EXCLUDED.name OR permissions.extension_id <> EXCLUDED.extension_id
		RETURNING id, codename, name, extension_id`,
		p.Codename, p.Name, p.ExtensionID)
	out, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Conditional upsert matched an identical row; fetch it.
			return r.getPermission(ctx, p.Codename)
		}
		return Permission{}, err
	}
	return out, nil
}

func (r *Repository) getPermission(ctx context.Context, codename string) (Permission, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, codename, name, extension_id FROM permissions WHERE codename = $1`, codename)
	out, err := scanPermission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, ErrNotFound
		}
		return Permission{}, err
	}
	return out, nil
}

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	err := row.Scan(&p.ID, &p.Codename, &p.Name, &p.ExtensionID)
	return p, err
}

// ListPermissions returns all permissions ordered by codename.
func (r *Repository) ListPermissions(ctx context.Context) ([]Permission, error) {
	return r.listPermissions(ctx, `SELECT id, codename, name, extension_id FROM permissions ORDER BY codename`)
}

// ListPermissionsByExtension returns one extension's permissions.
func (r *Repository) ListPermissionsByExtension(ctx context.Context, extensionID string) ([]Permission, error) {
	return r.listPermissions(ctx, `SELECT id, codename, name, extension_id FROM permissions WHERE extension_id = $1 ORDER BY codename`, extensionID)
}

func (r *Repository) listPermissions(ctx context.Context, query string, args ...any) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var perms []Permission
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// DeletePermissionsByExtension removes an extension's permission rows.
func (r *Repository) DeletePermissionsByExtension(ctx context.Context, extensionID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE extension_id = $1`, extensionID)
	return err
}

// GetRole fetches a role by ID.
func (r *Repository) GetRole(ctx context.Context, roleID int64) (Role, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, display_name, is_system, is_active, created_at, updated_at FROM roles WHERE id = $1`, roleID)
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.DisplayName, &role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, ErrNotFound
		}
		return Role{}, err
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, display_name, is_system, is_active, created_at, updated_at FROM roles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.DisplayName, &role.IsSystem, &role.IsActive, &role.CreatedAt, &role.UpdatedAt); err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

// ListGrants returns a role's grant rows, direct and wildcard alike.
func (r *Repository) ListGrants(ctx context.Context, roleID int64) ([]RoleGrant, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, role_id, permission_id, COALESCE(pattern, '') FROM role_grants WHERE role_id = $1 ORDER BY id`, roleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var grants []RoleGrant
	for rows.Next() {
		var g RoleGrant
		if err := rows.Scan(&g.ID, &g.RoleID, &g.PermissionID, &g.Pattern); err != nil {
			return nil, err
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GetUser fetches a user's role reference.
func (r *Repository) GetUser(ctx context.Context, userID int64) (User, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, role_id FROM users WHERE id = $1`, userID)
	var u User
	if err := row.Scan(&u.ID, &u.RoleID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, err
	}
	return u, nil
}

// ListUserExtras returns the user's extra individual permission codenames.
func (r *Repository) ListUserExtras(ctx context.Context, userID int64) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.codename FROM user_permissions up
		JOIN permissions p ON p.id = up.permission_id
		WHERE up.user_id = $1 ORDER BY p.codename`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}
