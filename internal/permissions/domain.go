// Package permissions holds the shared permission/role store fed by
// extension manifests, including wildcard role grants.
package permissions

import (
	"errors"
	"time"
)

// ErrNotFound indicates that the requested record does not exist.
var ErrNotFound = errors.New("permissions: not found")

// ErrSystemRole protects built-in roles from deletion.
var ErrSystemRole = errors.New("permissions: system roles cannot be deleted")

// Permission is one action code contributed by an extension. Codenames
// take the form "<extension id>.<action>" and are unique host-wide.
type Permission struct {
	ID          int64
	Codename    string
	Name        string
	ExtensionID string
}

// Role groups grants under a name.
type Role struct {
	ID          int64
	Name        string
	DisplayName string
	IsSystem    bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// RoleGrant is either a direct reference to one Permission or a wildcard
// pattern, never both.
type RoleGrant struct {
	ID           int64
	RoleID       int64
	PermissionID *int64
	Pattern      string
}

// Valid enforces the XOR invariant between direct and wildcard grants.
func (g RoleGrant) Valid() bool {
	return (g.PermissionID != nil) != (g.Pattern != "")
}

// User ties an account to one role plus optional extra permissions; its
// effective set is the role's expansion unioned with the extras.
type User struct {
	ID     int64
	RoleID int64
	Extra  []string
}
