package permissions

import (
	"context"
	"sort"
	"strings"

	"github.com/helios-erp/helios/internal/extensions"
)

// RepositoryPort defines data access methods for the permission store.
type RepositoryPort interface {
	UpsertPermission(ctx context.Context, p Permission) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	ListPermissionsByExtension(ctx context.Context, extensionID string) ([]Permission, error)
	DeletePermissionsByExtension(ctx context.Context, extensionID string) error

	GetRole(ctx context.Context, roleID int64) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	ListGrants(ctx context.Context, roleID int64) ([]RoleGrant, error)

	GetUser(ctx context.Context, userID int64) (User, error)
	ListUserExtras(ctx context.Context, userID int64) ([]string, error)
}

// Service synchronizes extension-declared permissions and expands role
// grants on demand.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service instance.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Sync upserts each declared (codename, name) pair for the extension.
// Running twice with the same manifest produces no duplicate or changed
// rows.
func (s *Service) Sync(ctx context.Context, extensionID string, decls []extensions.PermissionDecl) error {
	for _, decl := range decls {
		action := strings.TrimSpace(decl.Action)
		if action == "" {
			continue
		}
		name := strings.TrimSpace(decl.Name)
		if name == "" {
			name = action
		}
		_, err := s.repo.UpsertPermission(ctx, Permission{
			Codename:    extensionID + "." + action,
			Name:        name,
			ExtensionID: extensionID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Unsync removes an extension's permissions, used on purge.
func (s *Service) Unsync(ctx context.Context, extensionID string) error {
	return s.repo.DeletePermissionsByExtension(ctx, extensionID)
}

// MatchPattern reports whether a wildcard pattern covers a codename.
// "*" matches everything; a trailing "*" matches by prefix; anything else
// is an exact match.
func MatchPattern(pattern, codename string) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "*" {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(codename, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == codename
}

// Expand computes a role's effective permission set: direct grants
// unioned with every wildcard's matches against all known codenames.
// The result is recomputed per call, never persisted, so adding a new
// permission immediately reaches every role whose wildcard matches it.
func (s *Service) Expand(ctx context.Context, roleID int64) ([]string, error) {
	grants, err := s.repo.ListGrants(ctx, roleID)
	if err != nil {
		return nil, err
	}
	all, err := s.repo.ListPermissions(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]string, len(all))
	for _, p := range all {
		byID[p.ID] = p.Codename
	}

	set := make(map[string]struct{})
	for _, g := range grants {
		if !g.Valid() {
			continue
		}
		if g.PermissionID != nil {
			if code, ok := byID[*g.PermissionID]; ok {
				set[code] = struct{}{}
			}
			continue
		}
		for _, p := range all {
			if MatchPattern(g.Pattern, p.Codename) {
				set[p.Codename] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// EffectivePermissions returns a user's deduplicated codenames: the role
// expansion plus the user's extra individual permissions.
func (s *Service) EffectivePermissions(ctx context.Context, userID int64) ([]string, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	expanded, err := s.Expand(ctx, user.RoleID)
	if err != nil {
		return nil, err
	}
	extras, err := s.repo.ListUserExtras(ctx, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[string]struct{}, len(expanded)+len(extras))
	for _, code := range expanded {
		set[code] = struct{}{}
	}
	for _, code := range extras {
		set[code] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for code := range set {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

// ListPermissions returns all stored permissions.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}
