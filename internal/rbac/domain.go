// Package rbac decides whether a session may perform an operation. Every
// protected route declares the exact set of roles it admits; SUPER_ADMIN is
// listed explicitly in each set rather than derived from a rank.
package rbac

import (
	"sort"
	"strings"

	"github.com/gazette-cms/gazette/internal/accounts"
)

// RoleSet is an allow-list of roles.
type RoleSet map[accounts.Role]struct{}

// NewRoleSet builds a RoleSet from roles.
func NewRoleSet(roles ...accounts.Role) RoleSet {
	set := make(RoleSet, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return set
}

// Has reports exact membership.
func (s RoleSet) Has(role accounts.Role) bool {
	_, ok := s[role]
	return ok
}

// String lists the roles in a stable order.
func (s RoleSet) String() string {
	names := make([]string, 0, len(s))
	for r := range s {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return "{" + strings.Join(names, ",") + "}"
}

// Declared role sets.
var (
	AdminAccess     = NewRoleSet(accounts.RoleAdmin, accounts.RoleSuperAdmin)
	EditorAccess    = NewRoleSet(accounts.RoleEditor, accounts.RoleSuperAdmin)
	PublisherAccess = NewRoleSet(accounts.RolePublisher, accounts.RoleSuperAdmin)
	SuperAdminOnly  = NewRoleSet(accounts.RoleSuperAdmin)
	AnyAccount      = NewRoleSet(accounts.Roles()...)
)

// Principal describes the authenticated actor.
type Principal struct {
	ID   int64
	Role accounts.Role
}
