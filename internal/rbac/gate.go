package rbac

import (
	"github.com/gazette-cms/gazette/internal/shared"
)

var (
	// ErrUnauthenticated means no valid session is present.
	ErrUnauthenticated = shared.NewKindError(shared.ErrUnauthenticated, "unauthorized")
	// ErrForbidden means the session role is not in the required set.
	ErrForbidden = shared.NewKindError(shared.ErrForbidden, "forbidden")
	// ErrSelfActionForbidden means a destructive action targets the actor itself.
	ErrSelfActionForbidden = shared.NewKindError(shared.ErrForbidden, "forbidden")
)

// Authorize allows the principal when its role is a member of required.
// A nil principal is unauthenticated.
func Authorize(p *Principal, required RoleSet) error {
	if p == nil || p.ID == 0 || p.Role == "" {
		return ErrUnauthenticated
	}
	if !required.Has(p.Role) {
		return ErrForbidden
	}
	return nil
}

// AuthorizeTarget is Authorize for operations addressed at an account. The
// self-action guard runs before the role check so that it holds for every role.
func AuthorizeTarget(p *Principal, required RoleSet, targetID int64, destructive bool) error {
	if p == nil || p.ID == 0 || p.Role == "" {
		return ErrUnauthenticated
	}
	if destructive && targetID == p.ID {
		return ErrSelfActionForbidden
	}
	return Authorize(p, required)
}
