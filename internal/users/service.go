package users

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/auth"
	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
)

const auditEntity = "user"

// AuditRecorder persists audit entries. *shared.AuditLogger satisfies it.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// SessionRevoker ends the live sessions of an account. *auth.Authority
// satisfies it.
type SessionRevoker interface {
	RevokeUserSessions(ctx context.Context, userID int64) error
}

// Service handles account administration rules.
type Service struct {
	store    accounts.Store
	hasher   auth.Hasher
	audit    AuditRecorder
	sessions SessionRevoker
	logger   *slog.Logger
}

// NewService builds Service instance. audit and sessions may be nil.
func NewService(store accounts.Store, hasher auth.Hasher, audit AuditRecorder, sessions SessionRevoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, hasher: hasher, audit: audit, sessions: sessions, logger: logger}
}

// List returns one page of accounts ordered by id.
func (s *Service) List(ctx context.Context, page shared.PageRequest) ([]User, shared.Pagination, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	meta := shared.NewPagination(page.Page, page.PerPage, len(all))
	start := min(page.Offset(), len(all))
	end := min(start+meta.PerPage, len(all))
	out := make([]User, 0, end-start)
	for _, acc := range all[start:end] {
		out = append(out, fromAccount(acc))
	}
	return out, meta, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	acc, err := s.store.FindByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return fromAccount(acc), nil
}

// Provision creates a verified account on behalf of actor.
func (s *Service) Provision(ctx context.Context, actor rbac.Principal, in ProvisionInput) (User, error) {
	if err := rbac.Authorize(&actor, rbac.AdminAccess); err != nil {
		return User{}, err
	}
	if err := guardSuperAdmin(actor, in.Role); err != nil {
		return User{}, err
	}
	user, err := s.create(ctx, in)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, actor.ID, shared.AuditActionCreate, user.ID, map[string]any{"role": user.Role})
	return user, nil
}

// Bootstrap provisions an account without an acting session. It backs the
// operator CLI and is never reachable over HTTP.
func (s *Service) Bootstrap(ctx context.Context, in ProvisionInput) (User, error) {
	user, err := s.create(ctx, in)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, 0, shared.AuditActionCreate, user.ID, map[string]any{"role": user.Role, "source": "cli"})
	return user, nil
}

func (s *Service) create(ctx context.Context, in ProvisionInput) (User, error) {
	if !in.Role.Valid() {
		return User{}, accounts.ErrUnknownRole
	}
	if err := auth.CheckPasswordStrength(in.Password); err != nil {
		return User{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	acc, err := s.store.Create(ctx, accounts.NewAccount{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         in.Role,
		IsActive:     !in.Inactive,
		IsVerified:   true,
	})
	if err != nil {
		return User{}, err
	}
	return fromAccount(acc), nil
}

// Update applies in to account id. Deactivating yourself counts as destructive.
// Deactivation and role changes end the account's live sessions.
func (s *Service) Update(ctx context.Context, actor rbac.Principal, id int64, in UpdateInput) (User, error) {
	destructive := in.IsActive != nil && !*in.IsActive
	if err := rbac.AuthorizeTarget(&actor, rbac.AdminAccess, id, destructive); err != nil {
		return User{}, err
	}
	patch := accounts.Patch{Name: in.Name, Role: in.Role, IsActive: in.IsActive, Subscription: in.Subscription}
	if patch.Empty() {
		return User{}, ErrNothingToUpdate
	}
	if in.Role != nil && !in.Role.Valid() {
		return User{}, accounts.ErrUnknownRole
	}
	acc, err := s.store.Modify(ctx, id, func(current accounts.Account) (accounts.Patch, error) {
		roles := []accounts.Role{current.Role}
		if in.Role != nil {
			roles = append(roles, *in.Role)
		}
		if err := guardSuperAdmin(actor, roles...); err != nil {
			return accounts.Patch{}, err
		}
		return patch, nil
	})
	if err != nil {
		return User{}, err
	}
	meta := map[string]any{}
	if in.Role != nil {
		meta["role"] = *in.Role
	}
	if in.IsActive != nil {
		meta["is_active"] = *in.IsActive
	}
	s.record(ctx, actor.ID, shared.AuditActionUpdate, id, meta)
	if in.Role != nil || destructive {
		s.revoke(ctx, id)
	}
	return fromAccount(acc), nil
}

// Delete removes account id. Actors can never delete themselves.
func (s *Service) Delete(ctx context.Context, actor rbac.Principal, id int64) error {
	if err := rbac.AuthorizeTarget(&actor, rbac.AdminAccess, id, true); err != nil {
		return err
	}
	target, err := s.store.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := guardSuperAdmin(actor, target.Role); err != nil {
		return err
	}
	// session rows cascade with the account, so revoke while they are listable
	s.revoke(ctx, id)
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actor.ID, shared.AuditActionDelete, id, map[string]any{"email": target.Email})
	return nil
}

// guardSuperAdmin admits only SuperAdminOnly actors when any of roles is
// SUPER_ADMIN.
func guardSuperAdmin(actor rbac.Principal, roles ...accounts.Role) error {
	for _, r := range roles {
		if r == accounts.RoleSuperAdmin && !rbac.SuperAdminOnly.Has(actor.Role) {
			return ErrSuperAdminRequired
		}
	}
	return nil
}

func (s *Service) revoke(ctx context.Context, id int64) {
	if s.sessions == nil {
		return
	}
	if err := s.sessions.RevokeUserSessions(ctx, id); err != nil {
		s.logger.Warn("revoke sessions failed", slog.Int64("user_id", id), slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   auditEntity,
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit record failed", slog.String("action", action), slog.Int64("user_id", id), slog.Any("error", err))
	}
}
