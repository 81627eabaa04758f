package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
)

// pendingLoginKey marks a session that passed the password step and awaits a code.
const pendingLoginKey = "pending_login"

// SessionLog records issued sessions for auditing.
type SessionLog interface {
	CreateSession(ctx context.Context, rec SessionRecord) error
	DeleteSession(ctx context.Context, id string) error
	ListUserSessions(ctx context.Context, userID int64) ([]string, error)
}

// SessionRecord is one row of the session audit trail.
type SessionRecord struct {
	ID        string
	UserID    int64
	Role      accounts.Role
	CreatedAt time.Time
	ExpiresAt time.Time
	IP        string
	UserAgent string
}

// SessionMeta carries request attributes recorded with a new session.
type SessionMeta struct {
	IP        string
	UserAgent string
}

// Authority authenticates credentials and binds accounts to sessions.
type Authority struct {
	store    accounts.Store
	hasher   Hasher
	sessions *shared.SessionManager
	log      SessionLog
	logger   *slog.Logger
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthority constructs an Authority. log may be nil.
func NewAuthority(store accounts.Store, hasher Hasher, sessions *shared.SessionManager, log SessionLog, logger *slog.Logger) *Authority {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Authority{store: store, hasher: hasher, sessions: sessions, log: log, logger: logger, now: time.Now}
}

// Authenticate checks email and password. It does not imply a code was verified.
func (a *Authority) Authenticate(ctx context.Context, email, password string) (accounts.Identity, error) {
	acc, err := a.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			a.burnCompare(password)
			return accounts.Identity{}, ErrInvalidCredentials
		}
		return accounts.Identity{}, err
	}
	if acc.PasswordHash == "" {
		a.burnCompare(password)
		return accounts.Identity{}, ErrInvalidCredentials
	}
	if err := a.hasher.Compare(acc.PasswordHash, password); err != nil {
		return accounts.Identity{}, ErrInvalidCredentials
	}
	if !acc.IsActive {
		return accounts.Identity{}, ErrAccountInactive
	}
	return acc.Identity(), nil
}

// burnCompare spends a hash comparison so unknown accounts take as long as known ones.
func (a *Authority) burnCompare(password string) {
	a.dummyOnce.Do(func() {
		a.dummyHash, _ = a.hasher.Hash("gazette-timing-equaliser")
	})
	if a.dummyHash != "" {
		_ = a.hasher.Compare(a.dummyHash, password)
	}
}

// IssueSession binds the session to the account's id and current role. The
// session id is rotated and the CSRF token dropped so nothing issued before
// login survives it.
func (a *Authority) IssueSession(ctx context.Context, sess *shared.Session, id accounts.Identity, meta SessionMeta) (accounts.Identity, error) {
	if sess == nil {
		return accounts.Identity{}, ErrNoSession
	}
	acc, err := a.store.FindByID(ctx, id.ID)
	if err != nil {
		return accounts.Identity{}, err
	}
	if !acc.IsActive {
		return accounts.Identity{}, ErrAccountInactive
	}
	a.sessions.Rotate(sess)
	sess.Delete(pendingLoginKey)
	sess.Delete(shared.CSRFSessionKey)
	sess.Bind(strconv.FormatInt(acc.ID, 10), string(acc.Role))

	if a.log != nil {
		now := a.now().UTC()
		err := a.log.CreateSession(ctx, SessionRecord{
			ID:        sess.ID,
			UserID:    acc.ID,
			Role:      acc.Role,
			CreatedAt: now,
			ExpiresAt: now.Add(a.sessions.TTL()),
			IP:        meta.IP,
			UserAgent: meta.UserAgent,
		})
		if err != nil {
			a.logger.Warn("record session", slog.Int64("user_id", acc.ID), slog.Any("error", err))
		}
	}
	return acc.Identity(), nil
}

// CurrentRole resolves the role bound to sess.
func (a *Authority) CurrentRole(sess *shared.Session) (accounts.Role, error) {
	p, ok := rbac.PrincipalFromSession(sess)
	if !ok {
		return "", ErrNoSession
	}
	return p.Role, nil
}

// CurrentAccount loads the account bound to sess. When that account is gone,
// inactive or no longer holds the bound role the session is revoked and
// ErrNoSession returned.
func (a *Authority) CurrentAccount(ctx context.Context, sess *shared.Session) (accounts.Account, error) {
	p, ok := rbac.PrincipalFromSession(sess)
	if !ok {
		return accounts.Account{}, ErrNoSession
	}
	acc, err := a.store.FindByID(ctx, p.ID)
	switch {
	case errors.Is(err, accounts.ErrNotFound):
	case err != nil:
		return accounts.Account{}, err
	case acc.IsActive && acc.Role == p.Role:
		return acc, nil
	}
	a.logger.Info("stale session revoked", slog.Int64("user_id", p.ID), slog.String("bound_role", string(p.Role)))
	a.RevokeSession(ctx, sess)
	return accounts.Account{}, ErrNoSession
}

// ResolvePrincipal implements rbac.PrincipalResolver on top of CurrentAccount.
func (a *Authority) ResolvePrincipal(ctx context.Context, sess *shared.Session) (*rbac.Principal, error) {
	acc, err := a.CurrentAccount(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &rbac.Principal{ID: acc.ID, Role: acc.Role}, nil
}

// RevokeUserSessions ends every recorded session of userID.
func (a *Authority) RevokeUserSessions(ctx context.Context, userID int64) error {
	if a.log == nil {
		return nil
	}
	ids, err := a.log.ListUserSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("auth: list sessions: %w", err)
	}
	for _, id := range ids {
		if err := a.sessions.Revoke(ctx, id); err != nil {
			return fmt.Errorf("auth: revoke session: %w", err)
		}
		if err := a.log.DeleteSession(ctx, id); err != nil {
			return fmt.Errorf("auth: remove session: %w", err)
		}
	}
	return nil
}

// RevokeSession destroys sess and drops its audit row.
func (a *Authority) RevokeSession(ctx context.Context, sess *shared.Session) {
	if sess == nil {
		return
	}
	if a.log != nil && sess.User() != "" {
		if err := a.log.DeleteSession(ctx, sess.ID); err != nil {
			a.logger.Warn("remove session", slog.Any("error", err))
		}
	}
	a.sessions.Destroy(sess)
}

var _ rbac.PrincipalResolver = (*Authority)(nil)
