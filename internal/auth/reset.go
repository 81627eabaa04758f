package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/notify"
)

const (
	// DefaultResetTTL is the validity window of a reset token.
	DefaultResetTTL = 15 * time.Minute

	resetIssueAttempts = 3
	resetPath          = "/reset-password"
)

// ResetConfig configures a ResetEngine.
type ResetConfig struct {
	TTL     time.Duration
	BaseURL string
}

// ResetEngine issues and redeems single-use password reset tokens.
type ResetEngine struct {
	store    accounts.Store
	notifier notify.Notifier
	hasher   Hasher
	logger   *slog.Logger
	ttl      time.Duration
	baseURL  string
	now      func() time.Time
	token    func() (string, error)
}

// NewResetEngine constructs a ResetEngine.
func NewResetEngine(store accounts.Store, notifier notify.Notifier, hasher Hasher, cfg ResetConfig, logger *slog.Logger) *ResetEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultResetTTL
	}
	return &ResetEngine{
		store:    store,
		notifier: notifier,
		hasher:   hasher,
		logger:   logger,
		ttl:      ttl,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		now:      time.Now,
		token:    newResetToken,
	}
}

// RequestReset issues a token for email when it resolves to an account. The
// caller learns nothing either way; failures are only logged.
func (e *ResetEngine) RequestReset(ctx context.Context, email string) {
	acc, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, accounts.ErrNotFound) {
			e.logger.Error("reset lookup failed", slog.Any("error", err))
		}
		return
	}
	token, err := e.issue(ctx, acc.ID)
	if err != nil {
		e.logger.Error("reset issue failed", slog.Int64("user_id", acc.ID), slog.Any("error", err))
		return
	}
	err = e.notifier.Deliver(ctx, acc.Email, notify.KindPasswordReset, notify.Payload{
		Name:      acc.Name,
		Link:      e.link(token),
		ExpiresIn: e.ttl,
	})
	if err != nil {
		e.logger.Warn("reset delivery failed", slog.Int64("user_id", acc.ID), slog.Any("error", err))
	}
}

// issue stores a new token, retrying when another account already holds it.
func (e *ResetEngine) issue(ctx context.Context, id int64) (string, error) {
	var lastErr error
	for attempt := 0; attempt < resetIssueAttempts; attempt++ {
		token, err := e.token()
		if err != nil {
			return "", err
		}
		pending := accounts.Pending{Value: token, ExpiresAt: e.now().UTC().Add(e.ttl)}
		_, err = e.store.Update(ctx, id, accounts.Patch{SetReset: &pending})
		if err == nil {
			return token, nil
		}
		if !errors.Is(err, accounts.ErrDuplicateToken) {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("auth: reset token collision: %w", lastErr)
}

func (e *ResetEngine) link(token string) string {
	return e.baseURL + resetPath + "?token=" + url.QueryEscape(token)
}

// VerifyToken reports the account bound to token without changing state.
func (e *ResetEngine) VerifyToken(ctx context.Context, token string) (accounts.Identity, error) {
	acc, err := e.lookup(ctx, token)
	if err != nil {
		return accounts.Identity{}, err
	}
	return acc.Identity(), nil
}

// ConsumeToken replaces the credential and clears the token in one update.
func (e *ResetEngine) ConsumeToken(ctx context.Context, token, newPassword string) error {
	acc, err := e.lookup(ctx, token)
	if err != nil {
		return err
	}
	if err := CheckPasswordStrength(newPassword); err != nil {
		return err
	}
	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	now := e.now().UTC()
	_, err = e.store.Modify(ctx, acc.ID, func(current accounts.Account) (accounts.Patch, error) {
		if !resetValid(current.Reset, token, now) {
			return accounts.Patch{}, ErrInvalidOrExpired
		}
		return accounts.Patch{PasswordHash: &hash, ClearReset: true}, nil
	})
	return err
}

func (e *ResetEngine) lookup(ctx context.Context, token string) (accounts.Account, error) {
	if token == "" {
		return accounts.Account{}, ErrInvalidOrExpired
	}
	acc, err := e.store.FindByResetToken(ctx, token)
	if err != nil {
		if errors.Is(err, accounts.ErrNotFound) {
			return accounts.Account{}, ErrInvalidOrExpired
		}
		return accounts.Account{}, err
	}
	if !resetValid(acc.Reset, token, e.now().UTC()) {
		return accounts.Account{}, ErrInvalidOrExpired
	}
	return acc, nil
}

// resetValid requires an exact match and an expiry strictly after now.
func resetValid(p *accounts.Pending, token string, now time.Time) bool {
	return p != nil && p.Value == token && p.ExpiresAt.After(now)
}
