package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/notify"
)

// DefaultOTPTTL is the validity window of a one-time code.
const DefaultOTPTTL = 5 * time.Minute

// Purpose names the flow a one-time code belongs to.
type Purpose string

// Supported purposes.
const (
	PurposeLogin    Purpose = "login"
	PurposeRegister Purpose = "register"
)

// Valid reports whether p is a known purpose.
func (p Purpose) Valid() bool {
	return p == PurposeLogin || p == PurposeRegister
}

// OTPConfig configures an OTPEngine.
type OTPConfig struct {
	TTL time.Duration
	// Exempt addresses never receive codes; requests for them succeed immediately.
	Exempt []string
}

// OTPEngine issues and verifies six digit one-time codes.
type OTPEngine struct {
	store    accounts.Store
	notifier notify.Notifier
	logger   *slog.Logger
	ttl      time.Duration
	exempt   map[string]struct{}
	now      func() time.Time
	generate func() (string, error)
}

// NewOTPEngine constructs an OTPEngine.
func NewOTPEngine(store accounts.Store, notifier notify.Notifier, cfg OTPConfig, logger *slog.Logger) *OTPEngine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	exempt := make(map[string]struct{}, len(cfg.Exempt))
	for _, email := range cfg.Exempt {
		if email = accounts.NormalizeEmail(email); email != "" {
			exempt[email] = struct{}{}
		}
	}
	return &OTPEngine{
		store:    store,
		notifier: notifier,
		logger:   logger,
		ttl:      ttl,
		exempt:   exempt,
		now:      time.Now,
		generate: newOTP,
	}
}

// IsExempt reports whether email bypasses one-time codes.
func (e *OTPEngine) IsExempt(email string) bool {
	_, ok := e.exempt[accounts.NormalizeEmail(email)]
	return ok
}

// RequestCode stores a fresh code on the account and delivers it. Any earlier
// pending code is overwritten. A failed delivery leaves the stored code valid.
func (e *OTPEngine) RequestCode(ctx context.Context, email string, purpose Purpose) error {
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}
	if e.IsExempt(email) {
		e.logger.Debug("otp skipped for exempt account", slog.String("purpose", string(purpose)))
		return nil
	}
	acc, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	code, err := e.generate()
	if err != nil {
		return err
	}
	pending := accounts.Pending{Value: code, ExpiresAt: e.now().UTC().Add(e.ttl)}
	if _, err := e.store.Update(ctx, acc.ID, accounts.Patch{SetOTP: &pending}); err != nil {
		return fmt.Errorf("auth: store otp: %w", err)
	}
	err = e.notifier.Deliver(ctx, acc.Email, notify.KindOTP, notify.Payload{
		Name:      acc.Name,
		Code:      code,
		Purpose:   string(purpose),
		ExpiresIn: e.ttl,
	})
	if err != nil {
		e.logger.Warn("otp delivery failed", slog.Int64("user_id", acc.ID), slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrDeliveryFailure, err)
	}
	return nil
}

// VerifyCode consumes the pending code. The check and the clear happen in one
// atomic update so a code can succeed at most once.
func (e *OTPEngine) VerifyCode(ctx context.Context, email, code string) (accounts.Identity, error) {
	acc, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		return accounts.Identity{}, err
	}
	now := e.now().UTC()
	verified := true
	updated, err := e.store.Modify(ctx, acc.ID, func(current accounts.Account) (accounts.Patch, error) {
		if current.OTP == nil || current.OTP.Value == "" {
			return accounts.Patch{}, ErrNoPendingCode
		}
		if now.After(current.OTP.ExpiresAt) {
			return accounts.Patch{}, ErrExpired
		}
		if subtle.ConstantTimeCompare([]byte(current.OTP.Value), []byte(code)) != 1 {
			return accounts.Patch{}, ErrMismatch
		}
		return accounts.Patch{ClearOTP: true, IsVerified: &verified}, nil
	})
	if err != nil {
		return accounts.Identity{}, err
	}
	return updated.Identity(), nil
}
