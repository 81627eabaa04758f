package auth

import (
	"errors"

	"github.com/gazette-cms/gazette/internal/shared"
)

var (
	// ErrNoPendingCode indicates the account holds no one-time code.
	ErrNoPendingCode = shared.NewKindError(shared.ErrInvalidInput, "no pending verification code")
	// ErrExpired indicates the pending code is past its expiry.
	ErrExpired = shared.NewKindError(shared.ErrInvalidInput, "verification code expired")
	// ErrMismatch indicates the supplied code differs from the pending one.
	ErrMismatch = shared.NewKindError(shared.ErrInvalidInput, "invalid verification code")
	// ErrDeliveryFailure indicates a code could not be handed to the notifier.
	ErrDeliveryFailure = errors.New("auth: code delivery failed")
	// ErrInvalidPurpose is returned for unknown OTP purposes.
	ErrInvalidPurpose = shared.NewKindError(shared.ErrInvalidInput, "unknown verification purpose")

	// ErrInvalidOrExpired covers both unknown and stale reset tokens.
	ErrInvalidOrExpired = shared.NewKindError(shared.ErrInvalidInput, "invalid or expired token")
	// ErrWeakPassword indicates the new password is below the minimum length.
	ErrWeakPassword = shared.NewKindError(shared.ErrInvalidInput, "password must be at least 6 characters")

	// ErrInvalidCredentials is deliberately vague about which check failed.
	ErrInvalidCredentials = shared.NewKindError(shared.ErrInvalidInput, "invalid email or password")
	// ErrAccountInactive indicates the account may not authenticate.
	ErrAccountInactive = shared.NewKindError(shared.ErrForbidden, "account is inactive")
	// ErrNoSession indicates the session reference is absent or unbound.
	ErrNoSession = shared.NewKindError(shared.ErrUnauthenticated, "unauthorized")

	// ErrNoPendingLogin indicates login verification without a prior password step.
	ErrNoPendingLogin = shared.NewKindError(shared.ErrInvalidInput, "no login in progress")
)
