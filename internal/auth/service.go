package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/shared"
)

// Auth event names reported to the EventRecorder.
const (
	EventRegister       = "register"
	EventOTPRequest     = "otp_request"
	EventOTPVerify      = "otp_verify"
	EventLogin          = "login"
	EventLogout         = "logout"
	EventResetRequest   = "reset_request"
	EventResetConsume   = "reset_consume"
	EventPasswordChange = "password_change"

	outcomeSuccess = "success"
	outcomeFailure = "failure"
)

// EventRecorder counts auth events. *observability.Metrics satisfies it.
type EventRecorder interface {
	RecordAuthEvent(event, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuthEvent(string, string) {}

// Service sequences the engines into the registration, login and reset flows.
type Service struct {
	store     accounts.Store
	hasher    Hasher
	otp       *OTPEngine
	reset     *ResetEngine
	authority *Authority
	events    EventRecorder
	logger    *slog.Logger
}

// ServiceDeps groups the collaborators of Service.
type ServiceDeps struct {
	Store     accounts.Store
	Hasher    Hasher
	OTP       *OTPEngine
	Reset     *ResetEngine
	Authority *Authority
	Events    EventRecorder
	Logger    *slog.Logger
}

// NewService constructs a Service.
func NewService(deps ServiceDeps) *Service {
	events := deps.Events
	if events == nil {
		events = noopRecorder{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		store:     deps.Store,
		hasher:    deps.Hasher,
		otp:       deps.OTP,
		reset:     deps.Reset,
		authority: deps.Authority,
		events:    events,
		logger:    logger,
	}
}

func (s *Service) record(event string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = outcomeFailure
	}
	s.events.RecordAuthEvent(event, outcome)
}

// RegisterInput carries a self-registration request.
type RegisterInput struct {
	Email    string
	Password string
	Name     string
}

// Register creates an unverified CUSTOMER account and sends it a register code.
// The account survives a failed delivery; the client may resend.
func (s *Service) Register(ctx context.Context, in RegisterInput) (accounts.Identity, error) {
	identity, err := s.register(ctx, in)
	s.record(EventRegister, err)
	if err != nil {
		return accounts.Identity{}, err
	}
	err = s.otp.RequestCode(ctx, identity.Email, PurposeRegister)
	s.record(EventOTPRequest, err)
	return identity, err
}

func (s *Service) register(ctx context.Context, in RegisterInput) (accounts.Identity, error) {
	if err := CheckPasswordStrength(in.Password); err != nil {
		return accounts.Identity{}, err
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return accounts.Identity{}, fmt.Errorf("auth: hash password: %w", err)
	}
	acc, err := s.store.Create(ctx, accounts.NewAccount{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: hash,
		Role:         accounts.RoleCustomer,
		IsActive:     true,
		IsVerified:   false,
	})
	if err != nil {
		return accounts.Identity{}, err
	}
	return acc.Identity(), nil
}

// CompleteRegistration verifies the register code and signs the account in.
func (s *Service) CompleteRegistration(ctx context.Context, sess *shared.Session, email, code string, meta SessionMeta) (accounts.Identity, error) {
	identity, err := s.otp.VerifyCode(ctx, email, code)
	s.record(EventOTPVerify, err)
	if err != nil {
		return accounts.Identity{}, err
	}
	return s.authority.IssueSession(ctx, sess, identity, meta)
}

// LoginResult reports the outcome of the password step.
type LoginResult struct {
	Identity    accounts.Identity
	OTPRequired bool
}

// BeginLogin checks the password. Exempt accounts are signed in at once; all
// others receive a login code and the session remembers who is pending.
func (s *Service) BeginLogin(ctx context.Context, sess *shared.Session, email, password string, meta SessionMeta) (LoginResult, error) {
	if sess == nil {
		return LoginResult{}, ErrNoSession
	}
	identity, err := s.authority.Authenticate(ctx, email, password)
	if err != nil {
		s.record(EventLogin, err)
		return LoginResult{}, err
	}
	if s.otp.IsExempt(identity.Email) {
		identity, err = s.authority.IssueSession(ctx, sess, identity, meta)
		s.record(EventLogin, err)
		return LoginResult{Identity: identity}, err
	}
	err = s.otp.RequestCode(ctx, identity.Email, PurposeLogin)
	s.record(EventOTPRequest, err)
	if err != nil {
		return LoginResult{}, err
	}
	sess.Set(pendingLoginKey, identity.Email)
	return LoginResult{Identity: identity, OTPRequired: true}, nil
}

// CompleteLogin verifies the login code for the pending account and issues the session.
func (s *Service) CompleteLogin(ctx context.Context, sess *shared.Session, code string, meta SessionMeta) (accounts.Identity, error) {
	if sess == nil || sess.Get(pendingLoginKey) == "" {
		return accounts.Identity{}, ErrNoPendingLogin
	}
	identity, err := s.otp.VerifyCode(ctx, sess.Get(pendingLoginKey), code)
	s.record(EventOTPVerify, err)
	if err != nil {
		return accounts.Identity{}, err
	}
	identity, err = s.authority.IssueSession(ctx, sess, identity, meta)
	s.record(EventLogin, err)
	return identity, err
}

// ResendCode issues a fresh code. Login codes go only to the account pending
// on this session. Register codes go only to unverified accounts; unknown and
// already verified addresses succeed without a delivery so the answer does
// not reveal which addresses are registered.
func (s *Service) ResendCode(ctx context.Context, sess *shared.Session, email string, purpose Purpose) error {
	switch purpose {
	case PurposeLogin:
		if sess == nil || sess.Get(pendingLoginKey) == "" {
			return ErrNoPendingLogin
		}
		email = sess.Get(pendingLoginKey)
	case PurposeRegister:
		acc, err := s.store.FindByEmail(ctx, email)
		if errors.Is(err, accounts.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if acc.IsVerified {
			return nil
		}
	default:
		return ErrInvalidPurpose
	}
	err := s.otp.RequestCode(ctx, email, purpose)
	s.record(EventOTPRequest, err)
	return err
}

// Logout revokes the session.
func (s *Service) Logout(ctx context.Context, sess *shared.Session) {
	s.authority.RevokeSession(ctx, sess)
	s.record(EventLogout, nil)
}

// Me returns the identity bound to sess.
func (s *Service) Me(ctx context.Context, sess *shared.Session) (accounts.Identity, error) {
	acc, err := s.authority.CurrentAccount(ctx, sess)
	if err != nil {
		return accounts.Identity{}, err
	}
	return acc.Identity(), nil
}

// RequestReset always succeeds from the caller's point of view.
func (s *Service) RequestReset(ctx context.Context, email string) {
	s.reset.RequestReset(ctx, email)
	s.record(EventResetRequest, nil)
}

// VerifyResetToken reports the account bound to token.
func (s *Service) VerifyResetToken(ctx context.Context, token string) (accounts.Identity, error) {
	return s.reset.VerifyToken(ctx, token)
}

// ResetPassword consumes token and sets the new password.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) error {
	err := s.reset.ConsumeToken(ctx, token, newPassword)
	s.record(EventResetConsume, err)
	return err
}

// ChangePassword replaces the credential of the signed-in account after
// re-checking the current password. Any pending reset token is dropped.
func (s *Service) ChangePassword(ctx context.Context, sess *shared.Session, current, next string) error {
	err := s.changePassword(ctx, sess, current, next)
	s.record(EventPasswordChange, err)
	return err
}

func (s *Service) changePassword(ctx context.Context, sess *shared.Session, current, next string) error {
	acc, err := s.authority.CurrentAccount(ctx, sess)
	if err != nil {
		return err
	}
	if acc.PasswordHash == "" || s.hasher.Compare(acc.PasswordHash, current) != nil {
		return ErrInvalidCredentials
	}
	if err := CheckPasswordStrength(next); err != nil {
		return err
	}
	hash, err := s.hasher.Hash(next)
	if err != nil {
		return fmt.Errorf("auth: hash password: %w", err)
	}
	_, err = s.store.Update(ctx, acc.ID, accounts.Patch{PasswordHash: &hash, ClearReset: true})
	return err
}
