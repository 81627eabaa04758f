package app

import (
	"log/slog"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/auth"
	"github.com/gazette-cms/gazette/internal/content"
	"github.com/gazette-cms/gazette/internal/notify"
	"github.com/gazette-cms/gazette/internal/observability"
	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
	"github.com/gazette-cms/gazette/internal/users"
)

// Dependencies are the stateful collaborators the HTTP surface is built on.
type Dependencies struct {
	Logger      *slog.Logger
	Config      *Config
	Store       accounts.Store
	ContentRepo content.Repository
	Notifier    notify.Notifier
	Hasher      auth.Hasher
	Sessions    *shared.SessionManager
	SessionLog  auth.SessionLog
	Audit       *shared.AuditLogger
	Metrics     *observability.Metrics
}

// Handlers bundles the constructed HTTP handlers and the services behind them.
type Handlers struct {
	Auth    *auth.Handler
	Users   *users.Handler
	Content *content.Handler
	RBAC    rbac.Middleware
	CSRF    *shared.CSRFManager

	AuthService  *auth.Service
	UsersService *users.Service
}

// NewHandlers wires engines, services and handlers from deps.
func NewHandlers(deps Dependencies) *Handlers {
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	otp := auth.NewOTPEngine(deps.Store, deps.Notifier, auth.OTPConfig{
		TTL:    cfg.OTPTTL,
		Exempt: cfg.OTPExemptEmails,
	}, logger)
	reset := auth.NewResetEngine(deps.Store, deps.Notifier, deps.Hasher, auth.ResetConfig{
		TTL:     cfg.ResetTTL,
		BaseURL: cfg.AppBaseURL,
	}, logger)
	authority := auth.NewAuthority(deps.Store, deps.Hasher, deps.Sessions, deps.SessionLog, logger)

	var events auth.EventRecorder
	var denials rbac.DenialRecorder
	if deps.Metrics != nil {
		events = deps.Metrics
		denials = deps.Metrics
	}
	authService := auth.NewService(auth.ServiceDeps{
		Store:     deps.Store,
		Hasher:    deps.Hasher,
		OTP:       otp,
		Reset:     reset,
		Authority: authority,
		Events:    events,
		Logger:    logger,
	})

	var audit interface {
		users.AuditRecorder
		content.AuditRecorder
	}
	if deps.Audit != nil {
		audit = deps.Audit
	}
	rbacMW := rbac.Middleware{Logger: logger, Metrics: denials, Resolver: authority}
	csrf := shared.NewCSRFManager(cfg.CSRFSecret)

	usersService := users.NewService(deps.Store, deps.Hasher, audit, authority, logger)
	h := &Handlers{
		Auth:         auth.NewHandler(logger, authService, csrf),
		Users:        users.NewHandler(logger, usersService, rbacMW),
		RBAC:         rbacMW,
		CSRF:         csrf,
		AuthService:  authService,
		UsersService: usersService,
	}
	if deps.ContentRepo != nil {
		h.Content = content.NewHandler(logger, content.NewService(deps.ContentRepo, audit, logger), rbacMW)
	}
	return h
}
