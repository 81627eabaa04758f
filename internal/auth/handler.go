package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/platform/httpx"
	"github.com/gazette-cms/gazette/internal/shared"
)

// Handler exposes the authentication flows as JSON endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:    logger,
		service:   service,
		csrf:      csrf,
		validator: httpx.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/csrf", h.handleCSRF)
	r.Post("/register", h.handleRegister)
	r.Post("/register/verify", h.handleRegisterVerify)
	r.Post("/login", h.handleLogin)
	r.Post("/login/verify", h.handleLoginVerify)
	r.Post("/otp/resend", h.handleResend)
	r.Post("/logout", h.handleLogout)
	r.Get("/me", h.handleMe)
	r.Post("/password/forgot", h.handleForgot)
	r.Post("/password/reset/verify", h.handleResetVerify)
	r.Post("/password/reset", h.handleReset)
	r.Post("/password/change", h.handleChange)
}

type registerRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required,max=120"`
}

type codeRequest struct {
	Email string `json:"email" validate:"required,email"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginVerifyRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

type resendRequest struct {
	Purpose string `json:"purpose" validate:"required,oneof=login register"`
	Email   string `json:"email" validate:"omitempty,email"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,hexadecimal"`
}

type resetRequest struct {
	Token    string `json:"token" validate:"required,hexadecimal"`
	Password string `json:"password" validate:"required"`
}

type changeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

type sessionResponse struct {
	User      accounts.Identity `json:"user"`
	CSRFToken string            `json:"csrf_token"`
}

type loginResponse struct {
	OTPRequired bool               `json:"otp_required"`
	User        *accounts.Identity `json:"user,omitempty"`
	CSRFToken   string             `json:"csrf_token,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func sessionMeta(r *http.Request) SessionMeta {
	return SessionMeta{IP: r.RemoteAddr, UserAgent: r.UserAgent()}
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	token, err := h.csrf.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	if err != nil {
		h.fail(w, "csrf token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"csrf_token": token})
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	identity, err := h.service.Register(r.Context(), RegisterInput{Email: req.Email, Password: req.Password, Name: req.Name})
	if err != nil {
		h.fail(w, "register", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, map[string]any{
		"user":    identity,
		"message": "verification code sent",
	})
}

func (h *Handler) handleRegisterVerify(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	identity, err := h.service.CompleteRegistration(r.Context(), sess, req.Email, req.Code, sessionMeta(r))
	if err != nil {
		h.fail(w, "register verify", err)
		return
	}
	h.respondSession(w, r, sess, identity)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	result, err := h.service.BeginLogin(r.Context(), sess, req.Email, req.Password, sessionMeta(r))
	if err != nil {
		h.fail(w, "login", err)
		return
	}
	if result.OTPRequired {
		httpx.JSON(w, http.StatusAccepted, loginResponse{OTPRequired: true})
		return
	}
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.fail(w, "csrf token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{User: &result.Identity, CSRFToken: token})
}

func (h *Handler) handleLoginVerify(w http.ResponseWriter, r *http.Request) {
	var req loginVerifyRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	sess := shared.SessionFromContext(r.Context())
	identity, err := h.service.CompleteLogin(r.Context(), sess, req.Code, sessionMeta(r))
	if err != nil {
		h.fail(w, "login verify", err)
		return
	}
	h.respondSession(w, r, sess, identity)
}

func (h *Handler) handleResend(w http.ResponseWriter, r *http.Request) {
	var req resendRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	purpose := Purpose(req.Purpose)
	if purpose == PurposeRegister && req.Email == "" {
		httpx.ValidationProblem(w, map[string]string{"email": "required"})
		return
	}
	if err := h.service.ResendCode(r.Context(), shared.SessionFromContext(r.Context()), req.Email, purpose); err != nil {
		h.fail(w, "otp resend", err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "if the address awaits verification, a code has been sent"})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	h.service.Logout(r.Context(), shared.SessionFromContext(r.Context()))
	httpx.NoContent(w)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	identity, err := h.service.Me(r.Context(), shared.SessionFromContext(r.Context()))
	if err != nil {
		h.fail(w, "me", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": identity})
}

// handleForgot answers identically whether or not the address is known.
func (h *Handler) handleForgot(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	h.service.RequestReset(r.Context(), req.Email)
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "if the address is registered, a reset link has been sent"})
}

func (h *Handler) handleResetVerify(w http.ResponseWriter, r *http.Request) {
	var req tokenRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	identity, err := h.service.VerifyResetToken(r.Context(), req.Token)
	if err != nil {
		h.fail(w, "reset verify", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"email": identity.Email})
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	if err := h.service.ResetPassword(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, "reset", err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *Handler) handleChange(w http.ResponseWriter, r *http.Request) {
	var req changeRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	err := h.service.ChangePassword(r.Context(), shared.SessionFromContext(r.Context()), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.fail(w, "password change", err)
		return
	}
	httpx.JSON(w, http.StatusOK, messageResponse{Message: "password updated"})
}

func (h *Handler) respondSession(w http.ResponseWriter, r *http.Request, sess *shared.Session, identity accounts.Identity) {
	token, err := h.csrf.EnsureToken(r.Context(), sess)
	if err != nil {
		h.fail(w, "csrf token", err)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse{User: identity, CSRFToken: token})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	} else {
		h.logger.Debug(op+" rejected", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
