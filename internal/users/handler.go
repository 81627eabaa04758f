package users

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gazette-cms/gazette/internal/accounts"
	"github.com/gazette-cms/gazette/internal/platform/httpx"
	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
)

// Handler manages user administration endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: httpx.NewValidator()}
}

// MountRoutes registers user routes. Every route requires admin access.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.AdminAccess))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
		r.Get("/{id}", h.getUser)
		r.Patch("/{id}", h.updateUser)
		r.Delete("/{id}", h.deleteUser)
	})
}

type createRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required,max=120"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=CUSTOMER EDITOR PUBLISHER ADMIN SUPER_ADMIN"`
	Inactive bool   `json:"inactive"`
}

type subscriptionRequest struct {
	Type    string     `json:"type" validate:"omitempty,max=40"`
	StartAt *time.Time `json:"start_at"`
	EndAt   *time.Time `json:"end_at"`
}

type updateRequest struct {
	Name         *string              `json:"name" validate:"omitempty,min=1,max=120"`
	Role         *string              `json:"role" validate:"omitempty,oneof=CUSTOMER EDITOR PUBLISHER ADMIN SUPER_ADMIN"`
	IsActive     *bool                `json:"is_active"`
	Subscription *subscriptionRequest `json:"subscription"`
}

type listResponse struct {
	Users      []User            `json:"users"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, page, err := h.service.List(r.Context(), shared.PageFromRequest(r))
	if err != nil {
		h.fail(w, "list users", err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse{Users: users, Pagination: page})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	user, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.Provision(r.Context(), *actor, ProvisionInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     accounts.Role(req.Role),
		Inactive: req.Inactive,
	})
	if err != nil {
		h.fail(w, "provision user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, user)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req updateRequest
	if !httpx.Bind(w, r, h.validator, &req) {
		return
	}
	in := UpdateInput{Name: req.Name, IsActive: req.IsActive}
	if req.Role != nil {
		role := accounts.Role(*req.Role)
		in.Role = &role
	}
	if req.Subscription != nil {
		sub := req.Subscription
		if sub.StartAt != nil && sub.EndAt != nil && sub.EndAt.Before(*sub.StartAt) {
			httpx.ValidationProblem(w, map[string]string{"subscription.end_at": "gtfield=start_at"})
			return
		}
		in.Subscription = &accounts.Subscription{
			Type:    req.Subscription.Type,
			StartAt: req.Subscription.StartAt,
			EndAt:   req.Subscription.EndAt,
		}
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	user, err := h.service.Update(r.Context(), *actor, id, in)
	if err != nil {
		h.fail(w, "update user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.Delete(r.Context(), *actor, id); err != nil {
		h.fail(w, "delete user", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
