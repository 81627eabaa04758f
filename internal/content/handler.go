package content

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gazette-cms/gazette/internal/platform/httpx"
	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
)

// Handler exposes article and edition endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	rbac      rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{logger: logger, service: service, rbac: rbacMW, validator: newValidator()}
}

// MountArticleRoutes registers /articles.
func (h *Handler) MountArticleRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.AnyAccount))
		r.Get("/", h.listArticles)
		r.Get("/{id}", h.getArticle)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.EditorAccess))
		r.Post("/", h.createArticle)
		r.Put("/{id}", h.updateArticle)
		r.Delete("/{id}", h.deleteArticle)
	})
}

// MountEditionRoutes registers /editions.
func (h *Handler) MountEditionRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.AnyAccount))
		r.Get("/", h.listEditions)
		r.Get("/{id}", h.getEdition)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.PublisherAccess))
		r.Post("/", h.createEdition)
		r.Put("/{id}", h.updateEdition)
		r.Delete("/{id}", h.deleteEdition)
	})
}

type articleList struct {
	Articles   []Article         `json:"articles"`
	Pagination shared.Pagination `json:"pagination"`
}

type editionList struct {
	Editions   []Edition         `json:"editions"`
	Pagination shared.Pagination `json:"pagination"`
}

func (h *Handler) listArticles(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r)
	filters := ArticleFilters{Search: r.URL.Query().Get("q"), Page: page.Page, Limit: page.PerPage}
	if raw := r.URL.Query().Get("edition_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.ValidationProblem(w, map[string]string{"edition_id": "numeric"})
			return
		}
		filters.EditionID = id
	}
	articles, meta, err := h.service.ListArticles(r.Context(), filters)
	if err != nil {
		h.fail(w, "list articles", err)
		return
	}
	if articles == nil {
		articles = []Article{}
	}
	httpx.JSON(w, http.StatusOK, articleList{Articles: articles, Pagination: meta})
}

func (h *Handler) getArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	a, err := h.service.GetArticle(r.Context(), id)
	if err != nil {
		h.fail(w, "get article", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) createArticle(w http.ResponseWriter, r *http.Request) {
	var in ArticleInput
	if !httpx.Bind(w, r, h.validator, &in) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	a, err := h.service.CreateArticle(r.Context(), *actor, in)
	if err != nil {
		h.fail(w, "create article", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) updateArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in ArticleInput
	if !httpx.Bind(w, r, h.validator, &in) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	a, err := h.service.UpdateArticle(r.Context(), *actor, id, in)
	if err != nil {
		h.fail(w, "update article", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) deleteArticle(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.DeleteArticle(r.Context(), *actor, id); err != nil {
		h.fail(w, "delete article", err)
		return
	}
	httpx.NoContent(w)
}

func (h *Handler) listEditions(w http.ResponseWriter, r *http.Request) {
	page := shared.PageFromRequest(r)
	editions, meta, err := h.service.ListEditions(r.Context(), ListFilters{Page: page.Page, Limit: page.PerPage})
	if err != nil {
		h.fail(w, "list editions", err)
		return
	}
	if editions == nil {
		editions = []Edition{}
	}
	httpx.JSON(w, http.StatusOK, editionList{Editions: editions, Pagination: meta})
}

func (h *Handler) getEdition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	e, err := h.service.GetEdition(r.Context(), id)
	if err != nil {
		h.fail(w, "get edition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) createEdition(w http.ResponseWriter, r *http.Request) {
	var in EditionInput
	if !httpx.Bind(w, r, h.validator, &in) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	e, err := h.service.CreateEdition(r.Context(), *actor, in)
	if err != nil {
		h.fail(w, "create edition", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, e)
}

func (h *Handler) updateEdition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	var in EditionInput
	if !httpx.Bind(w, r, h.validator, &in) {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	e, err := h.service.UpdateEdition(r.Context(), *actor, id, in)
	if err != nil {
		h.fail(w, "update edition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, e)
}

func (h *Handler) deleteEdition(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	actor, _ := rbac.PrincipalFromContext(r.Context())
	if err := h.service.DeleteEdition(r.Context(), *actor, id); err != nil {
		h.fail(w, "delete edition", err)
		return
	}
	httpx.NoContent(w)
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
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
