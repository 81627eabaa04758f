package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gazette-cms/gazette/internal/auth"
	"github.com/gazette-cms/gazette/internal/content"
	"github.com/gazette-cms/gazette/internal/observability"
	"github.com/gazette-cms/gazette/internal/platform/httpx"
	"github.com/gazette-cms/gazette/internal/rbac"
	"github.com/gazette-cms/gazette/internal/shared"
	"github.com/gazette-cms/gazette/internal/users"
	"github.com/gazette-cms/gazette/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	UsersHandler   *users.Handler
	ContentHandler *content.Handler
	JobHandler     *jobs.Handler
	RBACMiddleware rbac.Middleware
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with Gazette defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no such route")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authLimit := 10
	if params.Config != nil && params.Config.AuthRateLimitPerMinute > 0 {
		authLimit = params.Config.AuthRateLimitPerMinute
	}
	r.Route("/auth", func(r chi.Router) {
		r.Use(RateLimit(authLimit))
		params.AuthHandler.MountRoutes(r)
	})
	if params.UsersHandler != nil {
		r.Route("/admin/users", params.UsersHandler.MountRoutes)
	}
	if params.ContentHandler != nil {
		r.Route("/articles", params.ContentHandler.MountArticleRoutes)
		r.Route("/editions", params.ContentHandler.MountEditionRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", func(r chi.Router) {
			r.Use(params.RBACMiddleware.Require(rbac.AdminAccess))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil && (params.Config == nil || params.Config.MetricsEnabled) {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
