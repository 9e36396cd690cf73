package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/amarflybot/curly-octo-memory/internal/auth"
	"github.com/amarflybot/curly-octo-memory/internal/identity"
	"github.com/amarflybot/curly-octo-memory/internal/observability"
	"github.com/amarflybot/curly-octo-memory/internal/rbac"
	"github.com/amarflybot/curly-octo-memory/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	AuthHandler     *auth.Handler
	AuthMiddleware  func(http.Handler) http.Handler
	IdentityHandler *identity.Handler
	RBACHandler     *rbac.Handler
	JobsHandler     *jobs.Handler
	Pool            *pgxpool.Pool
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router for the authorization service. The
// identity and rbac handlers share the /users prefix: directory CRUD at the
// collection level, permission and role management under /users/{id}.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.AuthMiddleware,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/users", func(r chi.Router) {
		params.IdentityHandler.MountRoutes(r)
		params.RBACHandler.MountRoutes(r)
	})
	r.Route("/roles", params.RBACHandler.MountRoleRoutes)

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
