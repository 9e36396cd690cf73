package rbac

import (
	"log/slog"
	"net/http"

	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

// Guard is the explicit access check the transport layer runs before
// dispatching a handler. It replaces per-route authorization annotations
// with a middleware built from the required action and resource.
type Guard struct {
	Enforcer *Enforcer
	Logger   *slog.Logger
}

// RequireOption customizes a Require check.
type RequireOption func(*requireConfig)

type requireConfig struct {
	ownership func(r *http.Request, p *shared.Principal) bool
}

// WithOwnership lets a request pass when the predicate reports the caller
// owns the addressed resource, without consulting the enforcer.
func WithOwnership(fn func(r *http.Request, p *shared.Principal) bool) RequireOption {
	return func(c *requireConfig) {
		c.ownership = fn
	}
}

// Require builds middleware that denies the request unless the caller is
// authorized for action on resource in the default domain. The superuser
// always passes.
func (g Guard) Require(action, resource string, opts ...RequireOption) func(http.Handler) http.Handler {
	var cfg requireConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if principal == nil {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			if principal.Username == RootUser {
				next.ServeHTTP(w, r)
				return
			}
			if cfg.ownership != nil && cfg.ownership(r, principal) {
				next.ServeHTTP(w, r)
				return
			}
			allowed, err := g.Enforcer.IsAuthorized(r.Context(), principal.Username, DefaultDomain, resource, action)
			if err != nil {
				if g.Logger != nil {
					g.Logger.Error("guard check", slog.String("resource", resource), slog.String("action", action), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
