package auth

import (
	"net/http"
	"strings"

	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

// Middleware resolves the bearer token into a principal stored in the
// request context. Requests without a valid token proceed without a
// principal; route guards decide whether that is acceptable.
func Middleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if token, ok := strings.CutPrefix(header, "Bearer "); ok {
				if claims, err := tokens.Validate(token); err == nil {
					ctx := shared.ContextWithPrincipal(r.Context(), &shared.Principal{
						ID:       claims.UserID,
						Username: claims.Username,
					})
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
