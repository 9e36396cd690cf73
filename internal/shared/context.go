package shared

import "context"

// Principal describes the authenticated caller as established by the
// transport layer. The engine only ever needs the username; ID is carried
// for ownership checks on /users/{id} routes.
type Principal struct {
	ID       string
	Username string
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
