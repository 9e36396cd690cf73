package rbac

import (
	"context"

	"github.com/amarflybot/curly-octo-memory/internal/policy"
)

// DecisionObserver receives the outcome of every enforcement decision.
// *observability.Metrics satisfies it.
type DecisionObserver interface {
	ObserveDecision(allowed bool)
}

// Enforcer answers point-in-time access decisions. It is side-effect free
// with respect to the store and safe to call concurrently with mutations:
// each call reads a consistent snapshot of assignments and grants.
type Enforcer struct {
	store    policy.Store
	resolver RoleResolver
	observer DecisionObserver
}

// NewEnforcer constructs an Enforcer. observer may be nil.
func NewEnforcer(store policy.Store, resolver RoleResolver, observer DecisionObserver) *Enforcer {
	return &Enforcer{store: store, resolver: resolver, observer: observer}
}

// IsAuthorized reports whether user may perform action on object within
// domain. The reserved superuser is always authorized regardless of stored
// grants. For everyone else the subject set is the user plus their implicit
// roles, and a grant matches when its subject is in that set and its object
// and action fields match exactly or hold the wildcard.
func (e *Enforcer) IsAuthorized(ctx context.Context, user, domain, object, action string) (bool, error) {
	if user == RootUser {
		e.observe(true)
		return true, nil
	}

	subjects := map[string]struct{}{user: {}}
	implicit, err := e.resolver.ImplicitRoles(ctx, user, domain)
	if err != nil {
		return false, err
	}
	for role := range implicit {
		subjects[role] = struct{}{}
	}

	grants, err := e.store.PermissionGrants(ctx, policy.GrantFilter{Domain: policy.Eq(domain)})
	if err != nil {
		return false, err
	}
	for _, g := range grants {
		if _, ok := subjects[g.Subject]; !ok {
			continue
		}
		if matchToken(g.Object, object) && matchToken(g.Action, action) {
			e.observe(true)
			return true, nil
		}
	}
	e.observe(false)
	return false, nil
}

func (e *Enforcer) observe(allowed bool) {
	if e.observer != nil {
		e.observer.ObserveDecision(allowed)
	}
}

// matchToken implements the single-wildcard rule: a stored "*" matches any
// requested value; everything else is compared exactly.
func matchToken(stored, requested string) bool {
	return stored == Wildcard || stored == requested
}
