// Package rbac implements the domain-scoped authorization engine: role
// hierarchy resolution, enforcement decisions, and the management API used
// by administrators to grant and revoke access.
package rbac

import "context"

const (
	// RootUser is the reserved superuser identity. It bypasses all grant
	// checks and is always authorized; it never stores explicit grants.
	RootUser = "root"
	// Wildcard matches any value when stored in a grant's object or action
	// field. Matching is exact-string otherwise; no glob semantics.
	Wildcard = "*"
	// DefaultDomain is the domain used when a caller does not scope an
	// operation. It is a real domain value, not absence of scoping.
	DefaultDomain = ""
)

// RootSentinel is the transport-layer response for the superuser: callers
// must treat it as "all permissions", not as a literal grant tuple.
var RootSentinel = []string{Wildcard}

// Permission is a grant tuple as surfaced by the management API.
type Permission struct {
	Subject string `json:"subject"`
	Domain  string `json:"domain"`
	Object  string `json:"object"`
	Action  string `json:"action"`
}

// Directory is the identity collaborator. The engine never stores
// credentials; it only translates unknown users into not-found failures.
type Directory interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// RoleResolver computes the transitive closure of role membership for a user
// within a domain. Implementations must be cycle safe.
type RoleResolver interface {
	ImplicitRoles(ctx context.Context, user, domain string) (map[string]struct{}, error)
}
