// Package policy provides durable, domain-scoped tuple storage for the
// authorization engine: role-assignment facts and permission-grant facts.
package policy

// Storage shape shared by all backends. Role assignments and role inclusions
// both persist under the "g" ptype: v0 holds a username or a child role, so
// a single tuple kind covers "user has role" and "role includes role". The
// distinction lives in the caller's intent, not the storage.
const (
	PtypeGrouping   = "g"
	PtypePermission = "p"
)

// RoleAssignment states that within Domain, User holds Role.
type RoleAssignment struct {
	User   string
	Role   string
	Domain string
}

// RoleInclusion states that within Domain, anyone holding Child implicitly
// holds Parent. Inclusions may form cycles in malformed input; resolution is
// the resolver's problem, storage accepts them.
type RoleInclusion struct {
	Child  string
	Parent string
	Domain string
}

// PermissionGrant states that Subject (a username or role name) may perform
// Action on Object within Domain. Object and action are opaque tokens; the
// reserved wildcard "*" is matched by the enforcer, not here.
type PermissionGrant struct {
	Subject string
	Domain  string
	Object  string
	Action  string
}

// AssignmentFilter selects role assignments by partial key. Nil fields match
// any value; an empty string is a real value (the default domain), not a
// wildcard.
type AssignmentFilter struct {
	User   *string
	Domain *string
}

// InclusionFilter selects role inclusions by partial key.
type InclusionFilter struct {
	Domain *string
}

// GrantFilter selects permission grants by partial key.
type GrantFilter struct {
	Subject *string
	Domain  *string
	Object  *string
	Action  *string
}

// Eq returns a pointer suitable for filter fields.
func Eq(s string) *string {
	return &s
}

func matches(filter *string, value string) bool {
	return filter == nil || *filter == value
}
