package policy

import "context"

// Store is the persistence contract for policy tuples. Adds are idempotent:
// inserting an existing tuple is a no-op success reporting false. Removes of
// absent tuples fail with shared.ErrNotFound. Mutations are atomic with
// respect to each other; readers observe some consistent prior state, never
// a half-applied multi-tuple mutation.
type Store interface {
	AddRoleAssignment(ctx context.Context, a RoleAssignment) (bool, error)
	RemoveRoleAssignment(ctx context.Context, a RoleAssignment) error
	AddRoleInclusion(ctx context.Context, i RoleInclusion) (bool, error)
	RemoveRoleInclusion(ctx context.Context, i RoleInclusion) error
	AddPermissionGrant(ctx context.Context, g PermissionGrant) (bool, error)
	RemovePermissionGrant(ctx context.Context, g PermissionGrant) error

	RoleAssignments(ctx context.Context, f AssignmentFilter) ([]RoleAssignment, error)
	RoleInclusions(ctx context.Context, f InclusionFilter) ([]RoleInclusion, error)
	PermissionGrants(ctx context.Context, f GrantFilter) ([]PermissionGrant, error)

	// DeleteUser removes every tuple referencing username, both as the
	// holder of a role assignment and as the subject of a permission grant,
	// as a single atomic operation.
	DeleteUser(ctx context.Context, username string) error
}
