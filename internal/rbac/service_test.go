package rbac

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarflybot/curly-octo-memory/internal/policy"
	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

type staticDirectory map[string]bool

func (d staticDirectory) Exists(ctx context.Context, username string) (bool, error) {
	return d[username], nil
}

func newTestService(t *testing.T, store policy.Store, directory Directory) *Service {
	t.Helper()
	resolver := NewResolver(store)
	enforcer := NewEnforcer(store, resolver, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(store, directory, resolver, enforcer, nil, nil, logger)
}

func TestServiceUnknownUser(t *testing.T) {
	svc := newTestService(t, policy.NewMemoryStore(), staticDirectory{})
	ctx := context.Background()

	_, err := svc.AssignedRoles(ctx, "nobody")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.UserPermissions(ctx, "nobody", nil, nil)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	_, err = svc.GrantPermission(ctx, "nobody", "", "read", "reports")
	assert.ErrorIs(t, err, shared.ErrNotFound)

	err = svc.RevokePermission(ctx, "nobody", "", "read", "reports")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceGrantAndQuery(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	added, err := svc.GrantPermission(ctx, "alice", "tenant-a", "read", "reports")
	require.NoError(t, err)
	assert.True(t, added)

	added, err = svc.GrantPermission(ctx, "alice", "tenant-a", "read", "reports")
	require.NoError(t, err)
	assert.False(t, added, "repeated grant is idempotent")

	perms, err := svc.UserPermissions(ctx, "alice", nil, nil)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, Permission{Subject: "alice", Domain: "tenant-a", Object: "reports", Action: "read"}, perms[0])
}

func TestServiceGrantForRootStoresNothing(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{RootUser: true})
	ctx := context.Background()

	added, err := svc.GrantPermission(ctx, RootUser, "", "read", "reports")
	require.NoError(t, err)
	assert.True(t, added)

	grants, err := store.PermissionGrants(ctx, policy.GrantFilter{})
	require.NoError(t, err)
	assert.Empty(t, grants, "superuser never gets explicit tuples")
}

func TestServiceRevokePrecondition(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	err := svc.RevokePermission(ctx, "alice", "", "read", "reports")
	assert.ErrorIs(t, err, shared.ErrDenied, "revoking a permission not held is a business error")
}

func TestServiceRevokeRemovesAccess(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	_, err := svc.GrantPermission(ctx, "alice", "", "read", "reports")
	require.NoError(t, err)

	ok, err := svc.Enforcer().IsAuthorized(ctx, "alice", "", "reports", "read")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, svc.RevokePermission(ctx, "alice", "", "read", "reports"))

	ok, err = svc.Enforcer().IsAuthorized(ctx, "alice", "", "reports", "read")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestServiceRevokeRoleHeldPermission(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"bob": true})
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, "bob", "editor", "")
	require.NoError(t, err)
	_, err = store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "editor", Domain: "", Object: "articles", Action: "write"})
	require.NoError(t, err)

	// The precondition passes via the role, there is no direct tuple to
	// delete, and the grant survives.
	require.NoError(t, svc.RevokePermission(ctx, "bob", "", "write", "articles"))

	ok, err := svc.Enforcer().IsAuthorized(ctx, "bob", "", "articles", "write")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestServiceHasPermission(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	_, err := svc.GrantPermission(ctx, "alice", "tenant-a", "read", "reports")
	require.NoError(t, err)

	perms, err := svc.HasPermission(ctx, "alice", "tenant-a", "read", "reports")
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "reports", perms[0].Object)

	_, err = svc.HasPermission(ctx, "alice", "tenant-a", "delete", "reports")
	assert.ErrorIs(t, err, shared.ErrDenied)
}

func TestServiceUserPermissionsDomainScoping(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	// Role chain in tenant-a only; direct grant in tenant-b.
	_, err := svc.AssignRole(ctx, "alice", "editor", "tenant-a")
	require.NoError(t, err)
	_, err = store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "editor", Domain: "tenant-a", Object: "articles", Action: "write"})
	require.NoError(t, err)
	_, err = store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "editor", Domain: "tenant-b", Object: "articles", Action: "delete"})
	require.NoError(t, err)
	_, err = svc.GrantPermission(ctx, "alice", "tenant-b", "read", "reports")
	require.NoError(t, err)

	perms, err := svc.UserPermissions(ctx, "alice", nil, nil)
	require.NoError(t, err)
	require.Len(t, perms, 2)
	assert.Equal(t, Permission{Subject: "editor", Domain: "tenant-a", Object: "articles", Action: "write"}, perms[0])
	assert.Equal(t, Permission{Subject: "alice", Domain: "tenant-b", Object: "reports", Action: "read"}, perms[1])

	perms, err = svc.UserPermissions(ctx, "alice", policy.Eq("tenant-b"), nil)
	require.NoError(t, err)
	require.Len(t, perms, 1)
	assert.Equal(t, "reports", perms[0].Object)
}

func TestServiceResourcesForUser(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	_, err := svc.GrantPermission(ctx, "alice", "tenant-a", "read", "reports")
	require.NoError(t, err)
	_, err = svc.GrantPermission(ctx, "alice", "tenant-a", "write", "drafts")
	require.NoError(t, err)

	// The action argument is accepted but never narrows the listing.
	perms, err := svc.ResourcesForUser(ctx, "alice", "tenant-a", "read")
	require.NoError(t, err)
	assert.Len(t, perms, 2)

	perms, err = svc.ResourcesForUser(ctx, "alice", "tenant-b", "read")
	require.NoError(t, err)
	assert.Empty(t, perms)
}

func TestServiceAssignedRolesSorted(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, "alice", "zeta", DefaultDomain)
	require.NoError(t, err)
	_, err = svc.AssignRole(ctx, "alice", "alpha", DefaultDomain)
	require.NoError(t, err)
	_, err = svc.AddRoleInclusion(ctx, "alpha", "mid", DefaultDomain)
	require.NoError(t, err)

	roles, err := svc.AssignedRoles(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, roles)
}

func TestServiceUnassignRole(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true})
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, "alice", "editor", "")
	require.NoError(t, err)
	require.NoError(t, svc.UnassignRole(ctx, "alice", "editor", ""))

	err = svc.UnassignRole(ctx, "alice", "editor", "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestServiceRoles(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{})
	ctx := context.Background()

	_, err := svc.AddRoleInclusion(ctx, "editor", "viewer", "")
	require.NoError(t, err)
	_, err = svc.AddRoleInclusion(ctx, "admin", "editor", "")
	require.NoError(t, err)

	roles, err := svc.Roles(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"editor", "viewer"}, roles)
}

func TestServiceDeleteUserCascade(t *testing.T) {
	store := policy.NewMemoryStore()
	svc := newTestService(t, store, staticDirectory{"alice": true, "bob": true})
	ctx := context.Background()

	_, err := svc.AssignRole(ctx, "alice", "editor", "tenant-a")
	require.NoError(t, err)
	_, err = svc.GrantPermission(ctx, "alice", "tenant-a", "read", "reports")
	require.NoError(t, err)
	_, err = svc.GrantPermission(ctx, "bob", "tenant-a", "read", "reports")
	require.NoError(t, err)

	require.NoError(t, svc.DeleteUser(ctx, "alice"))

	assignments, err := store.RoleAssignments(ctx, policy.AssignmentFilter{User: policy.Eq("alice")})
	require.NoError(t, err)
	assert.Empty(t, assignments)

	grants, err := store.PermissionGrants(ctx, policy.GrantFilter{Subject: policy.Eq("alice")})
	require.NoError(t, err)
	assert.Empty(t, grants)

	grants, err = store.PermissionGrants(ctx, policy.GrantFilter{Subject: policy.Eq("bob")})
	require.NoError(t, err)
	assert.Len(t, grants, 1, "other users' tuples survive the cascade")
}
