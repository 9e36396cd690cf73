package policy

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

func TestMemoryStoreIdempotentAdd(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	added, err := store.AddPermissionGrant(ctx, PermissionGrant{Subject: "alice", Domain: "d1", Object: "doc", Action: "read"})
	require.NoError(t, err)
	assert.True(t, added)

	added, err = store.AddPermissionGrant(ctx, PermissionGrant{Subject: "alice", Domain: "d1", Object: "doc", Action: "read"})
	require.NoError(t, err)
	assert.False(t, added, "duplicate insert must be a no-op success")

	grants, err := store.PermissionGrants(ctx, GrantFilter{Subject: Eq("alice")})
	require.NoError(t, err)
	assert.Len(t, grants, 1)
}

func TestMemoryStoreRemoveAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	err := store.RemovePermissionGrant(ctx, PermissionGrant{Subject: "alice", Domain: "d1", Object: "doc", Action: "read"})
	assert.ErrorIs(t, err, shared.ErrNotFound)

	err = store.RemoveRoleAssignment(ctx, RoleAssignment{User: "alice", Role: "editor", Domain: "d1"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMemoryStorePartialFilters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	seed := []PermissionGrant{
		{Subject: "alice", Domain: "d1", Object: "doc", Action: "read"},
		{Subject: "alice", Domain: "d2", Object: "doc", Action: "read"},
		{Subject: "editor", Domain: "d1", Object: "doc", Action: "write"},
	}
	for _, g := range seed {
		_, err := store.AddPermissionGrant(ctx, g)
		require.NoError(t, err)
	}

	all, err := store.PermissionGrants(ctx, GrantFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	byDomain, err := store.PermissionGrants(ctx, GrantFilter{Domain: Eq("d1")})
	require.NoError(t, err)
	assert.Len(t, byDomain, 2)

	bySubject, err := store.PermissionGrants(ctx, GrantFilter{Subject: Eq("alice"), Domain: Eq("d2")})
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
	assert.Equal(t, "d2", bySubject[0].Domain)
}

func TestMemoryStoreEmptyDomainIsAValue(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.AddRoleAssignment(ctx, RoleAssignment{User: "alice", Role: "editor", Domain: ""})
	require.NoError(t, err)
	_, err = store.AddRoleAssignment(ctx, RoleAssignment{User: "alice", Role: "editor", Domain: "d1"})
	require.NoError(t, err)

	// Filtering on the empty string selects the default domain only; a nil
	// filter matches every domain.
	defaultOnly, err := store.RoleAssignments(ctx, AssignmentFilter{User: Eq("alice"), Domain: Eq("")})
	require.NoError(t, err)
	require.Len(t, defaultOnly, 1)
	assert.Equal(t, "", defaultOnly[0].Domain)

	everywhere, err := store.RoleAssignments(ctx, AssignmentFilter{User: Eq("alice")})
	require.NoError(t, err)
	assert.Len(t, everywhere, 2)
}

func TestMemoryStoreAssignmentsAndInclusionsShareGrouping(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.AddRoleAssignment(ctx, RoleAssignment{User: "alice", Role: "editor", Domain: "d1"})
	require.NoError(t, err)
	_, err = store.AddRoleInclusion(ctx, RoleInclusion{Child: "editor", Parent: "admin", Domain: "d1"})
	require.NoError(t, err)

	edges, err := store.RoleInclusions(ctx, InclusionFilter{Domain: Eq("d1")})
	require.NoError(t, err)
	assert.Len(t, edges, 2, "inclusions view exposes every grouping tuple as an edge")
}

func TestMemoryStoreDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	_, err := store.AddRoleAssignment(ctx, RoleAssignment{User: "alice", Role: "editor", Domain: "d1"})
	require.NoError(t, err)
	_, err = store.AddRoleAssignment(ctx, RoleAssignment{User: "bob", Role: "editor", Domain: "d1"})
	require.NoError(t, err)
	_, err = store.AddPermissionGrant(ctx, PermissionGrant{Subject: "alice", Domain: "d1", Object: "doc", Action: "read"})
	require.NoError(t, err)
	_, err = store.AddPermissionGrant(ctx, PermissionGrant{Subject: "editor", Domain: "d1", Object: "doc", Action: "write"})
	require.NoError(t, err)

	require.NoError(t, store.DeleteUser(ctx, "alice"))

	assignments, err := store.RoleAssignments(ctx, AssignmentFilter{User: Eq("alice")})
	require.NoError(t, err)
	assert.Empty(t, assignments)

	grants, err := store.PermissionGrants(ctx, GrantFilter{Subject: Eq("alice")})
	require.NoError(t, err)
	assert.Empty(t, grants)

	// Unrelated tuples survive.
	remaining, err := store.PermissionGrants(ctx, GrantFilter{})
	require.NoError(t, err)
	assert.Len(t, remaining, 1)
	bobs, err := store.RoleAssignments(ctx, AssignmentFilter{User: Eq("bob")})
	require.NoError(t, err)
	assert.Len(t, bobs, 1)
}

func TestMemoryStoreConcurrentReadersAndWriters(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = store.AddPermissionGrant(ctx, PermissionGrant{Subject: "alice", Domain: "d1", Object: "doc", Action: "read"})
			_ = store.RemovePermissionGrant(ctx, PermissionGrant{Subject: "alice", Domain: "d1", Object: "doc", Action: "read"})
		}()
		go func() {
			defer wg.Done()
			_, _ = store.PermissionGrants(ctx, GrantFilter{Subject: Eq("alice")})
			_, _ = store.RoleAssignments(ctx, AssignmentFilter{})
		}()
	}
	wg.Wait()
}
