package rbac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amarflybot/curly-octo-memory/internal/policy"
)

type countingObserver struct {
	allowed int
	denied  int
}

func (o *countingObserver) ObserveDecision(allowed bool) {
	if allowed {
		o.allowed++
	} else {
		o.denied++
	}
}

func newEnforcer(store policy.Store, observer DecisionObserver) *Enforcer {
	return NewEnforcer(store, NewResolver(store), observer)
}

func TestEnforcerRootAlwaysAuthorized(t *testing.T) {
	store := policy.NewMemoryStore()
	enforcer := newEnforcer(store, nil)

	ok, err := enforcer.IsAuthorized(context.Background(), RootUser, "any-domain", "anything", "delete")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnforcerDirectGrant(t *testing.T) {
	store := policy.NewMemoryStore()
	ctx := context.Background()
	_, err := store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "alice", Domain: "tenant-a", Object: "reports", Action: "read"})
	require.NoError(t, err)

	enforcer := newEnforcer(store, nil)

	ok, err := enforcer.IsAuthorized(ctx, "alice", "tenant-a", "reports", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = enforcer.IsAuthorized(ctx, "alice", "tenant-a", "reports", "write")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = enforcer.IsAuthorized(ctx, "alice", "tenant-b", "reports", "read")
	require.NoError(t, err)
	assert.False(t, ok, "grant in tenant-a must not authorize tenant-b")
}

func TestEnforcerRoleDerivedGrant(t *testing.T) {
	store := policy.NewMemoryStore()
	ctx := context.Background()
	_, err := store.AddRoleAssignment(ctx, policy.RoleAssignment{User: "bob", Role: "editor", Domain: ""})
	require.NoError(t, err)
	_, err = store.AddRoleInclusion(ctx, policy.RoleInclusion{Child: "editor", Parent: "viewer", Domain: ""})
	require.NoError(t, err)
	_, err = store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "viewer", Domain: "", Object: "articles", Action: "read"})
	require.NoError(t, err)

	enforcer := newEnforcer(store, nil)

	ok, err := enforcer.IsAuthorized(ctx, "bob", "", "articles", "read")
	require.NoError(t, err)
	assert.True(t, ok, "grant inherited through the role hierarchy")
}

func TestEnforcerWildcard(t *testing.T) {
	store := policy.NewMemoryStore()
	ctx := context.Background()
	_, err := store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "ops", Domain: "", Object: Wildcard, Action: "read"})
	require.NoError(t, err)
	_, err = store.AddRoleAssignment(ctx, policy.RoleAssignment{User: "carol", Role: "ops", Domain: ""})
	require.NoError(t, err)

	enforcer := newEnforcer(store, nil)

	ok, err := enforcer.IsAuthorized(ctx, "carol", "", "anything-at-all", "read")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = enforcer.IsAuthorized(ctx, "carol", "", "anything-at-all", "write")
	require.NoError(t, err)
	assert.False(t, ok, "wildcard object does not widen the action")
}

func TestEnforcerNoGlobSemantics(t *testing.T) {
	store := policy.NewMemoryStore()
	ctx := context.Background()
	_, err := store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "dave", Domain: "", Object: "rep*", Action: "read"})
	require.NoError(t, err)

	enforcer := newEnforcer(store, nil)

	ok, err := enforcer.IsAuthorized(ctx, "dave", "", "reports", "read")
	require.NoError(t, err)
	assert.False(t, ok, "a partial wildcard is an ordinary string")

	ok, err = enforcer.IsAuthorized(ctx, "dave", "", "rep*", "read")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEnforcerObserver(t *testing.T) {
	store := policy.NewMemoryStore()
	ctx := context.Background()
	_, err := store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: "alice", Domain: "", Object: "reports", Action: "read"})
	require.NoError(t, err)

	observer := &countingObserver{}
	enforcer := newEnforcer(store, observer)

	_, err = enforcer.IsAuthorized(ctx, "alice", "", "reports", "read")
	require.NoError(t, err)
	_, err = enforcer.IsAuthorized(ctx, "alice", "", "reports", "write")
	require.NoError(t, err)
	_, err = enforcer.IsAuthorized(ctx, RootUser, "", "reports", "write")
	require.NoError(t, err)

	assert.Equal(t, 2, observer.allowed)
	assert.Equal(t, 1, observer.denied)
}
