package rbac

import (
	"context"

	"github.com/amarflybot/curly-octo-memory/internal/policy"
)

// Resolver walks the role graph stored in the policy store.
type Resolver struct {
	store policy.Store
}

// NewResolver constructs a Resolver over the given store.
func NewResolver(store policy.Store) *Resolver {
	return &Resolver{store: store}
}

// ImplicitRoles returns every role reachable from user within domain: the
// directly assigned roles plus everything reachable over inclusion edges.
// The traversal is breadth first with a visited set, so cyclic inclusion
// input terminates with the finite closure.
func (r *Resolver) ImplicitRoles(ctx context.Context, user, domain string) (map[string]struct{}, error) {
	direct, err := r.store.RoleAssignments(ctx, policy.AssignmentFilter{
		User:   policy.Eq(user),
		Domain: policy.Eq(domain),
	})
	if err != nil {
		return nil, err
	}
	if len(direct) == 0 {
		return map[string]struct{}{}, nil
	}

	edges, err := r.store.RoleInclusions(ctx, policy.InclusionFilter{Domain: policy.Eq(domain)})
	if err != nil {
		return nil, err
	}
	parents := make(map[string][]string, len(edges))
	for _, e := range edges {
		parents[e.Child] = append(parents[e.Child], e.Parent)
	}

	closure := make(map[string]struct{}, len(direct))
	queue := make([]string, 0, len(direct))
	for _, a := range direct {
		if _, seen := closure[a.Role]; !seen {
			closure[a.Role] = struct{}{}
			queue = append(queue, a.Role)
		}
	}
	for len(queue) > 0 {
		role := queue[0]
		queue = queue[1:]
		for _, parent := range parents[role] {
			if _, seen := closure[parent]; seen {
				continue
			}
			closure[parent] = struct{}{}
			queue = append(queue, parent)
		}
	}
	return closure, nil
}

var _ RoleResolver = (*Resolver)(nil)
