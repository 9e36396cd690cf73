package policy

import (
	"context"
	"fmt"
	"sync"

	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

type gTuple struct {
	subject string
	role    string
	domain  string
}

type pTuple struct {
	subject string
	domain  string
	object  string
	action  string
}

// MemoryStore is an in-process Store guarded by a RWMutex. Writers are
// serialized; readers take the read lock and copy results out, so every
// query sees a point-in-time snapshot.
type MemoryStore struct {
	mu sync.RWMutex
	g  map[gTuple]struct{}
	p  map[pTuple]struct{}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		g: make(map[gTuple]struct{}),
		p: make(map[pTuple]struct{}),
	}
}

func (s *MemoryStore) addG(t gTuple) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.g[t]; ok {
		return false
	}
	s.g[t] = struct{}{}
	return true
}

func (s *MemoryStore) removeG(t gTuple) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.g[t]; !ok {
		return fmt.Errorf("policy: tuple (%s, %s, %s): %w", t.subject, t.role, t.domain, shared.ErrNotFound)
	}
	delete(s.g, t)
	return nil
}

// AddRoleAssignment inserts a user→role tuple.
func (s *MemoryStore) AddRoleAssignment(ctx context.Context, a RoleAssignment) (bool, error) {
	return s.addG(gTuple{subject: a.User, role: a.Role, domain: a.Domain}), nil
}

// RemoveRoleAssignment deletes a user→role tuple.
func (s *MemoryStore) RemoveRoleAssignment(ctx context.Context, a RoleAssignment) error {
	return s.removeG(gTuple{subject: a.User, role: a.Role, domain: a.Domain})
}

// AddRoleInclusion inserts a childRole→parentRole tuple.
func (s *MemoryStore) AddRoleInclusion(ctx context.Context, i RoleInclusion) (bool, error) {
	return s.addG(gTuple{subject: i.Child, role: i.Parent, domain: i.Domain}), nil
}

// RemoveRoleInclusion deletes a childRole→parentRole tuple.
func (s *MemoryStore) RemoveRoleInclusion(ctx context.Context, i RoleInclusion) error {
	return s.removeG(gTuple{subject: i.Child, role: i.Parent, domain: i.Domain})
}

// AddPermissionGrant inserts a permission tuple.
func (s *MemoryStore) AddPermissionGrant(ctx context.Context, g PermissionGrant) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := pTuple{subject: g.Subject, domain: g.Domain, object: g.Object, action: g.Action}
	if _, ok := s.p[t]; ok {
		return false, nil
	}
	s.p[t] = struct{}{}
	return true, nil
}

// RemovePermissionGrant deletes a permission tuple.
func (s *MemoryStore) RemovePermissionGrant(ctx context.Context, g PermissionGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := pTuple{subject: g.Subject, domain: g.Domain, object: g.Object, action: g.Action}
	if _, ok := s.p[t]; !ok {
		return fmt.Errorf("policy: grant (%s, %s, %s, %s): %w", g.Subject, g.Domain, g.Object, g.Action, shared.ErrNotFound)
	}
	delete(s.p, t)
	return nil
}

// RoleAssignments returns grouping tuples matching the filter.
func (s *MemoryStore) RoleAssignments(ctx context.Context, f AssignmentFilter) ([]RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RoleAssignment
	for t := range s.g {
		if matches(f.User, t.subject) && matches(f.Domain, t.domain) {
			out = append(out, RoleAssignment{User: t.subject, Role: t.role, Domain: t.domain})
		}
	}
	return out, nil
}

// RoleInclusions returns grouping tuples matching the filter, viewed as
// child→parent edges.
func (s *MemoryStore) RoleInclusions(ctx context.Context, f InclusionFilter) ([]RoleInclusion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []RoleInclusion
	for t := range s.g {
		if matches(f.Domain, t.domain) {
			out = append(out, RoleInclusion{Child: t.subject, Parent: t.role, Domain: t.domain})
		}
	}
	return out, nil
}

// PermissionGrants returns permission tuples matching the filter.
func (s *MemoryStore) PermissionGrants(ctx context.Context, f GrantFilter) ([]PermissionGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []PermissionGrant
	for t := range s.p {
		if matches(f.Subject, t.subject) && matches(f.Domain, t.domain) && matches(f.Object, t.object) && matches(f.Action, t.action) {
			out = append(out, PermissionGrant{Subject: t.subject, Domain: t.domain, Object: t.object, Action: t.action})
		}
	}
	return out, nil
}

// DeleteUser removes every tuple referencing username under a single lock
// acquisition.
func (s *MemoryStore) DeleteUser(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.g {
		if t.subject == username {
			delete(s.g, t)
		}
	}
	for t := range s.p {
		if t.subject == username {
			delete(s.p, t)
		}
	}
	return nil
}

var _ Store = (*MemoryStore)(nil)
