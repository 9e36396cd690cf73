package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/amarflybot/curly-octo-memory/internal/audit"
	"github.com/amarflybot/curly-octo-memory/internal/policy"
	"github.com/amarflybot/curly-octo-memory/internal/shared"
)

// Service is the management API: the operations administrators and services
// use to mutate and query the policy store. Reads run fully in parallel;
// writes serialize in the store.
type Service struct {
	store     policy.Store
	directory Directory
	resolver  RoleResolver
	enforcer  *Enforcer
	cache     *ClosureCache
	audit     *audit.Recorder
	logger    *slog.Logger
}

// NewService constructs the management service. cache and recorder may be
// nil; resolver should be the cached resolver when a cache is supplied so
// reads and invalidation agree.
func NewService(store policy.Store, directory Directory, resolver RoleResolver, enforcer *Enforcer, cache *ClosureCache, recorder *audit.Recorder, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		directory: directory,
		resolver:  resolver,
		enforcer:  enforcer,
		cache:     cache,
		audit:     recorder,
		logger:    logger,
	}
}

// Enforcer exposes the decision procedure for transport guards.
func (s *Service) Enforcer() *Enforcer {
	return s.enforcer
}

func (s *Service) ensureExists(ctx context.Context, username string) error {
	ok, err := s.directory.Exists(ctx, username)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("user %s: %w", username, shared.ErrNotFound)
	}
	return nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Bump(ctx); err != nil && s.logger != nil {
		s.logger.Warn("closure cache bump", slog.Any("error", err))
	}
}

func (s *Service) record(ctx context.Context, action, subject, domain, object, verb string) {
	actor := "system"
	if p := shared.PrincipalFromContext(ctx); p != nil {
		actor = p.Username
	}
	s.audit.Record(ctx, audit.Event{
		Actor:   actor,
		Action:  action,
		Subject: subject,
		Domain:  domain,
		Object:  object,
		Verb:    verb,
	})
}

// AssignedRoles returns the user's implicit roles in the default domain,
// sorted for a stable response. Fails with shared.ErrNotFound for unknown
// users.
func (s *Service) AssignedRoles(ctx context.Context, username string) ([]string, error) {
	if err := s.ensureExists(ctx, username); err != nil {
		return nil, err
	}
	closure, err := s.resolver.ImplicitRoles(ctx, username, DefaultDomain)
	if err != nil {
		return nil, err
	}
	roles := make([]string, 0, len(closure))
	for role := range closure {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// UserPermissions returns every grant reachable through the user's implicit
// role set, optionally narrowed by domain and object. When no domain is
// given, role-derived grants are collected per domain the user holds roles
// in, and direct grants from every domain are included; a grant from one
// domain never authorizes another.
//
// The superuser is handled at the transport layer with RootSentinel; this
// method enumerates stored grants only.
func (s *Service) UserPermissions(ctx context.Context, username string, domain, object *string) ([]Permission, error) {
	if err := s.ensureExists(ctx, username); err != nil {
		return nil, err
	}

	seen := make(map[Permission]struct{})
	var out []Permission
	collect := func(grants []policy.PermissionGrant) {
		for _, g := range grants {
			p := Permission{Subject: g.Subject, Domain: g.Domain, Object: g.Object, Action: g.Action}
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	// Direct grants.
	direct, err := s.store.PermissionGrants(ctx, policy.GrantFilter{Subject: policy.Eq(username), Domain: domain, Object: object})
	if err != nil {
		return nil, err
	}
	collect(direct)

	// Role-derived grants, resolved per domain.
	domains, err := s.assignmentDomains(ctx, username, domain)
	if err != nil {
		return nil, err
	}
	for _, d := range domains {
		closure, err := s.resolver.ImplicitRoles(ctx, username, d)
		if err != nil {
			return nil, err
		}
		for role := range closure {
			grants, err := s.store.PermissionGrants(ctx, policy.GrantFilter{Subject: policy.Eq(role), Domain: policy.Eq(d), Object: object})
			if err != nil {
				return nil, err
			}
			collect(grants)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Domain != out[j].Domain {
			return out[i].Domain < out[j].Domain
		}
		if out[i].Subject != out[j].Subject {
			return out[i].Subject < out[j].Subject
		}
		if out[i].Object != out[j].Object {
			return out[i].Object < out[j].Object
		}
		return out[i].Action < out[j].Action
	})
	return out, nil
}

func (s *Service) assignmentDomains(ctx context.Context, username string, domain *string) ([]string, error) {
	if domain != nil {
		return []string{*domain}, nil
	}
	assignments, err := s.store.RoleAssignments(ctx, policy.AssignmentFilter{User: policy.Eq(username)})
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(assignments))
	for _, a := range assignments {
		set[a.Domain] = struct{}{}
	}
	domains := make([]string, 0, len(set))
	for d := range set {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains, nil
}

// GrantPermission inserts a permission grant for the user, reporting whether
// it was newly added. Granting on behalf of the superuser short-circuits to
// true without storing a tuple: root has everything and nothing may ever be
// revoked from it.
func (s *Service) GrantPermission(ctx context.Context, username, domain, action, object string) (bool, error) {
	if err := s.ensureExists(ctx, username); err != nil {
		return false, err
	}
	if username == RootUser {
		return true, nil
	}
	added, err := s.store.AddPermissionGrant(ctx, policy.PermissionGrant{Subject: username, Domain: domain, Object: object, Action: action})
	if err != nil {
		return false, err
	}
	if added {
		s.invalidate(ctx)
		s.record(ctx, audit.ActionGrant, username, domain, object, action)
	}
	return added, nil
}

// RevokePermission removes the user's direct grant. The precondition is
// checked through the enforcer, so a permission held only via a role still
// satisfies it; in that case there is no direct tuple to delete and the
// revoke is a no-op success.
func (s *Service) RevokePermission(ctx context.Context, username, domain, action, object string) error {
	if err := s.ensureExists(ctx, username); err != nil {
		return err
	}
	held, err := s.enforcer.IsAuthorized(ctx, username, domain, object, action)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("permission %s on %s:%s not held by %s: %w", action, domain, object, username, shared.ErrDenied)
	}
	err = s.store.RemovePermissionGrant(ctx, policy.PermissionGrant{Subject: username, Domain: domain, Object: object, Action: action})
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, audit.ActionRevoke, username, domain, object, action)
	return nil
}

// HasPermission fails unless the user is authorized for the given action and
// object, then returns the matching grant set. "Has permission" is thus
// expressed as a list, not a boolean.
func (s *Service) HasPermission(ctx context.Context, username, domain, action, object string) ([]Permission, error) {
	if err := s.ensureExists(ctx, username); err != nil {
		return nil, err
	}
	ok, err := s.enforcer.IsAuthorized(ctx, username, domain, object, action)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("permission %s on %s:%s not assigned to %s: %w", action, domain, object, username, shared.ErrDenied)
	}
	return s.UserPermissions(ctx, username, policy.Eq(domain), policy.Eq(object))
}

// ResourcesForUser returns all implicit permissions for the user within the
// domain. The action parameter is part of the accepted request shape but
// does not narrow the result; the domain-scoped list is the contract.
func (s *Service) ResourcesForUser(ctx context.Context, username, domain, action string) ([]Permission, error) {
	_ = action
	if err := s.ensureExists(ctx, username); err != nil {
		return nil, err
	}
	return s.UserPermissions(ctx, username, policy.Eq(domain), nil)
}

// AssignRole gives the user a role within the domain.
func (s *Service) AssignRole(ctx context.Context, username, role, domain string) (bool, error) {
	if err := s.ensureExists(ctx, username); err != nil {
		return false, err
	}
	added, err := s.store.AddRoleAssignment(ctx, policy.RoleAssignment{User: username, Role: role, Domain: domain})
	if err != nil {
		return false, err
	}
	if added {
		s.invalidate(ctx)
		s.record(ctx, audit.ActionAssignRole, username, domain, role, "")
	}
	return added, nil
}

// UnassignRole removes a direct role assignment. Removing an assignment the
// user does not hold fails with shared.ErrNotFound.
func (s *Service) UnassignRole(ctx context.Context, username, role, domain string) error {
	if err := s.ensureExists(ctx, username); err != nil {
		return err
	}
	if err := s.store.RemoveRoleAssignment(ctx, policy.RoleAssignment{User: username, Role: role, Domain: domain}); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, audit.ActionUnassignRole, username, domain, role, "")
	return nil
}

// AddRoleInclusion makes every holder of child implicitly hold parent within
// the domain.
func (s *Service) AddRoleInclusion(ctx context.Context, child, parent, domain string) (bool, error) {
	added, err := s.store.AddRoleInclusion(ctx, policy.RoleInclusion{Child: child, Parent: parent, Domain: domain})
	if err != nil {
		return false, err
	}
	if added {
		s.invalidate(ctx)
		s.record(ctx, audit.ActionIncludeRole, child, domain, parent, "")
	}
	return added, nil
}

// RemoveRoleInclusion deletes an inclusion edge.
func (s *Service) RemoveRoleInclusion(ctx context.Context, child, parent, domain string) error {
	if err := s.store.RemoveRoleInclusion(ctx, policy.RoleInclusion{Child: child, Parent: parent, Domain: domain}); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, audit.ActionExcludeRole, child, domain, parent, "")
	return nil
}

// Roles lists the distinct role names granted or inherited within a domain.
func (s *Service) Roles(ctx context.Context, domain string) ([]string, error) {
	edges, err := s.store.RoleInclusions(ctx, policy.InclusionFilter{Domain: policy.Eq(domain)})
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(edges))
	for _, e := range edges {
		set[e.Parent] = struct{}{}
	}
	roles := make([]string, 0, len(set))
	for role := range set {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles, nil
}

// DeleteUser removes every policy tuple referencing the user, atomically.
// Directory cleanup is the identity module's responsibility; it calls here
// as part of its cascade.
func (s *Service) DeleteUser(ctx context.Context, username string) error {
	if err := s.store.DeleteUser(ctx, username); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.record(ctx, audit.ActionDeleteUser, username, "", "", "")
	return nil
}
