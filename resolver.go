package guardian

import (
	"context"
	"time"

	"github.com/oarkflow/guardian/logger"
	"github.com/oarkflow/guardian/utils"
)

// Resolver answers "what can this user do in this tenant?" from direct grants,
// inherited grants, and role assignments. Every call is a stateless read; it
// holds no caches of its own.
type Resolver struct {
	hierarchy   *Hierarchy
	grants      GrantStore
	roles       RoleStore
	assignments AssignmentStore
	logger      logger.Logger
}

func NewResolver(h *Hierarchy, grants GrantStore, roles RoleStore, assignments AssignmentStore, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Resolver{hierarchy: h, grants: grants, roles: roles, assignments: assignments, logger: log}
}

type permKey struct {
	resourceType string
	resourceID   string
	action       string
}

// InheritedPermissions returns the user's effective grants at tenantID:
// direct grants plus every ancestor grant that propagates down. Expired grants
// are dropped, grants at archived ancestors are skipped, and a grant with
// BlockInheritance set never leaves the tenant where it was made. When the
// same (resourceType, resourceID, action) is granted at multiple levels the
// closest grant wins; farther grants keep only the keys the closer ones do
// not claim. Result order is root-first.
func (r *Resolver) InheritedPermissions(ctx context.Context, userID, tenantID string, at time.Time) ([]*EffectivePermission, error) {
	chain, err := r.hierarchy.Chain(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	n := len(chain) - 1

	claimed := make(map[permKey]bool)
	out := make([]*EffectivePermission, 0, 8)

	// closest level first so nearer grants claim their keys before farther
	// ones are considered
	for i := n; i >= 0; i-- {
		t := chain[i]
		if t.Status != TenantActive {
			continue
		}
		grants, err := r.grants.ListGrants(ctx, userID, t.ID)
		if err != nil {
			return nil, storef("list grants", err)
		}
		for _, g := range grants {
			if g.IsExpired(at) {
				continue
			}
			if g.BlockInheritance && i < n {
				continue
			}
			contributes := false
			for _, a := range g.Actions {
				k := permKey{g.ResourceType, g.ResourceID, a}
				if !claimed[k] {
					claimed[k] = true
					contributes = true
				}
			}
			if !contributes {
				continue
			}
			out = append(out, &EffectivePermission{
				Grant:            g,
				Inherited:        i < n,
				SourceTenantID:   t.ID,
				InheritanceLevel: n - i,
			})
		}
	}

	// reverse into root-first order
	for l, rr := 0, len(out)-1; l < rr; l, rr = l+1, rr-1 {
		out[l], out[rr] = out[rr], out[l]
	}
	return out, nil
}

// accessResult is the grant-level verdict before policies and roles weigh in.
type accessResult struct {
	allowed        bool
	source         Source
	sourceTenantID string
	level          int
	blocked        bool
}

// resolveAccess walks the ancestor chain target-first and returns the nearest
// surviving grant that covers (resourceType, resourceID) and contains action.
// blocked reports that a matching ancestor grant existed but carried
// BlockInheritance, so inheritance stopped above this tenant.
func (r *Resolver) resolveAccess(ctx context.Context, userID, tenantID, resourceType, action, resourceID string, rc *RequestContext) (*accessResult, error) {
	chain, err := r.hierarchy.Chain(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	n := len(chain) - 1
	at := rc.At()

	res := &accessResult{source: SourceNone}
	for i := n; i >= 0; i-- {
		t := chain[i]
		if t.Status != TenantActive {
			continue
		}
		grants, err := r.grants.ListGrants(ctx, userID, t.ID)
		if err != nil {
			return nil, storef("list grants", err)
		}
		for _, g := range grants {
			if g.IsExpired(at) || !g.Covers(resourceType, resourceID) || !g.HasAction(action) {
				continue
			}
			if g.BlockInheritance && i < n {
				res.blocked = true
				continue
			}
			ok, err := g.Conditions.EvaluateAll(rc)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			res.allowed = true
			res.sourceTenantID = t.ID
			res.level = n - i
			if i == n {
				res.source = SourceDirect
			} else {
				res.source = SourceInherited
			}
			return res, nil
		}
	}
	return res, nil
}

// roleAccess checks the user's role assignments at tenantID for a permission
// token matching resourceType:action. Role permissions are scoped to the
// assignment's own tenant and deliberately do not inherit down the tree.
func (r *Resolver) roleAccess(ctx context.Context, userID, tenantID, resourceType, action string, at time.Time) (string, bool, error) {
	assignments, err := r.assignments.ListAssignments(ctx, userID, tenantID)
	if err != nil {
		return "", false, storef("list role assignments", err)
	}
	token := resourceType + ":" + action
	for _, a := range assignments {
		if a.IsExpired(at) {
			continue
		}
		roleID, ok, err := r.roleGrantsToken(ctx, a.RoleID, token)
		if err != nil {
			return "", false, err
		}
		if ok {
			return roleID, true, nil
		}
	}
	return "", false, nil
}

// roleGrantsToken walks a role's inheritance chain looking for a permission
// pattern matching token. A visited set guards against inheritance cycles.
func (r *Resolver) roleGrantsToken(ctx context.Context, roleID, token string) (string, bool, error) {
	visited := make(map[string]bool)
	for id := roleID; id != "" && !visited[id]; {
		visited[id] = true
		role, err := r.roles.GetRole(ctx, id)
		if err != nil {
			return "", false, notFoundf("role %s", id)
		}
		for _, perm := range role.Permissions {
			if utils.MatchToken(token, perm) {
				return role.ID, true, nil
			}
		}
		id = role.InheritsFrom
	}
	return "", false, nil
}
