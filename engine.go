package guardian

import (
	"context"
	"sync"
	"time"

	"github.com/oarkflow/guardian/logger"
)

// DefaultActions is the action vocabulary used by GetPermissionMatrix when no
// explicit set is configured.
var DefaultActions = []string{"read", "write", "delete", "admin", "create"}

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine) error

// WithDecisionCache replaces the default in-memory decision cache.
func WithDecisionCache(c DecisionCache) EngineOption {
	return func(e *Engine) error {
		e.cache = c
		return nil
	}
}

// WithCacheTTL bounds how long a cached decision may outlive the state it was
// computed from. Zero disables caching.
func WithCacheTTL(d time.Duration) EngineOption {
	return func(e *Engine) error {
		e.cacheTTL = d
		return nil
	}
}

// WithMaxDepth overrides the tree-wide tenant depth limit.
func WithMaxDepth(d int) EngineOption {
	return func(e *Engine) error {
		if d <= 0 {
			return validationf("max depth must be positive, got %d", d)
		}
		e.hierarchy.SetMaxDepth(d)
		return nil
	}
}

// WithResourceTypes fixes the resource types GetPermissionMatrix reports on.
// Without it the matrix derives types from the user's effective grants.
func WithResourceTypes(types ...string) EngineOption {
	return func(e *Engine) error {
		e.resourceTypes = types
		return nil
	}
}

// WithActions overrides the matrix action vocabulary.
func WithActions(actions ...string) EngineOption {
	return func(e *Engine) error {
		if len(actions) == 0 {
			return validationf("action vocabulary must not be empty")
		}
		e.actions = actions
		return nil
	}
}

// Engine is the authorization façade: it owns the tenant hierarchy, the
// permission resolver, the policy engine, the decision cache and the async
// audit pipeline. The read path (Authorize and friends) never returns an
// error; failures become Decision{Source: SourceError}.
type Engine struct {
	hierarchy *Hierarchy
	resolver  *Resolver
	policies  *PolicyEngine

	tenants     TenantStore
	grants      GrantStore
	roles       RoleStore
	assignments AssignmentStore
	policyStore PolicyStore
	auditStore  AuditStore

	cache    DecisionCache
	cacheTTL time.Duration

	resourceTypes []string
	actions       []string

	logger      logger.Logger
	traceIDFunc logger.TraceIDFunc

	// asynchronous audit channel so mutations never block on audit I/O
	auditCh chan AuditEvent
	auditWG sync.WaitGroup
	closed  chan struct{}
}

func NewEngine(
	tenants TenantStore,
	grants GrantStore,
	roles RoleStore,
	assignments AssignmentStore,
	policies PolicyStore,
	audit AuditStore,
	opts ...EngineOption,
) (*Engine, error) {
	e := &Engine{
		tenants:     tenants,
		grants:      grants,
		roles:       roles,
		assignments: assignments,
		policyStore: policies,
		auditStore:  audit,
		cache:       NewMemoryDecisionCache(),
		cacheTTL:    time.Second, // default short TTL
		actions:     DefaultActions,
		logger:      logger.NewNullLogger(),
		closed:      make(chan struct{}),
	}
	e.hierarchy = NewHierarchy(tenants, e.logger)
	e.resolver = NewResolver(e.hierarchy, grants, roles, assignments, e.logger)
	e.policies = NewPolicyEngine(policies, e.logger)

	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	// options may have swapped the logger
	e.hierarchy.logger = e.logger
	e.resolver.logger = e.logger
	e.policies.logger = e.logger

	e.auditCh = make(chan AuditEvent, 1024)
	e.auditWG.Add(1)
	go func() {
		defer e.auditWG.Done()
		bg := context.Background()
		for ev := range e.auditCh {
			if e.auditStore == nil {
				continue
			}
			if err := e.auditStore.Append(bg, &ev); err != nil {
				e.logger.Error("audit append failed", "action", ev.Action, "err", err.Error())
			}
		}
	}()
	return e, nil
}

// Close drains and stops the audit worker. The engine must not be used after
// Close returns.
func (e *Engine) Close() {
	select {
	case <-e.closed:
		return
	default:
	}
	close(e.closed)
	close(e.auditCh)
	e.auditWG.Wait()
}

// Hierarchy exposes the tenant tree for read-side callers.
func (e *Engine) Hierarchy() *Hierarchy { return e.hierarchy }

// GetTenant loads one tenant by id.
func (e *Engine) GetTenant(ctx context.Context, id string) (*Tenant, error) {
	t, err := e.tenants.GetTenant(ctx, id)
	if err != nil {
		return nil, notFoundf("tenant %s", id)
	}
	return t, nil
}

// TenantBySlug loads one tenant by its URL-safe slug.
func (e *Engine) TenantBySlug(ctx context.Context, slug string) (*Tenant, error) {
	t, err := e.tenants.GetTenantBySlug(ctx, slug)
	if err != nil {
		return nil, notFoundf("tenant slug %s", slug)
	}
	return t, nil
}

// ============================================================================
// READ PATH
// ============================================================================

// Authorize answers one access question. Precedence, highest first:
//  1. a matching enabled policy that fails to evaluate -> error decision
//  2. a matching deny policy whose conditions pass -> deny
//  3. a direct or inherited grant -> allow
//  4. a role assignment at this tenant -> allow
//  5. a matching allow policy whose conditions pass -> allow
//  6. default deny
//
// It never returns an error; every failure mode becomes a Decision with
// Source set to "error".
func (e *Engine) Authorize(ctx context.Context, userID, tenantID, resourceType, action, resourceID string, rc *RequestContext) *Decision {
	start := time.Now()
	d := e.newDecision(rc)

	if userID == "" || tenantID == "" || resourceType == "" || action == "" {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "userID, tenantID, resourceType and action are required"
			d.Error = "validation failed"
		})
	}

	key := DecisionKey{UserID: userID, TenantID: tenantID, ResourceType: resourceType, Action: action, ResourceID: resourceID}
	if e.cacheTTL > 0 {
		if cached, ok := e.cache.Get(key); ok {
			e.logger.Debug("decision cache hit", "user", userID, "tenant", tenantID)
			// cached decisions keep their verdict but each caller gets its
			// own request metadata
			return e.finish(d, start, func() {
				d.Allowed = cached.Allowed
				d.Source = cached.Source
				d.Reason = cached.Reason
				d.SourceTenantID = cached.SourceTenantID
				d.InheritanceLevel = cached.InheritanceLevel
				d.Policy = cached.Policy
				d.RoleID = cached.RoleID
			})
		}
	}

	tenant, err := e.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "tenant not found"
			d.Error = notFoundf("tenant %s", tenantID).Error()
		})
	}
	if tenant.Status != TenantActive {
		return e.finish(d, start, func() {
			d.Reason = "tenant is archived"
		})
	}

	matching, err := e.policies.Matching(ctx, tenantID, resourceType, action)
	if err != nil {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "policy lookup failed"
			d.Error = err.Error()
		})
	}

	var allowPolicy *Policy
	for _, p := range matching {
		ok, err := e.policies.Evaluate(p, rc)
		if err != nil {
			return e.finish(d, start, func() {
				d.Source = SourceError
				d.Policy = p
				d.Reason = "policy evaluation failed"
				d.Error = err.Error()
			})
		}
		if !ok {
			continue
		}
		if p.Effect == EffectDeny {
			dec := e.finish(d, start, func() {
				d.Source = SourcePolicy
				d.Policy = p
				d.Reason = "denied by policy " + p.Name
			})
			e.cacheDecision(key, dec)
			return dec
		}
		if allowPolicy == nil {
			allowPolicy = p
		}
	}

	access, err := e.resolver.resolveAccess(ctx, userID, tenantID, resourceType, action, resourceID, rc)
	if err != nil {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "grant resolution failed"
			d.Error = err.Error()
		})
	}
	if access.allowed {
		dec := e.finish(d, start, func() {
			d.Allowed = true
			d.Source = access.source
			d.SourceTenantID = access.sourceTenantID
			d.InheritanceLevel = access.level
			if access.source == SourceDirect {
				d.Reason = "direct grant"
			} else {
				d.Reason = "inherited from tenant " + access.sourceTenantID
			}
		})
		e.cacheDecision(key, dec)
		return dec
	}

	roleID, ok, err := e.resolver.roleAccess(ctx, userID, tenantID, resourceType, action, rc.At())
	if err != nil {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "role resolution failed"
			d.Error = err.Error()
		})
	}
	if ok {
		dec := e.finish(d, start, func() {
			d.Allowed = true
			d.Source = SourceRole
			d.RoleID = roleID
			d.Reason = "granted by role " + roleID
		})
		e.cacheDecision(key, dec)
		return dec
	}

	if allowPolicy != nil {
		dec := e.finish(d, start, func() {
			d.Allowed = true
			d.Source = SourcePolicy
			d.Policy = allowPolicy
			d.Reason = "allowed by policy " + allowPolicy.Name
		})
		e.cacheDecision(key, dec)
		return dec
	}

	dec := e.finish(d, start, func() {
		if access.blocked {
			d.Reason = "Permission inheritance blocked"
		} else {
			d.Reason = "no matching grant, role, or policy"
		}
	})
	e.cacheDecision(key, dec)
	return dec
}

// HasPermission is the grant-and-role check without policies: true when a
// direct grant, inherited grant, or role assignment covers the pair. Like
// Authorize it never returns an error; failures become decisions with Source
// set to "error".
func (e *Engine) HasPermission(ctx context.Context, userID, tenantID, resourceType, action, resourceID string) *Decision {
	rc := &RequestContext{Timestamp: time.Now()}
	d := e.newDecision(rc)
	start := time.Now()

	access, err := e.resolver.resolveAccess(ctx, userID, tenantID, resourceType, action, resourceID, rc)
	if err != nil {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "grant resolution failed"
			d.Error = err.Error()
		})
	}
	if access.allowed {
		return e.finish(d, start, func() {
			d.Allowed = true
			d.Source = access.source
			d.SourceTenantID = access.sourceTenantID
			d.InheritanceLevel = access.level
		})
	}
	roleID, ok, err := e.resolver.roleAccess(ctx, userID, tenantID, resourceType, action, rc.At())
	if err != nil {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "role resolution failed"
			d.Error = err.Error()
		})
	}
	if ok {
		return e.finish(d, start, func() {
			d.Allowed = true
			d.Source = SourceRole
			d.RoleID = roleID
		})
	}
	return e.finish(d, start, func() {
		if access.blocked {
			d.Reason = "Permission inheritance blocked"
		}
	})
}

// GetInheritedPermissions returns the user's merged effective grants at the
// tenant, root-first, each annotated with its source tenant and distance.
func (e *Engine) GetInheritedPermissions(ctx context.Context, userID, tenantID string) ([]*EffectivePermission, error) {
	return e.resolver.InheritedPermissions(ctx, userID, tenantID, time.Now())
}

// ResolveInheritedAccess is the narrow grant-only call: no roles, no
// policies. When the only matching ancestor grant carries BlockInheritance it
// reports exactly why.
func (e *Engine) ResolveInheritedAccess(ctx context.Context, userID, tenantID, resourceType, action string) *Decision {
	start := time.Now()
	rc := &RequestContext{Timestamp: time.Now()}
	d := e.newDecision(rc)

	access, err := e.resolver.resolveAccess(ctx, userID, tenantID, resourceType, action, "", rc)
	if err != nil {
		return e.finish(d, start, func() {
			d.Source = SourceError
			d.Reason = "grant resolution failed"
			d.Error = err.Error()
		})
	}
	return e.finish(d, start, func() {
		if access.allowed {
			d.Allowed = true
			d.Source = access.source
			d.SourceTenantID = access.sourceTenantID
			d.InheritanceLevel = access.level
			return
		}
		if access.blocked {
			d.Reason = "Permission inheritance blocked"
		}
	})
}

// GetPermissionMatrix reports resourceType -> action -> allowed for one user
// at one tenant, from grants and role assignments. A user with no access
// gets a well-formed empty matrix, never an error.
func (e *Engine) GetPermissionMatrix(ctx context.Context, userID, tenantID string) (*PermissionMatrix, error) {
	now := time.Now()
	eps, err := e.resolver.InheritedPermissions(ctx, userID, tenantID, now)
	if err != nil {
		return nil, err
	}

	m := &PermissionMatrix{
		UserID:        userID,
		TenantID:      tenantID,
		Permissions:   make(map[string]map[string]bool),
		InheritedFrom: []string{},
	}

	types := e.resourceTypes
	if len(types) == 0 {
		seen := make(map[string]bool)
		for _, ep := range eps {
			if !seen[ep.Grant.ResourceType] {
				seen[ep.Grant.ResourceType] = true
				types = append(types, ep.Grant.ResourceType)
			}
		}
	}

	seenSource := make(map[string]bool)
	for _, ep := range eps {
		m.Summary.TotalPermissions++
		if ep.Inherited {
			m.Summary.InheritedPermissions++
			if !seenSource[ep.SourceTenantID] {
				seenSource[ep.SourceTenantID] = true
				m.InheritedFrom = append(m.InheritedFrom, ep.SourceTenantID)
			}
		} else {
			m.Summary.DirectPermissions++
		}
	}

	for _, rt := range types {
		row := make(map[string]bool)
		granted := false
		for _, action := range e.actions {
			allowed := false
			for _, ep := range eps {
				if ep.Grant.Covers(rt, "") && ep.Grant.HasAction(action) {
					allowed = true
					break
				}
			}
			if !allowed {
				_, allowed, err = e.resolver.roleAccess(ctx, userID, tenantID, rt, action, now)
				if err != nil {
					return nil, err
				}
			}
			row[action] = allowed
			granted = granted || allowed
		}
		if granted {
			m.Permissions[rt] = row
		}
	}
	return m, nil
}

// BatchAuthorize answers many access questions in one call. Order is
// preserved; each answer stands alone.
func (e *Engine) BatchAuthorize(ctx context.Context, requests []AuthRequest) []*Decision {
	decisions := make([]*Decision, len(requests))
	for i, req := range requests {
		decisions[i] = e.Authorize(ctx, req.UserID, req.TenantID, req.ResourceType, req.Action, req.ResourceID, req.Context)
	}
	return decisions
}

func (e *Engine) newDecision(rc *RequestContext) *Decision {
	d := &Decision{Source: SourceNone, EvaluatedAt: time.Now()}
	if rc != nil {
		d.RequestID = rc.RequestID
	}
	if e.traceIDFunc != nil {
		d.TraceID = e.traceIDFunc()
	}
	return d
}

func (e *Engine) finish(d *Decision, start time.Time, fill func()) *Decision {
	fill()
	d.ElapsedMicros = time.Since(start).Microseconds()
	return d
}

func (e *Engine) cacheDecision(key DecisionKey, d *Decision) {
	if e.cacheTTL > 0 && d.Source != SourceError {
		e.cache.Set(key, d, e.cacheTTL)
	}
}

// ============================================================================
// MUTATIONS
// ============================================================================

// CreateTenant creates a tenant node under an optional parent.
func (e *Engine) CreateTenant(ctx context.Context, t *Tenant, actor string) (*Tenant, error) {
	now := time.Now()
	if t != nil {
		t.CreatedAt = now
		t.UpdatedAt = now
	}
	created, err := e.hierarchy.CreateTenant(ctx, t)
	if err != nil {
		return nil, err
	}
	e.audit(AuditTenantCreated, actor, "tenant", created.ID, created.ID, nil)
	return created, nil
}

// MoveTenant re-parents a tenant atomically and flushes cached decisions.
func (e *Engine) MoveTenant(ctx context.Context, tenantID, newParentID, actor string) error {
	if err := e.hierarchy.MoveTenant(ctx, tenantID, newParentID); err != nil {
		return err
	}
	e.cache.Flush()
	e.audit(AuditTenantMoved, actor, "tenant", tenantID, tenantID, map[string]any{"new_parent": newParentID})
	return nil
}

// ArchiveTenant excludes a tenant and its subtree from active resolution.
func (e *Engine) ArchiveTenant(ctx context.Context, tenantID, actor string) error {
	if err := e.hierarchy.ArchiveTenant(ctx, tenantID); err != nil {
		return err
	}
	e.cache.Flush()
	e.audit(AuditTenantArchived, actor, "tenant", tenantID, tenantID, nil)
	return nil
}

// RestoreTenant returns an archived tenant to active resolution.
func (e *Engine) RestoreTenant(ctx context.Context, tenantID, actor string) error {
	if err := e.hierarchy.RestoreTenant(ctx, tenantID); err != nil {
		return err
	}
	e.cache.Flush()
	e.audit(AuditTenantRestored, actor, "tenant", tenantID, tenantID, nil)
	return nil
}

// DeleteTenant permanently removes an archived, childless tenant.
func (e *Engine) DeleteTenant(ctx context.Context, tenantID, actor string) error {
	if err := e.hierarchy.DeleteTenant(ctx, tenantID); err != nil {
		return err
	}
	e.cache.Flush()
	e.audit(AuditTenantDeleted, actor, "tenant", tenantID, tenantID, nil)
	return nil
}

// GrantPermission validates and persists a direct grant.
func (e *Engine) GrantPermission(ctx context.Context, g *Grant) (*Grant, error) {
	if g == nil || g.UserID == "" || g.TenantID == "" || g.ResourceType == "" {
		return nil, validationf("grant requires userID, tenantID and resourceType")
	}
	if len(g.Actions) == 0 {
		return nil, validationf("grant action set must not be empty")
	}
	if err := g.Conditions.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.tenants.GetTenant(ctx, g.TenantID); err != nil {
		return nil, notFoundf("tenant %s", g.TenantID)
	}
	if g.ID == "" {
		g.ID = NewID()
	}
	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now
	if err := e.grants.CreateGrant(ctx, g); err != nil {
		return nil, storef("create grant", err)
	}
	e.cache.Flush()
	e.audit(AuditPermissionGranted, g.GrantedBy, "grant", g.ID, g.TenantID, map[string]any{
		"user":          g.UserID,
		"resource_type": g.ResourceType,
		"actions":       g.Actions,
	})
	return g, nil
}

// RevokePermission removes a grant by id.
func (e *Engine) RevokePermission(ctx context.Context, grantID, actor string) error {
	g, err := e.grants.GetGrant(ctx, grantID)
	if err != nil {
		return notFoundf("grant %s", grantID)
	}
	if err := e.grants.RevokeGrant(ctx, grantID); err != nil {
		return storef("revoke grant", err)
	}
	e.cache.Flush()
	e.audit(AuditPermissionRevoked, actor, "grant", grantID, g.TenantID, map[string]any{"user": g.UserID})
	return nil
}

// CreateRole persists a role after validating its inheritance target exists.
func (e *Engine) CreateRole(ctx context.Context, r *Role, actor string) (*Role, error) {
	if r == nil || r.Name == "" {
		return nil, validationf("role name is required")
	}
	if r.InheritsFrom != "" {
		if _, err := e.roles.GetRole(ctx, r.InheritsFrom); err != nil {
			return nil, notFoundf("parent role %s", r.InheritsFrom)
		}
	}
	if r.ID == "" {
		r.ID = NewID()
	}
	r.CreatedBy = actor
	r.CreatedAt = time.Now()
	if err := e.roles.CreateRole(ctx, r); err != nil {
		return nil, storef("create role", err)
	}
	e.audit(AuditRoleCreated, actor, "role", r.ID, r.TenantID, nil)
	return r, nil
}

// UpdateRole rewrites a role. System roles are immutable.
func (e *Engine) UpdateRole(ctx context.Context, r *Role, actor string) error {
	existing, err := e.roles.GetRole(ctx, r.ID)
	if err != nil {
		return notFoundf("role %s", r.ID)
	}
	if existing.IsSystem {
		return validationf("system role %s cannot be modified", r.ID)
	}
	if err := e.roles.UpdateRole(ctx, r); err != nil {
		return storef("update role", err)
	}
	e.cache.Flush()
	e.audit(AuditRoleUpdated, actor, "role", r.ID, r.TenantID, nil)
	return nil
}

// DeleteRole removes a role. System roles are immutable.
func (e *Engine) DeleteRole(ctx context.Context, roleID, actor string) error {
	existing, err := e.roles.GetRole(ctx, roleID)
	if err != nil {
		return notFoundf("role %s", roleID)
	}
	if existing.IsSystem {
		return validationf("system role %s cannot be deleted", roleID)
	}
	if err := e.roles.DeleteRole(ctx, roleID); err != nil {
		return storef("delete role", err)
	}
	e.cache.Flush()
	e.audit(AuditRoleDeleted, actor, "role", roleID, existing.TenantID, nil)
	return nil
}

// AssignRole binds a role to a user within one tenant.
func (e *Engine) AssignRole(ctx context.Context, a *RoleAssignment) error {
	if a == nil || a.UserID == "" || a.RoleID == "" || a.TenantID == "" {
		return validationf("assignment requires userID, roleID and tenantID")
	}
	if _, err := e.roles.GetRole(ctx, a.RoleID); err != nil {
		return notFoundf("role %s", a.RoleID)
	}
	if _, err := e.tenants.GetTenant(ctx, a.TenantID); err != nil {
		return notFoundf("tenant %s", a.TenantID)
	}
	if a.AssignedAt.IsZero() {
		a.AssignedAt = time.Now()
	}
	if err := e.assignments.AssignRole(ctx, a); err != nil {
		return storef("assign role", err)
	}
	e.cache.Flush()
	e.audit(AuditRoleAssigned, a.AssignedBy, "assignment", a.RoleID, a.TenantID, map[string]any{"user": a.UserID})
	return nil
}

// RevokeRole removes one user-role binding.
func (e *Engine) RevokeRole(ctx context.Context, userID, roleID, tenantID, actor string) error {
	if err := e.assignments.RevokeRole(ctx, userID, roleID, tenantID); err != nil {
		return storef("revoke role", err)
	}
	e.cache.Flush()
	e.audit(AuditRoleRevoked, actor, "assignment", roleID, tenantID, map[string]any{"user": userID})
	return nil
}

// CreatePolicy validates and persists a policy.
func (e *Engine) CreatePolicy(ctx context.Context, p *Policy, actor string) (*Policy, error) {
	if err := e.policies.Validate(p); err != nil {
		return nil, err
	}
	if p.TenantID != "" {
		if _, err := e.tenants.GetTenant(ctx, p.TenantID); err != nil {
			return nil, notFoundf("tenant %s", p.TenantID)
		}
	}
	if p.ID == "" {
		p.ID = NewID()
	}
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	if err := e.policyStore.CreatePolicy(ctx, p); err != nil {
		return nil, storef("create policy", err)
	}
	e.cache.Flush()
	e.audit(AuditPolicyCreated, actor, "policy", p.ID, p.TenantID, nil)
	return p, nil
}

// UpdatePolicy validates and rewrites a policy.
func (e *Engine) UpdatePolicy(ctx context.Context, p *Policy, actor string) error {
	if err := e.policies.Validate(p); err != nil {
		return err
	}
	if _, err := e.policyStore.GetPolicy(ctx, p.ID); err != nil {
		return notFoundf("policy %s", p.ID)
	}
	p.UpdatedAt = time.Now()
	if err := e.policyStore.UpdatePolicy(ctx, p); err != nil {
		return storef("update policy", err)
	}
	e.cache.Flush()
	e.audit(AuditPolicyUpdated, actor, "policy", p.ID, p.TenantID, nil)
	return nil
}

// DeletePolicy removes a policy by id.
func (e *Engine) DeletePolicy(ctx context.Context, policyID, actor string) error {
	p, err := e.policyStore.GetPolicy(ctx, policyID)
	if err != nil {
		return notFoundf("policy %s", policyID)
	}
	if err := e.policyStore.DeletePolicy(ctx, policyID); err != nil {
		return storef("delete policy", err)
	}
	e.cache.Flush()
	e.audit(AuditPolicyDeleted, actor, "policy", policyID, p.TenantID, nil)
	return nil
}

// ListAuditEvents queries the audit trail.
func (e *Engine) ListAuditEvents(ctx context.Context, f AuditFilter) ([]*AuditEvent, error) {
	if e.auditStore == nil {
		return nil, nil
	}
	return e.auditStore.List(ctx, f)
}

// audit queues one event without blocking; if the channel is full the event
// is dropped rather than stalling the mutation.
func (e *Engine) audit(action, actor, targetType, targetID, tenantID string, metadata map[string]any) {
	ev := AuditEvent{
		ID:         NewID(),
		Action:     action,
		Actor:      actor,
		TargetType: targetType,
		TargetID:   targetID,
		TenantID:   tenantID,
		Timestamp:  time.Now(),
		Metadata:   metadata,
	}
	e.logger.Info("audit event", "action", action, "actor", actor, "target", targetID)
	select {
	case e.auditCh <- ev:
	default:
	}
}
