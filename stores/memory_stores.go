package stores

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/oarkflow/guardian"
)

// MemoryTenantStore keeps the tenant tree in-memory for testing/demo.
type MemoryTenantStore struct {
	mu      sync.RWMutex
	tenants map[string]*guardian.Tenant
}

func NewMemoryTenantStore() *MemoryTenantStore {
	return &MemoryTenantStore{tenants: make(map[string]*guardian.Tenant)}
}

func cloneTenant(t *guardian.Tenant) *guardian.Tenant {
	dup := *t
	dup.Path = append([]string{}, t.Path...)
	return &dup
}

func (s *MemoryTenantStore) CreateTenant(ctx context.Context, t *guardian.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; ok {
		return fmt.Errorf("tenant already exists: %s", t.ID)
	}
	s.tenants[t.ID] = cloneTenant(t)
	return nil
}

func (s *MemoryTenantStore) UpdateTenant(ctx context.Context, t *guardian.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return fmt.Errorf("tenant not found: %s", t.ID)
	}
	s.tenants[t.ID] = cloneTenant(t)
	return nil
}

// SaveTenants applies the whole batch under one lock, so readers never see a
// half-moved subtree.
func (s *MemoryTenantStore) SaveTenants(ctx context.Context, tenants []*guardian.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tenants {
		if _, ok := s.tenants[t.ID]; !ok {
			return fmt.Errorf("tenant not found: %s", t.ID)
		}
	}
	for _, t := range tenants {
		s.tenants[t.ID] = cloneTenant(t)
	}
	return nil
}

func (s *MemoryTenantStore) DeleteTenant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[id]; !ok {
		return fmt.Errorf("tenant not found: %s", id)
	}
	delete(s.tenants, id)
	return nil
}

func (s *MemoryTenantStore) GetTenant(ctx context.Context, id string) (*guardian.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tenants[id]
	if !ok {
		return nil, fmt.Errorf("tenant not found: %s", id)
	}
	return cloneTenant(t), nil
}

func (s *MemoryTenantStore) GetTenantBySlug(ctx context.Context, slug string) (*guardian.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, t := range s.tenants {
		if t.Slug == slug {
			return cloneTenant(t), nil
		}
	}
	return nil, fmt.Errorf("tenant not found by slug: %s", slug)
}

func (s *MemoryTenantStore) ListChildren(ctx context.Context, parentID string) ([]*guardian.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.Tenant, 0)
	for _, t := range s.tenants {
		if t.ParentID == parentID {
			out = append(out, cloneTenant(t))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryTenantStore) ListDescendants(ctx context.Context, id string) ([]*guardian.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.Tenant, 0)
	for _, t := range s.tenants {
		if t.ID == id {
			continue
		}
		for _, p := range t.Path {
			if p == id {
				out = append(out, cloneTenant(t))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return joinPath(out[i].Path) < joinPath(out[j].Path) })
	return out, nil
}

func (s *MemoryTenantStore) ListTenants(ctx context.Context) ([]*guardian.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.Tenant, 0, len(s.tenants))
	for _, t := range s.tenants {
		out = append(out, cloneTenant(t))
	}
	sort.Slice(out, func(i, j int) bool { return joinPath(out[i].Path) < joinPath(out[j].Path) })
	return out, nil
}

// MemoryGrantStore keeps direct grants in-memory for testing/demo.
type MemoryGrantStore struct {
	mu     sync.RWMutex
	grants map[string]*guardian.Grant
}

func NewMemoryGrantStore() *MemoryGrantStore {
	return &MemoryGrantStore{grants: make(map[string]*guardian.Grant)}
}

func (s *MemoryGrantStore) CreateGrant(ctx context.Context, g *guardian.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *g
	s.grants[g.ID] = &dup
	return nil
}

func (s *MemoryGrantStore) UpdateGrant(ctx context.Context, g *guardian.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[g.ID]; !ok {
		return fmt.Errorf("grant not found: %s", g.ID)
	}
	dup := *g
	s.grants[g.ID] = &dup
	return nil
}

func (s *MemoryGrantStore) RevokeGrant(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.grants[id]; !ok {
		return fmt.Errorf("grant not found: %s", id)
	}
	delete(s.grants, id)
	return nil
}

func (s *MemoryGrantStore) GetGrant(ctx context.Context, id string) (*guardian.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, fmt.Errorf("grant not found: %s", id)
	}
	dup := *g
	return &dup, nil
}

func (s *MemoryGrantStore) ListGrants(ctx context.Context, userID, tenantID string) ([]*guardian.Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.Grant, 0)
	for _, g := range s.grants {
		if g.UserID == userID && g.TenantID == tenantID {
			dup := *g
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryRoleStore keeps roles in-memory for testing/demo.
type MemoryRoleStore struct {
	mu    sync.RWMutex
	roles map[string]*guardian.Role
}

func NewMemoryRoleStore() *MemoryRoleStore {
	return &MemoryRoleStore{roles: make(map[string]*guardian.Role)}
}

func (s *MemoryRoleStore) CreateRole(ctx context.Context, r *guardian.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; ok {
		return fmt.Errorf("role already exists: %s", r.ID)
	}
	dup := *r
	s.roles[r.ID] = &dup
	return nil
}

func (s *MemoryRoleStore) UpdateRole(ctx context.Context, r *guardian.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[r.ID]; !ok {
		return fmt.Errorf("role not found: %s", r.ID)
	}
	dup := *r
	s.roles[r.ID] = &dup
	return nil
}

func (s *MemoryRoleStore) DeleteRole(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[id]; !ok {
		return fmt.Errorf("role not found: %s", id)
	}
	delete(s.roles, id)
	return nil
}

func (s *MemoryRoleStore) GetRole(ctx context.Context, id string) (*guardian.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[id]
	if !ok {
		return nil, fmt.Errorf("role not found: %s", id)
	}
	dup := *r
	return &dup, nil
}

func (s *MemoryRoleStore) ListRoles(ctx context.Context, tenantID string) ([]*guardian.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.Role, 0)
	for _, r := range s.roles {
		if tenantID == "" || r.TenantID == tenantID || r.TenantID == "" {
			dup := *r
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryAssignmentStore keeps user-role bindings in-memory for testing/demo.
type MemoryAssignmentStore struct {
	mu          sync.RWMutex
	assignments map[string]*guardian.RoleAssignment
}

func NewMemoryAssignmentStore() *MemoryAssignmentStore {
	return &MemoryAssignmentStore{assignments: make(map[string]*guardian.RoleAssignment)}
}

func assignmentKey(userID, roleID, tenantID string) string {
	return userID + "|" + roleID + "|" + tenantID
}

func (s *MemoryAssignmentStore) AssignRole(ctx context.Context, a *guardian.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *a
	s.assignments[assignmentKey(a.UserID, a.RoleID, a.TenantID)] = &dup
	return nil
}

func (s *MemoryAssignmentStore) RevokeRole(ctx context.Context, userID, roleID, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := assignmentKey(userID, roleID, tenantID)
	if _, ok := s.assignments[k]; !ok {
		return fmt.Errorf("assignment not found: %s", k)
	}
	delete(s.assignments, k)
	return nil
}

func (s *MemoryAssignmentStore) ListAssignments(ctx context.Context, userID, tenantID string) ([]*guardian.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.RoleAssignment, 0)
	for _, a := range s.assignments {
		if a.UserID == userID && a.TenantID == tenantID {
			dup := *a
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RoleID < out[j].RoleID })
	return out, nil
}

// MemoryPolicyStore keeps policies in-memory for testing/demo.
type MemoryPolicyStore struct {
	mu       sync.RWMutex
	policies map[string]*guardian.Policy
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{policies: make(map[string]*guardian.Policy)}
}

func (s *MemoryPolicyStore) CreatePolicy(ctx context.Context, p *guardian.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *p
	s.policies[p.ID] = &dup
	return nil
}

func (s *MemoryPolicyStore) UpdatePolicy(ctx context.Context, p *guardian.Policy) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[p.ID]; !ok {
		return fmt.Errorf("policy not found: %s", p.ID)
	}
	dup := *p
	s.policies[p.ID] = &dup
	return nil
}

func (s *MemoryPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.policies[id]; !ok {
		return fmt.Errorf("policy not found: %s", id)
	}
	delete(s.policies, id)
	return nil
}

func (s *MemoryPolicyStore) GetPolicy(ctx context.Context, id string) (*guardian.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, fmt.Errorf("policy not found: %s", id)
	}
	dup := *p
	return &dup, nil
}

func (s *MemoryPolicyStore) ListPolicies(ctx context.Context, tenantID string) ([]*guardian.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.Policy, 0)
	for _, p := range s.policies {
		if tenantID == "" || p.TenantID == tenantID || p.TenantID == "" {
			dup := *p
			out = append(out, &dup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// MemoryAuditStore keeps audit events in-memory for testing/demo.
type MemoryAuditStore struct {
	mu     sync.RWMutex
	events []*guardian.AuditEvent
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{events: make([]*guardian.AuditEvent, 0)}
}

func (s *MemoryAuditStore) Append(ctx context.Context, e *guardian.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *e
	s.events = append(s.events, &dup)
	return nil
}

func (s *MemoryAuditStore) List(ctx context.Context, f guardian.AuditFilter) ([]*guardian.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*guardian.AuditEvent, 0)
	for _, e := range s.events {
		if !f.Matches(e) {
			continue
		}
		dup := *e
		out = append(out, &dup)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
