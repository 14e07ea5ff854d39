package guardian

import (
	"context"
	"time"

	"github.com/oarkflow/guardian/logger"
)

// Hierarchy maintains the materialized-path tenant tree: every tenant stores
// its full ancestor chain, so reads never recurse. Structural changes (move)
// recompute paths for the whole subtree and hand them to the store as one
// atomic batch.
type Hierarchy struct {
	store    TenantStore
	maxDepth int
	logger   logger.Logger
}

func NewHierarchy(store TenantStore, log logger.Logger) *Hierarchy {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &Hierarchy{store: store, maxDepth: DefaultMaxDepth, logger: log}
}

// SetMaxDepth overrides the tree-wide depth limit (root = level 0).
func (h *Hierarchy) SetMaxDepth(d int) {
	if d > 0 {
		h.maxDepth = d
	}
}

// CreateTenant validates the parent, computes path and level, and inserts the
// node. Missing ID/Slug are generated; Status defaults to active.
func (h *Hierarchy) CreateTenant(ctx context.Context, t *Tenant) (*Tenant, error) {
	if t == nil || t.Name == "" {
		return nil, validationf("tenant name is required")
	}
	if t.ID == "" {
		t.ID = NewID()
	}
	if t.Slug == "" {
		t.Slug = Slugify(t.Name)
	}
	if t.Status == "" {
		t.Status = TenantActive
	}
	if t.ParentID != "" {
		parent, err := h.store.GetTenant(ctx, t.ParentID)
		if err != nil {
			return nil, notFoundf("parent tenant %s", t.ParentID)
		}
		if parent.Status != TenantActive {
			return nil, validationf("parent tenant %s is not active", parent.ID)
		}
		limit := h.effectiveMaxDepth(parent)
		if parent.Level+1 > limit {
			return nil, depthf(parent.Level+1, limit)
		}
		t.Path = append(append([]string{}, parent.Path...), t.ID)
		t.Level = parent.Level + 1
	} else {
		t.Path = []string{t.ID}
		t.Level = 0
	}
	if err := h.store.CreateTenant(ctx, t); err != nil {
		return nil, storef("create tenant", err)
	}
	h.logger.Info("tenant created", "tenant", t.ID, "parent", t.ParentID, "level", t.Level)
	return t, nil
}

// GetAncestors returns the ancestor chain root-first, excluding the tenant
// itself. The denormalized path makes this a direct per-id lookup, no
// recursive traversal.
func (h *Hierarchy) GetAncestors(ctx context.Context, tenantID string) ([]*Tenant, error) {
	t, err := h.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, notFoundf("tenant %s", tenantID)
	}
	out := make([]*Tenant, 0, len(t.Path)-1)
	for _, id := range t.Path[:len(t.Path)-1] {
		a, err := h.store.GetTenant(ctx, id)
		if err != nil {
			return nil, notFoundf("ancestor tenant %s of %s", id, tenantID)
		}
		out = append(out, a)
	}
	return out, nil
}

// Chain returns [root .. tenant], the ancestor chain including the tenant as
// the final element. This is the walk order the resolver consumes.
func (h *Hierarchy) Chain(ctx context.Context, tenantID string) ([]*Tenant, error) {
	t, err := h.store.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, notFoundf("tenant %s", tenantID)
	}
	ancestors, err := h.GetAncestors(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	return append(ancestors, t), nil
}

// GetChildren returns the direct children of a tenant.
func (h *Hierarchy) GetChildren(ctx context.Context, tenantID string) ([]*Tenant, error) {
	if _, err := h.store.GetTenant(ctx, tenantID); err != nil {
		return nil, notFoundf("tenant %s", tenantID)
	}
	kids, err := h.store.ListChildren(ctx, tenantID)
	if err != nil {
		return nil, storef("list children", err)
	}
	return kids, nil
}

// GetDescendants returns every strict descendant in path order (parents
// before their children; siblings ordered by path string).
func (h *Hierarchy) GetDescendants(ctx context.Context, tenantID string) ([]*Tenant, error) {
	if _, err := h.store.GetTenant(ctx, tenantID); err != nil {
		return nil, notFoundf("tenant %s", tenantID)
	}
	desc, err := h.store.ListDescendants(ctx, tenantID)
	if err != nil {
		return nil, storef("list descendants", err)
	}
	return desc, nil
}

// MoveTenant re-parents a tenant. The whole subtree is validated against the
// depth limit before anything is written, then persisted in a single atomic
// batch so concurrent resolvers never see a partially moved subtree.
func (h *Hierarchy) MoveTenant(ctx context.Context, tenantID, newParentID string) error {
	t, err := h.store.GetTenant(ctx, tenantID)
	if err != nil {
		return notFoundf("tenant %s", tenantID)
	}
	if tenantID == newParentID {
		return ErrCyclicMove
	}
	parent, err := h.store.GetTenant(ctx, newParentID)
	if err != nil {
		return notFoundf("new parent tenant %s", newParentID)
	}
	if parent.Status != TenantActive {
		return validationf("new parent tenant %s is not active", parent.ID)
	}
	if t.IsAncestorOf(parent) {
		return ErrCyclicMove
	}

	descendants, err := h.store.ListDescendants(ctx, tenantID)
	if err != nil {
		return storef("list descendants", err)
	}

	limit := h.effectiveMaxDepth(parent)
	newPath := append(append([]string{}, parent.Path...), t.ID)
	oldPrefix := len(t.Path)
	levelDelta := len(newPath) - oldPrefix

	updates := make([]*Tenant, 0, len(descendants)+1)
	moved := *t
	moved.ParentID = parent.ID
	moved.Path = newPath
	moved.Level = len(newPath) - 1
	moved.UpdatedAt = time.Now()
	if moved.Level > limit {
		return depthf(moved.Level, limit)
	}
	updates = append(updates, &moved)

	for _, d := range descendants {
		dup := *d
		dup.Path = append(append([]string{}, newPath...), d.Path[oldPrefix:]...)
		dup.Level = d.Level + levelDelta
		dup.UpdatedAt = moved.UpdatedAt
		if dup.Level > limit {
			// nothing was written yet: the whole move fails
			return depthf(dup.Level, limit)
		}
		updates = append(updates, &dup)
	}

	if err := h.store.SaveTenants(ctx, updates); err != nil {
		return storef("save moved subtree", err)
	}
	h.logger.Info("tenant moved", "tenant", tenantID, "new_parent", newParentID, "subtree", len(updates))
	return nil
}

// ArchiveTenant flips the tenant to archived. The node stays resolvable for
// audit but it and its subtree drop out of active resolution.
func (h *Hierarchy) ArchiveTenant(ctx context.Context, tenantID string) error {
	return h.setStatus(ctx, tenantID, TenantArchived)
}

// RestoreTenant flips an archived tenant back to active.
func (h *Hierarchy) RestoreTenant(ctx context.Context, tenantID string) error {
	return h.setStatus(ctx, tenantID, TenantActive)
}

func (h *Hierarchy) setStatus(ctx context.Context, tenantID string, status TenantStatus) error {
	t, err := h.store.GetTenant(ctx, tenantID)
	if err != nil {
		return notFoundf("tenant %s", tenantID)
	}
	if t.Status == status {
		return nil
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	if err := h.store.UpdateTenant(ctx, t); err != nil {
		return storef("update tenant status", err)
	}
	return nil
}

// DeleteTenant permanently removes a tenant. Reserved for tenants that are
// already archived and have no children.
func (h *Hierarchy) DeleteTenant(ctx context.Context, tenantID string) error {
	t, err := h.store.GetTenant(ctx, tenantID)
	if err != nil {
		return notFoundf("tenant %s", tenantID)
	}
	if t.Status != TenantArchived {
		return validationf("tenant %s must be archived before permanent delete", tenantID)
	}
	kids, err := h.store.ListChildren(ctx, tenantID)
	if err != nil {
		return storef("list children", err)
	}
	if len(kids) > 0 {
		return validationf("tenant %s still has %d children", tenantID, len(kids))
	}
	if err := h.store.DeleteTenant(ctx, tenantID); err != nil {
		return storef("delete tenant", err)
	}
	return nil
}

func (h *Hierarchy) effectiveMaxDepth(t *Tenant) int {
	if t != nil && t.MaxDepth > 0 {
		return t.MaxDepth
	}
	return h.maxDepth
}
