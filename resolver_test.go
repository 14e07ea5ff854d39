package guardian_test

import (
	"context"
	"testing"
	"time"

	"github.com/oarkflow/guardian"
)

func mustGrant(t *testing.T, eng *guardian.Engine, g *guardian.Grant) *guardian.Grant {
	t.Helper()
	out, err := eng.GrantPermission(context.Background(), g)
	if err != nil {
		t.Fatalf("grant: %v", err)
	}
	return out
}

func TestInheritedGrantAllowsDescendant(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	parent := mustTenant(t, eng, "Parent", "")
	child := mustTenant(t, eng, "Child", parent.ID)
	grandchild := mustTenant(t, eng, "Grandchild", child.ID)

	mustGrant(t, eng, &guardian.Grant{
		UserID: "alice", TenantID: parent.ID,
		ResourceType: "documents", Actions: []string{"read", "write"},
		GrantedBy: "admin",
	})

	d := eng.Authorize(ctx, "alice", grandchild.ID, "documents", "read", "", nil)
	if !d.Allowed || d.Source != guardian.SourceInherited {
		t.Fatalf("expected inherited allow, got allowed=%v source=%s reason=%q", d.Allowed, d.Source, d.Reason)
	}
	if d.SourceTenantID != parent.ID || d.InheritanceLevel != 2 {
		t.Fatalf("expected source=%s level=2, got source=%s level=%d", parent.ID, d.SourceTenantID, d.InheritanceLevel)
	}

	direct := eng.Authorize(ctx, "alice", parent.ID, "documents", "write", "", nil)
	if !direct.Allowed || direct.Source != guardian.SourceDirect {
		t.Fatalf("expected direct allow at grant tenant, got %+v", direct)
	}
}

func TestBlockInheritanceStopsAtGrantTenant(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	parent := mustTenant(t, eng, "Parent", "")
	child := mustTenant(t, eng, "Child", parent.ID)

	mustGrant(t, eng, &guardian.Grant{
		UserID: "bob", TenantID: parent.ID,
		ResourceType: "reports", Actions: []string{"read"},
		BlockInheritance: true, GrantedBy: "admin",
	})

	at := eng.Authorize(ctx, "bob", parent.ID, "reports", "read", "", nil)
	if !at.Allowed || at.Source != guardian.SourceDirect {
		t.Fatalf("expected direct allow at grant tenant, got %+v", at)
	}

	below := eng.ResolveInheritedAccess(ctx, "bob", child.ID, "reports", "read")
	if below.Allowed {
		t.Fatalf("blocked grant leaked to descendant: %+v", below)
	}
	if below.Source != guardian.SourceNone || below.Reason != "Permission inheritance blocked" {
		t.Fatalf("expected blocked reason, got source=%s reason=%q", below.Source, below.Reason)
	}
}

func TestClosestGrantWins(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustTenant(t, eng, "Root", "")
	mid := mustTenant(t, eng, "Mid", root.ID)
	leaf := mustTenant(t, eng, "Leaf", mid.ID)

	mustGrant(t, eng, &guardian.Grant{
		UserID: "carol", TenantID: root.ID,
		ResourceType: "documents", Actions: []string{"read"}, GrantedBy: "admin",
	})
	mustGrant(t, eng, &guardian.Grant{
		UserID: "carol", TenantID: mid.ID,
		ResourceType: "documents", Actions: []string{"read"}, GrantedBy: "admin",
	})

	d := eng.ResolveInheritedAccess(ctx, "carol", leaf.ID, "documents", "read")
	if !d.Allowed || d.SourceTenantID != mid.ID || d.InheritanceLevel != 1 {
		t.Fatalf("expected closest grant from %s at level 1, got source=%s level=%d", mid.ID, d.SourceTenantID, d.InheritanceLevel)
	}

	eps, err := eng.GetInheritedPermissions(ctx, "carol", leaf.ID)
	if err != nil {
		t.Fatalf("inherited permissions: %v", err)
	}
	if len(eps) != 1 {
		t.Fatalf("expected shadowed root grant merged away, got %d entries", len(eps))
	}
	if eps[0].SourceTenantID != mid.ID {
		t.Fatalf("winner should come from %s, got %s", mid.ID, eps[0].SourceTenantID)
	}
}

func TestExpiredGrantExcluded(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustTenant(t, eng, "Root", "")
	mustGrant(t, eng, &guardian.Grant{
		UserID: "dave", TenantID: root.ID,
		ResourceType: "documents", Actions: []string{"read"},
		ExpiresAt: time.Now().Add(-time.Hour), GrantedBy: "admin",
	})

	d := eng.Authorize(ctx, "dave", root.ID, "documents", "read", "", nil)
	if d.Allowed {
		t.Fatalf("expired grant allowed access: %+v", d)
	}

	eps, err := eng.GetInheritedPermissions(ctx, "dave", root.ID)
	if err != nil {
		t.Fatalf("inherited permissions: %v", err)
	}
	if len(eps) != 0 {
		t.Fatalf("expired grant present in effective set")
	}
}

func TestResourceScopedGrant(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustTenant(t, eng, "Root", "")
	mustGrant(t, eng, &guardian.Grant{
		UserID: "erin", TenantID: root.ID,
		ResourceType: "documents", ResourceID: "doc-1",
		Actions: []string{"read"}, GrantedBy: "admin",
	})

	if d := eng.Authorize(ctx, "erin", root.ID, "documents", "read", "doc-1", nil); !d.Allowed {
		t.Fatalf("scoped grant should cover its own resource: %+v", d)
	}
	if d := eng.Authorize(ctx, "erin", root.ID, "documents", "read", "doc-2", nil); d.Allowed {
		t.Fatalf("scoped grant leaked to another resource: %+v", d)
	}
	// a type-level query asks "any resource of this type"
	if d := eng.Authorize(ctx, "erin", root.ID, "documents", "read", "", nil); !d.Allowed {
		t.Fatalf("scoped grant should satisfy a type-level query: %+v", d)
	}
}

func TestRoleFallbackIsTenantScoped(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	parent := mustTenant(t, eng, "Parent", "")
	child := mustTenant(t, eng, "Child", parent.ID)

	role, err := eng.CreateRole(ctx, &guardian.Role{
		Name: "editor", TenantID: parent.ID,
		Permissions: []string{"documents:*"},
	}, "admin")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := eng.AssignRole(ctx, &guardian.RoleAssignment{
		UserID: "frank", RoleID: role.ID, TenantID: parent.ID, AssignedBy: "admin",
	}); err != nil {
		t.Fatalf("assign role: %v", err)
	}

	at := eng.Authorize(ctx, "frank", parent.ID, "documents", "write", "", nil)
	if !at.Allowed || at.Source != guardian.SourceRole || at.RoleID != role.ID {
		t.Fatalf("expected role allow at assignment tenant, got %+v", at)
	}

	// role assignments do not inherit down the tenant tree
	below := eng.Authorize(ctx, "frank", child.ID, "documents", "write", "", nil)
	if below.Allowed {
		t.Fatalf("role assignment leaked to descendant tenant: %+v", below)
	}
}

func TestRoleInheritanceChainWithCycle(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustTenant(t, eng, "Root", "")

	base, err := eng.CreateRole(ctx, &guardian.Role{ID: "base", Name: "base", Permissions: []string{"documents:read"}}, "admin")
	if err != nil {
		t.Fatalf("create base role: %v", err)
	}
	super, err := eng.CreateRole(ctx, &guardian.Role{ID: "super", Name: "super", Permissions: []string{"reports:read"}, InheritsFrom: base.ID}, "admin")
	if err != nil {
		t.Fatalf("create super role: %v", err)
	}
	// introduce a cycle behind the engine's back
	base.InheritsFrom = super.ID
	if err := eng.UpdateRole(ctx, base, "admin"); err != nil {
		t.Fatalf("update role: %v", err)
	}

	if err := eng.AssignRole(ctx, &guardian.RoleAssignment{UserID: "gina", RoleID: super.ID, TenantID: root.ID}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	// inherited permission through the chain, and the cycle terminates
	d := eng.Authorize(ctx, "gina", root.ID, "documents", "read", "", nil)
	if !d.Allowed || d.Source != guardian.SourceRole {
		t.Fatalf("expected allow through role chain, got %+v", d)
	}
	if d := eng.Authorize(ctx, "gina", root.ID, "secrets", "read", "", nil); d.Allowed {
		t.Fatalf("cycle produced a phantom allow: %+v", d)
	}
}

func TestExpiredAssignmentExcluded(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()

	root := mustTenant(t, eng, "Root", "")
	role, err := eng.CreateRole(ctx, &guardian.Role{Name: "viewer", Permissions: []string{"documents:read"}}, "admin")
	if err != nil {
		t.Fatalf("create role: %v", err)
	}
	if err := eng.AssignRole(ctx, &guardian.RoleAssignment{
		UserID: "hank", RoleID: role.ID, TenantID: root.ID,
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	if d := eng.Authorize(ctx, "hank", root.ID, "documents", "read", "", nil); d.Allowed {
		t.Fatalf("expired assignment allowed access: %+v", d)
	}
}
