package guardian_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/oarkflow/guardian"
	"github.com/oarkflow/guardian/stores"
)

func rcAt(t *testing.T, ts string) *guardian.RequestContext {
	t.Helper()
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		t.Fatalf("parse %s: %v", ts, err)
	}
	return &guardian.RequestContext{Timestamp: parsed}
}

func TestCreatePolicyValidation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	root := mustTenant(t, eng, "Root", "")

	cases := []*guardian.Policy{
		{Name: "bad-effect", TenantID: root.ID, Effect: "maybe", Resources: []string{"*"}, Actions: []string{"*"}},
		{Name: "no-resources", TenantID: root.ID, Effect: guardian.EffectAllow, Actions: []string{"read"}},
		{Name: "no-actions", TenantID: root.ID, Effect: guardian.EffectAllow, Resources: []string{"documents"}},
	}
	for _, p := range cases {
		if _, err := eng.CreatePolicy(ctx, p, "admin"); !errors.Is(err, guardian.ErrValidation) {
			t.Fatalf("policy %s: expected ErrValidation, got %v", p.Name, err)
		}
	}

	unknown := &guardian.Policy{
		Name: "unknown-kind", TenantID: root.ID, Effect: guardian.EffectAllow,
		Resources: []string{"documents"}, Actions: []string{"read"},
		Conditions: guardian.ConditionSet{&guardian.UnknownCondition{RawKind: "geo_fence"}},
	}
	if _, err := eng.CreatePolicy(ctx, unknown, "admin"); !errors.Is(err, guardian.ErrValidation) {
		t.Fatalf("unknown condition kind must be rejected at creation, got %v", err)
	}
}

func TestDenyPolicyOverridesGrant(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	root := mustTenant(t, eng, "Root", "")

	mustGrant(t, eng, &guardian.Grant{
		UserID: "alice", TenantID: root.ID,
		ResourceType: "documents", Actions: []string{"read"}, GrantedBy: "admin",
	})
	if _, err := eng.CreatePolicy(ctx, &guardian.Policy{
		Name: "freeze", TenantID: root.ID, Effect: guardian.EffectDeny,
		Resources: []string{"documents"}, Actions: []string{"read"},
		Enabled: true,
	}, "admin"); err != nil {
		t.Fatalf("create policy: %v", err)
	}

	d := eng.Authorize(ctx, "alice", root.ID, "documents", "read", "", nil)
	if d.Allowed || d.Source != guardian.SourcePolicy {
		t.Fatalf("deny policy must override the grant, got %+v", d)
	}
	if d.Policy == nil || d.Policy.Name != "freeze" {
		t.Fatalf("decision should carry the denying policy")
	}
}

func TestAllowPolicyAsSoleSource(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	root := mustTenant(t, eng, "Root", "")

	if _, err := eng.CreatePolicy(ctx, &guardian.Policy{
		Name: "open-reports", TenantID: root.ID, Effect: guardian.EffectAllow,
		Resources: []string{"reports"}, Actions: []string{"read"},
		Enabled: true,
	}, "admin"); err != nil {
		t.Fatalf("create policy: %v", err)
	}

	d := eng.Authorize(ctx, "nobody", root.ID, "reports", "read", "", nil)
	if !d.Allowed || d.Source != guardian.SourcePolicy {
		t.Fatalf("allow policy should grant access with no other source, got %+v", d)
	}
}

func TestAllowPolicyCannotWiden(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	root := mustTenant(t, eng, "Root", "")

	if _, err := eng.CreatePolicy(ctx, &guardian.Policy{
		Name: "open-reports", TenantID: root.ID, Effect: guardian.EffectAllow,
		Resources: []string{"reports"}, Actions: []string{"read"},
		Enabled: true,
	}, "admin"); err != nil {
		t.Fatalf("create policy: %v", err)
	}

	// outside the declared action set
	if d := eng.Authorize(ctx, "nobody", root.ID, "reports", "write", "", nil); d.Allowed {
		t.Fatalf("allow policy widened beyond its action set: %+v", d)
	}
	// outside the declared resource set
	if d := eng.Authorize(ctx, "nobody", root.ID, "documents", "read", "", nil); d.Allowed {
		t.Fatalf("allow policy widened beyond its resource set: %+v", d)
	}
}

func TestDisabledPolicyIgnored(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	root := mustTenant(t, eng, "Root", "")

	if _, err := eng.CreatePolicy(ctx, &guardian.Policy{
		Name: "disabled-deny", TenantID: root.ID, Effect: guardian.EffectDeny,
		Resources: []string{"*"}, Actions: []string{"*"},
		Enabled: false,
	}, "admin"); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	mustGrant(t, eng, &guardian.Grant{
		UserID: "alice", TenantID: root.ID,
		ResourceType: "documents", Actions: []string{"read"}, GrantedBy: "admin",
	})

	if d := eng.Authorize(ctx, "alice", root.ID, "documents", "read", "", nil); !d.Allowed {
		t.Fatalf("disabled policy must not deny: %+v", d)
	}
}

func TestTimeRangePolicyGatesAccess(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	root := mustTenant(t, eng, "Root", "")

	if _, err := eng.CreatePolicy(ctx, &guardian.Policy{
		Name: "business-hours-deny-off-hours", TenantID: root.ID, Effect: guardian.EffectDeny,
		Resources: []string{"documents"}, Actions: []string{"read"},
		Conditions: guardian.ConditionSet{&guardian.TimeRangeCondition{Start: "17:00", End: "09:00", Timezone: "UTC"}},
		Enabled:    true,
	}, "admin"); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	mustGrant(t, eng, &guardian.Grant{
		UserID: "alice", TenantID: root.ID,
		ResourceType: "documents", Actions: []string{"read"}, GrantedBy: "admin",
	})

	if d := eng.Authorize(ctx, "alice", root.ID, "documents", "read", "", rcAt(t, "2024-01-15T10:00:00Z")); !d.Allowed {
		t.Fatalf("inside business hours, deny window must not match: %+v", d)
	}
	if d := eng.Authorize(ctx, "alice", root.ID, "documents", "read", "", rcAt(t, "2024-01-15T20:00:00Z")); d.Allowed {
		t.Fatalf("outside business hours, deny window must match: %+v", d)
	}
}

func TestUnknownConditionAtEvaluationYieldsErrorDecision(t *testing.T) {
	ctx := context.Background()

	// a policy with an unknown condition kind written by a newer deployment:
	// it bypasses CreatePolicy validation by going straight to the store
	policyStore := stores.NewMemoryPolicyStore()
	eng, err := guardian.NewEngine(
		stores.NewMemoryTenantStore(),
		stores.NewMemoryGrantStore(),
		stores.NewMemoryRoleStore(),
		stores.NewMemoryAssignmentStore(),
		policyStore,
		stores.NewMemoryAuditStore(),
		guardian.WithCacheTTL(0),
	)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(eng.Close)

	root := mustTenant(t, eng, "Root", "")
	mustGrant(t, eng, &guardian.Grant{
		UserID: "alice", TenantID: root.ID,
		ResourceType: "documents", Actions: []string{"read"}, GrantedBy: "admin",
	})
	if err := policyStore.CreatePolicy(ctx, &guardian.Policy{
		ID: "p-future", Name: "future-kind", TenantID: root.ID, Effect: guardian.EffectAllow,
		Resources: []string{"documents"}, Actions: []string{"read"},
		Conditions: guardian.ConditionSet{&guardian.UnknownCondition{RawKind: "device_posture"}},
		Enabled:    true,
	}); err != nil {
		t.Fatalf("seed policy: %v", err)
	}

	d := eng.Authorize(ctx, "alice", root.ID, "documents", "read", "", nil)
	if d.Allowed {
		t.Fatalf("unknown condition must never produce an allow: %+v", d)
	}
	if d.Source != guardian.SourceError {
		t.Fatalf("expected error decision, got source=%s", d.Source)
	}
	if !strings.Contains(d.Error, "device_posture") {
		t.Fatalf("error should name the unknown kind, got %q", d.Error)
	}

	// the engine's own write path rejects the same policy outright
	if err := eng.UpdatePolicy(ctx, &guardian.Policy{
		ID: "p-future", Name: "future-kind", TenantID: root.ID, Effect: guardian.EffectAllow,
		Resources: []string{"documents"}, Actions: []string{"read"},
		Conditions: guardian.ConditionSet{&guardian.UnknownCondition{RawKind: "device_posture"}},
		Enabled:    true,
	}, "admin"); !errors.Is(err, guardian.ErrValidation) {
		t.Fatalf("UpdatePolicy should reject unknown kinds, got %v", err)
	}
}

func TestPolicyPriorityOrdersEvaluation(t *testing.T) {
	eng, _ := newTestEngine(t)
	ctx := context.Background()
	root := mustTenant(t, eng, "Root", "")

	if _, err := eng.CreatePolicy(ctx, &guardian.Policy{
		Name: "low-allow", TenantID: root.ID, Effect: guardian.EffectAllow,
		Resources: []string{"documents"}, Actions: []string{"read"},
		Priority: 1, Enabled: true,
	}, "admin"); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	if _, err := eng.CreatePolicy(ctx, &guardian.Policy{
		Name: "high-deny", TenantID: root.ID, Effect: guardian.EffectDeny,
		Resources: []string{"documents"}, Actions: []string{"read"},
		Priority: 10, Enabled: true,
	}, "admin"); err != nil {
		t.Fatalf("create policy: %v", err)
	}

	d := eng.Authorize(ctx, "alice", root.ID, "documents", "read", "", nil)
	if d.Allowed {
		t.Fatalf("deny must win regardless of allow priority: %+v", d)
	}
	if d.Policy == nil || !strings.Contains(d.Policy.Name, "high-deny") {
		t.Fatalf("expected the high priority deny policy, got %+v", d.Policy)
	}
}
