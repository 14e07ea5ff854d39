package guardian

import (
	"context"
	"sort"

	"github.com/oarkflow/guardian/logger"
)

// PolicyEngine validates and evaluates tenant-scoped conditional rules.
// Policies never widen beyond their declared resources/actions, and a
// condition that cannot be evaluated is an error, not an allow.
type PolicyEngine struct {
	store  PolicyStore
	logger logger.Logger
}

func NewPolicyEngine(store PolicyStore, log logger.Logger) *PolicyEngine {
	if log == nil {
		log = logger.NewNullLogger()
	}
	return &PolicyEngine{store: store, logger: log}
}

// Validate checks a policy before it is persisted: a known effect, non-empty
// resource and action sets, and only known condition kinds.
func (e *PolicyEngine) Validate(p *Policy) error {
	if p == nil || p.Name == "" {
		return validationf("policy name is required")
	}
	if p.Effect != EffectAllow && p.Effect != EffectDeny {
		return validationf("unknown policy effect %q", p.Effect)
	}
	if len(p.Resources) == 0 {
		return validationf("policy %s has no resources", p.Name)
	}
	if len(p.Actions) == 0 {
		return validationf("policy %s has no actions", p.Name)
	}
	return p.Conditions.Validate()
}

// Evaluate runs every condition of the policy against the request context.
// Conditions are ANDed; the first evaluation error aborts and is returned.
func (e *PolicyEngine) Evaluate(p *Policy, rc *RequestContext) (bool, error) {
	return p.Conditions.EvaluateAll(rc)
}

// EvaluateByID loads a policy and evaluates it.
func (e *PolicyEngine) EvaluateByID(ctx context.Context, policyID string, rc *RequestContext) (bool, error) {
	p, err := e.store.GetPolicy(ctx, policyID)
	if err != nil {
		return false, notFoundf("policy %s", policyID)
	}
	return e.Evaluate(p, rc)
}

// Matching returns the enabled policies scoped to tenantID (plus global ones)
// whose declared resources/actions cover the pair, highest priority first.
func (e *PolicyEngine) Matching(ctx context.Context, tenantID, resourceType, action string) ([]*Policy, error) {
	policies, err := e.store.ListPolicies(ctx, tenantID)
	if err != nil {
		return nil, storef("list policies", err)
	}
	out := make([]*Policy, 0, len(policies))
	for _, p := range policies {
		if p.Enabled && p.AppliesTo(resourceType, action) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Priority > out[j].Priority })
	return out, nil
}
