package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/guardian"
)

// SQLPolicyStore persists policies in SQL (squealx). Conditions keep their
// tagged JSON form, so unknown kinds written by a newer deployment survive
// round-trips and still fail closed at evaluation.
type SQLPolicyStore struct {
	db *squealx.DB
}

func NewSQLPolicyStore(db *squealx.DB) *SQLPolicyStore {
	return &SQLPolicyStore{db: db}
}

func policyArgs(p *guardian.Policy) map[string]any {
	conditions, _ := json.Marshal(p.Conditions)
	resources, _ := json.Marshal(p.Resources)
	actions, _ := json.Marshal(p.Actions)
	return map[string]any{
		"id":              p.ID,
		"tenant_id":       p.TenantID,
		"name":            p.Name,
		"conditions_json": string(conditions),
		"effect":          string(p.Effect),
		"resources_json":  string(resources),
		"actions_json":    string(actions),
		"priority":        p.Priority,
		"enabled":         boolToInt(p.Enabled),
		"created_at":      p.CreatedAt,
		"updated_at":      p.UpdatedAt,
	}
}

func (s *SQLPolicyStore) CreatePolicy(ctx context.Context, p *guardian.Policy) error {
	q := `INSERT INTO policies(id, tenant_id, name, conditions_json, effect, resources_json, actions_json, priority, enabled, created_at, updated_at)
	      VALUES(:id, :tenant_id, :name, :conditions_json, :effect, :resources_json, :actions_json, :priority, :enabled, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, policyArgs(p))
	return err
}

func (s *SQLPolicyStore) UpdatePolicy(ctx context.Context, p *guardian.Policy) error {
	q := `UPDATE policies SET tenant_id=:tenant_id, name=:name, conditions_json=:conditions_json, effect=:effect, resources_json=:resources_json, actions_json=:actions_json, priority=:priority, enabled=:enabled, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, policyArgs(p))
	return err
}

func (s *SQLPolicyStore) DeletePolicy(ctx context.Context, id string) error {
	q := `DELETE FROM policies WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

const policyColumns = `id, tenant_id, name, conditions_json, effect, resources_json, actions_json, priority, enabled, created_at, updated_at`

func scanPolicy(r rowScanner) (*guardian.Policy, error) {
	var id, tenantID, name, conditionsJSON, effect, resourcesJSON, actionsJSON string
	var priority, enabled int
	var createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &tenantID, &name, &conditionsJSON, &effect, &resourcesJSON, &actionsJSON, &priority, &enabled, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	p := &guardian.Policy{
		ID:        id,
		TenantID:  tenantID,
		Name:      name,
		Effect:    guardian.Effect(effect),
		Priority:  priority,
		Enabled:   enabled != 0,
		CreatedAt: scanTime(createdRaw),
		UpdatedAt: scanTime(updatedRaw),
	}
	_ = json.Unmarshal([]byte(conditionsJSON), &p.Conditions)
	_ = json.Unmarshal([]byte(resourcesJSON), &p.Resources)
	_ = json.Unmarshal([]byte(actionsJSON), &p.Actions)
	return p, nil
}

func (s *SQLPolicyStore) GetPolicy(ctx context.Context, id string) (*guardian.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("policy not found: %s", id)
	}
	return scanPolicy(r)
}

func (s *SQLPolicyStore) ListPolicies(ctx context.Context, tenantID string) ([]*guardian.Policy, error) {
	q := `SELECT ` + policyColumns + ` FROM policies WHERE tenant_id = :tenant_id OR tenant_id = '' ORDER BY priority DESC, id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*guardian.Policy, 0)
	for r.Next() {
		p, err := scanPolicy(r)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
