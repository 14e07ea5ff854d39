package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/guardian"
)

// SQLGrantStore persists direct grants in SQL (squealx). Action and condition
// sets are stored as JSON columns, matching the role permission encoding.
type SQLGrantStore struct {
	db *squealx.DB
}

func NewSQLGrantStore(db *squealx.DB) *SQLGrantStore {
	return &SQLGrantStore{db: db}
}

func grantArgs(g *guardian.Grant) map[string]any {
	actions, _ := json.Marshal(g.Actions)
	conditions, _ := json.Marshal(g.Conditions)
	return map[string]any{
		"id":                g.ID,
		"user_id":           g.UserID,
		"tenant_id":         g.TenantID,
		"resource_type":     g.ResourceType,
		"resource_id":       g.ResourceID,
		"actions_json":      string(actions),
		"conditions_json":   string(conditions),
		"block_inheritance": boolToInt(g.BlockInheritance),
		"expires_at":        sqlNullTimeOrNil(g.ExpiresAt),
		"granted_by":        g.GrantedBy,
		"created_at":        g.CreatedAt,
		"updated_at":        g.UpdatedAt,
	}
}

func (s *SQLGrantStore) CreateGrant(ctx context.Context, g *guardian.Grant) error {
	q := `INSERT INTO permission_grants(id, user_id, tenant_id, resource_type, resource_id, actions_json, conditions_json, block_inheritance, expires_at, granted_by, created_at, updated_at)
	      VALUES(:id, :user_id, :tenant_id, :resource_type, :resource_id, :actions_json, :conditions_json, :block_inheritance, :expires_at, :granted_by, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, grantArgs(g))
	return err
}

func (s *SQLGrantStore) UpdateGrant(ctx context.Context, g *guardian.Grant) error {
	q := `UPDATE permission_grants SET user_id=:user_id, tenant_id=:tenant_id, resource_type=:resource_type, resource_id=:resource_id, actions_json=:actions_json, conditions_json=:conditions_json, block_inheritance=:block_inheritance, expires_at=:expires_at, granted_by=:granted_by, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, grantArgs(g))
	return err
}

func (s *SQLGrantStore) RevokeGrant(ctx context.Context, id string) error {
	q := `DELETE FROM permission_grants WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

const grantColumns = `id, user_id, tenant_id, resource_type, resource_id, actions_json, conditions_json, block_inheritance, expires_at, granted_by, created_at, updated_at`

func scanGrant(r rowScanner) (*guardian.Grant, error) {
	var id, userID, tenantID, resourceType, resourceID, actionsJSON, conditionsJSON, grantedBy string
	var blockInheritance int
	var expiresRaw, createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &userID, &tenantID, &resourceType, &resourceID, &actionsJSON, &conditionsJSON, &blockInheritance, &expiresRaw, &grantedBy, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	g := &guardian.Grant{
		ID:               id,
		UserID:           userID,
		TenantID:         tenantID,
		ResourceType:     resourceType,
		ResourceID:       resourceID,
		BlockInheritance: blockInheritance != 0,
		GrantedBy:        grantedBy,
		CreatedAt:        scanTime(createdRaw),
		UpdatedAt:        scanTime(updatedRaw),
	}
	if expiresRaw != nil {
		g.ExpiresAt = scanTime(expiresRaw)
	}
	_ = json.Unmarshal([]byte(actionsJSON), &g.Actions)
	if conditionsJSON != "" {
		_ = json.Unmarshal([]byte(conditionsJSON), &g.Conditions)
	}
	return g, nil
}

func (s *SQLGrantStore) GetGrant(ctx context.Context, id string) (*guardian.Grant, error) {
	q := `SELECT ` + grantColumns + ` FROM permission_grants WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("grant not found: %s", id)
	}
	return scanGrant(r)
}

func (s *SQLGrantStore) ListGrants(ctx context.Context, userID, tenantID string) ([]*guardian.Grant, error) {
	q := `SELECT ` + grantColumns + ` FROM permission_grants WHERE user_id = :user_id AND tenant_id = :tenant_id ORDER BY id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*guardian.Grant, 0)
	for r.Next() {
		g, err := scanGrant(r)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}
