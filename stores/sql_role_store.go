package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/guardian"
)

// SQLRoleStore persists roles in SQL (squealx). Permission tokens are a JSON
// column, not a join table, keeping the hot resolution path to one query.
type SQLRoleStore struct {
	db *squealx.DB
}

func NewSQLRoleStore(db *squealx.DB) *SQLRoleStore {
	return &SQLRoleStore{db: db}
}

func roleArgs(r *guardian.Role) map[string]any {
	perms, _ := json.Marshal(r.Permissions)
	return map[string]any{
		"id":               r.ID,
		"tenant_id":        r.TenantID,
		"name":             r.Name,
		"is_system":        boolToInt(r.IsSystem),
		"permissions_json": string(perms),
		"inherits_from":    r.InheritsFrom,
		"created_by":       r.CreatedBy,
		"created_at":       r.CreatedAt,
	}
}

func (s *SQLRoleStore) CreateRole(ctx context.Context, r *guardian.Role) error {
	q := `INSERT INTO roles(id, tenant_id, name, is_system, permissions_json, inherits_from, created_by, created_at)
	      VALUES(:id, :tenant_id, :name, :is_system, :permissions_json, :inherits_from, :created_by, :created_at)`
	_, err := s.db.NamedExecContext(ctx, q, roleArgs(r))
	return err
}

func (s *SQLRoleStore) UpdateRole(ctx context.Context, r *guardian.Role) error {
	q := `UPDATE roles SET tenant_id=:tenant_id, name=:name, is_system=:is_system, permissions_json=:permissions_json, inherits_from=:inherits_from WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, roleArgs(r))
	return err
}

func (s *SQLRoleStore) DeleteRole(ctx context.Context, id string) error {
	q := `DELETE FROM roles WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

const roleColumns = `id, tenant_id, name, is_system, permissions_json, inherits_from, created_by, created_at`

func scanRole(r rowScanner) (*guardian.Role, error) {
	var id, tenantID, name, permsJSON, inheritsFrom, createdBy string
	var isSystem int
	var createdRaw interface{}
	if err := r.Scan(&id, &tenantID, &name, &isSystem, &permsJSON, &inheritsFrom, &createdBy, &createdRaw); err != nil {
		return nil, err
	}
	role := &guardian.Role{
		ID:           id,
		TenantID:     tenantID,
		Name:         name,
		IsSystem:     isSystem != 0,
		InheritsFrom: inheritsFrom,
		CreatedBy:    createdBy,
		CreatedAt:    scanTime(createdRaw),
	}
	_ = json.Unmarshal([]byte(permsJSON), &role.Permissions)
	return role, nil
}

func (s *SQLRoleStore) GetRole(ctx context.Context, id string) (*guardian.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE id = :id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, fmt.Errorf("role not found: %s", id)
	}
	return scanRole(r)
}

func (s *SQLRoleStore) ListRoles(ctx context.Context, tenantID string) ([]*guardian.Role, error) {
	q := `SELECT ` + roleColumns + ` FROM roles WHERE tenant_id = :tenant_id OR tenant_id = '' ORDER BY id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*guardian.Role, 0)
	for r.Next() {
		role, err := scanRole(r)
		if err != nil {
			return nil, err
		}
		out = append(out, role)
	}
	return out, nil
}
