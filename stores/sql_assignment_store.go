package stores

import (
	"context"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/guardian"
)

// SQLAssignmentStore persists user-role bindings in SQL (squealx).
// Re-assigning the same (user, role, tenant) replaces the previous row.
type SQLAssignmentStore struct {
	db *squealx.DB
}

func NewSQLAssignmentStore(db *squealx.DB) *SQLAssignmentStore {
	return &SQLAssignmentStore{db: db}
}

func (s *SQLAssignmentStore) AssignRole(ctx context.Context, a *guardian.RoleAssignment) error {
	q := `INSERT OR REPLACE INTO role_assignments(user_id, role_id, tenant_id, assigned_by, assigned_at, expires_at)
	      VALUES(:user_id, :role_id, :tenant_id, :assigned_by, :assigned_at, :expires_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"user_id":     a.UserID,
		"role_id":     a.RoleID,
		"tenant_id":   a.TenantID,
		"assigned_by": a.AssignedBy,
		"assigned_at": a.AssignedAt,
		"expires_at":  sqlNullTimeOrNil(a.ExpiresAt),
	})
	return err
}

func (s *SQLAssignmentStore) RevokeRole(ctx context.Context, userID, roleID, tenantID string) error {
	q := `DELETE FROM role_assignments WHERE user_id = :user_id AND role_id = :role_id AND tenant_id = :tenant_id`
	res, err := s.db.NamedExecContext(ctx, q, map[string]any{"user_id": userID, "role_id": roleID, "tenant_id": tenantID})
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("assignment not found: %s/%s/%s", userID, roleID, tenantID)
	}
	return nil
}

func (s *SQLAssignmentStore) ListAssignments(ctx context.Context, userID, tenantID string) ([]*guardian.RoleAssignment, error) {
	q := `SELECT user_id, role_id, tenant_id, assigned_by, assigned_at, expires_at FROM role_assignments WHERE user_id = :user_id AND tenant_id = :tenant_id ORDER BY role_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"user_id": userID, "tenant_id": tenantID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*guardian.RoleAssignment, 0)
	for r.Next() {
		var uid, rid, tid, assignedBy string
		var assignedRaw, expiresRaw interface{}
		if err := r.Scan(&uid, &rid, &tid, &assignedBy, &assignedRaw, &expiresRaw); err != nil {
			return nil, err
		}
		a := &guardian.RoleAssignment{
			UserID:     uid,
			RoleID:     rid,
			TenantID:   tid,
			AssignedBy: assignedBy,
			AssignedAt: scanTime(assignedRaw),
		}
		if expiresRaw != nil {
			a.ExpiresAt = scanTime(expiresRaw)
		}
		out = append(out, a)
	}
	return out, nil
}
