package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/guardian"
)

// SQLTenantStore persists the tenant tree in SQL (squealx). The materialized
// path is stored as a '/'-joined column, so descendant lookups are a LIKE
// prefix match instead of a recursive query.
type SQLTenantStore struct {
	db *squealx.DB
}

func NewSQLTenantStore(db *squealx.DB) *SQLTenantStore {
	return &SQLTenantStore{db: db}
}

func tenantArgs(t *guardian.Tenant) map[string]any {
	meta, _ := json.Marshal(t.Metadata)
	return map[string]any{
		"id":            t.ID,
		"name":          t.Name,
		"slug":          t.Slug,
		"parent_id":     t.ParentID,
		"path":          joinPath(t.Path),
		"level":         t.Level,
		"status":        string(t.Status),
		"max_depth":     t.MaxDepth,
		"metadata_json": string(meta),
		"created_at":    t.CreatedAt,
		"updated_at":    t.UpdatedAt,
	}
}

func (s *SQLTenantStore) CreateTenant(ctx context.Context, t *guardian.Tenant) error {
	q := `INSERT INTO tenants(id, name, slug, parent_id, path, level, status, max_depth, metadata_json, created_at, updated_at)
	      VALUES(:id, :name, :slug, :parent_id, :path, :level, :status, :max_depth, :metadata_json, :created_at, :updated_at)`
	_, err := s.db.NamedExecContext(ctx, q, tenantArgs(t))
	return err
}

func (s *SQLTenantStore) UpdateTenant(ctx context.Context, t *guardian.Tenant) error {
	q := `UPDATE tenants SET name=:name, slug=:slug, parent_id=:parent_id, path=:path, level=:level, status=:status, max_depth=:max_depth, metadata_json=:metadata_json, updated_at=:updated_at WHERE id=:id`
	_, err := s.db.NamedExecContext(ctx, q, tenantArgs(t))
	return err
}

// SaveTenants rewrites path/level for a whole subtree inside one transaction;
// a failure on any row rolls the entire batch back.
func (s *SQLTenantStore) SaveTenants(ctx context.Context, tenants []*guardian.Tenant) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin save tenants: %w", err)
	}
	q := `UPDATE tenants SET parent_id=?, path=?, level=?, updated_at=? WHERE id=?`
	for _, t := range tenants {
		res, err := tx.ExecContext(ctx, q, t.ParentID, joinPath(t.Path), t.Level, t.UpdatedAt, t.ID)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("save tenant %s: %w", t.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			_ = tx.Rollback()
			return fmt.Errorf("tenant not found: %s", t.ID)
		}
	}
	return tx.Commit()
}

func (s *SQLTenantStore) DeleteTenant(ctx context.Context, id string) error {
	q := `DELETE FROM tenants WHERE id = :id`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{"id": id})
	return err
}

const tenantColumns = `id, name, slug, parent_id, path, level, status, max_depth, metadata_json, created_at, updated_at`

func scanTenant(r rowScanner) (*guardian.Tenant, error) {
	var id, name, slug, parentID, path, status, metaJSON string
	var level, maxDepth int
	var createdRaw, updatedRaw interface{}
	if err := r.Scan(&id, &name, &slug, &parentID, &path, &level, &status, &maxDepth, &metaJSON, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	t := &guardian.Tenant{
		ID:        id,
		Name:      name,
		Slug:      slug,
		ParentID:  parentID,
		Path:      splitPath(path),
		Level:     level,
		Status:    guardian.TenantStatus(status),
		MaxDepth:  maxDepth,
		CreatedAt: scanTime(createdRaw),
		UpdatedAt: scanTime(updatedRaw),
	}
	if metaJSON != "" && metaJSON != "{}" {
		var meta map[string]any
		_ = json.Unmarshal([]byte(metaJSON), &meta)
		t.Metadata = meta
	}
	return t, nil
}

func (s *SQLTenantStore) queryTenants(ctx context.Context, q string, args map[string]any) ([]*guardian.Tenant, error) {
	r, err := s.db.NamedQueryContext(ctx, q, args)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*guardian.Tenant, 0)
	for r.Next() {
		t, err := scanTenant(r)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *SQLTenantStore) GetTenant(ctx context.Context, id string) (*guardian.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = :id`
	out, err := s.queryTenants(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("tenant not found: %s", id)
	}
	return out[0], nil
}

func (s *SQLTenantStore) GetTenantBySlug(ctx context.Context, slug string) (*guardian.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE slug = :slug`
	out, err := s.queryTenants(ctx, q, map[string]any{"slug": slug})
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("tenant not found by slug: %s", slug)
	}
	return out[0], nil
}

func (s *SQLTenantStore) ListChildren(ctx context.Context, parentID string) ([]*guardian.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE parent_id = :parent_id ORDER BY id`
	return s.queryTenants(ctx, q, map[string]any{"parent_id": parentID})
}

func (s *SQLTenantStore) ListDescendants(ctx context.Context, id string) ([]*guardian.Tenant, error) {
	t, err := s.GetTenant(ctx, id)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + tenantColumns + ` FROM tenants WHERE path LIKE :prefix ORDER BY path`
	return s.queryTenants(ctx, q, map[string]any{"prefix": joinPath(t.Path) + "/%"})
}

func (s *SQLTenantStore) ListTenants(ctx context.Context) ([]*guardian.Tenant, error) {
	q := `SELECT ` + tenantColumns + ` FROM tenants ORDER BY path`
	return s.queryTenants(ctx, q, map[string]any{})
}
