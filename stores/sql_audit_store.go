package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/guardian"
)

// SQLAuditStore persists audit events in SQL (squealx).
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) *SQLAuditStore {
	return &SQLAuditStore{db: db}
}

func (s *SQLAuditStore) Append(ctx context.Context, e *guardian.AuditEvent) error {
	meta, _ := json.Marshal(e.Metadata)
	q := `INSERT INTO audit_events(id, action, actor, target_type, target_id, tenant_id, ts, metadata_json)
	      VALUES(:id, :action, :actor, :target_type, :target_id, :tenant_id, :ts, :metadata_json)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":            e.ID,
		"action":        e.Action,
		"actor":         e.Actor,
		"target_type":   e.TargetType,
		"target_id":     e.TargetID,
		"tenant_id":     e.TenantID,
		"ts":            e.Timestamp,
		"metadata_json": string(meta),
	})
	return err
}

func (s *SQLAuditStore) List(ctx context.Context, f guardian.AuditFilter) ([]*guardian.AuditEvent, error) {
	q := `SELECT id, action, actor, target_type, target_id, tenant_id, ts, metadata_json FROM audit_events
	      WHERE (:action = '' OR action = :action)
	        AND (:actor = '' OR actor = :actor)
	        AND (:tenant_id = '' OR tenant_id = :tenant_id)
	      ORDER BY ts DESC`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{
		"action":    f.Action,
		"actor":     f.Actor,
		"tenant_id": f.TenantID,
	})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*guardian.AuditEvent, 0)
	for r.Next() {
		var id, action, actor, targetType, targetID, tenantID, metaJSON string
		var tsRaw interface{}
		if err := r.Scan(&id, &action, &actor, &targetType, &targetID, &tenantID, &tsRaw, &metaJSON); err != nil {
			return nil, err
		}
		e := &guardian.AuditEvent{
			ID:         id,
			Action:     action,
			Actor:      actor,
			TargetType: targetType,
			TargetID:   targetID,
			TenantID:   tenantID,
			Timestamp:  scanTime(tsRaw),
		}
		if metaJSON != "" && metaJSON != "{}" {
			var meta map[string]any
			_ = json.Unmarshal([]byte(metaJSON), &meta)
			e.Metadata = meta
		}
		if !f.Matches(e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) >= f.Limit {
			break
		}
	}
	return out, nil
}
