package guardian

import (
	"context"
	"time"
)

// Audit event actions emitted by the engine's mutating operations.
const (
	AuditTenantCreated     = "tenant.created"
	AuditTenantMoved       = "tenant.moved"
	AuditTenantArchived    = "tenant.archived"
	AuditTenantRestored    = "tenant.restored"
	AuditTenantDeleted     = "tenant.deleted"
	AuditPermissionGranted = "permission.granted"
	AuditPermissionRevoked = "permission.revoked"
	AuditRoleCreated       = "role.created"
	AuditRoleUpdated       = "role.updated"
	AuditRoleDeleted       = "role.deleted"
	AuditRoleAssigned      = "role.assigned"
	AuditRoleRevoked       = "role.revoked"
	AuditPolicyCreated     = "policy.created"
	AuditPolicyUpdated     = "policy.updated"
	AuditPolicyDeleted     = "policy.deleted"
)

// AuditEvent records one mutation: who did what to which target.
type AuditEvent struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id"`
	TenantID   string         `json:"tenant_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// AuditFilter narrows List queries. Zero-value fields match everything.
type AuditFilter struct {
	Action   string
	Actor    string
	TenantID string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// Matches reports whether the event passes the filter.
func (f AuditFilter) Matches(e *AuditEvent) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.TenantID != "" && e.TenantID != f.TenantID {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && e.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// AuditStore persists audit events. Append is called from the engine's audit
// worker, never from the request path.
type AuditStore interface {
	Append(ctx context.Context, e *AuditEvent) error
	List(ctx context.Context, f AuditFilter) ([]*AuditEvent, error)
}
