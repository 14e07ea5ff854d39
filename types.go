package guardian

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// TenantStatus is the lifecycle state of a tenant node.
type TenantStatus string

const (
	TenantActive   TenantStatus = "active"
	TenantArchived TenantStatus = "archived"
)

// DefaultMaxDepth is the tree-wide depth limit applied when a tenant does not
// carry its own.
const DefaultMaxDepth = 5

// Tenant is a node in the organizational hierarchy. Path is the materialized
// path: every ancestor id root-first, ending with the tenant's own id, so
// ancestor lookup never needs a recursive query. len(Path) == Level+1 always.
type Tenant struct {
	ID        string         `json:"id" yaml:"id"`
	Name      string         `json:"name" yaml:"name"`
	Slug      string         `json:"slug" yaml:"slug"`
	ParentID  string         `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
	Path      []string       `json:"path" yaml:"path"`
	Level     int            `json:"level" yaml:"level"`
	Status    TenantStatus   `json:"status" yaml:"status"`
	MaxDepth  int            `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" yaml:"updated_at"`
}

// IsAncestorOf reports whether t appears in other's ancestor chain (self excluded).
func (t *Tenant) IsAncestorOf(other *Tenant) bool {
	for _, id := range other.Path[:max(len(other.Path)-1, 0)] {
		if id == t.ID {
			return true
		}
	}
	return false
}

// Grant is a direct permission: user U may perform Actions on ResourceType
// (optionally a single ResourceID) at TenantID. Grants propagate to descendant
// tenants unless BlockInheritance is set, in which case they apply only at
// the tenant where they were made.
type Grant struct {
	ID               string       `json:"id" yaml:"id"`
	UserID           string       `json:"user_id" yaml:"user_id"`
	TenantID         string       `json:"tenant_id" yaml:"tenant_id"`
	ResourceType     string       `json:"resource_type" yaml:"resource_type"`
	ResourceID       string       `json:"resource_id,omitempty" yaml:"resource_id,omitempty"` // empty = all resources of the type
	Actions          []string     `json:"actions" yaml:"actions"`
	Conditions       ConditionSet `json:"conditions,omitempty" yaml:"conditions,omitempty"`
	BlockInheritance bool         `json:"block_inheritance,omitempty" yaml:"block_inheritance,omitempty"`
	ExpiresAt        time.Time    `json:"expires_at,omitempty" yaml:"expires_at,omitempty"` // zero = no expiry
	GrantedBy        string       `json:"granted_by,omitempty" yaml:"granted_by,omitempty"`
	CreatedAt        time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt        time.Time    `json:"updated_at" yaml:"updated_at"`
}

// IsExpired checks the grant against the given evaluation time.
func (g *Grant) IsExpired(at time.Time) bool {
	return !g.ExpiresAt.IsZero() && at.After(g.ExpiresAt)
}

// HasAction reports whether the grant's action set contains action.
func (g *Grant) HasAction(action string) bool {
	for _, a := range g.Actions {
		if a == action || a == "*" {
			return true
		}
	}
	return false
}

// Covers reports whether the grant applies to the given resource. A grant
// without a ResourceID covers every resource of its type. A query without a
// resourceID asks "any resource of this type", so a resource-scoped grant
// satisfies it too.
func (g *Grant) Covers(resourceType, resourceID string) bool {
	if g.ResourceType != resourceType {
		return false
	}
	return g.ResourceID == "" || resourceID == "" || g.ResourceID == resourceID
}

// Role bundles permission tokens ("resourceType:action", wildcards allowed)
// under a name, scoped to a tenant or global when TenantID is empty. System
// roles are immutable.
type Role struct {
	ID           string    `json:"id" yaml:"id"`
	TenantID     string    `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Name         string    `json:"name" yaml:"name"`
	IsSystem     bool      `json:"is_system,omitempty" yaml:"is_system,omitempty"`
	Permissions  []string  `json:"permissions" yaml:"permissions"`
	InheritsFrom string    `json:"inherits_from,omitempty" yaml:"inherits_from,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at" yaml:"created_at"`
}

// RoleAssignment binds a role to a user within one tenant. Expired
// assignments are treated as absent by the resolver.
type RoleAssignment struct {
	UserID     string    `json:"user_id" yaml:"user_id"`
	RoleID     string    `json:"role_id" yaml:"role_id"`
	TenantID   string    `json:"tenant_id" yaml:"tenant_id"`
	AssignedBy string    `json:"assigned_by,omitempty" yaml:"assigned_by,omitempty"`
	AssignedAt time.Time `json:"assigned_at" yaml:"assigned_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// IsExpired checks the assignment against the given evaluation time.
func (a *RoleAssignment) IsExpired(at time.Time) bool {
	return !a.ExpiresAt.IsZero() && at.After(a.ExpiresAt)
}

// Effect is the outcome a policy produces when its conditions pass.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Policy is a tenant-scoped conditional rule. All conditions are ANDed; the
// policy applies only to the resource types and actions it declares.
type Policy struct {
	ID         string       `json:"id" yaml:"id"`
	TenantID   string       `json:"tenant_id,omitempty" yaml:"tenant_id,omitempty"`
	Name       string       `json:"name" yaml:"name"`
	Conditions ConditionSet `json:"conditions" yaml:"conditions"`
	Effect     Effect       `json:"effect" yaml:"effect"`
	Resources  []string     `json:"resources" yaml:"resources"`
	Actions    []string     `json:"actions" yaml:"actions"`
	Priority   int          `json:"priority,omitempty" yaml:"priority,omitempty"`
	Enabled    bool         `json:"enabled" yaml:"enabled"`
	CreatedAt  time.Time    `json:"created_at" yaml:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" yaml:"updated_at"`
}

// AppliesTo reports whether the policy's declared resources/actions cover the
// given pair. A policy never widens beyond its declared sets.
func (p *Policy) AppliesTo(resourceType, action string) bool {
	resMatch := false
	for _, r := range p.Resources {
		if r == "*" || r == resourceType {
			resMatch = true
			break
		}
	}
	if !resMatch {
		return false
	}
	for _, a := range p.Actions {
		if a == "*" || a == action {
			return true
		}
	}
	return false
}

// RequestContext carries the runtime facts policies and grant conditions are
// evaluated against.
type RequestContext struct {
	Timestamp time.Time `json:"timestamp"`
	IPAddress string    `json:"ip_address,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// At returns the evaluation time: the context timestamp when set, otherwise
// the wall clock.
func (rc *RequestContext) At() time.Time {
	if rc != nil && !rc.Timestamp.IsZero() {
		return rc.Timestamp
	}
	return time.Now()
}

// Source identifies what produced an authorization decision.
type Source string

const (
	SourceDirect    Source = "direct"
	SourceInherited Source = "inherited"
	SourcePolicy    Source = "policy"
	SourceRole      Source = "role"
	SourceError     Source = "error"
	SourceNone      Source = "none"
)

// Decision is the structured, traceable result of an access check. The read
// path always returns one of these; it never throws.
type Decision struct {
	Allowed          bool      `json:"allowed"`
	Source           Source    `json:"source"`
	Reason           string    `json:"reason"`
	SourceTenantID   string    `json:"source_tenant_id,omitempty"`
	InheritanceLevel int       `json:"inheritance_level,omitempty"`
	Policy           *Policy   `json:"policy,omitempty"`
	RoleID           string    `json:"role_id,omitempty"`
	Error            string    `json:"error,omitempty"`
	RequestID        string    `json:"request_id,omitempty"`
	TraceID          string    `json:"trace_id,omitempty"`
	EvaluatedAt      time.Time `json:"evaluated_at"`
	ElapsedMicros    int64     `json:"elapsed_us"`
}

// EffectivePermission is one surviving grant in a user's resolved permission
// set for a tenant, annotated with where it came from.
type EffectivePermission struct {
	Grant            *Grant `json:"grant"`
	Inherited        bool   `json:"inherited"`
	SourceTenantID   string `json:"source_tenant_id"`
	InheritanceLevel int    `json:"inheritance_level"`
}

// MatrixSummary counts the permissions backing a matrix.
type MatrixSummary struct {
	TotalPermissions     int `json:"totalPermissions"`
	DirectPermissions    int `json:"directPermissions"`
	InheritedPermissions int `json:"inheritedPermissions"`
}

// PermissionMatrix is the resourceType -> action -> allowed report for one
// user in one tenant.
type PermissionMatrix struct {
	UserID        string                     `json:"user_id"`
	TenantID      string                     `json:"tenant_id"`
	Permissions   map[string]map[string]bool `json:"permissions"`
	InheritedFrom []string                   `json:"inheritedFrom"`
	Summary       MatrixSummary              `json:"summary"`
}

// AuthRequest is one authorization question, used by BatchAuthorize.
type AuthRequest struct {
	UserID       string          `json:"user_id"`
	TenantID     string          `json:"tenant_id"`
	ResourceType string          `json:"resource_type"`
	Action       string          `json:"action"`
	ResourceID   string          `json:"resource_id,omitempty"`
	Context      *RequestContext `json:"context,omitempty"`
}

// ============================================================================
// STORAGE INTERFACES
// ============================================================================

// TenantStore persists the tenant tree.
type TenantStore interface {
	CreateTenant(ctx context.Context, t *Tenant) error
	UpdateTenant(ctx context.Context, t *Tenant) error
	// SaveTenants applies a batch of path/level updates atomically; concurrent
	// readers never observe a half-moved subtree.
	SaveTenants(ctx context.Context, tenants []*Tenant) error
	DeleteTenant(ctx context.Context, id string) error
	GetTenant(ctx context.Context, id string) (*Tenant, error)
	GetTenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	ListChildren(ctx context.Context, parentID string) ([]*Tenant, error)
	// ListDescendants returns every strict descendant in path order.
	ListDescendants(ctx context.Context, id string) ([]*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)
}

// GrantStore persists direct grants.
type GrantStore interface {
	CreateGrant(ctx context.Context, g *Grant) error
	UpdateGrant(ctx context.Context, g *Grant) error
	RevokeGrant(ctx context.Context, id string) error
	GetGrant(ctx context.Context, id string) (*Grant, error)
	ListGrants(ctx context.Context, userID, tenantID string) ([]*Grant, error)
}

// RoleStore persists roles.
type RoleStore interface {
	CreateRole(ctx context.Context, r *Role) error
	UpdateRole(ctx context.Context, r *Role) error
	DeleteRole(ctx context.Context, id string) error
	GetRole(ctx context.Context, id string) (*Role, error)
	ListRoles(ctx context.Context, tenantID string) ([]*Role, error)
}

// AssignmentStore persists user-role assignments.
type AssignmentStore interface {
	AssignRole(ctx context.Context, a *RoleAssignment) error
	RevokeRole(ctx context.Context, userID, roleID, tenantID string) error
	ListAssignments(ctx context.Context, userID, tenantID string) ([]*RoleAssignment, error)
}

// PolicyStore persists policies.
type PolicyStore interface {
	CreatePolicy(ctx context.Context, p *Policy) error
	UpdatePolicy(ctx context.Context, p *Policy) error
	DeletePolicy(ctx context.Context, id string) error
	GetPolicy(ctx context.Context, id string) (*Policy, error)
	// ListPolicies returns policies scoped to tenantID plus global ones.
	ListPolicies(ctx context.Context, tenantID string) ([]*Policy, error)
}

// NewID returns a random identifier for entities created without one.
func NewID() string {
	var b [12]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// Slugify derives a URL-safe slug from a display name.
func Slugify(name string) string {
	var sb strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				sb.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimRight(sb.String(), "-")
}
