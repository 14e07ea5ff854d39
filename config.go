package guardian

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CacheConfig selects and sizes the decision cache.
type CacheConfig struct {
	Backend    string `json:"backend,omitempty" yaml:"backend,omitempty"` // "memory" (default) or "ristretto"
	MaxEntries int64  `json:"max_entries,omitempty" yaml:"max_entries,omitempty"`
	TTLMillis  int64  `json:"ttl_ms,omitempty" yaml:"ttl_ms,omitempty"`
}

// TenantConfig is the declarative form of one tenant node. Parent references
// the parent's id or slug; parents must appear somewhere in the same config.
type TenantConfig struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string         `json:"name" yaml:"name"`
	Slug     string         `json:"slug,omitempty" yaml:"slug,omitempty"`
	Parent   string         `json:"parent,omitempty" yaml:"parent,omitempty"`
	MaxDepth int            `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// AssignmentConfig binds a user to a role at a tenant.
type AssignmentConfig struct {
	UserID   string    `json:"user_id" yaml:"user_id"`
	RoleID   string    `json:"role_id" yaml:"role_id"`
	TenantID string    `json:"tenant_id" yaml:"tenant_id"`
	ExpireAt time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// Config is the declarative bootstrap document: tree shape, roles, grants,
// assignments and policies, loadable from YAML or JSON.
type Config struct {
	MaxDepth      int                `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	ResourceTypes []string           `json:"resource_types,omitempty" yaml:"resource_types,omitempty"`
	Actions       []string           `json:"actions,omitempty" yaml:"actions,omitempty"`
	Cache         CacheConfig        `json:"cache,omitempty" yaml:"cache,omitempty"`
	Tenants       []TenantConfig     `json:"tenants,omitempty" yaml:"tenants,omitempty"`
	Roles         []*Role            `json:"roles,omitempty" yaml:"roles,omitempty"`
	Grants        []*Grant           `json:"grants,omitempty" yaml:"grants,omitempty"`
	Assignments   []AssignmentConfig `json:"assignments,omitempty" yaml:"assignments,omitempty"`
	Policies      []*Policy          `json:"policies,omitempty" yaml:"policies,omitempty"`
}

// LoadConfigYAML parses a YAML config document.
func LoadConfigYAML(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, validationf("parse yaml config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfigJSON parses a JSON config document.
func LoadConfigJSON(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, validationf("parse json config: %v", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// LoadConfigFile loads a config from disk, picking the codec by extension.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, storef("read config", err)
	}
	if strings.HasSuffix(path, ".json") {
		return LoadConfigJSON(data)
	}
	return LoadConfigYAML(data)
}

// Validate checks the document for dangling references and malformed entries
// before anything touches a store.
func (c *Config) Validate() error {
	known := make(map[string]bool)
	for _, t := range c.Tenants {
		if t.Name == "" {
			return validationf("tenant entry without a name")
		}
		if t.ID != "" {
			known[t.ID] = true
		}
		if t.Slug != "" {
			known[t.Slug] = true
		}
		known[Slugify(t.Name)] = true
	}
	for _, t := range c.Tenants {
		if t.Parent != "" && !known[t.Parent] {
			return validationf("tenant %q references unknown parent %q", t.Name, t.Parent)
		}
	}
	for _, g := range c.Grants {
		if g.UserID == "" || g.TenantID == "" || g.ResourceType == "" {
			return validationf("grant entry requires user_id, tenant_id and resource_type")
		}
		if len(g.Actions) == 0 {
			return validationf("grant for user %s has an empty action set", g.UserID)
		}
		if err := g.Conditions.Validate(); err != nil {
			return err
		}
	}
	for _, r := range c.Roles {
		if r.Name == "" {
			return validationf("role entry without a name")
		}
	}
	for _, a := range c.Assignments {
		if a.UserID == "" || a.RoleID == "" || a.TenantID == "" {
			return validationf("assignment entry requires user_id, role_id and tenant_id")
		}
	}
	for _, p := range c.Policies {
		if p.Effect != EffectAllow && p.Effect != EffectDeny {
			return validationf("policy %q has unknown effect %q", p.Name, p.Effect)
		}
		if len(p.Resources) == 0 || len(p.Actions) == 0 {
			return validationf("policy %q needs non-empty resources and actions", p.Name)
		}
		if err := p.Conditions.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ToYAML serializes the config.
func (c *Config) ToYAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// ToJSON serializes the config.
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

// CacheTTL returns the configured decision TTL, or zero when unset.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLMillis) * time.Millisecond
}

// EngineOptions translates the document's engine-level settings into options
// for NewEngine.
func (c *Config) EngineOptions() ([]EngineOption, error) {
	var opts []EngineOption
	if c.MaxDepth > 0 {
		opts = append(opts, WithMaxDepth(c.MaxDepth))
	}
	if len(c.ResourceTypes) > 0 {
		opts = append(opts, WithResourceTypes(c.ResourceTypes...))
	}
	if len(c.Actions) > 0 {
		opts = append(opts, WithActions(c.Actions...))
	}
	if c.Cache.TTLMillis > 0 {
		opts = append(opts, WithCacheTTL(c.CacheTTL()))
	}
	switch c.Cache.Backend {
	case "", "memory":
	case "ristretto":
		cache, err := NewRistrettoDecisionCache(c.Cache.MaxEntries)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithDecisionCache(cache))
	default:
		return nil, validationf("unknown cache backend %q", c.Cache.Backend)
	}
	return opts, nil
}

// ApplyConfig materializes the document through the engine's normal mutation
// path, so validation and audit apply. Tenants are created parents-first
// across passes; a pass that makes no progress means a dangling parent.
func (e *Engine) ApplyConfig(ctx context.Context, c *Config, actor string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	created := make(map[string]string) // name/slug/id -> tenant id
	pending := append([]TenantConfig{}, c.Tenants...)
	for len(pending) > 0 {
		progress := false
		remaining := pending[:0]
		for _, tc := range pending {
			if tc.Parent != "" {
				if _, ok := created[tc.Parent]; !ok {
					remaining = append(remaining, tc)
					continue
				}
			}
			t := &Tenant{
				ID:       tc.ID,
				Name:     tc.Name,
				Slug:     tc.Slug,
				ParentID: created[tc.Parent],
				MaxDepth: tc.MaxDepth,
				Metadata: tc.Metadata,
			}
			out, err := e.CreateTenant(ctx, t, actor)
			if err != nil {
				return err
			}
			created[out.ID] = out.ID
			created[out.Slug] = out.ID
			created[out.Name] = out.ID
			progress = true
		}
		if !progress {
			return validationf("tenant config has unresolvable parent references")
		}
		pending = remaining
	}

	for _, r := range c.Roles {
		if id, ok := created[r.TenantID]; ok {
			r.TenantID = id
		}
		if _, err := e.CreateRole(ctx, r, actor); err != nil {
			return err
		}
	}
	for _, g := range c.Grants {
		if id, ok := created[g.TenantID]; ok {
			g.TenantID = id
		}
		if _, err := e.GrantPermission(ctx, g); err != nil {
			return err
		}
	}
	for _, ac := range c.Assignments {
		tenantID := ac.TenantID
		if id, ok := created[tenantID]; ok {
			tenantID = id
		}
		a := &RoleAssignment{
			UserID:     ac.UserID,
			RoleID:     ac.RoleID,
			TenantID:   tenantID,
			AssignedBy: actor,
			ExpiresAt:  ac.ExpireAt,
		}
		if err := e.AssignRole(ctx, a); err != nil {
			return err
		}
	}
	for _, p := range c.Policies {
		if id, ok := created[p.TenantID]; ok {
			p.TenantID = id
		}
		if _, err := e.CreatePolicy(ctx, p, actor); err != nil {
			return err
		}
	}
	return nil
}
