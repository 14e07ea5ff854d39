package guardian

import (
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"
)

// DecisionKey identifies one cached authorization answer.
type DecisionKey struct {
	UserID       string
	TenantID     string
	ResourceType string
	Action       string
	ResourceID   string
}

func (k DecisionKey) String() string {
	return strings.Join([]string{k.UserID, k.TenantID, k.ResourceType, k.Action, k.ResourceID}, "|")
}

// DecisionCache is the injectable cache capability. Entries carry a bounded
// TTL; Flush drops everything after a mutation so stale allows never outlive
// the staleness bound.
type DecisionCache interface {
	Get(key DecisionKey) (*Decision, bool)
	Set(key DecisionKey, d *Decision, ttl time.Duration)
	Flush()
}

// memoryDecisionCache is a map-with-TTL cache, good enough for tests and
// single-process embeddings.
type memoryDecisionCache struct {
	mu      sync.RWMutex
	entries map[string]memoryCacheEntry
}

type memoryCacheEntry struct {
	decision *Decision
	expires  time.Time
}

func NewMemoryDecisionCache() DecisionCache {
	return &memoryDecisionCache{entries: make(map[string]memoryCacheEntry)}
}

func (c *memoryDecisionCache) Get(key DecisionKey) (*Decision, bool) {
	c.mu.RLock()
	e, ok := c.entries[key.String()]
	c.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.decision, true
}

func (c *memoryDecisionCache) Set(key DecisionKey, d *Decision, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key.String()] = memoryCacheEntry{decision: d, expires: time.Now().Add(ttl)}
	c.mu.Unlock()
}

func (c *memoryDecisionCache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]memoryCacheEntry)
	c.mu.Unlock()
}

// RistrettoDecisionCache backs the decision cache with a ristretto cache for
// high-concurrency deployments. Cost is one unit per decision, so MaxCost is
// effectively the entry count bound.
type RistrettoDecisionCache struct {
	cache *ristretto.Cache
}

// NewRistrettoDecisionCache builds a ristretto-backed cache sized for
// maxEntries decisions. maxEntries <= 0 defaults to 100k.
func NewRistrettoDecisionCache(maxEntries int64) (*RistrettoDecisionCache, error) {
	if maxEntries <= 0 {
		maxEntries = 100_000
	}
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoDecisionCache{cache: c}, nil
}

func (c *RistrettoDecisionCache) Get(key DecisionKey) (*Decision, bool) {
	v, ok := c.cache.Get(key.String())
	if !ok {
		return nil, false
	}
	d, ok := v.(*Decision)
	return d, ok
}

func (c *RistrettoDecisionCache) Set(key DecisionKey, d *Decision, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.cache.SetWithTTL(key.String(), d, 1, ttl)
}

func (c *RistrettoDecisionCache) Flush() {
	c.cache.Clear()
}

// Close releases the ristretto internals.
func (c *RistrettoDecisionCache) Close() {
	c.cache.Close()
}
