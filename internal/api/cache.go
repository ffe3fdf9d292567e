package api

import (
	"sync"

	"github.com/healthscope/healthscope/pkg/account"
)

const defaultCacheSize = 256

// SnapshotCache is a thread-safe LRU cache of health snapshots keyed by
// snapshot ID. Snapshots never change once written, so entries need no
// invalidation.
type SnapshotCache struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]*account.HealthSnapshot
	order   []string // oldest first
}

// NewSnapshotCache creates a cache with the given maximum number of entries.
// If maxSize <= 0, it defaults to 256.
func NewSnapshotCache(maxSize int) *SnapshotCache {
	if maxSize <= 0 {
		maxSize = defaultCacheSize
	}
	return &SnapshotCache{
		maxSize: maxSize,
		entries: make(map[string]*account.HealthSnapshot),
	}
}

// Get retrieves a snapshot from the cache, or nil if not found.
func (c *SnapshotCache) Get(id string) *account.HealthSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap, ok := c.entries[id]
	if !ok {
		return nil
	}
	c.moveToEnd(id)
	return snap
}

// Put adds a snapshot to the cache, evicting the oldest if full.
func (c *SnapshotCache) Put(snap *account.HealthSnapshot) {
	if snap == nil || snap.ID == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[snap.ID]; ok {
		c.entries[snap.ID] = snap
		c.moveToEnd(snap.ID)
		return
	}

	for len(c.entries) >= c.maxSize && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}

	c.entries[snap.ID] = snap
	c.order = append(c.order, snap.ID)
}

// Len returns the number of cached snapshots.
func (c *SnapshotCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *SnapshotCache) moveToEnd(id string) {
	for i, k := range c.order {
		if k == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			c.order = append(c.order, id)
			return
		}
	}
}
