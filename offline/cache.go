package offline

import (
	"encoding/json"
	"time"

	"rescuehub/logger"
)

// CacheMaxAge is how long a snapshot stays readable.
const CacheMaxAge = 12 * time.Hour

const cacheKeyPrefix = "rescuehub.cache."

// Snapshot is the persisted shape of a cached collection.
type Snapshot[T any] struct {
	Snapshot  []T       `json:"snapshot"`
	Timestamp time.Time `json:"timestamp"`
}

// Cache is a last-known-good copy of one list collection. Failures never
// propagate; they read as a miss.
type Cache[T any] struct {
	store Store
	key   string
	now   func() time.Time
}

// NewCache returns the cache for collection, e.g. "tasks" or "tasks.open".
func NewCache[T any](store Store, collection string) *Cache[T] {
	return &Cache[T]{store: store, key: cacheKeyPrefix + collection, now: time.Now}
}

// Put replaces the snapshot with list.
func (c *Cache[T]) Put(list []T) {
	if list == nil {
		list = []T{}
	}
	data, err := json.Marshal(Snapshot[T]{Snapshot: list, Timestamp: c.now().UTC()})
	if err != nil {
		logger.Warn("[cache] encode %s failed: %v", c.key, err)
		return
	}
	if err := c.store.Set(c.key, data); err != nil {
		logger.Warn("[cache] write %s failed: %v", c.key, err)
	}
}

// Get returns the snapshot if one exists and is at most CacheMaxAge old.
func (c *Cache[T]) Get() ([]T, bool) {
	snap, ok := c.load()
	if !ok {
		return nil, false
	}
	if c.now().Sub(snap.Timestamp) > CacheMaxAge {
		return nil, false
	}
	return snap.Snapshot, true
}

// Age reports how old the stored snapshot is, stale or not.
func (c *Cache[T]) Age() (time.Duration, bool) {
	snap, ok := c.load()
	if !ok {
		return 0, false
	}
	return c.now().Sub(snap.Timestamp), true
}

func (c *Cache[T]) load() (Snapshot[T], bool) {
	var snap Snapshot[T]
	data, err := c.store.Get(c.key)
	if err != nil {
		logger.Warn("[cache] read %s failed: %v", c.key, err)
		return snap, false
	}
	if len(data) == 0 {
		return snap, false
	}
	if err := json.Unmarshal(data, &snap); err != nil {
		logger.Warn("[cache] corrupt snapshot %s: %v", c.key, err)
		return snap, false
	}
	return snap, true
}
