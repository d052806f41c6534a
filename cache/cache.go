// Package cache implements the process-wide plan and result caches of
// spec.md §5: a query-hash-keyed, reader-writer-synchronized plan cache
// with refcounted entries, a parameter-tuple-keyed result cache, and
// per-transaction invalidation on modified-class intersection.
package cache

import (
	"sync"
	"sync/atomic"

	"github.com/cubrid/queryopt/qghash"
	"github.com/cubrid/queryopt/xasl"
)

// PlanEntry is one cached, finalized XASL tree plus the set of class names
// it references.
type PlanEntry struct {
	Key     qghash.Key
	Tree    *xasl.Node
	Classes map[string]bool

	refcount int32
}

// AddRef increments the entry's refcount: a cache entry stays alive while
// any executor is using it (spec.md §5).
func (e *PlanEntry) AddRef() { atomic.AddInt32(&e.refcount, 1) }

// DelRef decrements the refcount once an executor is done with the entry.
func (e *PlanEntry) DelRef() { atomic.AddInt32(&e.refcount, -1) }

// Refcount reports the entry's current refcount.
func (e *PlanEntry) Refcount() int32 { return atomic.LoadInt32(&e.refcount) }

// PlanCache maps a query hash to a finalized XASL tree. Readers
// atomically fetch-and-fix (AddRef under the read lock); writers insert
// on a miss under the write lock.
type PlanCache struct {
	mu      sync.RWMutex
	entries map[qghash.Key]*PlanEntry
}

// NewPlanCache builds an empty plan cache.
func NewPlanCache() *PlanCache {
	return &PlanCache{entries: make(map[qghash.Key]*PlanEntry)}
}

// Get looks up key, AddRef-ing the entry on a hit.
func (c *PlanCache) Get(key qghash.Key) (*PlanEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if ok {
		e.AddRef()
	}
	return e, ok
}

// Put inserts a freshly-generated entry on a cache miss with refcount 1.
// If another writer already won the race for key, that entry is returned
// (AddRef'd) instead and tree is discarded.
func (c *PlanCache) Put(key qghash.Key, tree *xasl.Node, classes map[string]bool) *PlanEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		e.AddRef()
		return e
	}
	e := &PlanEntry{Key: key, Tree: tree, Classes: classes, refcount: 1}
	c.entries[key] = e
	return e
}

// Invalidate drops every entry whose referenced-class set intersects
// modified. An entry already held by a live executor (Refcount() > 0)
// simply stops being reachable through the cache; the executor's own
// reference keeps it alive until that executor finishes.
func (c *PlanCache) Invalidate(modified map[string]bool) []qghash.Key {
	c.mu.Lock()
	defer c.mu.Unlock()
	var dropped []qghash.Key
	for key, e := range c.entries {
		for cls := range e.Classes {
			if modified[cls] {
				dropped = append(dropped, key)
				delete(c.entries, key)
				break
			}
		}
	}
	return dropped
}

// Len reports the number of live entries.
func (c *PlanCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
