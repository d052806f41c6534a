package cache

import (
	"sync"

	"github.com/mitchellh/hashstructure"

	"github.com/cubrid/queryopt/qghash"
)

// ResultEntry is a persisted result list for one (plan, parameter-tuple)
// pair (spec.md §5).
type ResultEntry struct {
	Rows []interface{}
}

type resultKey struct {
	plan   qghash.Key
	params uint64
}

// ResultCache maps a (plan-cache entry, parameter-tuple) pair to its
// previously computed rows, invalidated alongside the plan entry it was
// computed under.
type ResultCache struct {
	mu      sync.RWMutex
	entries map[resultKey]*ResultEntry
}

// NewResultCache builds an empty result cache.
func NewResultCache() *ResultCache {
	return &ResultCache{entries: make(map[resultKey]*ResultEntry)}
}

func paramHash(params []interface{}) (uint64, error) {
	return hashstructure.Hash(params, nil)
}

// Get looks up the result cached for planKey bound to params.
func (c *ResultCache) Get(planKey qghash.Key, params []interface{}) (*ResultEntry, bool, error) {
	h, err := paramHash(params)
	if err != nil {
		return nil, false, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[resultKey{plan: planKey, params: h}]
	return e, ok, nil
}

// Put stores rows under (planKey, params).
func (c *ResultCache) Put(planKey qghash.Key, params []interface{}, rows []interface{}) error {
	h, err := paramHash(params)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[resultKey{plan: planKey, params: h}] = &ResultEntry{Rows: rows}
	return nil
}

// InvalidatePlan drops every result cached against planKey. Called once
// for each key PlanCache.Invalidate reports as dropped.
func (c *ResultCache) InvalidatePlan(planKey qghash.Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.plan == planKey {
			delete(c.entries, k)
		}
	}
}

// Len reports the number of live entries.
func (c *ResultCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
