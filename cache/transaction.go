package cache

import "sync"

// Transaction tracks the classes one transaction has inserted, updated, or
// deleted from (spec.md §5 "per-transaction modified-class set"). At
// cleanup the transaction invalidates every plan-cache entry (and the
// result-cache entries computed under it) whose referenced-class set
// intersects what it touched.
type Transaction struct {
	mu       sync.Mutex
	modified map[string]bool
}

// NewTransaction builds a transaction with an empty modified-class set.
func NewTransaction() *Transaction {
	return &Transaction{modified: make(map[string]bool)}
}

// MarkModified records that this transaction inserted, updated, or
// deleted a row belonging to class.
func (tx *Transaction) MarkModified(class string) {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	tx.modified[class] = true
}

// Cleanup invalidates every plan this transaction's writes could have
// affected, and the result-cache entries computed under those plans. Call
// it once, at commit or rollback.
func (tx *Transaction) Cleanup(pc *PlanCache, rc *ResultCache) {
	tx.mu.Lock()
	modified := make(map[string]bool, len(tx.modified))
	for k := range tx.modified {
		modified[k] = true
	}
	tx.mu.Unlock()

	if len(modified) == 0 {
		return
	}
	dropped := pc.Invalidate(modified)
	if rc == nil {
		return
	}
	for _, key := range dropped {
		rc.InvalidatePlan(key)
	}
}
