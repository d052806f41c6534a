// Package planner implements the dynamic-programming join/access-path
// search of spec.md §4.3: per-node access plans, join enumeration under
// hint/dependency/outer-join constraints, memoization by node-subset and
// interesting order, and cost-based pruning.
package planner

import (
	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/plan"
)

// Info is a memoization slot for one node subset (spec.md §3 "Info node").
type Info struct {
	Nodes      bitset.Set
	Terms      bitset.Set
	EqClasses  bitset.Set
	Cardinality float64

	// Plans holds the best plan found so far for each interesting order
	// (the equivalence-class index), plus the unordered best under key -1
	// (QO_PLANVEC "best_no_order" generalized: we keep one slot per order
	// instead of NPLANS=4 to simplify the memo without losing the
	// comparison semantics of spec.md §4.3.3, since Compare already picks
	// the unique best plan per order).
	Plans map[int]*plan.Plan

	Detached bool
}

func newInfo(nodes bitset.Set) *Info {
	return &Info{Nodes: nodes, Plans: map[int]*plan.Plan{}}
}

// considerPlan updates inf with candidate p if p is better than (or
// incomparable-but-not-worse-and-first-seen for) the current best plan at
// p.Order, implementing check_plan_on_info's role in spec.md §4.3.2 step 3.
func (inf *Info) considerPlan(p *plan.Plan) {
	cur, ok := inf.Plans[p.Order]
	if !ok {
		inf.Plans[p.Order] = p
		return
	}
	if plan.Compare(p, cur) == plan.CompareLT {
		inf.Plans[p.Order] = p
	}
}

// best returns the lowest-total-cost plan across every order recorded for
// inf, i.e. the plan to use once no further ordering is of interest.
func (inf *Info) best() *plan.Plan {
	var best *plan.Plan
	for _, p := range inf.Plans {
		if best == nil || plan.Compare(p, best) == plan.CompareLT {
			best = p
		}
	}
	return best
}

// bestForOrder returns the best plan recorded for a specific interesting
// order, or nil.
func (inf *Info) bestForOrder(order int) *plan.Plan {
	return inf.Plans[order]
}

// Memo indexes Info nodes by the bitset key of the node subset they cover,
// scoped to one partition (spec.md "join_info vector").
type Memo struct {
	slots map[string]*Info
}

func newMemo() *Memo {
	return &Memo{slots: map[string]*Info{}}
}

func (m *Memo) get(nodes bitset.Set) (*Info, bool) {
	inf, ok := m.slots[nodes.Key()]
	return inf, ok
}

func (m *Memo) getOrCreate(nodes bitset.Set) *Info {
	key := nodes.Key()
	inf, ok := m.slots[key]
	if !ok {
		inf = newInfo(nodes)
		m.slots[key] = inf
	}
	return inf
}

// pruneAgainst reports whether candidateTotal already exceeds the cheapest
// plan known for this node subset, implementing spec.md §4.3.2 step 1's
// immediate-prune rule.
func (inf *Info) pruneAgainst(candidateTotal float64) bool {
	best := inf.best()
	if best == nil {
		return false
	}
	return candidateTotal > best.Cost.Total()
}
