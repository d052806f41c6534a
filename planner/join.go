package planner

import (
	"math/bits"

	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

// searchPartition runs the dynamic-programming join enumeration of
// spec.md §4.3.2 over one connected component of the join graph:
// bitset-keyed memoization by node subset, pruned by cost and narrowed by
// the tables-at-a-time window as the partition grows.
func (p *Planner) searchPartition(env *qg.Env, part *qg.Partition) (*plan.Plan, error) {
	members := part.Nodes.Members()
	k := len(members)
	byRel := make([]*qg.Node, k)
	for _, idx := range members {
		byRel[env.Nodes[idx].RelIdx] = env.Nodes[idx]
	}

	memo := newMemo()
	window := p.cfg.TablesAtATimeFor(k)
	full := (1 << uint(k)) - 1

	for mask := 1; mask <= full; mask++ {
		nodes := maskToGlobal(mask, byRel)
		key := bitset.FromSlice(nodes)
		inf := memo.getOrCreate(key)

		if bits.OnesCount(uint(mask)) == 1 {
			n := byRel[bits.TrailingZeros(uint(mask))]
			for _, pl := range p.nodePlans(env, n) {
				inf.considerPlan(pl)
			}
			continue
		}

		if window < k && bits.OnesCount(uint(mask)) > window && mask != full {
			// spec.md §4.3.2 "narrow the search": beyond the window, only
			// grow the cheapest known smaller subset by one node at a
			// time instead of exploring every split.
			p.growByOne(env, memo, byRel, mask, part)
			continue
		}

		p.enumerateSplits(env, memo, byRel, mask, part)
	}

	best := memo.getOrCreate(bitset.FromSlice(maskToGlobal(full, byRel))).best()
	if best == nil {
		return plan.NewWorst(), nil
	}
	return best, nil
}

func maskToGlobal(mask int, byRel []*qg.Node) []int {
	var out []int
	for i := 0; mask != 0; i, mask = i+1, mask>>1 {
		if mask&1 != 0 {
			out = append(out, byRel[i].Idx)
		}
	}
	return out
}

func enumerateSubmasks(mask int) []int {
	var subs []int
	for sub := (mask - 1) & mask; sub > 0; sub = (sub - 1) & mask {
		subs = append(subs, sub)
	}
	return subs
}

// growByOne restricts split enumeration to (best-known-subset) + (one
// remaining node), the tables-at-a-time narrowing of spec.md §4.3.2.
func (p *Planner) growByOne(env *qg.Env, memo *Memo, byRel []*qg.Node, mask int, part *qg.Partition) {
	inf := memo.getOrCreate(bitset.FromSlice(maskToGlobal(mask, byRel)))
	for i := range byRel {
		bit := 1 << uint(i)
		if mask&bit == 0 {
			continue
		}
		sub1 := mask &^ bit
		if sub1 == 0 {
			continue
		}
		p.tryJoinSplit(env, memo, byRel, mask, sub1, bit, part, inf)
	}
}

func (p *Planner) enumerateSplits(env *qg.Env, memo *Memo, byRel []*qg.Node, mask int, part *qg.Partition) {
	inf := memo.getOrCreate(bitset.FromSlice(maskToGlobal(mask, byRel)))
	ordered := p.anyOrderedHint(byRel)

	for _, sub1 := range enumerateSubmasks(mask) {
		sub2 := mask &^ sub1
		if sub2 == 0 {
			continue
		}
		if ordered && !isOrderedPrefixSplit(byRel, sub1, sub2) {
			continue
		}
		p.tryJoinSplit(env, memo, byRel, mask, sub1, sub2, part, inf)
	}
}

func (p *Planner) tryJoinSplit(env *qg.Env, memo *Memo, byRel []*qg.Node, mask, sub1, sub2 int, part *qg.Partition, inf *Info) {
	outerNodes := maskToGlobal(sub1, byRel)
	innerNodes := maskToGlobal(sub2, byRel)
	if !p.dependencySatisfied(env, outerNodes, innerNodes) {
		return
	}
	outerInf, ok1 := memo.get(bitset.FromSlice(outerNodes))
	innerInf, ok2 := memo.get(bitset.FromSlice(innerNodes))
	if !ok1 || !ok2 {
		return
	}
	outerPlan := outerInf.best()
	innerPlan := innerInf.best()
	if outerPlan == nil || innerPlan == nil {
		return
	}
	if inf.pruneAgainst(outerPlan.Cost.Total() + innerPlan.Cost.Total()) {
		return
	}
	for _, jp := range p.joinPlans(env, part, outerPlan, innerPlan, outerNodes, innerNodes) {
		inf.considerPlan(jp)
	}
}

// dependencySatisfied enforces outer-join ordering: a node may not be
// placed on the inner side of a join until every node it outer-depends on
// (QO_NODE_OUTER_DEP_SET/RIGHT_DEP_SET) is already on the outer side.
func (p *Planner) dependencySatisfied(env *qg.Env, outer, inner []int) bool {
	outerSet := bitset.FromSlice(outer)
	for _, idx := range inner {
		n := env.Nodes[idx]
		if !n.OuterDepSet.Subset(&outerSet) {
			return false
		}
		if !n.RightDepSet.Subset(&outerSet) {
			return false
		}
	}
	return true
}

func (p *Planner) anyOrderedHint(byRel []*qg.Node) bool {
	for _, n := range byRel {
		if n.Hint.Ordered {
			return true
		}
	}
	return false
}

// isOrderedPrefixSplit enforces the ORDERED hint (spec.md §6): the outer
// side of every split must hold every node whose FROM-clause Location
// precedes any node in the inner side.
func isOrderedPrefixSplit(byRel []*qg.Node, sub1, sub2 int) bool {
	maxOuterLoc := -1
	for i, n := range byRel {
		if sub1&(1<<uint(i)) != 0 && n.Item.Location > maxOuterLoc {
			maxOuterLoc = n.Item.Location
		}
	}
	for i, n := range byRel {
		if sub2&(1<<uint(i)) != 0 && n.Item.Location < maxOuterLoc {
			return false
		}
	}
	return true
}

// edgeTermsBetween finds every join-edge term of part connecting the
// outer and inner node sets, returning their combined selectivity and, if
// any is mergeable, the equivalence class the merge would sort on.
func (p *Planner) edgeTermsBetween(env *qg.Env, part *qg.Partition, outerNodes, innerNodes []int) ([]int, float64, int) {
	outerSet := bitset.FromSlice(outerNodes)
	innerSet := bitset.FromSlice(innerNodes)
	var terms []int
	sel := 1.0
	eqClass := -1
	for _, tIdx := range part.Edges.Members() {
		t := env.Terms[tIdx]
		if t.Nodes.Intersects(&outerSet) && t.Nodes.Intersects(&innerSet) {
			terms = append(terms, tIdx)
			sel *= p.cse.TermSelectivity(env, t)
			if t.Mergeable && eqClass == -1 {
				for _, segIdx := range t.Segs.Members() {
					if env.Segments[segIdx].EqClass >= 0 {
						eqClass = env.Segments[segIdx].EqClass
						break
					}
				}
			}
		}
	}
	return terms, sel, eqClass
}

// joinPlans builds every join-strategy candidate of spec.md §4.3.2 for one
// (outer, inner) split: nested-loop, correlated index join, merge join
// (when enabled and a mergeable edge exists), and plain cross product when
// no edge connects the two sides.
func (p *Planner) joinPlans(env *qg.Env, part *qg.Partition, outerPlan, innerPlan *plan.Plan, outerNodes, innerNodes []int) []*plan.Plan {
	var out []*plan.Plan

	joinTerms, _, eqClass := p.edgeTermsBetween(env, part, outerNodes, innerNodes)
	duringTerms := duringJoinTermsFor(env, outerNodes, innerNodes)

	jt := qg.JoinInner
	var innerSingle *qg.Node
	if len(innerNodes) == 1 {
		innerSingle = env.Nodes[innerNodes[0]]
		jt = innerSingle.Item.JoinType
	}

	allowNL, allowIdx, allowMerge := true, true, true
	if innerSingle != nil {
		h := innerSingle.Hint
		if h.UseNL[innerSingle.Item.Alias] || h.UseIdx[innerSingle.Item.Alias] || h.UseMerge[innerSingle.Item.Alias] {
			allowNL = h.UseNL[innerSingle.Item.Alias]
			allowIdx = h.UseIdx[innerSingle.Item.Alias]
			allowMerge = h.UseMerge[innerSingle.Item.Alias]
		}
	}

	joinTermSet := bitset.FromSlice(joinTerms)

	if allowNL {
		c := p.cse.NLJoinCost(cost.NLJoinParams{
			Outer: outerPlan.Cost, Inner: innerPlan.Cost,
			InnerVarCPU: innerPlan.Cost.VariableCPU, InnerVarIO: innerPlan.Cost.VariableIO,
			InnerPages: innerPlan.Cost.VariableIO, IsOuterJoin: jt.IsOuter(),
		})
		out = append(out, newJoinPlan(jt, plan.JoinMethodNL, outerPlan, innerPlan, joinTermSet, duringTerms, -1, c))
	}

	if allowIdx && innerSingle != nil {
		if idxPlan := p.correlatedIndexJoinPlan(env, innerSingle, outerPlan, joinTerms, duringTerms); idxPlan != nil {
			out = append(out, idxPlan)
		}
	}

	// Fake terms exist only to order the join tree and may never appear in
	// a merge-join plan, which reshapes both sides via an intervening sort
	// (spec.md §4.4 rule 1); nested-loop is the only legal implementation
	// once a fake edge drove this split.
	fakeEdge := termsContainFake(env, joinTerms)

	if allowMerge && p.cfg.MergeJoinEnabled && eqClass >= 0 && !fakeEdge {
		outerSorted := ensureOrder(p.cse, outerPlan, eqClass)
		innerSorted := ensureOrder(p.cse, innerPlan, eqClass)
		c := p.cse.MergeJoinCost(outerSorted.Cost, innerSorted.Cost)
		jp := newJoinPlan(jt, plan.JoinMethodMerge, outerSorted, innerSorted, joinTermSet, duringTerms, eqClass, c)
		out = append(out, jp)
	}

	return out
}

// duringJoinTermsFor collects the ON-clause predicates (spec.md §3
// TermDuringJoin) that first become fully available at this split: its
// referenced nodes are covered by outer∪inner but by neither side alone.
// For any fixed join tree this "crossing" condition holds at exactly one
// split per term -- its lowest ancestor covering all of the term's nodes --
// so every during-join term is attached exactly once, regardless of the
// tree's shape or which side happens to hold the ON-clause's own node.
func duringJoinTermsFor(env *qg.Env, outerNodes, innerNodes []int) bitset.Set {
	var out bitset.Set
	outerSet := bitset.FromSlice(outerNodes)
	innerSet := bitset.FromSlice(innerNodes)
	var combined bitset.Set
	combined.Union(&outerSet)
	combined.Union(&innerSet)

	for _, t := range env.Terms {
		if t.Class != qg.TermDuringJoin {
			continue
		}
		if !t.Nodes.Subset(&combined) {
			continue
		}
		if t.Nodes.Subset(&outerSet) || t.Nodes.Subset(&innerSet) {
			continue
		}
		out.Add(t.Idx)
	}
	return out
}

func termsContainFake(env *qg.Env, termIdxs []int) bool {
	for _, idx := range termIdxs {
		if env.Terms[idx].IsFake {
			return true
		}
	}
	return false
}

func newJoinPlan(jt qg.JoinType, method plan.JoinMethod, outer, inner *plan.Plan, joinTerms, duringTerms bitset.Set, order int, c cost.Summary) *plan.Plan {
	return &plan.Plan{
		Type:  plan.TypeJoin,
		Order: order,
		Cost:  c,
		Join: &plan.JoinPlan{
			JoinType:        jt,
			Method:          method,
			Outer:           outer,
			Inner:           inner,
			JoinTerms:       joinTerms,
			DuringJoinTerms: duringTerms,
		},
		WellRooted: outer.WellRooted && inner.WellRooted,
	}
}

// correlatedIndexJoinPlan builds strategy 1 of spec.md §4.3.2: inner is
// probed once per outer row via an index whose leading column is bound by
// one of the join-edge terms.
func (p *Planner) correlatedIndexJoinPlan(env *qg.Env, inner *qg.Node, outerPlan *plan.Plan, joinTerms []int, duringTerms bitset.Set) *plan.Plan {
	for _, ie := range inner.Indexes {
		if len(ie.Meta.Columns) == 0 {
			continue
		}
		col := ie.Meta.Columns[0].Column
		for _, tIdx := range joinTerms {
			t := env.Terms[tIdx]
			b, ok := t.Expr.(qg.Binary)
			if !ok || b.Op != qg.OpEq {
				continue
			}
			lc, lok := b.Left.(qg.ColumnRef)
			rc, rok := b.Right.(qg.ColumnRef)
			matches := (lok && lc.Table == inner.Item.Alias && lc.Column == col) ||
				(rok && rc.Table == inner.Item.Alias && rc.Column == col)
			if !matches {
				continue
			}
			scanCost := p.cse.IndexScanCost(cost.IndexScanParams{
				Index: ie, RangeSelectivities: []float64{p.cse.TermSelectivity(env, t)}, NCard: inner.NCard, FullRange: true,
			})
			sc := plan.NewScan(inner, plan.ScanIndex)
			sc.Scan.Index = ie
			sc.Scan.IndexEqui = true
			sc.Scan.Terms = bitset.FromSlice([]int{tIdx})
			sc.Cost = scanCost
			sc.WellRooted = true

			joinCost := p.cse.NLJoinCost(cost.NLJoinParams{
				Outer: outerPlan.Cost, Inner: scanCost,
				CorrelatedIndex: true,
				InnerVarCPU:     scanCost.VariableCPU, InnerVarIO: scanCost.VariableIO,
				InnerPages: float64(ie.Meta.Pages), IsOuterJoin: inner.Item.JoinType.IsOuter(),
			})
			return newJoinPlan(inner.Item.JoinType, plan.JoinMethodIdx, outerPlan, sc, bitset.FromSlice([]int{tIdx}), duringTerms, -1, joinCost)
		}
	}
	return nil
}

// ensureOrder wraps p in a temp sort if its output is not already ordered
// by the given equivalence class, per spec.md §4.2 "Sort cost" /
// "already ordered" case.
func ensureOrder(cse *cost.Engine, p *plan.Plan, order int) *plan.Plan {
	if p.Order == order {
		return p
	}
	sc := cse.SortCost(cost.SortCostParams{
		Kind: cost.SortGeneric, Sub: p.Cost, Objects: p.Cost.Cardinality,
		SpillPages: p.Cost.Cardinality / 100, FitsInMemory: p.Cost.Cardinality < float64(cse.Cfg.SortBufferPages)*100,
	})
	return &plan.Plan{
		Type: plan.TypeSort, Order: order, Cost: sc,
		Sort:       &plan.SortPlan{SortType: plan.SortTemp, Sub: p},
		WellRooted: true,
	}
}
