package planner

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/config"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

// Planner is the dynamic-programming join/access-path search of spec.md
// §4.3. It holds no per-query state across calls, only the cost engine
// and config it was built with.
type Planner struct {
	cse *cost.Engine
	cfg *config.Config
	log *logrus.Entry
}

// NewPlanner builds a Planner bound to cfg, using cse for every cost and
// selectivity computation.
func NewPlanner(cfg *config.Config, cse *cost.Engine, log *logrus.Entry) *Planner {
	return &Planner{cfg: cfg, cse: cse, log: log}
}

// Search is the top-level entry point of spec.md §4.3: search each
// partition independently, combine the results by cross product, then
// wrap with SORT ORDERBY/GROUPBY unless the chosen plan's interesting
// order already satisfies the requirement via a skip scan. No DISTINCT
// sort is added.
func (p *Planner) Search(env *qg.Env) (*plan.Plan, error) {
	if !p.cfg.OptLevel.Enabled() {
		return plan.NewWorst(), nil
	}
	if len(env.Partitions) == 0 {
		return plan.NewWorst(), nil
	}

	parts := make([]*qg.Partition, len(env.Partitions))
	copy(parts, env.Partitions)
	sort.Slice(parts, func(i, j int) bool {
		return parts[i].Nodes.FirstMember() < parts[j].Nodes.FirstMember()
	})

	var combined *plan.Plan
	for _, part := range parts {
		pl, err := p.searchPartition(env, part)
		if err != nil {
			return nil, err
		}
		if p.log != nil {
			p.log.WithFields(logrus.Fields{
				"partition": part.Idx, "nodes": part.Nodes.Cardinality(), "cost": pl.Cost.Total(),
			}).Debug("partition plan chosen")
		}
		if combined == nil {
			combined = pl
			continue
		}
		combined = p.crossJoin(combined, pl)
	}
	if combined == nil {
		combined = plan.NewWorst()
	}

	combined = p.attachResidual(env, combined)
	combined = p.wrapSortLimit(env, combined)
	return combined, nil
}

// crossJoin combines two independent partitions' plans. Partitions are
// connected components of the join graph by construction, so there is
// never a join-edge term between them: this is always a plain
// cross-product nested loop.
func (p *Planner) crossJoin(a, b *plan.Plan) *plan.Plan {
	c := p.cse.NLJoinCost(cost.NLJoinParams{
		Outer: a.Cost, Inner: b.Cost,
		InnerVarCPU: b.Cost.VariableCPU, InnerVarIO: b.Cost.VariableIO,
		InnerPages: b.Cost.VariableIO,
	})
	return newJoinPlan(qg.JoinInner, plan.JoinMethodNL, a, b, bitset.Set{}, bitset.Set{}, -1, c)
}

// attachResidual pins every sarg/subquery term not already consumed by an
// access or join plan to the topmost plan node (spec.md §4.4 "residual
// predicate placement"): whatever is left over becomes an after-join
// predicate evaluated once, at the very top.
func (p *Planner) attachResidual(env *qg.Env, top *plan.Plan) *plan.Plan {
	var consumed bitset.Set
	plan.Walk(top, plan.Visitor{Pre: func(pl *plan.Plan) {
		consumed.Union(&pl.SargedTerms)
		if pl.Type == plan.TypeScan {
			// KFTerms are candidate key-filter/access-pred terms the XASL
			// generator will slot onto this scan; they must not also be
			// reapplied as a residual at the top plan.
			consumed.Union(&pl.Scan.KFTerms)
		}
		if pl.Type == plan.TypeJoin {
			consumed.Union(&pl.Join.JoinTerms)
			consumed.Union(&pl.Join.DuringJoinTerms)
		}
	}})

	var residual bitset.Set
	for _, t := range env.Terms {
		if t.IsFake {
			continue
		}
		switch t.Class {
		case qg.TermSarg, qg.TermAfterJoin, qg.TermTotallyAfterJoin, qg.TermOther:
			residual.Add(t.Idx)
		}
	}
	residual.Difference(&consumed)
	top.SargedTerms.Union(&residual)

	var subq bitset.Set
	for _, sq := range env.Subqueries {
		subq.Add(sq.Idx)
	}
	top.Subqueries.Union(&subq)

	return top
}

// wrapSortLimit adds the final SORT ORDERBY/GROUPBY/LIMIT plan node,
// unless the chosen top plan's access path already satisfies the
// requirement via an order-by-skip or group-by-skip scan, or a
// multi-range-optimized scan producing merged sorted output (spec.md
// §4.3.4).
func (p *Planner) wrapSortLimit(env *qg.Env, top *plan.Plan) *plan.Plan {
	if top.IsWorst() {
		return top
	}

	if len(env.Query.GroupBy) > 0 && !satisfiesOrder(top) {
		top = p.sortWrap(top, plan.SortGroupBy)
	}

	if len(env.Query.OrderBy) > 0 && !satisfiesOrder(top) {
		if env.Query.Limit != nil && env.Query.Limit.Upper != nil {
			top = p.sortWrap(top, plan.SortLimitTop)
		} else {
			top = p.sortWrap(top, plan.SortOrderBy)
		}
	}

	return top
}

func satisfiesOrder(top *plan.Plan) bool {
	if top.Type != plan.TypeScan {
		return false
	}
	switch top.Scan.Method {
	case plan.ScanIndexOrderBy, plan.ScanIndexGroupBy:
		return true
	}
	return top.MultiRangeOptUse == plan.MROUse
}

func (p *Planner) sortWrap(sub *plan.Plan, kind plan.SortType) *plan.Plan {
	sortCost := p.cse.SortCost(cost.SortCostParams{
		Kind: cost.SortGeneric, Sub: sub.Cost, Objects: sub.Cost.Cardinality,
		SpillPages:   sub.Cost.Cardinality / 100,
		FitsInMemory: sub.Cost.Cardinality < float64(p.cfg.SortBufferPages)*100,
	})
	return &plan.Plan{
		Type: plan.TypeSort, Order: sub.Order, Cost: sortCost,
		Sort:         &plan.SortPlan{SortType: kind, Sub: sub},
		WellRooted:   true,
		TopRooted:    true,
		HasSortLimit: kind == plan.SortLimitTop,
	}
}
