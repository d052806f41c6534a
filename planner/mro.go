package planner

import (
	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

// mroPlan builds the multi-range-optimization variant of spec.md §4.3.1:
// when the trailing range term expands to several disjoint key ranges
// (IN-list, pre-merged RangeExpr) and the query carries an ORDER BY/LIMIT
// matching the index's next column, the ranges are scanned in merged
// sorted order instead of materializing every range and re-sorting.
func (p *Planner) mroPlan(env *qg.Env, n *qg.Node, ie *qg.NodeIndexEntry, eqTerms []int, eqSels []float64, rangeTerm []int) *plan.Plan {
	if p.cfg.NoMultiRangeOpt || n.Hint.NoMultiRangeOpt || len(rangeTerm) == 0 {
		return nil
	}
	if env.Query.Limit == nil || len(env.Query.OrderBy) == 0 {
		return nil
	}
	rt := env.Terms[rangeTerm[0]]
	nRanges, ok := mroRangeCount(rt)
	if !ok || nRanges < 2 {
		return nil
	}
	ob := env.Query.OrderBy[0]
	if len(ie.Meta.Columns) <= len(eqTerms) || ie.Meta.Columns[len(eqTerms)].Column != ob.Column.Column {
		return nil
	}

	allSels := append(append([]float64{}, eqSels...), p.cse.TermSelectivity(env, rt))
	sc := plan.NewScan(n, plan.ScanIndexOptimized)
	sc.Scan.Index = ie
	sc.Scan.Terms = bitset.FromSlice(append(append([]int{}, eqTerms...), rangeTerm...))
	sc.SargedTerms = sc.Scan.Terms
	sc.WellRooted = true
	sc.Order = n.EqClasses.FirstMember()
	sc.MultiRangeOptUse = plan.MROUse
	sc.UseDescending = ob.Descending
	sc.Cost = p.cse.IndexScanCost(cost.IndexScanParams{
		Index: ie, RangeSelectivities: allSels, NCard: n.NCard, FullRange: true,
	})

	if limit := env.Query.Limit.Upper; limit != nil && sc.Cost.Cardinality > 0 {
		keycap := float64(*limit) * float64(nRanges)
		if keycap < sc.Cost.Cardinality {
			ratio := keycap / sc.Cost.Cardinality
			sc.Cost.VariableIO *= ratio
			sc.Cost.VariableCPU *= ratio
			sc.Cost.Cardinality = keycap
		}
	}
	return sc
}

// mroRangeCount reports how many discrete key ranges a term expands to.
func mroRangeCount(t *qg.Term) (int, bool) {
	switch v := t.Expr.(type) {
	case qg.InExpr:
		if v.Subquery != nil {
			return 0, false
		}
		return len(v.List), true
	case qg.RangeExpr:
		return len(v.Ranges), true
	default:
		return 0, false
	}
}
