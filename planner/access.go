package planner

import (
	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

// nodePlans generates every per-node access plan candidate for n, per
// spec.md §4.3.1: sequential scan plus one index-scan plan per valid
// prefix of equality terms extended by at most one range term, plus
// loose-scan / index-skip-scan / multi-range-opt variants where eligible.
func (p *Planner) nodePlans(env *qg.Env, n *qg.Node) []*plan.Plan {
	var out []*plan.Plan

	if !n.Hint.UseIdx[n.Item.Alias] || len(n.Indexes) == 0 {
		out = append(out, p.seqScanPlan(env, n))
	}

	for _, ie := range n.Indexes {
		out = append(out, p.indexScanPlans(env, n, ie)...)
	}

	if len(out) == 0 {
		out = append(out, p.seqScanPlan(env, n))
	}
	return out
}

func (p *Planner) seqScanPlan(env *qg.Env, n *qg.Node) *plan.Plan {
	pl := plan.NewScan(n, plan.ScanSeq)
	pl.Cost = p.cse.SeqScanCost(n)
	pl.SargedTerms = n.Sargs
	pl.WellRooted = true
	return pl
}

// indexScanPlans enumerates the access-path variants for one candidate
// index: the equality-prefix-plus-one-range scan, and, where eligible,
// ISS/ILS/MRO/order-by-skip/group-by-skip variants (spec.md §4.3.1,
// §4.3.4).
func (p *Planner) indexScanPlans(env *qg.Env, n *qg.Node, ie *qg.NodeIndexEntry) []*plan.Plan {
	var out []*plan.Plan

	eqTerms, eqSels, rangeTerm, rangeSel := p.matchIndexColumns(env, n, ie)

	// A plan whose leading column carries no predicate at all is rejected
	// unless it qualifies as ISS, ILS, filter-index, or an order-by/
	// group-by-skip scan (spec.md §4.3.1).
	if len(eqTerms) > 0 || len(rangeTerm) > 0 || ie.OrderBySkip || ie.GroupBySkip || ie.Meta.IsFilter {
		allSels := append(append([]float64{}, eqSels...), rangeSel...)
		sc := plan.NewScan(n, plan.ScanIndex)
		sc.Scan.Index = ie
		sc.Scan.IndexEqui = len(rangeTerm) == 0 && len(eqTerms) == len(ie.Meta.Columns)
		sc.Scan.IndexCover = ie.CoverSegments
		sc.Scan.Terms = bitset.FromSlice(append(append([]int{}, eqTerms...), rangeTerm...))
		sc.Scan.KFTerms = remainingSargs(n, sc.Scan.Terms)
		sc.SargedTerms = sc.Scan.Terms
		sc.WellRooted = true
		sc.Cost = p.cse.IndexScanCost(cost.IndexScanParams{
			Index: ie, RangeSelectivities: allSels, NCard: n.NCard, FullRange: len(rangeTerm) == 0 && len(eqTerms) == 0,
		})
		if ie.OrderBySkip && len(env.Query.OrderBy) > 0 {
			sc.Order = n.EqClasses.FirstMember()
			sc.Scan.Method = plan.ScanIndexOrderBy
			sc.UseDescending = env.Query.OrderBy[0].Descending
		}
		if ie.GroupBySkip {
			sc.Scan.Method = plan.ScanIndexGroupBy
		}
		out = append(out, sc)
	}

	if ie.IsISSCandidate {
		issTerms, issSels := p.issTrailingEquality(env, n, ie)
		iss := plan.NewScan(n, plan.ScanIndexInspect)
		iss.Scan.Index = ie
		iss.Scan.IndexISS = true
		iss.Scan.Terms = bitset.FromSlice(issTerms)
		iss.SargedTerms = iss.Scan.Terms
		iss.WellRooted = true
		iss.Cost = p.cse.IndexScanCost(cost.IndexScanParams{
			Index: ie, RangeSelectivities: issSels, NCard: n.NCard, IsSkipScan: true, FullRange: true,
		})
		out = append(out, iss)
	}

	if ie.ILSPrefixLen > 0 {
		ils := plan.NewScan(n, plan.ScanIndex)
		ils.Scan.Index = ie
		ils.Scan.IndexLoose = true
		ils.Scan.IndexCover = true
		ils.WellRooted = true
		ils.Cost = p.cse.IndexScanCost(cost.IndexScanParams{Index: ie, NCard: n.NCard, FullRange: true})
		out = append(out, ils)
	}

	if mro := p.mroPlan(env, n, ie, eqTerms, eqSels, rangeTerm); mro != nil {
		out = append(out, mro)
	}

	return out
}

// issTrailingEquality collects the equality terms bound to an ISS
// candidate's columns after the skipped leading column (spec.md §4.3.1
// "index skip scan"): column 0 is left unconstrained, and the run of
// equality-bound columns from column 1 on is collected, stopping at the
// first column without an equality term.
func (p *Planner) issTrailingEquality(env *qg.Env, n *qg.Node, ie *qg.NodeIndexEntry) ([]int, []float64) {
	var terms []int
	var sels []float64
	for _, col := range ie.Meta.Columns[1:] {
		idx, sel, ok := p.findEqualityTerm(env, n, col.Column)
		if !ok {
			break
		}
		terms = append(terms, idx)
		sels = append(sels, sel)
	}
	return terms, sels
}

// matchIndexColumns walks an index's columns in order, collecting the
// leading run of equality-bound terms and, immediately after it, at most
// one trailing range term (spec.md §4.3.1). Any column past that point is
// left unconstrained and ends the scan's usable key prefix.
func (p *Planner) matchIndexColumns(env *qg.Env, n *qg.Node, ie *qg.NodeIndexEntry) (eqTerms []int, eqSels []float64, rangeTerm []int, rangeSel []float64) {
	for _, col := range ie.Meta.Columns {
		eqIdx, eqSel, eqOK := p.findEqualityTerm(env, n, col.Column)
		if eqOK {
			eqTerms = append(eqTerms, eqIdx)
			eqSels = append(eqSels, eqSel)
			continue
		}
		if rIdx, rSel, rOK := p.findRangeTerm(env, n, col.Column); rOK {
			rangeTerm = append(rangeTerm, rIdx)
			rangeSel = append(rangeSel, rSel)
		}
		break
	}
	return
}

func (p *Planner) findEqualityTerm(env *qg.Env, n *qg.Node, col string) (int, float64, bool) {
	for _, idx := range n.Sargs.Members() {
		t := env.Terms[idx]
		b, ok := t.Expr.(qg.Binary)
		if !ok || b.Op != qg.OpEq {
			continue
		}
		if cr, ok := b.Left.(qg.ColumnRef); ok && cr.Column == col {
			return idx, p.cse.TermSelectivity(env, t), true
		}
		if cr, ok := b.Right.(qg.ColumnRef); ok && cr.Column == col {
			return idx, p.cse.TermSelectivity(env, t), true
		}
	}
	return 0, 0, false
}

func (p *Planner) findRangeTerm(env *qg.Env, n *qg.Node, col string) (int, float64, bool) {
	for _, idx := range n.Sargs.Members() {
		t := env.Terms[idx]
		if !t.CanUseIndex {
			continue
		}
		switch v := t.Expr.(type) {
		case qg.Binary:
			if v.Op == qg.OpEq {
				continue
			}
			if cr, ok := v.Left.(qg.ColumnRef); ok && cr.Column == col {
				return idx, p.cse.TermSelectivity(env, t), true
			}
			if cr, ok := v.Right.(qg.ColumnRef); ok && cr.Column == col {
				return idx, p.cse.TermSelectivity(env, t), true
			}
		case qg.BetweenExpr:
			if cr, ok := v.Operand.(qg.ColumnRef); ok && cr.Column == col {
				return idx, p.cse.TermSelectivity(env, t), true
			}
		case qg.InExpr:
			if cr, ok := v.Operand.(qg.ColumnRef); ok && cr.Column == col {
				return idx, p.cse.TermSelectivity(env, t), true
			}
		case qg.RangeExpr:
			if cr, ok := v.Operand.(qg.ColumnRef); ok && cr.Column == col {
				return idx, p.cse.TermSelectivity(env, t), true
			}
		}
	}
	return 0, 0, false
}

func remainingSargs(n *qg.Node, used bitset.Set) bitset.Set {
	var out bitset.Set
	out.Union(&n.Sargs)
	out.Difference(&used)
	return out
}
