package xasl

import (
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

// generateMergeJoin renders a sort-merge join as a BUILD_LIST/LIST_SCAN
// pair per side, wired on the join equivalence class both sides were sorted
// on during search (spec.md §4.4 "Sort-merge wiring").
func (g *generator) generateMergeJoin(p *plan.Plan) (*Node, error) {
	jp := p.Join

	outerBuild, err := g.buildList(jp.Outer, p.Order)
	if err != nil {
		return nil, err
	}
	innerBuild, err := g.buildList(jp.Inner, p.Order)
	if err != nil {
		return nil, err
	}
	outerScan := &Node{Type: TypeListScan, ListScan: &ListScanSpec{Build: outerBuild}}
	innerScan := &Node{Type: TypeListScan, ListScan: &ListScanSpec{Build: innerBuild}}

	spec := &JoinSpec{JoinType: jp.JoinType, Outer: outerScan, Inner: innerScan}
	spec.DuringJoinPred = jp.DuringJoinTerms.Members()
	spec.Subqueries = g.pins[p]
	spec.MergeColumns = mergeColumnsFor(g.env, p.Order)

	var afterJoin, instnum []int
	for _, tIdx := range p.SargedTerms.Members() {
		t := g.env.Terms[tIdx]
		if t.Class == qg.TermTotallyAfterJoin {
			instnum = append(instnum, tIdx)
		} else {
			afterJoin = append(afterJoin, tIdx)
		}
	}
	spec.AfterJoinPred = afterJoin
	spec.InstnumPred = instnum
	if jp.JoinType == qg.JoinInner {
		spec.KeyLimit = keylimitFromTerms(g.env, instnum)
	}

	return &Node{Type: TypeMergeJoin, Join: spec}, nil
}

// buildList renders one merge-join side. ensureOrder (the planner's
// join-search step) wraps a side in a plain SORT_TEMP only when its access
// path didn't already produce the needed order; when it did (an
// interesting-order index scan), sub itself is the content to re-expose
// through BUILD_LIST.
func (g *generator) buildList(sub *plan.Plan, eqClass int) (*Node, error) {
	content := sub
	if sub.Type == plan.TypeSort && sub.Sort.SortType == plan.SortTemp {
		content = sub.Sort.Sub
	}
	inner, err := g.generate(content)
	if err != nil {
		return nil, err
	}
	return &Node{Type: TypeBuildList, BuildList: &BuildListSpec{
		Sub:      inner,
		SortCols: sortColsFor(g.env, eqClass),
	}}, nil
}

func sortColsFor(env *qg.Env, eqClass int) []qg.OrderItem {
	if eqClass < 0 || eqClass >= len(env.EqClasses) {
		return nil
	}
	members := env.EqClasses[eqClass].Segs.Members()
	if len(members) == 0 {
		return nil
	}
	// The merge join's own sort order is always ASC per side (spec.md
	// §4.4); any DESC requirement belongs to the outer ORDER BY wrap.
	return []qg.OrderItem{{Column: env.Segments[members[0]].Name, Descending: false}}
}

func mergeColumnsFor(env *qg.Env, eqClass int) []MergeColumn {
	if eqClass < 0 {
		return nil
	}
	return []MergeColumn{{OuterPos: 0, InnerPos: 0, Unique: isUniqueEqClass(env, eqClass)}}
}

// isUniqueEqClass reports whether the join key is bound, on either side, by
// a single-column unique index -- the case where the merge can stop probing
// an inner run after its first match.
func isUniqueEqClass(env *qg.Env, eqClass int) bool {
	if eqClass < 0 || eqClass >= len(env.EqClasses) {
		return false
	}
	for _, segIdx := range env.EqClasses[eqClass].Segs.Members() {
		seg := env.Segments[segIdx]
		node := env.Nodes[seg.NodeIdx]
		for _, ie := range node.Indexes {
			if ie.Meta.Unique && len(ie.Meta.Columns) == 1 && ie.Meta.Columns[0].Column == seg.Name.Column {
				return true
			}
		}
	}
	return false
}
