package xasl

import (
	"fmt"

	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
	"github.com/cubrid/queryopt/qoerr"
)

// Generate walks a finalized plan and emits its executor tree (spec.md
// §4.4). cat is consulted only by Follow generation, to resolve a path
// dereference's target class; it may be nil for plans with no TypeFollow
// node.
func Generate(env *qg.Env, cat qg.Catalog, top *plan.Plan) (*Node, error) {
	if top == nil || top.IsWorst() {
		return nil, qoerr.ErrUnsupportedConstruct.New("no plan to generate XASL for")
	}
	g := &generator{env: env, cat: cat}
	g.pinSubqueries(top)
	return g.generate(top)
}

type generator struct {
	env *qg.Env
	cat qg.Catalog

	// pins maps a finalized plan node to the subquery indices pinned to it
	// (spec.md §4.4 "Sub-query pinning").
	pins map[*plan.Plan][]int
}

type coverage struct {
	nodes bitset.Set
	terms bitset.Set
}

// pinSubqueries computes, for every subquery record, the deepest plan node
// whose accumulated node-set and term-set both cover what the subquery
// references, and records that as the pin: the node producing the fewest
// rows at which the subquery is already safe to re-evaluate per output row.
func (g *generator) pinSubqueries(top *plan.Plan) {
	cov := map[*plan.Plan]coverage{}
	plan.Walk(top, plan.Visitor{Post: func(p *plan.Plan) {
		cov[p] = coverageOf(p, cov)
	}})

	g.pins = map[*plan.Plan][]int{}
	for _, sq := range g.env.Subqueries {
		var best *plan.Plan
		bestCard := -1
		plan.Walk(top, plan.Visitor{Pre: func(p *plan.Plan) {
			c := cov[p]
			if !sq.Nodes.Subset(&c.nodes) || !sq.Terms.Subset(&c.terms) {
				return
			}
			n := c.nodes.Cardinality()
			if best == nil || n < bestCard {
				best, bestCard = p, n
			}
		}})
		if best != nil {
			g.pins[best] = append(g.pins[best], sq.Idx)
		}
	}
}

func coverageOf(p *plan.Plan, cov map[*plan.Plan]coverage) coverage {
	var c coverage
	switch p.Type {
	case plan.TypeScan:
		c.nodes.Add(p.Scan.Node.Idx)
		c.terms.Union(&p.Scan.Terms)
		c.terms.Union(&p.Scan.KFTerms)
	case plan.TypeSort:
		c = cov[p.Sort.Sub]
	case plan.TypeJoin:
		oc, ic := cov[p.Join.Outer], cov[p.Join.Inner]
		c.nodes.Union(&oc.nodes)
		c.nodes.Union(&ic.nodes)
		c.terms.Union(&oc.terms)
		c.terms.Union(&ic.terms)
		c.terms.Union(&p.Join.JoinTerms)
		c.terms.Union(&p.Join.DuringJoinTerms)
	case plan.TypeFollow:
		c = cov[p.Follow.Head]
		c.terms.Add(p.Follow.PathTerm)
	}
	c.terms.Union(&p.SargedTerms)
	return c
}

func (g *generator) generate(p *plan.Plan) (*Node, error) {
	switch p.Type {
	case plan.TypeScan:
		return g.generateScan(p)
	case plan.TypeSort:
		return g.generateSort(p)
	case plan.TypeJoin:
		return g.generateJoin(p)
	case plan.TypeFollow:
		return g.generateFollow(p)
	default:
		return nil, qoerr.ErrUnsupportedConstruct.New(fmt.Sprintf("plan type %d", p.Type))
	}
}

func (g *generator) generateSort(p *plan.Plan) (*Node, error) {
	sub, err := g.generate(p.Sort.Sub)
	if err != nil {
		return nil, err
	}
	return &Node{Type: TypeSort, Sort: &SortSpec{Sub: sub, SortType: p.Sort.SortType}}, nil
}

// generateScan splits a scan's candidate key-filter terms into key_filter,
// access_pred, and if_pred (spec.md §4.4's predicate-slot table), then
// folds in any residual predicate attachResidual pinned directly to this
// scan (the common case for a single-table query carrying an instnum/
// orderby_num predicate).
func (g *generator) generateScan(p *plan.Plan) (*Node, error) {
	sc := p.Scan
	spec := &ScanSpec{
		Node:       sc.Node,
		Method:     sc.Method,
		Index:      sc.Index,
		Descending: p.UseDescending,
		KeyRange:   sc.Terms.Members(),
		Subqueries: g.pins[p],
	}

	// A term's segments being a subset of the index's own columns makes it
	// eligible for key_filter, evaluated inside the scan before the record
	// is fetched. A WHERE-sourced (not ON-clause) sarg on the nullable side
	// of an outer join is never promoted even then: qg's builder already
	// routes the genuinely unsafe case (WHERE predicates) to TermAfterJoin
	// before it ever reaches KFTerms, but an ON-clause single-table
	// condition co-determining the match is still safe to push down, so
	// this only guards a term that somehow arrives here WHERE-sourced
	// (spec.md §4.4, scenario 6).
	isOuterInner := sc.Node.Item.JoinType.IsOuter()
	var cols map[string]bool
	if sc.Index != nil {
		cols = indexColumnSet(sc.Index)
	}
	for _, tIdx := range sc.KFTerms.Members() {
		t := g.env.Terms[tIdx]
		covered := cols != nil && termCoveredByColumns(g.env, t, cols)
		switch {
		case covered && (t.FromOnClause || !isOuterInner):
			spec.KeyFilter = append(spec.KeyFilter, tIdx)
		case isIfPredTerm(t):
			spec.IfPred = append(spec.IfPred, tIdx)
		default:
			spec.AccessPred = append(spec.AccessPred, tIdx)
		}
	}

	var consumed bitset.Set
	consumed.Assign(&sc.Terms)
	consumed.Union(&sc.KFTerms)
	var extra bitset.Set
	extra.Assign(&p.SargedTerms)
	extra.Difference(&consumed)

	var instnum []int
	for _, tIdx := range extra.Members() {
		t := g.env.Terms[tIdx]
		if t.Class == qg.TermTotallyAfterJoin {
			instnum = append(instnum, tIdx)
			spec.IfPred = append(spec.IfPred, tIdx)
		} else {
			spec.AccessPred = append(spec.AccessPred, tIdx)
		}
	}
	if p.Order >= 0 {
		spec.KeyLimit = keylimitFromTerms(g.env, instnum)
	}

	return &Node{Type: TypeScan, Scan: spec}, nil
}

// generateJoin renders a join's nested-loop/index form directly, or hands
// off to generateMergeJoin for the sort-merge BUILD_LIST/LIST_SCAN form.
func (g *generator) generateJoin(p *plan.Plan) (*Node, error) {
	jp := p.Join
	if jp.Method == plan.JoinMethodMerge {
		return g.generateMergeJoin(p)
	}

	outer, err := g.generate(jp.Outer)
	if err != nil {
		return nil, err
	}
	inner, err := g.generate(jp.Inner)
	if err != nil {
		return nil, err
	}

	spec := &JoinSpec{JoinType: jp.JoinType, Outer: outer, Inner: inner}
	spec.DuringJoinPred = jp.DuringJoinTerms.Members()
	spec.Subqueries = g.pins[p]

	joinTerms := jp.JoinTerms.Members()
	// A correlated-index join already embeds its edge term as the inner
	// scan's key_range; any OTHER join edge touching only that scan's
	// indexed columns can be pushed into its key_filter instead of being
	// re-evaluated at the join (spec.md §4.4 rule 3, covering/MRO scans).
	if jp.Method != plan.JoinMethodIdx && canPushToKeyFilter(jp.Inner) {
		cols := indexColumnSet(jp.Inner.Scan.Index)
		var kept []int
		for _, tIdx := range joinTerms {
			t := g.env.Terms[tIdx]
			if termCoveredByColumns(g.env, t, cols) {
				inner.Scan.KeyFilter = append(inner.Scan.KeyFilter, tIdx)
				continue
			}
			kept = append(kept, tIdx)
		}
		joinTerms = kept
	}
	if jp.Method == plan.JoinMethodIdx && jp.Inner.Type == plan.TypeScan {
		var kept []int
		for _, tIdx := range joinTerms {
			if !jp.Inner.Scan.Terms.Member(tIdx) {
				kept = append(kept, tIdx)
			}
		}
		joinTerms = kept
	}
	spec.JoinPred = joinTerms

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

	return &Node{Type: TypeNLJoin, Join: spec}, nil
}

func canPushToKeyFilter(p *plan.Plan) bool {
	return p.Type == plan.TypeScan && p.Scan.Index != nil &&
		(p.Scan.IndexCover || p.MultiRangeOptUse == plan.MROUse)
}

func isIfPredTerm(t *qg.Term) bool {
	_, ok := t.Expr.(qg.ExistsExpr)
	return ok
}

func indexColumnSet(ie *qg.NodeIndexEntry) map[string]bool {
	out := make(map[string]bool, len(ie.Meta.Columns))
	for _, c := range ie.Meta.Columns {
		out[c.Column] = true
	}
	return out
}

func termCoveredByColumns(env *qg.Env, t *qg.Term, cols map[string]bool) bool {
	if t.Segs.Cardinality() == 0 {
		return false
	}
	for _, segIdx := range t.Segs.Members() {
		if !cols[env.Segments[segIdx].Name.Column] {
			return false
		}
	}
	return true
}
