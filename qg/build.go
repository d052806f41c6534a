package qg

import (
	"fmt"

	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/qoerr"
	"github.com/sirupsen/logrus"
)

// Build translates a resolved parse tree into a populated Env, performing
// every QG responsibility of spec.md §4.1. On any catalog or precondition
// failure it returns a QG-fail error; the caller (optimizer package) is
// responsible for falling back to a worst plan, per spec.md §4.1 "Failure
// modes".
func Build(q *ParsedQuery, cat Catalog, log *logrus.Entry) (*Env, error) {
	env := NewEnv(q)

	if err := addNodes(env, cat); err != nil {
		return nil, qoerr.ErrQueryGraphBuild.New(err.Error())
	}

	terms := flattenConjuncts(q.Where, false, -1)
	for _, fi := range q.From {
		if fi.OnExpr != nil {
			n := env.NodeByAlias(fi.Alias)
			terms = append(terms, flattenConjuncts(fi.OnExpr, true, n.Idx)...)
		}
	}

	for _, texpr := range terms {
		if err := addTerm(env, texpr.expr, texpr.fromOn, texpr.onNode); err != nil {
			return nil, qoerr.ErrQueryGraphBuild.New(err.Error())
		}
	}

	buildEquivalenceClasses(env)
	computeDependencySets(env)
	partitionGraph(env)
	computeFinalSegs(env)
	markSortLimitCandidates(env)
	computeIndexFlags(env)
	registerSubqueries(env)

	if log != nil {
		log.WithFields(logrus.Fields{
			"nodes":      len(env.Nodes),
			"segments":   len(env.Segments),
			"terms":      len(env.Terms),
			"eqclasses":  len(env.EqClasses),
			"partitions": len(env.Partitions),
		}).Debug("query graph built")
	}

	return env, nil
}

func addNodes(env *Env, cat Catalog) error {
	for _, fi := range env.Query.From {
		n := env.AddNode(fi)
		stats, err := cat.ClassStats(fi.Class)
		if err != nil {
			return fmt.Errorf("class %s: %w", fi.Class, err)
		}
		if stats.NCard < 0 || stats.TCard < 0 {
			return qoerr.ErrCorruptStatistics.New(fi.Class, "negative cardinality")
		}
		n.NCard = stats.NCard
		n.TCard = stats.TCard
		n.Sargable = true
		for i := range stats.Indexes {
			meta := stats.Indexes[i]
			n.Indexes = append(n.Indexes, &NodeIndexEntry{Meta: meta})
		}
	}
	return nil
}

type pendingTerm struct {
	expr   Expr
	fromOn bool
	onNode int
}

// flattenConjuncts flattens an AND-tree into its conjuncts, the way the
// builder splits WHERE/ON into a conjunction of terms (spec.md §4.1).
func flattenConjuncts(e Expr, fromOn bool, onNode int) []pendingTerm {
	if e == nil {
		return nil
	}
	if b, ok := e.(Binary); ok && b.Op == OpAnd {
		out := flattenConjuncts(b.Left, fromOn, onNode)
		out = append(out, flattenConjuncts(b.Right, fromOn, onNode)...)
		return out
	}
	return []pendingTerm{{expr: e, fromOn: fromOn, onNode: onNode}}
}

// exprSegs computes the set of nodes and segments touched by e, creating
// Segment entities lazily (qo_expr_segs).
func exprSegs(env *Env, e Expr) (nodes bitset.Set, segs bitset.Set) {
	switch v := e.(type) {
	case nil:
		return
	case ColumnRef:
		seg := env.SegmentByName(-1, v)
		if seg == nil {
			node := env.NodeByAlias(v.Table)
			if node == nil {
				return
			}
			seg = env.AddSegment(node.Idx, v)
		}
		nodes.Add(seg.NodeIdx)
		segs.Add(seg.Idx)
		return
	case Literal, CounterRef:
		return
	case Binary:
		ln, ls := exprSegs(env, v.Left)
		rn, rs := exprSegs(env, v.Right)
		ln.Union(&rn)
		ls.Union(&rs)
		return ln, ls
	case Unary:
		return exprSegs(env, v.Operand)
	case LikeExpr:
		ln, ls := exprSegs(env, v.Operand)
		pn, ps := exprSegs(env, v.Pattern)
		ln.Union(&pn)
		ls.Union(&ps)
		return ln, ls
	case BetweenExpr:
		n1, s1 := exprSegs(env, v.Operand)
		n2, s2 := exprSegs(env, v.Low)
		n3, s3 := exprSegs(env, v.High)
		n1.Union(&n2)
		n1.Union(&n3)
		s1.Union(&s2)
		s1.Union(&s3)
		return n1, s1
	case InExpr:
		n, s := exprSegs(env, v.Operand)
		for _, el := range v.List {
			en, es := exprSegs(env, el)
			n.Union(&en)
			s.Union(&es)
		}
		return n, s
	case RangeExpr:
		n, s := exprSegs(env, v.Operand)
		for _, r := range v.Ranges {
			rn, rs := exprSegs(env, r)
			n.Union(&rn)
			s.Union(&rs)
		}
		return n, s
	case PathExpr:
		n, s := exprSegs(env, v.Head)
		// the tail column belongs to the dereferenced class; QG attaches it
		// to the head node's segment set for the purposes of node coverage.
		_ = v.Tail
		return n, s
	case ExistsExpr:
		return
	default:
		return
	}
}

// isOuterDependentPredicate reports whether e touches an outer-joined node
// without also touching its outer side in a way that would make the
// predicate NULL-tolerant (a crude stand-in for the nullable-attribute
// rules of spec.md §4.4, used to pick TermAfterJoin over TermSarg for a
// single-node predicate and over TermOther for a multi-node one).
func isOuterDependentPredicate(env *Env, nodes bitset.Set) bool {
	for _, idx := range nodes.Members() {
		if env.Nodes[idx].Item.JoinType.IsOuter() {
			return true
		}
	}
	return false
}

func isEqualityOfTwoSingleSegments(env *Env, e Expr) (left *Segment, right *Segment, ok bool) {
	b, isBin := e.(Binary)
	if !isBin || b.Op != OpEq {
		return nil, nil, false
	}
	lc, lok := b.Left.(ColumnRef)
	rc, rok := b.Right.(ColumnRef)
	if !lok || !rok {
		return nil, nil, false
	}
	ls := env.SegmentByName(-1, lc)
	rs := env.SegmentByName(-1, rc)
	if ls == nil || rs == nil || ls.NodeIdx == rs.NodeIdx {
		return nil, nil, false
	}
	return ls, rs, true
}

func containsCounter(e Expr) (CounterKind, bool) {
	switch v := e.(type) {
	case CounterRef:
		return v.Kind, true
	case Binary:
		if k, ok := containsCounter(v.Left); ok {
			return k, true
		}
		return containsCounter(v.Right)
	case Unary:
		return containsCounter(v.Operand)
	default:
		return 0, false
	}
}

func addTerm(env *Env, e Expr, fromOn bool, onNode int) error {
	t := env.AddTerm(e)
	nodes, segs := exprSegs(env, e)
	t.Nodes = nodes
	t.Segs = segs
	t.FromOnClause = fromOn
	t.OnClauseNode = onNode

	for _, idx := range segs.Members() {
		env.Segments[idx].Terms.Add(t.Idx)
	}

	// instnum/orderby_num predicates can only be evaluated once every join
	// has produced a row, regardless of how many (if any) table segments
	// they happen to touch (spec.md §4.4 "Keylimit extraction").
	if _, ok := containsCounter(e); ok {
		t.Class = TermTotallyAfterJoin
		return nil
	}

	// A predicate on a path dereference (`a->b`) is neither a plain sarg
	// nor a join edge: it gates a FETCH_PROC over the dereferenced object
	// and is routed through Follow construction, not index matching
	// (spec.md §4.4 "Follow").
	if isPathPredicate(e) {
		t.Class = TermPath
		if nodes.Cardinality() == 1 {
			env.Nodes[nodes.FirstMember()].PathTerms.Add(t.Idx)
		}
		return nil
	}

	switch {
	case nodes.Cardinality() == 0:
		t.Class = TermOther

	case nodes.Cardinality() == 1:
		if !fromOn && isOuterDependentPredicate(env, nodes) {
			// spec.md §4.4 / scenario 6: a single-table WHERE predicate on
			// the nullable side of an outer join must not gate whether a
			// match was found (it would wrongly suppress the outer-null
			// row); it runs only after the joined row is assembled.
			t.Class = TermAfterJoin
			return nil
		}
		t.Class = TermSarg
		t.CanUseIndex = isIndexableSarg(e)
		nodeIdx := nodes.FirstMember()
		env.Nodes[nodeIdx].Sargs.Add(t.Idx)

	default: // nodes.Cardinality() >= 2
		if _, _, eq := isEqualityOfTwoSingleSegments(env, e); eq {
			t.Class = TermJoin
			t.Mergeable = true
			if fromOn {
				t.JoinType = env.Nodes[onNode].Item.JoinType
			}
		} else if fromOn {
			t.Class = TermDuringJoin
			t.JoinType = env.Nodes[onNode].Item.JoinType
		} else if isOuterDependentPredicate(env, nodes) {
			// spec.md §4.4 / scenario 6: a WHERE predicate touching the
			// nullable side of an outer join must run after the outer
			// row is produced, converting the join to an effective inner
			// join for rows it rejects.
			t.Class = TermAfterJoin
		} else {
			t.Class = TermOther
		}
	}

	if t.Class == TermJoin || t.Class == TermDummyJoin || t.Class == TermDepJoin {
		t.Selectivity = -1 // computed by cost package once eqclasses exist
	}

	return nil
}

// isPathPredicate reports whether e is a direct comparison against a path
// dereference (`a->b = 5`, `a->b IS NULL`), the form spec.md §4.4 classifies
// TermPath rather than TermSarg.
func isPathPredicate(e Expr) bool {
	switch v := e.(type) {
	case Binary:
		_, lp := v.Left.(PathExpr)
		_, rp := v.Right.(PathExpr)
		return lp || rp
	case Unary:
		_, ok := v.Operand.(PathExpr)
		return ok
	case BetweenExpr:
		_, ok := v.Operand.(PathExpr)
		return ok
	case InExpr:
		_, ok := v.Operand.(PathExpr)
		return ok
	}
	return false
}

func isIndexableSarg(e Expr) bool {
	switch v := e.(type) {
	case Binary:
		switch v.Op {
		case OpEq, OpLt, OpLe, OpGt, OpGe:
			_, lcol := v.Left.(ColumnRef)
			_, rcol := v.Right.(ColumnRef)
			return lcol || rcol
		}
	case BetweenExpr, InExpr, RangeExpr:
		return true
	case Unary:
		return v.Op == OpIsNull || v.Op == OpIsNotNull
	}
	return false
}

// buildEquivalenceClasses forms equivalence classes by union-find over
// equi-join terms whose two sides are single segments (spec.md §4.1).
func buildEquivalenceClasses(env *Env) {
	parent := make([]int, len(env.Segments))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, t := range env.Terms {
		if t.Class != TermJoin || !t.Mergeable {
			continue
		}
		ls, rs, ok := isEqualityOfTwoSingleSegments(env, t.Expr)
		if !ok {
			continue
		}
		union(ls.Idx, rs.Idx)
	}

	groups := map[int][]int{}
	for i := range env.Segments {
		r := find(i)
		groups[r] = append(groups[r], i)
	}
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		c := env.AddEqClass()
		for _, m := range members {
			c.Segs.Add(m)
			env.Segments[m].EqClass = c.Idx
			env.Nodes[env.Segments[m].NodeIdx].EqClasses.Add(c.Idx)
		}
	}
}

// computeDependencySets fills OuterDepSet/RightDepSet so that join
// enumeration never places a node before a node it outer-depends on
// (spec.md §4.1). Outer-join ordering is approximated from FROM-clause
// position, since the out-of-scope parser does not hand this package a
// join tree shape, only a flat FROM list annotated per entry.
func computeDependencySets(env *Env) {
	for i, n := range env.Nodes {
		if n.Item.JoinType == JoinLeftOuter || n.Item.JoinType == JoinFullOuter {
			for j := 0; j < i; j++ {
				n.OuterDepSet.Add(j)
			}
		}
		if n.Item.JoinType == JoinRightOuter || n.Item.JoinType == JoinFullOuter {
			for j := 0; j < i; j++ {
				n.RightDepSet.Add(j)
				env.Nodes[j].OuterDepSet.Add(i)
			}
		}
	}
}

// partitionGraph groups nodes into connected components over join edges
// and assigns each a memo-array offset (spec.md §3, §4.1).
func partitionGraph(env *Env) {
	n := len(env.Nodes)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for _, t := range env.Terms {
		if !t.Class.CanBeJoinEdge() {
			continue
		}
		members := t.Nodes.Members()
		for i := 1; i < len(members); i++ {
			union(members[0], members[i])
		}
	}
	// dependency sets also couple nodes into one partition even absent an
	// equivalence class (spec.md "Info node" comment on qo_info.detached).
	for i, nd := range env.Nodes {
		for _, dep := range nd.OuterDepSet.Members() {
			union(i, dep)
		}
		for _, dep := range nd.RightDepSet.Members() {
			union(i, dep)
		}
	}

	groups := map[int][]int{}
	order := []int{}
	for i := 0; i < n; i++ {
		r := find(i)
		if _, seen := groups[r]; !seen {
			order = append(order, r)
		}
		groups[r] = append(groups[r], i)
	}

	offset := 0
	for _, r := range order {
		members := groups[r]
		p := env.AddPartition()
		for relIdx, nodeIdx := range members {
			p.Nodes.Add(nodeIdx)
			env.Nodes[nodeIdx].PartitionIdx = p.Idx
			env.Nodes[nodeIdx].RelIdx = relIdx
		}
		for _, t := range env.Terms {
			if t.Class.CanBeJoinEdge() && t.Nodes.Subset(&p.Nodes) {
				p.Edges.Add(t.Idx)
			}
		}
		p.Offset = offset
		offset += 1 << uint(len(members))
	}
}

// registerSubqueries creates a Subquery record per SubqueryRef reachable
// from a WHERE/ON term (EXISTS or IN (subquery)), recording the node/term
// sets it is attached to so the planner can pin it (spec.md §3, §4.4
// "Sub-query pinning").
func registerSubqueries(env *Env) {
	refToSq := map[*SubqueryRef]*Subquery{}
	for _, ref := range env.Query.Subquery {
		refToSq[ref] = env.AddSubquery(ref)
	}
	for _, t := range env.Terms {
		ref := subqueryRefOf(t.Expr)
		if ref == nil {
			continue
		}
		sq, ok := refToSq[ref]
		if !ok {
			sq = env.AddSubquery(ref)
			refToSq[ref] = sq
		}
		sq.Nodes.Union(&t.Nodes)
		sq.Terms.Add(t.Idx)
		for _, idx := range t.Nodes.Members() {
			env.Nodes[idx].Subqueries.Add(sq.Idx)
		}
	}
}

func subqueryRefOf(e Expr) *SubqueryRef {
	switch v := e.(type) {
	case ExistsExpr:
		return v.Subquery
	case InExpr:
		return v.Subquery
	default:
		return nil
	}
}

func computeFinalSegs(env *Env) {
	for _, oi := range env.Query.OrderBy {
		if s := env.SegmentByName(-1, oi.Column); s != nil {
			env.FinalSegs.Add(s.Idx)
		}
	}
	for _, gi := range env.Query.GroupBy {
		if s := env.SegmentByName(-1, gi); s != nil {
			env.FinalSegs.Add(s.Idx)
		}
	}
}

// markSortLimitCandidates flags nodes whose segments cover every ORDER BY
// column, making them eligible for a SORT-LIMIT plan (spec.md §4.3.4,
// §4.3.5 "node-set covers exactly the columns referenced by ORDER BY").
func markSortLimitCandidates(env *Env) {
	if env.Query.Limit == nil || env.Query.Limit.Upper == nil || len(env.Query.OrderBy) == 0 {
		return
	}
	for _, n := range env.Nodes {
		covers := true
		for _, oi := range env.Query.OrderBy {
			s := env.SegmentByName(-1, oi.Column)
			if s == nil || s.NodeIdx != n.Idx {
				covers = false
				break
			}
		}
		n.SortLimitCandidate = covers
	}
}
