package qg

import "github.com/cubrid/queryopt/bitset"

// Env is the owning container for one optimization: every cross-reference
// elsewhere in the optimizer core is an integer index into these arrays
// (spec.md §3 "one owning container").
type Env struct {
	Query *ParsedQuery

	Nodes      []*Node
	Segments   []*Segment
	Terms      []*Term
	EqClasses  []*EqClass
	Partitions []*Partition
	Subqueries []*Subquery

	// FinalSegs is the set of segments that must be projected out of the
	// top-level plan (spec.md "final_segs").
	FinalSegs bitset.Set
}

// NewEnv allocates an empty environment.
func NewEnv(q *ParsedQuery) *Env {
	return &Env{Query: q}
}

// AddNode appends a new Node and returns it with Idx set.
func (e *Env) AddNode(item *FromItem) *Node {
	n := &Node{Idx: len(e.Nodes), Item: item, Class: item.Class, Hint: e.Query.Hints}
	e.Nodes = append(e.Nodes, n)
	return n
}

// AddSegment appends a new Segment owned by node nodeIdx.
func (e *Env) AddSegment(nodeIdx int, name ColumnRef) *Segment {
	s := &Segment{Idx: len(e.Segments), NodeIdx: nodeIdx, Name: name, EqClass: -1}
	e.Segments = append(e.Segments, s)
	e.Nodes[nodeIdx].Segs.Add(s.Idx)
	return s
}

// AddTerm appends a new Term.
func (e *Env) AddTerm(expr Expr) *Term {
	t := &Term{Idx: len(e.Terms), Expr: expr}
	e.Terms = append(e.Terms, t)
	return t
}

// AddEqClass appends a new, empty equivalence class.
func (e *Env) AddEqClass() *EqClass {
	c := &EqClass{Idx: len(e.EqClasses), MergeTerm: -1}
	e.EqClasses = append(e.EqClasses, c)
	return c
}

// AddPartition appends a new partition.
func (e *Env) AddPartition() *Partition {
	p := &Partition{Idx: len(e.Partitions)}
	e.Partitions = append(e.Partitions, p)
	return p
}

// AddSubquery appends a new subquery record.
func (e *Env) AddSubquery(ref *SubqueryRef) *Subquery {
	s := &Subquery{Idx: len(e.Subqueries), Ref: ref}
	e.Subqueries = append(e.Subqueries, s)
	return s
}

// NodeByAlias looks up a node by its FROM-entry alias.
func (e *Env) NodeByAlias(alias string) *Node {
	for _, n := range e.Nodes {
		if n.Item.Alias == alias {
			return n
		}
	}
	return nil
}

// SegmentByName looks up a segment by its (table, column) name, restricted
// to nodeIdx if >= 0.
func (e *Env) SegmentByName(nodeIdx int, name ColumnRef) *Segment {
	for _, s := range e.Segments {
		if s.Name == name && (nodeIdx < 0 || s.NodeIdx == nodeIdx) {
			return s
		}
	}
	return nil
}
