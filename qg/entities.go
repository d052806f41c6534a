package qg

import "github.com/cubrid/queryopt/bitset"

// TermClass is the closed taxonomy of spec.md §3: it determines where a
// term may appear in the final XASL tree.
type TermClass int

const (
	TermPath TermClass = iota
	TermJoin
	TermSarg
	TermOther
	TermDepLink
	TermDepJoin
	TermDuringJoin
	TermAfterJoin
	TermTotallyAfterJoin
	TermDummyJoin
)

func (c TermClass) String() string {
	switch c {
	case TermPath:
		return "path"
	case TermJoin:
		return "join"
	case TermSarg:
		return "sarg"
	case TermOther:
		return "other"
	case TermDepLink:
		return "dep-link"
	case TermDepJoin:
		return "dep-join"
	case TermDuringJoin:
		return "during-join"
	case TermAfterJoin:
		return "after-join"
	case TermTotallyAfterJoin:
		return "totally-after-join"
	case TermDummyJoin:
		return "dummy-join"
	default:
		return "unknown"
	}
}

// IsDep reports QO_IS_DEP_TERM: dep-link or dep-join.
func (c TermClass) IsDep() bool { return c == TermDepLink || c == TermDepJoin }

// CanBeJoinEdge reports whether this class may connect two nodes in the
// join graph (join, dummy-join; dep-join for correlated derived tables).
func (c TermClass) CanBeJoinEdge() bool {
	return c == TermJoin || c == TermDummyJoin || c == TermDepJoin
}

// NodeIndexEntry is one candidate index for a node, annotated with the
// flags spec.md §4.1 requires QG to compute.
type NodeIndexEntry struct {
	Meta IndexMeta

	AllUniqueColumnsEqui bool // every unique column is bound by an equality term
	CoverSegments        bool // index alone supplies every referenced segment
	IsISSCandidate       bool // column 0 not equality-bound, column 1 equality-bound; later columns are not checked
	ILSPrefixLen         int  // loose-scan covering prefix length, 0 if not eligible
	OrderBySkip          bool
	GroupBySkip          bool
}

// Node is a table reference in FROM (spec.md §3).
type Node struct {
	Idx    int
	RelIdx int // relative index within its Partition, assigned at partitioning time

	Item  *FromItem
	Class string

	Segs       bitset.Set
	EqClasses  bitset.Set
	Sargs      bitset.Set // term indices, single-table predicates
	PathTerms  bitset.Set // term indices classified TermPath, rooted at this node
	Selectivity float64

	Subqueries bitset.Set

	OuterDepSet bitset.Set // QO_NODE_OUTER_DEP_SET
	RightDepSet bitset.Set // QO_NODE_RIGHT_DEP_SET
	DepSet      bitset.Set // correlated-derived-table dependency; Build leaves it empty

	NCard int64
	TCard int64

	Indexes []*NodeIndexEntry

	Hint               HintFlags
	Sargable           bool
	SortLimitCandidate bool

	PartitionIdx int
}

// Segment is an attribute reference of a Node (spec.md §3).
type Segment struct {
	Idx      int
	NodeIdx  int
	Name     ColumnRef
	EqClass  int // -1 until assigned
	Terms    bitset.Set

	NotNull bool // used by order-by/group-by-skip NULL-loss rule (§4.3.4)
}

// Term is a conjunct of WHERE/ON after flattening (spec.md §3).
type Term struct {
	Idx   int
	Expr  Expr
	Class TermClass

	Nodes    bitset.Set
	Segs     bitset.Set

	Selectivity float64

	JoinType    JoinType
	CanUseIndex bool
	Mergeable   bool

	// IsFake marks a synthetic ordering-only term, never evaluated at
	// runtime (spec.md §9 "Fake terms").
	IsFake   bool
	FakeEdge [2]int // the (outer,inner) node pair this fake term orders

	// Location distinguishes ON-clause placement from WHERE, needed for
	// outer-join sarg-promotion rules (spec.md §4.4, scenario 6).
	FromOnClause bool
	OnClauseNode int // node whose ON-clause this term belongs to, if FromOnClause
}

// EqClass is a maximal set of segments connected by equi-join terms
// (spec.md §3).
type EqClass struct {
	Idx      int
	Segs     bitset.Set // empty if this is a synthetic class
	MergeTerm int       // -1 unless this is a synthetic class for a composite merge term
}

// Partition is a connected component of the join graph (spec.md §3).
type Partition struct {
	Idx    int
	Nodes  bitset.Set
	Edges  bitset.Set // term indices that are join edges within this partition
	Offset int        // memo-array offset: 2^|Nodes| slots reserved from here

	Plan interface{} // *plan.Plan, kept opaque to avoid an import cycle
}

// Subquery is a correlated subquery record (spec.md §3).
type Subquery struct {
	Idx   int
	Ref   *SubqueryRef
	Nodes bitset.Set
	Terms bitset.Set
}
