// Package xasl implements the XASL generator of spec.md §4.4: it walks a
// finalized plan.Plan and emits an executor tree, splitting each node's
// predicates into the four slots the executor evaluates at different points
// (key_range/key_filter/access_pred/if_pred, after_join_pred/instnum_pred).
package xasl

import (
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

// Type is the executor node tag, one variant per kind the generator emits.
type Type int

const (
	TypeScan Type = iota
	TypeSort
	TypeBuildList
	TypeListScan
	TypeNLJoin
	TypeMergeJoin
	TypeFollow
)

// KeyLimit is the (lower, upper) register pair compiled from instnum/
// orderby_num predicates (spec.md §4.4 "Keylimit extraction"). Either bound
// may be nil if the corresponding predicate form was absent.
type KeyLimit struct {
	Lower, Upper *int64
}

// ScanSpec is one access-path executor node, carrying the four predicate
// slots of spec.md §4.4's table.
type ScanSpec struct {
	Node   *qg.Node
	Method plan.ScanMethod
	Index  *qg.NodeIndexEntry

	KeyRange   []int // B+tree range boundary: the scan's chosen key-range terms
	KeyFilter  []int // evaluated inside the scan, before record fetch
	AccessPred []int // evaluated after record fetch
	IfPred     []int // not eligible for access/after-join; evaluated after row assembly

	Descending bool
	KeyLimit   *KeyLimit

	// Subqueries are correlated subqueries pinned to this scan (spec.md
	// §4.4 "Sub-query pinning"): re-evaluated once per row it produces.
	Subqueries []int
}

// SortSpec wraps a subplan in SORT ORDERBY/GROUPBY/DISTINCT/LIMIT or a plain
// SORT_TEMP.
type SortSpec struct {
	Sub      *Node
	SortType plan.SortType
}

// MergeColumn is one (outer_position, inner_position, unique_flag) triple of
// spec.md §4.4 "Sort-merge wiring".
type MergeColumn struct {
	OuterPos, InnerPos int
	Unique             bool
}

// BuildListSpec renders one side of a merge join: a SORT_TEMP over Sub,
// ordered ascending on the join equivalence class's leading columns
// (spec.md §4.4: "per-side sort orders always ASC").
type BuildListSpec struct {
	Sub      *Node
	SortCols []qg.OrderItem
}

// ListScanSpec is the LIST_SCAN_PROC that pulls a BuildListSpec's output
// back out, dropping the join-expression prefix from projection.
type ListScanSpec struct {
	Build *Node
}

// JoinSpec is a join executor node, nested-loop or merge.
type JoinSpec struct {
	JoinType qg.JoinType
	Outer    *Node
	Inner    *Node

	// MergeColumns is set only for merge joins: the column-position triples
	// of spec.md §4.4's sort-merge wiring paragraph.
	MergeColumns []MergeColumn

	// JoinPred is the join-edge condition itself. It is left empty for a
	// correlated-index join, where the condition is already embedded in
	// the inner scan's key_range.
	JoinPred       []int
	DuringJoinPred []int
	AfterJoinPred  []int
	InstnumPred    []int

	// KeyLimit is set only on INNER joins, from the join's instnum
	// predicates (spec.md §4.4's last bullet).
	KeyLimit *KeyLimit

	// Subqueries are correlated subqueries pinned to this join (spec.md
	// §4.4 "Sub-query pinning").
	Subqueries []int
}

// FollowSpec is a FETCH_PROC dereferencing a path expression, gated by the
// follow term's sarged predicates (spec.md §4.4 "Follow").
type FollowSpec struct {
	Head     *Node
	PathTerm int
	GatePred []int
}

// Node is the tagged executor-tree sum type the generator emits.
type Node struct {
	Type Type

	Scan      *ScanSpec
	Sort      *SortSpec
	BuildList *BuildListSpec
	ListScan  *ListScanSpec
	Join      *JoinSpec
	Follow    *FollowSpec
}
