// Package plan implements the plan data model of spec.md §4.3/§3: the
// scan/sort/join/follow/worst plan variants, cost attribution, ordering
// guarantees, and plan comparison. Per spec.md §9's design note, this is a
// tagged variant (one Go struct per plan kind) rather than a macro-driven
// union: visitor functions switch on Type and receive the concrete
// sub-struct directly.
package plan

import (
	"math"

	"github.com/cubrid/queryopt/bitset"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/qg"
)

// Type is QO_PLANTYPE.
type Type int

const (
	TypeScan Type = iota
	TypeSort
	TypeJoin
	TypeFollow
	TypeWorst
)

// ScanMethod is QO_SCANMETHOD.
type ScanMethod int

const (
	ScanSeq ScanMethod = iota
	ScanIndex
	ScanIndexOrderBy
	ScanIndexGroupBy
	ScanIndexInspect  // index-skip scan
	ScanIndexOptimized // multi-range optimization
)

// JoinMethod is QO_JOINMETHOD.
type JoinMethod int

const (
	JoinMethodNL JoinMethod = iota
	JoinMethodIdx
	JoinMethodMerge
)

// SortType distinguishes the reasons a temp/sort node exists.
type SortType int

const (
	SortTemp SortType = iota
	SortOrderBy
	SortGroupBy
	SortDistinct
	SortLimitTop
)

// MultiRangeOptUse is QO_PLAN_ULTI_RANGE_OPT_USE.
type MultiRangeOptUse int

const (
	MROCannotUse MultiRangeOptUse = -1
	MRONo        MultiRangeOptUse = 0
	MROUse       MultiRangeOptUse = 1
)

// ScanPlan is the QO_PLANTYPE_SCAN variant.
type ScanPlan struct {
	Method            ScanMethod
	Node              *qg.Node
	Terms             bitset.Set // key-range eligible sarg terms chosen for this scan
	KFTerms           bitset.Set // key-filter terms
	IndexEqui         bool
	IndexCover        bool
	IndexISS          bool
	IndexLoose        bool
	Index             *qg.NodeIndexEntry
	MultiColRangeSegs bitset.Set
}

// SortPlan is the QO_PLANTYPE_SORT variant: "build a temp file" over Sub,
// sorted if SortKind implies ordering.
type SortPlan struct {
	SortType SortType
	Sub      *Plan
}

// JoinPlan is the QO_PLANTYPE_JOIN variant.
type JoinPlan struct {
	JoinType        qg.JoinType
	Method          JoinMethod
	Outer, Inner    *Plan
	JoinTerms       bitset.Set
	DuringJoinTerms bitset.Set
	OtherOuterTerms bitset.Set
	AfterJoinTerms  bitset.Set
}

// FollowPlan is the QO_PLANTYPE_FOLLOW variant: an object-path dereference.
type FollowPlan struct {
	Head     *Plan
	PathTerm int
}

// Plan is the tagged sum type of spec.md §3/§4.3.
type Plan struct {
	Type Type
	Cost cost.Summary

	// Order is the equivalence-class index this plan's output is sorted
	// by, or -1 if unordered (QO_EQCLASS *order).
	Order int

	SargedTerms bitset.Set
	Subqueries  bitset.Set

	TopRooted    bool
	WellRooted   bool
	HasSortLimit bool

	MultiRangeOptUse MultiRangeOptUse
	UseDescending    bool

	ISCanSortList []qg.OrderItem // iscan_sort_list

	Scan   *ScanPlan
	Sort   *SortPlan
	Join   *JoinPlan
	Follow *FollowPlan

	refcount int
}

// NewScan builds a scan plan over a node.
func NewScan(node *qg.Node, method ScanMethod) *Plan {
	return &Plan{Type: TypeScan, Order: -1, Scan: &ScanPlan{Method: method, Node: node}}
}

// NewWorst builds the WorstPlan sentinel: cost = +infinity, per spec.md §6.
func NewWorst() *Plan {
	return &Plan{
		Type:  TypeWorst,
		Order: -1,
		Cost:  cost.Summary{FixedCPU: 0, VariableCPU: posInf, VariableIO: posInf},
	}
}

var posInf = math.Inf(1) // IEEE-754 +Inf, matches "cost = +∞"

// IsWorst reports whether p is the worst-plan sentinel.
func (p *Plan) IsWorst() bool { return p.Type == TypeWorst }

// AddRef increments the refcount (qo_plan_add_ref).
func (p *Plan) AddRef() *Plan {
	p.refcount++
	return p
}

// DelRef decrements the refcount; callers that want free-list behavior
// should check Refcount() == 0 afterward (qo_plan_del_ref). The Go
// implementation never frees memory explicitly -- the GC reclaims a
// zero-refcount plan once its last pointer is dropped -- but the refcount
// itself is preserved because comparison and finalization logic elsewhere
// in the original depends on observing it.
func (p *Plan) DelRef() {
	if p.refcount > 0 {
		p.refcount--
	}
}

// Refcount reports the current refcount.
func (p *Plan) Refcount() int { return p.refcount }
