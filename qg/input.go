package qg

// JoinType mirrors the PT_JOIN_* enum the original parse tree carries on
// each FROM entry.
type JoinType int

const (
	JoinInner JoinType = iota
	JoinLeftOuter
	JoinRightOuter
	JoinFullOuter
)

// IsOuter reports whether j participates in outer-join ordering
// constraints (QO_NODE_IS_OUTER_JOIN).
func (j JoinType) IsOuter() bool {
	return j == JoinLeftOuter || j == JoinRightOuter || j == JoinFullOuter
}

// HintFlags carries the subset of parser hints the planner consults
// (spec.md §6).
type HintFlags struct {
	Ordered         bool
	UseIdxDesc      bool
	NoIdxDesc       bool
	NoMultiRangeOpt bool
	// UseNL/UseIdx/UseMerge constrain the join method considered for the
	// inner node named by the map key (a FROM-entry alias).
	UseNL    map[string]bool
	UseIdx   map[string]bool
	UseMerge map[string]bool
}

// IndexColumn describes one column of a candidate index, in key order.
type IndexColumn struct {
	Column    string
	Ascending bool
}

// IndexMeta is the catalog-supplied description of one candidate index
// (spec.md §6 `stats(index)`).
type IndexMeta struct {
	Name      string
	Columns   []IndexColumn
	Unique    bool
	IsFilter  bool // filter index: excludes ISS eligibility (spec.md §9 open question)
	Height    int
	LeafPages int
	Pages     int
	Keys      int64
	PKeys     []int64 // PKeys[i] = distinct count of the (i+1)-column prefix
}

// ClassStats is the catalog-supplied per-class size summary (spec.md §6
// `stats(class_oid)`).
type ClassStats struct {
	NCard   int64
	TCard   int64
	Indexes []IndexMeta
}

// Catalog is the external statistics collaborator (spec.md §1 "Out of
// scope: Catalog / statistics service").
type Catalog interface {
	ClassStats(class string) (*ClassStats, error)
}

// FromItem is one resolved FROM-clause entry.
type FromItem struct {
	Alias    string
	Class    string // underlying class/table name for catalog lookups
	JoinType JoinType
	OnExpr   Expr // nil for the first (or comma-joined) entry
	Location int  // textual position, used by ORDERED hint and outer-join ordering
}

// OrderItem is one ORDER BY / GROUP BY key.
type OrderItem struct {
	Column     ColumnRef
	Descending bool
}

// LimitSpec captures LIMIT / ROWNUM / ORDERBY_NUM upper and lower bounds
// (spec.md §4.4 "Keylimit extraction").
type LimitSpec struct {
	Lower, Upper *int64 // nil means unbounded
}

// ParsedQuery is the resolved parse tree input to the builder: the only
// shape this package needs from the (out of scope) SQL parser/semantic
// analyzer.
type ParsedQuery struct {
	From      []*FromItem
	Where     Expr
	GroupBy   []ColumnRef
	OrderBy   []OrderItem
	Limit     *LimitSpec
	Hints     HintFlags
	Subquery  []*SubqueryRef // all correlated subqueries reachable from this level
	Rollup    bool           // WITH ROLLUP, disables group-by skip (spec.md §4.3.4)
	HasAggregate bool
}
