// Package qg builds the query-graph model (nodes, segments, terms,
// equivalence classes, partitions) from a resolved parse tree, per spec.md
// §3 and §4.1. SQL parsing and semantic analysis are out of scope; this
// package only consumes an already-resolved tree.
package qg

// Operator enumerates the predicate/join operators the builder recognizes.
type Operator int

const (
	OpEq Operator = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAnd
	OpOr
	OpNot
	OpIsNull
	OpIsNotNull
	OpLike
	OpBetween
	OpIn
	OpExists
	OpRange
)

// Expr is a resolved scalar or boolean expression node. Concrete variants:
// ColumnRef, Literal, Binary, Unary, InExpr, BetweenExpr, RangeExpr,
// LikeExpr, ExistsExpr, PathExpr, CounterRef.
type Expr interface {
	isExpr()
}

// ColumnRef names a resolved column of a FROM entry.
type ColumnRef struct {
	Table  string
	Column string
}

func (ColumnRef) isExpr() {}

// Literal is a resolved constant.
type Literal struct {
	Value interface{}
}

func (Literal) isExpr() {}

// Binary is a two-operand expression: comparisons (OpEq, OpLt, ...) and
// boolean connectives (OpAnd, OpOr).
type Binary struct {
	Op          Operator
	Left, Right Expr
}

func (Binary) isExpr() {}

// Unary is a one-operand expression: OpNot, OpIsNull, OpIsNotNull.
type Unary struct {
	Op      Operator
	Operand Expr
}

func (Unary) isExpr() {}

// LikeExpr is `operand LIKE pattern`.
type LikeExpr struct {
	Operand Expr
	Pattern Expr
}

func (LikeExpr) isExpr() {}

// BetweenExpr is `operand BETWEEN low AND high`.
type BetweenExpr struct {
	Operand   Expr
	Low, High Expr
}

func (BetweenExpr) isExpr() {}

// InExpr is `operand IN (list...)` or `operand IN (subquery)`.
type InExpr struct {
	Operand  Expr
	List     []Expr
	Subquery *SubqueryRef
}

func (InExpr) isExpr() {}

// RangeExpr is a pre-merged disjunction of k equality/range sub-ranges on
// one column, e.g. `a = 1 OR a = 2 OR (a > 5 AND a < 9)`, folded by the
// builder into one QO_TC_SARG-eligible term (spec.md §4.2 `a RANGE {...}`).
type RangeExpr struct {
	Operand Expr
	Ranges  []Expr // each element is itself a comparison/between sub-range
}

func (RangeExpr) isExpr() {}

// ExistsExpr is `EXISTS (subquery)`.
type ExistsExpr struct {
	Subquery *SubqueryRef
}

func (ExistsExpr) isExpr() {}

// PathExpr is an object-path dereference (`a->b`), classified QO_TC_PATH
// and ultimately lowered to a FETCH_PROC by the XASL generator (spec.md
// §4.4 "Follow").
type PathExpr struct {
	Head Expr
	Tail ColumnRef
}

func (PathExpr) isExpr() {}

// CounterKind distinguishes the two pseudo-columns that gate keylimit
// extraction in spec.md §4.4.
type CounterKind int

const (
	CounterInstnum CounterKind = iota
	CounterOrderbyNum
)

// CounterRef is a reference to ROWNUM/instnum or ORDERBY_NUM, classified
// TermTotallyAfterJoin since it can only be evaluated once every join has
// produced a row (spec.md §4.4 "Keylimit extraction").
type CounterRef struct {
	Kind CounterKind
}

func (CounterRef) isExpr() {}

// SubqueryRef points at a correlated subquery recorded on the parse tree;
// the optimizer core never inspects its body, only the node/term sets it
// touches (spec.md §3 "Subquery record").
type SubqueryRef struct {
	ID               int
	EstimatedRowCard float64 // catalog/semantic-analysis-supplied fallback cardinality
	HasEstimate      bool
}
