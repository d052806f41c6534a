// Package cost implements the Selectivity & Cost Engine (SCE) of spec.md
// §4.2: pure functions of the query graph and catalog statistics, with no
// side effects and no dependency on the planner's search state.
package cost

import (
	"math"

	"github.com/cubrid/queryopt/config"
	"github.com/cubrid/queryopt/qg"
)

// Engine evaluates selectivity and cost formulas against one Config. It
// holds no per-query state; every method is a function of its arguments
// (spec.md §4.2 "Pure functions of graph + catalog"), except that
// TermSelectivity also stores its result in the term's Selectivity field.
type Engine struct {
	Cfg *config.Config
}

// NewEngine builds a SCE bound to cfg.
func NewEngine(cfg *config.Config) *Engine {
	return &Engine{Cfg: cfg}
}

func clamp01(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// indexedCardinality returns the total key count of the first candidate
// index whose leading column is col, or 0 if there is none.
func indexedCardinality(n *qg.Node, col string) (int64, bool) {
	for _, ie := range n.Indexes {
		if len(ie.Meta.Columns) > 0 && ie.Meta.Columns[0].Column == col {
			return ie.Meta.Keys, true
		}
	}
	return 0, false
}

// ExprSelectivity computes s(e) recursively per spec.md §4.2.
func (e *Engine) ExprSelectivity(env *qg.Env, expr qg.Expr) float64 {
	switch v := expr.(type) {
	case qg.Binary:
		switch v.Op {
		case qg.OpAnd:
			return clamp01(e.ExprSelectivity(env, v.Left) * e.ExprSelectivity(env, v.Right))
		case qg.OpOr:
			a := e.ExprSelectivity(env, v.Left)
			b := e.ExprSelectivity(env, v.Right)
			return clamp01(a + b - a*b)
		case qg.OpEq:
			return e.equalitySelectivity(env, v)
		case qg.OpLt, qg.OpLe, qg.OpGt, qg.OpGe, qg.OpNe:
			return 1.0 / 3.0 // open range, no dedicated spec formula: conservative default
		}
	case qg.Unary:
		switch v.Op {
		case qg.OpNot:
			return clamp01(1 - e.ExprSelectivity(env, v.Operand))
		case qg.OpIsNull:
			return e.Cfg.NullSelectivity
		case qg.OpIsNotNull:
			return clamp01(1 - e.Cfg.NullSelectivity)
		}
	case qg.ExistsExpr:
		return e.Cfg.ExistsSelectivity
	case qg.LikeExpr:
		return e.Cfg.LikeSelectivity
	case qg.BetweenExpr:
		return e.Cfg.BetweenSelectivity
	case qg.RangeExpr:
		base := e.columnEqSelectivity(env, v.Operand)
		return math.Min(float64(len(v.Ranges))*base, e.Cfg.RangeRowSelectivityCap)
	case qg.InExpr:
		base := e.columnEqSelectivity(env, v.Operand)
		var n float64
		if v.Subquery != nil {
			if v.Subquery.HasEstimate {
				n = v.Subquery.EstimatedRowCard
			} else {
				n = e.Cfg.SubqueryCardFallback
			}
		} else {
			n = float64(len(v.List))
		}
		return math.Min(n*base, e.Cfg.RangeRowSelectivityCap)
	}
	return e.Cfg.DefaultEqSelectivity
}

func (e *Engine) equalitySelectivity(env *qg.Env, b qg.Binary) float64 {
	lc, lIsCol := b.Left.(qg.ColumnRef)
	rc, rIsCol := b.Right.(qg.ColumnRef)

	switch {
	case lIsCol && rIsCol:
		lCard, lOK := e.indexCardForColumn(env, lc)
		rCard, rOK := e.indexCardForColumn(env, rc)
		switch {
		case lOK && rOK:
			return 1.0 / math.Max(float64(lCard), float64(rCard))
		case lOK:
			return 1.0 / float64(lCard)
		case rOK:
			return 1.0 / float64(rCard)
		default:
			return e.Cfg.DefaultEqSelectivity
		}
	case lIsCol:
		return e.columnEqSelectivity(env, lc)
	case rIsCol:
		return e.columnEqSelectivity(env, rc)
	default:
		return e.Cfg.DefaultEqSelectivity
	}
}

func (e *Engine) columnEqSelectivity(env *qg.Env, expr qg.Expr) float64 {
	cr, ok := expr.(qg.ColumnRef)
	if !ok {
		return e.Cfg.DefaultEqSelectivity
	}
	card, indexed := e.indexCardForColumn(env, cr)
	if !indexed {
		return e.Cfg.DefaultEqSelectivity
	}
	return 1.0 / float64(card)
}

func (e *Engine) indexCardForColumn(env *qg.Env, cr qg.ColumnRef) (int64, bool) {
	n := env.NodeByAlias(cr.Table)
	if n == nil {
		return 0, false
	}
	return indexedCardinality(n, cr.Column)
}

// TermSelectivity computes and caches a term's selectivity.
func (e *Engine) TermSelectivity(env *qg.Env, t *qg.Term) float64 {
	if t.Selectivity > 0 {
		return t.Selectivity
	}
	s := e.ExprSelectivity(env, t.Expr)
	t.Selectivity = s
	return s
}
