package cost

import (
	"testing"

	"github.com/cubrid/queryopt/config"
	"github.com/cubrid/queryopt/qg"
	"github.com/stretchr/testify/require"
)

func TestSelectivityClampedAndOrFormula(t *testing.T) {
	e := NewEngine(config.Default())
	env := &qg.Env{Query: &qg.ParsedQuery{}}

	or := qg.Binary{Op: qg.OpOr,
		Left:  qg.Unary{Op: qg.OpIsNull, Operand: qg.ColumnRef{}},
		Right: qg.Unary{Op: qg.OpIsNull, Operand: qg.ColumnRef{}},
	}
	s := e.ExprSelectivity(env, or)
	require.GreaterOrEqual(t, s, 0.0)
	require.LessOrEqual(t, s, 1.0)
	// p + p - p*p for p=0.01
	require.InDelta(t, 0.01+0.01-0.01*0.01, s, 1e-9)
}

func TestNullSelectivities(t *testing.T) {
	e := NewEngine(config.Default())
	env := &qg.Env{}
	require.Equal(t, 0.01, e.ExprSelectivity(env, qg.Unary{Op: qg.OpIsNull}))
	require.InDelta(t, 0.99, e.ExprSelectivity(env, qg.Unary{Op: qg.OpIsNotNull}), 1e-9)
}

func TestInListSelectivityCapped(t *testing.T) {
	e := NewEngine(config.Default())
	env := &qg.Env{}
	in := qg.InExpr{Operand: qg.Literal{}, List: make([]qg.Expr, 10000)}
	s := e.ExprSelectivity(env, in)
	require.LessOrEqual(t, s, 0.5)
}

func TestSeqScanCost(t *testing.T) {
	e := NewEngine(config.Default())
	n := &qg.Node{NCard: 1000, TCard: 100}
	s := e.SeqScanCost(n)
	require.Equal(t, 0.0, s.FixedCPU+s.FixedIO)
	require.Equal(t, 1000.0*e.Cfg.CPUWeight, s.VariableCPU)
	require.Equal(t, 100.0, s.VariableIO)
}

func TestIndexScanForcedWinnerOnUniqueEqui(t *testing.T) {
	e := NewEngine(config.Default())
	idx := &qg.NodeIndexEntry{
		Meta: qg.IndexMeta{Unique: true, Height: 2, LeafPages: 10, Pages: 20, Keys: 1000, PKeys: []int64{1000}},
		AllUniqueColumnsEqui: true,
	}
	s := e.IndexScanCost(IndexScanParams{Index: idx, RangeSelectivities: []float64{0.001}, NCard: 1000, FullRange: true})
	require.Equal(t, 0.0, s.Total())
}

func TestMergeJoinCostFormula(t *testing.T) {
	e := NewEngine(config.Default())
	outer := Summary{Cardinality: 100}
	inner := Summary{Cardinality: 200}
	s := e.MergeJoinCost(outer, inner)
	require.InDelta(t, (100.0/2)*(200.0/2)*e.Cfg.CPUWeight, s.VariableCPU, 1e-9)
}

func TestSortCostInheritsWhenAlreadyOrdered(t *testing.T) {
	e := NewEngine(config.Default())
	sub := Summary{FixedCPU: 5, VariableCPU: 7}
	out := e.SortCost(SortCostParams{Kind: SortAlreadyOrdered, Sub: sub})
	require.Equal(t, sub, out)
}
