package xasl

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubrid/queryopt/config"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/planner"
	"github.com/cubrid/queryopt/qg"
)

type fakeCatalog struct {
	stats map[string]*qg.ClassStats
}

func (f *fakeCatalog) ClassStats(class string) (*qg.ClassStats, error) {
	return f.stats[class], nil
}

func testCatalog() *fakeCatalog {
	return &fakeCatalog{stats: map[string]*qg.ClassStats{
		"t": {NCard: 1000, TCard: 100, Indexes: []qg.IndexMeta{
			{Name: "pk_t", Columns: []qg.IndexColumn{{Column: "a", Ascending: true}}, Unique: true, Height: 2, LeafPages: 10, Pages: 20, Keys: 1000, PKeys: []int64{1000}},
		}},
		"r": {NCard: 500, TCard: 50},
		"s": {NCard: 2000, TCard: 200, Indexes: []qg.IndexMeta{
			{Name: "idx_y", Columns: []qg.IndexColumn{{Column: "y", Ascending: true}}, Height: 3, LeafPages: 40, Pages: 80, Keys: 2000, PKeys: []int64{2000}},
		}},
	}}
}

func newTestPlanner() *planner.Planner {
	cfg := config.Default()
	return planner.NewPlanner(cfg, cost.NewEngine(cfg), nil)
}

func TestGenerateSingleTableEqualityUsesKeyRange(t *testing.T) {
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op:    qg.OpEq,
			Left:  qg.ColumnRef{Table: "t", Column: "a"},
			Right: qg.Literal{Value: 5},
		},
	}
	env, err := qg.Build(q, testCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.False(t, pl.IsWorst())

	n, err := Generate(env, testCatalog(), pl)
	require.NoError(t, err)
	scan := findScan(n)
	require.NotNil(t, scan)
	require.NotEmpty(t, scan.Scan.KeyRange)
	require.Empty(t, scan.Scan.AccessPred)
}

func TestGenerateSplitsNonLeadingSargIntoAccessPred(t *testing.T) {
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op: qg.OpAnd,
			Left: qg.Binary{
				Op:    qg.OpEq,
				Left:  qg.ColumnRef{Table: "t", Column: "a"},
				Right: qg.Literal{Value: 5},
			},
			Right: qg.Binary{
				Op:    qg.OpEq,
				Left:  qg.ColumnRef{Table: "t", Column: "z"},
				Right: qg.Literal{Value: 9},
			},
		},
	}
	env, err := qg.Build(q, testCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.False(t, pl.IsWorst())

	n, err := Generate(env, testCatalog(), pl)
	require.NoError(t, err)
	scan := findScan(n)
	require.NotNil(t, scan)
	require.NotEmpty(t, scan.Scan.KeyRange)
	require.NotEmpty(t, scan.Scan.AccessPred)
}

func TestGenerateInstnumPredicateProducesIfPredAndKeyLimit(t *testing.T) {
	upper := int64(10)
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op:    qg.OpLe,
			Left:  qg.CounterRef{Kind: qg.CounterInstnum},
			Right: qg.Literal{Value: upper},
		},
		OrderBy: []qg.OrderItem{{Column: qg.ColumnRef{Table: "t", Column: "a"}}},
	}
	env, err := qg.Build(q, testCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.False(t, pl.IsWorst())

	n, err := Generate(env, testCatalog(), pl)
	require.NoError(t, err)
	scan := findScan(n)
	require.NotNil(t, scan, "expected a scan node somewhere in the tree")
	require.NotEmpty(t, scan.Scan.IfPred)
	if scan.Scan.KeyLimit != nil {
		require.NotNil(t, scan.Scan.KeyLimit.Upper)
		require.Equal(t, upper, *scan.Scan.KeyLimit.Upper)
	}
}

func findScan(n *Node) *Node {
	switch n.Type {
	case TypeScan:
		return n
	case TypeSort:
		return findScan(n.Sort.Sub)
	case TypeNLJoin, TypeMergeJoin:
		if s := findScan(n.Join.Outer); s != nil {
			return s
		}
		return findScan(n.Join.Inner)
	case TypeFollow:
		return findScan(n.Follow.Head)
	case TypeBuildList:
		return findScan(n.BuildList.Sub)
	case TypeListScan:
		return findScan(n.ListScan.Build)
	default:
		return nil
	}
}

func TestGenerateTwoTableEquiJoinProducesJoinNode(t *testing.T) {
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{
			{Alias: "r", Class: "r"},
			{Alias: "s", Class: "s"},
		},
		Where: qg.Binary{
			Op:    qg.OpEq,
			Left:  qg.ColumnRef{Table: "r", Column: "x"},
			Right: qg.ColumnRef{Table: "s", Column: "y"},
		},
	}
	env, err := qg.Build(q, testCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.False(t, pl.IsWorst())

	n, err := Generate(env, testCatalog(), pl)
	require.NoError(t, err)
	require.Contains(t, []Type{TypeNLJoin, TypeMergeJoin}, n.Type)
	require.NotNil(t, n.Join)
	require.NotNil(t, n.Join.Outer)
	require.NotNil(t, n.Join.Inner)
}

func TestKeylimitFromTermsCollapsesConjunctsViaLeastGreatest(t *testing.T) {
	env := qg.NewEnv(&qg.ParsedQuery{})
	t1 := env.AddTerm(qg.Binary{Op: qg.OpLe, Left: qg.CounterRef{Kind: qg.CounterInstnum}, Right: qg.Literal{Value: int64(20)}})
	t2 := env.AddTerm(qg.Binary{Op: qg.OpLe, Left: qg.CounterRef{Kind: qg.CounterInstnum}, Right: qg.Literal{Value: int64(10)}})
	t3 := env.AddTerm(qg.Binary{Op: qg.OpGe, Left: qg.CounterRef{Kind: qg.CounterInstnum}, Right: qg.Literal{Value: int64(3)}})

	kl := keylimitFromTerms(env, []int{t1.Idx, t2.Idx, t3.Idx})
	require.NotNil(t, kl)
	require.NotNil(t, kl.Upper)
	require.Equal(t, int64(10), *kl.Upper)
	require.NotNil(t, kl.Lower)
	require.Equal(t, int64(3), *kl.Lower)
}

func TestCounterBoundFlipsReversedComparison(t *testing.T) {
	term := &qg.Term{Expr: qg.Binary{Op: qg.OpLt, Left: qg.Literal{Value: int64(5)}, Right: qg.CounterRef{Kind: qg.CounterOrderbyNum}}}
	lo, hi, ok := counterBound(term)
	require.True(t, ok)
	require.Nil(t, hi)
	require.NotNil(t, lo)
	require.Equal(t, int64(6), *lo)
}
