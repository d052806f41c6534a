package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

func issCatalog() *fakeCatalog {
	return &fakeCatalog{stats: map[string]*qg.ClassStats{
		"t": {NCard: 10000, TCard: 500, Indexes: []qg.IndexMeta{
			{Name: "idx_bc", Columns: []qg.IndexColumn{
				{Column: "b", Ascending: true}, {Column: "c", Ascending: true},
			}, Height: 3, LeafPages: 100, Pages: 200, Keys: 10000, PKeys: []int64{5, 10000}},
		}},
	}}
}

func TestNodePlansGeneratesISSWhenLeadingColumnUnbound(t *testing.T) {
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op:    qg.OpEq,
			Left:  qg.ColumnRef{Table: "t", Column: "c"},
			Right: qg.Literal{Value: 7},
		},
	}
	env, err := qg.Build(q, issCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	n := env.NodeByAlias("t")
	plans := p.nodePlans(env, n)

	var sawISS bool
	for _, pl := range plans {
		if pl.Type == plan.TypeScan && pl.Scan.Method == plan.ScanIndexInspect {
			sawISS = true
			require.True(t, pl.Scan.IndexISS)
		}
	}
	require.True(t, sawISS, "expected an index-skip-scan candidate")
}

func TestNodePlansAlwaysIncludesSeqScan(t *testing.T) {
	q := &qg.ParsedQuery{From: []*qg.FromItem{{Alias: "t", Class: "t"}}}
	env, err := qg.Build(q, issCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	n := env.NodeByAlias("t")
	plans := p.nodePlans(env, n)

	var sawSeq bool
	for _, pl := range plans {
		if pl.Type == plan.TypeScan && pl.Scan.Method == plan.ScanSeq {
			sawSeq = true
		}
	}
	require.True(t, sawSeq)
}

func TestMatchIndexColumnsStopsAtFirstUnbound(t *testing.T) {
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op:    qg.OpGt,
			Left:  qg.ColumnRef{Table: "t", Column: "b"},
			Right: qg.Literal{Value: 1},
		},
	}
	env, err := qg.Build(q, issCatalog(), nil)
	require.NoError(t, err)
	n := env.NodeByAlias("t")
	ie := n.Indexes[0]

	p := newTestPlanner()
	eqTerms, _, rangeTerm, _ := p.matchIndexColumns(env, n, ie)
	require.Empty(t, eqTerms)
	require.Len(t, rangeTerm, 1)
}
