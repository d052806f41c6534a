package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubrid/queryopt/config"
	"github.com/cubrid/queryopt/cost"
	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
)

type fakeCatalog struct {
	stats map[string]*qg.ClassStats
}

func (f *fakeCatalog) ClassStats(class string) (*qg.ClassStats, error) {
	return f.stats[class], nil
}

func joinCatalog() *fakeCatalog {
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

func newTestPlanner() *Planner {
	cfg := config.Default()
	return NewPlanner(cfg, cost.NewEngine(cfg), nil)
}

func TestSearchSingleTableEquality(t *testing.T) {
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op:    qg.OpEq,
			Left:  qg.ColumnRef{Table: "t", Column: "a"},
			Right: qg.Literal{Value: 5},
		},
	}
	env, err := qg.Build(q, joinCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.False(t, pl.IsWorst())

	var scan *plan.Plan
	plan.Walk(pl, plan.Visitor{Pre: func(n *plan.Plan) {
		if n.Type == plan.TypeScan {
			scan = n
		}
	}})
	require.NotNil(t, scan)
	require.Equal(t, plan.ScanIndex, scan.Scan.Method)
	require.NotNil(t, scan.Scan.Index)
	require.Equal(t, "pk_t", scan.Scan.Index.Meta.Name)
}

func TestSearchTwoTableEquiJoinPicksSomePlan(t *testing.T) {
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
	env, err := qg.Build(q, joinCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.False(t, pl.IsWorst())
	require.Equal(t, plan.TypeJoin, pl.Type)
	require.Less(t, pl.Cost.Total(), 1e300)
}

func TestSearchDisjointPartitionsCrossJoins(t *testing.T) {
	q := &qg.ParsedQuery{
		From: []*qg.FromItem{
			{Alias: "r", Class: "r"},
			{Alias: "s", Class: "s"},
		},
	}
	env, err := qg.Build(q, joinCatalog(), nil)
	require.NoError(t, err)

	p := newTestPlanner()
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.Equal(t, plan.TypeJoin, pl.Type)
	require.Equal(t, plan.JoinMethodNL, pl.Join.Method)
}

func TestOptLevelDisabledReturnsWorst(t *testing.T) {
	q := &qg.ParsedQuery{From: []*qg.FromItem{{Alias: "t", Class: "t"}}}
	env, err := qg.Build(q, joinCatalog(), nil)
	require.NoError(t, err)

	cfg := config.Default()
	cfg.OptLevel = config.OptDisabled
	p := NewPlanner(cfg, cost.NewEngine(cfg), nil)
	pl, err := p.Search(env)
	require.NoError(t, err)
	require.True(t, pl.IsWorst())
}
