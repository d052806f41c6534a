package optimizer

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubrid/queryopt/config"
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
	}}
}

func equalityQuery() *qg.ParsedQuery {
	return &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op:    qg.OpEq,
			Left:  qg.ColumnRef{Table: "t", Column: "a"},
			Right: qg.Literal{Value: 5},
		},
	}
}

func TestOptimizeProducesATreeAndPopulatesCache(t *testing.T) {
	o := New(config.Default(), nil)
	cat := testCatalog()

	res, err := o.Optimize(equalityQuery(), cat)
	require.NoError(t, err)
	require.False(t, res.Worst)
	require.NotNil(t, res.Tree)
	require.Contains(t, res.Classes, "t")
	require.Equal(t, 1, o.Plans().Len())
	require.NotEmpty(t, res.TraceID)
}

func TestOptimizeGivesEachCallItsOwnTraceID(t *testing.T) {
	o := New(config.Default(), nil)
	cat := testCatalog()

	first, err := o.Optimize(equalityQuery(), cat)
	require.NoError(t, err)
	second, err := o.Optimize(equalityQuery(), cat)
	require.NoError(t, err)

	require.NotEmpty(t, first.TraceID)
	require.NotEmpty(t, second.TraceID)
	require.NotEqual(t, first.TraceID, second.TraceID, "each optimization gets its own trace id even on a cache hit")
}

func TestOptimizeServesSecondCallFromCache(t *testing.T) {
	o := New(config.Default(), nil)
	cat := testCatalog()

	first, err := o.Optimize(equalityQuery(), cat)
	require.NoError(t, err)

	second, err := o.Optimize(equalityQuery(), cat)
	require.NoError(t, err)
	require.Same(t, first.Entry, second.Entry)
	require.EqualValues(t, 2, second.Entry.Refcount())
}

func TestOptimizeWithDisabledLevelReturnsWorst(t *testing.T) {
	cfg := config.Default()
	cfg.OptLevel = config.OptDisabled
	o := New(cfg, nil)

	res, err := o.Optimize(equalityQuery(), testCatalog())
	require.NoError(t, err)
	require.True(t, res.Worst)
	require.Nil(t, res.Tree)
}

func TestOptimizeWithDifferingLiteralsSharesOnePlanCacheEntry(t *testing.T) {
	o := New(config.Default(), nil)
	cat := testCatalog()

	q1 := equalityQuery()
	q2 := equalityQuery()
	q2.Where = qg.Binary{Op: qg.OpEq, Left: qg.ColumnRef{Table: "t", Column: "a"}, Right: qg.Literal{Value: 999}}

	r1, err := o.Optimize(q1, cat)
	require.NoError(t, err)
	r2, err := o.Optimize(q2, cat)
	require.NoError(t, err)
	require.Same(t, r1.Entry, r2.Entry, "bound literal values must not fragment the plan cache")
}
