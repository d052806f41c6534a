package qg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCatalog struct {
	stats map[string]*ClassStats
}

func (f *fakeCatalog) ClassStats(class string) (*ClassStats, error) {
	return f.stats[class], nil
}

func simpleCatalog() *fakeCatalog {
	return &fakeCatalog{stats: map[string]*ClassStats{
		"t": {NCard: 1000, TCard: 100, Indexes: []IndexMeta{
			{Name: "pk_t", Columns: []IndexColumn{{Column: "a", Ascending: true}}, Unique: true, Height: 2, LeafPages: 10, Pages: 20, Keys: 1000, PKeys: []int64{1000}},
		}},
		"r": {NCard: 500, TCard: 50},
		"s": {NCard: 2000, TCard: 200, Indexes: []IndexMeta{
			{Name: "idx_y", Columns: []IndexColumn{{Column: "y", Ascending: true}}, Height: 3, LeafPages: 40, Pages: 80, Keys: 2000, PKeys: []int64{2000}},
		}},
	}}
}

func TestBuildSingleTableEquality(t *testing.T) {
	q := &ParsedQuery{
		From: []*FromItem{{Alias: "t", Class: "t"}},
		Where: Binary{
			Op:    OpEq,
			Left:  ColumnRef{Table: "t", Column: "a"},
			Right: Literal{Value: 5},
		},
	}
	env, err := Build(q, simpleCatalog(), nil)
	require.NoError(t, err)
	require.Len(t, env.Nodes, 1)
	require.Len(t, env.Terms, 1)
	require.Equal(t, TermSarg, env.Terms[0].Class)
	require.True(t, env.Terms[0].CanUseIndex)
	require.Len(t, env.Partitions, 1)
}

func TestBuildTwoTableEquiJoin(t *testing.T) {
	q := &ParsedQuery{
		From: []*FromItem{
			{Alias: "r", Class: "r"},
			{Alias: "s", Class: "s"},
		},
		Where: Binary{
			Op:    OpEq,
			Left:  ColumnRef{Table: "r", Column: "x"},
			Right: ColumnRef{Table: "s", Column: "y"},
		},
	}
	env, err := Build(q, simpleCatalog(), nil)
	require.NoError(t, err)
	require.Len(t, env.Nodes, 2)
	require.Len(t, env.Terms, 1)
	require.Equal(t, TermJoin, env.Terms[0].Class)
	require.Len(t, env.EqClasses, 1)
	require.Equal(t, 2, env.EqClasses[0].Segs.Cardinality())
	require.Len(t, env.Partitions, 1)
	require.Equal(t, 2, env.Partitions[0].Nodes.Cardinality())
}

func TestDisjointPartitions(t *testing.T) {
	q := &ParsedQuery{
		From: []*FromItem{
			{Alias: "r", Class: "r"},
			{Alias: "s", Class: "s"},
		},
	}
	env, err := Build(q, simpleCatalog(), nil)
	require.NoError(t, err)
	require.Len(t, env.Partitions, 2)
}

func TestOuterJoinWhereSargBecomesAfterJoin(t *testing.T) {
	// R LEFT JOIN S ON R.x = S.y WHERE S.z > 0
	q := &ParsedQuery{
		From: []*FromItem{
			{Alias: "r", Class: "r"},
			{Alias: "s", Class: "s", JoinType: JoinLeftOuter,
				OnExpr: Binary{Op: OpEq, Left: ColumnRef{Table: "r", Column: "x"}, Right: ColumnRef{Table: "s", Column: "y"}}},
		},
		Where: Binary{Op: OpGt, Left: ColumnRef{Table: "s", Column: "z"}, Right: Literal{Value: 0}},
	}
	env, err := Build(q, simpleCatalog(), nil)
	require.NoError(t, err)

	var whereTerm *Term
	for _, t := range env.Terms {
		if !t.FromOnClause && !t.IsFake {
			whereTerm = t
		}
	}
	require.NotNil(t, whereTerm)
	// S.z > 0 touches only node S, but S is the null-supplying side of the
	// LEFT OUTER JOIN, so the WHERE predicate is classified after-join
	// rather than sarg and is not pushed below the join. Verify S depends on R.
	require.Equal(t, TermAfterJoin, whereTerm.Class)
	sNode := env.NodeByAlias("s")
	require.True(t, sNode.OuterDepSet.Member(env.NodeByAlias("r").Idx))
}

func TestIndexFlagsOnEquiBoundUniqueIndex(t *testing.T) {
	q := &ParsedQuery{
		From: []*FromItem{{Alias: "t", Class: "t"}},
		Where: Binary{
			Op:    OpEq,
			Left:  ColumnRef{Table: "t", Column: "a"},
			Right: Literal{Value: 5},
		},
	}
	env, err := Build(q, simpleCatalog(), nil)
	require.NoError(t, err)
	n := env.NodeByAlias("t")
	require.Len(t, n.Indexes, 1)
	require.True(t, n.Indexes[0].AllUniqueColumnsEqui)
}
