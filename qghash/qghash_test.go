package qghash

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubrid/queryopt/qg"
)

func simpleQuery(literal int) *qg.ParsedQuery {
	return &qg.ParsedQuery{
		From: []*qg.FromItem{{Alias: "t", Class: "t"}},
		Where: qg.Binary{
			Op:    qg.OpEq,
			Left:  qg.ColumnRef{Table: "t", Column: "a"},
			Right: qg.Literal{Value: literal},
		},
	}
}

func TestTextIsStableAcrossDifferentLiterals(t *testing.T) {
	h1 := Text(simpleQuery(5))
	h2 := Text(simpleQuery(999))
	require.Equal(t, h1, h2, "bound literal values must not affect the plan-cache key")
}

func TestTextDiffersAcrossDifferentShapes(t *testing.T) {
	h1 := Text(simpleQuery(5))
	q2 := simpleQuery(5)
	q2.OrderBy = []qg.OrderItem{{Column: qg.ColumnRef{Table: "t", Column: "a"}}}
	h2 := Text(q2)
	require.NotEqual(t, h1, h2)
}

func TestStructuralDiffersWhenNodeSetDiffers(t *testing.T) {
	cat := &stubCatalog{}

	q1 := simpleQuery(5)
	env1, err := qg.Build(q1, cat, nil)
	require.NoError(t, err)

	q2 := simpleQuery(5)
	q2.From = append(q2.From, &qg.FromItem{Alias: "s", Class: "s"})
	env2, err := qg.Build(q2, cat, nil)
	require.NoError(t, err)

	h1, err := Structural(env1)
	require.NoError(t, err)
	h2, err := Structural(env2)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)
}

func TestNewKeyCombinesBothHalves(t *testing.T) {
	cat := &stubCatalog{}
	q := simpleQuery(5)
	env, err := qg.Build(q, cat, nil)
	require.NoError(t, err)

	k, err := NewKey(q, env)
	require.NoError(t, err)
	require.Equal(t, Text(q), k.Text)

	wantStructural, err := Structural(env)
	require.NoError(t, err)
	require.Equal(t, wantStructural, k.Structural)
}

type stubCatalog struct{}

func (stubCatalog) ClassStats(class string) (*qg.ClassStats, error) {
	return &qg.ClassStats{NCard: 100, TCard: 10}, nil
}
