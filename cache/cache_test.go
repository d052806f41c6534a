package cache

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cubrid/queryopt/qghash"
	"github.com/cubrid/queryopt/xasl"
)

func TestPlanCachePutThenGetAddsRef(t *testing.T) {
	pc := NewPlanCache()
	key := qghash.Key{Text: "abc", Structural: 1}
	tree := &xasl.Node{Type: xasl.TypeScan}

	e := pc.Put(key, tree, map[string]bool{"orders": true})
	require.EqualValues(t, 1, e.Refcount())

	got, ok := pc.Get(key)
	require.True(t, ok)
	require.Same(t, e, got)
	require.EqualValues(t, 2, e.Refcount())
	require.Equal(t, 1, pc.Len())
}

func TestPlanCachePutIsIdempotentOnRace(t *testing.T) {
	pc := NewPlanCache()
	key := qghash.Key{Text: "abc", Structural: 1}

	first := pc.Put(key, &xasl.Node{Type: xasl.TypeScan}, nil)
	second := pc.Put(key, &xasl.Node{Type: xasl.TypeScan}, nil)
	require.Same(t, first, second)
	require.EqualValues(t, 2, first.Refcount())
	require.Equal(t, 1, pc.Len())
}

func TestPlanCacheInvalidateDropsOnlyIntersectingEntries(t *testing.T) {
	pc := NewPlanCache()
	k1 := qghash.Key{Text: "q1"}
	k2 := qghash.Key{Text: "q2"}
	pc.Put(k1, &xasl.Node{}, map[string]bool{"orders": true})
	pc.Put(k2, &xasl.Node{}, map[string]bool{"customers": true})

	dropped := pc.Invalidate(map[string]bool{"orders": true})
	require.Equal(t, []qghash.Key{k1}, dropped)
	require.Equal(t, 1, pc.Len())

	_, ok := pc.Get(k1)
	require.False(t, ok)
	_, ok = pc.Get(k2)
	require.True(t, ok)
}

func TestResultCacheRoundTripsByParameterTuple(t *testing.T) {
	rc := NewResultCache()
	key := qghash.Key{Text: "q1"}

	_, ok, err := rc.Get(key, []interface{}{5})
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, rc.Put(key, []interface{}{5}, []interface{}{"row1"}))
	e, ok, err := rc.Get(key, []interface{}{5})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []interface{}{"row1"}, e.Rows)

	_, ok, err = rc.Get(key, []interface{}{6})
	require.NoError(t, err)
	require.False(t, ok, "a different parameter tuple must not share the cached entry")
}

func TestResultCacheInvalidatePlanDropsAllItsParameterTuples(t *testing.T) {
	rc := NewResultCache()
	key := qghash.Key{Text: "q1"}
	other := qghash.Key{Text: "q2"}
	require.NoError(t, rc.Put(key, []interface{}{1}, []interface{}{"a"}))
	require.NoError(t, rc.Put(key, []interface{}{2}, []interface{}{"b"}))
	require.NoError(t, rc.Put(other, []interface{}{1}, []interface{}{"c"}))

	rc.InvalidatePlan(key)
	require.Equal(t, 1, rc.Len())
	_, ok, _ := rc.Get(other, []interface{}{1})
	require.True(t, ok)
}

func TestTransactionCleanupInvalidatesModifiedPlansAndResults(t *testing.T) {
	pc := NewPlanCache()
	rc := NewResultCache()
	key := qghash.Key{Text: "q1"}
	pc.Put(key, &xasl.Node{}, map[string]bool{"orders": true})
	require.NoError(t, rc.Put(key, []interface{}{1}, []interface{}{"row"}))

	tx := NewTransaction()
	tx.MarkModified("orders")
	tx.Cleanup(pc, rc)

	require.Equal(t, 0, pc.Len())
	require.Equal(t, 0, rc.Len())
}

func TestTransactionCleanupWithNoModificationsLeavesCachesIntact(t *testing.T) {
	pc := NewPlanCache()
	key := qghash.Key{Text: "q1"}
	pc.Put(key, &xasl.Node{}, map[string]bool{"orders": true})

	tx := NewTransaction()
	tx.Cleanup(pc, nil)

	require.Equal(t, 1, pc.Len())
}
