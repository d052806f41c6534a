package bitset

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAddMemberRemove(t *testing.T) {
	var s Set
	require.True(t, s.IsEmpty())
	s.Add(3)
	s.Add(63)
	require.True(t, s.Member(3))
	require.True(t, s.Member(63))
	require.False(t, s.Member(4))
	require.Equal(t, 2, s.Cardinality())

	s.Remove(3)
	require.False(t, s.Member(3))
	require.Equal(t, 1, s.Cardinality())
}

func TestExtendPast64(t *testing.T) {
	var s Set
	s.Add(130)
	require.True(t, s.Member(130))
	require.Equal(t, 1, s.Cardinality())
	require.Equal(t, 130, s.FirstMember())
}

func TestSetOps(t *testing.T) {
	a := FromSlice([]int{1, 2, 3})
	b := FromSlice([]int{2, 3, 4})

	union := a
	union.Union(&b)
	require.ElementsMatch(t, []int{1, 2, 3, 4}, union.Members())

	inter := a
	inter.Intersect(&b)
	require.ElementsMatch(t, []int{2, 3}, inter.Members())

	diff := a
	diff.Difference(&b)
	require.ElementsMatch(t, []int{1}, diff.Members())

	require.True(t, a.Intersects(&b))
	require.False(t, FromSlice([]int{5}).Intersects(&b))
}

func TestSubsetEquivalent(t *testing.T) {
	a := FromSlice([]int{1, 2})
	b := FromSlice([]int{1, 2, 3})
	require.True(t, a.Subset(&b))
	require.False(t, b.Subset(&a))

	c := FromSlice([]int{2, 1})
	require.True(t, a.Equivalent(&c))
}

func TestIterateAscending(t *testing.T) {
	s := FromSlice([]int{40, 1, 20, 3})
	require.Equal(t, []int{1, 3, 20, 40}, s.Members())
}

func TestKeyStability(t *testing.T) {
	a := FromSlice([]int{1, 2, 3})
	b := FromSlice([]int{3, 2, 1})
	require.Equal(t, a.Key(), b.Key())

	c := FromSlice([]int{1, 2})
	require.NotEqual(t, a.Key(), c.Key())
}
