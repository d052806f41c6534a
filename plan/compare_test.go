package plan

import (
	"testing"

	"github.com/cubrid/queryopt/cost"
	"github.com/stretchr/testify/require"
)

func TestCompareReflexiveAndAntisymmetric(t *testing.T) {
	a := &Plan{Type: TypeScan, Order: -1, Scan: &ScanPlan{}, Cost: cost.Summary{VariableCPU: 1}}
	b := &Plan{Type: TypeScan, Order: -1, Scan: &ScanPlan{}, Cost: cost.Summary{VariableCPU: 2}}

	require.Equal(t, CompareEQ, Compare(a, a))

	r1 := Compare(a, b)
	r2 := Compare(b, a)
	require.Equal(t, CompareLT, r1)
	require.Equal(t, CompareGT, r2)
}

func TestCompareEqualCostIsEQ(t *testing.T) {
	a := &Plan{Type: TypeScan, Order: -1, Scan: &ScanPlan{}, Cost: cost.Summary{VariableCPU: 5}}
	b := &Plan{Type: TypeScan, Order: -1, Scan: &ScanPlan{}, Cost: cost.Summary{VariableCPU: 5}}
	require.Equal(t, CompareEQ, Compare(a, b))
}

func TestSortLimitBeatsPlainPlan(t *testing.T) {
	base := &Plan{Type: TypeScan, Order: -1, Scan: &ScanPlan{}, Cost: cost.Summary{VariableCPU: 100}}
	limited := &Plan{Type: TypeSort, Order: -1, Cost: cost.Summary{VariableCPU: 1}, Sort: &SortPlan{SortType: SortLimitTop, Sub: base}}
	require.Equal(t, CompareLT, Compare(limited, base))
	require.Equal(t, CompareGT, Compare(base, limited))
}

func TestWorstPlanHasInfiniteCost(t *testing.T) {
	w := NewWorst()
	require.True(t, w.IsWorst())
	require.Greater(t, w.Cost.Total(), 1e300)
}
