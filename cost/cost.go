package cost

import (
	"math"

	"github.com/cubrid/queryopt/qg"
)

// Summary is the cost/cardinality tuple attached to every plan (spec.md
// §3 qo_summary): fixed/variable, CPU/I-O, and the plan's output
// cardinality.
type Summary struct {
	FixedCPU, FixedIO       float64
	VariableCPU, VariableIO float64
	Cardinality             float64
}

// Total returns the scalar total cost used for comparison and pruning.
func (s Summary) Total() float64 {
	return s.FixedCPU + s.FixedIO + s.VariableCPU + s.VariableIO
}

// Add combines two independently-incurred cost summaries (used when
// stacking a sort, join, or follow plan over a subplan).
func Add(a, b Summary) Summary {
	return Summary{
		FixedCPU:    a.FixedCPU + b.FixedCPU,
		FixedIO:     a.FixedIO + b.FixedIO,
		VariableCPU: a.VariableCPU + b.VariableCPU,
		VariableIO:  a.VariableIO + b.VariableIO,
	}
}

// SeqScanCost implements spec.md §4.2 "Sequential scan": fixed=0, variable
// CPU = NCARD*CPU_WEIGHT, variable I/O = TCARD pages.
func (e *Engine) SeqScanCost(n *qg.Node) Summary {
	return Summary{
		VariableCPU: float64(n.NCard) * e.Cfg.CPUWeight,
		VariableIO:  float64(n.TCard),
		Cardinality: float64(n.NCard),
	}
}

// IndexScanParams bundles the inputs to the index-scan cost formula so
// callers (planner) don't have to thread a dozen positional arguments.
type IndexScanParams struct {
	Index *qg.NodeIndexEntry
	// RangeSelectivities are the selectivities of the key-range terms
	// actually used, one per bound leading column, in column order.
	RangeSelectivities []float64
	NCard              int64
	IsSkipScan         bool
	FullRange          bool // true when the scan has no upper-bounding range term at all
}

// IndexScanCost implements spec.md §4.2 "Index scan".
func (e *Engine) IndexScanCost(p IndexScanParams) Summary {
	idx := p.Index

	s := 1.0
	for _, rs := range p.RangeSelectivities {
		s *= rs
	}
	k := len(p.RangeSelectivities)
	floor := 0.0
	switch {
	case k > 0 && k <= len(idx.Meta.PKeys) && idx.Meta.PKeys[k-1] > 0:
		floor = 1.0 / float64(idx.Meta.PKeys[k-1])
	case idx.Meta.Keys > 0:
		floor = 1.0 / float64(idx.Meta.Keys)
	case p.NCard > 0:
		floor = 1.0 / float64(p.NCard)
	}
	if s < floor {
		s = floor
	}
	s = clamp01(s)

	objects := s * float64(p.NCard)
	leafPages := math.Ceil(s * float64(idx.Meta.LeafPages))
	traversalIO := float64(idx.Meta.Height) + leafPages
	if p.IsSkipScan && len(idx.Meta.PKeys) > 0 {
		traversalIO += float64(idx.Meta.PKeys[0]) * (float64(idx.Meta.Height) + 1)
	}

	opages := float64(idx.Meta.Pages)
	var fetchIO float64
	switch {
	case s < 0.3:
		fetchIO = opages * s
	case s < 0.8:
		fetchIO = opages * (0.8*s + 0.36)
	default:
		fetchIO = opages
	}
	if e.Cfg.BufferPoolPages > 0 && opages > 0 {
		cap := opages * (1 - (float64(e.Cfg.BufferPoolPages)-traversalIO)/opages)
		if fetchIO > cap && cap > 0 {
			fetchIO = cap
		}
	}
	if !p.FullRange {
		fetchIO *= e.Cfg.FudgeFactor
	}

	if idx.Meta.Unique && idx.AllUniqueColumnsEqui {
		return Summary{Cardinality: objects}
	}

	return Summary{
		VariableCPU: objects * e.Cfg.CPUWeight,
		VariableIO:  traversalIO + fetchIO,
		Cardinality: objects,
	}
}

// SortKind distinguishes the cases of spec.md §4.2 "Sort cost".
type SortKind int

const (
	SortGeneric SortKind = iota
	SortAlreadyOrdered
	SortTempOverOrdered
	SortLimit
)

// SortCostParams bundles sort-cost inputs.
type SortCostParams struct {
	Kind         SortKind
	Sub          Summary
	Objects      float64
	SpillPages   float64
	FitsInMemory bool
}

// SortCost implements spec.md §4.2 "Sort cost".
func (e *Engine) SortCost(p SortCostParams) Summary {
	switch p.Kind {
	case SortAlreadyOrdered, SortTempOverOrdered, SortLimit:
		return p.Sub
	}

	out := Summary{
		FixedCPU:    p.Sub.Total() + e.Cfg.TempSetupCost,
		VariableCPU: p.Objects * e.Cfg.CPUWeight,
		VariableIO:  p.SpillPages,
		Cardinality: p.Sub.Cardinality,
	}
	if p.FitsInMemory {
		if p.Objects > 1 {
			out.VariableCPU += e.Cfg.CPUWeight * p.Objects * math.Log2(p.Objects)
		}
	} else if p.SpillPages > 4 {
		out.VariableIO += p.SpillPages * log3(p.SpillPages/4) * 0.5 // large-list I/O cache discount
	}
	return out
}

func log3(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x) / math.Log(3)
}

// NLJoinParams bundles nested-loop join cost inputs.
type NLJoinParams struct {
	Outer, Inner Summary
	// CorrelatedIndex is true when the inner plan is an index scan whose
	// leading columns are bound by the join edge (spec.md §4.3.2 strategy
	// 1, "Correlated index join").
	CorrelatedIndex bool
	InnerVarCPU     float64
	InnerVarIO      float64
	InnerPages      float64
	IsOuterJoin     bool
	// SubqueryCosts are the (fixed + access) costs of subqueries pinned to
	// the inner side, re-evaluated once per outer row.
	SubqueryCosts []float64
}

// NLJoinCost implements spec.md §4.2 "Nested-loop join cost".
func (e *Engine) NLJoinCost(p NLJoinParams) Summary {
	out := Summary{
		FixedCPU:    p.Outer.FixedCPU + p.Inner.FixedCPU,
		FixedIO:     p.Outer.FixedIO + p.Inner.FixedIO,
		Cardinality: p.Outer.Cardinality * clampSel(p.Inner.Cardinality),
	}

	outerCard := p.Outer.Cardinality
	if p.CorrelatedIndex {
		out.VariableCPU = p.Outer.VariableCPU + outerCard*p.InnerVarCPU
		io := p.Outer.VariableIO + math.Min(p.Outer.VariableIO*p.InnerVarIO, 2*p.InnerPages)
		out.VariableIO = io
	} else {
		effectiveOuter := math.Max(1, outerCard)
		out.VariableCPU = p.Outer.VariableCPU + effectiveOuter*p.InnerVarCPU
		out.VariableIO = p.Outer.VariableIO + effectiveOuter*p.InnerVarIO
	}

	if p.IsOuterJoin {
		out.VariableIO += outerCard * p.InnerPages * e.Cfg.NongroupedScanCost
	}

	for _, sc := range p.SubqueryCosts {
		out.VariableCPU += outerCard * sc
	}

	return out
}

func clampSel(card float64) float64 {
	if card <= 0 {
		return 1
	}
	return card
}

// MergeJoinCost implements spec.md §4.2 "Merge-join cost": outer_cost +
// inner_cost + (outer_card/2)*(inner_card/2)*CPU_WEIGHT.
func (e *Engine) MergeJoinCost(outer, inner Summary) Summary {
	out := Add(outer, inner)
	out.VariableCPU += (outer.Cardinality / 2) * (inner.Cardinality / 2) * e.Cfg.CPUWeight
	out.Cardinality = outer.Cardinality * inner.Cardinality
	return out
}
