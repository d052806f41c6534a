package plan

// CompareResult is QO_PLAN_COMPARE_RESULT.
type CompareResult int

const (
	CompareUnknown CompareResult = -2
	CompareLT      CompareResult = -1
	CompareEQ      CompareResult = 0
	CompareGT      CompareResult = 1
)

func invert(r CompareResult) CompareResult {
	switch r {
	case CompareLT:
		return CompareGT
	case CompareGT:
		return CompareLT
	default:
		return r
	}
}

// Compare implements the layered ordering of spec.md §4.3.3. It is
// consistent (spec.md §8): Compare(a,b)==LT iff Compare(b,a)==GT, and
// Compare(a,a)==EQ.
func Compare(a, b *Plan) CompareResult {
	if a == b {
		return CompareEQ
	}

	// Layer 1: a SORT_LIMIT plan over p beats p alone.
	if r, ok := compareSortLimit(a, b); ok {
		return r
	}

	// Layer 2: an ordered-skip scan beats an equivalent sort+scan pair.
	if r, ok := compareOrderedSkip(a, b); ok {
		return r
	}

	// Layer 3: among index scans on the same node, domain-specific
	// dominance rules.
	if a.Type == TypeScan && b.Type == TypeScan && a.Scan.Node == b.Scan.Node {
		if r, ok := compareIndexScans(a, b); ok {
			return r
		}
	}

	// Layer 4: fall back to total cost.
	return compareCost(a, b)
}

func compareCost(a, b *Plan) CompareResult {
	ta, tb := a.Cost.Total(), b.Cost.Total()
	switch {
	case ta < tb:
		return CompareLT
	case ta > tb:
		return CompareGT
	default:
		return CompareEQ
	}
}

func compareSortLimit(a, b *Plan) (CompareResult, bool) {
	aLimit := a.Type == TypeSort && a.Sort.SortType == SortLimitTop
	bLimit := b.Type == TypeSort && b.Sort.SortType == SortLimitTop

	if aLimit && !bLimit && a.Sort.Sub == b {
		return CompareLT, true
	}
	if bLimit && !aLimit && b.Sort.Sub == a {
		return CompareGT, true
	}
	return 0, false
}

// compareOrderedSkip: a plan whose output is already ordered (Order >= 0,
// achieved via orderby_skip/groupby_skip on a scan) beats a SORT node that
// produces the same ordering over an otherwise-equal subplan.
func compareOrderedSkip(a, b *Plan) (CompareResult, bool) {
	aSkip := a.Type == TypeScan && a.Order >= 0
	bSort := b.Type == TypeSort && (b.Sort.SortType == SortOrderBy || b.Sort.SortType == SortGroupBy)
	if aSkip && bSort && a.Order == b.Order {
		return CompareLT, true
	}
	bSkip := b.Type == TypeScan && b.Order >= 0
	aSort := a.Type == TypeSort && (a.Sort.SortType == SortOrderBy || a.Sort.SortType == SortGroupBy)
	if bSkip && aSort && b.Order == a.Order {
		return CompareGT, true
	}
	return 0, false
}

func compareIndexScans(a, b *Plan) (CompareResult, bool) {
	if a.Scan.Index == nil || b.Scan.Index == nil {
		return 0, false
	}

	if a.Scan.IndexEqui != b.Scan.IndexEqui {
		if a.Scan.IndexEqui {
			return CompareLT, true
		}
		return CompareGT, true
	}

	aMRO := a.MultiRangeOptUse == MROUse
	bMRO := b.MultiRangeOptUse == MROUse
	if aMRO != bMRO {
		if aMRO {
			return CompareLT, true
		}
		return CompareGT, true
	}

	if a.Scan.IndexCover != b.Scan.IndexCover {
		if a.Scan.IndexCover {
			return CompareLT, true
		}
		return CompareGT, true
	}

	aRange := a.Scan.Terms
	bRange := b.Scan.Terms
	aFilter := a.Scan.KFTerms.Cardinality()
	bFilter := b.Scan.KFTerms.Cardinality()

	if aRange.Subset(&bRange) && !bRange.Subset(&aRange) && aFilter <= bFilter {
		return CompareGT, true // b's range set is a strict superset with >= filters: b dominates
	}
	if bRange.Subset(&aRange) && !aRange.Subset(&bRange) && bFilter <= aFilter {
		return CompareLT, true
	}

	aPages := estimateIndexPages(a)
	bPages := estimateIndexPages(b)
	if aPages != bPages {
		if aPages < bPages {
			return CompareLT, true
		}
		return CompareGT, true
	}

	if aRange.Cardinality() != bRange.Cardinality() {
		if aRange.Cardinality() > bRange.Cardinality() {
			return CompareLT, true
		}
		return CompareGT, true
	}

	if aFilter != bFilter {
		if aFilter > bFilter {
			return CompareLT, true
		}
		return CompareGT, true
	}

	return 0, false
}

func estimateIndexPages(p *Plan) int {
	if p.Scan.Index == nil {
		return 0
	}
	return p.Scan.Index.Meta.Pages
}
