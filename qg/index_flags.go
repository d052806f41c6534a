package qg

// computeIndexFlags fills in the per-index candidacy flags spec.md §4.1
// requires QG to mark: all_unique_columns_equi, cover_segments,
// is_iss_candidate, ils_prefix_len, orderby_skip, groupby_skip.
func computeIndexFlags(env *Env) {
	for _, n := range env.Nodes {
		eqCols := equalityBoundColumns(env, n)
		requiredCols := referencedColumnNames(env, n)
		sortCols, sortDesc := env.Query.OrderBy, false
		if len(sortCols) > 0 {
			sortDesc = sortCols[0].Descending
		}
		groupCols := env.Query.GroupBy

		for _, ie := range n.Indexes {
			cols := ie.Meta.Columns

			ie.AllUniqueColumnsEqui = ie.Meta.Unique && allColumnsIn(cols, eqCols)
			ie.CoverSegments = columnsCover(cols, requiredCols)

			ie.IsISSCandidate = !ie.Meta.IsFilter && len(cols) >= 2 &&
				!eqCols[cols[0].Column] && eqCols[cols[1].Column]

			if ie.CoverSegments && len(cols) > 0 {
				prefix := 0
				for _, c := range cols {
					if eqCols[c.Column] {
						prefix++
						continue
					}
					break
				}
				if prefix > 0 && prefix < len(cols) {
					ie.ILSPrefixLen = prefix
				}
			}

			ie.OrderBySkip = isOrderPrefix(cols, sortCols, sortDesc, env, n)
			ie.GroupBySkip = !env.Query.Rollup && isGroupPrefix(cols, groupCols, env, n)
		}
	}
}

func equalityBoundColumns(env *Env, n *Node) map[string]bool {
	out := map[string]bool{}
	for _, idx := range n.Sargs.Members() {
		t := env.Terms[idx]
		b, ok := t.Expr.(Binary)
		if !ok || b.Op != OpEq {
			continue
		}
		if cr, ok := b.Left.(ColumnRef); ok && cr.Table == n.Item.Alias {
			out[cr.Column] = true
		}
		if cr, ok := b.Right.(ColumnRef); ok && cr.Table == n.Item.Alias {
			out[cr.Column] = true
		}
	}
	return out
}

func referencedColumnNames(env *Env, n *Node) map[string]bool {
	out := map[string]bool{}
	for _, idx := range n.Segs.Members() {
		out[env.Segments[idx].Name.Column] = true
	}
	return out
}

func allColumnsIn(cols []IndexColumn, present map[string]bool) bool {
	if len(cols) == 0 {
		return false
	}
	for _, c := range cols {
		if !present[c.Column] {
			return false
		}
	}
	return true
}

func columnsCover(cols []IndexColumn, required map[string]bool) bool {
	have := map[string]bool{}
	for _, c := range cols {
		have[c.Column] = true
	}
	for r := range required {
		if !have[r] {
			return false
		}
	}
	return true
}

// isOrderPrefix reports whether sortCols is a prefix of cols, all forward
// or all reversed, and the NULL-loss precondition of spec.md §4.3.4 holds.
func isOrderPrefix(cols []IndexColumn, sortCols []OrderItem, _ bool, env *Env, n *Node) bool {
	if len(sortCols) == 0 || len(sortCols) > len(cols) {
		return false
	}
	forward, reverse := true, true
	for i, oi := range sortCols {
		if cols[i].Column != oi.Column.Column {
			return false
		}
		wantAsc := !oi.Descending
		if cols[i].Ascending != wantAsc {
			forward = false
		}
		if cols[i].Ascending == wantAsc {
			reverse = false
		}
		seg := env.SegmentByName(n.Idx, oi.Column)
		if seg != nil && !seg.NotNull && !hasNotNullSarg(env, n, oi.Column) {
			return false
		}
	}
	return forward || reverse
}

func isGroupPrefix(cols []IndexColumn, groupCols []ColumnRef, env *Env, n *Node) bool {
	if len(groupCols) == 0 || len(groupCols) > len(cols) {
		return false
	}
	for i, gc := range groupCols {
		if cols[i].Column != gc.Column {
			return false
		}
	}
	return true
}

func hasNotNullSarg(env *Env, n *Node, col ColumnRef) bool {
	for _, idx := range n.Sargs.Members() {
		t := env.Terms[idx]
		u, ok := t.Expr.(Unary)
		if !ok || u.Op != OpIsNotNull {
			continue
		}
		if cr, ok := u.Operand.(ColumnRef); ok && cr == col {
			return true
		}
	}
	return false
}
