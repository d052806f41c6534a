package xasl

import (
	"github.com/spf13/cast"

	"github.com/cubrid/queryopt/qg"
)

// keylimitFromTerms collapses a set of instnum/orderby_num predicate terms
// into a single (lower, upper) register pair, per spec.md §4.4 "Keylimit
// extraction": multiple upper bounds collapse via LEAST, multiple lower
// bounds via GREATEST. Terms in an unsupported form are left for if_pred
// and simply don't contribute a bound here.
func keylimitFromTerms(env *qg.Env, termIdxs []int) *KeyLimit {
	var kl KeyLimit
	found := false
	for _, idx := range termIdxs {
		lo, hi, ok := counterBound(env.Terms[idx])
		if !ok {
			continue
		}
		found = true
		if lo != nil {
			kl.Lower = greatest(kl.Lower, lo)
		}
		if hi != nil {
			kl.Upper = least(kl.Upper, hi)
		}
	}
	if !found {
		return nil
	}
	return &kl
}

// counterBound extracts the bound a single `instnum <op> literal` (or
// reversed) comparison contributes. R_EQ pins both bounds to the same
// value; R_LT/R_GT narrow by one to fold the strict form into an inclusive
// register, since the counter only takes integer values.
func counterBound(t *qg.Term) (lower, upper *int64, ok bool) {
	b, isBin := t.Expr.(qg.Binary)
	if !isBin {
		return nil, nil, false
	}

	var lit qg.Literal
	var litOK bool
	var counterOnLeft bool
	if _, isCounter := b.Left.(qg.CounterRef); isCounter {
		lit, litOK = b.Right.(qg.Literal)
		counterOnLeft = true
	} else if _, isCounter := b.Right.(qg.CounterRef); isCounter {
		lit, litOK = b.Left.(qg.Literal)
		counterOnLeft = false
	} else {
		return nil, nil, false
	}
	if !litOK {
		return nil, nil, false
	}

	n, err := cast.ToInt64E(lit.Value)
	if err != nil {
		return nil, nil, false
	}

	op := b.Op
	if !counterOnLeft {
		op = flipComparison(op)
	}

	switch op {
	case qg.OpEq:
		lo, hi := n, n
		return &lo, &hi, true
	case qg.OpLe:
		hi := n
		return nil, &hi, true
	case qg.OpLt:
		hi := n - 1
		return nil, &hi, true
	case qg.OpGe:
		lo := n
		return &lo, nil, true
	case qg.OpGt:
		lo := n + 1
		return &lo, nil, true
	default:
		return nil, nil, false
	}
}

// flipComparison mirrors a comparison operator across its operands: used
// when the literal sits on the left (`5 < instnum`) and the bound must be
// computed as if instnum were on the left instead.
func flipComparison(op qg.Operator) qg.Operator {
	switch op {
	case qg.OpLe:
		return qg.OpGe
	case qg.OpLt:
		return qg.OpGt
	case qg.OpGe:
		return qg.OpLe
	case qg.OpGt:
		return qg.OpLt
	default:
		return op
	}
}

func greatest(a, b *int64) *int64 {
	if a == nil {
		v := *b
		return &v
	}
	if *b > *a {
		v := *b
		return &v
	}
	v := *a
	return &v
}

func least(a, b *int64) *int64 {
	if a == nil {
		v := *b
		return &v
	}
	if *b < *a {
		v := *b
		return &v
	}
	v := *a
	return &v
}
