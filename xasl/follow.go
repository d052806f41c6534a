package xasl

import (
	"github.com/pkg/errors"

	"github.com/cubrid/queryopt/plan"
	"github.com/cubrid/queryopt/qg"
	"github.com/cubrid/queryopt/qoerr"
)

// generateFollow renders a FETCH_PROC dereferencing a path expression
// (spec.md §4.4 "Follow"), gated by the path term itself plus any sibling
// path predicate on the same node.
func (g *generator) generateFollow(p *plan.Plan) (*Node, error) {
	head, err := g.generate(p.Follow.Head)
	if err != nil {
		return nil, err
	}

	t := g.env.Terms[p.Follow.PathTerm]
	pe, ok := pathExprOf(t.Expr)
	if !ok {
		return nil, qoerr.ErrUnsupportedConstruct.New("follow term is not a path predicate")
	}

	if g.cat != nil {
		if _, err := g.cat.ClassStats(pe.Tail.Table); err != nil {
			return nil, qoerr.ErrCatalog.New(errors.Wrap(err, "xasl: resolving path dereference target").Error())
		}
	}

	gate := []int{p.Follow.PathTerm}
	if p.Follow.Head.Type == plan.TypeScan {
		for _, idx := range p.Follow.Head.Scan.Node.PathTerms.Members() {
			if idx != p.Follow.PathTerm {
				gate = append(gate, idx)
			}
		}
	}

	return &Node{Type: TypeFollow, Follow: &FollowSpec{
		Head:     head,
		PathTerm: p.Follow.PathTerm,
		GatePred: gate,
	}}, nil
}

func pathExprOf(e qg.Expr) (qg.PathExpr, bool) {
	switch v := e.(type) {
	case qg.Binary:
		if pe, ok := v.Left.(qg.PathExpr); ok {
			return pe, true
		}
		if pe, ok := v.Right.(qg.PathExpr); ok {
			return pe, true
		}
	case qg.Unary:
		if pe, ok := v.Operand.(qg.PathExpr); ok {
			return pe, true
		}
	case qg.BetweenExpr:
		if pe, ok := v.Operand.(qg.PathExpr); ok {
			return pe, true
		}
	case qg.InExpr:
		if pe, ok := v.Operand.(qg.PathExpr); ok {
			return pe, true
		}
	}
	return qg.PathExpr{}, false
}
