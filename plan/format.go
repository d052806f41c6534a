package plan

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Formatter renders a finalized Plan for EXPLAIN output (spec.md §6 "Plan
// dump": JSON and human-text). Each implementation recurses over the plan
// tree on its own.
type Formatter interface {
	Format(p *Plan) string
}

// TextFormatter renders an indented, human-readable plan dump.
type TextFormatter struct{}

func (TextFormatter) Format(p *Plan) string {
	var sb strings.Builder
	writeText(&sb, p, 0)
	return sb.String()
}

func writeText(sb *strings.Builder, p *Plan, depth int) {
	indent := strings.Repeat("  ", depth)
	switch p.Type {
	case TypeScan:
		s := p.Scan
		kind := "seq scan"
		if s.Method != ScanSeq {
			kind = "index scan"
		}
		fmt.Fprintf(sb, "%s%s(%s)", indent, kind, s.Node.Item.Alias)
		if s.Index != nil {
			fmt.Fprintf(sb, " using %s", s.Index.Meta.Name)
		}
		if s.IndexCover {
			sb.WriteString(" (covering)")
		}
		if s.IndexISS {
			sb.WriteString(" (iss)")
		}
		if s.IndexLoose {
			sb.WriteString(" (loose)")
		}
		if p.MultiRangeOptUse == MROUse {
			sb.WriteString(" (multi-range-opt)")
		}
		if p.UseDescending {
			sb.WriteString(" (desc)")
		}
		fmt.Fprintf(sb, " cost=%.3f card=%.1f\n", p.Cost.Total(), p.Cost.Cardinality)
	case TypeSort:
		fmt.Fprintf(sb, "%ssort(%v) cost=%.3f\n", indent, p.Sort.SortType, p.Cost.Total())
		writeText(sb, p.Sort.Sub, depth+1)
	case TypeJoin:
		fmt.Fprintf(sb, "%sjoin(method=%v type=%v) cost=%.3f card=%.1f\n", indent, p.Join.Method, p.Join.JoinType, p.Cost.Total(), p.Cost.Cardinality)
		writeText(sb, p.Join.Outer, depth+1)
		writeText(sb, p.Join.Inner, depth+1)
	case TypeFollow:
		fmt.Fprintf(sb, "%sfollow cost=%.3f\n", indent, p.Cost.Total())
		writeText(sb, p.Follow.Head, depth+1)
	case TypeWorst:
		fmt.Fprintf(sb, "%sworst plan (cost=+Inf)\n", indent)
	}
}

// JSONFormatter renders a machine-readable plan dump.
type JSONFormatter struct{}

func (JSONFormatter) Format(p *Plan) string {
	b, _ := json.MarshalIndent(toJSONNode(p), "", "  ")
	return string(b)
}

type jsonNode struct {
	Kind             string      `json:"kind"`
	Table            string      `json:"table,omitempty"`
	Index            string      `json:"index,omitempty"`
	Covering         bool        `json:"covering,omitempty"`
	ISS              bool        `json:"iss,omitempty"`
	ILS              bool        `json:"ils,omitempty"`
	MultiRangeOpt    bool        `json:"multi_range_opt,omitempty"`
	Descending       bool        `json:"descending,omitempty"`
	JoinMethod       string      `json:"join_method,omitempty"`
	JoinType         string      `json:"join_type,omitempty"`
	Cost             float64     `json:"cost"`
	Cardinality      float64     `json:"cardinality,omitempty"`
	Children         []*jsonNode `json:"children,omitempty"`
}

func toJSONNode(p *Plan) *jsonNode {
	if p == nil {
		return nil
	}
	n := &jsonNode{Cost: p.Cost.Total(), Cardinality: p.Cost.Cardinality}
	switch p.Type {
	case TypeScan:
		n.Kind = "scan"
		n.Table = p.Scan.Node.Item.Alias
		if p.Scan.Index != nil {
			n.Index = p.Scan.Index.Meta.Name
		}
		n.Covering = p.Scan.IndexCover
		n.ISS = p.Scan.IndexISS
		n.ILS = p.Scan.IndexLoose
		n.MultiRangeOpt = p.MultiRangeOptUse == MROUse
		n.Descending = p.UseDescending
	case TypeSort:
		n.Kind = fmt.Sprintf("sort:%v", p.Sort.SortType)
		n.Children = []*jsonNode{toJSONNode(p.Sort.Sub)}
	case TypeJoin:
		n.Kind = "join"
		n.JoinMethod = fmt.Sprintf("%v", p.Join.Method)
		n.JoinType = fmt.Sprintf("%v", p.Join.JoinType)
		n.Children = []*jsonNode{toJSONNode(p.Join.Outer), toJSONNode(p.Join.Inner)}
	case TypeFollow:
		n.Kind = "follow"
		n.Children = []*jsonNode{toJSONNode(p.Follow.Head)}
	case TypeWorst:
		n.Kind = "worst"
	}
	return n
}
