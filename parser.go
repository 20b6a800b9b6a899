package queryscope

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/prometheus/promql/parser"
)

// Parsing is delegated to the Prometheus expression parser; this file only
// simplifies its tree into ParsedNode form. The grammar itself is never
// reimplemented here.

const (
	errEmptyQuery = "Empty query"
	errParse      = "Parse error in query"
)

// ParseQuery parses a PromQL expression into a ParsedNode tree. It is total:
// for any input it returns a well-formed ParseResult and never panics.
// Empty or whitespace-only input yields the "Empty query" failure; any
// grammar error reported by the upstream parser yields "Parse error in
// query".
func ParseQuery(query string) (res ParseResult) {
	defer func() {
		if r := recover(); r != nil {
			res = ParseResult{Error: errParse}
		}
	}()

	if strings.TrimSpace(query) == "" {
		return ParseResult{Error: errEmptyQuery}
	}

	expr, err := parser.ParseExpr(query)
	if err != nil {
		return ParseResult{Error: errParse}
	}
	if expr == nil {
		return ParseResult{Error: errEmptyQuery}
	}

	return ParseResult{Success: true, AST: buildNode(expr, query)}
}

// buildNode converts one upstream expression node into a ParsedNode,
// recursing into children. Dispatch covers the closed set of expression
// kinds the grammar produces today; anything else degrades to an error
// variant instead of aborting, so the builder stays total as the grammar
// evolves.
func buildNode(expr parser.Expr, src string) *ParsedNode {
	if expr == nil {
		return nil
	}

	node := &ParsedNode{Text: sourceText(expr, src)}

	switch e := expr.(type) {
	case *parser.AggregateExpr:
		node.Kind = NodeAggregation
		node.Op = strings.ToLower(e.Op.String())
		node.Without = e.Without
		node.Grouping = groupingLabels(e.Grouping)
		node.Children = append(node.Children, buildNode(e.Expr, src))
		if e.Param != nil {
			node.Children = append(node.Children, buildNode(e.Param, src))
		}

	case *parser.Call:
		node.Kind = NodeFunctionCall
		if e.Func != nil {
			node.Func = e.Func.Name
		}
		for _, arg := range e.Args {
			node.Children = append(node.Children, buildNode(arg, src))
		}

	case *parser.BinaryExpr:
		node.Kind = NodeBinaryExpr
		node.Op = e.Op.String()
		node.Children = append(node.Children, buildNode(e.LHS, src), buildNode(e.RHS, src))

	case *parser.VectorSelector:
		node.Kind = NodeVectorSelector
		node.Name = e.Name
		node.Matchers = extractMatchers(e.Name, e.LabelMatchers)

	case *parser.MatrixSelector:
		node.Kind = NodeMatrixSelector
		node.RangeMs = rangeMillis(e.Range)
		if vs, ok := e.VectorSelector.(*parser.VectorSelector); ok {
			node.Name = vs.Name
			node.Matchers = extractMatchers(vs.Name, vs.LabelMatchers)
		} else if e.VectorSelector != nil {
			node.Children = append(node.Children, buildNode(e.VectorSelector, src))
		}

	case *parser.SubqueryExpr:
		node.Kind = NodeSubquery
		node.RangeMs = rangeMillis(e.Range)
		if e.Step > 0 {
			node.StepMs = e.Step.Milliseconds()
		}
		node.Children = append(node.Children, buildNode(e.Expr, src))

	case *parser.NumberLiteral:
		node.Kind = NodeNumberLiteral
		node.Value = node.Text
		if node.Value == "" {
			node.Value = strconv.FormatFloat(e.Val, 'g', -1, 64)
		}

	case *parser.StringLiteral:
		// The upstream parser already strips the enclosing quotes.
		node.Kind = NodeStringLiteral
		node.Value = e.Val

	case *parser.ParenExpr:
		node.Kind = NodeParenExpr
		node.Children = append(node.Children, buildNode(e.Expr, src))

	case *parser.UnaryExpr:
		node.Kind = NodeUnaryExpr
		node.Op = e.Op.String()
		node.Children = append(node.Children, buildNode(e.Expr, src))

	case *parser.StepInvariantExpr:
		// Transparent wrapper inserted by query preprocessing.
		return buildNode(e.Expr, src)

	default:
		node.Kind = NodeError
		for _, child := range childExpressions(expr) {
			node.Children = append(node.Children, buildNode(child, src))
		}
		if len(node.Children) == 1 {
			return node.Children[0]
		}
	}

	return node
}

// childExpressions enumerates the expression-typed children of a node the
// builder does not recognize. The upstream helper panics on node types it
// has never seen, so the lookup is fenced off; an unenumerable node simply
// has no salvageable children.
func childExpressions(expr parser.Expr) (children []parser.Expr) {
	defer func() {
		if recover() != nil {
			children = nil
		}
	}()
	for _, child := range parser.Children(expr) {
		if ce, ok := child.(parser.Expr); ok {
			children = append(children, ce)
		}
	}
	return children
}

// rangeMillis converts a selector range to milliseconds, substituting the
// default lookback window when the grammar supplied none.
func rangeMillis(d time.Duration) int64 {
	if d <= 0 {
		return DefaultRangeMs
	}
	return d.Milliseconds()
}

// sourceText returns the exact source slice a node was parsed from.
func sourceText(expr parser.Expr, src string) string {
	pr := expr.PositionRange()
	start, end := int(pr.Start), int(pr.End)
	if start < 0 {
		start = 0
	}
	if end > len(src) {
		end = len(src)
	}
	if start >= end {
		return ""
	}
	return src[start:end]
}
