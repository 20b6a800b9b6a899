package queryscope

import (
	"testing"

	"github.com/prometheus/prometheus/promql/parser"
	"github.com/prometheus/prometheus/promql/parser/posrange"
)

func mustParse(t *testing.T, query string) *ParsedNode {
	t.Helper()
	res := ParseQuery(query)
	if !res.Success {
		t.Fatalf("ParseQuery(%q) failed: %s", query, res.Error)
	}
	if res.AST == nil {
		t.Fatalf("ParseQuery(%q) succeeded with nil AST", query)
	}
	return res.AST
}

func TestParseQuery_SimpleMetric(t *testing.T) {
	node := mustParse(t, "up")

	if node.Kind != NodeVectorSelector {
		t.Fatalf("expected vectorSelector, got %s", node.Kind)
	}
	if node.Name != "up" {
		t.Errorf("expected metric up, got %s", node.Name)
	}
	if len(node.Matchers) != 0 {
		t.Errorf("expected no matchers, got %v", node.Matchers)
	}
	if node.Text != "up" {
		t.Errorf("expected text up, got %q", node.Text)
	}
}

func TestParseQuery_MetricWithLabels(t *testing.T) {
	node := mustParse(t, `http_requests_total{method="GET", status!="500"}`)

	if node.Kind != NodeVectorSelector {
		t.Fatalf("expected vectorSelector, got %s", node.Kind)
	}
	if node.Name != "http_requests_total" {
		t.Errorf("unexpected metric: %s", node.Name)
	}
	if len(node.Matchers) != 2 {
		t.Fatalf("expected 2 matchers, got %d", len(node.Matchers))
	}
	if node.Matchers[0] != (LabelMatcher{Name: "method", Op: "=", Value: "GET"}) {
		t.Errorf("unexpected first matcher: %+v", node.Matchers[0])
	}
	if node.Matchers[1] != (LabelMatcher{Name: "status", Op: "!=", Value: "500"}) {
		t.Errorf("unexpected second matcher: %+v", node.Matchers[1])
	}
}

func TestParseQuery_MatrixSelector(t *testing.T) {
	node := mustParse(t, "rate(demo_cpu_usage_seconds_total[5m])")

	if node.Kind != NodeFunctionCall {
		t.Fatalf("expected functionCall, got %s", node.Kind)
	}
	if node.Func != "rate" {
		t.Errorf("expected func rate, got %s", node.Func)
	}
	if len(node.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(node.Children))
	}

	matrix := node.Children[0]
	if matrix.Kind != NodeMatrixSelector {
		t.Fatalf("expected matrixSelector child, got %s", matrix.Kind)
	}
	if matrix.Name != "demo_cpu_usage_seconds_total" {
		t.Errorf("unexpected metric: %s", matrix.Name)
	}
	if matrix.RangeMs != 300000 {
		t.Errorf("expected range 300000ms, got %d", matrix.RangeMs)
	}
}

func TestParseQuery_Aggregation(t *testing.T) {
	node := mustParse(t, `sum by (status) (rate(demo_api_request_duration_seconds_count{status=~"[45].."}[5m]))`)

	if node.Kind != NodeAggregation {
		t.Fatalf("expected aggregation, got %s", node.Kind)
	}
	if node.Op != "sum" {
		t.Errorf("expected op sum, got %s", node.Op)
	}
	if node.Without {
		t.Error("expected by-grouping, got without")
	}
	if len(node.Grouping) != 1 || node.Grouping[0] != "status" {
		t.Errorf("unexpected grouping: %v", node.Grouping)
	}
	if len(node.Children) != 1 {
		t.Fatalf("expected 1 child, got %d", len(node.Children))
	}

	call := node.Children[0]
	if call.Kind != NodeFunctionCall || call.Func != "rate" {
		t.Fatalf("expected rate call child, got %s %s", call.Kind, call.Func)
	}
	matrix := call.Children[0]
	if matrix.Kind != NodeMatrixSelector {
		t.Fatalf("expected matrixSelector, got %s", matrix.Kind)
	}
	if len(matrix.Matchers) != 1 {
		t.Fatalf("expected 1 matcher, got %d", len(matrix.Matchers))
	}
	if matrix.Matchers[0] != (LabelMatcher{Name: "status", Op: "=~", Value: "[45].."}) {
		t.Errorf("unexpected matcher: %+v", matrix.Matchers[0])
	}
}

func TestParseQuery_AggregationWithout(t *testing.T) {
	node := mustParse(t, "avg without (instance, pod) (demo_memory_usage_bytes)")

	if node.Kind != NodeAggregation {
		t.Fatalf("expected aggregation, got %s", node.Kind)
	}
	if !node.Without {
		t.Error("expected without-grouping")
	}
	if len(node.Grouping) != 2 || node.Grouping[0] != "instance" || node.Grouping[1] != "pod" {
		t.Errorf("unexpected grouping: %v", node.Grouping)
	}
}

func TestParseQuery_AggregationParam(t *testing.T) {
	node := mustParse(t, "topk(3, demo_memory_usage_bytes)")

	if node.Kind != NodeAggregation || node.Op != "topk" {
		t.Fatalf("expected topk aggregation, got %s %s", node.Kind, node.Op)
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(node.Children))
	}
	if node.Children[0].Kind != NodeVectorSelector {
		t.Errorf("expected aggregated expression first, got %s", node.Children[0].Kind)
	}
	if node.Children[1].Kind != NodeNumberLiteral || node.Children[1].Value != "3" {
		t.Errorf("expected number param 3, got %s %q", node.Children[1].Kind, node.Children[1].Value)
	}
}

func TestParseQuery_BinaryExpr(t *testing.T) {
	node := mustParse(t, "demo_memory_usage_bytes / demo_memory_limit_bytes > 0.8")

	if node.Kind != NodeBinaryExpr {
		t.Fatalf("expected binaryExpr, got %s", node.Kind)
	}
	if node.Op != ">" {
		t.Errorf("expected op >, got %s", node.Op)
	}
	if len(node.Children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(node.Children))
	}
	if node.Children[0].Kind != NodeBinaryExpr || node.Children[0].Op != "/" {
		t.Errorf("expected division on the left, got %s %s", node.Children[0].Kind, node.Children[0].Op)
	}
	if node.Children[1].Kind != NodeNumberLiteral {
		t.Errorf("expected number on the right, got %s", node.Children[1].Kind)
	}
}

func TestParseQuery_SetOperator(t *testing.T) {
	node := mustParse(t, `up and on (instance) demo_maintenance == 0`)

	if node.Kind != NodeBinaryExpr {
		t.Fatalf("expected binaryExpr, got %s", node.Kind)
	}
	if node.Op != "and" {
		t.Errorf("expected op and, got %s", node.Op)
	}
}

func TestParseQuery_Subquery(t *testing.T) {
	node := mustParse(t, "max_over_time(rate(demo_api_request_errors_total[5m])[1h:1m])")

	if node.Kind != NodeFunctionCall || node.Func != "max_over_time" {
		t.Fatalf("expected max_over_time call, got %s %s", node.Kind, node.Func)
	}
	sub := node.Children[0]
	if sub.Kind != NodeSubquery {
		t.Fatalf("expected subquery child, got %s", sub.Kind)
	}
	if sub.RangeMs != 3600000 {
		t.Errorf("expected range 3600000ms, got %d", sub.RangeMs)
	}
	if sub.StepMs != 60000 {
		t.Errorf("expected step 60000ms, got %d", sub.StepMs)
	}
	if len(sub.Children) != 1 || sub.Children[0].Kind != NodeFunctionCall {
		t.Errorf("expected rate call inside subquery")
	}
}

func TestParseQuery_SubqueryDefaultStep(t *testing.T) {
	node := mustParse(t, "avg_over_time(up[1h:])")

	sub := node.Children[0]
	if sub.Kind != NodeSubquery {
		t.Fatalf("expected subquery, got %s", sub.Kind)
	}
	if sub.StepMs != 0 {
		t.Errorf("expected unset step, got %d", sub.StepMs)
	}
}

func TestParseQuery_ParenAndUnary(t *testing.T) {
	node := mustParse(t, "-(up + 1)")

	if node.Kind != NodeUnaryExpr || node.Op != "-" {
		t.Fatalf("expected unary minus, got %s %s", node.Kind, node.Op)
	}
	paren := node.Children[0]
	if paren.Kind != NodeParenExpr {
		t.Fatalf("expected parenExpr, got %s", paren.Kind)
	}
	if paren.Children[0].Kind != NodeBinaryExpr {
		t.Errorf("expected binaryExpr inside parens, got %s", paren.Children[0].Kind)
	}
}

func TestParseQuery_StringLiteral(t *testing.T) {
	node := mustParse(t, `label_replace(up, "dst", "$1", "src", "(.*)")`)

	if node.Kind != NodeFunctionCall || node.Func != "label_replace" {
		t.Fatalf("expected label_replace call, got %s %s", node.Kind, node.Func)
	}
	if len(node.Children) != 5 {
		t.Fatalf("expected 5 args, got %d", len(node.Children))
	}
	arg := node.Children[1]
	if arg.Kind != NodeStringLiteral {
		t.Fatalf("expected stringLiteral, got %s", arg.Kind)
	}
	if arg.Value != "dst" {
		t.Errorf("expected unquoted value dst, got %q", arg.Value)
	}
}

func TestParseQuery_NumberLiteralText(t *testing.T) {
	node := mustParse(t, "0.8")

	if node.Kind != NodeNumberLiteral {
		t.Fatalf("expected numberLiteral, got %s", node.Kind)
	}
	if node.Value != "0.8" {
		t.Errorf("expected source text 0.8, got %q", node.Value)
	}
}

func TestParseQuery_NameOnlyMatcher(t *testing.T) {
	node := mustParse(t, `{__name__="up"}`)

	if node.Kind != NodeVectorSelector {
		t.Fatalf("expected vectorSelector, got %s", node.Kind)
	}
	if node.Name != "" {
		t.Errorf("expected empty name, got %s", node.Name)
	}
	// With no metric name to fold into, the __name__ matcher stays listed.
	if len(node.Matchers) != 1 || node.Matchers[0].Name != "__name__" {
		t.Errorf("expected explicit __name__ matcher, got %v", node.Matchers)
	}
}

func TestParseQuery_EmptyInput(t *testing.T) {
	for _, q := range []string{"", "   ", "\n\t"} {
		res := ParseQuery(q)
		if res.Success {
			t.Errorf("ParseQuery(%q) unexpectedly succeeded", q)
		}
		if res.Error != "Empty query" {
			t.Errorf("ParseQuery(%q) error = %q, want %q", q, res.Error, "Empty query")
		}
		if res.AST != nil {
			t.Errorf("ParseQuery(%q) returned an AST on failure", q)
		}
	}
}

func TestParseQuery_ParseError(t *testing.T) {
	for _, q := range []string{
		"sum(",
		"rate(up[5m)",
		"up{",
		"1 +",
		"@#$%",
		`up{label="unclosed}`,
	} {
		res := ParseQuery(q)
		if res.Success {
			t.Errorf("ParseQuery(%q) unexpectedly succeeded", q)
		}
		if res.Error != "Parse error in query" {
			t.Errorf("ParseQuery(%q) error = %q, want %q", q, res.Error, "Parse error in query")
		}
	}
}

func TestParseQuery_NeverPanics(t *testing.T) {
	inputs := []string{
		"\x00\x01\x02",
		"((((((((((",
		"sum by (",
		"up[",
		"up @ ",
		"{}",
		"🚀🚀🚀",
	}
	for _, q := range inputs {
		res := ParseQuery(q) // must not panic
		if res.Success && res.AST == nil {
			t.Errorf("ParseQuery(%q) success with nil AST", q)
		}
	}
}

func TestParseQuery_SourceText(t *testing.T) {
	query := "sum(rate(up[5m]))"
	node := mustParse(t, query)

	if node.Text != query {
		t.Errorf("root text = %q, want full query", node.Text)
	}
	rate := node.Children[0]
	if rate.Text != "rate(up[5m])" {
		t.Errorf("child text = %q, want %q", rate.Text, "rate(up[5m])")
	}
}

func TestBuildNode_StepInvariantUnwrap(t *testing.T) {
	inner, err := parser.ParseExpr("up")
	if err != nil {
		t.Fatalf("ParseExpr failed: %v", err)
	}
	wrapped := &parser.StepInvariantExpr{Expr: inner}

	node := buildNode(wrapped, "up")
	if node.Kind != NodeVectorSelector {
		t.Errorf("expected wrapper to be transparent, got %s", node.Kind)
	}
}

// unknownExpr is an expression type the builder has never seen.
type unknownExpr struct{}

func (unknownExpr) String() string                        { return "unknown" }
func (unknownExpr) Pretty(int) string                     { return "unknown" }
func (unknownExpr) PositionRange() posrange.PositionRange { return posrange.PositionRange{} }
func (unknownExpr) Type() parser.ValueType                { return parser.ValueTypeNone }
func (unknownExpr) PromQLExpr()                           {}

func TestBuildNode_UnknownNodeDegrades(t *testing.T) {
	node := buildNode(unknownExpr{}, "unknown")
	if node == nil {
		t.Fatal("expected a node, got nil")
	}
	if node.Kind != NodeError {
		t.Errorf("expected error node, got %s", node.Kind)
	}
}

func TestWalk_PreOrder(t *testing.T) {
	node := mustParse(t, "sum(rate(up[5m]))")

	var kinds []NodeKind
	var depths []int
	Walk(node, func(n *ParsedNode, depth int) {
		kinds = append(kinds, n.Kind)
		depths = append(depths, depth)
	})

	want := []NodeKind{NodeAggregation, NodeFunctionCall, NodeMatrixSelector}
	if len(kinds) != len(want) {
		t.Fatalf("visited %d nodes, want %d", len(kinds), len(want))
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("visit %d: got %s, want %s", i, kinds[i], want[i])
		}
		if depths[i] != i {
			t.Errorf("visit %d: got depth %d, want %d", i, depths[i], i)
		}
	}
}
