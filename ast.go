package queryscope

// NodeKind identifies the variant of a ParsedNode.
type NodeKind string

const (
	NodeAggregation    NodeKind = "aggregation"
	NodeFunctionCall   NodeKind = "functionCall"
	NodeBinaryExpr     NodeKind = "binaryExpr"
	NodeVectorSelector NodeKind = "vectorSelector"
	NodeMatrixSelector NodeKind = "matrixSelector"
	NodeSubquery       NodeKind = "subquery"
	NodeNumberLiteral  NodeKind = "numberLiteral"
	NodeStringLiteral  NodeKind = "stringLiteral"
	NodeParenExpr      NodeKind = "parenExpr"
	NodeUnaryExpr      NodeKind = "unaryExpr"
	NodeError          NodeKind = "error"
)

// LabelMatcher is a single name-operator-value filter on a selector.
// Op is one of "=", "!=", "=~" and "!~".
type LabelMatcher struct {
	Name  string `json:"name"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

// ParsedNode is one node of the simplified query AST. Kind selects the
// variant; the remaining fields are populated per variant. Children are
// owned exclusively by their parent, so a ParsedNode tree is always a
// strict tree.
//
// Text always holds the exact source slice the node was built from.
type ParsedNode struct {
	Kind NodeKind `json:"kind"`
	Text string   `json:"text"`

	// Op is the aggregation operator (lowercased), the binary operator
	// symbol, or the unary sign, depending on Kind.
	Op string `json:"op,omitempty"`

	// Func is the function name for functionCall nodes.
	Func string `json:"func,omitempty"`

	// Name is the metric name for selector nodes. Empty means any metric.
	Name string `json:"name,omitempty"`

	// Value is the literal text of a number or the unquoted value of a
	// string literal.
	Value string `json:"value,omitempty"`

	Matchers []LabelMatcher `json:"matchers,omitempty"`
	Grouping []string       `json:"grouping,omitempty"`
	Without  bool           `json:"without,omitempty"`

	// RangeMs is the lookback window for matrix selectors and subqueries,
	// in milliseconds. Always positive once set; missing durations default
	// to DefaultRangeMs rather than failing.
	RangeMs int64 `json:"range_ms,omitempty"`

	// StepMs is the subquery resolution step in milliseconds, when the
	// query spells one out.
	StepMs int64 `json:"step_ms,omitempty"`

	Children []*ParsedNode `json:"children,omitempty"`
}

// ParseResult is the outcome of parsing one query string.
type ParseResult struct {
	Success bool        `json:"success"`
	AST     *ParsedNode `json:"ast,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Walk visits node and every descendant in depth-first pre-order. The
// visitor receives each node together with its depth below the root.
func Walk(node *ParsedNode, visit func(n *ParsedNode, depth int)) {
	walkNode(node, 0, visit)
}

func walkNode(node *ParsedNode, depth int, visit func(n *ParsedNode, depth int)) {
	if node == nil {
		return
	}
	visit(node, depth)
	for _, child := range node.Children {
		walkNode(child, depth+1, visit)
	}
}
