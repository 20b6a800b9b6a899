package queryscope

import (
	"fmt"
	"sort"
	"strings"
)

// The explanation generator is table-driven on purpose: the phrases are
// data, not behavior. New operators and functions are supported by adding a
// table entry; everything else falls through to a generic phrase so the
// generator stays total over ASTs it has never been told about.

// aggregationVerbs fills "This expression {verb} the values".
var aggregationVerbs = map[string]string{
	"sum":          "sums",
	"avg":          "averages",
	"min":          "takes the minimum of",
	"max":          "takes the maximum of",
	"count":        "counts",
	"count_values": "counts distinct occurrences among",
	"group":        "groups",
	"stddev":       "calculates the standard deviation of",
	"stdvar":       "calculates the standard variance of",
	"topk":         "keeps the largest entries of",
	"bottomk":      "keeps the smallest entries of",
	"quantile":     "calculates a quantile over",
	"limitk":       "samples a limited number of",
	"limit_ratio":  "samples a deterministic ratio of",
}

// binaryVerbs fills "Binary operation that {verb} two expressions".
var binaryVerbs = map[string]string{
	"+":      "adds",
	"-":      "subtracts",
	"*":      "multiplies",
	"/":      "divides",
	"%":      "takes the remainder between",
	"^":      "exponentiates",
	"==":     "checks equality between",
	"!=":     "checks inequality between",
	">":      "compares greater-than between",
	"<":      "compares less-than between",
	">=":     "compares greater-or-equal between",
	"<=":     "compares less-or-equal between",
	"atan2":  "computes the arc tangent between",
	"and":    "takes the intersection of",
	"or":     "takes the union of",
	"unless": "removes matching results between",
}

// functionPhrases fills "The {name}() function {phrase}".
var functionPhrases = map[string]string{
	"abs":                "takes the absolute value of each sample",
	"absent":             "checks whether the metric is absent",
	"absent_over_time":   "checks whether the metric was absent over the range",
	"avg_over_time":      "averages the values over the range",
	"ceil":               "rounds each sample up to the nearest integer",
	"changes":            "counts how often the value changed within the range",
	"clamp":              "clamps each sample between a lower and an upper bound",
	"clamp_max":          "clamps each sample to an upper bound",
	"clamp_min":          "clamps each sample to a lower bound",
	"count_over_time":    "counts the samples in the range",
	"day_of_month":       "extracts the day of the month from each timestamp",
	"day_of_week":        "extracts the day of the week from each timestamp",
	"days_in_month":      "extracts the number of days in the month from each timestamp",
	"delta":              "calculates the difference between the first and last value",
	"deriv":              "estimates the per-second derivative using linear regression",
	"exp":                "raises e to the power of each sample",
	"floor":              "rounds each sample down to the nearest integer",
	"histogram_quantile": "calculates a quantile from histogram buckets",
	"holt_winters":       "produces a smoothed value with trend forecasting",
	"hour":               "extracts the hour of the day from each timestamp",
	"idelta":             "calculates the difference between the last two values",
	"increase":           "calculates the total increase over the range",
	"irate":              "calculates the instant rate from the last two values",
	"label_join":         "joins label values into a new label",
	"label_replace":      "rewrites a label using a regular expression",
	"ln":                 "takes the natural logarithm of each sample",
	"log10":              "takes the base-10 logarithm of each sample",
	"log2":               "takes the base-2 logarithm of each sample",
	"max_over_time":      "takes the maximum value over the range",
	"min_over_time":      "takes the minimum value over the range",
	"minute":             "extracts the minute of the hour from each timestamp",
	"month":              "extracts the month from each timestamp",
	"predict_linear":     "predicts a future value using linear regression",
	"quantile_over_time": "calculates a quantile of the values over the range",
	"rate":               "calculates the per-second rate of increase",
	"resets":             "counts counter resets within the range",
	"round":              "rounds each sample to the nearest integer",
	"scalar":             "converts a single-series vector into a scalar",
	"sgn":                "extracts the sign of each sample",
	"sort":               "sorts the results in ascending order",
	"sort_desc":          "sorts the results in descending order",
	"sqrt":               "takes the square root of each sample",
	"stddev_over_time":   "calculates the standard deviation over the range",
	"stdvar_over_time":   "calculates the standard variance over the range",
	"sum_over_time":      "sums the values over the range",
	"time":               "returns the evaluation timestamp",
	"timestamp":          "returns the sample timestamps as values",
	"vector":             "converts a scalar into a single-series vector",
	"year":               "extracts the year from each timestamp",
}

// matcherRelations renders matcher operators in prose.
var matcherRelations = map[string]string{
	"=":  "equals",
	"!=": "does not equal",
	"=~": "matches regex",
	"!~": "does not match regex",
}

// Explain renders one node of a ParsedNode tree into a single plain-text
// sentence describing what it computes. It is a pure function of the node:
// children are described through the node's own structural fields, never by
// recursing into their explanations.
func Explain(node *ParsedNode) string {
	if node == nil {
		return "PromQL expression"
	}

	switch node.Kind {
	case NodeAggregation:
		verb, ok := aggregationVerbs[node.Op]
		if !ok {
			verb = fmt.Sprintf("applies %s to", node.Op)
		}
		s := fmt.Sprintf("This expression %s the values", verb)
		if len(node.Grouping) > 0 {
			if node.Without {
				s += ", excluding labels: " + strings.Join(node.Grouping, ", ")
			} else {
				s += ", grouped by: " + strings.Join(node.Grouping, ", ")
			}
		}
		return s

	case NodeFunctionCall:
		phrase, ok := functionPhrases[node.Func]
		if !ok {
			phrase = fmt.Sprintf("applies %s()", node.Func)
		}
		return fmt.Sprintf("The %s() function %s", node.Func, phrase)

	case NodeBinaryExpr:
		verb, ok := binaryVerbs[node.Op]
		if !ok {
			verb = fmt.Sprintf("applies %s to", node.Op)
		}
		return fmt.Sprintf("Binary operation that %s two expressions", verb)

	case NodeVectorSelector:
		s := fmt.Sprintf("Selects the metric %q", displayName(node.Name))
		if len(node.Matchers) > 0 {
			s += " where " + renderMatchers(node.Matchers)
		}
		return s

	case NodeMatrixSelector:
		s := fmt.Sprintf("Selects %s of data for %q", HumanDuration(node.RangeMs), displayName(node.Name))
		if len(node.Matchers) > 0 {
			s += " with label filters"
		}
		return s

	case NodeSubquery:
		return "Evaluates the enclosed expression as a subquery over a sliding window"

	case NodeNumberLiteral:
		return fmt.Sprintf("The number %s", node.Value)

	case NodeStringLiteral:
		return fmt.Sprintf("The string %q", node.Value)

	case NodeParenExpr:
		return "Groups the enclosed expression to control evaluation order"

	case NodeUnaryExpr:
		return fmt.Sprintf("Applies the unary %q sign to the enclosed expression", node.Op)

	default:
		return "PromQL expression"
	}
}

func displayName(metric string) string {
	if metric == "" {
		return "(any)"
	}
	return metric
}

func renderMatchers(matchers []LabelMatcher) string {
	parts := make([]string, 0, len(matchers))
	for _, m := range matchers {
		relation, ok := matcherRelations[m.Op]
		if !ok {
			relation = matcherRelations["="]
		}
		parts = append(parts, fmt.Sprintf("%s %s %q", m.Name, relation, m.Value))
	}
	return strings.Join(parts, " AND ")
}

// NodeExplanation is one row of an explanation tree: a node's position,
// source text and sentence, ready for tree-by-tree display.
type NodeExplanation struct {
	Depth       int      `json:"depth"`
	Kind        NodeKind `json:"kind"`
	Text        string   `json:"text"`
	Explanation string   `json:"explanation"`
}

// ExplainTree explains every node of the tree in depth-first pre-order.
func ExplainTree(root *ParsedNode) []NodeExplanation {
	var rows []NodeExplanation
	Walk(root, func(n *ParsedNode, depth int) {
		rows = append(rows, NodeExplanation{
			Depth:       depth,
			Kind:        n.Kind,
			Text:        n.Text,
			Explanation: Explain(n),
		})
	})
	return rows
}

// FunctionDoc pairs a function name with the phrase the explanation
// generator uses for it.
type FunctionDoc struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Functions lists every function the explanation generator knows about,
// sorted by name.
func Functions() []FunctionDoc {
	docs := make([]FunctionDoc, 0, len(functionPhrases))
	for name, phrase := range functionPhrases {
		docs = append(docs, FunctionDoc{Name: name, Description: phrase})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].Name < docs[j].Name })
	return docs
}
