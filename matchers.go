package queryscope

import (
	"github.com/prometheus/prometheus/model/labels"
)

// extractMatchers converts the upstream matcher list of a selector into
// LabelMatcher values, preserving encounter order and duplicates. The
// synthetic __name__ equality matcher the parser adds for a named metric is
// folded into the selector's Name field and not listed. Matchers without a
// label name are skipped rather than reported as errors, so partially typed
// queries keep producing useful structure.
func extractMatchers(metricName string, lms []*labels.Matcher) []LabelMatcher {
	var out []LabelMatcher
	for _, lm := range lms {
		if lm == nil || lm.Name == "" {
			continue
		}
		if metricName != "" && lm.Name == labels.MetricName &&
			lm.Type == labels.MatchEqual && lm.Value == metricName {
			continue
		}
		out = append(out, LabelMatcher{
			Name:  lm.Name,
			Op:    matchOp(lm.Type),
			Value: lm.Value,
		})
	}
	return out
}

// matchOp maps an upstream match type to its operator symbol. Anything
// unrecognized falls back to plain equality.
func matchOp(t labels.MatchType) string {
	switch t {
	case labels.MatchNotEqual:
		return "!="
	case labels.MatchRegexp:
		return "=~"
	case labels.MatchNotRegexp:
		return "!~"
	default:
		return "="
	}
}

// groupingLabels copies an aggregation grouping list, preserving order.
// No deduplication: the source text is reflected as written.
func groupingLabels(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	return append([]string(nil), names...)
}
