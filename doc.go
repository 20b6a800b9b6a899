// Package queryscope parses PromQL expressions into a simplified AST and
// generates plain-language explanations for every node, aimed at tools that
// teach PromQL interactively.
//
// QueryScope wraps the Prometheus expression parser: the grammar is never
// reimplemented, only its tree is reshaped into a compact, JSON-friendly
// form with one-sentence explanations per node.
//
// # Basic Usage
//
// Parse a query:
//
//	res := queryscope.ParseQuery(`rate(http_requests_total[5m])`)
//	if !res.Success {
//	    log.Fatal(res.Error)
//	}
//
// Explain every node of the result:
//
//	for _, row := range queryscope.ExplainTree(res.AST) {
//	    fmt.Printf("%*s%s\n", row.Depth*2, "", row.Explanation)
//	}
//
// Serve the HTTP API:
//
//	srv := queryscope.NewServer(queryscope.DefaultConfig(), nil, nil)
//	log.Fatal(srv.ListenAndServe())
//
// # Features
//
// Parsing & Explanation:
//   - Simplified AST over the Prometheus PromQL grammar
//   - Per-node plain-language explanations, table-driven
//   - Total over arbitrary input: malformed queries degrade gracefully
//   - Permissive duration handling with a five-minute default window
//
// Service:
//   - HTTP API for parse, explain, examples, functions and history
//   - Live WebSocket sessions that re-explain on every keystroke
//   - SQLite-backed query history with compressed AST storage
//   - Curated example catalog, extensible via YAML files
//   - Optional API key authentication with bcrypt-hashed keys
package queryscope
