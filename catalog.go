package queryscope

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// ExampleQuery is one curated example in the query catalog.
type ExampleQuery struct {
	Query       string `json:"query" yaml:"query"`
	Description string `json:"description" yaml:"description"`
	Category    string `json:"category" yaml:"category"`
}

// builtinExamples is the catalog shipped with the service. Every entry must
// parse; TestBuiltinExamplesParse enforces that.
var builtinExamples = []ExampleQuery{
	{
		Query:       "up",
		Description: "Instant health of every scrape target (1 = up, 0 = down)",
		Category:    "basics",
	},
	{
		Query:       `demo_api_request_duration_seconds_count{method="GET"}`,
		Description: "Request count series filtered to GET requests",
		Category:    "basics",
	},
	{
		Query:       "rate(demo_cpu_usage_seconds_total[5m])",
		Description: "Per-second CPU usage averaged over the last five minutes",
		Category:    "counters",
	},
	{
		Query:       "increase(demo_api_request_errors_total[1h])",
		Description: "Total errors accumulated over the last hour",
		Category:    "counters",
	},
	{
		Query:       "sum by (status) (rate(demo_api_request_duration_seconds_count{status=~\"[45]..\"}[5m]))",
		Description: "Error request rate broken down by HTTP status",
		Category:    "aggregations",
	},
	{
		Query:       "avg without (instance) (demo_memory_usage_bytes)",
		Description: "Memory usage averaged across instances",
		Category:    "aggregations",
	},
	{
		Query:       "topk(3, sum by (path) (rate(demo_api_request_duration_seconds_count[5m])))",
		Description: "The three busiest request paths",
		Category:    "aggregations",
	},
	{
		Query:       "histogram_quantile(0.95, sum by (le) (rate(demo_api_request_duration_seconds_bucket[5m])))",
		Description: "95th percentile request latency from histogram buckets",
		Category:    "histograms",
	},
	{
		Query:       "demo_memory_usage_bytes / demo_memory_limit_bytes > 0.8",
		Description: "Instances using more than 80% of their memory limit",
		Category:    "alerts",
	},
	{
		Query:       "max_over_time(rate(demo_api_request_errors_total[5m])[1h:1m])",
		Description: "Worst one-minute error rate seen within the last hour",
		Category:    "subqueries",
	},
	{
		Query:       "predict_linear(demo_disk_usage_bytes[6h], 4 * 3600)",
		Description: "Projected disk usage four hours from now",
		Category:    "forecasting",
	},
	{
		Query:       "absent(up{job=\"demo\"})",
		Description: "Fires when the demo job stops reporting entirely",
		Category:    "alerts",
	},
}

// Catalog holds example queries for browsing, combining the built-in set
// with any loaded from YAML files. Safe for concurrent use.
type Catalog struct {
	mu      sync.RWMutex
	entries []ExampleQuery
}

// NewCatalog returns a catalog seeded with the built-in examples.
func NewCatalog() *Catalog {
	return &Catalog{
		entries: append([]ExampleQuery(nil), builtinExamples...),
	}
}

// LoadFile appends examples from a YAML file. The file holds a list of
// entries with query, description and category keys. Entries with an empty
// query are rejected.
func (c *Catalog) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read catalog file: %w", err)
	}

	var loaded []ExampleQuery
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}
	for i, e := range loaded {
		if e.Query == "" {
			return fmt.Errorf("catalog file %s: entry %d has no query", path, i)
		}
	}

	c.mu.Lock()
	c.entries = append(c.entries, loaded...)
	c.mu.Unlock()
	return nil
}

// NewCatalogFromConfig builds a catalog from the built-in examples plus
// every file the configuration names.
func NewCatalogFromConfig(cfg CatalogConfig) (*Catalog, error) {
	c := NewCatalog()
	for _, path := range cfg.Paths {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Examples returns all catalog entries in load order.
func (c *Catalog) Examples() []ExampleQuery {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]ExampleQuery(nil), c.entries...)
}

// ByCategory returns the entries of one category, in load order.
func (c *Catalog) ByCategory(category string) []ExampleQuery {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []ExampleQuery
	for _, e := range c.entries {
		if e.Category == category {
			out = append(out, e)
		}
	}
	return out
}
