package rules

import "github.com/solatis/datex/internal/types"

// MetricScope tells whether location filters apply to a metric's rows.
type MetricScope struct {
	Known     bool `json:"known"`
	Scoped    bool `json:"scoped"`    // location filters apply
	Aggregate bool `json:"aggregate"` // all locations merge into one series
}

// ResolveMetric looks up the scoping flags of a metric.
// Unknown metrics are treated as fully location-scoped and never aggregated.
func (c *CompiledRuleSet) ResolveMetric(key string) MetricScope {
	i, ok := c.byMetric[key]
	if !ok {
		return MetricScope{Scoped: true}
	}
	m := c.Metrics[i]
	return MetricScope{
		Known:     true,
		Scoped:    !m.Global,
		Aggregate: m.Global && m.AggregateLocation,
	}
}

// Metric returns the definition of a metric.
func (c *CompiledRuleSet) Metric(key string) (types.MetricDefinition, bool) {
	i, ok := c.byMetric[key]
	if !ok {
		return types.MetricDefinition{}, false
	}
	return c.Metrics[i], true
}
