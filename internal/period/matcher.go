package period

import (
	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

// Matcher decides whether a classified row contributes under a selection.
//
// Unmatched rows never contribute. The row's metric must be selected. Rows
// of location-scoped metrics must also pass the source selection: a simple
// source passes when enabled; a hierarchical source passes when, for every
// level with selected values, the row's value for that level is one of them.
// Shared level constraints then apply to rows of every source, compared in
// canonical form. Rows of global metrics skip both.
type Matcher struct {
	metrics map[string]rules.MetricScope
	sources map[string]sourceFilter
	shared  map[string]map[string]bool
}

type sourceFilter struct {
	active bool
	levels map[string]map[string]bool
}

// NewMatcher pre-resolves the selection against the rule set.
func NewMatcher(rs *rules.CompiledRuleSet, sel types.ActiveSelection) *Matcher {
	m := &Matcher{
		metrics: make(map[string]rules.MetricScope, len(sel.Metrics)),
		sources: make(map[string]sourceFilter, len(rs.Sources)),
	}
	for _, key := range sel.Metrics {
		m.metrics[key] = rs.ResolveMetric(key)
	}
	for i := range rs.Sources {
		src := &rs.Sources[i]
		s := sel.Sources[src.Key]
		f := sourceFilter{active: s.Active(src.Mode)}
		if src.Hierarchical() {
			f.levels = make(map[string]map[string]bool, len(s.Values))
			for level, values := range s.Values {
				if len(values) == 0 {
					continue
				}
				set := make(map[string]bool, len(values))
				for _, v := range values {
					set[v] = true
				}
				f.levels[level] = set
			}
		}
		m.sources[src.Key] = f
	}
	if len(sel.Shared) > 0 {
		m.shared = make(map[string]map[string]bool, len(sel.Shared))
		for level, values := range sel.Shared {
			set := make(map[string]bool, len(values))
			for _, v := range values {
				set[rules.CanonicalValue(v)] = true
			}
			m.shared[level] = set
		}
	}
	return m
}

// Match reports whether row, classified as c, passes the selection.
func (m *Matcher) Match(row types.Row, c rules.Classification) bool {
	if !c.Matched {
		return false
	}
	scope, ok := m.metrics[row.Metric]
	if !ok {
		return false
	}
	if !scope.Scoped {
		return true
	}
	return m.MatchLocation(c)
}

// MatchLocation applies only the source, level and shared selection.
func (m *Matcher) MatchLocation(c rules.Classification) bool {
	if !c.Matched {
		return false
	}
	f := m.sources[c.Source.Key]
	if !f.active {
		return false
	}
	for level, set := range f.levels {
		v, ok := c.Level(level)
		if !ok || !set[v] {
			return false
		}
	}
	for level, set := range m.shared {
		v, ok := c.Level(level)
		if !ok || !set[rules.CanonicalValue(v)] {
			return false
		}
	}
	return true
}

// Scope returns the resolved scope of a selected metric.
func (m *Matcher) Scope(metric string) (rules.MetricScope, bool) {
	s, ok := m.metrics[metric]
	return s, ok
}
