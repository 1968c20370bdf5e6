package types

import "sort"

// SourceSelection is the selection state of one source.
// Simple sources use Enabled. Hierarchical sources carry selected leaf
// values per level key; such a source is active iff any value is selected.
type SourceSelection struct {
	Enabled bool                `json:"enabled,omitempty"`
	Values  map[string][]string `json:"values,omitempty"`
}

// HasValues reports whether any leaf value is selected.
func (s SourceSelection) HasValues() bool {
	for _, vs := range s.Values {
		if len(vs) > 0 {
			return true
		}
	}
	return false
}

// Active reports whether rows of the source can pass the selection.
func (s SourceSelection) Active(mode SelectionMode) bool {
	if mode == ModeHierarchical {
		return s.HasValues()
	}
	return s.Enabled
}

// Clone returns a deep copy.
func (s SourceSelection) Clone() SourceSelection {
	out := SourceSelection{Enabled: s.Enabled}
	if s.Values != nil {
		out.Values = make(map[string][]string, len(s.Values))
		for k, vs := range s.Values {
			out.Values[k] = append([]string(nil), vs...)
		}
	}
	return out
}

// ActiveSelection is the complete user-selected state of one session.
// It is a value: engine functions take one and return a new one, never
// mutating the argument.
//
// Shared constrains shared levels across every source. A level absent from
// Shared is unconstrained; a level present with no values lets no
// location-scoped row through.
type ActiveSelection struct {
	Sources      map[string]SourceSelection `json:"sources"`
	Shared       map[string][]string        `json:"shared,omitempty"`
	Metrics      []string                   `json:"metrics"`
	Granularity  Granularity                `json:"granularity"`
	ActivePeriod PeriodKey                  `json:"activePeriod,omitempty"`
}

// Clone returns a deep copy.
func (a ActiveSelection) Clone() ActiveSelection {
	out := ActiveSelection{
		Metrics:      append([]string(nil), a.Metrics...),
		Granularity:  a.Granularity,
		ActivePeriod: a.ActivePeriod,
	}
	if a.Sources != nil {
		out.Sources = make(map[string]SourceSelection, len(a.Sources))
		for k, s := range a.Sources {
			out.Sources[k] = s.Clone()
		}
	}
	if a.Shared != nil {
		out.Shared = make(map[string][]string, len(a.Shared))
		for k, vs := range a.Shared {
			out.Shared[k] = append([]string{}, vs...)
		}
	}
	return out
}

// HasMetric reports whether metric is selected.
func (a ActiveSelection) HasMetric(metric string) bool {
	for _, m := range a.Metrics {
		if m == metric {
			return true
		}
	}
	return false
}

// MetricSet returns the selected metrics as a lookup set.
func (a ActiveSelection) MetricSet() map[string]bool {
	set := make(map[string]bool, len(a.Metrics))
	for _, m := range a.Metrics {
		set[m] = true
	}
	return set
}

// SortedMetrics returns a sorted copy of the selected metric keys.
func (a ActiveSelection) SortedMetrics() []string {
	out := append([]string(nil), a.Metrics...)
	sort.Strings(out)
	return out
}
