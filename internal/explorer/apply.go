// internal/explorer/apply.go
package explorer

import (
	"fmt"

	"github.com/solatis/datex/internal/catalog"
	"github.com/solatis/datex/internal/period"
	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

/*
 * Selection changes.
 *
 * Apply workflow:
 *   1. Validate the change against the rule set
 *   2. Merge it into a copy of the current selection (sources and shared
 *      levels replace per key; metrics and granularity replace when set)
 *   3. Re-seed through catalog.Build and catalog.BuildShared so values not
 *      offered are dropped
 *   4. Derive the event from the diff between old and new selection
 *   5. Rebuild the period index and resolve the active period; on a
 *      granularity change the previous period is re-keyed first
 *
 * Event derivation, first match wins:
 *   - granularity differs                   -> GranularityChanged
 *   - any source value/flag removed         -> FilterRemoved
 *   - any shared level value deselected     -> FilterRemoved
 *   - any metric removed                    -> FilterRemoved
 *   - anything added                        -> FilterAdded
 *   - no effective change                   -> FilterAdded (keep)
 */

// Change is a requested selection update. Zero fields leave the current
// value unchanged. A Shared entry with a nil list lifts that level's
// constraint; any other list replaces it.
type Change struct {
	Sources     map[string]types.SourceSelection `json:"sources,omitempty"`
	Shared      map[string][]string              `json:"shared,omitempty"`
	Metrics     []string                         `json:"metrics,omitempty"`
	Granularity types.Granularity                `json:"granularity,omitempty"`
}

// Apply returns the state after change. Configuration-level mistakes in the
// change (unknown source, unknown level, values on a simple source, unknown
// granularity) are errors; values that simply do not occur in the dataset
// are dropped.
func (e *Explorer) Apply(state State, change Change) (State, error) {
	if err := e.validate(change); err != nil {
		return State{}, err
	}

	prev := state.Selection
	next := prev.Clone()
	if next.Sources == nil {
		next.Sources = make(map[string]types.SourceSelection)
	}
	for key, s := range change.Sources {
		next.Sources[key] = s.Clone()
	}
	for key, vs := range change.Shared {
		if vs == nil {
			delete(next.Shared, key)
			continue
		}
		if next.Shared == nil {
			next.Shared = make(map[string][]string)
		}
		next.Shared[key] = append([]string{}, vs...)
	}
	if change.Metrics != nil {
		next.Metrics = append([]string(nil), change.Metrics...)
	}
	if change.Granularity != "" {
		next.Granularity = change.Granularity
	}

	tree, sources := catalog.Build(e.catalog, e.rules, next.Sources)
	next.Sources = sources
	tree.Shared, next.Shared = catalog.BuildShared(e.catalog, e.rules, next.Shared)

	ev := e.event(prev, next)
	ix := period.BuildIndex(e.rows, e.rules, next, e.loc)
	previous := prev.ActivePeriod
	if ev == period.EventGranularityChanged {
		previous = period.Convert(previous, prev.Granularity, next.Granularity, e.loc)
	}
	next.ActivePeriod = period.Resolve(e.rules.Behavior, ev, previous, ix)

	e.logger.Debug("period resolved",
		"event", ev,
		"policy", period.PolicyFor(e.rules.Behavior, ev),
		"previous", previous,
		"active", next.ActivePeriod,
		"periods", ix.Len())

	return e.finish(next, tree, ix, state.HadData), nil
}

func (e *Explorer) validate(change Change) error {
	for key, s := range change.Sources {
		src, ok := e.rules.Source(key)
		if !ok {
			return fmt.Errorf("%w: %q", types.ErrUnknownSource, key)
		}
		if !src.Hierarchical() {
			if s.HasValues() {
				return fmt.Errorf("source %q: %w", key, types.ErrSimpleSourceValues)
			}
			continue
		}
		for level := range s.Values {
			if _, ok := src.Level(level); !ok {
				return fmt.Errorf("source %q: %w: %q", key, types.ErrUnknownLevel, level)
			}
		}
	}
	for level := range change.Shared {
		if _, ok := e.rules.SharedLevel(level); !ok {
			return fmt.Errorf("shared: %w: %q", types.ErrUnknownLevel, level)
		}
	}
	if change.Granularity != "" {
		if _, err := types.ParseGranularity(string(change.Granularity)); err != nil {
			return err
		}
	}
	return nil
}

// event derives the triggering event from a selection diff.
func (e *Explorer) event(prev, next types.ActiveSelection) period.Event {
	if prev.Granularity != next.Granularity {
		return period.EventGranularityChanged
	}

	for i := range e.rules.Sources {
		src := &e.rules.Sources[i]
		if _, removed := diffSource(src.Hierarchical(), prev.Sources[src.Key], next.Sources[src.Key]); removed {
			return period.EventFilterRemoved
		}
	}
	for i := range e.rules.Shared {
		level := &e.rules.Shared[i]
		if !subset(e.sharedPasses(prev, level), e.sharedPasses(next, level)) {
			return period.EventFilterRemoved
		}
	}
	if ev, ok := period.MetricsEvent(prev.Metrics, next.Metrics); ok && ev == period.EventFilterRemoved {
		return ev
	}
	return period.EventFilterAdded
}

// sharedPasses returns the values of a shared level that a selection lets
// through: the constraint when present, every offered value otherwise.
func (e *Explorer) sharedPasses(sel types.ActiveSelection, level *rules.SharedLevel) []string {
	if vs, ok := sel.Shared[level.Key]; ok {
		out := make([]string, len(vs))
		for i, v := range vs {
			out[i] = rules.CanonicalValue(v)
		}
		return out
	}
	offered, _ := catalog.OfferedShared(e.catalog, level)
	return offered
}

// diffSource reports whether next selects anything prev did not (added) and
// whether prev selected anything next does not (removed).
func diffSource(hierarchical bool, prev, next types.SourceSelection) (added, removed bool) {
	if !hierarchical {
		return next.Enabled && !prev.Enabled, prev.Enabled && !next.Enabled
	}
	for level, vs := range next.Values {
		if !subset(vs, prev.Values[level]) {
			added = true
		}
	}
	for level, vs := range prev.Values {
		if !subset(vs, next.Values[level]) {
			removed = true
		}
	}
	return added, removed
}

func subset(a, b []string) bool {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	for _, v := range a {
		if !set[v] {
			return false
		}
	}
	return true
}
