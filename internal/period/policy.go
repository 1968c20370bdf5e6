// internal/period/policy.go
package period

import (
	"github.com/solatis/datex/internal/types"
)

/*
 * Period policies.
 *
 * Resolve maps (event, previous period, rebuilt index) to the new active
 * period. The event selects a policy from the rule set's Behavior:
 *
 *   FilterAdded        -> Behavior.OnFilterAdded        (default keep)
 *   FilterRemoved      -> Behavior.OnFilterRemoved      (default find_past)
 *   GranularityChanged -> Behavior.OnGranularityChanged (default last)
 *   DatasetChanged     -> keep
 *
 * Policies:
 *   keep:      previous period if still indexed, else find_past
 *   find_past: previous period if indexed, else greatest key <= previous,
 *              else smallest key; with no previous period, the last key
 *   last:      greatest key
 *
 * Every policy yields none exactly when the index is empty.
 */

// Event is the kind of change that triggered an index rebuild.
type Event string

const (
	EventFilterAdded        Event = "filter_added"
	EventFilterRemoved      Event = "filter_removed"
	EventGranularityChanged Event = "granularity_changed"
	EventDatasetChanged     Event = "dataset_changed"
)

// PolicyFor returns the policy the behavior assigns to an event.
func PolicyFor(b types.Behavior, ev Event) types.PeriodPolicy {
	switch ev {
	case EventFilterAdded:
		return b.OnFilterAdded
	case EventFilterRemoved:
		return b.OnFilterRemoved
	case EventGranularityChanged:
		return b.OnGranularityChanged
	default:
		return types.PolicyKeep
	}
}

// Resolve returns the active period after ev, given the rebuilt index.
func Resolve(b types.Behavior, ev Event, prev types.PeriodKey, ix Index) types.PeriodKey {
	return Apply(PolicyFor(b, ev), prev, ix)
}

// Apply runs a single policy.
func Apply(p types.PeriodPolicy, prev types.PeriodKey, ix Index) types.PeriodKey {
	switch p {
	case types.PolicyLast:
		return ix.Last()
	case types.PolicyFindPast:
		return findPast(prev, ix)
	default:
		if !prev.None() && ix.Contains(prev) {
			return prev
		}
		return findPast(prev, ix)
	}
}

func findPast(prev types.PeriodKey, ix Index) types.PeriodKey {
	if ix.Empty() {
		return ""
	}
	if prev.None() {
		return ix.Last()
	}
	if k, ok := ix.Floor(prev); ok {
		return k
	}
	return ix.First()
}

// MetricsEvent classifies a metric selection change: only additions count
// as FilterAdded, anything else as FilterRemoved.
func MetricsEvent(prev, next []string) (Event, bool) {
	before := make(map[string]bool, len(prev))
	for _, m := range prev {
		before[m] = true
	}
	after := make(map[string]bool, len(next))
	for _, m := range next {
		after[m] = true
	}

	added, removed := false, false
	for m := range after {
		if !before[m] {
			added = true
		}
	}
	for m := range before {
		if !after[m] {
			removed = true
		}
	}

	switch {
	case removed:
		return EventFilterRemoved, true
	case added:
		return EventFilterAdded, true
	default:
		return "", false
	}
}
