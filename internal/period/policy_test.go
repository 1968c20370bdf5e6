package period

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/datex/internal/types"
)

var defaultBehavior = types.Behavior{
	OnFilterAdded:        types.PolicyKeep,
	OnFilterRemoved:      types.PolicyFindPast,
	OnGranularityChanged: types.PolicyLast,
}

func months(keys ...string) Index {
	pk := make([]types.PeriodKey, len(keys))
	for i, k := range keys {
		pk[i] = types.PeriodKey(k)
	}
	return NewIndex(types.GranularityMonth, pk...)
}

func TestResolve_TransitionTable(t *testing.T) {
	tests := []struct {
		name  string
		event Event
		prev  types.PeriodKey
		index Index
		want  types.PeriodKey
	}{
		{"removed keeps present period", EventFilterRemoved, "2023-02", months("2023-01", "2023-02", "2023-03"), "2023-02"},
		{"removed picks greatest <= previous", EventFilterRemoved, "2023-02", months("2023-01", "2023-03"), "2023-01"},
		{"removed picks smallest when none <= previous", EventFilterRemoved, "2023-02", months("2023-03"), "2023-03"},
		{"removed on empty index", EventFilterRemoved, "2023-02", months(), ""},
		{"removed without previous takes last", EventFilterRemoved, "", months("2023-01", "2023-03"), "2023-03"},
		{"added keeps present period", EventFilterAdded, "2023-02", months("2023-01", "2023-02", "2023-03"), "2023-02"},
		{"added falls back to find past", EventFilterAdded, "2023-02", months("2023-01", "2023-03"), "2023-01"},
		{"added fallback smallest", EventFilterAdded, "2023-02", months("2023-04", "2023-05"), "2023-04"},
		{"granularity always last", EventGranularityChanged, "2023-01", months("2023-01", "2023-02", "2023-03"), "2023-03"},
		{"granularity on empty index", EventGranularityChanged, "2023-01", months(), ""},
		{"dataset keeps present period", EventDatasetChanged, "2023-02", months("2023-01", "2023-02", "2023-03"), "2023-02"},
		{"dataset without previous takes last", EventDatasetChanged, "", months("2023-01", "2023-02"), "2023-02"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(defaultBehavior, tt.event, tt.prev, tt.index)
			if got != tt.want {
				t.Errorf("Resolve(%s, %q) = %q, want %q", tt.event, tt.prev, got, tt.want)
			}
		})
	}
}

func TestResolve_ConfiguredBehavior(t *testing.T) {
	b := types.Behavior{
		OnFilterAdded:        types.PolicyLast,
		OnFilterRemoved:      types.PolicyKeep,
		OnGranularityChanged: types.PolicyFindPast,
	}
	ix := months("2023-01", "2023-02", "2023-03")

	if got := Resolve(b, EventFilterAdded, "2023-01", ix); got != "2023-03" {
		t.Errorf("added with last policy = %q, want 2023-03", got)
	}
	if got := Resolve(b, EventGranularityChanged, "2023-02", ix); got != "2023-02" {
		t.Errorf("granularity with find_past policy = %q, want 2023-02", got)
	}
}

func TestMetricsEvent(t *testing.T) {
	tests := []struct {
		name      string
		prev      []string
		next      []string
		want      Event
		wantEvent bool
	}{
		{"only added", []string{"a"}, []string{"a", "b"}, EventFilterAdded, true},
		{"only removed", []string{"a", "b"}, []string{"a"}, EventFilterRemoved, true},
		{"swapped", []string{"a"}, []string{"b"}, EventFilterRemoved, true},
		{"reordered", []string{"a", "b"}, []string{"b", "a"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := MetricsEvent(tt.prev, tt.next)
			if got != tt.want || ok != tt.wantEvent {
				t.Errorf("MetricsEvent() = (%q, %v), want (%q, %v)", got, ok, tt.want, tt.wantEvent)
			}
		})
	}
}

func TestResolve_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	properties := gopter.NewProperties(parameters)

	indexGen := gen.SliceOf(gen.IntRange(1, 24)).Map(func(ns []int) Index {
		keys := make([]types.PeriodKey, len(ns))
		for i, n := range ns {
			keys[i] = monthKey(n)
		}
		return NewIndex(types.GranularityMonth, keys...)
	})
	events := gen.OneConstOf(EventFilterAdded, EventFilterRemoved, EventGranularityChanged, EventDatasetChanged)

	properties.Property("result is indexed, none only for an empty index", prop.ForAll(
		func(ix Index, prev int, ev Event) bool {
			got := Resolve(defaultBehavior, ev, monthKey(prev), ix)
			if ix.Empty() {
				return got.None()
			}
			return ix.Contains(got)
		},
		indexGen, gen.IntRange(1, 24), events,
	))

	properties.Property("find past never jumps forward when an earlier period exists", prop.ForAll(
		func(ix Index, prev int) bool {
			p := monthKey(prev)
			got := Resolve(defaultBehavior, EventFilterRemoved, p, ix)
			if _, ok := ix.Floor(p); ok {
				return got <= p
			}
			return got == ix.First()
		},
		indexGen, gen.IntRange(1, 24),
	))

	properties.Property("granularity change always selects the newest period", prop.ForAll(
		func(ix Index, prev int) bool {
			return Resolve(defaultBehavior, EventGranularityChanged, monthKey(prev), ix) == ix.Last()
		},
		indexGen, gen.IntRange(1, 24),
	))

	properties.Property("keep retains any indexed period", prop.ForAll(
		func(ix Index, pick int) bool {
			if ix.Empty() {
				return true
			}
			p := ix.Keys[pick%ix.Len()]
			return Resolve(defaultBehavior, EventFilterAdded, p, ix) == p
		},
		indexGen, gen.IntRange(0, 100),
	))

	properties.TestingRun(t)
}

// monthKey maps 1..24 onto 2023-01..2024-12.
func monthKey(n int) types.PeriodKey {
	year := 2023 + (n-1)/12
	month := (n-1)%12 + 1
	return Bucket(time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), types.GranularityMonth, nil)
}
