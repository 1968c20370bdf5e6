package explorer

import (
	"sort"

	"github.com/solatis/datex/internal/period"
	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

// Point aggregates the values of one sub-bucket of the active period.
type Point struct {
	Period types.PeriodKey `json:"period"`
	Min    float64         `json:"min"`
	Avg    float64         `json:"avg"`
	Max    float64         `json:"max"`
	Count  int             `json:"count"`
}

// Series is one chartable line. Aggregate series merge every location of a
// global metric and leave Source and Location empty.
type Series struct {
	Source    string             `json:"source,omitempty"`
	Location  string             `json:"location,omitempty"`
	Levels    []rules.LevelValue `json:"levels,omitempty"`
	Metric    string             `json:"metric"`
	Aggregate bool               `json:"aggregate"`
	Points    []Point            `json:"points"`
}

type seriesKey struct {
	source, location, metric string
}

type accumulator struct {
	min, max, sum float64
	count         int
}

func (a *accumulator) add(v float64) {
	if a.count == 0 || v < a.min {
		a.min = v
	}
	if a.count == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.count++
}

// Series resolves the chart series of the active period: one per
// (source, location, metric), or one per metric for aggregated metrics.
// Points are min/avg/max per sub-bucket (days of a month, hours otherwise).
// Returns nil when no period is active.
func (e *Explorer) Series(state State) []Series {
	sel := state.Selection
	if sel.ActivePeriod.None() {
		return nil
	}

	m := period.NewMatcher(e.rules, sel)
	sub := period.SubGranularity(sel.Granularity)

	type building struct {
		series  Series
		buckets map[types.PeriodKey]*accumulator
	}
	groups := make(map[seriesKey]*building)

	for _, row := range e.rows {
		if period.Bucket(row.Time, sel.Granularity, e.loc) != sel.ActivePeriod {
			continue
		}
		c := e.rules.Classify(row)
		if !m.Match(row, c) {
			continue
		}
		scope, _ := m.Scope(row.Metric)

		key := seriesKey{metric: row.Metric}
		if !scope.Aggregate {
			key.source = c.SourceKey()
			key.location = row.Location
		}

		b, ok := groups[key]
		if !ok {
			b = &building{
				series: Series{
					Source:    key.source,
					Location:  key.location,
					Metric:    row.Metric,
					Aggregate: scope.Aggregate,
				},
				buckets: make(map[types.PeriodKey]*accumulator),
			}
			if !scope.Aggregate {
				b.series.Levels = c.Levels
			}
			groups[key] = b
		}

		bucket := period.Bucket(row.Time, sub, e.loc)
		acc, ok := b.buckets[bucket]
		if !ok {
			acc = &accumulator{}
			b.buckets[bucket] = acc
		}
		acc.add(row.Value)
	}

	out := make([]Series, 0, len(groups))
	for _, b := range groups {
		s := b.series
		s.Points = make([]Point, 0, len(b.buckets))
		for k, acc := range b.buckets {
			s.Points = append(s.Points, Point{
				Period: k,
				Min:    acc.min,
				Avg:    acc.sum / float64(acc.count),
				Max:    acc.max,
				Count:  acc.count,
			})
		}
		sort.Slice(s.Points, func(i, j int) bool { return s.Points[i].Period < s.Points[j].Period })
		out = append(out, s)
	}

	e.sortSeries(out)
	return out
}

// sortSeries orders by metric display order, then source priority, then
// location in natural order.
func (e *Explorer) sortSeries(out []Series) {
	metricRank := make(map[string]int, len(e.rules.Metrics))
	for i, m := range e.rules.Metrics {
		metricRank[m.Key] = i
	}
	sourceRank := make(map[string]int, len(e.rules.Sources))
	for i, src := range e.rules.SourcesByPriority() {
		sourceRank[src.Key] = i
	}
	rank := func(ranks map[string]int, key string) int {
		if r, ok := ranks[key]; ok {
			return r
		}
		return len(ranks)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if ra, rb := rank(metricRank, a.Metric), rank(metricRank, b.Metric); ra != rb {
			return ra < rb
		}
		if a.Metric != b.Metric {
			return a.Metric < b.Metric
		}
		if ra, rb := rank(sourceRank, a.Source), rank(sourceRank, b.Source); ra != rb {
			return ra < rb
		}
		if c := rules.NaturalCompare(a.Location, b.Location); c != 0 {
			return c < 0
		}
		return a.Location < b.Location
	})
}
