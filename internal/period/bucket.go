package period

import (
	"time"

	"github.com/solatis/datex/internal/types"
)

// Key layouts per granularity. Keys of one granularity sort
// lexicographically in chronological order.
const (
	LayoutMonth = "2006-01"
	LayoutDay   = "2006-01-02"
	LayoutHour  = "2006-01-02T15"
)

// Layout returns the key layout of a granularity.
func Layout(g types.Granularity) string {
	switch g {
	case types.GranularityHour:
		return LayoutHour
	case types.GranularityDay:
		return LayoutDay
	default:
		return LayoutMonth
	}
}

// Bucket truncates t to its period at granularity g, evaluated in loc.
// A nil loc means UTC.
func Bucket(t time.Time, g types.Granularity, loc *time.Location) types.PeriodKey {
	if loc == nil {
		loc = time.UTC
	}
	return types.PeriodKey(t.In(loc).Format(Layout(g)))
}

// Start returns the first instant of the period named by key.
func Start(key types.PeriodKey, g types.Granularity, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	return time.ParseInLocation(Layout(g), string(key), loc)
}

// End returns the last instant of the period named by key.
func End(key types.PeriodKey, g types.Granularity, loc *time.Location) (time.Time, error) {
	start, err := Start(key, g, loc)
	if err != nil {
		return time.Time{}, err
	}
	var next time.Time
	switch g {
	case types.GranularityHour:
		next = start.Add(time.Hour)
	case types.GranularityDay:
		next = start.AddDate(0, 0, 1)
	default:
		next = start.AddDate(0, 1, 0)
	}
	return next.Add(-time.Nanosecond), nil
}

// Convert re-keys a period to another granularity: the result is the
// period of granularity to that contains the last instant of key, so a
// floor search from it stays inside key whenever key holds data. None and
// keys that do not parse at from convert to none.
func Convert(key types.PeriodKey, from, to types.Granularity, loc *time.Location) types.PeriodKey {
	if key.None() {
		return key
	}
	end, err := End(key, from, loc)
	if err != nil {
		return ""
	}
	return Bucket(end, to, loc)
}

// SubGranularity is the resolution of points inside one period:
// month periods show days, day and hour periods show hours.
func SubGranularity(g types.Granularity) types.Granularity {
	if g == types.GranularityMonth {
		return types.GranularityDay
	}
	return types.GranularityHour
}
