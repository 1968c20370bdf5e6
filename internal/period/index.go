// internal/period/index.go
package period

import (
	"sort"
	"time"

	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

/*
 * Period index.
 *
 * BuildIndex filters rows through a Matcher (active source/level selection
 * plus selected metrics with their scoping), buckets the survivors at the
 * active granularity and returns the sorted distinct keys. The index is
 * always rebuilt whole; there is no incremental update.
 *
 * Lookups use binary search over the sorted keys:
 *   - Floor(k): greatest key <= k
 *   - Before(k) / After(k): nearest key strictly before / after k
 * k itself need not be in the index.
 */

// Index is the sorted set of periods with matching data.
type Index struct {
	Granularity types.Granularity `json:"granularity"`
	Keys        []types.PeriodKey `json:"keys"`
}

// NewIndex builds an index from unsorted keys, dropping duplicates and none.
func NewIndex(g types.Granularity, keys ...types.PeriodKey) Index {
	set := make(map[types.PeriodKey]bool, len(keys))
	out := make([]types.PeriodKey, 0, len(keys))
	for _, k := range keys {
		if k.None() || set[k] {
			continue
		}
		set[k] = true
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return Index{Granularity: g, Keys: out}
}

// BuildIndex returns the periods at sel.Granularity holding at least one row
// that passes the selection.
func BuildIndex(rows []types.Row, rs *rules.CompiledRuleSet, sel types.ActiveSelection, loc *time.Location) Index {
	m := NewMatcher(rs, sel)
	keys := make([]types.PeriodKey, 0)
	seen := make(map[types.PeriodKey]bool)
	for _, row := range rows {
		if !m.Match(row, rs.Classify(row)) {
			continue
		}
		k := Bucket(row.Time, sel.Granularity, loc)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return NewIndex(sel.Granularity, keys...)
}

// Len returns the number of periods.
func (ix Index) Len() int { return len(ix.Keys) }

// Empty reports whether no period has data.
func (ix Index) Empty() bool { return len(ix.Keys) == 0 }

// Contains reports whether k is in the index.
func (ix Index) Contains(k types.PeriodKey) bool {
	i := ix.search(k)
	return i < len(ix.Keys) && ix.Keys[i] == k
}

// First returns the oldest period, none when empty.
func (ix Index) First() types.PeriodKey {
	if ix.Empty() {
		return ""
	}
	return ix.Keys[0]
}

// Last returns the newest period, none when empty.
func (ix Index) Last() types.PeriodKey {
	if ix.Empty() {
		return ""
	}
	return ix.Keys[len(ix.Keys)-1]
}

// Floor returns the greatest period <= k.
func (ix Index) Floor(k types.PeriodKey) (types.PeriodKey, bool) {
	i := sort.Search(len(ix.Keys), func(i int) bool { return ix.Keys[i] > k })
	if i == 0 {
		return "", false
	}
	return ix.Keys[i-1], true
}

// Before returns the greatest period strictly before k.
func (ix Index) Before(k types.PeriodKey) (types.PeriodKey, bool) {
	i := ix.search(k)
	if i == 0 {
		return "", false
	}
	return ix.Keys[i-1], true
}

// After returns the smallest period strictly after k.
func (ix Index) After(k types.PeriodKey) (types.PeriodKey, bool) {
	i := sort.Search(len(ix.Keys), func(i int) bool { return ix.Keys[i] > k })
	if i == len(ix.Keys) {
		return "", false
	}
	return ix.Keys[i], true
}

// search returns the position of the first key >= k.
func (ix Index) search(k types.PeriodKey) int {
	return sort.Search(len(ix.Keys), func(i int) bool { return ix.Keys[i] >= k })
}
