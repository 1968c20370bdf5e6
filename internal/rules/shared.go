package rules

import (
	"fmt"
	"strconv"

	"github.com/solatis/datex/internal/types"
)

// SharedLevel is a level filterable across every source of the rule set.
// Each source still extracts the value with its own pipeline; the shared
// filter compares values in canonical form.
type SharedLevel struct {
	Key        string
	Discover   bool
	Values     []string // explicit allowed values (nil when Discover)
	Comparator Comparator
}

// SharedLevel returns the shared level with the given key.
func (c *CompiledRuleSet) SharedLevel(key string) (*SharedLevel, bool) {
	for i := range c.Shared {
		if c.Shared[i].Key == key {
			return &c.Shared[i], true
		}
	}
	return nil, false
}

// CanonicalValue folds equivalent spellings of a level value: integers
// lose leading zeros ("01" -> "1"), anything else is returned unchanged.
func CanonicalValue(v string) string {
	n, ok := parseInteger(v)
	if !ok {
		return v
	}
	return strconv.FormatInt(n, 10)
}

func (e *Engine) compileShared(shared []types.LocationRule) ([]SharedLevel, error) {
	out := make([]SharedLevel, 0, len(shared))
	seen := make(map[string]bool, len(shared))
	for _, rule := range shared {
		if rule.LevelKey == "" {
			return nil, types.ErrMissingLevelKey
		}
		if seen[rule.LevelKey] {
			return nil, fmt.Errorf("shared level %q: %w", rule.LevelKey, types.ErrDuplicateLevelKey)
		}
		seen[rule.LevelKey] = true
		if len(rule.AllowedValues.Values) > types.MaxFixedValues {
			return nil, fmt.Errorf("shared level %q: %w", rule.LevelKey, types.ErrTooManyValues)
		}

		var values []string
		if !rule.AllowedValues.Discover {
			values = make([]string, 0, len(rule.AllowedValues.Values))
			for _, v := range rule.AllowedValues.Values {
				values = append(values, CanonicalValue(v))
			}
		}
		cmp, err := e.compileComparator(rule.Comparator, values)
		if err != nil {
			return nil, fmt.Errorf("shared level %q: %w", rule.LevelKey, err)
		}
		out = append(out, SharedLevel{
			Key:        rule.LevelKey,
			Discover:   rule.AllowedValues.Discover,
			Values:     values,
			Comparator: cmp,
		})
	}
	return out, nil
}
