// internal/rules/classify.go
package rules

import (
	"github.com/solatis/datex/internal/types"
)

/*
 * Row classification.
 *
 * Classifies a Row against a CompiledRuleSet:
 *   1. Match row.SourceTag against source tags (tags are disjoint, enforced
 *      by Compile, so at most one source matches)
 *   2. For each level of the matched source, extract from the original
 *      location string and apply the validator
 *   3. Record present levels in declaration order; absent levels are omitted
 *
 * Data-quality outcomes are results, not errors: an unknown tag yields
 * Unmatched, a missing separator or rejected value yields an absent level.
 * Classification is a pure function of (row, rule set), hence deterministic
 * and idempotent.
 */

// LevelValue is one (level key, value) pair of a classified row.
type LevelValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Classification is the outcome of classifying one row.
type Classification struct {
	Matched bool            `json:"matched"`
	Source  *CompiledSource `json:"-"`
	Levels  []LevelValue    `json:"levels,omitempty"`
}

// Unmatched is the classification of rows whose tag matches no source.
var Unmatched = Classification{}

// SourceKey returns the matched source key, or "" when unmatched.
func (c Classification) SourceKey() string {
	if c.Source == nil {
		return ""
	}
	return c.Source.Key
}

// Level returns the value of the level with the given key.
func (c Classification) Level(key string) (string, bool) {
	for _, lv := range c.Levels {
		if lv.Key == key {
			return lv.Value, true
		}
	}
	return "", false
}

// LevelMap returns the present levels as a map.
func (c Classification) LevelMap() map[string]string {
	m := make(map[string]string, len(c.Levels))
	for _, lv := range c.Levels {
		m[lv.Key] = lv.Value
	}
	return m
}

// Classify determines the row's source and decomposes its location code.
func (c *CompiledRuleSet) Classify(row types.Row) Classification {
	src, ok := c.SourceForTag(row.SourceTag)
	if !ok {
		return Unmatched
	}

	result := Classification{Matched: true, Source: src}
	for i := range src.Levels {
		level := &src.Levels[i]
		if value, ok := level.Value(row.Location); ok {
			result.Levels = append(result.Levels, LevelValue{Key: level.Key, Value: value})
		}
	}
	return result
}
