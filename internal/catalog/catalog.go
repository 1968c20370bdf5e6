// internal/catalog/catalog.go
package catalog

import (
	"sort"

	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

/*
 * Discovery pass.
 *
 * Scans the full dataset once per (rule set, dataset) pair and records what
 * the filter tree can offer:
 *   1. Classify every row (rules.CompiledRuleSet.Classify)
 *   2. Count unmatched rows; they take no further part
 *   3. Per source: count rows, collect distinct present values per level
 *   4. Order each level's values with the level comparator
 *   5. Record the distinct metric keys observed
 *
 * A Catalog is plain data with JSON tags so it can be cached keyed by the
 * rule-set fingerprint and the dataset fingerprint (see db.CatalogStore).
 * Build is the second, pure phase: it turns a Catalog into a Tree and a
 * seeded selection without looking at rows again.
 */

// LevelCatalog holds the distinct values observed for one level.
type LevelCatalog struct {
	Key    string         `json:"key"`
	Values []string       `json:"values"`
	Counts map[string]int `json:"counts,omitempty"`
}

// SourceCatalog holds discovery results for one source.
type SourceCatalog struct {
	Key    string         `json:"key"`
	Rows   int            `json:"rows"`
	Levels []LevelCatalog `json:"levels"`
}

// Level returns the catalog of the level with the given key.
func (s *SourceCatalog) Level(key string) (*LevelCatalog, bool) {
	for i := range s.Levels {
		if s.Levels[i].Key == key {
			return &s.Levels[i], true
		}
	}
	return nil, false
}

// Catalog is the result of one discovery pass.
type Catalog struct {
	RuleSet   string          `json:"ruleSet"`
	Dataset   string          `json:"dataset"`
	Rows      int             `json:"rows"`
	Unmatched int             `json:"unmatched"`
	Sources   []SourceCatalog `json:"sources"`
	Metrics   []string        `json:"metrics"`
}

// Source returns the catalog of the source with the given key.
func (c *Catalog) Source(key string) (*SourceCatalog, bool) {
	for i := range c.Sources {
		if c.Sources[i].Key == key {
			return &c.Sources[i], true
		}
	}
	return nil, false
}

// Matches reports whether the catalog was discovered for this rule set and dataset.
func (c *Catalog) Matches(ruleSet, dataset string) bool {
	return c != nil && c.RuleSet == ruleSet && c.Dataset == dataset
}

// Discover runs the discovery pass over rows.
func Discover(rows []types.Row, rs *rules.CompiledRuleSet) *Catalog {
	cat := &Catalog{
		RuleSet: rs.Fingerprint,
		Dataset: Fingerprint(rows),
		Rows:    len(rows),
		Sources: make([]SourceCatalog, len(rs.Sources)),
	}

	counts := make([][]map[string]int, len(rs.Sources))
	index := make(map[string]int, len(rs.Sources))
	for i := range rs.Sources {
		src := &rs.Sources[i]
		index[src.Key] = i
		counts[i] = make([]map[string]int, len(src.Levels))
		for j := range src.Levels {
			counts[i][j] = make(map[string]int)
		}
	}

	metrics := make(map[string]bool)
	for _, row := range rows {
		c := rs.Classify(row)
		if !c.Matched {
			cat.Unmatched++
			continue
		}
		metrics[row.Metric] = true

		i := index[c.Source.Key]
		cat.Sources[i].Rows++
		for _, lv := range c.Levels {
			for j := range c.Source.Levels {
				if c.Source.Levels[j].Key == lv.Key {
					counts[i][j][lv.Value]++
					break
				}
			}
		}
	}

	for i := range rs.Sources {
		src := &rs.Sources[i]
		sc := &cat.Sources[i]
		sc.Key = src.Key
		sc.Levels = make([]LevelCatalog, len(src.Levels))
		for j := range src.Levels {
			level := &src.Levels[j]
			values := make([]string, 0, len(counts[i][j]))
			for v := range counts[i][j] {
				values = append(values, v)
			}
			sc.Levels[j] = LevelCatalog{
				Key:    level.Key,
				Values: rules.SortValues(values, level.Comparator),
				Counts: counts[i][j],
			}
		}
	}

	cat.Metrics = make([]string, 0, len(metrics))
	for m := range metrics {
		cat.Metrics = append(cat.Metrics, m)
	}
	sort.Strings(cat.Metrics)

	return cat
}
