// internal/catalog/tree.go
package catalog

import (
	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

/*
 * Filter tree construction.
 *
 * Build is pure over (Catalog, CompiledRuleSet, hint):
 *   - top-level nodes are sources ordered by sortPriority, ties by key
 *   - hierarchical sources get one child per level in declaration order,
 *     whose children are the level's values
 *   - level values come from discovery (allowedValues.discover) or from the
 *     declared list, ordered by the level comparator
 *
 * Selection seeding: the hint (previous selection) is intersected with the
 * values the tree offers; values no longer offered are dropped silently.
 * Dropping never widens a selection: a hierarchical source whose hinted
 * level loses every value is deselected, and a shared level keeps its
 * (possibly empty) constraint. Sources missing from the hint take the
 * rule-set default. Seeded leaf values follow tree order, so equal
 * selections compare equal.
 */

// SourceLevel is the LevelKey of top-level source nodes.
const SourceLevel = "source"

// FilterNode is one selectable node of the filter tree.
type FilterNode struct {
	LevelKey string              `json:"levelKey"`
	Value    string              `json:"value,omitempty"`
	Mode     types.SelectionMode `json:"mode,omitempty"`
	Selected bool                `json:"selected"`
	Count    int                 `json:"count,omitempty"`
	Children []FilterNode        `json:"children,omitempty"`
}

// Tree is the selectable filter space. Shared holds one node per shared
// level; its leaves are selected when rows with that value pass.
type Tree struct {
	Sources []FilterNode `json:"sources"`
	Shared  []FilterNode `json:"shared,omitempty"`
}

// Source returns the top-level node of a source.
func (t Tree) Source(key string) (*FilterNode, bool) {
	for i := range t.Sources {
		if t.Sources[i].Value == key {
			return &t.Sources[i], true
		}
	}
	return nil, false
}

// Leaves returns the values offered for a level of a source, in tree order.
func (t Tree) Leaves(source, level string) []string {
	node, ok := t.Source(source)
	if !ok {
		return nil
	}
	for _, child := range node.Children {
		if child.LevelKey == level {
			out := make([]string, len(child.Children))
			for i, leaf := range child.Children {
				out[i] = leaf.Value
			}
			return out
		}
	}
	return nil
}

// Offered returns the values the tree offers for a level: discovered values
// for discover levels, the declared list otherwise.
func Offered(cat *Catalog, level *rules.CompiledLevel, source string) []string {
	if !level.Discover {
		return rules.SortValues(level.Values, level.Comparator)
	}
	if cat == nil {
		return nil
	}
	sc, ok := cat.Source(source)
	if !ok {
		return nil
	}
	lc, ok := sc.Level(level.Key)
	if !ok {
		return nil
	}
	return append([]string(nil), lc.Values...)
}

// Build produces the filter tree and the seeded per-source selection.
// A nil hint seeds every source from the rule-set defaults.
func Build(cat *Catalog, rs *rules.CompiledRuleSet, hint map[string]types.SourceSelection) (Tree, map[string]types.SourceSelection) {
	ordered := rs.SourcesByPriority()
	tree := Tree{Sources: make([]FilterNode, 0, len(ordered))}
	seeded := make(map[string]types.SourceSelection, len(ordered))

	for _, src := range ordered {
		prev, ok := hint[src.Key]
		if !ok {
			d := rs.Defaults.Sources[src.Key]
			prev = types.SourceSelection{Enabled: d.Enabled, Values: d.Values}
		}

		var rows int
		var sc *SourceCatalog
		if cat != nil {
			if found, ok := cat.Source(src.Key); ok {
				sc = found
				rows = found.Rows
			}
		}

		node := FilterNode{
			LevelKey: SourceLevel,
			Value:    src.Key,
			Mode:     src.Mode,
			Count:    rows,
		}

		if !src.Hierarchical() {
			node.Selected = prev.Enabled
			seeded[src.Key] = types.SourceSelection{Enabled: prev.Enabled}
			tree.Sources = append(tree.Sources, node)
			continue
		}

		sel := types.SourceSelection{Values: make(map[string][]string)}
		lost := false
		levelNodes := make([]FilterNode, 0, len(src.Levels))
		for i := range src.Levels {
			level := &src.Levels[i]
			offered := Offered(cat, level, src.Key)
			wanted := toSet(prev.Values[level.Key])

			levelNode := FilterNode{LevelKey: level.Key, Children: make([]FilterNode, 0, len(offered))}
			var kept []string
			for _, v := range offered {
				leaf := FilterNode{LevelKey: level.Key, Value: v, Selected: wanted[v]}
				if sc != nil {
					if lc, ok := sc.Level(level.Key); ok {
						leaf.Count = lc.Counts[v]
					}
				}
				if leaf.Selected {
					kept = append(kept, v)
				}
				levelNode.Children = append(levelNode.Children, leaf)
			}
			if len(kept) > 0 {
				sel.Values[level.Key] = kept
			} else if len(wanted) > 0 {
				lost = true
			}
			levelNodes = append(levelNodes, levelNode)
		}

		// A hinted level with no surviving value deselects the source.
		if lost || len(sel.Values) == 0 {
			sel.Values = nil
		}
		for i := range levelNodes {
			for j := range levelNodes[i].Children {
				leaf := &levelNodes[i].Children[j]
				leaf.Selected = leaf.Selected && sel.Values != nil
				levelNodes[i].Selected = levelNodes[i].Selected || leaf.Selected
			}
		}
		node.Children = append(node.Children, levelNodes...)
		sel.Enabled = sel.HasValues()
		node.Selected = sel.Enabled
		seeded[src.Key] = sel
		tree.Sources = append(tree.Sources, node)
	}

	return tree, seeded
}

// OfferedShared returns the canonical values offered for a shared level and
// their row counts summed over sources.
func OfferedShared(cat *Catalog, level *rules.SharedLevel) ([]string, map[string]int) {
	counts := make(map[string]int)
	if cat != nil {
		for i := range cat.Sources {
			lc, ok := cat.Sources[i].Level(level.Key)
			if !ok {
				continue
			}
			for _, v := range lc.Values {
				counts[rules.CanonicalValue(v)] += lc.Counts[v]
			}
		}
	}
	if !level.Discover {
		return rules.SortValues(level.Values, level.Comparator), counts
	}
	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	return rules.SortValues(values, level.Comparator), counts
}

// BuildShared produces the shared filter nodes and the seeded shared
// constraints. hint holds the constraints to carry over; keys that are not
// shared levels are dropped.
func BuildShared(cat *Catalog, rs *rules.CompiledRuleSet, hint map[string][]string) ([]FilterNode, map[string][]string) {
	if len(rs.Shared) == 0 {
		return nil, nil
	}
	nodes := make([]FilterNode, 0, len(rs.Shared))
	var seeded map[string][]string

	for i := range rs.Shared {
		level := &rs.Shared[i]
		offered, counts := OfferedShared(cat, level)

		prev, constrained := hint[level.Key]
		wanted := make(map[string]bool, len(prev))
		for _, v := range prev {
			wanted[rules.CanonicalValue(v)] = true
		}

		node := FilterNode{LevelKey: level.Key, Children: make([]FilterNode, 0, len(offered))}
		kept := []string{}
		for _, v := range offered {
			leaf := FilterNode{LevelKey: level.Key, Value: v, Count: counts[v], Selected: !constrained || wanted[v]}
			if constrained && leaf.Selected {
				kept = append(kept, v)
			}
			node.Selected = node.Selected || leaf.Selected
			node.Children = append(node.Children, leaf)
		}
		if constrained {
			if seeded == nil {
				seeded = make(map[string][]string, len(rs.Shared))
			}
			seeded[level.Key] = kept
		}
		nodes = append(nodes, node)
	}
	return nodes, seeded
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
