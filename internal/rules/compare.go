// internal/rules/compare.go
package rules

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/solatis/datex/internal/types"
)

/*
 * Level value orderings.
 *
 * Every level has exactly one Comparator after compilation:
 *   - explicit spec: natural, lexical, numeric, fixed, suffix_groups, custom
 *   - no spec, fixed allowed values: fixed order of the declared list
 *   - no spec, discovered values: natural (numeric-aware) order
 *
 * Natural order: values that parse fully as integers sort first and compare
 * numerically; other values follow in byte order.
 *
 * suffix_groups: a value belongs to the first group whose suffix it ends
 * with; groups sort in declaration order, unmatched values last. Inside a
 * group values compare by their leading integer, descending when requested
 * (floor codes: 3NP, 2NP, 1NP, then 1PP, 2PP).
 *
 * Determinism: SortValues breaks comparator ties with byte order and sorts a
 * canonical (byte-ordered, de-duplicated) input, so the output depends only
 * on the value set even when a custom comparator reports 0 for distinct
 * values or is not transitive.
 */

// Comparator is a three-way ordering over raw level values.
type Comparator interface {
	Compare(a, b string) int
}

// ComparatorFunc adapts a function to Comparator.
type ComparatorFunc func(a, b string) int

// Compare calls f(a, b).
func (f ComparatorFunc) Compare(a, b string) int { return f(a, b) }

// NaturalCompare orders integers numerically before non-integers in byte order.
func NaturalCompare(a, b string) int {
	na, oka := parseInteger(a)
	nb, okb := parseInteger(b)
	switch {
	case oka && okb:
		return compareInt64(na, nb)
	case oka:
		return -1
	case okb:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// NumericCompare orders values parsing as floats numerically before others.
func NumericCompare(a, b string) int {
	fa, erra := strconv.ParseFloat(a, 64)
	fb, errb := strconv.ParseFloat(b, 64)
	switch {
	case erra == nil && errb == nil:
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	case erra == nil:
		return -1
	case errb == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// fixedOrder sorts by position in a declared list; unknown values follow in natural order.
type fixedOrder struct {
	rank map[string]int
}

func newFixedOrder(values []string) fixedOrder {
	rank := make(map[string]int, len(values))
	for i, v := range values {
		if _, dup := rank[v]; !dup {
			rank[v] = i
		}
	}
	return fixedOrder{rank: rank}
}

func (f fixedOrder) Compare(a, b string) int {
	ra, oka := f.rank[a]
	rb, okb := f.rank[b]
	switch {
	case oka && okb:
		return compareInt64(int64(ra), int64(rb))
	case oka:
		return -1
	case okb:
		return 1
	default:
		return NaturalCompare(a, b)
	}
}

// suffixGroups implements the suffix_groups ordering.
type suffixGroups struct {
	groups []types.SuffixGroup
}

func (s suffixGroups) group(v string) int {
	for i, g := range s.groups {
		if strings.HasSuffix(v, g.Suffix) {
			return i
		}
	}
	return len(s.groups)
}

func (s suffixGroups) Compare(a, b string) int {
	ga, gb := s.group(a), s.group(b)
	if ga != gb {
		return compareInt64(int64(ga), int64(gb))
	}
	if ga == len(s.groups) {
		return NaturalCompare(a, b)
	}
	g := s.groups[ga]
	na := leadingInt(strings.TrimSuffix(a, g.Suffix))
	nb := leadingInt(strings.TrimSuffix(b, g.Suffix))
	if g.Descending {
		return compareInt64(nb, na)
	}
	return compareInt64(na, nb)
}

// reversed inverts an ordering.
type reversed struct {
	inner Comparator
}

func (r reversed) Compare(a, b string) int { return r.inner.Compare(b, a) }

// compileComparator resolves a comparator spec. staticValues is the level's
// explicit allowed-value list, used as the default order when spec is nil.
func (e *Engine) compileComparator(spec *types.ComparatorSpec, staticValues []string) (Comparator, error) {
	if spec == nil {
		if len(staticValues) > 0 {
			return newFixedOrder(staticValues), nil
		}
		return ComparatorFunc(NaturalCompare), nil
	}

	var c Comparator
	switch spec.Method {
	case types.CompareNatural, "":
		c = ComparatorFunc(NaturalCompare)
	case types.CompareLexical:
		c = ComparatorFunc(strings.Compare)
	case types.CompareNumeric:
		c = ComparatorFunc(NumericCompare)
	case types.CompareFixed:
		if len(spec.Values) == 0 {
			return nil, fmt.Errorf("%w: fixed order requires values", types.ErrInvalidComparator)
		}
		if len(spec.Values) > types.MaxFixedValues {
			return nil, types.ErrTooManyValues
		}
		c = newFixedOrder(spec.Values)
	case types.CompareSuffixGroups:
		if len(spec.Groups) == 0 {
			return nil, fmt.Errorf("%w: suffix_groups requires groups", types.ErrInvalidComparator)
		}
		for _, g := range spec.Groups {
			if g.Suffix == "" {
				return nil, fmt.Errorf("%w: suffix_groups group without suffix", types.ErrInvalidComparator)
			}
		}
		c = suffixGroups{groups: append([]types.SuffixGroup(nil), spec.Groups...)}
	case types.CompareCustom:
		registered, ok := e.comparators[spec.Name]
		if !ok || registered == nil {
			return nil, fmt.Errorf("%w: no strategy registered as %q", types.ErrInvalidComparator, spec.Name)
		}
		c = registered
	default:
		return nil, fmt.Errorf("%w: unknown method %q", types.ErrInvalidComparator, spec.Method)
	}

	if spec.Reverse {
		c = reversed{inner: c}
	}
	return c, nil
}

// SortValues returns the distinct values ordered by cmp with byte-order tie-breaks.
// The input slice is not modified.
func SortValues(values []string, cmp Comparator) []string {
	out := append([]string(nil), values...)
	sort.Strings(out)
	out = dedupeSorted(out)
	if cmp == nil {
		cmp = ComparatorFunc(NaturalCompare)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := cmp.Compare(out[i], out[j]); c != 0 {
			return c < 0
		}
		return out[i] < out[j]
	})
	return out
}

// dedupeSorted removes adjacent duplicates in place.
func dedupeSorted(values []string) []string {
	if len(values) < 2 {
		return values
	}
	n := 1
	for i := 1; i < len(values); i++ {
		if values[i] != values[n-1] {
			values[n] = values[i]
			n++
		}
	}
	return values[:n]
}

// leadingInt parses the leading decimal digits of s, 0 when there are none.
func leadingInt(s string) int64 {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
