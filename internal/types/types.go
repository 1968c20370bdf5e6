// Package types provides domain models shared across datex components.
//
// Zero-dependency design: types.go, ruleset.go, selection.go and errors.go use
// only the standard library so the rule-set schema can be embedded by any
// collaborator. ID utilities in ids.go import uuid but are isolated from the
// rest of the package.
//
// Everything here is plain data. Compilation, classification and period
// resolution live in internal/rules, internal/catalog and internal/period.
package types

import (
	"fmt"
	"time"
)

// Row is one observation of the flat time-series table.
// Rows are owned by the loader; the engine never mutates them.
type Row struct {
	Time      time.Time `json:"time"`
	Location  string    `json:"location"`
	SourceTag string    `json:"sourceTag"`
	Metric    string    `json:"metric"`
	Value     float64   `json:"value"`
}

// Granularity is the time-bucketing resolution of the period index.
type Granularity string

const (
	GranularityHour  Granularity = "hour"
	GranularityDay   Granularity = "day"
	GranularityMonth Granularity = "month"
)

// Granularities lists the supported granularities, coarsest first.
var Granularities = []Granularity{GranularityMonth, GranularityDay, GranularityHour}

// ParseGranularity validates a granularity name.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(s); g {
	case GranularityHour, GranularityDay, GranularityMonth:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownGranularity, s)
	}
}

// PeriodKey identifies one period bucket at some granularity.
// Keys of the same granularity sort lexicographically in time order.
// The empty key means "no period".
type PeriodKey string

// None reports whether the key denotes the absence of a period.
func (k PeriodKey) None() bool {
	return k == ""
}

// Resource limits enforced at rule-set compile time.
const (
	// MaxSources bounds the number of source definitions in one rule set.
	MaxSources = 64

	// MaxLevelsPerSource bounds the depth of one source's hierarchy.
	MaxLevelsPerSource = 8

	// MaxPredicatesPerLevel bounds validator predicates per level.
	MaxPredicatesPerLevel = 16

	// MaxFixedValues bounds explicit allowed-value and fixed-order lists.
	MaxFixedValues = 1024
)
