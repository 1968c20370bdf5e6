// internal/types/ruleset.go
package types

/*
 * Declarative rule-set schema.
 *
 * Provides RuleSet, SourceDefinition, LocationRule, Predicate, ComparatorSpec
 * and MetricDefinition used by internal/rules for compilation. These types are
 * pure data so a rule set can be read from YAML/JSON, fingerprinted, and
 * tested in isolation. Validators and comparators are described by an
 * operator name plus parameters, never by executable code; custom orderings
 * are referenced by name and injected at compile time.
 *
 * Key types:
 *   - RuleSet: sources, shared levels, metrics, defaults, period behavior
 *   - SourceDefinition: tag discriminant plus ordered LocationRule pipeline
 *   - LocationRule: one hierarchical level (extraction, validation, ordering)
 *   - MetricDefinition: display order and global/aggregate scoping
 */

// ExtractionMethod selects how a level value is read from the location string.
type ExtractionMethod string

const (
	ExtractPrefix         ExtractionMethod = "prefix"
	ExtractSuffix         ExtractionMethod = "suffix"
	ExtractAfterSeparator ExtractionMethod = "after_separator"
	ExtractAfterPrefix    ExtractionMethod = "after_prefix"
)

// SelectionMode controls how a source is selected in the filter tree.
type SelectionMode string

const (
	// ModeSimple sources are selected with a single boolean.
	ModeSimple SelectionMode = "simple"
	// ModeHierarchical sources expose their levels and carry leaf-value sets.
	ModeHierarchical SelectionMode = "hierarchical"
)

// PredicateOp names a validator operator.
type PredicateOp string

const (
	PredContains    PredicateOp = "contains"
	PredContainsAny PredicateOp = "contains_any"
	PredPrefix      PredicateOp = "prefix"
	PredSuffix      PredicateOp = "suffix"
	PredIn          PredicateOp = "in"
	PredNumeric     PredicateOp = "numeric"
	PredNotEmpty    PredicateOp = "not_empty"
)

// ComparatorMethod names a level ordering.
type ComparatorMethod string

const (
	CompareNatural      ComparatorMethod = "natural"
	CompareLexical      ComparatorMethod = "lexical"
	CompareNumeric      ComparatorMethod = "numeric"
	CompareFixed        ComparatorMethod = "fixed"
	CompareSuffixGroups ComparatorMethod = "suffix_groups"
	CompareCustom       ComparatorMethod = "custom"
)

// PeriodPolicy names a period-adjustment policy.
type PeriodPolicy string

const (
	PolicyKeep     PeriodPolicy = "keep"
	PolicyFindPast PeriodPolicy = "find_past"
	PolicyLast     PeriodPolicy = "last"
)

// Extraction describes one extraction method and its parameter.
type Extraction struct {
	Method    ExtractionMethod `json:"method" yaml:"method"`
	Length    int              `json:"length,omitempty" yaml:"length,omitempty"`
	Separator string           `json:"separator,omitempty" yaml:"separator,omitempty"`
}

// AllowedValues is either an explicit value list or "discover from dataset".
type AllowedValues struct {
	Discover bool     `json:"discover,omitempty" yaml:"discover,omitempty"`
	Values   []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Predicate is one data-described validator check over a raw level value.
type Predicate struct {
	Op     PredicateOp `json:"op" yaml:"op"`
	Value  string      `json:"value,omitempty" yaml:"value,omitempty"`
	Values []string    `json:"values,omitempty" yaml:"values,omitempty"`
}

// SuffixGroup is one bucket of a suffix_groups ordering.
// Values ending in Suffix sort by their numeric prefix, descending if requested.
type SuffixGroup struct {
	Suffix     string `json:"suffix" yaml:"suffix"`
	Descending bool   `json:"descending,omitempty" yaml:"descending,omitempty"`
}

// ComparatorSpec is a data-described total order over level values.
type ComparatorSpec struct {
	Method  ComparatorMethod `json:"method" yaml:"method"`
	Reverse bool             `json:"reverse,omitempty" yaml:"reverse,omitempty"`
	Values  []string         `json:"values,omitempty" yaml:"values,omitempty"`
	Groups  []SuffixGroup    `json:"groups,omitempty" yaml:"groups,omitempty"`
	Name    string           `json:"name,omitempty" yaml:"name,omitempty"`
}

// LocationRule describes one hierarchical level of a source.
// Every level reads the original location string; levels never consume
// each other's output.
type LocationRule struct {
	LevelKey      string          `json:"levelKey" yaml:"levelKey"`
	Extraction    Extraction      `json:"extraction" yaml:"extraction"`
	AllowedValues AllowedValues   `json:"allowedValues" yaml:"allowedValues"`
	Validator     []Predicate     `json:"validator,omitempty" yaml:"validator,omitempty"`
	Comparator    *ComparatorSpec `json:"comparator,omitempty" yaml:"comparator,omitempty"`
}

// SourceDefinition matches rows by tag and decomposes their location codes.
type SourceDefinition struct {
	Key            string         `json:"key" yaml:"key"`
	SourceTag      string         `json:"sourceTag" yaml:"sourceTag"`
	LocationPrefix string         `json:"locationPrefix,omitempty" yaml:"locationPrefix,omitempty"`
	SortPriority   int            `json:"sortPriority" yaml:"sortPriority"`
	Mode           SelectionMode  `json:"mode,omitempty" yaml:"mode,omitempty"`
	Levels         []LocationRule `json:"levels,omitempty" yaml:"levels,omitempty"`
}

// MetricDefinition describes display priority and location scoping of a metric.
// AggregateLocation is only valid together with Global.
type MetricDefinition struct {
	Key               string `json:"key" yaml:"key"`
	Order             int    `json:"order" yaml:"order"`
	Global            bool   `json:"global,omitempty" yaml:"global,omitempty"`
	AggregateLocation bool   `json:"aggregateLocation,omitempty" yaml:"aggregateLocation,omitempty"`
}

// DefaultSourceSelection is the initial selection of one source.
type DefaultSourceSelection struct {
	Enabled bool                `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Values  map[string][]string `json:"values,omitempty" yaml:"values,omitempty"`
}

// Defaults seeds a new session. Empty Metrics means every global metric.
// Shared levels missing from Shared start unconstrained.
type Defaults struct {
	Sources     map[string]DefaultSourceSelection `json:"sources,omitempty" yaml:"sources,omitempty"`
	Shared      map[string][]string               `json:"shared,omitempty" yaml:"shared,omitempty"`
	Metrics     []string                          `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Granularity Granularity                       `json:"granularity,omitempty" yaml:"granularity,omitempty"`
}

// Behavior maps trigger kinds to period policies.
// Empty fields fall back to keep / find_past / last.
type Behavior struct {
	OnFilterAdded        PeriodPolicy `json:"onFilterAdded,omitempty" yaml:"onFilterAdded,omitempty"`
	OnFilterRemoved      PeriodPolicy `json:"onFilterRemoved,omitempty" yaml:"onFilterRemoved,omitempty"`
	OnGranularityChanged PeriodPolicy `json:"onGranularityChanged,omitempty" yaml:"onGranularityChanged,omitempty"`
}

// RuleSet is the complete declarative schema loaded once per session.
// SharedLevels are merged into every source pipeline and are also
// selectable once for all sources.
type RuleSet struct {
	Name         string             `json:"name" yaml:"name"`
	Version      string             `json:"version,omitempty" yaml:"version,omitempty"`
	SharedLevels []LocationRule     `json:"sharedLevels,omitempty" yaml:"sharedLevels,omitempty"`
	Sources      []SourceDefinition `json:"sources" yaml:"sources"`
	Metrics      []MetricDefinition `json:"metrics,omitempty" yaml:"metrics,omitempty"`
	Defaults     Defaults           `json:"defaults,omitempty" yaml:"defaults,omitempty"`
	Behavior     Behavior           `json:"behavior,omitempty" yaml:"behavior,omitempty"`
}
