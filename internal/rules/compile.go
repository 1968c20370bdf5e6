// internal/rules/compile.go
package rules

import (
	"fmt"
	"sort"

	"github.com/solatis/datex/internal/types"
)

/*
 * Rule-set compilation and validation.
 *
 * Compiles types.RuleSet to CompiledRuleSet with resolved level pipelines,
 * validators, comparators, normalized defaults and period behavior.
 *
 * Compilation workflow:
 *   1. Validate sources (keys, disjoint tags, selection modes, limits)
 *   2. Merge shared levels into each source (source rule wins on same key)
 *      and compile them once more as cross-source filters
 *   3. Compile each level: extraction parameters, validator, comparator
 *   4. Validate metrics (unique keys, aggregateLocation implies global)
 *   5. Validate and normalize defaults and behavior
 *
 * Every configuration fault is returned here, before any row is classified.
 * Classification over a CompiledRuleSet cannot fail; rows that do not fit
 * produce Unmatched or absent levels instead.
 *
 * Sources keep declaration order for tag lookup; display order by
 * sortPriority is derived on demand (SourcesByPriority).
 */

// CompiledLevel is a fully resolved hierarchical level of one source.
type CompiledLevel struct {
	Key        string
	Extraction types.Extraction
	Discover   bool
	Values     []string // explicit allowed values (nil when Discover)
	Validator  Validator
	Comparator Comparator

	prefix string // owning source's locationPrefix for after_prefix
}

// CompiledSource is a source definition with its merged level pipeline.
type CompiledSource struct {
	Key            string
	Tag            string
	LocationPrefix string
	SortPriority   int
	Mode           types.SelectionMode
	Levels         []CompiledLevel

	levelIndex map[string]int
}

// Level returns the compiled level with the given key.
func (s *CompiledSource) Level(key string) (*CompiledLevel, bool) {
	i, ok := s.levelIndex[key]
	if !ok {
		return nil, false
	}
	return &s.Levels[i], true
}

// Hierarchical reports whether the source exposes nested levels.
func (s *CompiledSource) Hierarchical() bool {
	return s.Mode == types.ModeHierarchical
}

// CompiledRuleSet is immutable after Compile and safe for concurrent reads.
type CompiledRuleSet struct {
	Name        string
	Version     string
	Fingerprint string
	Sources     []CompiledSource
	Shared      []SharedLevel
	Metrics     []types.MetricDefinition // ordered by Order, then Key
	Defaults    types.Defaults
	Behavior    types.Behavior

	byTag    map[string]int
	byKey    map[string]int
	byMetric map[string]int
}

// Source returns the compiled source with the given key.
func (c *CompiledRuleSet) Source(key string) (*CompiledSource, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	return &c.Sources[i], true
}

// SourceForTag returns the source whose tag equals tag.
func (c *CompiledRuleSet) SourceForTag(tag string) (*CompiledSource, bool) {
	i, ok := c.byTag[tag]
	if !ok {
		return nil, false
	}
	return &c.Sources[i], true
}

// SourcesByPriority returns sources ordered by ascending sortPriority.
// Equal priorities fall back to key order.
func (c *CompiledRuleSet) SourcesByPriority() []*CompiledSource {
	out := make([]*CompiledSource, len(c.Sources))
	for i := range c.Sources {
		out[i] = &c.Sources[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SortPriority != out[j].SortPriority {
			return out[i].SortPriority < out[j].SortPriority
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Compile validates and pre-processes a rule set with no custom comparators.
func Compile(rs *types.RuleSet) (*CompiledRuleSet, error) {
	return NewEngine().Compile(rs)
}

// Compile validates and pre-processes a rule set using the engine's
// registered comparator strategies.
func (e *Engine) Compile(rs *types.RuleSet) (*CompiledRuleSet, error) {
	if rs == nil || len(rs.Sources) == 0 {
		return nil, types.ErrEmptyRuleSet
	}
	if len(rs.Sources) > types.MaxSources {
		return nil, types.ErrTooManySources
	}

	fingerprint, err := Fingerprint(rs)
	if err != nil {
		return nil, err
	}

	compiled := &CompiledRuleSet{
		Name:        rs.Name,
		Version:     rs.Version,
		Fingerprint: fingerprint,
		Sources:     make([]CompiledSource, 0, len(rs.Sources)),
		byTag:       make(map[string]int, len(rs.Sources)),
		byKey:       make(map[string]int, len(rs.Sources)),
		byMetric:    make(map[string]int, len(rs.Metrics)),
	}

	for _, src := range rs.Sources {
		cs, err := e.compileSource(src, rs.SharedLevels)
		if err != nil {
			return nil, err
		}
		if _, dup := compiled.byKey[cs.Key]; dup {
			return nil, fmt.Errorf("source %q: %w", cs.Key, types.ErrDuplicateSourceKey)
		}
		if other, dup := compiled.byTag[cs.Tag]; dup {
			return nil, fmt.Errorf("sources %q and %q match tag %q: %w",
				compiled.Sources[other].Key, cs.Key, cs.Tag, types.ErrDuplicateSourceTag)
		}
		compiled.byKey[cs.Key] = len(compiled.Sources)
		compiled.byTag[cs.Tag] = len(compiled.Sources)
		compiled.Sources = append(compiled.Sources, cs)
	}

	shared, err := e.compileShared(rs.SharedLevels)
	if err != nil {
		return nil, err
	}
	compiled.Shared = shared

	if err := compiled.compileMetrics(rs.Metrics); err != nil {
		return nil, err
	}
	if err := compiled.compileDefaults(rs.Defaults); err != nil {
		return nil, err
	}
	behavior, err := compileBehavior(rs.Behavior)
	if err != nil {
		return nil, err
	}
	compiled.Behavior = behavior

	return compiled, nil
}

// compileSource validates one source and merges shared levels into its pipeline.
// A source level with the same key as a shared level replaces it.
func (e *Engine) compileSource(src types.SourceDefinition, shared []types.LocationRule) (CompiledSource, error) {
	if src.Key == "" {
		return CompiledSource{}, types.ErrMissingSourceKey
	}
	if src.SourceTag == "" {
		return CompiledSource{}, fmt.Errorf("source %q: %w", src.Key, types.ErrMissingSourceTag)
	}

	mode := src.Mode
	switch mode {
	case "":
		mode = types.ModeSimple
	case types.ModeSimple, types.ModeHierarchical:
	default:
		return CompiledSource{}, fmt.Errorf("source %q: %w: %q", src.Key, types.ErrUnknownSelectionMode, mode)
	}

	own := make(map[string]bool, len(src.Levels))
	for _, l := range src.Levels {
		own[l.LevelKey] = true
	}
	pipeline := make([]types.LocationRule, 0, len(shared)+len(src.Levels))
	for _, l := range shared {
		if !own[l.LevelKey] {
			pipeline = append(pipeline, l)
		}
	}
	pipeline = append(pipeline, src.Levels...)

	if len(pipeline) > types.MaxLevelsPerSource {
		return CompiledSource{}, fmt.Errorf("source %q: %w", src.Key, types.ErrTooManyLevels)
	}

	cs := CompiledSource{
		Key:            src.Key,
		Tag:            src.SourceTag,
		LocationPrefix: src.LocationPrefix,
		SortPriority:   src.SortPriority,
		Mode:           mode,
		Levels:         make([]CompiledLevel, 0, len(pipeline)),
		levelIndex:     make(map[string]int, len(pipeline)),
	}

	for _, rule := range pipeline {
		level, err := e.compileLevel(rule, src.LocationPrefix)
		if err != nil {
			return CompiledSource{}, fmt.Errorf("source %q level %q: %w", src.Key, rule.LevelKey, err)
		}
		if _, dup := cs.levelIndex[level.Key]; dup {
			return CompiledSource{}, fmt.Errorf("source %q level %q: %w", src.Key, level.Key, types.ErrDuplicateLevelKey)
		}
		cs.levelIndex[level.Key] = len(cs.Levels)
		cs.Levels = append(cs.Levels, level)
	}

	return cs, nil
}

// compileLevel validates extraction parameters and resolves validator and comparator.
func (e *Engine) compileLevel(rule types.LocationRule, locationPrefix string) (CompiledLevel, error) {
	if rule.LevelKey == "" {
		return CompiledLevel{}, types.ErrMissingLevelKey
	}

	switch rule.Extraction.Method {
	case types.ExtractPrefix, types.ExtractSuffix:
		if rule.Extraction.Length <= 0 {
			return CompiledLevel{}, types.ErrInvalidLength
		}
	case types.ExtractAfterSeparator:
		if rule.Extraction.Separator == "" {
			return CompiledLevel{}, types.ErrMissingSeparator
		}
	case types.ExtractAfterPrefix:
		if locationPrefix == "" {
			return CompiledLevel{}, types.ErrMissingLocationPrefix
		}
	default:
		return CompiledLevel{}, fmt.Errorf("%w: %q", types.ErrUnknownExtraction, rule.Extraction.Method)
	}

	if len(rule.AllowedValues.Values) > types.MaxFixedValues {
		return CompiledLevel{}, types.ErrTooManyValues
	}

	validator, err := compileValidator(rule.Validator)
	if err != nil {
		return CompiledLevel{}, err
	}

	var values []string
	if !rule.AllowedValues.Discover {
		values = append([]string(nil), rule.AllowedValues.Values...)
	}

	comparator, err := e.compileComparator(rule.Comparator, values)
	if err != nil {
		return CompiledLevel{}, err
	}

	return CompiledLevel{
		Key:        rule.LevelKey,
		Extraction: rule.Extraction,
		Discover:   rule.AllowedValues.Discover,
		Values:     values,
		Validator:  validator,
		Comparator: comparator,
		prefix:     locationPrefix,
	}, nil
}

// compileMetrics validates metric definitions and orders them for display.
func (c *CompiledRuleSet) compileMetrics(metrics []types.MetricDefinition) error {
	c.Metrics = make([]types.MetricDefinition, 0, len(metrics))
	seen := make(map[string]bool, len(metrics))
	for _, m := range metrics {
		if m.Key == "" {
			return types.ErrMissingMetricKey
		}
		if seen[m.Key] {
			return fmt.Errorf("metric %q: %w", m.Key, types.ErrDuplicateMetricKey)
		}
		if m.AggregateLocation && !m.Global {
			return fmt.Errorf("metric %q: %w", m.Key, types.ErrAggregateNotGlobal)
		}
		seen[m.Key] = true
		c.Metrics = append(c.Metrics, m)
	}

	sort.SliceStable(c.Metrics, func(i, j int) bool {
		if c.Metrics[i].Order != c.Metrics[j].Order {
			return c.Metrics[i].Order < c.Metrics[j].Order
		}
		return c.Metrics[i].Key < c.Metrics[j].Key
	})
	for i, m := range c.Metrics {
		c.byMetric[m.Key] = i
	}
	return nil
}

// compileDefaults validates the default selection against sources, levels
// and metrics, then fills in implicit defaults.
func (c *CompiledRuleSet) compileDefaults(d types.Defaults) error {
	out := types.Defaults{
		Sources:     make(map[string]types.DefaultSourceSelection, len(d.Sources)),
		Granularity: d.Granularity,
	}

	for key, vs := range d.Shared {
		if _, ok := c.SharedLevel(key); !ok {
			return fmt.Errorf("shared: %w: %q", types.ErrUnknownDefaultLevel, key)
		}
		if out.Shared == nil {
			out.Shared = make(map[string][]string, len(d.Shared))
		}
		out.Shared[key] = append([]string{}, vs...)
	}

	for key, sel := range d.Sources {
		src, ok := c.Source(key)
		if !ok {
			return fmt.Errorf("%w: %q", types.ErrUnknownDefaultSource, key)
		}
		if !src.Hierarchical() && len(sel.Values) > 0 {
			return fmt.Errorf("source %q: %w", key, types.ErrSimpleSourceValues)
		}
		values := make(map[string][]string, len(sel.Values))
		for level, vs := range sel.Values {
			if _, ok := src.Level(level); !ok {
				return fmt.Errorf("source %q: %w: %q", key, types.ErrUnknownDefaultLevel, level)
			}
			values[level] = append([]string(nil), vs...)
		}
		out.Sources[key] = types.DefaultSourceSelection{Enabled: sel.Enabled, Values: values}
	}

	for _, m := range d.Metrics {
		if _, ok := c.byMetric[m]; !ok {
			return fmt.Errorf("%w: %q", types.ErrUnknownDefaultMetric, m)
		}
		out.Metrics = append(out.Metrics, m)
	}
	if len(out.Metrics) == 0 {
		for _, m := range c.Metrics {
			if m.Global {
				out.Metrics = append(out.Metrics, m.Key)
			}
		}
	}

	if out.Granularity == "" {
		out.Granularity = types.GranularityMonth
	}
	if _, err := types.ParseGranularity(string(out.Granularity)); err != nil {
		return err
	}

	c.Defaults = out
	return nil
}

// compileBehavior validates policy names and applies keep / find_past / last defaults.
func compileBehavior(b types.Behavior) (types.Behavior, error) {
	out := types.Behavior{
		OnFilterAdded:        orPolicy(b.OnFilterAdded, types.PolicyKeep),
		OnFilterRemoved:      orPolicy(b.OnFilterRemoved, types.PolicyFindPast),
		OnGranularityChanged: orPolicy(b.OnGranularityChanged, types.PolicyLast),
	}
	for _, p := range []types.PeriodPolicy{out.OnFilterAdded, out.OnFilterRemoved, out.OnGranularityChanged} {
		switch p {
		case types.PolicyKeep, types.PolicyFindPast, types.PolicyLast:
		default:
			return types.Behavior{}, fmt.Errorf("%w: %q", types.ErrUnknownPolicy, p)
		}
	}
	return out, nil
}

func orPolicy(p, fallback types.PeriodPolicy) types.PeriodPolicy {
	if p == "" {
		return fallback
	}
	return p
}
