package types

import "errors"

// Sentinel errors for rule-set configuration faults.
// All of them are raised by rules.Compile before any row is classified.
var (
	// ErrEmptyRuleSet indicates a rule set without sources.
	ErrEmptyRuleSet = errors.New("rule set has no sources")

	// ErrTooManySources indicates a rule set exceeds MaxSources.
	ErrTooManySources = errors.New("rule set has too many sources")

	// ErrMissingSourceKey indicates a source definition without a key.
	ErrMissingSourceKey = errors.New("source key is required")

	// ErrDuplicateSourceKey indicates two sources share a key.
	ErrDuplicateSourceKey = errors.New("duplicate source key")

	// ErrMissingSourceTag indicates a source definition without a tag.
	ErrMissingSourceTag = errors.New("source tag is required")

	// ErrDuplicateSourceTag indicates two sources match the same tag.
	ErrDuplicateSourceTag = errors.New("duplicate source tag")

	// ErrUnknownSelectionMode indicates a source mode other than simple or hierarchical.
	ErrUnknownSelectionMode = errors.New("unknown selection mode")

	// ErrMissingLevelKey indicates a location rule without a level key.
	ErrMissingLevelKey = errors.New("level key is required")

	// ErrDuplicateLevelKey indicates two levels of one source share a key.
	ErrDuplicateLevelKey = errors.New("duplicate level key")

	// ErrTooManyLevels indicates a source exceeds MaxLevelsPerSource.
	ErrTooManyLevels = errors.New("source has too many levels")

	// ErrUnknownExtraction indicates an unsupported extraction method.
	ErrUnknownExtraction = errors.New("unknown extraction method")

	// ErrInvalidLength indicates prefix/suffix extraction without a positive length.
	ErrInvalidLength = errors.New("extraction length must be positive")

	// ErrMissingSeparator indicates after_separator extraction without a separator.
	ErrMissingSeparator = errors.New("extraction separator is undefined")

	// ErrMissingLocationPrefix indicates after_prefix extraction on a source without locationPrefix.
	ErrMissingLocationPrefix = errors.New("after_prefix requires source locationPrefix")

	// ErrUnknownPredicate indicates an unsupported validator operator.
	ErrUnknownPredicate = errors.New("unknown validator predicate")

	// ErrTooManyPredicates indicates a level exceeds MaxPredicatesPerLevel.
	ErrTooManyPredicates = errors.New("level has too many validator predicates")

	// ErrInvalidComparator indicates an unknown or incomplete comparator spec.
	ErrInvalidComparator = errors.New("invalid comparator")

	// ErrTooManyValues indicates a value list exceeds MaxFixedValues.
	ErrTooManyValues = errors.New("value list too long")

	// ErrMissingMetricKey indicates a metric definition without a key.
	ErrMissingMetricKey = errors.New("metric key is required")

	// ErrDuplicateMetricKey indicates two metrics share a key.
	ErrDuplicateMetricKey = errors.New("duplicate metric key")

	// ErrAggregateNotGlobal indicates aggregateLocation set on a non-global metric.
	ErrAggregateNotGlobal = errors.New("aggregateLocation requires global metric")

	// ErrUnknownDefaultSource indicates a default selection naming an undefined source.
	ErrUnknownDefaultSource = errors.New("default selection references unknown source")

	// ErrUnknownDefaultLevel indicates a default selection naming an undefined level.
	ErrUnknownDefaultLevel = errors.New("default selection references unknown level")

	// ErrSimpleSourceValues indicates leaf values in a default for a simple source.
	ErrSimpleSourceValues = errors.New("simple source selection cannot carry values")

	// ErrUnknownDefaultMetric indicates a default selection naming an undefined metric.
	ErrUnknownDefaultMetric = errors.New("default selection references unknown metric")

	// ErrUnknownGranularity indicates an unsupported granularity name.
	ErrUnknownGranularity = errors.New("unknown granularity")

	// ErrUnknownPolicy indicates an unsupported period policy name.
	ErrUnknownPolicy = errors.New("unknown period policy")
)

// Sentinel errors for selection changes and explorer sessions.
var (
	// ErrUnknownSource indicates a selection change naming an undefined source.
	ErrUnknownSource = errors.New("unknown source")

	// ErrUnknownLevel indicates a selection change naming an undefined level.
	ErrUnknownLevel = errors.New("unknown level")

	// ErrSessionNotFound indicates an unknown or expired session ID.
	ErrSessionNotFound = errors.New("session not found")

	// ErrTooManySessions indicates the session cap was reached.
	ErrTooManySessions = errors.New("too many open sessions")

	// ErrCatalogNotFound indicates no cached catalog for a fingerprint pair.
	ErrCatalogNotFound = errors.New("catalog not found")

	// ErrMalformedReading indicates a broker message that is not a valid reading.
	ErrMalformedReading = errors.New("malformed reading")
)
