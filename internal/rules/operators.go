// internal/rules/operators.go
package rules

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/solatis/datex/internal/types"
)

/*
 * Validator predicates.
 *
 * Implements the data-described validator operators of a LocationRule. A
 * level's predicates are AND-combined; OR semantics are expressed inside a
 * single predicate (contains_any, in). A value rejected by the validator is
 * treated as absent for that row.
 *
 * Operators:
 *   - contains / contains_any: substring match against Value / any of Values
 *   - prefix / suffix: string prefix/suffix match against Value
 *   - in: membership in Values
 *   - numeric: value parses fully as a base-10 integer
 *   - not_empty: value contains non-whitespace
 */

// Validator decides whether a raw extracted value is acceptable.
type Validator interface {
	Valid(value string) bool
}

// acceptAll is the validator of levels without predicates.
type acceptAll struct{}

func (acceptAll) Valid(string) bool { return true }

// predicateValidator applies AND-combined predicates.
type predicateValidator struct {
	predicates []types.Predicate
}

// Valid reports whether value satisfies every predicate.
func (v predicateValidator) Valid(value string) bool {
	for _, p := range v.predicates {
		if !Check(p, value) {
			return false
		}
	}
	return true
}

// compileValidator validates predicate parameters and builds the level validator.
func compileValidator(predicates []types.Predicate) (Validator, error) {
	if len(predicates) == 0 {
		return acceptAll{}, nil
	}
	if len(predicates) > types.MaxPredicatesPerLevel {
		return nil, types.ErrTooManyPredicates
	}

	for _, p := range predicates {
		switch p.Op {
		case types.PredContains, types.PredPrefix, types.PredSuffix:
			if p.Value == "" {
				return nil, fmt.Errorf("%w: %s requires value", types.ErrUnknownPredicate, p.Op)
			}
		case types.PredContainsAny, types.PredIn:
			if len(p.Values) == 0 {
				return nil, fmt.Errorf("%w: %s requires values", types.ErrUnknownPredicate, p.Op)
			}
			if len(p.Values) > types.MaxFixedValues {
				return nil, types.ErrTooManyValues
			}
		case types.PredNumeric, types.PredNotEmpty:
		default:
			return nil, fmt.Errorf("%w: %q", types.ErrUnknownPredicate, p.Op)
		}
	}

	return predicateValidator{predicates: append([]types.Predicate(nil), predicates...)}, nil
}

// Check applies a single predicate to value.
// Unknown operators never match; Compile rejects them beforehand.
func Check(p types.Predicate, value string) bool {
	switch p.Op {
	case types.PredContains:
		return strings.Contains(value, p.Value)
	case types.PredContainsAny:
		for _, v := range p.Values {
			if strings.Contains(value, v) {
				return true
			}
		}
		return false
	case types.PredPrefix:
		return strings.HasPrefix(value, p.Value)
	case types.PredSuffix:
		return strings.HasSuffix(value, p.Value)
	case types.PredIn:
		for _, v := range p.Values {
			if value == v {
				return true
			}
		}
		return false
	case types.PredNumeric:
		_, ok := parseInteger(value)
		return ok
	case types.PredNotEmpty:
		return strings.TrimSpace(value) != ""
	default:
		return false
	}
}

// parseInteger parses value as a base-10 integer, rejecting surrounding
// whitespace and partial matches.
func parseInteger(value string) (int64, bool) {
	if value == "" || strings.TrimSpace(value) != value {
		return 0, false
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
