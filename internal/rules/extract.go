// internal/rules/extract.go
package rules

import (
	"strings"

	"github.com/solatis/datex/internal/types"
)

/*
 * Location-string extraction.
 *
 * Reads one level value from the original location string. Levels are
 * independent views of the same string: no extraction sees the residue of
 * another, so the declared level order never changes level values.
 *
 * Methods:
 *   - prefix(n): first n characters (the whole string when shorter)
 *   - suffix(n): last n characters (the whole string when shorter)
 *   - after_separator(sep): text between the first and second occurrence
 *     of sep; absent when sep does not occur
 *   - after_prefix: text after the source's locationPrefix; absent when the
 *     location does not start with it
 *
 * Lengths count characters (runes), not bytes. An empty result is absent.
 */

// Extract reads the level value from location.
// Returns false when the level is absent for this location.
func (l *CompiledLevel) Extract(location string) (string, bool) {
	var value string
	switch l.Extraction.Method {
	case types.ExtractPrefix:
		value = runePrefix(location, l.Extraction.Length)
	case types.ExtractSuffix:
		value = runeSuffix(location, l.Extraction.Length)
	case types.ExtractAfterSeparator:
		parts := strings.SplitN(location, l.Extraction.Separator, 3)
		if len(parts) < 2 {
			return "", false
		}
		value = parts[1]
	case types.ExtractAfterPrefix:
		rest, found := strings.CutPrefix(location, l.prefix)
		if !found {
			return "", false
		}
		value = rest
	default:
		return "", false
	}

	if value == "" {
		return "", false
	}
	return value, true
}

// Value extracts and validates the level value.
// A value rejected by the validator is reported absent.
func (l *CompiledLevel) Value(location string) (string, bool) {
	value, ok := l.Extract(location)
	if !ok {
		return "", false
	}
	if l.Validator != nil && !l.Validator.Valid(value) {
		return "", false
	}
	return value, true
}

func runePrefix(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func runeSuffix(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[len(r)-n:])
}
