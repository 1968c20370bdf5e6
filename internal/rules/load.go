package rules

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solatis/datex/internal/types"
)

// LoadRuleSet reads a YAML (or JSON, which is valid YAML) rule-set document.
// Unknown fields are rejected so typos fail at load time rather than
// silently dropping a rule.
func LoadRuleSet(path string) (*types.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule set: %w", err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet decodes a YAML rule-set document.
func ParseRuleSet(data []byte) (*types.RuleSet, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var rs types.RuleSet
	if err := dec.Decode(&rs); err != nil {
		return nil, fmt.Errorf("failed to parse rule set: %w", err)
	}
	return &rs, nil
}

// Fingerprint returns a content hash of the rule set.
// Same rule set always produces the same fingerprint; used as cache key for
// discovered catalogs.
func Fingerprint(rs *types.RuleSet) (string, error) {
	data, err := json.Marshal(rs)
	if err != nil {
		return "", fmt.Errorf("failed to encode rule set: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}
