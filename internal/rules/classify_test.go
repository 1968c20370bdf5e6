// internal/rules/classify_test.go
package rules

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/datex/internal/types"
)

func mustCompileSM2(t *testing.T) *CompiledRuleSet {
	t.Helper()
	compiled, err := Compile(SM2RuleSet())
	if err != nil {
		t.Fatalf("Compile(SM2RuleSet()) error = %v", err)
	}
	return compiled
}

func TestClassify_SM2(t *testing.T) {
	compiled := mustCompileSM2(t)

	tests := []struct {
		name       string
		row        types.Row
		wantSource string
		wantLevels map[string]string
	}{
		{
			name:       "atrea section after separator",
			row:        types.Row{Location: "sm2_01", SourceTag: "Atrea"},
			wantSource: "Atrea",
			wantLevels: map[string]string{"section": "01"},
		},
		{
			name:       "thermopro floor and section",
			row:        types.Row{Location: "1NP-3", SourceTag: "ThermoPro"},
			wantSource: "ThermoPro",
			wantLevels: map[string]string{"section": "3", "floor": "1NP"},
		},
		{
			name:       "thermopro basement",
			row:        types.Row{Location: "1PP-5", SourceTag: "ThermoPro"},
			wantSource: "ThermoPro",
			wantLevels: map[string]string{"section": "5", "floor": "1PP"},
		},
		{
			name:       "atrea without separator has no section",
			row:        types.Row{Location: "sm2", SourceTag: "Atrea"},
			wantSource: "Atrea",
			wantLevels: map[string]string{},
		},
		{
			name:       "atrea non-numeric section rejected",
			row:        types.Row{Location: "sm2_ab", SourceTag: "Atrea"},
			wantSource: "Atrea",
			wantLevels: map[string]string{},
		},
		{
			name:       "thermopro invalid floor absent",
			row:        types.Row{Location: "XYZ-2", SourceTag: "ThermoPro"},
			wantSource: "ThermoPro",
			wantLevels: map[string]string{"section": "2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compiled.Classify(tt.row)
			if !got.Matched {
				t.Fatalf("Classify() matched = false, want true")
			}
			if got.SourceKey() != tt.wantSource {
				t.Errorf("Classify() source = %v, want %v", got.SourceKey(), tt.wantSource)
			}
			if !reflect.DeepEqual(got.LevelMap(), tt.wantLevels) {
				t.Errorf("Classify() levels = %v, want %v", got.LevelMap(), tt.wantLevels)
			}
		})
	}
}

func TestClassify_UnknownTagUnmatched(t *testing.T) {
	compiled := mustCompileSM2(t)

	for _, tag := range []string{"Netatmo", "", "atrea"} {
		got := compiled.Classify(types.Row{Location: "sm2_01", SourceTag: tag})
		if got.Matched {
			t.Errorf("Classify(tag=%q) matched = true, want false", tag)
		}
		if got.SourceKey() != "" {
			t.Errorf("Classify(tag=%q) source = %q, want empty", tag, got.SourceKey())
		}
	}
}

func TestClassify_LevelsInDeclarationOrder(t *testing.T) {
	compiled := mustCompileSM2(t)

	got := compiled.Classify(types.Row{Location: "2NP-7", SourceTag: "ThermoPro"})
	want := []LevelValue{{Key: "section", Value: "7"}, {Key: "floor", Value: "2NP"}}
	if !reflect.DeepEqual(got.Levels, want) {
		t.Errorf("Classify() levels = %v, want %v", got.Levels, want)
	}
	if v, ok := got.Level("floor"); !ok || v != "2NP" {
		t.Errorf("Level(floor) = (%q, %v), want (2NP, true)", v, ok)
	}
	if _, ok := got.Level("room"); ok {
		t.Error("Level(room) present, want absent")
	}
}

func TestExtract_Methods(t *testing.T) {
	tests := []struct {
		name       string
		extraction types.Extraction
		prefix     string
		location   string
		want       string
		wantOK     bool
	}{
		{"prefix", types.Extraction{Method: types.ExtractPrefix, Length: 3}, "", "1NP-3", "1NP", true},
		{"prefix shorter than length", types.Extraction{Method: types.ExtractPrefix, Length: 10}, "", "ab", "ab", true},
		{"prefix counts runes", types.Extraction{Method: types.ExtractPrefix, Length: 2}, "", "žluť", "žl", true},
		{"suffix", types.Extraction{Method: types.ExtractSuffix, Length: 1}, "", "1NP-3", "3", true},
		{"suffix counts runes", types.Extraction{Method: types.ExtractSuffix, Length: 2}, "", "kůň", "ůň", true},
		{"suffix of empty", types.Extraction{Method: types.ExtractSuffix, Length: 1}, "", "", "", false},
		{"after separator", types.Extraction{Method: types.ExtractAfterSeparator, Separator: "_"}, "", "sm2_01", "01", true},
		{"after separator stops at second", types.Extraction{Method: types.ExtractAfterSeparator, Separator: "_"}, "", "a_b_c", "b", true},
		{"after separator missing", types.Extraction{Method: types.ExtractAfterSeparator, Separator: "_"}, "", "sm201", "", false},
		{"after separator empty segment", types.Extraction{Method: types.ExtractAfterSeparator, Separator: "_"}, "", "sm2_", "", false},
		{"after prefix", types.Extraction{Method: types.ExtractAfterPrefix}, "sm2", "sm2_01", "_01", true},
		{"after prefix mismatch", types.Extraction{Method: types.ExtractAfterPrefix}, "sm2", "xx_01", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := CompiledLevel{Key: "l", Extraction: tt.extraction, prefix: tt.prefix}
			got, ok := level.Extract(tt.location)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Extract(%q) = (%q, %v), want (%q, %v)", tt.location, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestCheck_Predicates(t *testing.T) {
	tests := []struct {
		name  string
		pred  types.Predicate
		value string
		want  bool
	}{
		{"contains hit", types.Predicate{Op: types.PredContains, Value: "NP"}, "1NP", true},
		{"contains miss", types.Predicate{Op: types.PredContains, Value: "NP"}, "1PP", false},
		{"contains_any", types.Predicate{Op: types.PredContainsAny, Values: []string{"NP", "PP"}}, "2PP", true},
		{"contains_any miss", types.Predicate{Op: types.PredContainsAny, Values: []string{"NP", "PP"}}, "XYZ", false},
		{"prefix", types.Predicate{Op: types.PredPrefix, Value: "sm"}, "sm2", true},
		{"suffix", types.Predicate{Op: types.PredSuffix, Value: "NP"}, "3NP", true},
		{"in", types.Predicate{Op: types.PredIn, Values: []string{"a", "b"}}, "b", true},
		{"in miss", types.Predicate{Op: types.PredIn, Values: []string{"a", "b"}}, "c", false},
		{"numeric", types.Predicate{Op: types.PredNumeric}, "01", true},
		{"numeric negative", types.Predicate{Op: types.PredNumeric}, "-4", true},
		{"numeric partial", types.Predicate{Op: types.PredNumeric}, "1a", false},
		{"numeric whitespace", types.Predicate{Op: types.PredNumeric}, " 1", false},
		{"not_empty", types.Predicate{Op: types.PredNotEmpty}, "x", true},
		{"not_empty blank", types.Predicate{Op: types.PredNotEmpty}, "  ", false},
		{"unknown op", types.Predicate{Op: "regex"}, "x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Check(tt.pred, tt.value); got != tt.want {
				t.Errorf("Check(%v, %q) = %v, want %v", tt.pred.Op, tt.value, got, tt.want)
			}
		})
	}
}

// levelOrderRuleSet builds one source whose levels are declared in the
// given rotation of a fixed set of independent extractions.
func levelOrderRuleSet(rotation int) *types.RuleSet {
	levels := []types.LocationRule{
		{LevelKey: "head", Extraction: types.Extraction{Method: types.ExtractPrefix, Length: 2}},
		{LevelKey: "tail", Extraction: types.Extraction{Method: types.ExtractSuffix, Length: 1}},
		{LevelKey: "mid", Extraction: types.Extraction{Method: types.ExtractAfterSeparator, Separator: "-"}},
		{LevelKey: "rest", Extraction: types.Extraction{Method: types.ExtractAfterPrefix}},
		{
			LevelKey:   "digits",
			Extraction: types.Extraction{Method: types.ExtractSuffix, Length: 2},
			Validator:  []types.Predicate{{Op: types.PredNumeric}},
		},
	}
	rotated := append(append([]types.LocationRule(nil), levels[rotation%len(levels):]...), levels[:rotation%len(levels)]...)

	return &types.RuleSet{
		Name: "order",
		Sources: []types.SourceDefinition{
			{Key: "s", SourceTag: "S", LocationPrefix: "ab", Mode: types.ModeHierarchical, Levels: rotated},
		},
	}
}

func TestClassify_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	compiled := mustCompileSM2(t)
	base, err := Compile(levelOrderRuleSet(0))
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}

	locations := gen.RegexMatch(`[a-z0-9_\-NP]{0,10}`)
	tags := gen.OneConstOf("Atrea", "ThermoPro", "Other")

	properties.Property("classification is deterministic", prop.ForAll(
		func(location, tag string) bool {
			row := types.Row{Location: location, SourceTag: tag}
			return reflect.DeepEqual(compiled.Classify(row), compiled.Classify(row))
		},
		locations, tags,
	))

	properties.Property("independent compiles classify identically", prop.ForAll(
		func(location, tag string) bool {
			again, err := Compile(SM2RuleSet())
			if err != nil {
				return false
			}
			row := types.Row{Location: location, SourceTag: tag}
			a, b := compiled.Classify(row), again.Classify(row)
			return a.Matched == b.Matched && a.SourceKey() == b.SourceKey() &&
				reflect.DeepEqual(a.Levels, b.Levels)
		},
		locations, tags,
	))

	properties.Property("level declaration order does not change level values", prop.ForAll(
		func(location string, rotation int) bool {
			permuted, err := Compile(levelOrderRuleSet(rotation))
			if err != nil {
				return false
			}
			row := types.Row{Location: location, SourceTag: "S"}
			return reflect.DeepEqual(base.Classify(row).LevelMap(), permuted.Classify(row).LevelMap())
		},
		gen.RegexMatch(`(ab)?[a-z0-9\-]{0,8}`), gen.IntRange(0, 4),
	))

	properties.Property("matched rows only carry levels of their source", prop.ForAll(
		func(location, tag string) bool {
			c := compiled.Classify(types.Row{Location: location, SourceTag: tag})
			if !c.Matched {
				return len(c.Levels) == 0
			}
			for _, lv := range c.Levels {
				if _, ok := c.Source.Level(lv.Key); !ok || lv.Value == "" {
					return false
				}
			}
			return true
		},
		locations, tags,
	))

	properties.TestingRun(t)
}
