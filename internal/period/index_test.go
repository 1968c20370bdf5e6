package period

import (
	"reflect"
	"testing"
	"time"

	"github.com/solatis/datex/internal/rules"
	"github.com/solatis/datex/internal/types"
)

func TestBucket(t *testing.T) {
	at := time.Date(2023, 6, 1, 23, 45, 10, 0, time.UTC)
	prague, err := time.LoadLocation("Europe/Prague")
	if err != nil {
		t.Skipf("time zone data unavailable: %v", err)
	}

	tests := []struct {
		name string
		g    types.Granularity
		loc  *time.Location
		want types.PeriodKey
	}{
		{"month utc", types.GranularityMonth, nil, "2023-06"},
		{"day utc", types.GranularityDay, time.UTC, "2023-06-01"},
		{"hour utc", types.GranularityHour, time.UTC, "2023-06-01T23"},
		{"day in local zone crosses midnight", types.GranularityDay, prague, "2023-06-02"},
		{"hour in local zone", types.GranularityHour, prague, "2023-06-02T01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Bucket(at, tt.g, tt.loc); got != tt.want {
				t.Errorf("Bucket() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStart_RoundTrip(t *testing.T) {
	for _, g := range types.Granularities {
		at := time.Date(2023, 3, 14, 15, 0, 0, 0, time.UTC)
		key := Bucket(at, g, nil)
		start, err := Start(key, g, nil)
		if err != nil {
			t.Fatalf("Start(%q) error = %v", key, err)
		}
		if Bucket(start, g, nil) != key {
			t.Errorf("Bucket(Start(%q)) = %q", key, Bucket(start, g, nil))
		}
		if start.After(at) {
			t.Errorf("Start(%q) = %v, after %v", key, start, at)
		}
	}
}

func TestConvert(t *testing.T) {
	tests := []struct {
		name     string
		key      types.PeriodKey
		from, to types.Granularity
		want     types.PeriodKey
	}{
		{"month to day", "2023-02", types.GranularityMonth, types.GranularityDay, "2023-02-28"},
		{"month to hour", "2023-02", types.GranularityMonth, types.GranularityHour, "2023-02-28T23"},
		{"leap month to day", "2024-02", types.GranularityMonth, types.GranularityDay, "2024-02-29"},
		{"day to hour", "2023-12-31", types.GranularityDay, types.GranularityHour, "2023-12-31T23"},
		{"day to month", "2023-02-15", types.GranularityDay, types.GranularityMonth, "2023-02"},
		{"hour to day", "2023-02-15T13", types.GranularityHour, types.GranularityDay, "2023-02-15"},
		{"same granularity", "2023-02", types.GranularityMonth, types.GranularityMonth, "2023-02"},
		{"none", "", types.GranularityMonth, types.GranularityDay, ""},
		{"wrong layout", "2023-02-15", types.GranularityMonth, types.GranularityDay, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Convert(tt.key, tt.from, tt.to, time.UTC); got != tt.want {
				t.Errorf("Convert(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestIndex_Lookups(t *testing.T) {
	ix := months("2023-03", "2023-01", "2023-03", "")

	if want := []types.PeriodKey{"2023-01", "2023-03"}; !reflect.DeepEqual(ix.Keys, want) {
		t.Fatalf("NewIndex() keys = %v, want %v", ix.Keys, want)
	}
	if !ix.Contains("2023-01") || ix.Contains("2023-02") {
		t.Error("Contains() wrong")
	}
	if k, ok := ix.Floor("2023-02"); !ok || k != "2023-01" {
		t.Errorf("Floor(2023-02) = (%q, %v), want (2023-01, true)", k, ok)
	}
	if k, ok := ix.Floor("2023-03"); !ok || k != "2023-03" {
		t.Errorf("Floor(2023-03) = (%q, %v), want (2023-03, true)", k, ok)
	}
	if _, ok := ix.Floor("2022-12"); ok {
		t.Error("Floor(2022-12) ok = true, want false")
	}
	if k, _ := ix.Before("2023-03"); k != "2023-01" {
		t.Errorf("Before(2023-03) = %q, want 2023-01", k)
	}
	if _, ok := ix.After("2023-03"); ok {
		t.Error("After(2023-03) ok = true, want false")
	}
}

func sm2Fixture(t *testing.T) (*rules.CompiledRuleSet, []types.Row) {
	t.Helper()
	compiled, err := rules.Compile(rules.SM2RuleSet())
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	at := func(month int) time.Time { return time.Date(2023, time.Month(month), 10, 8, 0, 0, 0, time.UTC) }
	rows := []types.Row{
		{Time: at(1), Location: "sm2_01", SourceTag: "Atrea", Metric: "temp_indoor", Value: 21},
		{Time: at(2), Location: "1NP-3", SourceTag: "ThermoPro", Metric: "temp_indoor", Value: 22},
		{Time: at(3), Location: "2NP-1", SourceTag: "ThermoPro", Metric: "temp_indoor", Value: 23},
		{Time: at(4), Location: "1NP-1", SourceTag: "ThermoPro", Metric: "temp_ambient", Value: 4},
		{Time: at(5), Location: "lab", SourceTag: "Netatmo", Metric: "temp_indoor", Value: 20},
	}
	return compiled, rows
}

func TestBuildIndex_Selection(t *testing.T) {
	compiled, rows := sm2Fixture(t)

	tests := []struct {
		name    string
		sources map[string]types.SourceSelection
		shared  map[string][]string
		metrics []string
		want    []types.PeriodKey
	}{
		{
			name:    "atrea only",
			sources: map[string]types.SourceSelection{"Atrea": {Enabled: true}},
			metrics: []string{"temp_indoor"},
			want:    []types.PeriodKey{"2023-01"},
		},
		{
			name: "thermopro floor filter",
			sources: map[string]types.SourceSelection{
				"ThermoPro": {Values: map[string][]string{"floor": {"1NP"}}},
			},
			metrics: []string{"temp_indoor"},
			want:    []types.PeriodKey{"2023-02"},
		},
		{
			name: "and across levels",
			sources: map[string]types.SourceSelection{
				"ThermoPro": {Values: map[string][]string{"floor": {"1NP", "2NP"}, "section": {"1"}}},
			},
			metrics: []string{"temp_indoor"},
			want:    []types.PeriodKey{"2023-03"},
		},
		{
			name:    "global metric ignores location selection",
			sources: map[string]types.SourceSelection{},
			metrics: []string{"temp_ambient"},
			want:    []types.PeriodKey{"2023-04"},
		},
		{
			name: "shared section narrows simple and hierarchical sources",
			sources: map[string]types.SourceSelection{
				"Atrea":     {Enabled: true},
				"ThermoPro": {Values: map[string][]string{"floor": {"1NP", "2NP"}}},
			},
			shared:  map[string][]string{"section": {"1"}},
			metrics: []string{"temp_indoor"},
			want:    []types.PeriodKey{"2023-01", "2023-03"},
		},
		{
			name: "shared section excludes atrea",
			sources: map[string]types.SourceSelection{
				"Atrea":     {Enabled: true},
				"ThermoPro": {Values: map[string][]string{"floor": {"1NP", "2NP"}}},
			},
			shared:  map[string][]string{"section": {"3"}},
			metrics: []string{"temp_indoor"},
			want:    []types.PeriodKey{"2023-02"},
		},
		{
			name:    "empty shared constraint passes no scoped rows",
			sources: map[string]types.SourceSelection{"Atrea": {Enabled: true}},
			shared:  map[string][]string{"section": {}},
			metrics: []string{"temp_indoor"},
			want:    []types.PeriodKey{},
		},
		{
			name:    "global metric ignores shared constraint",
			sources: map[string]types.SourceSelection{},
			shared:  map[string][]string{"section": {}},
			metrics: []string{"temp_ambient"},
			want:    []types.PeriodKey{"2023-04"},
		},
		{
			name:    "nothing selected",
			sources: map[string]types.SourceSelection{"Atrea": {Enabled: true}},
			metrics: nil,
			want:    []types.PeriodKey{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sel := types.ActiveSelection{Sources: tt.sources, Shared: tt.shared, Metrics: tt.metrics, Granularity: types.GranularityMonth}
			ix := BuildIndex(rows, compiled, sel, time.UTC)
			if !reflect.DeepEqual(ix.Keys, tt.want) {
				t.Errorf("BuildIndex() = %v, want %v", ix.Keys, tt.want)
			}
		})
	}
}

func TestBuildIndex_GlobalMetricUnaffectedByLocationFilters(t *testing.T) {
	compiled, rows := sm2Fixture(t)

	selections := []map[string]types.SourceSelection{
		{},
		{"Atrea": {Enabled: true}},
		{"ThermoPro": {Values: map[string][]string{"floor": {"2NP"}}}},
		{"Atrea": {Enabled: true}, "ThermoPro": {Values: map[string][]string{"section": {"9"}}}},
	}

	var first []types.PeriodKey
	for i, sources := range selections {
		sel := types.ActiveSelection{Sources: sources, Metrics: []string{"temp_ambient"}, Granularity: types.GranularityDay}
		ix := BuildIndex(rows, compiled, sel, time.UTC)
		if i == 0 {
			first = ix.Keys
			continue
		}
		if !reflect.DeepEqual(ix.Keys, first) {
			t.Errorf("selection %d: index = %v, want %v", i, ix.Keys, first)
		}
	}
}
