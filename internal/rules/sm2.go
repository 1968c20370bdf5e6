package rules

import "github.com/solatis/datex/internal/types"

// SM2RuleSet returns the rule set of the SM2 temperature dataset.
//
// Atrea ventilation units report locations like "sm2_01" and are selected
// as a whole. ThermoPro room sensors report "1NP-3" (floor code, section)
// and expose floors and sections as nested filters. configs/sm2.yaml holds
// the same rule set as a document.
func SM2RuleSet() *types.RuleSet {
	sections := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9"}

	return &types.RuleSet{
		Name:    "SM2 Temperatures",
		Version: "1.0.0",
		SharedLevels: []types.LocationRule{
			{
				LevelKey:      "section",
				Extraction:    types.Extraction{Method: types.ExtractSuffix, Length: 1},
				AllowedValues: types.AllowedValues{Values: sections},
			},
		},
		Sources: []types.SourceDefinition{
			{
				Key:            "Atrea",
				SourceTag:      "Atrea",
				LocationPrefix: "sm2",
				SortPriority:   1,
				Mode:           types.ModeSimple,
				Levels: []types.LocationRule{
					{
						LevelKey:      "section",
						Extraction:    types.Extraction{Method: types.ExtractAfterSeparator, Separator: "_"},
						AllowedValues: types.AllowedValues{Discover: true},
						Validator:     []types.Predicate{{Op: types.PredNumeric}},
					},
				},
			},
			{
				Key:          "ThermoPro",
				SourceTag:    "ThermoPro",
				SortPriority: 2,
				Mode:         types.ModeHierarchical,
				Levels: []types.LocationRule{
					{
						LevelKey:      "floor",
						Extraction:    types.Extraction{Method: types.ExtractPrefix, Length: 3},
						AllowedValues: types.AllowedValues{Discover: true},
						Validator: []types.Predicate{
							{Op: types.PredContainsAny, Values: []string{"NP", "PP"}},
						},
						Comparator: &types.ComparatorSpec{
							Method: types.CompareSuffixGroups,
							Groups: []types.SuffixGroup{
								{Suffix: "NP", Descending: true},
								{Suffix: "PP"},
							},
						},
					},
				},
			},
		},
		Metrics: []types.MetricDefinition{
			{Key: "temp_indoor", Order: 1},
			{Key: "temp_ambient", Order: 2, Global: true, AggregateLocation: true},
			{Key: "temp_fresh", Order: 3},
			{Key: "temp_intake", Order: 4},
			{Key: "temp_waste", Order: 5},
		},
		Defaults: types.Defaults{
			Sources: map[string]types.DefaultSourceSelection{
				"Atrea":     {Enabled: true},
				"ThermoPro": {},
			},
			Granularity: types.GranularityMonth,
		},
		Behavior: types.Behavior{
			OnFilterAdded:        types.PolicyKeep,
			OnFilterRemoved:      types.PolicyFindPast,
			OnGranularityChanged: types.PolicyLast,
		},
	}
}
